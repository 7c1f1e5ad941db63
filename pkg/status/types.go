package status

// Task represents the lifecycle status of a browser task
// @Description Task status
// @enum pending,planning,executing,paused_captcha,completed,failed
type Task string

const (
	TaskPending       Task = "pending"        // accepted, not started
	TaskPlanning      Task = "planning"       // query being mapped to an action
	TaskExecuting     Task = "executing"      // browser steps in progress
	TaskPausedCaptcha Task = "paused_captcha" // waiting for a human to solve a challenge
	TaskCompleted     Task = "completed"      // finished successfully
	TaskFailed        Task = "failed"         // finished with error
)

// Challenge represents the state of the CAPTCHA pause cycle
// @Description Challenge state
// @enum clear,paused,resolved,timed_out
type Challenge string

const (
	ChallengeClear    Challenge = "clear"     // no challenge on the page
	ChallengePaused   Challenge = "paused"    // challenge detected, execution paused
	ChallengeResolved Challenge = "resolved"  // human solved it, confirmed gone
	ChallengeTimedOut Challenge = "timed_out" // wait budget exhausted
)

// AllTaskStatuses returns all valid task statuses
func AllTaskStatuses() []Task {
	return []Task{TaskPending, TaskPlanning, TaskExecuting, TaskPausedCaptcha, TaskCompleted, TaskFailed}
}

// IsTerminal returns true if the task status is terminal (no further transitions)
func (t Task) IsTerminal() bool {
	return t == TaskCompleted || t == TaskFailed
}

// IsActive returns true if the task is still making progress
func (t Task) IsActive() bool {
	return t == TaskPending || t == TaskPlanning || t == TaskExecuting || t == TaskPausedCaptcha
}

// IsTerminal returns true if the challenge state is terminal for this pause cycle
func (c Challenge) IsTerminal() bool {
	return c == ChallengeResolved || c == ChallengeTimedOut
}
