package status

import "slices"

// TaskTransitions defines valid state transitions for tasks
// Key is the current state, value is a list of valid next states
var TaskTransitions = map[Task][]Task{
	TaskPending:       {TaskPlanning, TaskFailed},
	TaskPlanning:      {TaskExecuting, TaskFailed},
	TaskExecuting:     {TaskPausedCaptcha, TaskCompleted, TaskFailed},
	TaskPausedCaptcha: {TaskExecuting, TaskFailed}, // resolved resumes, timeout may still fall back
	TaskCompleted:     {},                          // terminal state
	TaskFailed:        {},                          // terminal state
}

// ChallengeTransitions defines valid state transitions for a pause cycle
var ChallengeTransitions = map[Challenge][]Challenge{
	ChallengeClear:    {ChallengePaused},
	ChallengePaused:   {ChallengeResolved, ChallengeTimedOut},
	ChallengeResolved: {ChallengeClear},  // next detection starts a fresh cycle
	ChallengeTimedOut: {ChallengeClear},  // fallback ladder resets the cycle
}

// CanTaskTransition checks if a task status transition is valid
func CanTaskTransition(from, to Task) bool {
	allowed, ok := TaskTransitions[from]
	if !ok {
		return false
	}
	return slices.Contains(allowed, to)
}

// CanChallengeTransition checks if a challenge state transition is valid
func CanChallengeTransition(from, to Challenge) bool {
	allowed, ok := ChallengeTransitions[from]
	if !ok {
		return false
	}
	return slices.Contains(allowed, to)
}
