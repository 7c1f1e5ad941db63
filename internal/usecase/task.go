package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/webpilot/backend/internal/agent"
	"github.com/webpilot/backend/internal/browser"
	"github.com/webpilot/backend/internal/config"
	"github.com/webpilot/backend/internal/events"
	"github.com/webpilot/backend/internal/extractor"
	"github.com/webpilot/backend/internal/fallback"
	"github.com/webpilot/backend/internal/planner"
	"github.com/webpilot/backend/internal/repo"
	"github.com/webpilot/backend/pkg/logger"
	"github.com/webpilot/backend/pkg/meili"
	"github.com/webpilot/backend/pkg/oracle"
	"github.com/webpilot/backend/pkg/status"
)

const sideEffectTimeout = 5 * time.Second

// Request is one task to execute
type Request struct {
	Query   string `json:"query"`
	AgentID string `json:"agent_id,omitempty"`
	UserID  string `json:"user_id,omitempty"`
}

// Outcome is the full answer for one executed task
type Outcome struct {
	OverallSuccess   bool             `json:"overall_success"`
	Status           status.Task      `json:"status"`
	Query            string           `json:"query"`
	AgentID          string           `json:"agent_id"`
	WorkstreamID     string           `json:"workstream_id,omitempty"`
	Steps            []agent.Step     `json:"steps"`
	CaptchaURLs      []string         `json:"captcha_urls,omitempty"`
	ChallengePending bool             `json:"challenge_pending,omitempty"`
	Final            agent.TaskResult `json:"final"`
	ElapsedMs        int64            `json:"elapsed_ms"`
}

// Task runs queries end to end: browser lifecycle, orchestration,
// outcome shaping and best-effort persistence. External services are
// all optional; a nil dependency just skips its side effect.
type Task struct {
	cfg     *config.Config
	gem     *oracle.Gemini
	streams *repo.WorkstreamRepo
	search  *meili.Client
	bus     *events.Publisher
}

func NewTask(cfg *config.Config, gem *oracle.Gemini, streams *repo.WorkstreamRepo, search *meili.Client, bus *events.Publisher) *Task {
	return &Task{cfg: cfg, gem: gem, streams: streams, search: search, bus: bus}
}

// Execute runs one task. The browser is launched per task and closed
// afterwards unless a challenge is still waiting for a human: that
// window stays open so the task can be retried after solving it.
func (u *Task) Execute(ctx context.Context, req Request) (*Outcome, error) {
	log := logger.With("usecase")
	started := time.Now()

	query := strings.TrimSpace(req.Query)
	if query == "" {
		return nil, fmt.Errorf("query is empty")
	}

	agentID := req.AgentID
	if agentID == "" {
		agentID = "agent_" + uuid.NewString()[:8]
	}

	st := advance(status.TaskPending, status.TaskPlanning)

	session := browser.NewSession(browser.Config{
		Headless:   u.cfg.BrowserHeadless,
		NavTimeout: u.cfg.NavTimeout,
		NavRate:    u.cfg.NavRate,
		NavBurst:   u.cfg.NavBurst,
	})
	if err := session.Launch(ctx); err != nil {
		advance(st, status.TaskFailed)
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	st = advance(st, status.TaskExecuting)

	orc := agent.New(session, planner.New(u.planOracle()), fallback.New(u.fallbackOracle()), u.textOracle(), agent.Config{
		MaxResults:          u.cfg.MaxResults,
		MaxEnrich:           u.cfg.MaxEnrich,
		MaxContentLength:    u.cfg.MaxContentLength,
		CaptchaPollInterval: u.cfg.CaptchaPollInterval,
		CaptchaWaitTimeout:  u.cfg.CaptchaWaitTimeout,
	})

	trace := orc.Run(ctx, query)

	final := trace.Final()
	overall := final.Success && final.Error != agent.ErrCaptchaDetected

	switch {
	case overall:
		st = advance(st, status.TaskCompleted)
	case trace.ChallengePending:
		st = advance(st, status.TaskPausedCaptcha)
		st = advance(st, status.TaskFailed)
	default:
		st = advance(st, status.TaskFailed)
	}

	// keep the window open only while a human still has a challenge to
	// solve on it
	session.Close(overall)

	outcome := &Outcome{
		OverallSuccess:   overall,
		Status:           st,
		Query:            query,
		AgentID:          agentID,
		Steps:            trace.Steps,
		CaptchaURLs:      trace.CaptchaURLs,
		ChallengePending: trace.ChallengePending,
		Final:            final,
		ElapsedMs:        time.Since(started).Milliseconds(),
	}

	if overall {
		u.persist(outcome, req.UserID, trace)
	}

	log.Info().
		Str("agent_id", agentID).
		Bool("overall_success", overall).
		Int("steps", len(outcome.Steps)).
		Int64("elapsed_ms", outcome.ElapsedMs).
		Msg("task executed")

	return outcome, nil
}

// persist runs the best-effort side effects: workstream history,
// report indexing and the result event. Failures are logged, never
// surfaced to the caller.
func (u *Task) persist(outcome *Outcome, userID string, trace *agent.Trace) {
	log := logger.With("usecase")

	ctx, cancel := context.WithTimeout(context.Background(), sideEffectTimeout)
	defer cancel()

	if u.streams != nil {
		ws := &repo.Workstream{
			ID:      repo.NewWorkstreamID(),
			AgentID: outcome.AgentID,
			UserID:  userID,
			Query:   outcome.Query,
			Status:  string(outcome.Status),
			Steps:   stepsToBSON(outcome.Steps),
		}
		if err := u.streams.Upsert(ctx, ws); err != nil {
			log.Warn().Err(err).Msg("workstream not persisted")
		} else {
			outcome.WorkstreamID = ws.ID
		}
	}

	if u.search != nil {
		docs := collectReports(trace, outcome)
		if err := u.search.IndexReports(docs); err != nil {
			log.Warn().Err(err).Int("docs", len(docs)).Msg("reports not indexed")
		}
	}

	if u.bus != nil {
		if err := u.bus.PublishTaskResult(ctx, outcome); err != nil {
			log.Warn().Err(err).Msg("result event not published")
		}
	}
}

const (
	defaultReportLimit = 10
	maxReportLimit     = 50
)

// SearchReports queries the indexed page reports. An empty query with
// an agent filter returns that agent's most recent reports.
func (u *Task) SearchReports(query, agentID string, limit int64) (*meili.SearchResult, error) {
	if u.search == nil {
		return nil, fmt.Errorf("report index is not configured")
	}
	if limit <= 0 || limit > maxReportLimit {
		limit = defaultReportLimit
	}

	query = strings.TrimSpace(query)
	if query == "" && agentID != "" {
		return u.search.ReportsByAgent(agentID, limit)
	}

	var filter string
	if agentID != "" {
		filter = fmt.Sprintf("agent_id = %q", agentID)
	}
	return u.search.SearchReports(query, filter, limit)
}

// DeleteReport removes a single report from the index
func (u *Task) DeleteReport(id string) error {
	if u.search == nil {
		return fmt.Errorf("report index is not configured")
	}
	return u.search.DeleteReport(id)
}

// DeleteTaskReports removes every report a task indexed
func (u *Task) DeleteTaskReports(taskID string) error {
	if u.search == nil {
		return fmt.Errorf("report index is not configured")
	}
	return u.search.DeleteByTaskID(taskID)
}

func (u *Task) planOracle() planner.Oracle {
	if u.gem == nil {
		return nil
	}
	return u.gem
}

func (u *Task) fallbackOracle() fallback.Oracle {
	if u.gem == nil {
		return nil
	}
	return u.gem
}

func (u *Task) textOracle() agent.TextOracle {
	if u.gem == nil {
		return nil
	}
	return u.gem
}

func advance(from, to status.Task) status.Task {
	if !status.CanTaskTransition(from, to) {
		logger.Log.Debug().
			Str("from", string(from)).
			Str("to", string(to)).
			Msg("forcing task status transition")
	}
	return to
}

func stepsToBSON(steps []agent.Step) []bson.M {
	out := make([]bson.M, 0, len(steps))
	for _, s := range steps {
		raw, err := bson.Marshal(struct {
			Step    string           `bson:"step"`
			Success bool             `bson:"success"`
			Result  agent.TaskResult `bson:"result"`
		}{s.Step, s.Success, s.Result})
		if err != nil {
			continue
		}
		var m bson.M
		if err := bson.Unmarshal(raw, &m); err != nil {
			continue
		}
		out = append(out, m)
	}
	return out
}

// collectReports pulls every page report out of the trace for indexing
func collectReports(trace *agent.Trace, outcome *Outcome) []meili.ReportDocument {
	taskID := outcome.WorkstreamID
	if taskID == "" {
		taskID = "task_" + uuid.NewString()[:8]
	}

	var docs []meili.ReportDocument
	add := func(r *extractor.PageReport) {
		if r == nil {
			return
		}
		docs = append(docs, meili.ReportDocument{
			ID:          uuid.NewString(),
			TaskID:      taskID,
			AgentID:     outcome.AgentID,
			Query:       outcome.Query,
			URL:         r.URL,
			Title:       r.Title,
			Description: r.Description,
			MainText:    r.MainText,
			KeyPoints:   r.KeyPoints,
			IndexedAt:   time.Now().UTC().Format(time.RFC3339),
		})
	}

	for _, step := range trace.Steps {
		extras := step.Result.Data.Extras
		if extras == nil {
			continue
		}
		if r, ok := extras["report"].(*extractor.PageReport); ok {
			add(r)
		}
		if list, ok := extras["detailed_results"].([]*extractor.PageReport); ok {
			for _, r := range list {
				add(r)
			}
		}
	}
	return docs
}
