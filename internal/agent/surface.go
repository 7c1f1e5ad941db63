package agent

import "context"

// Surface is what the orchestrator needs from a browser. The production
// implementation is internal/browser.Session; tests script it.
type Surface interface {
	Launch(ctx context.Context) error
	Close(force bool)
	SetChallengePending(pending bool)
	ChallengePending() bool

	Navigate(ctx context.Context, url string) (finalURL string, err error)
	WaitLoaded(ctx context.Context)
	NewTab(ctx context.Context) error
	CloseTab()

	Title(ctx context.Context) (string, error)
	URL(ctx context.Context) (string, error)
	HTML(ctx context.Context) (string, error)
	Text(ctx context.Context) (string, error)

	Find(ctx context.Context, selectors ...string) (string, error)
	Fill(ctx context.Context, selector, value string) error
	PressEnter(ctx context.Context, selector string) error

	HasChallenge(ctx context.Context) bool
}

// TextOracle is the optional free-text reasoning backend used for issue
// diagnosis and page summaries.
type TextOracle interface {
	GenerateText(ctx context.Context, system, prompt string) (string, error)
}
