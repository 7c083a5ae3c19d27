package browser

import (
	"context"
)

// Engine starts browser contexts bound to an on-disk profile.
type Engine interface {
	Launch(ctx context.Context, opts LaunchOptions) (Context, error)
}

// Context is a running browser bound to one user-data directory. Cookies and
// extra headers are context-wide.
type Context interface {
	Pages(ctx context.Context) ([]Page, error)
	NewPage(ctx context.Context) (Page, error)
	Cookies(ctx context.Context) ([]Cookie, error)
	AddCookies(ctx context.Context, cookies []Cookie) error
	SetExtraHeaders(ctx context.Context, headers map[string]string) error
	Close() error
}

// Page is a single tab inside a Context. Blocking calls honour ctx.
type Page interface {
	Navigate(ctx context.Context, url string, opts NavigateOptions) error
	Content(ctx context.Context) (string, error)
	Screenshot(ctx context.Context, fullPage bool) ([]byte, error)

	// WaitForSelector blocks until selector is attached to the DOM.
	WaitForSelector(ctx context.Context, selector string) error
	Click(ctx context.Context, selector string) error
	Fill(ctx context.Context, selector, text string) error
	TextContent(ctx context.Context, selector string) (string, error)

	// Evaluate runs script as an expression in the page and returns its
	// JSON-compatible value.
	Evaluate(ctx context.Context, script string) (any, error)

	Back(ctx context.Context) error
	Forward(ctx context.Context) error
	Reload(ctx context.Context) error
}
