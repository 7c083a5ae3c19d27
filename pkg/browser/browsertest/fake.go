// Package browsertest provides an in-memory browser.Engine for tests.
package browsertest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/harun/browserd/pkg/browser"
)

// Engine records every launch and hands out in-memory contexts.
type Engine struct {
	mu        sync.Mutex
	launches  []browser.LaunchOptions
	contexts  []*Context
	LaunchErr error
	// PageErr makes the first page lookup of every new context fail.
	PageErr error
	// CloseErr is returned by Close on every context launched afterwards.
	CloseErr error
	// LaunchHook runs inside Launch before the context is returned.
	LaunchHook func()
	// CloseHook runs at the start of Close on every context launched afterwards.
	CloseHook func()
}

// NewEngine creates an engine with no failures configured
func NewEngine() *Engine {
	return &Engine{}
}

func (e *Engine) Launch(ctx context.Context, opts browser.LaunchOptions) (browser.Context, error) {
	if hook := e.LaunchHook; hook != nil {
		hook()
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.launches = append(e.launches, opts)
	if e.LaunchErr != nil {
		return nil, browser.EngineError("launch chrome", e.LaunchErr)
	}

	c := &Context{
		Options:   opts,
		closeErr:  e.CloseErr,
		closeHook: e.CloseHook,
		pageErr:   e.PageErr,
		headers:   map[string]string{},
	}
	c.pages = []*Page{newPage()}
	e.contexts = append(e.contexts, c)
	return c, nil
}

// LaunchCount returns how many times Launch was called
func (e *Engine) LaunchCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.launches)
}

// Launches returns the options passed to each Launch call
func (e *Engine) Launches() []browser.LaunchOptions {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]browser.LaunchOptions(nil), e.launches...)
}

// Contexts returns every context created so far
func (e *Engine) Contexts() []*Context {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]*Context(nil), e.contexts...)
}

// Context is an in-memory browser context
type Context struct {
	Options browser.LaunchOptions

	mu       sync.Mutex
	pages    []*Page
	cookies  []browser.Cookie
	headers  map[string]string
	closed    bool
	closeErr  error
	closeHook func()
	pageErr   error
}

func (c *Context) Pages(ctx context.Context) ([]browser.Page, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.pageErr != nil {
		err := c.pageErr
		c.pageErr = nil
		return nil, browser.EngineError("list pages", err)
	}
	result := make([]browser.Page, 0, len(c.pages))
	for _, p := range c.pages {
		result = append(result, p)
	}
	return result, nil
}

func (c *Context) NewPage(ctx context.Context) (browser.Page, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	p := newPage()
	c.pages = append(c.pages, p)
	return p, nil
}

func (c *Context) Cookies(ctx context.Context) ([]browser.Cookie, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]browser.Cookie{}, c.cookies...), nil
}

func (c *Context) AddCookies(ctx context.Context, cookies []browser.Cookie) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cookies = append(c.cookies, cookies...)
	return nil
}

func (c *Context) SetExtraHeaders(ctx context.Context, headers map[string]string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.headers = make(map[string]string, len(headers))
	for k, v := range headers {
		c.headers[k] = v
	}
	return nil
}

func (c *Context) Close() error {
	if c.closeHook != nil {
		c.closeHook()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	if c.closeErr != nil {
		return browser.EngineError("close browser", c.closeErr)
	}
	return nil
}

// Closed reports whether Close was called
func (c *Context) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Headers returns the extra headers last set
func (c *Context) Headers() map[string]string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]string, len(c.headers))
	for k, v := range c.headers {
		out[k] = v
	}
	return out
}

// FirstPage returns the page a new context opens with
func (c *Context) FirstPage() *Page {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pages[0]
}

// PageCount returns how many pages the context holds
func (c *Context) PageCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pages)
}

// Navigation is one recorded Navigate call
type Navigation struct {
	URL     string
	Options browser.NavigateOptions
}

// Page is an in-memory page. Registered elements map selectors to their text.
type Page struct {
	mu          sync.Mutex
	url         string
	history     []string
	pos         int
	elements    map[string]string
	values      map[string]string
	navigations []Navigation
	clicks      []string
	waits       map[string]time.Duration
	reloads     int
	// EvalFunc answers Evaluate, the default echoes the script.
	EvalFunc func(script string) (any, error)
}

func newPage() *Page {
	return &Page{
		url:      "about:blank",
		history:  []string{"about:blank"},
		elements: map[string]string{},
		values:   map[string]string{},
		waits:    map[string]time.Duration{},
	}
}

func (p *Page) Navigate(ctx context.Context, url string, opts browser.NavigateOptions) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.navigations = append(p.navigations, Navigation{URL: url, Options: opts})
	p.history = append(p.history[:p.pos+1], url)
	p.pos = len(p.history) - 1
	p.url = url
	return nil
}

func (p *Page) Content(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return fmt.Sprintf("<html><head><title>%s</title></head><body></body></html>", p.url), nil
}

// pngHeader is the eight byte PNG signature
var pngHeader = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}

func (p *Page) Screenshot(ctx context.Context, fullPage bool) ([]byte, error) {
	data := append([]byte{}, pngHeader...)
	if fullPage {
		data = append(data, 'F')
	}
	return data, nil
}

func (p *Page) WaitForSelector(ctx context.Context, selector string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if deadline, ok := ctx.Deadline(); ok {
		p.waits[selector] = time.Until(deadline)
	} else {
		p.waits[selector] = 0
	}

	if _, ok := p.elements[selector]; !ok {
		return browser.EngineError(fmt.Sprintf("wait for selector %q", selector), context.DeadlineExceeded)
	}
	return nil
}

// element polls for selector until ctx is done, like a real page retrying
// its lookup. Without a deadline it looks once.
func (p *Page) element(ctx context.Context, selector string) (string, error) {
	for {
		p.mu.Lock()
		text, ok := p.elements[selector]
		p.mu.Unlock()
		if ok {
			return text, nil
		}

		if _, hasDeadline := ctx.Deadline(); !hasDeadline {
			return "", browser.EngineError(fmt.Sprintf("find element %q", selector), errors.New("element not found"))
		}
		select {
		case <-ctx.Done():
			return "", browser.EngineError(fmt.Sprintf("find element %q", selector), ctx.Err())
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func (p *Page) Click(ctx context.Context, selector string) error {
	if _, err := p.element(ctx, selector); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.clicks = append(p.clicks, selector)
	return nil
}

func (p *Page) Fill(ctx context.Context, selector, text string) error {
	if _, err := p.element(ctx, selector); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.values[selector] = text
	return nil
}

func (p *Page) TextContent(ctx context.Context, selector string) (string, error) {
	return p.element(ctx, selector)
}

func (p *Page) Evaluate(ctx context.Context, script string) (any, error) {
	if p.EvalFunc != nil {
		return p.EvalFunc(script)
	}
	return script, nil
}

func (p *Page) Back(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.pos > 0 {
		p.pos--
		p.url = p.history[p.pos]
	}
	return nil
}

func (p *Page) Forward(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.pos < len(p.history)-1 {
		p.pos++
		p.url = p.history[p.pos]
	}
	return nil
}

func (p *Page) Reload(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reloads++
	return nil
}

// URL returns the current address
func (p *Page) URL() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.url
}

// Navigations returns the recorded Navigate calls
func (p *Page) Navigations() []Navigation {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Navigation(nil), p.navigations...)
}

// Clicks returns the selectors clicked so far
func (p *Page) Clicks() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.clicks...)
}

// Value returns what Fill last wrote into selector
func (p *Page) Value(selector string) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.values[selector]
}

// WaitedFor reports whether WaitForSelector ran for selector and the time
// left on its deadline at that point.
func (p *Page) WaitedFor(selector string) (time.Duration, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	d, ok := p.waits[selector]
	return d, ok
}

// Reloads returns the reload count
func (p *Page) Reloads() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.reloads
}

// SetElement registers selector with its text content
func (p *Page) SetElement(selector, text string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.elements[selector] = text
}
