package automation

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync/atomic"
	"time"

	"github.com/harun/browserd/internal/metrics"
	"github.com/harun/browserd/internal/observability"
	"github.com/harun/browserd/internal/tracing"
	"github.com/harun/browserd/pkg/browser"
	"github.com/harun/browserd/pkg/session"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
)

const tracerName = "browserd.automation"

// Operation names used for metrics, spans and logs
const (
	OpNavigate   = "navigate"
	OpContent    = "content"
	OpScreenshot = "screenshot"
	OpClick      = "click"
	OpType       = "type"
	OpText       = "text"
	OpEvaluate   = "evaluate"
	OpBack       = "back"
	OpForward    = "forward"
	OpReload     = "reload"
	OpSetHeaders = "set_headers"
	OpCookies    = "get_cookies"
	OpSetCookies = "set_cookies"
)

// Resolver looks up live sessions
type Resolver interface {
	Resolve(id string) (*session.Record, error)
}

// Defaults holds the timeouts applied when a call does not carry its own
type Defaults struct {
	NavigationTimeout time.Duration
	WaitUntil         browser.WaitUntil
	SelectorTimeout   time.Duration
	TextTimeout       time.Duration
	// ActionTimeout bounds the element lookup of click, type and text, which
	// still happens when the selector wait is turned off.
	ActionTimeout time.Duration
}

// DefaultDefaults returns the stock timeouts
func DefaultDefaults() Defaults {
	return Defaults{
		NavigationTimeout: 30 * time.Second,
		WaitUntil:         browser.WaitDOMContentLoaded,
		SelectorTimeout:   5 * time.Second,
		TextTimeout:       5 * time.Second,
		ActionTimeout:     30 * time.Second,
	}
}

// NavigateOptions are the per-call navigation overrides. Timeout is in
// milliseconds.
type NavigateOptions struct {
	WaitUntil string `json:"waitUntil,omitempty"`
	Timeout   int64  `json:"timeout,omitempty"`
}

// ActionOptions control the selector wait before click and type. Wait
// defaults to true, Timeout is in milliseconds.
type ActionOptions struct {
	Wait    *bool `json:"wait,omitempty"`
	Timeout int64 `json:"timeout,omitempty"`
}

// ScreenshotOptions selects the capture area
type ScreenshotOptions struct {
	FullPage bool
}

// ServiceOptions configures a Service
type ServiceOptions struct {
	Sessions Resolver
	Policy   Policy
	Defaults Defaults
	Logger   zerolog.Logger
	Metrics  *metrics.Metrics
	Audit    *observability.AuditLogger
}

// Service validates automation calls and forwards them to the page or
// context of the addressed session.
type Service struct {
	sessions Resolver
	policy   atomic.Pointer[Policy]
	defaults Defaults
	logger   zerolog.Logger
	metrics  *metrics.Metrics
	audit    *observability.AuditLogger
}

// NewService creates a Service
func NewService(opts ServiceOptions) (*Service, error) {
	if opts.Sessions == nil {
		return nil, errors.New("session resolver is required")
	}
	if err := opts.Policy.Validate(); err != nil {
		return nil, err
	}

	defaults := DefaultDefaults()
	if opts.Defaults.NavigationTimeout > 0 {
		defaults.NavigationTimeout = opts.Defaults.NavigationTimeout
	}
	if opts.Defaults.WaitUntil != "" {
		defaults.WaitUntil = opts.Defaults.WaitUntil
	}
	if opts.Defaults.SelectorTimeout > 0 {
		defaults.SelectorTimeout = opts.Defaults.SelectorTimeout
	}
	if opts.Defaults.TextTimeout > 0 {
		defaults.TextTimeout = opts.Defaults.TextTimeout
	}
	if opts.Defaults.ActionTimeout > 0 {
		defaults.ActionTimeout = opts.Defaults.ActionTimeout
	}

	s := &Service{
		sessions: opts.Sessions,
		defaults: defaults,
		logger:   opts.Logger.With().Str("component", "automation").Logger(),
		metrics:  opts.Metrics,
		audit:    opts.Audit,
	}
	policy := opts.Policy
	s.policy.Store(&policy)
	return s, nil
}

// SetPolicy replaces the URL policy for subsequent navigations
func (s *Service) SetPolicy(p Policy) error {
	if err := p.Validate(); err != nil {
		return err
	}
	s.policy.Store(&p)
	s.logger.Info().
		Int("allowed_domains", len(p.AllowedDomains)).
		Int("blocked_domains", len(p.BlockedDomains)).
		Bool("block_localhost", p.BlockLocalhost).
		Msg("URL policy updated")
	return nil
}

// Policy returns the policy currently in force
func (s *Service) Policy() Policy {
	return *s.policy.Load()
}

// run resolves id and invokes fn inside a span, recording the outcome
func (s *Service) run(ctx context.Context, op, id string, fn func(ctx context.Context, rec *session.Record) error) (err error) {
	start := time.Now()
	ctx = tracing.WithOperation(tracing.WithSessionID(ctx, id), op)
	ctx, span := tracing.StartSpan(ctx, tracerName, "automation."+op,
		attribute.String("session_id", id),
		attribute.String("operation", op),
	)
	defer func() {
		tracing.EndSpan(span, err)
		s.observe(ctx, op, start, err)
	}()

	rec, err := s.sessions.Resolve(id)
	if err != nil {
		return err
	}
	return fn(ctx, rec)
}

func (s *Service) observe(ctx context.Context, op string, start time.Time, err error) {
	duration := time.Since(start)
	status := "ok"
	if err != nil {
		status = strings.ToLower(browser.CodeOf(err))
	}
	s.metrics.RecordOperation(op, status, duration)

	logger := tracing.LoggerFromContext(ctx, s.logger)
	if err != nil {
		level := zerolog.WarnLevel
		if browser.IsCode(err, browser.ErrCodeEngineFailure) {
			level = zerolog.ErrorLevel
		}
		logger.WithLevel(level).Err(err).Str("status", status).Dur("duration", duration).Msg("Operation failed")
		return
	}
	logger.Debug().Dur("duration", duration).Msg("Operation completed")
}

// Navigate loads rawURL, which must be an http(s) string permitted by the
// policy, in the session's page.
func (s *Service) Navigate(ctx context.Context, id string, rawURL any, opts NavigateOptions) error {
	return s.run(ctx, OpNavigate, id, func(ctx context.Context, rec *session.Record) error {
		target, ok := rawURL.(string)
		if !ok {
			return browser.InvalidArgument("Invalid URL. Use http(s) URL.")
		}

		violation, err := s.policy.Load().Check(target)
		if err != nil {
			if violation != nil {
				s.audit.Security(ctx, violation.Kind, id, "blocked", map[string]interface{}{
					"url":  violation.URL,
					"host": violation.Host,
				})
			}
			return err
		}

		navOpts, err := s.navigateOptions(opts)
		if err != nil {
			return err
		}

		if err := rec.Page.Navigate(ctx, target, navOpts); err != nil {
			return browser.EngineError("navigate", err)
		}
		return nil
	})
}

func (s *Service) navigateOptions(opts NavigateOptions) (browser.NavigateOptions, error) {
	out := browser.NavigateOptions{
		WaitUntil: s.defaults.WaitUntil,
		Timeout:   s.defaults.NavigationTimeout,
	}
	if opts.WaitUntil != "" {
		wait, ok := browser.ParseWaitUntil(opts.WaitUntil)
		if !ok {
			return out, browser.InvalidArgument("Invalid wait condition: %s (must be 'load', 'domcontentloaded', 'networkidle' or 'commit')", opts.WaitUntil)
		}
		out.WaitUntil = wait
	}
	if opts.Timeout < 0 {
		return out, browser.InvalidArgument("timeout must not be negative")
	}
	if opts.Timeout > 0 {
		out.Timeout = time.Duration(opts.Timeout) * time.Millisecond
	}
	return out, nil
}

// Content returns the serialized HTML of the session's page
func (s *Service) Content(ctx context.Context, id string) (string, error) {
	var html string
	err := s.run(ctx, OpContent, id, func(ctx context.Context, rec *session.Record) error {
		var err error
		html, err = rec.Page.Content(ctx)
		if err != nil {
			return browser.EngineError("get content", err)
		}
		return nil
	})
	return html, err
}

// Screenshot captures the page as PNG
func (s *Service) Screenshot(ctx context.Context, id string, opts ScreenshotOptions) ([]byte, error) {
	var img []byte
	err := s.run(ctx, OpScreenshot, id, func(ctx context.Context, rec *session.Record) error {
		var err error
		img, err = rec.Page.Screenshot(ctx, opts.FullPage)
		if err != nil {
			return browser.EngineError("screenshot", err)
		}
		return nil
	})
	return img, err
}

// waitFor blocks until selector is attached unless opts disables waiting
func (s *Service) waitFor(ctx context.Context, page browser.Page, selector string, opts ActionOptions) error {
	if opts.Wait != nil && !*opts.Wait {
		return nil
	}
	if opts.Timeout < 0 {
		return browser.InvalidArgument("timeout must not be negative")
	}
	timeout := s.defaults.SelectorTimeout
	if opts.Timeout > 0 {
		timeout = time.Duration(opts.Timeout) * time.Millisecond
	}
	return s.waitWithin(ctx, page, selector, timeout)
}

func (s *Service) waitWithin(ctx context.Context, page browser.Page, selector string, timeout time.Duration) error {
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := page.WaitForSelector(waitCtx, selector); err != nil {
		return browser.EngineError("wait for selector", err)
	}
	return nil
}

// actionContext bounds the action itself by the per-call timeout, or the
// default action timeout when the call has none.
func (s *Service) actionContext(ctx context.Context, opts ActionOptions) (context.Context, context.CancelFunc) {
	timeout := s.defaults.ActionTimeout
	if opts.Timeout > 0 {
		timeout = time.Duration(opts.Timeout) * time.Millisecond
	}
	return context.WithTimeout(ctx, timeout)
}

// Click clicks the first element matching selector
func (s *Service) Click(ctx context.Context, id, selector string, opts ActionOptions) error {
	return s.run(ctx, OpClick, id, func(ctx context.Context, rec *session.Record) error {
		if selector == "" {
			return browser.InvalidArgument("Selector is required for click")
		}
		if err := s.waitFor(ctx, rec.Page, selector, opts); err != nil {
			return err
		}
		actCtx, cancel := s.actionContext(ctx, opts)
		defer cancel()
		if err := rec.Page.Click(actCtx, selector); err != nil {
			return browser.EngineError("click", err)
		}
		return nil
	})
}

// Type replaces the value of the field matching selector with text
func (s *Service) Type(ctx context.Context, id, selector, text string, opts ActionOptions) error {
	return s.run(ctx, OpType, id, func(ctx context.Context, rec *session.Record) error {
		if selector == "" {
			return browser.InvalidArgument("Selector is required for type")
		}
		if err := s.waitFor(ctx, rec.Page, selector, opts); err != nil {
			return err
		}
		actCtx, cancel := s.actionContext(ctx, opts)
		defer cancel()
		if err := rec.Page.Fill(actCtx, selector, text); err != nil {
			return browser.EngineError("type", err)
		}
		return nil
	})
}

// Text returns the text content of the first element matching selector,
// waiting for it to appear first.
func (s *Service) Text(ctx context.Context, id, selector string) (string, error) {
	var text string
	err := s.run(ctx, OpText, id, func(ctx context.Context, rec *session.Record) error {
		if selector == "" {
			return browser.InvalidArgument("Selector is required for getText")
		}
		if err := s.waitWithin(ctx, rec.Page, selector, s.defaults.TextTimeout); err != nil {
			return err
		}
		actCtx, cancel := s.actionContext(ctx, ActionOptions{})
		defer cancel()
		var err error
		text, err = rec.Page.TextContent(actCtx, selector)
		if err != nil {
			return browser.EngineError("get text", err)
		}
		return nil
	})
	return text, err
}

// Evaluate runs script in the page and returns its JSON-compatible result
func (s *Service) Evaluate(ctx context.Context, id string, script any) (any, error) {
	var result any
	err := s.run(ctx, OpEvaluate, id, func(ctx context.Context, rec *session.Record) error {
		src, ok := script.(string)
		if !ok {
			return browser.InvalidArgument("Script must be a string")
		}
		var err error
		result, err = rec.Page.Evaluate(ctx, src)
		if err != nil {
			return browser.EngineError("evaluate", err)
		}
		return nil
	})
	return result, err
}

// Back navigates one step back in history
func (s *Service) Back(ctx context.Context, id string) error {
	return s.run(ctx, OpBack, id, func(ctx context.Context, rec *session.Record) error {
		if err := rec.Page.Back(ctx); err != nil {
			return browser.EngineError("go back", err)
		}
		return nil
	})
}

// Forward navigates one step forward in history
func (s *Service) Forward(ctx context.Context, id string) error {
	return s.run(ctx, OpForward, id, func(ctx context.Context, rec *session.Record) error {
		if err := rec.Page.Forward(ctx); err != nil {
			return browser.EngineError("go forward", err)
		}
		return nil
	})
}

// Reload reloads the current page
func (s *Service) Reload(ctx context.Context, id string) error {
	return s.run(ctx, OpReload, id, func(ctx context.Context, rec *session.Record) error {
		if err := rec.Page.Reload(ctx); err != nil {
			return browser.EngineError("reload", err)
		}
		return nil
	})
}

// SetHeaders replaces the extra headers sent with every request of the
// session. A nil map clears them.
func (s *Service) SetHeaders(ctx context.Context, id string, headers map[string]string) error {
	return s.run(ctx, OpSetHeaders, id, func(ctx context.Context, rec *session.Record) error {
		if headers == nil {
			headers = map[string]string{}
		}
		if err := rec.Context.SetExtraHeaders(ctx, headers); err != nil {
			return browser.EngineError("set headers", err)
		}
		return nil
	})
}

// Cookies returns every cookie in the session's browser context
func (s *Service) Cookies(ctx context.Context, id string) ([]browser.Cookie, error) {
	var cookies []browser.Cookie
	err := s.run(ctx, OpCookies, id, func(ctx context.Context, rec *session.Record) error {
		var err error
		cookies, err = rec.Context.Cookies(ctx)
		if err != nil {
			return browser.EngineError("get cookies", err)
		}
		return nil
	})
	if cookies == nil && err == nil {
		cookies = []browser.Cookie{}
	}
	return cookies, err
}

// SetCookies adds cookies to the session's browser context. cookies may be a
// []browser.Cookie, a decoded JSON array or raw JSON; anything that is not an
// array is rejected before the browser is touched.
func (s *Service) SetCookies(ctx context.Context, id string, cookies any) error {
	return s.run(ctx, OpSetCookies, id, func(ctx context.Context, rec *session.Record) error {
		list, err := decodeCookies(cookies)
		if err != nil {
			return err
		}
		if err := rec.Context.AddCookies(ctx, list); err != nil {
			return browser.EngineError("set cookies", err)
		}
		return nil
	})
}

func decodeCookies(v any) ([]browser.Cookie, error) {
	notArray := browser.InvalidArgument("cookies must be an array")

	var raw []byte
	switch c := v.(type) {
	case []browser.Cookie:
		return c, nil
	case json.RawMessage:
		raw = c
	case []byte:
		raw = c
	case []any:
		b, err := json.Marshal(c)
		if err != nil {
			return nil, notArray
		}
		raw = b
	default:
		return nil, notArray
	}

	trimmed := strings.TrimSpace(string(raw))
	if !strings.HasPrefix(trimmed, "[") {
		return nil, notArray
	}

	var list []browser.Cookie
	if err := json.Unmarshal([]byte(trimmed), &list); err != nil {
		return nil, browser.InvalidArgument("invalid cookie: %v", err)
	}
	return list, nil
}
