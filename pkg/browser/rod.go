package browser

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/rs/zerolog"
)

// rodContext is a Chrome process plus its CDP connection
type rodContext struct {
	browser  *rod.Browser
	launcher *launcher.Launcher
	logger   zerolog.Logger

	userAgent string
	viewport  Viewport

	mu      sync.RWMutex
	headers []string
}

func (c *rodContext) Pages(ctx context.Context) ([]Page, error) {
	pages, err := c.browser.Context(ctx).Pages()
	if err != nil {
		return nil, EngineError("list pages", err)
	}

	result := make([]Page, 0, len(pages))
	for _, p := range pages {
		if err := c.preparePage(p); err != nil {
			return nil, err
		}
		result = append(result, &rodPage{page: p})
	}
	return result, nil
}

func (c *rodContext) NewPage(ctx context.Context) (Page, error) {
	p, err := c.browser.Context(ctx).Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, EngineError("create page", err)
	}
	if err := c.preparePage(p); err != nil {
		_ = p.Close()
		return nil, err
	}
	return &rodPage{page: p}, nil
}

// preparePage applies the context-wide overrides to a page
func (c *rodContext) preparePage(p *rod.Page) error {
	if c.userAgent != "" {
		if err := p.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: c.userAgent}); err != nil {
			return EngineError("set user agent", err)
		}
	}

	if !c.viewport.IsZero() {
		err := p.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
			Width:             c.viewport.Width,
			Height:            c.viewport.Height,
			DeviceScaleFactor: 1,
		})
		if err != nil {
			return EngineError("set viewport", err)
		}
	}

	c.mu.RLock()
	headers := c.headers
	c.mu.RUnlock()

	if headers != nil {
		if _, err := p.SetExtraHeaders(headers); err != nil {
			return EngineError("set extra headers", err)
		}
	}
	return nil
}

func (c *rodContext) Cookies(ctx context.Context) ([]Cookie, error) {
	cookies, err := c.browser.Context(ctx).GetCookies()
	if err != nil {
		return nil, EngineError("get cookies", err)
	}

	result := make([]Cookie, 0, len(cookies))
	for _, ck := range cookies {
		result = append(result, Cookie{
			Name:     ck.Name,
			Value:    ck.Value,
			Domain:   ck.Domain,
			Path:     ck.Path,
			Expires:  float64(ck.Expires),
			HTTPOnly: ck.HTTPOnly,
			Secure:   ck.Secure,
			SameSite: string(ck.SameSite),
		})
	}
	return result, nil
}

func (c *rodContext) AddCookies(ctx context.Context, cookies []Cookie) error {
	if len(cookies) == 0 {
		return nil
	}

	params := make([]*proto.NetworkCookieParam, 0, len(cookies))
	for _, ck := range cookies {
		param := &proto.NetworkCookieParam{
			Name:     ck.Name,
			Value:    ck.Value,
			URL:      ck.URL,
			Domain:   ck.Domain,
			Path:     ck.Path,
			HTTPOnly: ck.HTTPOnly,
			Secure:   ck.Secure,
			SameSite: proto.NetworkCookieSameSite(ck.SameSite),
		}
		if ck.Expires > 0 {
			param.Expires = proto.TimeSinceEpoch(ck.Expires)
		}
		params = append(params, param)
	}

	// a nil slice would clear the jar
	if err := c.browser.Context(ctx).SetCookies(params); err != nil {
		return EngineError("set cookies", err)
	}
	return nil
}

func (c *rodContext) SetExtraHeaders(ctx context.Context, headers map[string]string) error {
	names := make([]string, 0, len(headers))
	for name := range headers {
		names = append(names, name)
	}
	sort.Strings(names)

	dict := make([]string, 0, len(headers)*2)
	for _, name := range names {
		dict = append(dict, name, headers[name])
	}

	c.mu.Lock()
	c.headers = dict
	c.mu.Unlock()

	pages, err := c.browser.Context(ctx).Pages()
	if err != nil {
		return EngineError("list pages", err)
	}
	for _, p := range pages {
		if _, err := p.SetExtraHeaders(dict); err != nil {
			return EngineError("set extra headers", err)
		}
	}
	return nil
}

// Close shuts the browser down. The user-data directory is left on disk.
func (c *rodContext) Close() error {
	err := c.browser.Close()
	if err != nil {
		c.logger.Warn().Err(err).Int("pid", c.launcher.PID()).Msg("Graceful close failed, killing Chrome")
		c.launcher.Kill()
		return EngineError("close browser", err)
	}
	return nil
}

// rodPage adapts a rod page to the Page interface
type rodPage struct {
	page *rod.Page
}

func (r *rodPage) Navigate(ctx context.Context, url string, opts NavigateOptions) error {
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}
	p := r.page.Context(ctx)

	var wait func()
	switch opts.WaitUntil {
	case WaitLoad:
		wait = p.WaitNavigation(proto.PageLifecycleEventNameLoad)
	case WaitNetworkIdle:
		wait = p.WaitNavigation(proto.PageLifecycleEventNameNetworkIdle)
	case WaitCommit:
	default:
		wait = p.WaitNavigation(proto.PageLifecycleEventNameDOMContentLoaded)
	}

	if err := p.Navigate(url); err != nil {
		return EngineError(fmt.Sprintf("navigate to %s", url), err)
	}

	if wait != nil {
		wait()
	}

	if err := ctx.Err(); err != nil {
		return EngineError(fmt.Sprintf("navigate to %s", url), fmt.Errorf("timeout %v exceeded waiting for %q: %w", opts.Timeout, opts.WaitUntil, err))
	}
	return nil
}

func (r *rodPage) Content(ctx context.Context) (string, error) {
	html, err := r.page.Context(ctx).HTML()
	if err != nil {
		return "", EngineError("read content", err)
	}
	return html, nil
}

func (r *rodPage) Screenshot(ctx context.Context, fullPage bool) ([]byte, error) {
	data, err := r.page.Context(ctx).Screenshot(fullPage, &proto.PageCaptureScreenshot{
		Format: proto.PageCaptureScreenshotFormatPng,
	})
	if err != nil {
		return nil, EngineError("capture screenshot", err)
	}
	return data, nil
}

func (r *rodPage) WaitForSelector(ctx context.Context, selector string) error {
	if _, err := r.page.Context(ctx).Element(selector); err != nil {
		return EngineError(fmt.Sprintf("wait for selector %q", selector), err)
	}
	return nil
}

// element retries the lookup until selector is attached or ctx is done
func (r *rodPage) element(ctx context.Context, selector string) (*rod.Element, error) {
	el, err := r.page.Context(ctx).Element(selector)
	if err != nil {
		return nil, EngineError(fmt.Sprintf("find element %q", selector), err)
	}
	return el, nil
}

func (r *rodPage) Click(ctx context.Context, selector string) error {
	el, err := r.element(ctx, selector)
	if err != nil {
		return err
	}
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return EngineError(fmt.Sprintf("click %q", selector), err)
	}
	return nil
}

const clearFieldJS = `() => {
	if ('value' in this) {
		this.value = '';
	} else if (this.isContentEditable) {
		this.textContent = '';
	}
	this.dispatchEvent(new Event('input', { bubbles: true }));
}`

func (r *rodPage) Fill(ctx context.Context, selector, text string) error {
	el, err := r.element(ctx, selector)
	if err != nil {
		return err
	}
	if _, err := el.Eval(clearFieldJS); err != nil {
		return EngineError(fmt.Sprintf("clear %q", selector), err)
	}
	if text == "" {
		return nil
	}
	if err := el.Input(text); err != nil {
		return EngineError(fmt.Sprintf("type into %q", selector), err)
	}
	return nil
}

func (r *rodPage) TextContent(ctx context.Context, selector string) (string, error) {
	el, err := r.element(ctx, selector)
	if err != nil {
		return "", err
	}
	res, err := el.Eval(`() => this.textContent`)
	if err != nil {
		return "", EngineError(fmt.Sprintf("read text of %q", selector), err)
	}
	if res.Value.Nil() {
		return "", nil
	}
	return res.Value.Str(), nil
}

// Evaluate sends the script straight to Runtime.evaluate, so it may be any
// expression, not only a function literal.
func (r *rodPage) Evaluate(ctx context.Context, script string) (any, error) {
	res, err := proto.RuntimeEvaluate{
		Expression:    script,
		ReturnByValue: true,
		AwaitPromise:  true,
		UserGesture:   true,
	}.Call(r.page.Context(ctx))
	if err != nil {
		return nil, EngineError("evaluate script", err)
	}

	if details := res.ExceptionDetails; details != nil {
		msg := details.Text
		if details.Exception != nil && details.Exception.Description != "" {
			msg = details.Exception.Description
		}
		return nil, EngineError("evaluate script", errors.New(msg))
	}

	if res.Result == nil {
		return nil, nil
	}
	if res.Result.UnserializableValue != "" {
		return string(res.Result.UnserializableValue), nil
	}
	return res.Result.Value.Val(), nil
}

func (r *rodPage) Back(ctx context.Context) error {
	if err := r.page.Context(ctx).NavigateBack(); err != nil {
		return EngineError("navigate back", err)
	}
	return nil
}

func (r *rodPage) Forward(ctx context.Context) error {
	if err := r.page.Context(ctx).NavigateForward(); err != nil {
		return EngineError("navigate forward", err)
	}
	return nil
}

func (r *rodPage) Reload(ctx context.Context) error {
	if err := r.page.Context(ctx).Reload(); err != nil {
		return EngineError("reload", err)
	}
	return nil
}
