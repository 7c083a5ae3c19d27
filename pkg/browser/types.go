package browser

import (
	"strings"
	"time"
)

// WaitUntil names the page lifecycle point navigation waits for
type WaitUntil string

const (
	WaitLoad             WaitUntil = "load"
	WaitDOMContentLoaded WaitUntil = "domcontentloaded"
	WaitNetworkIdle      WaitUntil = "networkidle"
	WaitCommit           WaitUntil = "commit"
)

// ParseWaitUntil maps a client supplied wait policy to a WaitUntil.
func ParseWaitUntil(s string) (WaitUntil, bool) {
	switch WaitUntil(strings.ToLower(strings.TrimSpace(s))) {
	case WaitLoad:
		return WaitLoad, true
	case WaitDOMContentLoaded:
		return WaitDOMContentLoaded, true
	case WaitNetworkIdle, "networkidle0", "networkidle2":
		return WaitNetworkIdle, true
	case WaitCommit:
		return WaitCommit, true
	}
	return "", false
}

// Viewport represents the page dimensions in CSS pixels
type Viewport struct {
	Width  int `json:"width" mapstructure:"width"`
	Height int `json:"height" mapstructure:"height"`
}

// IsZero reports whether no dimension was given
func (v Viewport) IsZero() bool {
	return v.Width == 0 && v.Height == 0
}

// Cookie represents a browser cookie. Expires is seconds since the epoch,
// -1 or 0 marks a session cookie.
type Cookie struct {
	Name     string  `json:"name"`
	Value    string  `json:"value"`
	URL      string  `json:"url,omitempty"`
	Domain   string  `json:"domain,omitempty"`
	Path     string  `json:"path,omitempty"`
	Expires  float64 `json:"expires,omitempty"`
	HTTPOnly bool    `json:"httpOnly"`
	Secure   bool    `json:"secure"`
	SameSite string  `json:"sameSite,omitempty"`
}

// LaunchOptions describes a persistent browser context to start
type LaunchOptions struct {
	UserDataDir string
	Headless    bool
	NoSandbox   bool
	ChromePath  string
	Args        []string
	UserAgent   string
	Viewport    Viewport
}

// NavigateOptions controls how long navigation waits and for what
type NavigateOptions struct {
	WaitUntil WaitUntil
	Timeout   time.Duration
}
