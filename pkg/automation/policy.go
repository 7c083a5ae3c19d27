package automation

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/harun/browserd/pkg/browser"
)

// Policy restricts which addresses a session may navigate to. The zero value
// permits every http(s) URL.
type Policy struct {
	AllowedDomains []string `json:"allowedDomains" mapstructure:"allowed_domains"`
	BlockedDomains []string `json:"blockedDomains" mapstructure:"blocked_domains"`
	BlockLocalhost bool     `json:"blockLocalhost" mapstructure:"block_localhost"`
}

// Violation describes why Check rejected a URL
type Violation struct {
	Kind string
	URL  string
	Host string
}

// Check validates rawURL against the scheme rule and the policy. The
// returned violation is nil when the URL was rejected for its shape rather
// than by a policy rule.
func (p Policy) Check(rawURL string) (*Violation, error) {
	if !hasHTTPScheme(rawURL) {
		return nil, browser.InvalidArgument("Invalid URL. Use http(s) URL.")
	}

	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		return nil, browser.InvalidArgument("Invalid URL format: %s", rawURL)
	}
	host := strings.ToLower(parsed.Hostname())

	if p.BlockLocalhost && isLocalhost(host) {
		return &Violation{Kind: "localhost_url_blocked", URL: rawURL, Host: host},
			browser.InvalidArgument("localhost URLs are not allowed")
	}

	if len(p.AllowedDomains) > 0 && !matchAny(host, p.AllowedDomains) {
		return &Violation{Kind: "domain_not_allowed", URL: rawURL, Host: host},
			browser.InvalidArgument("Domain not in allowed list: %s", host)
	}

	if matchAny(host, p.BlockedDomains) {
		return &Violation{Kind: "domain_blocked", URL: rawURL, Host: host},
			browser.InvalidArgument("Domain is blocked: %s", host)
	}

	return nil, nil
}

// Validate reports malformed domain patterns
func (p Policy) Validate() error {
	for _, list := range [][]string{p.AllowedDomains, p.BlockedDomains} {
		for _, pattern := range list {
			trimmed := strings.TrimPrefix(strings.TrimPrefix(pattern, "*."), ".")
			if trimmed == "" || strings.ContainsAny(trimmed, "/:*") {
				return fmt.Errorf("invalid domain pattern %q", pattern)
			}
		}
	}
	return nil
}

func hasHTTPScheme(rawURL string) bool {
	lower := strings.ToLower(rawURL)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

// isLocalhost checks if a host points to the loopback interface
func isLocalhost(host string) bool {
	return host == "localhost" ||
		host == "::1" ||
		host == "0.0.0.0" ||
		strings.HasPrefix(host, "127.") ||
		strings.HasSuffix(host, ".localhost")
}

func matchAny(host string, patterns []string) bool {
	for _, pattern := range patterns {
		if matchDomain(host, strings.ToLower(pattern)) {
			return true
		}
	}
	return false
}

// matchDomain checks if a host matches a domain pattern. "*.example.com" and
// ".example.com" both match the apex and every subdomain.
func matchDomain(host, pattern string) bool {
	if host == pattern {
		return true
	}

	if strings.HasPrefix(pattern, "*.") {
		suffix := pattern[2:]
		return strings.HasSuffix(host, "."+suffix) || host == suffix
	}

	if strings.HasPrefix(pattern, ".") {
		return strings.HasSuffix(host, pattern) || host == pattern[1:]
	}

	return false
}
