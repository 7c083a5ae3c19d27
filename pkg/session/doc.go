// Package session binds email addresses to live browser contexts.
//
// Invariants:
// - A session ID is the first 16 hex characters of sha256(email).
// - At most one live browser context exists per session ID; Create is idempotent.
// - Every session owns the profile directory named after its ID, which outlives it.
// - Close always removes the session; engine close failures are only logged.
// - Operations on one session are not serialized; concurrent callers share its page.
//
// Usage:
//
//	reg, _ := session.NewRegistry(session.Options{Engine: engine, Profiles: store})
//	id, _ := reg.Create(ctx, session.CreateRequest{Email: "a@example.com"})
//	rec, _ := reg.Resolve(id)
//	_ = rec.Page.Navigate(ctx, "https://example.com", browser.NavigateOptions{})
//	reg.Close(ctx, id)
package session
