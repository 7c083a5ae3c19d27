// Package automation exposes the page and context operations clients can run
// against a live session.
//
// Every operation resolves the session first, so an unknown identifier
// always fails with an INVALID_SESSION error before arguments are looked at.
// Arguments are then validated and the call is forwarded to the browser
// engine. Operations on one session are not serialized: concurrent calls may
// interleave on the same page.
package automation
