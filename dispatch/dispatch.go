// Package dispatch provides CommandDispatcher implementations for the bridge.
//
// The bridge itself only depends on the abstract "execute named action"
// boundary; this package supplies the two concrete forms the daemon and
// embedders need: a function adapter and an exec-based dispatcher that runs
// configured editor CLI commands.
package dispatch

import (
	"context"
	"errors"
)

// ErrNotConfigured is returned when a dispatcher has no handler bound for the
// requested action.
var ErrNotConfigured = errors.New("dispatch: action not configured")

// Funcs adapts plain functions to the CommandDispatcher boundary. Nil fields
// fail with ErrNotConfigured, so a partially wired dispatcher degrades to
// per-command errors instead of panics.
type Funcs struct {
	OnOpenChat     func(ctx context.Context, text string) error
	OnClearHistory func(ctx context.Context) error
}

// OpenChat opens an interactive chat session seeded with text.
func (f Funcs) OpenChat(ctx context.Context, text string) error {
	if f.OnOpenChat == nil {
		return ErrNotConfigured
	}
	return f.OnOpenChat(ctx, text)
}

// ClearHistory clears the host's chat session history.
func (f Funcs) ClearHistory(ctx context.Context) error {
	if f.OnClearHistory == nil {
		return ErrNotConfigured
	}
	return f.OnClearHistory(ctx)
}
