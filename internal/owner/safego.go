// ABOUTME: Goroutine launcher that logs panics before re-raising them.
// ABOUTME: Used for every background goroutine feeding the owner loop.
package owner

import (
	"log/slog"
	"runtime/debug"
)

// SafeGo runs fn on a new goroutine. A panic is logged with its stack and
// then re-raised.
func SafeGo(logger *slog.Logger, name string, fn func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("goroutine panicked", "goroutine", name, "panic", r, "stack", string(debug.Stack()))
				panic(r)
			}
		}()
		fn()
	}()
}

// Inline is a Poster that runs work immediately on the caller's goroutine.
// Tests use it to drive components without a running loop.
type Inline struct{}

// Post runs fn and returns nil.
func (Inline) Post(fn func()) error {
	fn()
	return nil
}

// Poster accepts work for the owner context.
type Poster interface {
	Post(fn func()) error
}
