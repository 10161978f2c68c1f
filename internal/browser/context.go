// internal/browser/context.go
package browser

import (
	"context"
	"time"
)

// CombineContext creates a new context derived from primary that is canceled
// when *either* primary or secondary is canceled. It inherits values from
// primary. This matters for chromedp operations where primary carries the CDP
// target info (the session context) and secondary carries the operational
// deadline.
func CombineContext(primary, secondary context.Context) (context.Context, context.CancelFunc) {
	combined, cancel := context.WithCancel(primary)

	go func() {
		select {
		case <-secondary.Done():
			cancel()
		case <-combined.Done():
			// Already canceled from primary or a direct call.
		}
	}()

	return combined, cancel
}

// valueOnlyContext wraps a parent context to create a "detached" context.
// It inherits all values (like CDP target information) from its parent, but
// ignores the parent's deadline and cancellation signal.
type valueOnlyContext struct {
	context.Context
}

func (valueOnlyContext) Deadline() (deadline time.Time, ok bool) { return }
func (valueOnlyContext) Done() <-chan struct{}                   { return nil }
func (valueOnlyContext) Err() error                              { return nil }

// Detach returns a context that inherits values from ctx but is not canceled
// when ctx is. Useful for cleanup operations that must outlive the parent,
// particularly in chromedp where the context carries connection information.
func Detach(ctx context.Context) context.Context {
	return valueOnlyContext{ctx}
}
