package dispatch

import "context"

// Inline is a Dispatcher that runs every operation directly on the calling
// goroutine. It is a stand-in main context for tests and for hosts that only
// ever touch view-models from a single goroutine.
type Inline struct {
	// OnUnhandled receives failures of posted operations.
	OnUnhandled func(err error)
}

// Invoke runs op immediately.
func (Inline) Invoke(ctx context.Context, op Operation) error {
	if ctx == nil {
		ctx = context.Background()
	}
	return call(ctx, op)
}

// Post runs op immediately and reports its failure to OnUnhandled.
func (i Inline) Post(op Operation) error {
	if err := call(context.Background(), op); err != nil && i.OnUnhandled != nil {
		i.OnUnhandled(err)
	}
	return nil
}
