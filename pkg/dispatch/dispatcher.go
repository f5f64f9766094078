package dispatch

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"
)

var (
	// ErrLoopClosed is returned when work is submitted to, or pending on, a closed loop.
	ErrLoopClosed = errors.New("dispatch: loop closed")

	// ErrLoopRunning is returned when Run is called on a loop that is already running.
	ErrLoopRunning = errors.New("dispatch: loop already running")
)

// Operation is a unit of work executed on a main execution context.
type Operation func(ctx context.Context) error

// Dispatcher marshals operations onto a main execution context.
type Dispatcher interface {
	// Invoke runs op on the main context and blocks until it completes.
	Invoke(ctx context.Context, op Operation) error
	// Post enqueues op without waiting for it.
	Post(op Operation) error
}

// Hooks observe queue activity. Nil callbacks are skipped.
type Hooks struct {
	OnQueued    func(depth int)
	OnDone      func(wait, run time.Duration, err error)
	OnUnhandled func(err error)
}

// PanicError carries a panic recovered from an operation.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("dispatch: operation panicked: %v", e.Value)
}

// Unwrap exposes the panic value when it is an error.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// call runs op and converts a panic into a *PanicError.
func call(ctx context.Context, op Operation) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r, Stack: debug.Stack()}
		}
	}()
	return op(ctx)
}

type loopKey struct{}

// withLoop marks ctx as executing on l.
func withLoop(ctx context.Context, l *Loop) context.Context {
	return context.WithValue(ctx, loopKey{}, l)
}

// loopFrom returns the loop ctx is executing on, if any.
func loopFrom(ctx context.Context) *Loop {
	l, _ := ctx.Value(loopKey{}).(*Loop)
	return l
}

// OnLoop reports whether ctx belongs to an operation currently running on l.
func OnLoop(ctx context.Context, l *Loop) bool {
	return ctx != nil && loopFrom(ctx) == l
}

// Detach returns a context that keeps ctx's values and cancellation but is no
// longer identified as running on a loop.
func Detach(ctx context.Context) context.Context {
	if loopFrom(ctx) == nil {
		return ctx
	}
	return context.WithValue(ctx, loopKey{}, (*Loop)(nil))
}
