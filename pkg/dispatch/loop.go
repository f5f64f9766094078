package dispatch

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aretw0/mvvm/internal/logging"
)

const (
	taskPending int32 = iota
	taskRunning
	taskSkipped
)

// task is one queued operation. Invoked tasks carry the caller's context and a
// done channel; posted tasks have neither.
type task struct {
	op       Operation
	ctx      context.Context
	state    atomic.Int32
	done     chan struct{}
	err      error
	queuedAt time.Time
}

// Loop is an unbounded, serialized work queue. The goroutine that calls Run is
// the loop's main goroutine.
type Loop struct {
	mu     sync.Mutex
	items  []*task
	closed bool

	wake     chan struct{}
	stop     chan struct{}
	stopOnce sync.Once
	running  atomic.Bool

	// runCtx is only touched by the main goroutine.
	runCtx context.Context

	logger *slog.Logger
	hooks  Hooks
}

// Option configures a Loop.
type Option func(*Loop)

// WithLogger configures the logger used for unhandled failures.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Loop) {
		l.logger = logger
	}
}

// WithHooks registers queue observers.
func WithHooks(hooks Hooks) Option {
	return func(l *Loop) {
		l.hooks = hooks
	}
}

// NewLoop creates a loop. Nothing executes until Run is called.
func NewLoop(opts ...Option) *Loop {
	l := &Loop{
		wake:   make(chan struct{}, 1),
		stop:   make(chan struct{}),
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Run executes queued operations on the calling goroutine until ctx is done or
// Close is called. It returns ctx.Err() on cancellation and nil after Close.
func (l *Loop) Run(ctx context.Context) error {
	if !l.running.CompareAndSwap(false, true) {
		return ErrLoopRunning
	}
	defer l.running.Store(false)

	l.runCtx = withLoop(ctx, l)
	for {
		if err := ctx.Err(); err != nil {
			l.Close()
			return err
		}
		if t := l.next(); t != nil {
			l.execute(t)
			continue
		}
		select {
		case <-ctx.Done():
			l.Close()
			return ctx.Err()
		case <-l.stop:
			return nil
		case <-l.wake:
		}
	}
}

// Close stops the loop. Pending operations fail with ErrLoopClosed and later
// submissions are rejected. Close is idempotent.
func (l *Loop) Close() {
	l.mu.Lock()
	pending := l.items
	l.items = nil
	l.closed = true
	l.mu.Unlock()

	for _, t := range pending {
		l.fail(t, ErrLoopClosed)
	}
	l.stopOnce.Do(func() { close(l.stop) })
}

// Done is closed once the loop has been closed.
func (l *Loop) Done() <-chan struct{} {
	return l.stop
}

// Depth returns the number of operations waiting in the queue.
func (l *Loop) Depth() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.items)
}

// Invoke runs op on the main goroutine and waits for it. If ctx is done before
// op starts, op is skipped and ctx.Err() is returned; once started, op always
// runs to completion. Called from an operation running on this loop, Invoke
// drains earlier items inline until op has run.
func (l *Loop) Invoke(ctx context.Context, op Operation) error {
	if op == nil {
		return errors.New("dispatch: nil operation")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	t := &task{op: op, ctx: ctx, done: make(chan struct{}), queuedAt: time.Now()}
	if err := l.enqueue(t); err != nil {
		return err
	}

	if OnLoop(ctx, l) {
		return l.pump(t)
	}

	select {
	case <-t.done:
		return t.err
	case <-ctx.Done():
		if t.state.CompareAndSwap(taskPending, taskSkipped) {
			return ctx.Err()
		}
		<-t.done
		return t.err
	}
}

// Post enqueues op and returns immediately.
func (l *Loop) Post(op Operation) error {
	if op == nil {
		return errors.New("dispatch: nil operation")
	}
	return l.enqueue(&task{op: op, queuedAt: time.Now()})
}

func (l *Loop) enqueue(t *task) error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return ErrLoopClosed
	}
	l.items = append(l.items, t)
	depth := len(l.items)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
	if l.hooks.OnQueued != nil {
		l.hooks.OnQueued(depth)
	}
	return nil
}

func (l *Loop) next() *task {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.items) == 0 {
		return nil
	}
	t := l.items[0]
	l.items[0] = nil
	l.items = l.items[1:]
	return t
}

// pump runs queued items on the current (main) goroutine until t has run.
func (l *Loop) pump(t *task) error {
	for {
		select {
		case <-t.done:
			return t.err
		default:
		}
		next := l.next()
		if next == nil {
			// t was taken by Close.
			<-t.done
			return t.err
		}
		l.execute(next)
	}
}

func (l *Loop) execute(t *task) {
	if !t.state.CompareAndSwap(taskPending, taskRunning) {
		return
	}

	ctx := l.runCtx
	if t.ctx != nil {
		ctx = withLoop(t.ctx, l)
	}

	wait := time.Since(t.queuedAt)
	start := time.Now()
	err := call(ctx, t.op)
	run := time.Since(start)

	if l.hooks.OnDone != nil {
		l.hooks.OnDone(wait, run, err)
	}

	if t.done != nil {
		t.err = err
		close(t.done)
		return
	}
	if err != nil {
		l.unhandled(err)
	}
}

func (l *Loop) fail(t *task, err error) {
	if !t.state.CompareAndSwap(taskPending, taskSkipped) {
		return
	}
	if t.done != nil {
		t.err = err
		close(t.done)
	}
}

func (l *Loop) unhandled(err error) {
	var perr *PanicError
	if errors.As(err, &perr) {
		l.logger.Error("Unhandled panic in posted operation", "err", err, "stack", string(perr.Stack))
	} else {
		l.logger.Error("Unhandled failure in posted operation", "err", err)
	}
	if l.hooks.OnUnhandled != nil {
		l.hooks.OnUnhandled(err)
	}
}
