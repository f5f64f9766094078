package viewmodel

import (
	"context"
	"errors"
	"log/slog"
	"reflect"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aretw0/mvvm/internal/logging"
	"github.com/aretw0/mvvm/pkg/dispatch"
)

// BusyProperty is the name notified on every busy transition.
const BusyProperty = "Busy"

// Disposer is implemented by view-models that release resources on Dispose.
type Disposer interface {
	OnDispose()
}

// Base is the observable core of a view-model. Embed it by pointer; a Base
// must not be copied.
type Base struct {
	owner       any
	name        string
	main        dispatch.Dispatcher
	logger      *slog.Logger
	hooks       Hooks
	hooksFor    func(name string) Hooks
	mode        BackgroundMode
	verify      bool
	strict      bool
	onUnhandled func(error)
	names       sync.Map

	// busy is written only on the main context.
	busy atomic.Bool

	mu        sync.Mutex // guards cancelled
	cancelled bool

	lmu       sync.RWMutex
	listeners []listener
	nextID    atomic.Uint64

	wg sync.WaitGroup
}

// New creates a Base bound to owner (the embedding view-model, used for
// property verification and OnDispose) and to the main dispatcher. A nil owner
// binds the Base to itself. New panics if main is nil.
func New(owner any, main dispatch.Dispatcher, opts ...Option) *Base {
	if main == nil {
		panic("viewmodel: nil main dispatcher")
	}
	b := &Base{
		owner:  owner,
		main:   main,
		logger: logging.NewNop(),
		verify: debugBuild,
	}
	if b.owner == nil {
		b.owner = b
	}
	b.names.Store(BusyProperty, struct{}{})
	for _, opt := range opts {
		opt(b)
	}
	if b.name == "" {
		b.name = typeName(b.owner)
	}
	if b.hooksFor != nil {
		b.hooks = b.hooksFor(b.name)
	}
	return b
}

// Name identifies the view-model in logs and metrics.
func (b *Base) Name() string {
	return b.name
}

// Busy reports whether a background operation is in progress.
func (b *Base) Busy() bool {
	return b.busy.Load()
}

// Cancelled reports whether Cancel was called since the current (or last)
// background operation started. Operations poll it to stop early.
func (b *Base) Cancelled() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.cancelled
}

// Cancel asks the running operation to stop. It is safe from any goroutine and
// never interrupts the operation.
func (b *Base) Cancel() {
	b.mu.Lock()
	b.cancelled = true
	b.mu.Unlock()

	b.logger.Debug("Cancellation requested", "viewmodel", b.name)
	if b.hooks.OnCancel != nil {
		b.hooks.OnCancel()
	}
}

// RunBackground starts op and returns immediately. op runs between the
// Idle→Working and Working→Idle transitions; where it runs depends on the
// background mode. Its failure is logged and passed to the unhandled handler,
// never returned.
func (b *Base) RunBackground(op dispatch.Operation) {
	if op == nil {
		op = func(context.Context) error { return nil }
	}
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()

		start := time.Now()
		var err error
		if b.mode == OffMain {
			err = b.runOffMain(op)
		} else {
			err = b.main.Invoke(context.Background(), func(ctx context.Context) error {
				b.enterWorking(ctx)
				err := op(ctx)
				b.exitWorking(ctx)
				return err
			})
		}

		if b.hooks.OnBackgroundDone != nil {
			b.hooks.OnBackgroundDone(time.Since(start), err)
		}
		if err != nil {
			b.unhandled(err)
		}
	}()
}

func (b *Base) runOffMain(op dispatch.Operation) error {
	ctx := context.Background()
	enter := func(ctx context.Context) error {
		b.enterWorking(ctx)
		return nil
	}
	if err := b.main.Invoke(ctx, enter); err != nil {
		return err
	}

	err := dispatch.Inline{}.Invoke(ctx, op)
	var perr *dispatch.PanicError
	if errors.As(err, &perr) {
		return err
	}

	exit := func(ctx context.Context) error {
		b.exitWorking(ctx)
		return nil
	}
	if exitErr := b.main.Invoke(ctx, exit); exitErr != nil {
		return errors.Join(err, exitErr)
	}
	return err
}

// RunOnMain runs op on the main context and waits for it. The op's failure is
// returned. Busy is not touched.
//
// Callers already on the main loop must pass the context they were given
// (an operation's ctx, PropertyChanged.Ctx, or the ctx of a context-aware
// command); the loop runs op inline only for contexts it marked. Called from
// the main loop with any other context, RunOnMain never returns.
func (b *Base) RunOnMain(ctx context.Context, op dispatch.Operation) error {
	return b.main.Invoke(ctx, op)
}

// Wait blocks until every operation started with RunBackground has finished.
func (b *Base) Wait() {
	b.wg.Wait()
}

// Dispose calls the owner's OnDispose, if any. Repeated calls repeat the call.
func (b *Base) Dispose() {
	if d, ok := b.owner.(Disposer); ok {
		d.OnDispose()
	}
}

func (b *Base) enterWorking(ctx context.Context) {
	b.setBusy(ctx, true)
	b.resetCancelled()
}

func (b *Base) exitWorking(ctx context.Context) {
	b.setBusy(ctx, false)
	b.resetCancelled()
}

func (b *Base) setBusy(ctx context.Context, busy bool) {
	b.busy.Store(busy)
	if b.hooks.OnBusyChanged != nil {
		b.hooks.OnBusyChanged(busy)
	}
	b.NotifyChangedContext(ctx, BusyProperty)
}

func (b *Base) resetCancelled() {
	b.mu.Lock()
	b.cancelled = false
	b.mu.Unlock()
}

func (b *Base) unhandled(err error) {
	b.logger.Error("Background operation failed", "viewmodel", b.name, "err", err)
	if b.onUnhandled != nil {
		b.onUnhandled(err)
	}
}

func typeName(v any) string {
	t := reflect.TypeOf(v)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Name() == "" {
		return t.String()
	}
	return t.Name()
}
