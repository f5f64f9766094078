package viewmodel_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/mvvm/internal/logging"
	"github.com/aretw0/mvvm/internal/testutils"
	"github.com/aretw0/mvvm/pkg/dispatch"
	"github.com/aretw0/mvvm/pkg/viewmodel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	*viewmodel.Base
	Title    string
	disposed int
}

func (s *sample) Count() int { return 0 }

func (s *sample) OnDispose() { s.disposed++ }

func newSample(main dispatch.Dispatcher, opts ...viewmodel.Option) *sample {
	s := &sample{}
	s.Base = viewmodel.New(s, main, opts...)
	return s
}

// recorder captures notifications; handlers may run on the main goroutine.
type recorder struct {
	mu     sync.Mutex
	names  []string
	busy   []bool
	source any
}

func (r *recorder) attach(s *sample) func() {
	return s.Subscribe(func(e viewmodel.PropertyChanged) {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.names = append(r.names, e.Name)
		r.source = e.Source
		if e.Name == viewmodel.BusyProperty {
			r.busy = append(r.busy, s.Busy())
		}
	})
}

func (r *recorder) busyValues() []bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]bool(nil), r.busy...)
}

func TestRunBackground_NoopRaisesBusyTrueThenFalse(t *testing.T) {
	loop := testutils.StartLoop(t)
	s := newSample(loop)
	rec := &recorder{}
	rec.attach(s)

	assert.False(t, s.Cancelled())
	s.RunBackground(func(ctx context.Context) error { return nil })
	s.Wait()

	assert.Equal(t, []bool{true, false}, rec.busyValues())
	assert.False(t, s.Busy())
	assert.False(t, s.Cancelled())
	assert.Same(t, s, rec.source)
}

func TestRunBackground_SerializedOnMainLoop(t *testing.T) {
	loop := testutils.StartLoop(t)
	s := newSample(loop)

	var onLoop, busyInside bool
	var nestedErr error
	s.RunBackground(func(ctx context.Context) error {
		onLoop = dispatch.OnLoop(ctx, loop)
		busyInside = s.Busy()
		nestedErr = s.RunOnMain(ctx, func(ctx context.Context) error { return nil })
		return nil
	})
	s.Wait()

	assert.True(t, onLoop)
	assert.True(t, busyInside)
	assert.NoError(t, nestedErr)
}

func TestCancel_ObservedByRunningOperationAndResetAfter(t *testing.T) {
	loop := testutils.StartLoop(t)
	s := newSample(loop)

	started := make(chan struct{})
	proceed := make(chan struct{})
	var seen bool
	s.RunBackground(func(ctx context.Context) error {
		close(started)
		<-proceed
		seen = s.Cancelled()
		return nil
	})

	<-started
	s.Cancel()
	close(proceed)
	s.Wait()

	assert.True(t, seen)
	assert.False(t, s.Cancelled())
}

func TestCancel_ResetWhenNextOperationStarts(t *testing.T) {
	s := newSample(dispatch.Inline{})

	s.Cancel()
	assert.True(t, s.Cancelled())

	var seen bool
	s.RunBackground(func(ctx context.Context) error {
		seen = s.Cancelled()
		return nil
	})
	s.Wait()
	assert.False(t, seen)
}

func TestRunOnMain_FailurePropagatesAndBusyUntouched(t *testing.T) {
	loop := testutils.StartLoop(t)
	s := newSample(loop)
	rec := &recorder{}
	rec.attach(s)
	boom := errors.New("boom")

	err := s.RunOnMain(context.Background(), func(ctx context.Context) error {
		assert.False(t, s.Busy())
		return boom
	})

	assert.ErrorIs(t, err, boom)
	assert.False(t, s.Busy())
	assert.Empty(t, rec.busyValues())
}

func TestRunOnMain_PanicReturnedToCaller(t *testing.T) {
	loop := testutils.StartLoop(t)
	s := newSample(loop)

	err := s.RunOnMain(context.Background(), func(ctx context.Context) error { panic("bad") })

	var perr *dispatch.PanicError
	assert.ErrorAs(t, err, &perr)
}

func TestRunBackground_FailureGoesToUnhandledHandler(t *testing.T) {
	loop := testutils.StartLoop(t)
	var buf bytes.Buffer
	var mu sync.Mutex
	var failures []error
	s := newSample(loop,
		viewmodel.WithLogger(logging.NewWithFormat(&buf, slog.LevelInfo, "text")),
		viewmodel.WithUnhandledHandler(func(err error) {
			mu.Lock()
			failures = append(failures, err)
			mu.Unlock()
		}),
	)
	boom := errors.New("boom")

	s.RunBackground(func(ctx context.Context) error { return boom })
	s.Wait()

	require.Len(t, failures, 1)
	assert.ErrorIs(t, failures[0], boom)
	assert.False(t, s.Busy(), "an error return still completes the bracket")
	assert.Contains(t, buf.String(), "Background operation failed")
}

func TestRunBackground_PanicLeavesBusySet(t *testing.T) {
	loop := testutils.StartLoop(t)
	failures := make(chan error, 1)
	s := newSample(loop, viewmodel.WithUnhandledHandler(func(err error) { failures <- err }))

	s.RunBackground(func(ctx context.Context) error { panic("bad") })
	s.Wait()

	var perr *dispatch.PanicError
	assert.ErrorAs(t, testutils.Eventually(t, failures, time.Second), &perr)
	assert.True(t, s.Busy())
}

func TestRunBackground_OffMain(t *testing.T) {
	loop := testutils.StartLoop(t)
	s := newSample(loop, viewmodel.WithBackgroundMode(viewmodel.OffMain))
	progress := viewmodel.NewProperty(s.Base, "Progress", 0)
	rec := &recorder{}
	rec.attach(s)

	var onLoop bool
	var updateOnLoop bool
	s.RunBackground(func(ctx context.Context) error {
		onLoop = dispatch.OnLoop(ctx, loop)
		return s.RunOnMain(ctx, func(ctx context.Context) error {
			updateOnLoop = dispatch.OnLoop(ctx, loop)
			progress.Set(1)
			return nil
		})
	})
	s.Wait()

	assert.False(t, onLoop)
	assert.True(t, updateOnLoop)
	assert.Equal(t, []bool{true, false}, rec.busyValues())
	assert.Equal(t, []string{"Busy", "Progress", "Busy"}, rec.names)
	assert.Equal(t, 1, progress.Get())
}

func TestRunBackground_OffMainCancel(t *testing.T) {
	loop := testutils.StartLoop(t)
	s := newSample(loop, viewmodel.WithBackgroundMode(viewmodel.OffMain))

	started := make(chan struct{})
	proceed := make(chan struct{})
	var seen bool
	s.RunBackground(func(ctx context.Context) error {
		close(started)
		<-proceed
		seen = s.Cancelled()
		return nil
	})

	<-started
	s.Cancel()
	close(proceed)
	s.Wait()

	assert.True(t, seen)
	assert.False(t, s.Cancelled())
	assert.False(t, s.Busy())
}

func TestRunBackground_HooksFire(t *testing.T) {
	var mu sync.Mutex
	var busy []bool
	var cancels int
	var done error
	s := newSample(dispatch.Inline{}, viewmodel.WithHooks(viewmodel.Hooks{
		OnBusyChanged: func(b bool) { mu.Lock(); busy = append(busy, b); mu.Unlock() },
		OnCancel:      func() { mu.Lock(); cancels++; mu.Unlock() },
		OnBackgroundDone: func(elapsed time.Duration, err error) {
			mu.Lock()
			done = err
			mu.Unlock()
		},
	}))
	boom := errors.New("boom")

	s.Cancel()
	s.RunBackground(func(ctx context.Context) error { return boom })
	s.Wait()

	assert.Equal(t, []bool{true, false}, busy)
	assert.Equal(t, 1, cancels)
	assert.ErrorIs(t, done, boom)
}

func TestWithNamedHooks_ReceivesResolvedName(t *testing.T) {
	var names []string
	named := viewmodel.WithNamedHooks(func(name string) viewmodel.Hooks {
		names = append(names, name)
		return viewmodel.Hooks{}
	})

	newSample(dispatch.Inline{}, named)
	newSample(dispatch.Inline{}, named, viewmodel.WithName("editor"))
	newSample(dispatch.Inline{}, named, viewmodel.WithHooks(viewmodel.Hooks{}))

	assert.Equal(t, []string{"sample", "editor"}, names)
}

func TestSubscribe_HandlerCanRunOnMainWithEventContext(t *testing.T) {
	for _, mode := range []viewmodel.BackgroundMode{viewmodel.SerializeOnMain, viewmodel.OffMain} {
		t.Run(mode.String(), func(t *testing.T) {
			loop := testutils.StartLoop(t)
			s := newSample(loop, viewmodel.WithBackgroundMode(mode))

			var nested []error
			var inline []bool
			s.Subscribe(func(e viewmodel.PropertyChanged) {
				if e.Name != viewmodel.BusyProperty {
					return
				}
				nested = append(nested, s.RunOnMain(e.Ctx, func(ctx context.Context) error {
					inline = append(inline, dispatch.OnLoop(ctx, loop))
					return nil
				}))
			})

			done := make(chan struct{})
			go func() {
				s.RunBackground(nil)
				s.Wait()
				close(done)
			}()
			select {
			case <-done:
			case <-time.After(2 * time.Second):
				t.Fatal("RunOnMain from a handler on the main loop did not return")
			}

			assert.Equal(t, []error{nil, nil}, nested)
			assert.Equal(t, []bool{true, true}, inline)
		})
	}
}

func TestNotifyChanged_OffLoopContext(t *testing.T) {
	loop := testutils.StartLoop(t)
	s := newSample(loop)

	var got viewmodel.PropertyChanged
	s.Subscribe(func(e viewmodel.PropertyChanged) { got = e })

	s.NotifyChanged("Title")
	require.NotNil(t, got.Ctx)
	assert.False(t, dispatch.OnLoop(got.Ctx, loop))

	p := viewmodel.NewProperty(s.Base, "Typed", 0)
	require.NoError(t, s.RunOnMain(context.Background(), func(ctx context.Context) error {
		p.SetContext(ctx, 1)
		return nil
	}))
	assert.Equal(t, "Typed", got.Name)
	assert.True(t, dispatch.OnLoop(got.Ctx, loop))
}

func TestNotifyChanged_DeliversToEverySubscriberSynchronously(t *testing.T) {
	s := newSample(dispatch.Inline{})

	var a, b []string
	s.Subscribe(func(e viewmodel.PropertyChanged) { a = append(a, e.Name) })
	unsub := s.Subscribe(func(e viewmodel.PropertyChanged) { b = append(b, e.Name) })

	s.NotifyChanged("Title")
	assert.Equal(t, []string{"Title"}, a)
	assert.Equal(t, []string{"Title"}, b)

	unsub()
	unsub()
	s.NotifyChanged("Title")
	assert.Equal(t, []string{"Title", "Title"}, a)
	assert.Equal(t, []string{"Title"}, b)
}

func TestNotifyChanged_SubscriberMayUnsubscribeDuringDelivery(t *testing.T) {
	s := newSample(dispatch.Inline{})

	calls := 0
	var unsub func()
	unsub = s.Subscribe(func(viewmodel.PropertyChanged) {
		calls++
		unsub()
	})

	s.NotifyChanged("Title")
	s.NotifyChanged("Title")
	assert.Equal(t, 1, calls)
}

func TestVerifyPropertyName(t *testing.T) {
	s := newSample(dispatch.Inline{}, viewmodel.WithProperties("Extra"))
	viewmodel.NewProperty(s.Base, "Typed", "")

	for _, name := range []string{"Title", "Count", "Busy", "Cancelled", "Extra", "Typed"} {
		assert.NoError(t, s.VerifyPropertyName(name), name)
	}
	for _, name := range []string{"disposed", "Titel", "", "OnDispose", "Dispose", "Base"} {
		var invalid *viewmodel.InvalidPropertyError
		assert.ErrorAs(t, s.VerifyPropertyName(name), &invalid, name)
	}
}

func TestNotifyChanged_StrictVerificationPanics(t *testing.T) {
	s := newSample(dispatch.Inline{},
		viewmodel.WithPropertyVerification(true),
		viewmodel.WithStrictPropertyNames(),
	)

	delivered := false
	s.Subscribe(func(viewmodel.PropertyChanged) { delivered = true })

	assert.PanicsWithError(t, `viewmodel: invalid property name "Titel" on *viewmodel_test.sample`, func() {
		s.NotifyChanged("Titel")
	})
	assert.False(t, delivered)
	assert.NotPanics(t, func() { s.NotifyChanged("Title") })
}

func TestNotifyChanged_LenientVerificationWarns(t *testing.T) {
	var buf bytes.Buffer
	s := newSample(dispatch.Inline{},
		viewmodel.WithPropertyVerification(true),
		viewmodel.WithLogger(logging.NewWithFormat(&buf, slog.LevelDebug, "text")),
	)

	var got []string
	s.Subscribe(func(e viewmodel.PropertyChanged) { got = append(got, e.Name) })

	s.NotifyChanged("Titel")

	assert.Contains(t, buf.String(), "Invalid property name")
	assert.Contains(t, buf.String(), "property=Titel")
	assert.Equal(t, []string{"Titel"}, got)
}

func TestNotifyChanged_VerificationDisabled(t *testing.T) {
	var buf bytes.Buffer
	s := newSample(dispatch.Inline{},
		viewmodel.WithPropertyVerification(false),
		viewmodel.WithStrictPropertyNames(),
		viewmodel.WithLogger(logging.NewWithFormat(&buf, slog.LevelDebug, "text")),
	)

	var got []string
	s.Subscribe(func(e viewmodel.PropertyChanged) { got = append(got, e.Name) })

	assert.NotPanics(t, func() { s.NotifyChanged("Nonexistent") })
	assert.Empty(t, buf.String())
	assert.Equal(t, []string{"Nonexistent"}, got)
}

func TestDispose_CallsTeardownEveryTime(t *testing.T) {
	s := newSample(dispatch.Inline{})

	s.Dispose()
	s.Dispose()
	assert.Equal(t, 2, s.disposed)

	// A Base bound to itself has no teardown.
	assert.NotPanics(t, viewmodel.New(nil, dispatch.Inline{}).Dispose)
}

func TestNew(t *testing.T) {
	assert.Panics(t, func() { viewmodel.New(nil, nil) })
	assert.Equal(t, "sample", newSample(dispatch.Inline{}).Name())
	assert.Equal(t, "custom", newSample(dispatch.Inline{}, viewmodel.WithName("custom")).Name())
	assert.Equal(t, "Base", viewmodel.New(nil, dispatch.Inline{}).Name())
}

func TestProperty_SetNotifiesOnlyOnChange(t *testing.T) {
	s := newSample(dispatch.Inline{}, viewmodel.WithPropertyVerification(true), viewmodel.WithStrictPropertyNames())
	status := viewmodel.NewProperty(s.Base, "Status", "idle")

	var got []string
	s.Subscribe(func(e viewmodel.PropertyChanged) { got = append(got, e.Name) })

	assert.False(t, status.Set("idle"))
	assert.True(t, status.Set("running"))
	assert.Equal(t, "running", status.Get())
	assert.Equal(t, "Status", status.Name())
	assert.Equal(t, []string{"Status"}, got)
}

func TestParseBackgroundMode(t *testing.T) {
	for in, want := range map[string]viewmodel.BackgroundMode{
		"":          viewmodel.SerializeOnMain,
		"main":      viewmodel.SerializeOnMain,
		"Serialize": viewmodel.SerializeOnMain,
		"worker":    viewmodel.OffMain,
		"off-main":  viewmodel.OffMain,
	} {
		got, err := viewmodel.ParseBackgroundMode(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := viewmodel.ParseBackgroundMode("threads")
	assert.Error(t, err)
	assert.Equal(t, "worker", viewmodel.OffMain.String())
	assert.Equal(t, "main", viewmodel.SerializeOnMain.String())
}
