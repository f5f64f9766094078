package testutils

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/mvvm/pkg/dispatch"
	"github.com/stretchr/testify/require"
)

// StartLoop creates a main loop and runs it on its own goroutine for the
// duration of the test. The loop is closed and drained on cleanup.
func StartLoop(t *testing.T, opts ...dispatch.Option) *dispatch.Loop {
	t.Helper()

	loop := dispatch.NewLoop(opts...)
	ctx, cancel := context.WithCancel(context.Background())
	exited := make(chan struct{})
	go func() {
		defer close(exited)
		_ = loop.Run(ctx)
	}()

	t.Cleanup(func() {
		cancel()
		select {
		case <-exited:
		case <-time.After(2 * time.Second):
			t.Error("main loop did not stop")
		}
	})
	return loop
}

// Eventually fails the test if ch does not yield a value within timeout.
func Eventually[T any](t *testing.T, ch <-chan T, timeout time.Duration) T {
	t.Helper()

	select {
	case v := <-ch:
		return v
	case <-time.After(timeout):
		require.FailNow(t, "timed out waiting for value")
	}
	var zero T
	return zero
}
