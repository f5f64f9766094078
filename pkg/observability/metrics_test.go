package observability_test

import (
	"context"
	"errors"
	"testing"

	"github.com/aretw0/mvvm/internal/testutils"
	"github.com/aretw0/mvvm/pkg/command"
	"github.com/aretw0/mvvm/pkg/dispatch"
	"github.com/aretw0/mvvm/pkg/observability"
	"github.com/aretw0/mvvm/pkg/viewmodel"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Registers(t *testing.T) {
	reg := prometheus.NewRegistry()
	observability.NewMetrics(reg)

	assert.Panics(t, func() { observability.NewMetrics(reg) }, "duplicate registration")
}

func TestMetrics_LoopHooks(t *testing.T) {
	m := observability.NewMetrics(prometheus.NewRegistry())
	loop := testutils.StartLoop(t, dispatch.WithHooks(m.LoopHooks()))
	boom := errors.New("boom")

	require.NoError(t, loop.Invoke(context.Background(), func(ctx context.Context) error { return nil }))
	require.ErrorIs(t, loop.Invoke(context.Background(), func(ctx context.Context) error { return boom }), boom)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Tasks.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Tasks.WithLabelValues("error")))
	var run dto.Metric
	require.NoError(t, m.TaskRun.Write(&run))
	assert.EqualValues(t, 2, run.GetHistogram().GetSampleCount())
	assert.Zero(t, testutil.ToFloat64(m.Unhandled))
}

func TestMetrics_UnhandledPost(t *testing.T) {
	m := observability.NewMetrics(nil)
	hooks := m.LoopHooks()

	hooks.OnUnhandled(errors.New("boom"))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Unhandled))
}

func TestMetrics_ViewModelHooks(t *testing.T) {
	m := observability.NewMetrics(nil)
	vm := viewmodel.New(nil, dispatch.Inline{}, viewmodel.WithHooks(m.ViewModelHooks("transfer")))

	vm.Cancel()
	vm.RunBackground(func(ctx context.Context) error {
		assert.Equal(t, 1.0, testutil.ToFloat64(m.Busy.WithLabelValues("transfer")))
		return nil
	})
	vm.Wait()

	assert.Zero(t, testutil.ToFloat64(m.Busy.WithLabelValues("transfer")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Cancels.WithLabelValues("transfer")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Background.WithLabelValues("transfer", "ok")))
}

func TestMetrics_CommandHooks(t *testing.T) {
	m := observability.NewMetrics(nil)
	c := command.MustRelay(func(p any) error {
		if p == nil {
			return errors.New("missing parameter")
		}
		return nil
	}, nil, command.WithHooks(m.CommandHooks("start")))

	_ = c.Execute(nil)
	_ = c.Execute("x")
	_ = c.Execute("y")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Commands.WithLabelValues("start", "error")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Commands.WithLabelValues("start", "ok")))
}
