package mvvm

import (
	"context"
	"log/slog"

	"github.com/aretw0/mvvm/internal/logging"
	"github.com/aretw0/mvvm/pkg/command"
	"github.com/aretw0/mvvm/pkg/dispatch"
	"github.com/aretw0/mvvm/pkg/observability"
	"github.com/aretw0/mvvm/pkg/viewmodel"
)

// Runtime is the high-level entry point for the library.
// It owns the main loop and the requery signal shared by every view-model and
// command created through it.
type Runtime struct {
	loop    *dispatch.Loop
	requery *command.Requery
	logger  *slog.Logger
	metrics *observability.Metrics
	vmOpts  []viewmodel.Option
}

// Option defines a functional option for configuring the Runtime.
type Option func(*Runtime)

// WithLogger sets a custom structured logger for the runtime.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runtime) {
		r.logger = logger
	}
}

// WithMetrics records loop, view-model and command activity.
func WithMetrics(m *observability.Metrics) Option {
	return func(r *Runtime) {
		r.metrics = m
	}
}

// WithBackgroundMode sets where RunBackground executes for every view-model
// created by the runtime.
func WithBackgroundMode(mode viewmodel.BackgroundMode) Option {
	return func(r *Runtime) {
		r.vmOpts = append(r.vmOpts, viewmodel.WithBackgroundMode(mode))
	}
}

// WithStrictPropertyNames makes unknown property names panic.
func WithStrictPropertyNames() Option {
	return func(r *Runtime) {
		r.vmOpts = append(r.vmOpts, viewmodel.WithStrictPropertyNames())
	}
}

// WithPropertyVerification overrides the build default for property name checks.
func WithPropertyVerification(enabled bool) Option {
	return func(r *Runtime) {
		r.vmOpts = append(r.vmOpts, viewmodel.WithPropertyVerification(enabled))
	}
}

// New initializes a Runtime. Nothing runs on the main loop until Run is called.
func New(opts ...Option) *Runtime {
	r := &Runtime{}
	for _, opt := range opts {
		opt(r)
	}

	// Ensure logger is initialized so components never see nil
	if r.logger == nil {
		r.logger = logging.NewNop()
	}

	loopOpts := []dispatch.Option{dispatch.WithLogger(r.logger)}
	if r.metrics != nil {
		loopOpts = append(loopOpts, dispatch.WithHooks(r.metrics.LoopHooks()))
	}
	r.loop = dispatch.NewLoop(loopOpts...)
	r.requery = command.NewRequery(
		command.WithDispatcher(r.loop),
		command.WithRequeryLogger(r.logger),
	)
	return r
}

// Run executes the main loop on the calling goroutine until ctx is done or
// Close is called.
func (r *Runtime) Run(ctx context.Context) error {
	return r.loop.Run(ctx)
}

// Close stops the main loop. Pending operations fail with dispatch.ErrLoopClosed.
func (r *Runtime) Close() {
	r.loop.Close()
}

// Main returns the main loop.
func (r *Runtime) Main() *dispatch.Loop {
	return r.loop
}

// Requery returns the signal shared by relays created with NewRelay.
func (r *Runtime) Requery() *command.Requery {
	return r.requery
}

// Metrics returns the configured metrics, or nil.
func (r *Runtime) Metrics() *observability.Metrics {
	return r.metrics
}

// NewBase creates a view-model base bound to the main loop. Runtime-wide
// options apply first; opts may override them.
func (r *Runtime) NewBase(owner any, opts ...viewmodel.Option) *viewmodel.Base {
	all := []viewmodel.Option{viewmodel.WithLogger(r.logger)}
	if r.metrics != nil {
		all = append(all, viewmodel.WithNamedHooks(r.metrics.ViewModelHooks))
	}
	all = append(all, r.vmOpts...)
	all = append(all, opts...)
	return viewmodel.New(owner, r.loop, all...)
}

// NewRelay creates a command whose change notifications follow the runtime's
// requery signal.
func (r *Runtime) NewRelay(action command.Action, guard command.Guard, opts ...command.Option) (*command.Relay, error) {
	all := append([]command.Option{command.WithRequery(r.requery)}, opts...)
	return command.NewRelay(action, guard, all...)
}
