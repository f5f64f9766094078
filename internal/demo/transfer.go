package demo

import (
	"context"
	"fmt"
	"time"

	"github.com/aretw0/mvvm"
	"github.com/aretw0/mvvm/pkg/command"
	"github.com/aretw0/mvvm/pkg/viewmodel"
)

// Transfer statuses.
const (
	StatusIdle         = "Idle"
	StatusTransferring = "Transferring"
	StatusDone         = "Done"
	StatusCancelled    = "Cancelled"
)

// Transfer is a view-model that simulates a long copy in fixed steps.
type Transfer struct {
	*viewmodel.Base

	progress *viewmodel.Property[int]
	status   *viewmodel.Property[string]
	total    *viewmodel.Property[int]

	steps    int
	interval time.Duration
	requery  *command.Requery

	start  *command.Relay
	cancel *command.Relay

	unsubscribe func()
}

type config struct {
	steps    int
	interval time.Duration
	vmOpts   []viewmodel.Option
	commands func(name string) command.Hooks
}

// Option configures a Transfer.
type Option func(*config)

// WithSteps sets how many steps a transfer takes (default 10).
func WithSteps(n int) Option {
	return func(c *config) {
		c.steps = n
	}
}

// WithInterval sets the pause between steps (default 200ms).
func WithInterval(d time.Duration) Option {
	return func(c *config) {
		c.interval = d
	}
}

// WithViewModelOptions passes options through to the underlying Base.
func WithViewModelOptions(opts ...viewmodel.Option) Option {
	return func(c *config) {
		c.vmOpts = append(c.vmOpts, opts...)
	}
}

// WithCommandHooks observes the start and cancel commands by name.
func WithCommandHooks(f func(name string) command.Hooks) Option {
	return func(c *config) {
		c.commands = f
	}
}

// NewTransfer creates a Transfer on rt's main loop.
func NewTransfer(rt *mvvm.Runtime, opts ...Option) *Transfer {
	cfg := config{steps: 10, interval: 200 * time.Millisecond}
	for _, opt := range opts {
		opt(&cfg)
	}

	t := &Transfer{
		steps:    cfg.steps,
		interval: cfg.interval,
		requery:  rt.Requery(),
	}
	t.Base = rt.NewBase(t, append([]viewmodel.Option{viewmodel.WithName("transfer")}, cfg.vmOpts...)...)
	t.progress = viewmodel.NewProperty(t.Base, "Progress", 0)
	t.status = viewmodel.NewProperty(t.Base, "Status", StatusIdle)
	t.total = viewmodel.NewProperty(t.Base, "Total", cfg.steps)

	hooks := func(string) command.Hooks { return command.Hooks{} }
	if cfg.commands != nil {
		hooks = cfg.commands
	}
	t.start = command.MustRelay(t.startAction, t.canStart,
		command.WithRequery(t.requery), command.WithHooks(hooks("start")))
	t.cancel = command.MustRelay(t.cancelAction, t.canCancel,
		command.WithRequery(t.requery), command.WithHooks(hooks("cancel")))

	// Guards depend on Busy.
	t.unsubscribe = t.Subscribe(func(e viewmodel.PropertyChanged) {
		if e.Name == viewmodel.BusyProperty {
			t.requery.Suggest()
		}
	})
	return t
}

// Progress returns the number of completed steps.
func (t *Transfer) Progress() int { return t.progress.Get() }

// Status returns the current status line.
func (t *Transfer) Status() string { return t.status.Get() }

// Total returns the step count of the current (or last) transfer.
func (t *Transfer) Total() int { return t.total.Get() }

// StartCommand begins a transfer. Its parameter optionally overrides the
// step count. It can execute while the view-model is idle.
func (t *Transfer) StartCommand() command.Command { return t.start }

// CancelCommand stops the running transfer. It can execute while busy.
func (t *Transfer) CancelCommand() command.Command { return t.cancel }

// Snapshot reports property values for remote bindings.
func (t *Transfer) Snapshot() map[string]any {
	return map[string]any{
		"Progress": t.Progress(),
		"Status":   t.Status(),
		"Total":    t.Total(),
		"Busy":     t.Busy(),
	}
}

// OnDispose stops the running transfer and detaches from Busy changes.
func (t *Transfer) OnDispose() {
	t.Cancel()
	t.unsubscribe()
}

func (t *Transfer) canStart(any) bool  { return !t.Busy() }
func (t *Transfer) canCancel(any) bool { return t.Busy() }

func (t *Transfer) cancelAction(any) error {
	t.Cancel()
	return nil
}

func (t *Transfer) startAction(parameter any) error {
	steps, err := stepsFrom(parameter, t.steps)
	if err != nil {
		return err
	}
	t.RunBackground(func(ctx context.Context) error {
		return t.run(ctx, steps)
	})
	return nil
}

func (t *Transfer) run(ctx context.Context, steps int) error {
	if err := t.RunOnMain(ctx, func(ctx context.Context) error {
		t.total.SetContext(ctx, steps)
		t.progress.SetContext(ctx, 0)
		t.status.SetContext(ctx, StatusTransferring)
		return nil
	}); err != nil {
		return err
	}

	for i := 1; i <= steps; i++ {
		if t.Cancelled() {
			return t.finish(ctx, StatusCancelled)
		}
		time.Sleep(t.interval)

		step := i
		if err := t.RunOnMain(ctx, func(ctx context.Context) error {
			t.progress.SetContext(ctx, step)
			return nil
		}); err != nil {
			return err
		}
	}
	if t.Cancelled() {
		return t.finish(ctx, StatusCancelled)
	}
	return t.finish(ctx, StatusDone)
}

func (t *Transfer) finish(ctx context.Context, status string) error {
	return t.RunOnMain(ctx, func(ctx context.Context) error {
		t.status.SetContext(ctx, status)
		return nil
	})
}

func stepsFrom(parameter any, fallback int) (int, error) {
	switch v := parameter.(type) {
	case nil:
		return fallback, nil
	case int:
		if v >= 0 {
			return v, nil
		}
	case float64:
		if v >= 0 && v == float64(int(v)) {
			return int(v), nil
		}
	}
	return 0, fmt.Errorf("%w: steps must be a non-negative integer, got %v", command.ErrInvalidArgument, parameter)
}
