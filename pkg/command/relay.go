package command

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInvalidArgument is the class of construction errors.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrNilAction is returned by NewRelay when no action is supplied.
	ErrNilAction = fmt.Errorf("%w: action is required", ErrInvalidArgument)
)

// Action is the work a command performs. The parameter is opaque to the relay.
// An Action gets no context, so one executed on the main loop must not call
// RunOnMain; use a ContextAction with ExecuteContext instead.
type Action func(parameter any) error

// ContextAction is an Action that receives the caller's context. Executed from
// a main loop operation with that operation's ctx, nested RunOnMain calls
// run inline.
type ContextAction func(ctx context.Context, parameter any) error

// Guard reports whether the command may execute for parameter.
type Guard func(parameter any) bool

// Command is the contract consumed by invokers (views, HTTP bindings, key maps).
type Command interface {
	CanExecute(parameter any) bool
	Execute(parameter any) error
	// OnCanExecuteChanged registers h to run when guards should be re-evaluated.
	OnCanExecuteChanged(h func()) (unsubscribe func())
}

// Hooks observe command execution.
type Hooks struct {
	OnExecute func(elapsed time.Duration, err error)
}

// Relay is a Command that relays to the callables it was built with.
type Relay struct {
	action  ContextAction
	guard   Guard
	requery *Requery
	hooks   Hooks
}

var _ Command = (*Relay)(nil)

// Option configures a Relay.
type Option func(*Relay)

// WithRequery binds the relay to r instead of the process-wide default.
func WithRequery(r *Requery) Option {
	return func(c *Relay) {
		c.requery = r
	}
}

// WithHooks registers execution observers.
func WithHooks(hooks Hooks) Option {
	return func(c *Relay) {
		c.hooks = hooks
	}
}

// NewRelay creates a relay. A nil guard means the command is always executable.
func NewRelay(action Action, guard Guard, opts ...Option) (*Relay, error) {
	if action == nil {
		return nil, ErrNilAction
	}
	return NewContextRelay(func(_ context.Context, parameter any) error {
		return action(parameter)
	}, guard, opts...)
}

// NewContextRelay creates a relay whose action receives the context given to
// ExecuteContext.
func NewContextRelay(action ContextAction, guard Guard, opts ...Option) (*Relay, error) {
	if action == nil {
		return nil, ErrNilAction
	}
	c := &Relay{
		action:  action,
		guard:   guard,
		requery: DefaultRequery(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.requery == nil {
		c.requery = DefaultRequery()
	}
	return c, nil
}

// MustRelay is like NewRelay but panics on error.
func MustRelay(action Action, guard Guard, opts ...Option) *Relay {
	c, err := NewRelay(action, guard, opts...)
	if err != nil {
		panic(err)
	}
	return c
}

// CanExecute reports whether the guard allows parameter.
func (c *Relay) CanExecute(parameter any) bool {
	if c.guard == nil {
		return true
	}
	return c.guard(parameter)
}

// Execute runs the action with a background context. It does not consult the
// guard.
func (c *Relay) Execute(parameter any) error {
	return c.ExecuteContext(context.Background(), parameter)
}

// ExecuteContext runs the action with ctx. It does not consult the guard.
func (c *Relay) ExecuteContext(ctx context.Context, parameter any) error {
	if c.hooks.OnExecute == nil {
		return c.action(ctx, parameter)
	}
	start := time.Now()
	err := c.action(ctx, parameter)
	c.hooks.OnExecute(time.Since(start), err)
	return err
}

// OnCanExecuteChanged forwards the subscription to the relay's Requery.
func (c *Relay) OnCanExecuteChanged(h func()) func() {
	return c.requery.Subscribe(h)
}
