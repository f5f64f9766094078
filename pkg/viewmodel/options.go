package viewmodel

import (
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// BackgroundMode selects where RunBackground executes the operation body.
type BackgroundMode int

const (
	// SerializeOnMain runs the operation body on the main loop.
	SerializeOnMain BackgroundMode = iota
	// OffMain runs the operation body on the spawned goroutine.
	OffMain
)

func (m BackgroundMode) String() string {
	switch m {
	case SerializeOnMain:
		return "main"
	case OffMain:
		return "worker"
	default:
		return fmt.Sprintf("BackgroundMode(%d)", int(m))
	}
}

// ParseBackgroundMode accepts "main" (or "serialize") and "worker" (or "off-main").
func ParseBackgroundMode(s string) (BackgroundMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "main", "serialize":
		return SerializeOnMain, nil
	case "worker", "off-main", "offmain":
		return OffMain, nil
	default:
		return SerializeOnMain, fmt.Errorf("unknown background mode %q", s)
	}
}

// Hooks observe a view-model's lifecycle. Nil callbacks are skipped.
type Hooks struct {
	OnBusyChanged    func(busy bool)
	OnCancel         func()
	OnBackgroundDone func(elapsed time.Duration, err error)
}

// Option configures a Base.
type Option func(*Base)

// WithLogger sets the logger for diagnostics and unhandled failures.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Base) {
		b.logger = logger
	}
}

// WithName overrides the name used in logs and metrics (default: owner type name).
func WithName(name string) Option {
	return func(b *Base) {
		b.name = name
	}
}

// WithHooks registers lifecycle observers.
func WithHooks(hooks Hooks) Option {
	return func(b *Base) {
		b.hooks = hooks
		b.hooksFor = nil
	}
}

// WithNamedHooks builds the hooks once the view-model's name is known.
// A later WithHooks replaces it.
func WithNamedHooks(f func(name string) Hooks) Option {
	return func(b *Base) {
		b.hooksFor = f
	}
}

// WithBackgroundMode selects where RunBackground runs operation bodies.
func WithBackgroundMode(mode BackgroundMode) Option {
	return func(b *Base) {
		b.mode = mode
	}
}

// WithPropertyVerification turns property name verification on or off,
// overriding the build default.
func WithPropertyVerification(enabled bool) Option {
	return func(b *Base) {
		b.verify = enabled
	}
}

// WithStrictPropertyNames makes an unknown property name panic instead of warn.
func WithStrictPropertyNames() Option {
	return func(b *Base) {
		b.strict = true
	}
}

// WithProperties registers names that NotifyChanged accepts in addition to the
// owner's exported fields and getters.
func WithProperties(names ...string) Option {
	return func(b *Base) {
		for _, name := range names {
			b.names.Store(name, struct{}{})
		}
	}
}

// WithUnhandledHandler receives failures of background operations after they
// have been logged.
func WithUnhandledHandler(h func(err error)) Option {
	return func(b *Base) {
		b.onUnhandled = h
	}
}
