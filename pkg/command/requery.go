package command

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/aretw0/mvvm/internal/logging"
	"github.com/aretw0/mvvm/pkg/dispatch"
)

type subscription struct {
	id uint64
	h  func()
}

// Requery is a multicast "re-evaluate command guards" signal.
type Requery struct {
	mu     sync.RWMutex
	subs   []subscription
	nextID atomic.Uint64

	main    dispatch.Dispatcher
	pending atomic.Bool
	logger  *slog.Logger
}

// RequeryOption configures a Requery.
type RequeryOption func(*Requery)

// WithDispatcher delivers suggestions on d, coalescing bursts into one delivery.
func WithDispatcher(d dispatch.Dispatcher) RequeryOption {
	return func(r *Requery) {
		r.main = d
	}
}

// WithRequeryLogger configures the logger used when delivery cannot be scheduled.
func WithRequeryLogger(logger *slog.Logger) RequeryOption {
	return func(r *Requery) {
		r.logger = logger
	}
}

// NewRequery creates a signal. Without a dispatcher, Suggest delivers synchronously.
func NewRequery(opts ...RequeryOption) *Requery {
	r := &Requery{logger: logging.NewNop()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

var defaultRequery = NewRequery()

// DefaultRequery returns the process-wide signal relays use unless told otherwise.
func DefaultRequery() *Requery {
	return defaultRequery
}

// Subscribe registers h and returns a function that removes it. With a
// dispatcher, h runs on the main loop without a loop context and must not
// call RunOnMain.
func (r *Requery) Subscribe(h func()) func() {
	if h == nil {
		return func() {}
	}
	id := r.nextID.Add(1)

	r.mu.Lock()
	r.subs = append(r.subs, subscription{id: id, h: h})
	r.mu.Unlock()

	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		for i, s := range r.subs {
			if s.id == id {
				r.subs = append(r.subs[:i:i], r.subs[i+1:]...)
				return
			}
		}
	}
}

// Len returns the number of subscribers.
func (r *Requery) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.subs)
}

// Suggest asks every subscriber to re-evaluate its guards.
func (r *Requery) Suggest() {
	if r.main == nil {
		r.deliver()
		return
	}
	if !r.pending.CompareAndSwap(false, true) {
		return
	}
	err := r.main.Post(func(ctx context.Context) error {
		r.pending.Store(false)
		r.deliver()
		return nil
	})
	if err != nil {
		r.pending.Store(false)
		r.logger.Warn("Requery suggestion dropped", "err", err)
	}
}

func (r *Requery) deliver() {
	r.mu.RLock()
	subs := make([]subscription, len(r.subs))
	copy(subs, r.subs)
	r.mu.RUnlock()

	for _, s := range subs {
		s.h()
	}
}
