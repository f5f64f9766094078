package redis

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/aretw0/mvvm/internal/logging"
	"github.com/aretw0/mvvm/pkg/command"
	"github.com/google/uuid"
	backend "github.com/redis/go-redis/v9"
)

// DefaultChannel is the pub/sub channel used when none is configured.
const DefaultChannel = "mvvm:requery"

// RequeryBridge relays requery suggestions between processes sharing a Redis
// server. Each bridge tags what it publishes with its origin id and ignores
// its own messages, so a broadcast fires the local signal exactly once.
type RequeryBridge struct {
	client  *backend.Client
	requery *command.Requery
	channel string
	origin  string
	logger  *slog.Logger

	ready     chan struct{}
	readyOnce sync.Once
}

// Option configures a RequeryBridge.
type Option func(*RequeryBridge)

// WithChannel sets the pub/sub channel.
func WithChannel(channel string) Option {
	return func(b *RequeryBridge) {
		if channel != "" {
			b.channel = channel
		}
	}
}

// WithLogger configures a logger for the bridge.
func WithLogger(logger *slog.Logger) Option {
	return func(b *RequeryBridge) {
		b.logger = logger
	}
}

// NewRequeryBridge creates a bridge feeding remote suggestions into requery.
func NewRequeryBridge(client *backend.Client, requery *command.Requery, opts ...Option) *RequeryBridge {
	b := &RequeryBridge{
		client:  client,
		requery: requery,
		channel: DefaultChannel,
		origin:  uuid.NewString(),
		logger:  logging.NewNop(),
		ready:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Origin identifies this bridge's messages.
func (b *RequeryBridge) Origin() string {
	return b.origin
}

// Ready is closed once Run has confirmed its subscription.
func (b *RequeryBridge) Ready() <-chan struct{} {
	return b.ready
}

// Broadcast suggests a requery locally and to every peer.
func (b *RequeryBridge) Broadcast(ctx context.Context) error {
	b.requery.Suggest()
	if err := b.client.Publish(ctx, b.channel, b.origin).Err(); err != nil {
		return fmt.Errorf("redis error publishing requery: %w", err)
	}
	return nil
}

// Run subscribes to the channel and suggests a requery for every message from
// another origin. It blocks until ctx is done or the subscription closes.
func (b *RequeryBridge) Run(ctx context.Context) error {
	ps := b.client.Subscribe(ctx, b.channel)
	defer ps.Close()

	if _, err := ps.Receive(ctx); err != nil {
		return fmt.Errorf("redis error subscribing to %s: %w", b.channel, err)
	}
	b.readyOnce.Do(func() { close(b.ready) })
	b.logger.Debug("Requery bridge subscribed", "channel", b.channel, "origin", b.origin)

	msgs := ps.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-msgs:
			if !ok {
				return nil
			}
			if msg.Payload == b.origin {
				continue
			}
			b.logger.Debug("Remote requery suggested", "channel", b.channel, "from", msg.Payload)
			b.requery.Suggest()
		}
	}
}
