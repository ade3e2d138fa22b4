package notifier

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const relayBackoff = 5 * time.Second

// RedisRelay forwards notifications published on Redis to a local hub so
// /ws streams keep working when the realtime transport is Redis.
type RedisRelay struct {
	client  *redis.Client
	hub     *HubPublisher
	logger  *slog.Logger
	backoff time.Duration
}

func NewRedisRelay(client *redis.Client, hub *HubPublisher, logger *slog.Logger) *RedisRelay {
	return &RedisRelay{client: client, hub: hub, logger: logger, backoff: relayBackoff}
}

// Run relays messages until ctx is cancelled, resubscribing after failures.
func (r *RedisRelay) Run(ctx context.Context) error {
	for {
		err := r.relay(ctx)
		if ctx.Err() != nil {
			return nil
		}
		r.logger.Error("realtime relay error, resubscribing", "kind", "notification", "error", err)
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(r.backoff):
		}
	}
}

func (r *RedisRelay) relay(ctx context.Context) error {
	ps := r.client.PSubscribe(ctx, TopicPrefix+"*")
	defer ps.Close()

	if _, err := ps.Receive(ctx); err != nil {
		return fmt.Errorf("psubscribe %s*: %w", TopicPrefix, err)
	}
	r.logger.Info("realtime relay subscribed", "pattern", TopicPrefix+"*")

	ch := ps.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return errors.New("subscription closed")
			}
			_ = r.hub.Publish(ctx, msg.Channel, []byte(msg.Payload))
		}
	}
}
