package notifier

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/amishk599/hirewire/internal/model"
)

var (
	_ model.Publisher = (*RedisPublisher)(nil)
	_ model.Publisher = (*HubPublisher)(nil)
	_ model.Publisher = (*LogPublisher)(nil)
)

// RedisPublisher publishes payloads with Redis PUBLISH. Delivery is
// at-least-once from our side; Redis drops messages nobody is subscribed to.
type RedisPublisher struct {
	client *redis.Client
}

func NewRedisPublisher(client *redis.Client) *RedisPublisher {
	return &RedisPublisher{client: client}
}

func (p *RedisPublisher) Publish(ctx context.Context, topic string, payload []byte) error {
	if err := p.client.Publish(ctx, topic, payload).Err(); err != nil {
		return fmt.Errorf("redis publish to %s: %w", topic, err)
	}
	return nil
}

// HubPublisher relays payloads to in-process subscribers, keyed by recipient.
// Slow subscribers drop messages instead of blocking the pipeline.
type HubPublisher struct {
	mu   sync.Mutex
	subs map[string]map[chan []byte]struct{}
}

func NewHubPublisher() *HubPublisher {
	return &HubPublisher{subs: make(map[string]map[chan []byte]struct{})}
}

// Subscribe registers a buffered channel for recipient. Call the returned
// function to unsubscribe; it closes the channel.
func (h *HubPublisher) Subscribe(recipient string) (<-chan []byte, func()) {
	ch := make(chan []byte, 16)

	h.mu.Lock()
	if h.subs[recipient] == nil {
		h.subs[recipient] = make(map[chan []byte]struct{})
	}
	h.subs[recipient][ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs[recipient], ch)
			if len(h.subs[recipient]) == 0 {
				delete(h.subs, recipient)
			}
			h.mu.Unlock()
			close(ch)
		})
	}
}

// Subscribers reports how many streams are open for recipient.
func (h *HubPublisher) Subscribers(recipient string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[recipient])
}

// Publish never fails; topics outside the notifications namespace are ignored.
func (h *HubPublisher) Publish(_ context.Context, topic string, payload []byte) error {
	recipient, ok := RecipientFromTopic(topic)
	if !ok {
		return nil
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs[recipient] {
		select {
		case ch <- payload:
		default:
		}
	}
	return nil
}

// LogPublisher writes each payload to the logger.
type LogPublisher struct {
	logger *slog.Logger
}

func NewLogPublisher(logger *slog.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(_ context.Context, topic string, payload []byte) error {
	p.logger.Info("realtime notification", "topic", topic, "payload", string(payload))
	return nil
}
