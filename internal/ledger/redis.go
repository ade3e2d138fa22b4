package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "hirewire:seen:"

// Redis keeps fingerprints as keys with a TTL so Redis itself bounds the
// ledger. A zero TTL keeps keys forever.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedis(client *redis.Client, ttl time.Duration) *Redis {
	return &Redis{client: client, ttl: ttl}
}

// CheckAndMark uses SET NX, which is atomic across processes sharing the server.
func (r *Redis) CheckAndMark(ctx context.Context, fp string) (bool, error) {
	ok, err := r.client.SetNX(ctx, redisKeyPrefix+fp, 1, r.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis ledger mark %s: %w", fp, err)
	}
	return ok, nil
}

func (r *Redis) Unmark(ctx context.Context, fp string) error {
	if err := r.client.Del(ctx, redisKeyPrefix+fp).Err(); err != nil {
		return fmt.Errorf("redis ledger unmark %s: %w", fp, err)
	}
	return nil
}

// Len counts live fingerprint keys with SCAN. SCAN may repeat keys, so they
// are deduplicated; keys expiring mid-scan make the figure approximate.
// It walks the whole keyspace and is meant for per-cycle stats only.
func (r *Redis) Len(ctx context.Context) (int, error) {
	var cursor uint64
	seen := make(map[string]struct{})
	for {
		keys, next, err := r.client.Scan(ctx, cursor, redisKeyPrefix+"*", 500).Result()
		if err != nil {
			return 0, fmt.Errorf("redis ledger scan: %w", err)
		}
		for _, k := range keys {
			seen[k] = struct{}{}
		}
		cursor = next
		if cursor == 0 {
			return len(seen), nil
		}
	}
}
