package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultDedupTTL bounds how long a dispatched (listing, search) pair is remembered.
const DefaultDedupTTL = 72 * time.Hour

// RedisDeduper remembers which listings were already dispatched to which
// instant searches, so a repeated publish notification does not alert twice.
type RedisDeduper struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisDeduper(client *redis.Client, ttl time.Duration) *RedisDeduper {
	if ttl <= 0 {
		ttl = DefaultDedupTTL
	}
	return &RedisDeduper{client: client, ttl: ttl}
}

func dedupKey(listingID, searchID string) string {
	return fmt.Sprintf("alerts:instant:%s:%s", listingID, searchID)
}

// Claim returns true the first time the pair is seen within the TTL.
func (d *RedisDeduper) Claim(ctx context.Context, listingID, searchID string) (bool, error) {
	ok, err := d.client.SetNX(ctx, dedupKey(listingID, searchID), time.Now().UTC().Unix(), d.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("dedup claim: %w", err)
	}
	return ok, nil
}

// Release forgets a pair, allowing it to be dispatched again.
func (d *RedisDeduper) Release(ctx context.Context, listingID, searchID string) error {
	if err := d.client.Del(ctx, dedupKey(listingID, searchID)).Err(); err != nil {
		return fmt.Errorf("dedup release: %w", err)
	}
	return nil
}
