package reconcile

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const dedupeKeyPrefix = "notif:seen:"

// Deduper suppresses relays that deliver the same notification twice. A nil
// Deduper, or one with a zero TTL, lets everything through.
type Deduper struct {
	client *redis.Client
	ttl    time.Duration
}

func NewDeduper(client *redis.Client, ttl time.Duration) *Deduper {
	if client == nil || ttl <= 0 {
		return nil
	}
	return &Deduper{client: client, ttl: ttl}
}

// Reserve returns true when the fingerprint was not seen within the TTL.
func (d *Deduper) Reserve(ctx context.Context, fingerprint string) (bool, error) {
	if d == nil {
		return true, nil
	}
	return d.client.SetNX(ctx, dedupeKeyPrefix+fingerprint, 1, d.ttl).Result()
}

func (d *Deduper) Release(ctx context.Context, fingerprint string) error {
	if d == nil {
		return nil
	}
	return d.client.Del(ctx, dedupeKeyPrefix+fingerprint).Err()
}
