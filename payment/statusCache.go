package payment

import (
	"context"
	"time"

	"github.com/mmdatafocus/qris_backend/models"
	"github.com/redis/go-redis/v9"
)

const (
	statusCachePrefix = "order_status:"
	statusCacheTTL    = 24 * time.Hour
)

// StatusCache remembers settled orders so polling clients stop hitting the
// store. Only PAID is cached: it is terminal, PENDING is not.
type StatusCache struct {
	client *redis.Client
}

func NewStatusCache(client *redis.Client) *StatusCache {
	if client == nil {
		return nil
	}
	return &StatusCache{client: client}
}

func (c *StatusCache) Get(ctx context.Context, orderId string) (models.OrderStatus, bool) {
	if c == nil {
		return "", false
	}
	v, err := c.client.Get(ctx, statusCachePrefix+orderId).Result()
	if err != nil {
		return "", false
	}
	return models.OrderStatus(v), true
}

func (c *StatusCache) SetPaid(ctx context.Context, orderId string) error {
	if c == nil {
		return nil
	}
	return c.client.Set(ctx, statusCachePrefix+orderId, string(models.OrderStatusPaid), statusCacheTTL).Err()
}
