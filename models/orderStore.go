package models

import (
	"context"
	"errors"
	"time"
)

var ErrDuplicateOrderId = errors.New("duplicate order_id")

// OrderStore owns persisted orders.
//
// FindOnePendingByAmount returns the oldest PENDING order with the given total
// created at or after since, or nil. TryMarkPaid is a single conditional write
// that only succeeds while the order is still PENDING. FindByOrderId returns
// nil when the order does not exist.
type OrderStore interface {
	Create(ctx context.Context, order *Order) error
	FindOnePendingByAmount(ctx context.Context, amount int64, since time.Time) (*Order, error)
	TryMarkPaid(ctx context.Context, orderId string) (bool, error)
	FindByOrderId(ctx context.Context, orderId string) (*Order, error)
}
