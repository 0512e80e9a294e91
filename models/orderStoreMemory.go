package models

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MemoryOrderStore keeps orders in process. Used for local runs without a
// database and in tests.
type MemoryOrderStore struct {
	mu     sync.Mutex
	orders map[string]*Order
	seq    int
}

func NewMemoryOrderStore() *MemoryOrderStore {
	return &MemoryOrderStore{orders: map[string]*Order{}}
}

func (s *MemoryOrderStore) Create(ctx context.Context, order *Order) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.orders[order.OrderId]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateOrderId, order.OrderId)
	}
	if order.Status == "" {
		order.Status = OrderStatusPending
	}
	if order.CreatedAt.IsZero() {
		order.CreatedAt = time.Now()
	}
	order.CreatedAt = order.CreatedAt.UTC()
	s.seq++
	order.ID = s.seq
	stored := *order
	s.orders[order.OrderId] = &stored
	return nil
}

func (s *MemoryOrderStore) FindOnePendingByAmount(ctx context.Context, amount int64, since time.Time) (*Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var best *Order
	for _, o := range s.orders {
		if o.Status != OrderStatusPending || o.TotalPay != amount || o.CreatedAt.Before(since) {
			continue
		}
		if best == nil || o.CreatedAt.Before(best.CreatedAt) ||
			(o.CreatedAt.Equal(best.CreatedAt) && o.ID < best.ID) {
			best = o
		}
	}
	if best == nil {
		return nil, nil
	}
	found := *best
	return &found, nil
}

func (s *MemoryOrderStore) TryMarkPaid(ctx context.Context, orderId string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderId]
	if !ok || o.Status != OrderStatusPending {
		return false, nil
	}
	o.Status = OrderStatusPaid
	return true, nil
}

func (s *MemoryOrderStore) FindByOrderId(ctx context.Context, orderId string) (*Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderId]
	if !ok {
		return nil, nil
	}
	found := *o
	return &found, nil
}
