package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	mysqlDriver "github.com/go-sql-driver/mysql"
	"gorm.io/gorm"
)

type GormOrderStore struct {
	db *gorm.DB
}

func NewGormOrderStore(db *gorm.DB) *GormOrderStore {
	return &GormOrderStore{db: db}
}

func isDuplicateKeyErr(err error) bool {
	var mysqlErr *mysqlDriver.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == 1062
	}
	return errors.Is(err, gorm.ErrDuplicatedKey)
}

func (s *GormOrderStore) Create(ctx context.Context, order *Order) error {
	if order.Status == "" {
		order.Status = OrderStatusPending
	}
	if order.CreatedAt.IsZero() {
		order.CreatedAt = time.Now()
	}
	// sqlite binds times as text in their own zone; keep every row in UTC so
	// created_at comparisons stay chronological.
	order.CreatedAt = order.CreatedAt.UTC()
	if err := s.db.WithContext(ctx).Create(order).Error; err != nil {
		if isDuplicateKeyErr(err) {
			return fmt.Errorf("%w: %s", ErrDuplicateOrderId, order.OrderId)
		}
		return err
	}
	return nil
}

func (s *GormOrderStore) FindOnePendingByAmount(ctx context.Context, amount int64, since time.Time) (*Order, error) {
	var order Order
	err := s.db.WithContext(ctx).
		Where("status = ? AND total_pay = ? AND created_at >= ?", OrderStatusPending, amount, since.UTC()).
		Order("created_at ASC").
		Order("id ASC").
		Take(&order).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (s *GormOrderStore) TryMarkPaid(ctx context.Context, orderId string) (bool, error) {
	res := s.db.WithContext(ctx).
		Model(&Order{}).
		Where("order_id = ? AND status = ?", orderId, OrderStatusPending).
		Update("status", OrderStatusPaid)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (s *GormOrderStore) FindByOrderId(ctx context.Context, orderId string) (*Order, error) {
	var order Order
	err := s.db.WithContext(ctx).Where("order_id = ?", orderId).Take(&order).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}
