package models

import "time"

type OrderStatus string

const (
	OrderStatusPending OrderStatus = "PENDING"
	OrderStatusPaid    OrderStatus = "PAID"
)

type PaymentMethod string

const (
	PaymentMethodQris PaymentMethod = "qris"
)

// Order is a payment request. TotalPay (AmountOriginal + UniqueCode) is the key
// incoming notifications are matched on. Status is the only field that changes
// after creation, and only from PENDING to PAID.
type Order struct {
	ID              int           `gorm:"primary_key" json:"-" bson:"-"`
	OrderId         string        `gorm:"size:64;not null;uniqueIndex" json:"order_id" bson:"order_id"`
	RefId           string        `gorm:"size:191" json:"ref_id" bson:"ref_id"`
	NotifyUrl       string        `gorm:"size:1024" json:"notify_url" bson:"notify_url"`
	ProductName     string        `gorm:"size:255" json:"product_name" bson:"product_name"`
	CustomerContact string        `gorm:"size:64" json:"customer_contact" bson:"customer_contact"`
	CustomerEmail   string        `gorm:"size:255" json:"customer_email" bson:"customer_email"`
	AmountOriginal  int64         `gorm:"not null" json:"amount_original" bson:"amount_original"`
	UniqueCode      int64         `gorm:"not null" json:"unique_code" bson:"unique_code"`
	TotalPay        int64         `gorm:"not null;index:idx_orders_match,priority:2" json:"total_pay" bson:"total_pay"`
	Method          PaymentMethod `gorm:"size:20;not null" json:"method" bson:"method"`
	Status          OrderStatus   `gorm:"size:20;not null;default:PENDING;index:idx_orders_match,priority:1" json:"status" bson:"status"`
	PaymentCode     string        `gorm:"type:text" json:"payment_code,omitempty" bson:"payment_code,omitempty"`
	CreatedAt       time.Time     `gorm:"not null;index:idx_orders_match,priority:3" json:"created_at" bson:"created_at"`
}

func (Order) TableName() string { return "orders" }

func (o *Order) IsPaid() bool {
	return o != nil && o.Status == OrderStatusPaid
}
