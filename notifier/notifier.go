package notifier

import (
	"context"
	"time"

	"github.com/mmdatafocus/qris_backend/models"
)

const EventPaymentSuccess = "PAYMENT_SUCCESS"

// PaymentEvent is the body delivered to merchant webhooks and the event topic.
type PaymentEvent struct {
	Event           string    `json:"event"`
	OrderId         string    `json:"order_id"`
	RefId           string    `json:"ref_id"`
	CustomerEmail   string    `json:"customer_email"`
	CustomerContact string    `json:"customer_contact"`
	ProductName     string    `json:"product_name"`
	Amount          int64     `json:"amount"`
	SourceApp       string    `json:"source_app"`
	PaidAt          time.Time `json:"paid_at"`
}

func NewPaymentEvent(order *models.Order, sourceApp string, paidAt time.Time) PaymentEvent {
	return PaymentEvent{
		Event:           EventPaymentSuccess,
		OrderId:         order.OrderId,
		RefId:           order.RefId,
		CustomerEmail:   order.CustomerEmail,
		CustomerContact: order.CustomerContact,
		ProductName:     order.ProductName,
		Amount:          order.TotalPay,
		SourceApp:       sourceApp,
		PaidAt:          paidAt.UTC(),
	}
}

// Messenger delivers operator-facing text.
type Messenger interface {
	Send(ctx context.Context, text string) error
}

// WebhookSender delivers a payment event to a merchant callback url.
type WebhookSender interface {
	Send(ctx context.Context, url string, event PaymentEvent) error
}

// EventPublisher fans payment events out to other services.
type EventPublisher interface {
	Publish(ctx context.Context, event PaymentEvent) error
}

// Noop satisfies every sink interface and drops everything. Used when a sink
// is not configured.
type Noop struct{}

func (Noop) Send(context.Context, string) error { return nil }

func (Noop) Publish(context.Context, PaymentEvent) error { return nil }

type noopWebhook struct{}

func (noopWebhook) Send(context.Context, string, PaymentEvent) error { return nil }

// NoopWebhook is a WebhookSender that drops every event.
var NoopWebhook WebhookSender = noopWebhook{}
