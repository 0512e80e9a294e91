package reconcile

import (
	"context"
	"time"

	"github.com/mmdatafocus/qris_backend/appctx"
	"github.com/mmdatafocus/qris_backend/models"
	"github.com/mmdatafocus/qris_backend/notification"
	"github.com/mmdatafocus/qris_backend/notifier"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Receipt is handed to the dispatcher only after the PENDING -> PAID
// transition has committed.
type Receipt struct {
	Order  *models.Order
	Source notification.Source
	PaidAt time.Time
}

// Miss describes a notification that settled nothing.
type Miss struct {
	Amount int64
	Reason string
	Source notification.Source
	Text   string
}

// Dispatcher delivers side effects. Implementations must not return delivery
// failures to the engine: a settled order stays settled.
type Dispatcher interface {
	PaymentReceived(ctx context.Context, receipt Receipt)
	PaymentMissed(ctx context.Context, miss Miss)
}

type NoopDispatcher struct{}

func (NoopDispatcher) PaymentReceived(context.Context, Receipt) {}

func (NoopDispatcher) PaymentMissed(context.Context, Miss) {}

// SinkDispatcher fans a receipt out to the operator messenger, the order's
// webhook and the event publisher. Each sink runs under its own timeout and
// failures are only logged.
type SinkDispatcher struct {
	messenger notifier.Messenger
	webhook   notifier.WebhookSender
	publisher notifier.EventPublisher
	timeout   time.Duration
	logger    *logrus.Logger
}

func NewSinkDispatcher(logger *logrus.Logger, timeout time.Duration, messenger notifier.Messenger, webhook notifier.WebhookSender, publisher notifier.EventPublisher) *SinkDispatcher {
	if messenger == nil {
		messenger = notifier.Noop{}
	}
	if webhook == nil {
		webhook = notifier.NoopWebhook
	}
	if publisher == nil {
		publisher = notifier.Noop{}
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &SinkDispatcher{
		messenger: messenger,
		webhook:   webhook,
		publisher: publisher,
		timeout:   timeout,
		logger:    logger,
	}
}

func (d *SinkDispatcher) PaymentReceived(ctx context.Context, receipt Receipt) {
	// Request cancellation must not abort delivery of a committed payment.
	base := context.WithoutCancel(ctx)
	order := receipt.Order
	event := notifier.NewPaymentEvent(order, receipt.Source.Label, receipt.PaidAt)

	var g errgroup.Group
	g.Go(func() error {
		d.deliver(base, "telegram", order.OrderId, func(ctx context.Context) error {
			return d.messenger.Send(ctx, FormatReceipt(receipt))
		})
		return nil
	})
	if order.NotifyUrl != "" {
		g.Go(func() error {
			d.deliver(base, "webhook", order.OrderId, func(ctx context.Context) error {
				return d.webhook.Send(ctx, order.NotifyUrl, event)
			})
			return nil
		})
	}
	g.Go(func() error {
		d.deliver(base, "pubsub", order.OrderId, func(ctx context.Context) error {
			return d.publisher.Publish(ctx, event)
		})
		return nil
	})
	_ = g.Wait()
}

func (d *SinkDispatcher) PaymentMissed(ctx context.Context, miss Miss) {
	d.deliver(context.WithoutCancel(ctx), "telegram", "", func(ctx context.Context) error {
		return d.messenger.Send(ctx, FormatMiss(miss))
	})
}

func (d *SinkDispatcher) deliver(ctx context.Context, sink, orderId string, send func(context.Context) error) {
	sinkCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	if err := send(sinkCtx); err != nil {
		d.logger.WithFields(logrus.Fields{
			"field":          "dispatch",
			"sink":           sink,
			"order_id":       orderId,
			"correlation_id": appctx.CorrelationId(ctx),
		}).Error("sink delivery failed: " + err.Error())
	}
}
