package payment

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/mmdatafocus/qris_backend/appctx"
	"github.com/mmdatafocus/qris_backend/config"
	"github.com/mmdatafocus/qris_backend/models"
	"github.com/mmdatafocus/qris_backend/qris"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("qris_backend/payment")

var ErrOrderNotFound = errors.New("order not found")

const createOrderAttempts = 3

type CheckoutResult struct {
	OrderId     string               `json:"order_id"`
	TotalPay    int64                `json:"total_pay"`
	UniqueCode  int64                `json:"unique_code"`
	Method      models.PaymentMethod `json:"method"`
	QRImage     string               `json:"qr_image,omitempty"`
	QRString    string               `json:"qr_string,omitempty"`
	PaymentInfo string               `json:"payment_info"`
}

type Options struct {
	Checkout         config.CheckoutConfig
	DefaultNotifyURL string
	// Window is the reconciliation freshness window; disambiguation
	// reservations live as long as an order can still match.
	Window time.Duration
	Redis  *redis.Client
	Now    func() time.Time
}

type Service struct {
	store            models.OrderStore
	codes            *CodeAssigner
	cache            *StatusCache
	cfg              config.CheckoutConfig
	defaultNotifyURL string
	logger           *logrus.Logger
	now              func() time.Time
	intN             func(n int) int
}

func NewService(store models.OrderStore, logger *logrus.Logger, opts Options) *Service {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Checkout.QRImageSize <= 0 {
		opts.Checkout.QRImageSize = qris.DefaultImageSize
	}
	return &Service{
		store:            store,
		codes:            NewCodeAssigner(opts.Redis, opts.Window, opts.Checkout.DisambiguationMaxAttempts, logger),
		cache:            NewStatusCache(opts.Redis),
		cfg:              opts.Checkout,
		defaultNotifyURL: opts.DefaultNotifyURL,
		logger:           logger,
		now:              opts.Now,
		intN:             rand.IntN,
	}
}

func (s *Service) newOrderId() string {
	return fmt.Sprintf("ORD-%d-%d", s.now().UnixMilli(), s.intN(1000))
}

// Checkout validates the request, creates a PENDING order and returns what
// the buyer needs to pay it.
func (s *Service) Checkout(ctx context.Context, req CheckoutRequest) (*CheckoutResult, error) {
	ctx, span := tracer.Start(ctx, "payment.Checkout")
	defer span.End()

	if err := req.validate(); err != nil {
		return nil, err
	}
	base, err := parsePrice(req.Price)
	if err != nil {
		return nil, err
	}

	method := models.PaymentMethod(strings.ToLower(strings.TrimSpace(req.Method)))
	if method == "" {
		method = models.PaymentMethodQris
	}

	if base < s.cfg.MinAmount {
		return nil, invalid("minimum amount is %s", qris.FormatRupiah(s.cfg.MinAmount))
	}
	if s.cfg.MaxAmount > 0 && base > s.cfg.MaxAmount {
		return nil, invalid("maximum amount is %s", qris.FormatRupiah(s.cfg.MaxAmount))
	}
	if method != models.PaymentMethodQris && base < s.cfg.BankTransferMinAmount {
		return nil, invalid("bank transfer requires at least %s", qris.FormatRupiah(s.cfg.BankTransferMinAmount))
	}
	account, isBank := s.cfg.BankAccounts[string(method)]
	if method != models.PaymentMethodQris && !isBank {
		return nil, invalid("method not available")
	}

	code, total := s.codes.Assign(ctx, base)
	span.SetAttributes(attribute.Int64("total_pay", total), attribute.String("method", string(method)))

	result := &CheckoutResult{
		TotalPay:   total,
		UniqueCode: code,
		Method:     method,
	}
	if method == models.PaymentMethodQris {
		result.QRString = qris.EncodeDynamicAmount(s.cfg.StaticQris, total)
		result.QRImage, err = qris.QRCodeDataURL(result.QRString, s.cfg.QRImageSize)
		if err != nil {
			config.LogError(s.logger, "payment", "Checkout", "QRCodeDataURL", total, err)
			return nil, fmt.Errorf("render qr code: %w", err)
		}
		result.PaymentInfo = "Scan the QRIS code above"
	} else {
		result.PaymentInfo = fmt.Sprintf("Please transfer %s to:\n%s: %s\n\n(Make sure the amount matches exactly, including the last 3 digits)",
			qris.FormatRupiah(total), strings.ToUpper(string(method)), account)
	}

	notifyURL := strings.TrimSpace(req.NotifyUrl)
	if notifyURL == "" {
		notifyURL = s.defaultNotifyURL
	}
	order := &models.Order{
		RefId:           strings.TrimSpace(req.RefId),
		NotifyUrl:       notifyURL,
		ProductName:     strings.TrimSpace(req.ProductName),
		CustomerContact: normalizeContact(req.CustomerContact),
		CustomerEmail:   strings.TrimSpace(req.CustomerEmail),
		AmountOriginal:  base,
		UniqueCode:      code,
		TotalPay:        total,
		Method:          method,
		Status:          models.OrderStatusPending,
		PaymentCode:     result.QRString,
	}
	if err := s.createOrder(ctx, order); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "create order")
		return nil, err
	}
	result.OrderId = order.OrderId

	s.logger.WithFields(logrus.Fields{
		"field":          "checkout",
		"order_id":       order.OrderId,
		"total_pay":      total,
		"method":         method,
		"correlation_id": appctx.CorrelationId(ctx),
	}).Info("order created")
	return result, nil
}

func (s *Service) createOrder(ctx context.Context, order *models.Order) error {
	var err error
	for attempt := 1; attempt <= createOrderAttempts; attempt++ {
		order.OrderId = s.newOrderId()
		order.CreatedAt = s.now().UTC()
		err = s.store.Create(ctx, order)
		if err == nil {
			return nil
		}
		if !errors.Is(err, models.ErrDuplicateOrderId) {
			break
		}
	}
	config.LogError(s.logger, "payment", "createOrder", "OrderStore.Create", order.OrderId, err)
	return fmt.Errorf("create order: %w", err)
}

// Status reports the current status of an order.
func (s *Service) Status(ctx context.Context, orderId string) (models.OrderStatus, error) {
	ctx, span := tracer.Start(ctx, "payment.Status")
	defer span.End()

	if status, ok := s.cache.Get(ctx, orderId); ok {
		return status, nil
	}
	order, err := s.store.FindByOrderId(ctx, orderId)
	if err != nil {
		config.LogError(s.logger, "payment", "Status", "FindByOrderId", orderId, err)
		return "", fmt.Errorf("find order: %w", err)
	}
	if order == nil {
		return "", ErrOrderNotFound
	}
	if order.IsPaid() {
		if err := s.cache.SetPaid(ctx, orderId); err != nil {
			s.logger.WithFields(logrus.Fields{"field": "status", "order_id": orderId}).Warn("status cache write failed: " + err.Error())
		}
	}
	return order.Status, nil
}
