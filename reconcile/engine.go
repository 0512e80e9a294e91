package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/mmdatafocus/qris_backend/appctx"
	"github.com/mmdatafocus/qris_backend/config"
	"github.com/mmdatafocus/qris_backend/models"
	"github.com/mmdatafocus/qris_backend/notification"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("qris_backend/reconcile")

// ErrStoreUnavailable wraps every order store failure. Callers must treat it
// as "retry later", never as "no matching order".
var ErrStoreUnavailable = errors.New("order store unavailable")

const (
	ReasonMatched     = "matched"
	ReasonNoCandidate = "no_candidate"
	ReasonLostRace    = "lost_race"
	ReasonNoAmount    = "no_amount"
	ReasonDuplicate   = "duplicate"
)

type MatchResult struct {
	Matched bool
	Order   *models.Order
	Amount  int64
	Reason  string
}

type Options struct {
	// Window bounds how old a PENDING order may be and still match.
	Window       time.Duration
	StoreTimeout time.Duration
	LockTTL      time.Duration
	NotifyMiss   bool
	// Locker is optional. Without it reconciliation relies on the store's
	// conditional update alone.
	Locker  *redislock.Client
	Deduper *Deduper
	Now     func() time.Time
}

type Engine struct {
	store        models.OrderStore
	dispatcher   Dispatcher
	logger       *logrus.Logger
	locker       *redislock.Client
	deduper      *Deduper
	window       time.Duration
	storeTimeout time.Duration
	lockTTL      time.Duration
	notifyMiss   bool
	now          func() time.Time
}

func NewEngine(store models.OrderStore, dispatcher Dispatcher, logger *logrus.Logger, opts Options) *Engine {
	if dispatcher == nil {
		dispatcher = NoopDispatcher{}
	}
	if opts.Window <= 0 {
		opts.Window = time.Hour
	}
	if opts.StoreTimeout <= 0 {
		opts.StoreTimeout = 5 * time.Second
	}
	if opts.LockTTL <= 0 {
		opts.LockTTL = 10 * time.Second
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Engine{
		store:        store,
		dispatcher:   dispatcher,
		logger:       logger,
		locker:       opts.Locker,
		deduper:      opts.Deduper,
		window:       opts.Window,
		storeTimeout: opts.StoreTimeout,
		lockTTL:      opts.LockTTL,
		notifyMiss:   opts.NotifyMiss,
		now:          opts.Now,
	}
}

// origin describes where an observed amount came from, for operator messages.
type origin struct {
	source notification.Source
	text   string
}

// Reconcile settles the oldest fresh PENDING order whose total equals amount.
// Fresh means created within Options.Window of observedAt; the window is fixed
// per engine rather than passed per call.
// At most one caller can ever win a given order; the rest get a non-match.
func (e *Engine) Reconcile(ctx context.Context, amount int64, observedAt time.Time) (MatchResult, error) {
	return e.reconcile(ctx, amount, observedAt, origin{source: notification.ClassifySource("", "")})
}

// HandleEvent runs one relayed notification through extraction, duplicate
// suppression and reconciliation.
func (e *Engine) HandleEvent(ctx context.Context, ev notification.Event) (MatchResult, error) {
	text := ev.FullText()
	src := notification.ClassifySource(ev.PackageName, text)
	org := origin{source: src, text: text}

	fingerprint := ev.Fingerprint()
	reserved, err := e.deduper.Reserve(ctx, fingerprint)
	if err != nil {
		e.logger.WithFields(logrus.Fields{
			"field":          "reconcile",
			"package_name":   ev.PackageName,
			"correlation_id": appctx.CorrelationId(ctx),
		}).Warn("dedupe check failed; processing anyway: " + err.Error())
		reserved = true
	}
	if !reserved {
		e.logger.WithFields(logrus.Fields{
			"field":          "reconcile",
			"package_name":   ev.PackageName,
			"correlation_id": appctx.CorrelationId(ctx),
		}).Info("duplicate notification suppressed")
		return MatchResult{Reason: ReasonDuplicate}, nil
	}

	amount, ok := notification.ExtractAmount(text)
	if !ok {
		e.logger.WithFields(logrus.Fields{
			"field":          "reconcile",
			"package_name":   ev.PackageName,
			"source":         src.Label,
			"correlation_id": appctx.CorrelationId(ctx),
		}).Info("no amount in notification")
		res := MatchResult{Reason: ReasonNoAmount}
		e.missed(ctx, res, org)
		return res, nil
	}

	res, err := e.reconcile(ctx, amount, e.now(), org)
	if err != nil {
		// Let the relay's retry be processed instead of suppressed.
		if releaseErr := e.deduper.Release(context.WithoutCancel(ctx), fingerprint); releaseErr != nil {
			config.LogError(e.logger, "reconcile", "HandleEvent", "release dedupe reservation", fingerprint, releaseErr)
		}
		return res, err
	}
	return res, nil
}

func (e *Engine) reconcile(ctx context.Context, amount int64, observedAt time.Time, org origin) (MatchResult, error) {
	ctx, span := tracer.Start(ctx, "reconcile.Reconcile", trace.WithAttributes(attribute.Int64("amount", amount)))
	defer span.End()

	res := MatchResult{Amount: amount}
	if amount <= 0 {
		res.Reason = ReasonNoAmount
		return res, nil
	}

	lock := e.obtainLock(ctx, amount)
	defer e.releaseLock(ctx, lock, amount)

	since := observedAt.Add(-e.window)
	order, err := e.findCandidate(ctx, amount, since)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "find candidate")
		return res, err
	}
	if order == nil {
		res.Reason = ReasonNoCandidate
		span.SetAttributes(attribute.String("reason", res.Reason))
		e.missed(ctx, res, org)
		return res, nil
	}

	won, err := e.markPaid(ctx, order.OrderId)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "mark paid")
		return res, err
	}
	if !won {
		res.Reason = ReasonLostRace
		span.SetAttributes(attribute.String("reason", res.Reason))
		e.logger.WithFields(logrus.Fields{
			"field":          "reconcile",
			"order_id":       order.OrderId,
			"amount":         amount,
			"correlation_id": appctx.CorrelationId(ctx),
		}).Info("order already settled by a concurrent notification")
		return res, nil
	}

	order.Status = models.OrderStatusPaid
	res.Matched = true
	res.Order = order
	res.Reason = ReasonMatched
	span.SetAttributes(attribute.String("order_id", order.OrderId))

	paidAt := e.now()
	e.logger.WithFields(logrus.Fields{
		"field":          "reconcile",
		"order_id":       order.OrderId,
		"amount":         amount,
		"source":         org.source.Label,
		"correlation_id": appctx.CorrelationId(ctx),
	}).Info("order marked paid")

	e.dispatcher.PaymentReceived(ctx, Receipt{Order: order, Source: org.source, PaidAt: paidAt})
	return res, nil
}

func (e *Engine) findCandidate(ctx context.Context, amount int64, since time.Time) (*models.Order, error) {
	storeCtx, cancel := context.WithTimeout(ctx, e.storeTimeout)
	defer cancel()
	order, err := e.store.FindOnePendingByAmount(storeCtx, amount, since)
	if err != nil {
		config.LogError(e.logger, "reconcile", "findCandidate", "FindOnePendingByAmount", amount, err)
		return nil, fmt.Errorf("%w: find pending order: %w", ErrStoreUnavailable, err)
	}
	return order, nil
}

func (e *Engine) markPaid(ctx context.Context, orderId string) (bool, error) {
	storeCtx, cancel := context.WithTimeout(ctx, e.storeTimeout)
	defer cancel()
	won, err := e.store.TryMarkPaid(storeCtx, orderId)
	if err != nil {
		config.LogError(e.logger, "reconcile", "markPaid", "TryMarkPaid", orderId, err)
		return false, fmt.Errorf("%w: mark paid: %w", ErrStoreUnavailable, err)
	}
	return won, nil
}

func (e *Engine) missed(ctx context.Context, res MatchResult, org origin) {
	if !e.notifyMiss {
		return
	}
	e.dispatcher.PaymentMissed(ctx, Miss{
		Amount: res.Amount,
		Reason: res.Reason,
		Source: org.source,
		Text:   org.text,
	})
}

// obtainLock takes a best-effort per-amount lock. Correctness never depends
// on it: the store's conditional update is the real guard.
func (e *Engine) obtainLock(ctx context.Context, amount int64) *redislock.Lock {
	if e.locker == nil {
		return nil
	}
	key := fmt.Sprintf("lock:reconcile:%d", amount)
	lock, err := e.locker.Obtain(ctx, key, e.lockTTL, &redislock.Options{
		RetryStrategy: redislock.LimitRetry(redislock.LinearBackoff(50*time.Millisecond), 20),
	})
	if errors.Is(err, redislock.ErrNotObtained) {
		e.logger.WithFields(logrus.Fields{
			"field":  "reconcile",
			"amount": amount,
		}).Warn("could not obtain redis lock; proceeding without redis lock")
		return nil
	}
	if err != nil {
		e.logger.WithFields(logrus.Fields{
			"field":  "reconcile",
			"amount": amount,
		}).Warn("error obtaining redis lock; proceeding without redis lock: " + err.Error())
		return nil
	}
	return lock
}

func (e *Engine) releaseLock(ctx context.Context, lock *redislock.Lock, amount int64) {
	if lock == nil {
		return
	}
	if err := lock.Release(context.WithoutCancel(ctx)); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
		e.logger.WithFields(logrus.Fields{
			"field":  "reconcile",
			"amount": amount,
		}).Warn("failed to release redis lock: " + err.Error())
	}
}
