package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/qris_backend/config"
	"github.com/mmdatafocus/qris_backend/middlewares"
	"github.com/mmdatafocus/qris_backend/models"
	"github.com/mmdatafocus/qris_backend/notifier"
	"github.com/mmdatafocus/qris_backend/payment"
	"github.com/mmdatafocus/qris_backend/reconcile"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/mongo"
	"gorm.io/gorm"
)

// app owns every connection handle opened at startup.
type app struct {
	cfg    config.Config
	logger *logrus.Logger

	db        *gorm.DB
	mongo     *mongo.Client
	redis     *config.Redis
	pubsub    *pubsub.Client
	publisher *notifier.PubSubPublisher

	store    models.OrderStore
	engine   *reconcile.Engine
	payments *payment.Service
	verifier *middlewares.SecretVerifier
}

func newApp(ctx context.Context, cfg config.Config, logger *logrus.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger}

	if err := a.openStore(ctx); err != nil {
		a.Close()
		return nil, err
	}

	rdb, err := config.OpenRedis(ctx, cfg.Redis, logger)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.redis = rdb

	if err := a.openPublisher(ctx); err != nil {
		a.Close()
		return nil, err
	}

	a.verifier = middlewares.NewSecretVerifier(cfg.SecretKey, cfg.SecretKeyBcrypt)
	if !a.verifier.Configured() {
		logger.WithField("field", "startup").Warn("SECRET_KEY not set; notification intake will reject every request")
	}

	var redisClient *redis.Client
	if a.redis != nil {
		redisClient = a.redis.Client
	}

	dispatcher := reconcile.NewSinkDispatcher(logger, cfg.Reconcile.SinkTimeout, a.messenger(), notifier.NewWebhook(cfg.Webhook.Secret, nil), a.eventPublisher())
	engineOpts := reconcile.Options{
		Window:       cfg.Reconcile.Window,
		StoreTimeout: cfg.Store.Timeout,
		LockTTL:      cfg.Reconcile.LockTTL,
		NotifyMiss:   cfg.Reconcile.NotifyMiss,
		Deduper:      reconcile.NewDeduper(redisClient, cfg.Reconcile.DedupeTTL),
	}
	if a.redis != nil {
		engineOpts.Locker = a.redis.Locker
	}
	a.engine = reconcile.NewEngine(a.store, dispatcher, logger, engineOpts)

	a.payments = payment.NewService(a.store, logger, payment.Options{
		Checkout:         cfg.Checkout,
		DefaultNotifyURL: cfg.Webhook.DefaultURL,
		Window:           cfg.Reconcile.Window,
		Redis:            redisClient,
	})
	return a, nil
}

func (a *app) openStore(ctx context.Context) error {
	cfg := a.cfg.Store
	switch cfg.Driver {
	case config.StoreDriverMySQL, config.StoreDriverSQLite:
		db, err := config.OpenDatabase(ctx, cfg, a.logger)
		if err != nil {
			return err
		}
		a.db = db
		// AutoMigrate can block tables; production may run it as a separate job.
		if cfg.SkipMigrations {
			a.logger.WithFields(logrus.Fields{"field": "migrations"}).Warn("SKIP_MIGRATIONS=true; skipping AutoMigrate on startup")
		} else if err := models.MigrateTable(db); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		a.store = models.NewGormOrderStore(db)
	case config.StoreDriverMongo:
		client, err := config.OpenMongo(ctx, cfg, a.logger)
		if err != nil {
			return err
		}
		a.mongo = client
		store := models.NewMongoOrderStore(client.Database(cfg.MongoDatabase))
		if !cfg.SkipMigrations {
			if err := store.EnsureIndexes(ctx); err != nil {
				return fmt.Errorf("ensure mongo indexes: %w", err)
			}
		}
		a.store = store
	case config.StoreDriverMemory:
		a.logger.WithField("field", "startup").Warn("STORE_DRIVER=memory; orders are lost on restart")
		a.store = models.NewMemoryOrderStore()
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", cfg.Driver)
	}
	return nil
}

func (a *app) openPublisher(ctx context.Context) error {
	if a.cfg.PubSub.PaymentEventsTopic == "" {
		return nil
	}
	client, err := config.NewPubSubClient(ctx, a.cfg.PubSub, a.logger)
	if err != nil {
		return err
	}
	if client == nil {
		a.logger.WithField("field", "pubsub").Warn("PAYMENT_EVENTS_TOPIC set without a project id; events will not be published")
		return nil
	}
	a.pubsub = client

	topic := client.Topic(a.cfg.PubSub.PaymentEventsTopic)
	if a.cfg.PubSub.CreateTopic {
		topic, err = config.CreateTopicIfNotExists(ctx, client, a.cfg.PubSub.PaymentEventsTopic)
		if err != nil {
			return err
		}
	}
	a.publisher, err = notifier.NewPubSubPublisher(topic)
	return err
}

func (a *app) messenger() notifier.Messenger {
	tg := a.cfg.Telegram
	if tg.BotToken == "" || tg.ChatID == "" {
		a.logger.WithField("field", "startup").Warn("telegram not configured; operator messages are disabled")
		return nil
	}
	messenger, err := notifier.NewTelegram(tg.BaseURL, tg.BotToken, tg.ChatID)
	if err != nil {
		config.LogError(a.logger, "server.go", "messenger", "NewTelegram", nil, err)
		return nil
	}
	return messenger
}

func (a *app) eventPublisher() notifier.EventPublisher {
	if a.publisher == nil {
		return nil
	}
	return a.publisher
}

func (a *app) Close() {
	if a.publisher != nil {
		a.publisher.Stop()
	}
	if a.pubsub != nil {
		_ = a.pubsub.Close()
	}
	if err := a.redis.Close(); err != nil {
		a.logger.WithField("field", "shutdown").Warn("closing redis: " + err.Error())
	}
	if a.mongo != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = a.mongo.Disconnect(ctx)
		cancel()
	}
	if err := config.CloseDatabase(a.db); err != nil {
		a.logger.WithField("field", "shutdown").Warn("closing database: " + err.Error())
	}
}

func customNotFoundHandler(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{"error": "route not found"})
}

func corsConfig(cfg config.Config) cors.Config {
	corsConfig := cors.DefaultConfig()
	// Production requires an explicit allowlist; elsewhere allow all.
	if cfg.IsProduction() {
		corsConfig.AllowOrigins = cfg.HTTP.CORSAllowedOrigins
		if len(corsConfig.AllowOrigins) == 0 {
			// Deny all if not configured in production.
			corsConfig.AllowOriginFunc = func(string) bool { return false }
		}
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AddAllowMethods("GET", "POST", "OPTIONS")
	corsConfig.AddAllowHeaders("Origin", "Content-Type", "Authorization", middlewares.SecretHeader, middlewares.CorrelationHeader)
	corsConfig.AddExposeHeaders("Content-Length", middlewares.CorrelationHeader)
	return corsConfig
}

func (a *app) router() *gin.Engine {
	r := gin.New()
	r.Use(middlewares.CorrelationId())
	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	r.Use(cors.New(corsConfig(a.cfg)))
	if a.cfg.HTTP.RateLimitEnabled {
		if a.redis == nil {
			a.logger.WithField("field", "startup").Warn("RATE_LIMIT_ENABLED without redis; rate limiting disabled")
		} else {
			r.Use(middlewares.NewRateLimiter(a.redis.Client, a.cfg.HTTP.RateLimitMax, a.cfg.HTTP.RateLimitWindow).Middleware())
		}
	}
	r.Use(middlewares.ErrorLogger(a.logger))
	r.Use(gin.Recovery())

	api := r.Group("/api")
	api.POST("/checkout", payment.CheckoutHandler(a.payments, a.logger))
	api.GET("/status", payment.StatusHandler(a.payments))
	api.POST("/notification", reconcile.NotificationHandler(a.engine, a.verifier, a.logger))
	r.POST("/pubsub/notification", middlewares.RequireSecret(a.verifier), reconcile.PubSubNotificationHandler(a.engine, a.logger))
	r.NoRoute(customNotFoundHandler)
	return r
}

func main() {
	cfg := config.Load()
	logger := config.NewLogger(cfg.LogLevel)
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	// Cloud Run sends SIGTERM on revision shutdown; handle it for graceful drain.
	sigCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	a, err := newApp(sigCtx, cfg, logger)
	if err != nil {
		logger.WithFields(logrus.Fields{"field": "startup"}).Fatal(err.Error())
	}
	defer a.Close()

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           a.router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	serverErrCh := make(chan error, 1)
	go func() {
		// ListenAndServe returns http.ErrServerClosed on graceful shutdown.
		serverErrCh <- srv.ListenAndServe()
	}()
	logger.WithFields(logrus.Fields{
		"field":        "startup",
		"port":         cfg.Port,
		"store_driver": cfg.Store.Driver,
	}).Info("server started")

	select {
	case <-sigCtx.Done():
	case err := <-serverErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithFields(logrus.Fields{"field": "http"}).Error("server stopped unexpectedly: " + err.Error())
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithFields(logrus.Fields{"field": "http"}).Error("graceful shutdown failed: " + err.Error())
	}
}
