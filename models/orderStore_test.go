package models_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mmdatafocus/qris_backend/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newSQLiteStore(t *testing.T) *models.GormOrderStore {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, models.MigrateTable(db))
	return models.NewGormOrderStore(db)
}

func newMongoStore(t *testing.T) *models.MongoOrderStore {
	t.Helper()
	uri := strings.TrimSpace(os.Getenv("MONGODB_URI"))
	if strings.TrimSpace(os.Getenv("INTEGRATION_TESTS")) == "" || uri == "" {
		t.Skip("set INTEGRATION_TESTS=1 and MONGODB_URI to run mongo store tests")
	}
	ctx := context.Background()
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	require.NoError(t, err)
	db := client.Database(fmt.Sprintf("qris_test_%d", time.Now().UnixNano()))
	t.Cleanup(func() {
		_ = db.Drop(ctx)
		_ = client.Disconnect(ctx)
	})
	store := models.NewMongoOrderStore(db)
	require.NoError(t, store.EnsureIndexes(ctx))
	return store
}

type storeFactory struct {
	name string
	new  func(t *testing.T) models.OrderStore
}

func factories() []storeFactory {
	return []storeFactory{
		{"memory", func(t *testing.T) models.OrderStore { return models.NewMemoryOrderStore() }},
		{"sqlite", func(t *testing.T) models.OrderStore { return newSQLiteStore(t) }},
		{"mongo", func(t *testing.T) models.OrderStore { return newMongoStore(t) }},
	}
}

func order(id string, total int64, createdAt time.Time) *models.Order {
	return &models.Order{
		OrderId:        id,
		ProductName:    "Cuci Sepatu",
		AmountOriginal: total - 5,
		UniqueCode:     5,
		TotalPay:       total,
		Method:         models.PaymentMethodQris,
		CreatedAt:      createdAt,
	}
}

func TestOrderStore_Contract(t *testing.T) {
	for _, f := range factories() {
		f := f
		t.Run(f.name, func(t *testing.T) {
			ctx := context.Background()
			store := f.new(t)
			now := time.Now().UTC().Truncate(time.Second)

			require.NoError(t, store.Create(ctx, order("ORD-old", 10005, now.Add(-30*time.Minute))))
			require.NoError(t, store.Create(ctx, order("ORD-new", 10005, now.Add(-10*time.Minute))))
			require.NoError(t, store.Create(ctx, order("ORD-stale", 20000, now.Add(-2*time.Hour))))

			found, err := store.FindOnePendingByAmount(ctx, 10005, now.Add(-time.Hour))
			require.NoError(t, err)
			require.NotNil(t, found)
			assert.Equal(t, "ORD-old", found.OrderId)
			assert.Equal(t, models.OrderStatusPending, found.Status)

			stale, err := store.FindOnePendingByAmount(ctx, 20000, now.Add(-time.Hour))
			require.NoError(t, err)
			assert.Nil(t, stale)

			ok, err := store.TryMarkPaid(ctx, "ORD-old")
			require.NoError(t, err)
			assert.True(t, ok)

			ok, err = store.TryMarkPaid(ctx, "ORD-old")
			require.NoError(t, err)
			assert.False(t, ok, "second transition must fail")

			ok, err = store.TryMarkPaid(ctx, "ORD-missing")
			require.NoError(t, err)
			assert.False(t, ok)

			next, err := store.FindOnePendingByAmount(ctx, 10005, now.Add(-time.Hour))
			require.NoError(t, err)
			require.NotNil(t, next)
			assert.Equal(t, "ORD-new", next.OrderId)

			paid, err := store.FindByOrderId(ctx, "ORD-old")
			require.NoError(t, err)
			require.NotNil(t, paid)
			assert.True(t, paid.IsPaid())

			missing, err := store.FindByOrderId(ctx, "ORD-missing")
			require.NoError(t, err)
			assert.Nil(t, missing)
		})
	}
}

func TestOrderStore_FreshnessIgnoresTimeZone(t *testing.T) {
	east := time.FixedZone("WIB", 7*3600)
	west := time.FixedZone("EST", -5*3600)
	for _, f := range factories() {
		f := f
		t.Run(f.name, func(t *testing.T) {
			ctx := context.Background()
			store := f.new(t)
			now := time.Now().Truncate(time.Second)

			require.NoError(t, store.Create(ctx, order("ORD-fresh", 100007, now.Add(-5*time.Minute).In(west))))
			require.NoError(t, store.Create(ctx, order("ORD-stale", 200007, now.Add(-2*time.Hour).In(east))))

			for _, zone := range []*time.Location{time.UTC, east, west} {
				since := now.Add(-time.Hour).In(zone)

				fresh, err := store.FindOnePendingByAmount(ctx, 100007, since)
				require.NoError(t, err)
				require.NotNil(t, fresh, "fresh order with since in %s", zone)
				assert.Equal(t, "ORD-fresh", fresh.OrderId)
				assert.True(t, fresh.CreatedAt.Equal(now.Add(-5*time.Minute)))

				stale, err := store.FindOnePendingByAmount(ctx, 200007, since)
				require.NoError(t, err)
				assert.Nil(t, stale, "stale order with since in %s", zone)
			}
		})
	}
}

func TestOrderStore_EqualCreatedAtFavoursFirstInsert(t *testing.T) {
	for _, f := range factories() {
		f := f
		t.Run(f.name, func(t *testing.T) {
			ctx := context.Background()
			store := f.new(t)
			at := time.Now().UTC().Truncate(time.Second).Add(-time.Minute)

			for i := 1; i <= 3; i++ {
				require.NoError(t, store.Create(ctx, order(fmt.Sprintf("ORD-tie-%d", i), 10005, at)))
			}

			found, err := store.FindOnePendingByAmount(ctx, 10005, at.Add(-time.Hour))
			require.NoError(t, err)
			require.NotNil(t, found)
			assert.Equal(t, "ORD-tie-1", found.OrderId)
		})
	}
}

func TestOrderStore_ConcurrentTryMarkPaid(t *testing.T) {
	for _, f := range factories() {
		f := f
		t.Run(f.name, func(t *testing.T) {
			ctx := context.Background()
			store := f.new(t)
			require.NoError(t, store.Create(ctx, order("ORD-race", 50123, time.Now().UTC())))

			var wins int32
			var wg sync.WaitGroup
			for i := 0; i < 20; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					ok, err := store.TryMarkPaid(ctx, "ORD-race")
					if err == nil && ok {
						atomic.AddInt32(&wins, 1)
					}
				}()
			}
			wg.Wait()
			assert.Equal(t, int32(1), wins)
		})
	}
}

func TestMemoryOrderStore_DuplicateOrderId(t *testing.T) {
	ctx := context.Background()
	store := models.NewMemoryOrderStore()
	require.NoError(t, store.Create(ctx, order("ORD-1", 1000, time.Now())))
	err := store.Create(ctx, order("ORD-1", 2000, time.Now()))
	assert.True(t, errors.Is(err, models.ErrDuplicateOrderId))
}

func TestMemoryOrderStore_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	store := models.NewMemoryOrderStore()
	require.NoError(t, store.Create(ctx, order("ORD-1", 1000, time.Now())))

	o, err := store.FindByOrderId(ctx, "ORD-1")
	require.NoError(t, err)
	o.Status = models.OrderStatusPaid

	again, err := store.FindByOrderId(ctx, "ORD-1")
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusPending, again.Status)
}

func TestMemoryOrderStore_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := models.NewMemoryOrderStore().FindOnePendingByAmount(ctx, 1, time.Time{})
	assert.ErrorIs(t, err, context.Canceled)
}
