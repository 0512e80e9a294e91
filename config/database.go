package config

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/gorm/schema"
)

// OpenDatabase connects the SQL order store, retrying with backoff until ctx
// is done. The caller owns the returned handle and closes it at shutdown.
func OpenDatabase(ctx context.Context, cfg StoreConfig, logg *logrus.Logger) (*gorm.DB, error) {
	dialector, err := dialectorFor(cfg)
	if err != nil {
		return nil, err
	}

	var attempt int
	for {
		attempt++
		db, err := gorm.Open(dialector, initConfig())
		if err == nil {
			if cfg.Driver == StoreDriverMySQL {
				tunePool(db)
			}
			if pluginErr := db.Use(otelgorm.NewPlugin()); pluginErr != nil {
				logg.WithField("field", "database").Warn("db connected but failed to install otelgorm plugin: " + pluginErr.Error())
			}
			logg.WithFields(logrus.Fields{"field": "database", "driver": cfg.Driver, "attempt": attempt}).Info("connected to database")
			return db, nil
		}

		sleep := retryBackoff(attempt)
		logg.WithFields(logrus.Fields{"field": "database", "attempt": attempt}).
			Warn(fmt.Sprintf("failed to connect database: %v; retrying in %s", err, sleep))
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("connect database: %w", ctx.Err())
		case <-time.After(sleep):
		}
	}
}

func dialectorFor(cfg StoreConfig) (gorm.Dialector, error) {
	switch cfg.Driver {
	case StoreDriverMySQL:
		network := "tcp"
		address := fmt.Sprintf("%s:%s", cfg.DBHost, cfg.DBPort)
		// Cloud SQL unix socket, e.g. DB_HOST=/cloudsql/<CONNECTION_NAME>
		if strings.HasPrefix(cfg.DBHost, "/cloudsql/") {
			network = "unix"
			address = cfg.DBHost
		}
		dsn := fmt.Sprintf("%s:%s@%s(%s)/%s?parseTime=true&loc=UTC",
			cfg.DBUser,
			cfg.DBPassword,
			network,
			address,
			cfg.DBName,
		)
		return mysql.Open(dsn), nil
	case StoreDriverSQLite:
		return sqlite.Open(cfg.SQLiteDSN), nil
	default:
		return nil, fmt.Errorf("store driver %q is not a sql driver", cfg.Driver)
	}
}

// Env overrides: DB_MAX_OPEN_CONNS (50), DB_MAX_IDLE_CONNS (25),
// DB_CONN_MAX_LIFETIME_SECONDS (300), DB_CONN_MAX_IDLE_TIME_SECONDS (60).
func tunePool(db *gorm.DB) {
	sqlDB, err := db.DB()
	if err != nil || sqlDB == nil {
		return
	}
	maxOpen := intFromEnv("DB_MAX_OPEN_CONNS", 50)
	maxIdle := intFromEnv("DB_MAX_IDLE_CONNS", 25)
	connMaxLife := time.Duration(intFromEnv("DB_CONN_MAX_LIFETIME_SECONDS", 300)) * time.Second
	connMaxIdle := time.Duration(intFromEnv("DB_CONN_MAX_IDLE_TIME_SECONDS", 60)) * time.Second

	if maxOpen > 0 {
		sqlDB.SetMaxOpenConns(maxOpen)
	}
	if maxIdle >= 0 {
		sqlDB.SetMaxIdleConns(maxIdle)
	}
	if connMaxLife > 0 {
		sqlDB.SetConnMaxLifetime(connMaxLife)
	}
	if connMaxIdle > 0 {
		sqlDB.SetConnMaxIdleTime(connMaxIdle)
	}
}

func initConfig() *gorm.Config {
	return &gorm.Config{
		Logger:         initLog(),
		NamingStrategy: initNamingStrategy(),
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
	}
}

func initLog() logger.Interface {
	return logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			Colorful:      false,
			LogLevel:      logger.Error,
			SlowThreshold: time.Second,
		},
	)
}

func initNamingStrategy() *schema.NamingStrategy {
	return &schema.NamingStrategy{
		SingularTable: false,
		TablePrefix:   "",
	}
}

// CloseDatabase closes the pool behind db, ignoring a nil handle.
func CloseDatabase(db *gorm.DB) error {
	if db == nil {
		return nil
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
