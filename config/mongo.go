package config

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// OpenMongo connects and pings the document store, retrying until ctx is done.
func OpenMongo(ctx context.Context, cfg StoreConfig, logg *logrus.Logger) (*mongo.Client, error) {
	if cfg.MongoURI == "" {
		return nil, errors.New("MONGODB_URI is required for STORE_DRIVER=mongo")
	}

	var attempt int
	for {
		attempt++
		client, err := mongo.Connect(ctx, options.Client().
			ApplyURI(cfg.MongoURI).
			SetTimeout(cfg.Timeout))
		if err == nil {
			pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			err = client.Ping(pingCtx, nil)
			cancel()
			if err == nil {
				logg.WithFields(logrus.Fields{"field": "mongo", "database": cfg.MongoDatabase, "attempt": attempt}).Info("connected to mongo")
				return client, nil
			}
			_ = client.Disconnect(context.Background())
		}

		sleep := retryBackoff(attempt)
		logg.WithFields(logrus.Fields{"field": "mongo", "attempt": attempt}).
			Warn(fmt.Sprintf("failed to connect mongo: %v; retrying in %s", err, sleep))
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("connect mongo: %w", ctx.Err())
		case <-time.After(sleep):
		}
	}
}
