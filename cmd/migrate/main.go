package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mmdatafocus/qris_backend/config"
	"github.com/mmdatafocus/qris_backend/models"
)

// migrate applies the order schema (SQL tables or Mongo indexes) outside the
// server process, for deployments that run with SKIP_MIGRATIONS=true.
//
// Usage:
//
//	STORE_DRIVER=mysql DB_USER=... DB_PASSWORD=... DB_HOST=... DB_NAME=... go run ./cmd/migrate
func main() {
	dryRun := flag.Bool("dry-run", false, "If true, only connect and print what would run")
	flag.Parse()

	cfg := config.Load()
	logger := config.NewLogger(cfg.LogLevel)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch cfg.Store.Driver {
	case config.StoreDriverMySQL, config.StoreDriverSQLite:
		db, err := config.OpenDatabase(ctx, cfg.Store, logger)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		defer func() { _ = config.CloseDatabase(db) }()
		if *dryRun {
			fmt.Printf("[dry-run] would AutoMigrate orders on %s\n", cfg.Store.Driver)
			return
		}
		if err := models.MigrateTable(db); err != nil {
			fmt.Fprintln(os.Stderr, "migrate:", err)
			os.Exit(1)
		}
	case config.StoreDriverMongo:
		client, err := config.OpenMongo(ctx, cfg.Store, logger)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		defer func() { _ = client.Disconnect(context.Background()) }()
		if *dryRun {
			fmt.Printf("[dry-run] would create order indexes in %s\n", cfg.Store.MongoDatabase)
			return
		}
		if err := models.NewMongoOrderStore(client.Database(cfg.Store.MongoDatabase)).EnsureIndexes(ctx); err != nil {
			fmt.Fprintln(os.Stderr, "ensure indexes:", err)
			os.Exit(1)
		}
	default:
		fmt.Fprintf(os.Stderr, "STORE_DRIVER %q has no schema to migrate\n", cfg.Store.Driver)
		os.Exit(1)
	}
	fmt.Println("migrations applied")
}
