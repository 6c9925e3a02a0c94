package main

import (
	"context"
	"database/sql"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"MiniCart/internal/catalog"
	"MiniCart/pkg/config"
	"MiniCart/pkg/kit"
)

func main() {
	service := "catalog"
	cfg := config.LoadCatalog()

	log := kit.NewLogger(service, cfg.LogLevel)
	defer func() { _ = log.Sync() }()

	ctx := context.Background()

	var store catalog.Store = catalog.NewMemStore()
	if cfg.DatabaseURL != "" {
		db, err := sql.Open("pgx", cfg.DatabaseURL)
		if err != nil {
			log.Fatal("db open failed", zap.Error(err))
		}
		defer func() { _ = db.Close() }()

		pg := catalog.NewPostgresStore(db)
		if err := kit.WaitReady(ctx, "postgres", cfg.StorageWait, pg.Ping, log); err != nil {
			log.Fatal("db not ready", zap.Error(err))
		}
		if err := pg.EnsureSchema(ctx); err != nil {
			log.Fatal("db schema failed", zap.Error(err))
		}
		if err := pg.Seed(ctx); err != nil {
			log.Fatal("db seed failed", zap.Error(err))
		}
		store = pg
	}

	reg := prometheus.NewRegistry()
	h := catalog.NewHandler(&catalog.Server{Store: store, Log: log}, catalog.HTTPDeps{
		Log:            log,
		Service:        service,
		Registry:       reg,
		MetricsEnabled: cfg.MetricsEnabled,
		MetricsToken:   cfg.MetricsToken,
	})

	if err := kit.RunHTTPServer(ctx, ":"+cfg.Port, h, log); err != nil {
		log.Fatal("http server stopped", zap.Error(err))
	}
}
