package main

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.uber.org/zap"

	"MiniCart/internal/auth"
	"MiniCart/internal/cart"
	"MiniCart/pkg/config"
	"MiniCart/pkg/kit"
)

func main() {
	service := "cart"
	cfg := config.LoadCart()

	log := kit.NewLogger(service, cfg.LogLevel)
	defer func() { _ = log.Sync() }()

	ctx := context.Background()

	if cfg.OTLPEndpoint != "" {
		tp, err := initTracerProvider(ctx, service, cfg.OTLPEndpoint)
		if err != nil {
			log.Fatal("tracer init failed", zap.Error(err))
		}
		defer func() { _ = tp.Shutdown(context.Background()) }()
	}

	slot, closeSlot, err := openSlot(ctx, cfg, log)
	if err != nil {
		log.Fatal("cart storage init failed", zap.String("backend", cfg.Backend), zap.Error(err))
	}
	defer closeSlot()

	slot = cart.Traced(slot, cfg.Backend)

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	provider := cart.NewProvider(slot,
		cart.WithLogger(log),
		cart.WithMetrics(cart.NewMetrics(reg)),
	)

	s := &cart.Server{Provider: provider, Slot: slot, Log: log}
	if cfg.CatalogURL != "" {
		s.Catalog = cart.NewCatalogClient(cfg.CatalogURL)
	}
	if cfg.JWTSecret != "" {
		s.Tokens = auth.NewTokenMaker(cfg.JWTSecret)
	}

	h := cart.NewHandler(s, cart.HTTPDeps{
		Log:            log,
		Service:        service,
		Registry:       reg,
		MetricsEnabled: cfg.MetricsEnabled,
		MetricsToken:   cfg.MetricsToken,
	})

	log.Info("cart ready",
		zap.String("backend", cfg.Backend),
		zap.Bool("devices", s.Tokens != nil),
		zap.Bool("catalog", s.Catalog != nil),
	)

	if err := kit.RunHTTPServer(ctx, ":"+cfg.Port, h, log, provider.Close); err != nil {
		log.Fatal("http server stopped", zap.Error(err))
	}
}

// openSlot builds the configured backend and waits until it answers.
func openSlot(ctx context.Context, cfg config.Cart, log *zap.Logger) (cart.Slot, func(), error) {
	noop := func() {}

	switch cfg.Backend {
	case "memory":
		return cart.NewMemSlot(), noop, nil

	case "file":
		s, err := cart.NewFileSlot(cfg.Dir)
		if err != nil {
			return nil, noop, err
		}
		return s, noop, nil

	case "redis":
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		s := cart.NewRedisSlot(client)
		if err := kit.WaitReady(ctx, "redis", cfg.StorageWait, s.Ping, log); err != nil {
			_ = client.Close()
			return nil, noop, err
		}
		return s, func() { _ = client.Close() }, nil

	case "postgres":
		if cfg.DatabaseURL == "" {
			return nil, noop, fmt.Errorf("DATABASE_URL is required for the postgres backend")
		}
		db, err := cart.OpenPostgres(cfg.DatabaseURL)
		if err != nil {
			return nil, noop, err
		}
		s := cart.NewPostgresSlot(db)
		if err := kit.WaitReady(ctx, "postgres", cfg.StorageWait, s.Ping, log); err != nil {
			_ = db.Close()
			return nil, noop, err
		}
		if err := s.EnsureSchema(ctx); err != nil {
			_ = db.Close()
			return nil, noop, err
		}
		return s, func() { _ = db.Close() }, nil
	}

	return nil, noop, fmt.Errorf("unknown CART_BACKEND %q", cfg.Backend)
}

func initTracerProvider(ctx context.Context, service, endpoint string) (*sdktrace.TracerProvider, error) {
	exporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return nil, fmt.Errorf("create otlp exporter: %w", err)
	}

	res, err := resource.New(ctx, resource.WithAttributes(semconv.ServiceName(service)))
	if err != nil {
		return nil, fmt.Errorf("create resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})
	return tp, nil
}
