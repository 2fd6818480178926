// Command ingestd wires configuration, the database, the event bus,
// the metadata extractor, and the ingestion/enrichment/promotion/query
// services into one process, and serves the single upload route over
// HTTP. Grounded on the teacher's cmd/app/main.go lifecycle (logger
// init, config load, graceful SIGINT/SIGTERM drain).
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/ovacore/photonic/database/connect"
	"github.com/ovacore/photonic/internal/config"
	"github.com/ovacore/photonic/internal/enrichment"
	"github.com/ovacore/photonic/internal/events"
	"github.com/ovacore/photonic/internal/httpapi"
	"github.com/ovacore/photonic/internal/ingestion"
	"github.com/ovacore/photonic/internal/metrics"
	"github.com/ovacore/photonic/internal/promotion"
	"github.com/ovacore/photonic/internal/query"
	"github.com/ovacore/photonic/internal/repository/media"
	"github.com/ovacore/photonic/pkg/logger"
	"github.com/ovacore/photonic/pkg/metadata"
	rediscache "github.com/ovacore/photonic/pkg/redis"
	"github.com/ovacore/photonic/pkg/reconcile"
	"github.com/ovacore/photonic/pkg/storage"
	"github.com/ovacore/photonic/pkg/tracing"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	log, err := logger.NewDefault()
	if err != nil {
		panic(err)
	}
	defer func() {
		if err := log.Sync(); err != nil {
			fmt.Printf("failed to sync logger: %v\n", err)
		}
	}()
	zl := log.GetZapLogger()

	cfg, err := config.Load()
	if err != nil {
		zl.Error("failed to load configuration", zap.Error(err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	_, shutdownTracing, err := tracing.Init(tracing.Config{
		ServiceName:    "ingestd",
		ServiceVersion: "dev",
		Environment:    cfg.AppEnv,
	})
	if err != nil {
		zl.Error("failed to initialize tracing", zap.Error(err))
		os.Exit(1)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			zl.Error("tracing shutdown error", zap.Error(err))
		}
	}()

	db, err := connect.ConnectPostgres(ctx, zl, cfg)
	if err != nil {
		zl.Error("failed to connect to database", zap.Error(err))
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		zl.Error("failed to register metrics", zap.Error(err))
		os.Exit(1)
	}

	locator := storage.New(storage.Config{
		Pattern: cfg.StoragePattern,
		Bases: map[media.Variant]string{
			media.VariantOriginals: cfg.StorageBaseDirectory,
			media.VariantCache:     cfg.StorageCacheDirectory,
			media.VariantTemp:      cfg.StorageTempDirectory,
		},
	})

	extractor, err := metadata.New(ctx, cfg.MetadataToolPath, zl)
	if err != nil {
		zl.Error("failed to start metadata extractor", zap.Error(err))
		os.Exit(1)
	}
	defer func() { _ = extractor.Close() }()

	buses := events.New(zl)

	var cache *rediscache.Cache
	if cfg.RedisAddr != "" {
		opts := rediscache.DefaultOptions()
		opts.Addr = cfg.RedisAddr
		opts.Password = cfg.RedisPassword
		opts.DB = cfg.RedisDB
		cache, err = rediscache.NewCache(opts, zl)
		if err != nil {
			zl.Error("failed to connect to redis", zap.Error(err))
			os.Exit(1)
		}
		defer func() { _ = cache.Close() }()
	}

	ingestionSvc := ingestion.New(db, zl, locator, buses)
	promotionSvc := promotion.New(locator)
	enrichmentSvc := enrichment.New(db, zl, extractor, locator, promotionSvc, buses)
	querySvc := query.New(db, cache, zl)

	sweeper := reconcile.New(db, zl, cfg.ReconcileInterval, cfg.ReconcileInterval)
	if err := sweeper.Start(ctx); err != nil {
		zl.Error("failed to start reconciliation sweep", zap.Error(err))
		os.Exit(1)
	}
	defer sweeper.Stop()

	go enrichmentSvc.Run(ctx)
	go querySvc.RunCacheInvalidation(ctx, buses)

	mux := http.NewServeMux()
	httpapi.New(ingestionSvc, zl).Register(mux)

	httpServer := &http.Server{
		Addr:              cfg.Host + ":" + cfg.Port,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	metricsServer := metrics.NewServer(":9090")

	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zl.Error("http server error", zap.Error(err))
		}
	}()
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zl.Error("metrics server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	zl.Info("shutdown signal received, draining")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		zl.Error("http server shutdown error", zap.Error(err))
	}
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		zl.Error("metrics server shutdown error", zap.Error(err))
	}
}
