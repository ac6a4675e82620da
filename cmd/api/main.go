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

	"field_inventory_backend/internal/adapters"
	"field_inventory_backend/internal/adapters/storage"
	"field_inventory_backend/internal/events"
	"field_inventory_backend/internal/exports"
	"field_inventory_backend/internal/features"
	apphttp "field_inventory_backend/internal/http"
	"field_inventory_backend/internal/http/router"
	"field_inventory_backend/internal/imports"
	importservice "field_inventory_backend/internal/imports/service"
	"field_inventory_backend/internal/placement"
	"field_inventory_backend/internal/scheduler"
	"field_inventory_backend/internal/schema"
	"field_inventory_backend/migrations"
	"field_inventory_backend/platform/config"
	"field_inventory_backend/platform/db"
	"field_inventory_backend/platform/httpkit"
	"field_inventory_backend/platform/logger"
	"field_inventory_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

const storageBucketEnsureErrPrefix = "failed to ensure storage bucket exists: "
const storageBucketEnsureErrMsg = "failed to ensure storage bucket exists"

// ensureBucket wraps the retry logic for verifying a MinIO bucket exists.
func ensureBucket(ctx context.Context, log *logger.Logger, storageSvc storage.StorageService, name, bucket string) {
	if err := withRetry(ctx, log, "ensure "+name+" bucket", 5, 2*time.Second, func() error {
		return storageSvc.EnsureBucketExists(ctx, bucket)
	}); err != nil {
		log.Error(storageBucketEnsureErrMsg, "error", err, "bucket", bucket)
		panic(storageBucketEnsureErrPrefix + err.Error())
	}
}

// redisHealth adapts a go-redis client to the readiness probe.
type redisHealth struct {
	rdb *redis.Client
}

func (r redisHealth) Ping(ctx context.Context) error {
	return r.rdb.Ping(ctx).Err()
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	// Initialize structured logger
	log := logger.New(cfg.Env)
	log.Info("starting server", "env", cfg.Env, "addr", cfg.HTTPAddr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ========================================================================
	// Infrastructure Layer
	// ========================================================================

	var pool *pgxpool.Pool
	if err := withRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()
	log.Info("database connection established")

	if err := withRetry(ctx, log, "database migrations", 5, 2*time.Second, func() error {
		return db.RunMigrations(ctx, pool, migrations.FS, ".")
	}); err != nil {
		log.Error("failed to run database migrations", "error", err)
		panic("failed to run database migrations: " + err.Error())
	}
	log.Info("database migrations complete")

	// Import sessions live in Redis, so the API cannot start without it.
	rdb, err := scheduler.NewRedisClient(cfg)
	if err != nil {
		log.Error("failed to initialize redis client", "error", err)
		panic("failed to initialize redis client: " + err.Error())
	}
	defer func() { _ = rdb.Close() }()
	if err := withRetry(ctx, log, "redis connection", 5, 2*time.Second, func() error {
		return rdb.Ping(ctx).Err()
	}); err != nil {
		log.Error("failed to connect to redis", "error", err)
		panic("failed to connect to redis: " + err.Error())
	}

	enqueuer, closeEnqueuer := initImportEnqueuer(cfg, log)
	if closeEnqueuer != nil {
		defer closeEnqueuer()
	}

	// Event bus for decoupled communication between modules
	eventBus := events.NewInMemoryBus(log)

	// Shared validator instance for dependency injection
	val := validator.New()

	// Photo storage is optional; without it uploads are rejected.
	var photos storage.StorageService
	if cfg.IsMinIOEnabled() {
		storageSvc, err := storage.NewMinIOService(cfg)
		if err != nil {
			log.Error("failed to initialize storage service", "error", err)
			panic("failed to initialize storage service: " + err.Error())
		}
		ensureBucket(ctx, log, storageSvc, "feature-photos", cfg.GetMinioBucketFeaturePhotos())
		photos = storageSvc
		log.Info("storage service initialized", "featurePhotosBucket", cfg.GetMinioBucketFeaturePhotos())
	} else {
		log.Warn("MINIO_ENDPOINT not configured; feature photos disabled")
	}

	// ========================================================================
	// Domain Modules (Composition Root)
	// ========================================================================

	schemaModule := schema.NewModule(pool, log)
	importsModule := imports.NewModule(pool, rdb, schemaModule.Service(), enqueuer, eventBus, cfg, log)
	featuresModule := features.NewModule(pool, schemaModule.Service(), photos, eventBus, features.Settings{
		PhotoBucket:   cfg.GetMinioBucketFeaturePhotos(),
		MaxPhotoBytes: cfg.GetMinIOMaxFileSize(),
	}, val, log)
	exportsModule := exports.NewModule(pool, schemaModule.Service())

	// Wire feature store: placement → features (map sessions never touch SQL)
	featureStore := adapters.NewPlacementFeatureStore(featuresModule.Service())
	placementModule := placement.NewModule(schemaModule.Service(), featureStore, cfg, val, log)
	placementModule.RegisterHandlers(eventBus)
	defer placementModule.Close()

	rateLimiter := httpkit.NewIPRateLimiterFromConfig(cfg, log)
	defer rateLimiter.Close()

	// ========================================================================
	// HTTP Layer
	// ========================================================================

	app := &apphttp.App{
		Config:      cfg,
		Logger:      log,
		Health:      []apphttp.HealthChecker{pool, redisHealth{rdb: rdb}},
		EventBus:    eventBus,
		RateLimiter: rateLimiter,
		Modules: []apphttp.Module{
			schemaModule,
			importsModule,
			featuresModule,
			exportsModule,
			placementModule,
		},
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router.New(app),
		ReadHeaderTimeout: 10 * time.Second,
	}

	srvErr := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			srvErr <- err
		}
		close(srvErr)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received, gracefully shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("server shutdown failed", "error", err)
		}
		eventBus.Wait()
	case err := <-srvErr:
		if err != nil {
			log.Error("server error", "error", err)
			panic("server error: " + err.Error())
		}
	}
}

// initImportEnqueuer returns the worker queue for large imports, or nil when
// the client cannot be built; imports then always commit inline.
func initImportEnqueuer(cfg config.SchedulerConfig, log *logger.Logger) (importservice.SubmitEnqueuer, func()) {
	client, err := scheduler.NewClient(cfg)
	if err != nil {
		log.Error("failed to initialize import queue client", "error", err)
		return nil, nil
	}

	return client, func() {
		_ = client.Close()
	}
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return fmt.Errorf("%s: invalid retry attempts", name)
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return errors.New(name + ": " + lastErr.Error())
}
