// Package bootstrap connects the process-wide dependencies shared by the
// server and the seed command.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"platefeed/internal/cache"
	"platefeed/internal/config"
	"platefeed/internal/database"
	"platefeed/internal/featureflags"
	"platefeed/internal/middleware"
	"platefeed/internal/observability"
	"platefeed/internal/storage"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"google.golang.org/api/option"
)

// Options control runtime initialization behavior.
type Options struct {
	EnsureIndexes bool
	Tracing       bool
}

// Runtime holds the connected dependencies. Redis and Messaging may be nil.
type Runtime struct {
	Mongo     *mongo.Client
	DB        *mongo.Database
	Redis     *redis.Client
	Blobs     storage.BlobStore
	Messaging *messaging.Client
	Flags     *featureflags.Manager

	shutdownTracing func(context.Context) error
}

// InitRuntime connects to MongoDB and Redis, prepares blob storage and,
// when credentials are configured, Firebase messaging.
func InitRuntime(ctx context.Context, cfg *config.Config, opts Options) (*Runtime, error) {
	rt := &Runtime{
		Flags:           featureflags.NewManager(cfg.FeatureFlags),
		shutdownTracing: func(context.Context) error { return nil },
	}

	if opts.Tracing {
		shutdown, err := observability.InitTracing(observability.TracingConfig{
			ServiceName:    "platefeed-api",
			ServiceVersion: "1.0.0",
			Environment:    cfg.Env,
			Enabled:        cfg.TracingEnabled,
			Exporter:       cfg.TracingExporter,
			OTLPEndpoint:   cfg.OTLPEndpoint,
			SamplerRatio:   cfg.TracingSamplerRatio,
		})
		if err != nil {
			return nil, fmt.Errorf("tracing init failed: %w", err)
		}
		rt.shutdownTracing = shutdown
	}

	client, db, err := database.Connect(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}
	rt.Mongo, rt.DB = client, db

	if opts.EnsureIndexes {
		if err := database.EnsureIndexes(ctx, db); err != nil {
			_ = rt.Close(context.Background())
			return nil, fmt.Errorf("failed to ensure indexes: %w", err)
		}
	}

	// May result in a nil client if Redis is unreachable.
	rt.Redis = cache.InitRedis(cfg.RedisURL)

	app, err := initFirebase(ctx, cfg)
	if err != nil {
		_ = rt.Close(context.Background())
		return nil, err
	}
	if app != nil {
		rt.Messaging, err = app.Messaging(ctx)
		if err != nil {
			middleware.Logger.Warn("firebase messaging unavailable, push disabled", slog.String("error", err.Error()))
			rt.Messaging = nil
		}
	}

	rt.Blobs, err = newBlobStore(ctx, cfg, app)
	if err != nil {
		_ = rt.Close(context.Background())
		return nil, err
	}

	return rt, nil
}

func initFirebase(ctx context.Context, cfg *config.Config) (*firebase.App, error) {
	if cfg.FirebaseCredentials == "" {
		return nil, nil
	}
	app, err := firebase.NewApp(ctx, &firebase.Config{StorageBucket: cfg.StorageBucket},
		option.WithCredentialsFile(cfg.FirebaseCredentials))
	if err != nil {
		return nil, fmt.Errorf("firebase init failed: %w", err)
	}
	middleware.Logger.Info("firebase initialized")
	return app, nil
}

func newBlobStore(ctx context.Context, cfg *config.Config, app *firebase.App) (storage.BlobStore, error) {
	if cfg.StorageDriver != config.StorageFirebase {
		return storage.NewLocalStore(cfg.MediaDir, cfg.MediaBaseURL), nil
	}
	if app == nil {
		return nil, errors.New("STORAGE_DRIVER=firebase requires FIREBASE_CREDENTIALS_FILE")
	}
	store, err := storage.NewFirebaseStore(ctx, app, cfg.StorageBucket)
	if err != nil {
		return nil, err
	}
	return store, nil
}

// Close releases every connection held by the runtime.
func (r *Runtime) Close(ctx context.Context) error {
	var errs []error
	if r.Redis != nil {
		if err := r.Redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close redis: %w", err))
		}
	}
	if r.Mongo != nil {
		if err := r.Mongo.Disconnect(ctx); err != nil {
			errs = append(errs, fmt.Errorf("disconnect mongo: %w", err))
		}
	}
	if r.shutdownTracing != nil {
		if err := r.shutdownTracing(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown tracing: %w", err))
		}
	}
	return errors.Join(errs...)
}
