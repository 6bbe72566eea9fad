// Package database handles the MongoDB connection, index management and transactions.
package database

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"platefeed/internal/config"
	"platefeed/internal/middleware"

	"go.mongodb.org/mongo-driver/event"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const slowCommandThreshold = 200 * time.Millisecond

// commandLogger reports failed and slow commands through slog.
type commandLogger struct {
	logger        *slog.Logger
	slowThreshold time.Duration
	mu            sync.Mutex
	databases     map[int64]string
}

func newCommandLogger(l *slog.Logger) *commandLogger {
	return &commandLogger{logger: l, slowThreshold: slowCommandThreshold, databases: map[int64]string{}}
}

func (l *commandLogger) monitor() *event.CommandMonitor {
	return &event.CommandMonitor{
		Started: func(_ context.Context, evt *event.CommandStartedEvent) {
			l.mu.Lock()
			l.databases[evt.RequestID] = evt.DatabaseName
			l.mu.Unlock()
		},
		Succeeded: func(ctx context.Context, evt *event.CommandSucceededEvent) {
			db := l.pop(evt.RequestID)
			if l.slowThreshold > 0 && evt.Duration > l.slowThreshold {
				l.logger.WarnContext(ctx, "mongo slow command",
					slog.String("command", evt.CommandName),
					slog.String("database", db),
					slog.Duration("elapsed", evt.Duration),
				)
			}
		},
		Failed: func(ctx context.Context, evt *event.CommandFailedEvent) {
			db := l.pop(evt.RequestID)
			l.logger.ErrorContext(ctx, "mongo command error",
				slog.String("command", evt.CommandName),
				slog.String("database", db),
				slog.Duration("elapsed", evt.Duration),
				slog.String("error", evt.Failure),
			)
		},
	}
}

func (l *commandLogger) pop(requestID int64) string {
	l.mu.Lock()
	defer l.mu.Unlock()
	db := l.databases[requestID]
	delete(l.databases, requestID)
	return db
}

// Connect opens a MongoDB client for cfg, verifies it with a ping, and
// returns the client together with the configured database.
func Connect(ctx context.Context, cfg *config.Config) (*mongo.Client, *mongo.Database, error) {
	timeout := time.Duration(cfg.MongoTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	opts := options.Client().
		ApplyURI(cfg.MongoURI).
		SetConnectTimeout(timeout).
		SetServerSelectionTimeout(timeout).
		SetMaxPoolSize(50).
		SetMonitor(newCommandLogger(middleware.Logger).monitor())

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, nil, fmt.Errorf("failed to ping mongo: %w", err)
	}

	middleware.Logger.Info("Database connected successfully", slog.String("database", cfg.MongoDatabase))
	return client, client.Database(cfg.MongoDatabase), nil
}

// WithTransaction runs fn inside a multi-document transaction. The deployment
// must be a replica set or sharded cluster.
func WithTransaction(ctx context.Context, client *mongo.Client, fn func(sessCtx mongo.SessionContext) error) error {
	session, err := client.StartSession()
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sessCtx mongo.SessionContext) (interface{}, error) {
		return nil, fn(sessCtx)
	})
	return err
}
