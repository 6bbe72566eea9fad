// Command server is the entry point for the Platefeed API.
package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"platefeed/internal/bootstrap"
	"platefeed/internal/config"
	"platefeed/internal/middleware"
	"platefeed/internal/observability"
	"platefeed/internal/server"

	"github.com/joho/godotenv"
)

// @title Platefeed API
// @version 1.0
// @description Food photo feed: restaurants, dish posts, follows and nearby discovery
// @termsOfService http://swagger.io/terms/

// @contact.name API Support

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8375
// @BasePath /api
// @schemes http https

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

func main() {
	// A missing .env is normal outside local development.
	if err := godotenv.Load(); err == nil {
		middleware.Logger = middleware.NewLogger(os.Getenv("APP_ENV"))
	}
	observability.SetLogger(middleware.Logger)

	cfg, err := config.LoadConfig()
	if err != nil {
		fatal("failed to load configuration", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	rt, err := bootstrap.InitRuntime(ctx, cfg, bootstrap.Options{EnsureIndexes: true, Tracing: true})
	cancel()
	if err != nil {
		fatal("failed to initialize runtime", err)
	}

	srv, err := server.NewServerWithDeps(cfg, rt)
	if err != nil {
		fatal("failed to create server", err)
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		middleware.Logger.Info("shutting down server", slog.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			middleware.Logger.Error("server stopped", slog.String("error", err.Error()))
		}
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		middleware.Logger.Error("server shutdown error", slog.String("error", err.Error()))
	}
	if err := rt.Close(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
		middleware.Logger.Error("runtime close error", slog.String("error", err.Error()))
	}
}

func fatal(msg string, err error) {
	middleware.Logger.Error(msg, slog.String("error", err.Error()))
	os.Exit(1)
}
