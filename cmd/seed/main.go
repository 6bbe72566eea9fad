// Command seed fills the configured database with demo data.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"time"

	"platefeed/internal/bootstrap"
	"platefeed/internal/config"
	"platefeed/internal/middleware"
	"platefeed/internal/observability"
	"platefeed/internal/repository"
	"platefeed/internal/seed"
	"platefeed/internal/service"

	"github.com/joho/godotenv"
)

func main() {
	defaults := seed.DefaultOptions()
	numUsers := flag.Int("users", defaults.Users, "Number of users to create")
	postsPerUser := flag.Int("posts", defaults.PostsPerUser, "Posts per user")
	follows := flag.Int("follows", defaults.FollowsPerUser, "Users each user follows")
	reviews := flag.Int("reviews", defaults.ReviewsPerUser, "Reviews per user")
	randomSeed := flag.Int64("seed", time.Now().UnixNano(), "Random seed for generated content")
	shouldClean := flag.Bool("clean", false, "Drop all collections before seeding")
	catalogPath := flag.String("catalog", "", "YAML restaurant catalog (defaults to the built-in one)")
	flag.Parse()

	if err := godotenv.Load(); err == nil {
		middleware.Logger = middleware.NewLogger(os.Getenv("APP_ENV"))
	}
	observability.SetLogger(middleware.Logger)
	log := middleware.Logger

	cfg, err := config.LoadConfig()
	if err != nil {
		fatal("failed to load configuration", err)
	}

	catalog, err := loadCatalog(*catalogPath)
	if err != nil {
		fatal("failed to load catalog", err)
	}

	ctx := context.Background()
	rt, err := bootstrap.InitRuntime(ctx, cfg, bootstrap.Options{EnsureIndexes: true})
	if err != nil {
		fatal("failed to initialize runtime", err)
	}
	defer func() { _ = rt.Close(context.Background()) }()

	if *shouldClean {
		if err := seed.Clear(ctx, rt.DB); err != nil {
			fatal("cleanup failed", err)
		}
		log.Info("collections dropped")
	}

	users := repository.NewUserRepository(rt.DB)
	restaurants := repository.NewRestaurantRepository(rt.DB)
	posts := repository.NewPostRepository(rt.DB)
	media := service.NewMediaService(rt.Blobs, cfg.MediaMaxUploadMB)

	svc := seed.Services{
		Auth:      service.NewAuthService(users, cfg.JWTSecret, time.Duration(cfg.JWTTTLHours)*time.Hour),
		Authoring: service.NewAuthoringService(users, restaurants, posts, media),
		Posts:     service.NewPostService(users, restaurants, posts),
		Social:    service.NewSocialService(users, restaurants, posts, media),
	}

	opts := defaults
	opts.Users = *numUsers
	opts.PostsPerUser = *postsPerUser
	opts.FollowsPerUser = *follows
	opts.ReviewsPerUser = *reviews
	opts.RandomSeed = *randomSeed

	res, err := seed.NewSeeder(svc, catalog, opts).Run(ctx)
	if err != nil {
		fatal("seeding failed", err)
	}

	log.Info("database populated",
		slog.Int("users", res.Users),
		slog.Int("restaurants", res.Restaurants),
		slog.Int("posts", res.Posts),
		slog.String("password", opts.Password),
	)
}

func loadCatalog(path string) (*seed.Catalog, error) {
	if path == "" {
		return seed.DefaultCatalog()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return seed.ParseCatalog(data)
}

func fatal(msg string, err error) {
	middleware.Logger.Error(msg, slog.String("error", err.Error()))
	os.Exit(1)
}
