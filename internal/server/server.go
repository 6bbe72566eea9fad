// Package server contains HTTP and WebSocket handlers for the application's API endpoints.
package server

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	_ "platefeed/docs" // swagger docs
	"platefeed/internal/bootstrap"
	"platefeed/internal/config"
	"platefeed/internal/featureflags"
	"platefeed/internal/middleware"
	"platefeed/internal/models"
	"platefeed/internal/notifications"
	"platefeed/internal/repository"
	"platefeed/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/swagger"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// storePinger reports whether the document store is reachable.
// *mongo.Client satisfies it.
type storePinger interface {
	Ping(ctx context.Context, rp *readpref.ReadPref) error
}

// Deps are the already-initialized collaborators a Server is built from.
type Deps struct {
	Users       repository.UserRepository
	Restaurants repository.RestaurantRepository
	Posts       repository.PostRepository
	Media       service.MediaIngester
	Redis       *redis.Client
	Store       storePinger
	// Messaging is nil when Firebase is not configured.
	Messaging notifications.MulticastSender
}

// Server holds all dependencies and provides handlers
type Server struct {
	config       *config.Config
	redis        *redis.Client
	store        storePinger
	app          *fiber.App
	shutdownCtx  context.Context
	shutdownFn   context.CancelFunc
	notifier     *notifications.Notifier
	hub          *notifications.Hub
	pusher       *notifications.Pusher
	featureFlags *featureflags.Manager

	authService       *service.AuthService
	authoringService  *service.AuthoringService
	postService       *service.PostService
	feedService       *service.FeedService
	socialService     *service.SocialService
	searchService     *service.SearchService
	restaurantService *service.RestaurantService
}

// NewServerWithDeps creates a Server on top of a runtime prepared by the
// bootstrap package.
func NewServerWithDeps(cfg *config.Config, rt *bootstrap.Runtime) (*Server, error) {
	if rt == nil || rt.DB == nil {
		return nil, errors.New("server: runtime has no database")
	}
	deps := Deps{
		Users:       repository.NewUserRepository(rt.DB),
		Restaurants: repository.NewRestaurantRepository(rt.DB),
		Posts:       repository.NewPostRepository(rt.DB),
		Media:       service.NewMediaService(rt.Blobs, cfg.MediaMaxUploadMB),
		Redis:       rt.Redis,
		Store:       rt.Mongo,
	}
	if rt.Messaging != nil {
		deps.Messaging = rt.Messaging
	}
	return NewServer(cfg, rt.Flags, deps), nil
}

// NewServer wires services and realtime delivery from deps.
func NewServer(cfg *config.Config, flags *featureflags.Manager, deps Deps) *Server {
	if flags == nil {
		flags = featureflags.NewManager(cfg.FeatureFlags)
	}
	ttl := time.Duration(cfg.JWTTTLHours) * time.Hour

	s := &Server{
		config:       cfg,
		redis:        deps.Redis,
		store:        deps.Store,
		featureFlags: flags,
		notifier:     notifications.NewNotifier(deps.Redis),
		hub:          notifications.NewHub(),

		authService:       service.NewAuthService(deps.Users, cfg.JWTSecret, ttl),
		authoringService:  service.NewAuthoringService(deps.Users, deps.Restaurants, deps.Posts, deps.Media),
		postService:       service.NewPostService(deps.Users, deps.Restaurants, deps.Posts),
		feedService:       service.NewFeedService(deps.Users, deps.Restaurants, deps.Posts, flags),
		socialService:     service.NewSocialService(deps.Users, deps.Restaurants, deps.Posts, deps.Media),
		searchService:     service.NewSearchService(deps.Users, deps.Restaurants),
		restaurantService: service.NewRestaurantService(deps.Users, deps.Restaurants, deps.Posts),
	}
	if deps.Messaging != nil {
		s.pusher = notifications.NewPusher(deps.Messaging, deps.Users)
	}
	return s
}

// NewApp builds the Fiber app with middleware and routes mounted.
func (s *Server) NewApp() *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:   "Platefeed API",
		BodyLimit: (s.config.MediaMaxUploadMB*2 + 1) * 1024 * 1024,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			var fe *fiber.Error
			if errors.As(err, &fe) {
				return models.RespondWithError(c, fe.Code, err)
			}
			middleware.Logger.ErrorContext(c.UserContext(), "unhandled error", slog.String("error", err.Error()))
			return models.RespondWithError(c, fiber.StatusInternalServerError, models.NewInternalError(err))
		},
	})
	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	return app
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(middleware.TracingMiddleware())
	app.Use(middleware.ContextMiddleware())
	middleware.InitMetrics(app, "platefeed-api")
	app.Use(helmet.New(helmet.Config{CrossOriginResourcePolicy: "cross-origin"}))
	app.Use(middleware.StructuredLogger())

	// CORS runs before the limiter so rejected requests still carry CORS headers.
	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:5173,http://localhost:3000,http://127.0.0.1:5173"
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, Upgrade, Connection, Sec-WebSocket-Key, Sec-WebSocket-Version",
		AllowCredentials: origins != "*",
		MaxAge:           86400,
	}))

	app.Use(limiter.New(limiter.Config{
		Max:        300,
		Expiration: time.Minute,
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodOptions || strings.HasPrefix(c.Path(), "/health")
		},
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Too many requests, please try again later.",
			})
		},
	}))
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	authRequired := middleware.AuthRequired(s.authService)
	optionalAuth := middleware.OptionalAuth(s.authService)

	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)

	if s.config.StorageDriver == "" || s.config.StorageDriver == config.StorageLocal {
		if strings.HasPrefix(s.config.MediaBaseURL, "/") {
			app.Static(s.config.MediaBaseURL, s.config.MediaDir, fiber.Static{MaxAge: 3600})
		}
	}

	api := app.Group("/api")
	api.Get("/swagger/*", swagger.HandlerDefault)
	api.Get("/feature-flags", optionalAuth, s.GetFeatureFlags)

	auth := api.Group("/auth")
	auth.Post("/register", middleware.RateLimit(s.redis, 5, 10*time.Minute, "register"), s.Register)
	auth.Post("/login", middleware.RateLimit(s.redis, 10, 5*time.Minute, "login"), s.Login)
	auth.Get("/me", authRequired, s.Me)
	auth.Post("/logout", authRequired, s.Logout)

	// Specific routes are registered before the generic /:id routes.
	posts := api.Group("/posts")
	posts.Get("/", s.GetPosts)
	posts.Post("/", authRequired, middleware.RateLimit(s.redis, 10, time.Minute, "create_post"), s.CreatePost)
	posts.Get("/feed", authRequired, s.GetFeed)
	posts.Get("/nearby", optionalAuth, s.GetNearbyPosts)
	posts.Get("/:id", s.GetPost)
	posts.Delete("/:id", authRequired, s.DeletePost)
	posts.Put("/:id/like", authRequired, s.ToggleLike)
	posts.Post("/:id/comments", authRequired, middleware.RateLimit(s.redis, 20, time.Minute, "create_comment"), s.AddComment)

	restaurants := api.Group("/restaurants")
	restaurants.Get("/", s.GetRestaurants)
	restaurants.Post("/", authRequired, s.CreateRestaurant)
	restaurants.Get("/nearby", s.GetNearbyRestaurants)
	restaurants.Get("/search", middleware.RateLimit(s.redis, 30, time.Minute, "search"), s.SearchRestaurants)
	restaurants.Post("/resolve", authRequired, s.ResolveRestaurant)
	restaurants.Get("/:id", s.GetRestaurant)
	restaurants.Get("/:id/posts", s.GetRestaurantPosts)
	restaurants.Put("/:id", authRequired, s.UpdateRestaurant)
	restaurants.Post("/:id/menu", authRequired, s.AddMenuItem)
	restaurants.Post("/:id/reviews", authRequired, s.AddReview)

	users := api.Group("/users")
	users.Get("/search", middleware.RateLimit(s.redis, 30, time.Minute, "search"), s.SearchUsers)
	users.Put("/profile", authRequired, s.UpdateProfile)
	users.Put("/favorites/:restaurantId", authRequired, s.ToggleFavorite)
	users.Put("/device-token", authRequired, s.RegisterDeviceToken)
	users.Get("/:id", optionalAuth, s.GetUserProfile)
	users.Get("/:id/posts", s.GetUserPosts)
	users.Put("/:id/follow", authRequired, s.ToggleFollow)
	users.Get("/:id/followers", s.GetFollowers)
	users.Get("/:id/following", s.GetFollowing)

	api.Post("/ws/ticket", authRequired, s.IssueWSTicket)
	api.Get("/ws", s.WebSocketAuth(), s.WebsocketHandler())
}

// LivenessCheck reports whether the process is up
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck reports whether dependencies are reachable
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	storeStatus := "healthy"
	if s.store == nil {
		storeStatus = "unavailable"
	} else if err := s.store.Ping(ctx, readpref.Primary()); err != nil {
		storeStatus = "unhealthy"
	}

	// Redis backs caching, rate limits and realtime fan-out but the API
	// answers without it.
	redisStatus := "healthy"
	if s.redis == nil {
		redisStatus = "unavailable"
	} else if err := s.redis.Ping(ctx).Err(); err != nil {
		redisStatus = "unhealthy"
	}

	status := fiber.StatusOK
	overallStatus := "healthy"
	if storeStatus != "healthy" {
		status = fiber.StatusServiceUnavailable
		overallStatus = "unhealthy"
	} else if redisStatus != "healthy" {
		overallStatus = "degraded"
	}

	return c.Status(status).JSON(fiber.Map{
		"status": overallStatus,
		"checks": fiber.Map{
			"database": storeStatus,
			"redis":    redisStatus,
		},
		"time": time.Now(),
	})
}

// Start builds the app, wires realtime delivery and listens on the configured port.
func (s *Server) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.shutdownCtx = ctx
	s.shutdownFn = cancel

	s.app = s.NewApp()

	if s.notifier.Enabled() {
		if err := s.hub.StartWiring(s.shutdownCtx, s.notifier); err != nil {
			middleware.Logger.Error("failed to start activity hub wiring", slog.String("error", err.Error()))
		}
	}

	middleware.Logger.Info("server starting", slog.String("port", s.config.Port))
	return s.app.Listen(":" + s.config.Port)
}

// Shutdown stops accepting requests and closes activity stream connections.
// Store and Redis connections belong to the runtime and are closed there.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.shutdownFn != nil {
		s.shutdownFn()
	}
	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			middleware.Logger.Error("error shutting down HTTP server", slog.String("error", err.Error()))
		}
	}
	if err := s.hub.Shutdown(ctx); err != nil {
		middleware.Logger.Error("error shutting down activity hub", slog.String("error", err.Error()))
	}
	middleware.Logger.Info("server shutdown complete")
	return nil
}
