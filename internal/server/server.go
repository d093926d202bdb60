// Package server contains the HTTP and WebSocket handlers for the blogging API.
package server

import (
	"context"
	"fmt"
	"time"

	_ "inkwell/docs" // swagger docs
	"inkwell/internal/cache"
	"inkwell/internal/config"
	"inkwell/internal/content"
	"inkwell/internal/database"
	"inkwell/internal/middleware"
	"inkwell/internal/models"
	"inkwell/internal/notifications"
	"inkwell/internal/repository"
	"inkwell/internal/service"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/swagger"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// renderCacheSize bounds the number of rendered article bodies kept in memory.
const renderCacheSize = 512

// Server holds all dependencies and provides handlers
type Server struct {
	config         *config.Config
	db             *gorm.DB
	redis          *redis.Client
	app            *fiber.App
	promMiddleware *fiberprometheus.FiberPrometheus
	shutdownCtx    context.Context
	shutdownFn     context.CancelFunc

	userRepo       repository.UserRepository
	articleRepo    repository.ArticleRepository
	commentRepo    repository.CommentRepository
	attachmentRepo repository.AttachmentRepository

	notifier  *notifications.Notifier
	hub       *notifications.Hub
	blacklist *cache.TokenBlacklist
	renderer  *content.Renderer

	userService       *service.UserService
	articleService    *service.ArticleService
	commentService    *service.CommentService
	attachmentService *service.AttachmentService
}

// NewServer connects to the database and Redis described by cfg and builds a Server.
func NewServer(cfg *config.Config) (*Server, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	// A nil client means Redis is unreachable; caching, pub/sub and token
	// revocation degrade instead of failing startup.
	return NewServerWithDeps(cfg, db, cache.Connect(context.Background(), cfg.RedisURL))
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// redisClient may be nil.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, redisClient *redis.Client) (*Server, error) {
	renderer, err := content.NewRenderer(renderCacheSize)
	if err != nil {
		return nil, fmt.Errorf("markdown renderer: %w", err)
	}

	ttl := time.Duration(cfg.CacheTTLSeconds) * time.Second

	s := &Server{
		config:         cfg,
		db:             db,
		redis:          redisClient,
		promMiddleware: middleware.InitMetrics("inkwell-api"),
		userRepo:       repository.NewUserRepository(db, redisClient),
		articleRepo:    repository.NewArticleRepository(db, redisClient, ttl),
		commentRepo:    repository.NewCommentRepository(db, redisClient),
		attachmentRepo: repository.NewAttachmentRepository(db),
		notifier:       notifications.NewNotifier(redisClient),
		hub:            notifications.NewHub(),
		blacklist:      cache.NewTokenBlacklist(redisClient),
		renderer:       renderer,
	}
	// Until the Redis subscriber is wired, events go straight to local sockets.
	s.notifier.AttachLocal(s.hub)

	s.userService = service.NewUserService(s.userRepo, cfg.PublicBaseURL)
	s.articleService = service.NewArticleService(s.articleRepo, s.userRepo, s.renderer)
	s.commentService = service.NewCommentService(s.commentRepo, s.articleRepo, s.userRepo, s.notifier)
	s.attachmentService = service.NewAttachmentService(s.attachmentRepo, cfg)

	return s, nil
}

// NewApp builds the fiber application with middleware and routes attached.
func (s *Server) NewApp() *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:   "Inkwell API",
		BodyLimit: s.bodyLimit(),
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			if fe, ok := err.(*fiber.Error); ok {
				return models.RespondWithError(c, fe.Code, fe)
			}
			middleware.Logger.ErrorContext(c.UserContext(), "unhandled error", "error", err.Error())
			return models.RespondWithError(c, fiber.StatusInternalServerError, models.NewInternalError(err))
		},
	})
	s.app = app

	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	return app
}

// bodyLimit leaves room for a full multipart upload plus form overhead.
func (s *Server) bodyLimit() int {
	perFile := int64(service.DefaultMaxUploadSizeMB) << 20
	if s.attachmentService != nil {
		perFile = s.attachmentService.MaxUploadSizeBytes()
	}
	return int(perFile*service.MaxFilesPerUpload) + 1<<20
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(middleware.TracingMiddleware())
	// Runs after tracing and request ID so both reach the request context.
	app.Use(middleware.ContextMiddleware())

	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}

	// Uploaded images are embedded cross-origin by the frontend.
	app.Use(helmet.New(helmet.Config{
		CrossOriginResourcePolicy: "cross-origin",
	}))
	app.Use(middleware.StructuredLogger())

	// CORS runs before the limiter so rejected requests still carry CORS headers.
	origins := "http://localhost:5173,http://localhost:3000"
	if s.config != nil && s.config.AllowedOrigins != "" {
		origins = s.config.AllowedOrigins
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, Upgrade, Connection, Sec-WebSocket-Key, Sec-WebSocket-Version",
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	app.Use(limiter.New(limiter.Config{
		Max:        100,
		Expiration: 1 * time.Minute,
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodOptions
		},
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(models.ErrorEnvelope(
				fiber.StatusTooManyRequests, models.CodeInvalidInput, "Too many requests, please try again later."))
		},
	}))
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)

	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}
	app.Get("/swagger/*", swagger.HandlerDefault)

	uploadDir := service.DefaultUploadDir
	if s.config != nil && s.config.UploadDir != "" {
		uploadDir = s.config.UploadDir
	}
	app.Static("/uploads", uploadDir, fiber.Static{MaxAge: 3600})

	api := app.Group("/api")

	users := api.Group("/users")
	users.Post("/register", middleware.RateLimit(s.redis, 5, 10*time.Minute, "register"), s.Register)
	users.Post("/login", middleware.RateLimitWithPolicy(
		s.redis, 10, 5*time.Minute, middleware.FailClosed, "login"), s.Login)
	users.Post("/logout", s.AuthRequired(), s.Logout)
	users.Get("/current", s.AuthRequired(), s.GetCurrentUser)
	users.Post("/profile", s.AuthRequired(), s.UpdateProfile)

	api.Post("/upload", s.AuthRequired(),
		middleware.RateLimit(s.redis, 20, time.Minute, "upload"), s.UploadFiles)

	// Public article reads
	articles := api.Group("/articles")
	articles.Get("/", s.GetArticles)
	articles.Post("/add", s.AuthRequired(), s.CreateArticle)
	// Specific /:id/:resource routes before the generic /:id route
	articles.Post("/:id/like", s.AuthRequired(), s.LikeArticle)
	articles.Get("/:id/comments", s.AuthRequired(), s.GetComments)
	articles.Post("/:id/comments", s.AuthRequired(),
		middleware.RateLimit(s.redis, 30, time.Minute, "create_comment"), s.CreateComment)
	articles.Post("/:id/comments/:commentId/replies", s.AuthRequired(),
		middleware.RateLimit(s.redis, 30, time.Minute, "create_comment"), s.CreateReply)
	articles.Get("/:id", s.GetArticle)

	comments := api.Group("/comments", s.AuthRequired())
	comments.Post("/:commentId/like", s.LikeComment)
	comments.Get("/:commentId/replies", s.GetReplies)

	ws := api.Group("/ws")
	ws.Get("/articles/:id/comments", s.StreamAuthRequired(), s.CommentStreamUpgrade, s.CommentStreamHandler())
}

// LivenessCheck handles liveness probe requests
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck reports 503 unless the database and Redis both answer.
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	dbStatus := "healthy"
	if s.db == nil {
		dbStatus = "unavailable"
	} else if err := database.Ping(ctx, s.db); err != nil {
		dbStatus = "unhealthy"
	}

	redisStatus := "healthy"
	if s.redis == nil {
		redisStatus = "unavailable"
	} else if err := s.redis.Ping(ctx).Err(); err != nil {
		redisStatus = "unhealthy"
	}

	status := fiber.StatusOK
	overall := "healthy"
	if dbStatus != "healthy" || redisStatus != "healthy" {
		status = fiber.StatusServiceUnavailable
		overall = "unhealthy"
	}

	return c.Status(status).JSON(fiber.Map{
		"status": overall,
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
		},
		"time": time.Now(),
	})
}

// Start wires the comment hub to Redis and blocks serving HTTP.
func (s *Server) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.shutdownCtx = ctx
	s.shutdownFn = cancel

	app := s.NewApp()

	go func() {
		if err := s.hub.StartWiring(s.shutdownCtx, s.notifier); err != nil {
			middleware.Logger.Error("failed to start comment hub wiring", "error", err.Error())
		}
	}()

	middleware.Logger.Info("Server starting", "port", s.config.Port)
	return app.Listen(":" + s.config.Port)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.shutdownFn != nil {
		s.shutdownFn()
	}

	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			middleware.Logger.Error("error shutting down HTTP server", "error", err.Error())
		}
	}

	if s.hub != nil {
		if err := s.hub.Shutdown(ctx); err != nil {
			middleware.Logger.Error("error shutting down comment hub", "error", err.Error())
		}
	}

	// Detached view increments finish before their store goes away.
	if s.articleService != nil {
		s.articleService.WaitForViews()
	}

	if s.db != nil {
		if sqlDB, err := s.db.DB(); err == nil {
			if cerr := sqlDB.Close(); cerr != nil {
				middleware.Logger.Error("error closing sql DB", "error", cerr.Error())
			}
		}
	}

	if s.redis != nil {
		if rerr := s.redis.Close(); rerr != nil {
			middleware.Logger.Error("error closing redis", "error", rerr.Error())
		}
	}

	middleware.Logger.Info("Server shutdown complete")
	return nil
}
