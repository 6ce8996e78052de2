// Package server contains the HTTP handlers and page rendering of the blog.
package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"blogicum/internal/bootstrap"
	"blogicum/internal/config"
	"blogicum/internal/featureflags"
	"blogicum/internal/middleware"
	"blogicum/internal/models"
	"blogicum/internal/observability"
	"blogicum/internal/repository"
	"blogicum/internal/service"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/csrf"
	"github.com/gofiber/fiber/v2/middleware/filesystem"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Server holds all dependencies and provides handlers
type Server struct {
	config         *config.Config
	db             *gorm.DB
	redis          *redis.Client
	app            *fiber.App
	promMiddleware *fiberprometheus.FiberPrometheus
	featureFlags   *featureflags.Manager
	images         *service.ImageStore
	postService    *service.PostService
	commentService *service.CommentService
	userService    *service.UserService
}

// NewServer creates a new server instance with all dependencies
func NewServer(cfg *config.Config) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	db, rdb, err := bootstrap.InitRuntime(cfg, bootstrap.DefaultOptions(cfg))
	if err != nil {
		return nil, err
	}
	return NewServerWithDeps(cfg, db, rdb)
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// redisClient may be nil; caching, rate limiting and logout revocation are then skipped.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, redisClient *redis.Client) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if db == nil {
		return nil, errors.New("database is required")
	}

	userRepo := repository.NewUserRepository(db, redisClient)
	postRepo := repository.NewPostRepository(db)
	commentRepo := repository.NewCommentRepository(db)
	categoryRepo := repository.NewCategoryRepository(db, redisClient)
	locationRepo := repository.NewLocationRepository(db)

	server := &Server{
		config:         cfg,
		db:             db,
		redis:          redisClient,
		promMiddleware: middleware.InitMetrics(observability.ServiceName),
		featureFlags:   featureflags.NewManager(cfg.FeatureFlags),
		images:         service.NewImageStore(cfg),
	}
	server.postService = service.NewPostService(postRepo, categoryRepo, locationRepo, server.images, cfg.PageSize)
	server.commentService = service.NewCommentService(commentRepo, postRepo)
	server.userService = service.NewUserService(userRepo)

	return server, nil
}

// NewApp builds the Fiber application with middleware and routes installed.
func (s *Server) NewApp() *fiber.App {
	uploadMB := s.config.ImageMaxUploadSizeMB
	if uploadMB <= 0 {
		uploadMB = service.DefaultImageMaxUploadSizeMB
	}
	app := fiber.New(fiber.Config{
		AppName:      "Blogicum",
		Views:        NewViewEngine(),
		ErrorHandler: s.errorHandler,
		// Room for the image plus the other form fields.
		BodyLimit: (uploadMB + 1) * 1024 * 1024,
	})
	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	return app
}

// isAsset reports whether the request targets a static file or an infrastructure endpoint.
func isAsset(c *fiber.Ctx) bool {
	p := c.Path()
	return strings.HasPrefix(p, "/static/") ||
		strings.HasPrefix(p, "/media/") ||
		strings.HasPrefix(p, "/health") ||
		p == "/metrics"
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	// Panic recovery
	app.Use(recover.New())

	// Request ID for tracing
	app.Use(requestid.New())

	// Context Middleware to propagate Request ID and User ID
	app.Use(middleware.ContextMiddleware())

	app.Use(middleware.TracingMiddleware())

	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}

	// Security headers; uploaded images are served same-origin.
	app.Use(helmet.New(helmet.Config{
		CrossOriginEmbedderPolicy: "unsafe-none",
	}))

	// Structured Logging middleware (after requestid and context middleware)
	app.Use(middleware.StructuredLogger())

	// Global rate limiting (100 requests per minute per IP)
	app.Use(limiter.New(limiter.Config{
		Max:        100,
		Expiration: 1 * time.Minute,
		Next:       isAsset,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return fiber.NewError(fiber.StatusTooManyRequests, "Too many requests, please try again later.")
		},
	}))

	app.Use(csrf.New(csrf.Config{
		Next:           isAsset,
		KeyLookup:      "form:_csrf",
		CookieName:     "csrftoken",
		CookieSameSite: "Lax",
		CookieSecure:   s.config.IsProduction(),
		CookieHTTPOnly: true,
		Expiration:     12 * time.Hour,
		ContextKey:     "csrf",
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			return fiber.NewError(fiber.StatusForbidden, "CSRF verification failed. Request aborted.")
		},
	}))
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	app.Use("/static", filesystem.New(filesystem.Config{
		Root:       http.FS(staticFS),
		PathPrefix: "static",
		MaxAge:     3600,
	}))
	app.Static("/media", s.images.Dir(), fiber.Static{MaxAge: 3600})

	// Health checks
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)

	// Metrics endpoint for Prometheus
	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}

	app.Use(s.Session())
	login := s.LoginRequired()

	app.Get("/", s.Index)
	app.Get("/category/:slug", s.CategoryPosts)
	app.Get("/profile/:username", s.Profile)
	app.Get("/edit_profile", login, s.EditProfileForm)
	app.Post("/edit_profile", login, s.EditProfile)

	posts := app.Group("/posts")
	// Specific routes before the generic /:id detail route
	posts.Get("/create", login, s.CreatePostForm)
	posts.Post("/create", login, middleware.RateLimit(
		s.redis, 10, 10*time.Minute, "create_post"), s.CreatePost)
	posts.Get("/:id/edit", login, s.EditPostForm)
	posts.Post("/:id/edit", login, s.EditPost)
	posts.Get("/:id/delete", login, s.DeletePostConfirm)
	posts.Post("/:id/delete", login, s.DeletePost)
	posts.Post("/:id/comment", login, middleware.RateLimit(
		s.redis, 20, time.Minute, "create_comment"), s.AddComment)
	posts.Get("/:id/edit_comment/:commentId", login, s.EditCommentForm)
	posts.Post("/:id/edit_comment/:commentId", login, s.EditComment)
	posts.Get("/:id/delete_comment/:commentId", login, s.DeleteCommentConfirm)
	posts.Post("/:id/delete_comment/:commentId", login, s.DeleteComment)
	posts.Get("/:id", s.PostDetail)

	auth := app.Group("/auth")
	guest := s.GuestOnly()
	auth.Get("/registration", guest, s.RegistrationForm)
	auth.Post("/registration", guest, middleware.RateLimit(
		s.redis, 5, 10*time.Minute, "signup"), s.Register)
	auth.Get("/login", guest, s.LoginForm)
	auth.Post("/login", guest, middleware.RateLimit(
		s.redis, 10, 5*time.Minute, "login"), s.Login)
	auth.Post("/logout", login, s.Logout)
}

// errorHandler renders the error page matching err's status.
func (s *Server) errorHandler(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	message := "Internal server error"

	var appErr *models.AppError
	var fiberErr *fiber.Error
	switch {
	case errors.As(err, &appErr):
		status = appErr.Status()
		message = appErr.Message
	case errors.As(err, &fiberErr):
		status = fiberErr.Code
		message = fiberErr.Message
	}

	if status >= fiber.StatusInternalServerError {
		middleware.Logger.ErrorContext(c.UserContext(), "request failed",
			"method", c.Method(),
			"path", c.Path(),
			"error", err,
		)
		message = "Internal server error"
	}

	page := "errors/error"
	switch status {
	case fiber.StatusNotFound:
		page = "errors/404"
	case fiber.StatusForbidden:
		page = "errors/403"
	case fiber.StatusInternalServerError:
		page = "errors/500"
	}

	c.Status(status)
	if renderErr := s.render(c, page, fiber.Map{
		"Title":   fmt.Sprintf("%d", status),
		"Status":  status,
		"Message": message,
	}); renderErr != nil {
		middleware.Logger.ErrorContext(c.UserContext(), "error page render failed", "error", renderErr)
		return c.Status(status).SendString(message)
	}
	return nil
}

// LivenessCheck handles liveness probe requests
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck handles readiness probe requests
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	dbStatus := "healthy"
	sqlDB, err := s.db.DB()
	if err != nil {
		dbStatus = "unhealthy"
	} else if err := sqlDB.PingContext(ctx); err != nil {
		dbStatus = "unhealthy"
	}

	// Redis is optional: the blog degrades to uncached reads without it.
	redisStatus := "unavailable"
	if s.redis != nil {
		redisStatus = "healthy"
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
		}
	}

	status := fiber.StatusOK
	overallStatus := "healthy"
	if dbStatus == "unhealthy" {
		status = fiber.StatusServiceUnavailable
		overallStatus = "unhealthy"
	} else if redisStatus != "healthy" {
		overallStatus = "degraded"
	}

	return c.Status(status).JSON(fiber.Map{
		"status": overallStatus,
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
		},
		"time": time.Now(),
	})
}

// Start starts the server
func (s *Server) Start() error {
	s.app = s.NewApp()
	log.Printf("Server starting on port %s...", s.config.Port)
	return s.app.Listen(":" + s.config.Port)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			log.Printf("error shutting down HTTP server: %v", err)
		}
	}

	if sqlDB, err := s.db.DB(); err == nil {
		if cerr := sqlDB.Close(); cerr != nil {
			log.Printf("error closing sql DB: %v", cerr)
		}
	}

	if s.redis != nil {
		if rerr := s.redis.Close(); rerr != nil {
			log.Printf("error closing redis: %v", rerr)
		}
	}

	log.Println("Server shutdown complete")
	return nil
}
