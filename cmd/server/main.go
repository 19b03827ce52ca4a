package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/globo/viewer/internal/config"
	"github.com/globo/viewer/internal/counts"
	"github.com/globo/viewer/internal/delivery/http"
	"github.com/globo/viewer/internal/domain"
	"github.com/globo/viewer/internal/layer"
	"github.com/globo/viewer/internal/logging"
	"github.com/globo/viewer/internal/repository/postgres"
	"github.com/globo/viewer/internal/service"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment")
	}

	cfg := config.Load()

	zl, err := logging.New(cfg.LogLevel, cfg.Env)
	if err != nil {
		log.Fatalf("Logger error: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	order, err := service.ParseResponseOrder(cfg.ResponseOrder)
	if err != nil {
		zl.Fatal("Invalid RESPONSE_ORDER", zap.Error(err))
	}

	// Embedded counting backend
	var countsSvc *counts.Service
	if cfg.ServeBackend {
		repo, closeRepo := openRepository(cfg.DatabaseURL, zl)
		defer closeRepo()
		countsSvc = counts.NewService(repo, cfg.MaxCells, zl.Named("counts"))
	}

	// Viewer session
	backend := service.NewBackendClient(cfg.BackendURL, cfg.SimplifyPath, cfg.CountPath, cfg.RequestTimeout)
	session := service.NewSession(backend, layer.NewManager(zl.Named("layer")), service.SessionConfig{
		Map:            cfg.MapOptions(),
		Order:          order,
		RequestTimeout: cfg.RequestTimeout,
	}, zl.Named("session"))

	// Fiber App
	app := fiber.New(fiber.Config{
		AppName:      "Globo Viewer v1.0",
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 10*time.Second,
		ErrorHandler: customErrorHandler,
	})

	// Middleware
	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${method} ${path} (${latency})\n",
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PATCH,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept",
	}))

	// Routes
	http.SetupRoutes(app, http.NewHandler(session, countsSvc, zl.Named("http")))

	// Graceful shutdown
	go func() {
		zl.Info("Server starting",
			zap.String("port", cfg.Port),
			zap.Bool("serve_backend", cfg.ServeBackend),
			zap.String("backend_url", cfg.BackendURL))
		if err := app.Listen(":" + cfg.Port); err != nil {
			zl.Fatal("Server error", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zl.Info("Shutting down server...")
	session.Close()
	if err := app.ShutdownWithTimeout(5 * time.Second); err != nil {
		zl.Warn("Server forced to shutdown", zap.Error(err))
	}
	session.Wait()
	zl.Info("Server exited gracefully")
}

// openRepository connects to PostgreSQL, falling back to synthetic counts
func openRepository(databaseURL string, zl *zap.Logger) (domain.CountRepository, func()) {
	if databaseURL == "" {
		zl.Warn("DATABASE_URL not set, running with mock counts")
		return postgres.NewMockRepository(), func() {}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, databaseURL)
	if err == nil {
		err = pool.Ping(ctx)
		if err != nil {
			pool.Close()
		}
	}
	if err != nil {
		zl.Warn("Could not connect to database, running with mock counts", zap.Error(err))
		return postgres.NewMockRepository(), func() {}
	}

	zl.Info("Connected to PostgreSQL")
	return postgres.NewPostgresRepository(pool), pool.Close
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	var e *fiber.Error
	if errors.As(err, &e) {
		code = e.Code
		message = e.Message
	}

	return c.Status(code).JSON(fiber.Map{
		"error":   true,
		"message": message,
	})
}
