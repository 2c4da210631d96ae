package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/nixj9/construction-doc-processor/config"
	"github.com/nixj9/construction-doc-processor/handler"
	"github.com/nixj9/construction-doc-processor/middleware"
	"github.com/nixj9/construction-doc-processor/pkg/logger"
	"github.com/nixj9/construction-doc-processor/service"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cfgFile)
	if err != nil {
		return err
	}

	// Initialize logger
	logger.Init(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
	})
	slog.Info("configuration loaded successfully")

	if err := service.CheckExtensionSets(); err != nil {
		return err
	}

	// Initialize services
	objectStore, err := newObjectStore(context.Background(), cfg)
	if err != nil {
		return err
	}

	registry, err := service.BuildRegistry(cfg, objectStore)
	if err != nil {
		return err
	}
	pipeline := service.NewPipeline(registry, service.NewFileMetadataExtractor())

	service.InitBatchStore(&cfg.Store)
	store := service.GetBatchStore()

	var publisher service.ResultPublisher
	if cfg.RabbitMQ.URL != "" {
		qp, err := service.NewQueuePublisher(cfg.RabbitMQ.URL, cfg.RabbitMQ.Queue, cfg.RabbitMQ.MaxRetries, 2*time.Second)
		if err != nil {
			return err
		}
		defer qp.Close()
		publisher = qp
	}

	timeout := time.Duration(cfg.Pipeline.BatchTimeoutMinutes) * time.Minute
	runner := service.NewBatchRunner(store, pipeline, publisher, timeout)

	// Initialize handlers
	authHandler := handler.NewAuthHandler(cfg)
	batchHandler := handler.NewBatchHandler(store, runner, objectStore, cfg.Pipeline.MaxFiles, cfg.Pipeline.MaxFileSizeMB)

	router := newRouter(cfg, authHandler, batchHandler)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server starting", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return fmt.Errorf("failed to start server: %w", err)
	case <-quit:
	}
	slog.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	slog.Info("server exited gracefully")
	return nil
}

func newRouter(cfg *config.Config, authHandler *handler.AuthHandler, batchHandler *handler.BatchHandler) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	router.Use(middleware.RequestID())
	router.Use(middleware.Recovery())
	router.Use(middleware.RequestLogger())
	router.Use(corsMiddleware())
	router.Use(cacheMiddleware())
	router.Use(middleware.RateLimit(100, time.Minute))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"timestamp": time.Now().Format(time.RFC3339),
		})
	})

	// Public routes
	api := router.Group("/api")
	{
		api.POST("/auth/login", authHandler.Login)
		api.GET("/file-types", batchHandler.FileTypes)
	}

	// Protected routes
	protected := api.Group("/")
	protected.Use(middleware.AuthMiddleware(&cfg.Auth))
	{
		protected.GET("/auth/me", authHandler.GetCurrentUser)
		protected.POST("/batches", middleware.RateLimitBy(20, time.Minute, middleware.TenantKey), batchHandler.Upload)
		protected.GET("/batches", batchHandler.List)
		protected.GET("/batches/:id", batchHandler.Get)
		protected.GET("/batches/:id/status", batchHandler.GetStatus)
		protected.POST("/batches/:id/cancel", batchHandler.Cancel)
		protected.DELETE("/batches/:id", batchHandler.Delete)
	}

	return router
}

// corsMiddleware handles CORS headers
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With, X-Request-ID")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "X-Request-ID, Retry-After")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}

// cacheMiddleware disables caching of API responses, which change while a
// batch runs.
func cacheMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if strings.HasPrefix(c.Request.URL.Path, "/api") {
			c.Header("Cache-Control", "no-cache, no-store, must-revalidate")
			c.Header("Pragma", "no-cache")
			c.Header("Expires", "0")
		}
		c.Next()
	}
}
