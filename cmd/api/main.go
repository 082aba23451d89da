// Package main is the entry point for the API server.
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

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/socialhub/social-platform/internal/cache"
	"github.com/socialhub/social-platform/internal/config"
	"github.com/socialhub/social-platform/internal/handler"
	natsclient "github.com/socialhub/social-platform/internal/nats"
	"github.com/socialhub/social-platform/internal/service"
	"github.com/socialhub/social-platform/internal/store"
	"github.com/socialhub/social-platform/internal/store/gormstore"
	"github.com/socialhub/social-platform/internal/store/memstore"
	"github.com/socialhub/social-platform/pkg/logger"
	"github.com/socialhub/social-platform/pkg/tracing"
)

type backingStore interface {
	store.Store
	Ping(ctx context.Context) error
}

func main() {
	// A missing .env is fine; the environment wins either way.
	_ = godotenv.Load()

	// Load configuration
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log, err := logger.NewWithOptions(logger.Options{
		Level:   cfg.LogLevel,
		Format:  cfg.LogFormat,
		Service: "social-platform-api",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("starting API server", zap.String("db_driver", cfg.DBDriver))

	// Initialize tracing if enabled
	ctx := context.Background()
	if cfg.TracingEnabled {
		tp, err := tracing.InitTracer(ctx, "social-platform", cfg.TracingEndpoint)
		if err != nil {
			log.Warn("failed to initialize tracing", zap.Error(err))
		} else {
			defer tracing.Shutdown(ctx, tp)
		}
	}

	// Open the store
	var st backingStore
	if cfg.DBDriver == "memory" {
		log.Warn("using in-memory store, data is lost on restart")
		st = memstore.New()
	} else {
		db, err := gormstore.Open(ctx, gormstore.Config{
			Driver:       cfg.DBDriver,
			DSN:          cfg.DatabaseURL,
			MaxOpenConns: cfg.DBMaxOpenConns,
			MaxIdleConns: cfg.DBMaxIdleConns,
			MaxLifetime:  cfg.DBMaxLifetime,
			LogLevel:     cfg.DBLogLevel,
		})
		if err != nil {
			log.Fatal("failed to open database", zap.Error(err))
		}
		defer db.Close()

		if cfg.DBAutoMigrate {
			if err := db.Migrate(ctx); err != nil {
				log.Fatal("failed to migrate database", zap.Error(err))
			}
		}
		st = db
	}

	checks := []handler.Check{{Name: "database", Pinger: st}}

	// Connect to NATS
	var (
		natsClient *natsclient.Client
		publisher  service.Publisher
	)
	if cfg.NATSEnabled {
		connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		natsClient, err = natsclient.Connect(connectCtx, natsclient.Config{
			URL:      cfg.NATSURL,
			CAFile:   cfg.NATSCAFile,
			CertFile: cfg.NATSCertFile,
			KeyFile:  cfg.NATSKeyFile,
			Token:    cfg.NATSToken,
			Name:     "social-platform-api",
		}, log)
		cancel()
		if err != nil {
			log.Fatal("failed to connect to NATS", zap.Error(err))
		}
		defer natsClient.Close()

		// Ensure JetStream stream exists
		streamManager := natsclient.NewStreamManager(natsClient)
		if err := streamManager.EnsureStream(ctx); err != nil {
			log.Fatal("failed to ensure stream", zap.Error(err))
		}
		publisher = streamManager
		checks = append(checks, handler.Check{Name: "nats", Pinger: natsClient})
	}

	// Presence cache
	var presenceCache cache.Cache
	if cfg.RedisURL != "" {
		rc, err := cache.NewRedis(ctx, cfg.RedisURL, "social:")
		if err != nil {
			log.Fatal("failed to connect to Redis", zap.Error(err))
		}
		defer rc.Close()
		presenceCache = rc
		checks = append(checks, handler.Check{Name: "cache", Pinger: rc})
	}

	// Initialize services
	userSvc := service.NewUserService(st, log)
	conversationSvc := service.NewConversationService(st, log)
	notificationSvc := service.NewNotificationService(st, publisher, log)
	messageSvc := service.NewMessageService(st, notificationSvc, publisher, log)
	presenceSvc := service.NewPresenceService(st, presenceCache, cfg.PresenceCacheTTL, log)

	// Create router
	router := handler.NewRouter(handler.RouterConfig{
		Logger:             log,
		Resolver:           userSvc,
		JWTSecret:          cfg.JWTSecret,
		JWTIssuer:          cfg.JWTIssuer,
		RateLimitRequests:  cfg.RateLimitRequests,
		RateLimitWindow:    cfg.RateLimitWindow,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		Health:             handler.NewHealthHandler(checks...),
		Users:              handler.NewUserHandler(userSvc, log),
		Conversations:      handler.NewConversationHandler(conversationSvc, log),
		Messages:           handler.NewMessageHandler(messageSvc, log),
		Presence:           handler.NewPresenceHandler(presenceSvc, log),
		Notifications:      handler.NewNotificationHandler(notificationSvc, log),
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  cfg.ServerReadTimeout,
		WriteTimeout: cfg.ServerWriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info("server listening", zap.String("port", cfg.ServerPort))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server error", zap.Error(err))
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}

	log.Info("server stopped")
}
