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

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/mossy-p/call-signaling/config"
	"github.com/mossy-p/call-signaling/internal/clock"
	"github.com/mossy-p/call-signaling/internal/handlers"
	"github.com/mossy-p/call-signaling/internal/middleware"
	"github.com/mossy-p/call-signaling/internal/redis"
	"github.com/mossy-p/call-signaling/internal/signaling"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logger := newLogger(cfg)
	log.Logger = logger

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		stop()
		logger.Fatal().Err(err).Msg("Server stopped")
	}
}

// run serves until ctx is cancelled or the listener fails. Deferred
// closes run on both paths so queued presence updates are flushed.
func run(ctx context.Context, cfg *config.Config, logger zerolog.Logger) error {
	var mirror signaling.PresenceMirror
	if cfg.Redis.Enabled {
		client, err := redis.Connect(ctx, cfg.Redis)
		if err != nil {
			return err
		}
		presenceMirror, err := redis.NewPresenceMirror(ctx, client, cfg.Redis.KeyPrefix, logger)
		if err != nil {
			client.Close()
			return err
		}
		defer presenceMirror.Close()
		mirror = presenceMirror
		logger.Info().Str("addr", cfg.Redis.RedisAddr()).Msg("Redis presence mirror enabled")
	}

	hub := signaling.NewHub(logger, clock.Real(), mirror, hubOptions(cfg.Signaling))
	hub.Start()
	defer hub.Close()

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           newRouter(cfg, hub, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info().Str("port", cfg.Port).Msg("Starting call signaling server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info().Msg("Shutting down")
	case err := <-serveErr:
		return fmt.Errorf("failed to serve: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Graceful shutdown failed")
	}
	return nil
}

func newLogger(cfg *config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	var logger zerolog.Logger
	if cfg.Environment == "production" {
		logger = zerolog.New(os.Stdout)
	} else {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}
	return logger.Level(level).With().Timestamp().Logger()
}

func hubOptions(cfg config.SignalingConfig) signaling.Options {
	return signaling.Options{
		RingTimeout:           cfg.RingTimeout,
		PendingDeliveryWindow: cfg.PendingDeliveryWindow,
		PendingMaxAge:         cfg.PendingMaxAge,
		PendingSweepInterval:  cfg.PendingSweepInterval,
		TypingStaleAfter:      cfg.TypingStaleAfter,
		TypingSweepInterval:   cfg.TypingSweepInterval,
	}
}

func newRouter(cfg *config.Config, hub *signaling.Hub, logger zerolog.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(handlers.RequestLogger(logger))

	// Global CORS middleware (runs before routing)
	router.Use(handlers.OriginFilter(cfg.AllowedOrigins))

	router.GET("/health", handlers.Health)

	ws := handlers.NewSignalingHandler(hub, cfg.SendBuffer, logger)
	router.GET("/ws", ws.HandleSignaling)

	apiGroup := router.Group("/api")
	{
		apiGroup.GET("/ice-servers", handlers.ICEServers(handlers.ICEServersFromConfig(cfg.ICE)))

		authed := apiGroup.Group("", middleware.JWTAuth(cfg.JWTSecret))
		authed.GET("/presence/:userId", handlers.Presence(hub))
		authed.GET("/status", handlers.Status(hub))
	}

	return router
}
