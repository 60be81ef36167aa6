package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"static-server/handlers"
	"static-server/routes"
)

const (
	readHeaderTimeout   = 10 * time.Second
	limiterSweepEvery   = time.Minute
	limiterIdleLifetime = 10 * time.Minute
)

// newServer wires the handler chain for config
func newServer(ctx context.Context, config *Config, logger *zap.Logger) *http.Server {
	var limiter *handlers.RateLimiter
	if config.RateLimitEnabled {
		limiter = handlers.NewRateLimiter(config.RateLimitRPM, config.RateLimitBurst).TrustForwardedFor(config.RateLimitTrustProxy)
		go limiter.RunCleanup(ctx, limiterSweepEvery, limiterIdleLifetime, logger)
	}

	handler := routes.InitializeRoutes(routes.Options{
		AssetsDir:          config.AssetsDir,
		PagesDir:           config.PagesDir,
		ReadTimeout:        config.ReadTimeoutDuration(),
		MimeTypes:          config.MimeTypes,
		DefaultContentType: config.DefaultContentType,
		Logger:             logger,
		Limiter:            limiter,
	})

	return &http.Server{
		Addr:              config.ListenAddr(),
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
		ErrorLog:          zap.NewStdLog(logger),
	}
}

func run(ctx context.Context, config *Config, logger *zap.Logger) error {
	srv := newServer(ctx, config, logger)

	errCh := make(chan error, 1)
	go func() {
		logger.Info(fmt.Sprintf("http server listening port %d", config.Port),
			zap.String("addr", srv.Addr),
			zap.String("assets_dir", config.AssetsDir),
			zap.String("pages_dir", config.PagesDir),
		)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("listen on %s: %w", srv.Addr, err)
	case <-ctx.Done():
	}

	logger.Info("shutting down", zap.Duration("timeout", config.ShutdownTimeoutDuration()))

	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeoutDuration())
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	logger.Info("server stopped")
	return nil
}

func main() {
	config, err := LoadConfig()
	if err != nil {
		log.Fatalf("Error loading config: %v", err)
	}

	logger, err := NewLogger(config.LogLevel)
	if err != nil {
		log.Fatalf("Error creating logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, config, logger); err != nil {
		logger.Error("server failed", zap.Error(err))
		stop()
		logger.Sync() //nolint:errcheck
		os.Exit(1)
	}
}
