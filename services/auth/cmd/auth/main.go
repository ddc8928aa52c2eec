package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/salumedx/platform/pkg/logging"
	loggingmw "github.com/salumedx/platform/pkg/middleware/logging"
	"github.com/salumedx/platform/pkg/revocation"
	"github.com/salumedx/platform/pkg/tokens"
	"github.com/salumedx/platform/services/auth/internal/config"
	"github.com/salumedx/platform/services/auth/internal/events"
	"github.com/salumedx/platform/services/auth/internal/httpserver"
	"github.com/salumedx/platform/services/auth/internal/middleware"
	"github.com/salumedx/platform/services/auth/internal/repo"
	"github.com/salumedx/platform/services/auth/internal/service"
)

func main() {
	cfg := config.Load()

	logger := logging.New(cfg.LogLevel)
	slog.SetDefault(logger)

	e := echo.New()
	e.HideBanner = true
	e.Server.ReadTimeout = 10 * time.Second
	e.Server.WriteTimeout = 15 * time.Second
	e.Server.ReadHeaderTimeout = 3 * time.Second
	e.Use(echomw.Recover(), echomw.RequestID(), echomw.Secure())
	e.Use(loggingmw.RequestLogger(logger))

	initCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	db, err := config.InitDB(initCtx, cfg)
	cancel()
	if err != nil {
		log.Fatalf("db init error: %v", err)
	}

	cache := revocation.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	defer cache.Close()

	producer := events.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
	defer producer.Close()

	svc := &service.AuthService{
		Repo: &repo.GormRepo{DB: db},
		Codec: &tokens.Codec{
			AccessSecret:  cfg.AccessSecret,
			RefreshSecret: cfg.RefreshSecret,
			AccessTTL:     cfg.AccessTTL,
			RefreshTTL:    cfg.RefreshTTL,
		},
		Revocations: cache,
		Events:      producer,
		MaxSessions: cfg.MaxSessions,
	}

	httpserver.Register(e, &httpserver.Deps{
		AuthHandler: &httpserver.AuthHTTP{Svc: svc},
		Guard:       middleware.NewTokenGuard(svc),
	})

	stopJanitor := startJanitor(svc.Repo, logger)
	defer stopJanitor()

	go func() {
		if err := e.Start(cfg.ListenAddr); err != nil && err != http.ErrServerClosed {
			log.Fatalf("echo start: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Printf("echo shutdown: %v", err)
	}
}

// startJanitor prunes expired blacklist and session rows periodically.
// Correctness never depends on it; expired tokens fail the expiry check.
func startJanitor(r *repo.GormRepo, logger *slog.Logger) func() {
	ticker := time.NewTicker(time.Hour)
	done := make(chan struct{})

	go func() {
		for {
			select {
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
				if n, err := r.PurgeExpiredRevoked(ctx); err != nil {
					logger.Warn("purge_revoked_failed", "error", err)
				} else if n > 0 {
					logger.Info("purged_revoked_rows", "count", n)
				}
				if n, err := r.DeleteExpiredRefresh(ctx); err != nil {
					logger.Warn("purge_refresh_failed", "error", err)
				} else if n > 0 {
					logger.Info("purged_refresh_rows", "count", n)
				}
				cancel()
			case <-done:
				ticker.Stop()
				return
			}
		}
	}()

	return func() { close(done) }
}
