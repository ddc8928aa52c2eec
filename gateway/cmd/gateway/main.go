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

	"github.com/joho/godotenv"
	echo "github.com/labstack/echo/v4"

	"github.com/salumedx/platform/gateway/internal/config"
	"github.com/salumedx/platform/gateway/internal/httpserver"
	gwmw "github.com/salumedx/platform/gateway/internal/middleware"
	"github.com/salumedx/platform/pkg/logging"
	authmw "github.com/salumedx/platform/pkg/middleware/auth"
	"github.com/salumedx/platform/pkg/revocation"
	"github.com/salumedx/platform/pkg/tokens"
)

func main() {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("notice: .env file not found, using system environment")
	}

	cfg := config.Load()

	logger := logging.New(cfg.LogLevel)
	slog.SetDefault(logger)

	e := echo.New()
	e.HideBanner = true
	e.Server.ReadTimeout = 10 * time.Second
	e.Server.WriteTimeout = 30 * time.Second
	e.Server.ReadHeaderTimeout = 3 * time.Second
	e.Use(gwmw.Common(logger)...)

	cache := revocation.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	defer cache.Close()

	// The gateway only checks access tokens, so a single shared secret is
	// enough; refresh tokens never pass through validation here.
	guard := authmw.NewGuard(&tokens.Codec{AccessSecret: cfg.JWTSecret}, cache)

	if err := httpserver.Register(e, cfg, guard); err != nil {
		log.Fatalf("route setup: %v", err)
	}

	go func() {
		if err := e.Start(cfg.ListenAddr); err != nil && err != http.ErrServerClosed {
			log.Fatalf("echo start: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Printf("echo shutdown: %v", err)
	}
}
