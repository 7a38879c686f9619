package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/event-seat-reservation/internal/app"
	"github.com/iliyamo/event-seat-reservation/internal/config"
	"github.com/iliyamo/event-seat-reservation/internal/handler"
	"github.com/iliyamo/event-seat-reservation/internal/logger"
	"github.com/iliyamo/event-seat-reservation/internal/middleware"
	"github.com/iliyamo/event-seat-reservation/internal/router"
	"github.com/iliyamo/event-seat-reservation/internal/service"
	"github.com/iliyamo/event-seat-reservation/internal/telemetry"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	zl, err := logger.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, zl)
	if err != nil {
		zl.Fatal("init", zap.Error(err))
	}
	defer a.Close()

	store, err := a.Store(ctx)
	if err != nil {
		zl.Fatal("store", zap.Error(err))
	}
	q, err := a.IntakeQueue()
	if err != nil {
		zl.Fatal("queue", zap.Error(err))
	}

	h := handler.NewReservationHandler(
		service.NewIntakeService(q, zl),
		service.NewReservationService(store, zl),
	)

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.RequestID(), telemetry.Middleware(nil), middleware.RequestLogger(zl))
	router.RegisterRoutes(e)
	router.RegisterReservations(e, h, router.NewMiddleware(
		cfg.JWTSecret,
		middleware.NewRateLimiter(config.LoadRateLimitConfig(), a.Redis, zl),
		middleware.NewRedisCache(config.LoadCacheConfig(), a.Redis, zl),
	))

	addr := ":" + cfg.Port
	go func() {
		zl.Info("listening",
			zap.String("addr", addr),
			zap.String("env", cfg.Env),
			zap.String("store", cfg.StoreDriver),
			zap.String("queue", cfg.QueueDriver))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zl.Fatal("server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		zl.Error("shutdown", zap.Error(err))
	}
}
