package main

import (
	"context"
	"errors"
	"log"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/iliyamo/event-seat-reservation/internal/app"
	"github.com/iliyamo/event-seat-reservation/internal/config"
	"github.com/iliyamo/event-seat-reservation/internal/logger"
	"github.com/iliyamo/event-seat-reservation/internal/service"
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
	notifier, err := a.Notifier()
	if err != nil {
		zl.Fatal("notifier", zap.Error(err))
	}
	consumer, err := a.Consumer(service.NewSettlementService(store, notifier, zl))
	if err != nil {
		zl.Fatal("consumer", zap.Error(err))
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return consumer.Run(gctx) })
	if sub := a.LogSubscriber(); sub != nil {
		g.Go(func() error { return sub.Run(gctx) })
	}
	zl.Info("settlement worker started",
		zap.String("queue", cfg.QueueDriver),
		zap.String("store", cfg.StoreDriver),
		zap.String("notify", cfg.NotifyDriver),
		zap.Int("batch_size", cfg.BatchSize))

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		zl.Error("worker stopped", zap.Error(err))
	}
}
