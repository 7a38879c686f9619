// Command lambda runs one of the three reservation functions on AWS Lambda.
// HANDLER selects it: reserve (API Gateway), cancel (API Gateway) or
// process (SQS event source).
package main

import (
	"context"
	"log"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	"go.uber.org/zap"

	"github.com/iliyamo/event-seat-reservation/internal/app"
	"github.com/iliyamo/event-seat-reservation/internal/config"
	"github.com/iliyamo/event-seat-reservation/internal/lambdafn"
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
	ctx := context.Background()

	a, err := app.New(ctx, cfg, zl)
	if err != nil {
		zl.Fatal("init", zap.Error(err))
	}
	h := &lambdafn.Handlers{Log: zl}

	switch name := os.Getenv("HANDLER"); name {
	case "reserve":
		q, err := a.IntakeQueue()
		if err != nil {
			zl.Fatal("queue", zap.Error(err))
		}
		h.Intake = service.NewIntakeService(q, zl)
		lambda.Start(h.Reserve)
	case "cancel":
		store, err := a.Store(ctx)
		if err != nil {
			zl.Fatal("store", zap.Error(err))
		}
		h.Reservations = service.NewReservationService(store, zl)
		lambda.Start(h.Cancel)
	case "process":
		store, err := a.Store(ctx)
		if err != nil {
			zl.Fatal("store", zap.Error(err))
		}
		notifier, err := a.Notifier()
		if err != nil {
			zl.Fatal("notifier", zap.Error(err))
		}
		h.Settlement = service.NewSettlementService(store, notifier, zl)
		lambda.Start(h.Process)
	default:
		zl.Fatal("unknown HANDLER; want reserve, cancel or process", zap.String("handler", name))
	}
}
