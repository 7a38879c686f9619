// Package app wires configuration into stores, queues and notifiers. It is
// shared by the server, worker and Lambda binaries so that every binary
// picks the same backend for the same configuration.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/iliyamo/event-seat-reservation/internal/awsclient"
	"github.com/iliyamo/event-seat-reservation/internal/config"
	"github.com/iliyamo/event-seat-reservation/internal/database"
	"github.com/iliyamo/event-seat-reservation/internal/notify"
	"github.com/iliyamo/event-seat-reservation/internal/queue"
	"github.com/iliyamo/event-seat-reservation/internal/rabbit"
	"github.com/iliyamo/event-seat-reservation/internal/repository"
	"github.com/iliyamo/event-seat-reservation/internal/service"
	"github.com/iliyamo/event-seat-reservation/internal/telemetry"
)

// Runner is a long-running consumer.
type Runner interface {
	Run(ctx context.Context) error
}

// App holds the shared connections. Close releases them in reverse order
// of creation.
type App struct {
	Cfg   config.Config
	Log   *zap.Logger
	Redis *redis.Client

	aws     *awsclient.Clients
	queueMQ *rabbit.Conn
	notifMQ *rabbit.Conn
	closers []func() error
}

// New installs tracing, connects to Redis when reachable and loads AWS
// clients when a driver needs them.
func New(ctx context.Context, cfg config.Config, log *zap.Logger) (*App, error) {
	a := &App{Cfg: cfg, Log: log}

	shutdown, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:  cfg.ServiceName,
		Environment:  cfg.Env,
		OTLPEndpoint: cfg.OTLPEndpoint,
	})
	if err != nil {
		return nil, err
	}
	a.onClose(func() error {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return shutdown(sctx)
	})

	rdb, err := config.NewRedisClient(ctx, config.LoadRedisConfig())
	if err != nil {
		log.Warn("redis unavailable; dedup, rate limit and cache disabled", zap.Error(err))
	} else {
		a.Redis = rdb
		a.onClose(rdb.Close)
	}

	if cfg.NeedsAWS() {
		awsCfg, err := awsclient.Load(ctx)
		if err != nil {
			return nil, err
		}
		clients := awsclient.New(awsCfg, cfg.AWSEndpoint)
		a.aws = &clients
	}
	return a, nil
}

func (a *App) onClose(f func() error) { a.closers = append(a.closers, f) }

// Close releases every connection opened through the App.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.Log.Warn("close failed", zap.Error(err))
		}
	}
}

func (a *App) queueConn() *rabbit.Conn {
	if a.queueMQ == nil {
		a.queueMQ = rabbit.NewConn(a.Cfg.QueueURL)
		a.onClose(a.queueMQ.Close)
	}
	return a.queueMQ
}

func (a *App) notifyConn() *rabbit.Conn {
	if a.Cfg.QueueDriver == config.QueueRabbitMQ && a.Cfg.NotifyURL == a.Cfg.QueueURL {
		return a.queueConn()
	}
	if a.notifMQ == nil {
		a.notifMQ = rabbit.NewConn(a.Cfg.NotifyURL)
		a.onClose(a.notifMQ.Close)
	}
	return a.notifMQ
}

// Store opens the configured reservation store. SQL tables are created
// when missing.
func (a *App) Store(ctx context.Context) (repository.ReservationStore, error) {
	switch a.Cfg.StoreDriver {
	case config.StoreMySQL:
		db, err := database.Open(ctx, a.Cfg.DB)
		if err != nil {
			return nil, fmt.Errorf("open mysql: %w", err)
		}
		a.onClose(db.Close)
		repo, err := repository.NewReservationRepo(db, a.Cfg.TableName)
		if err != nil {
			return nil, err
		}
		if err := repo.EnsureSchema(ctx); err != nil {
			return nil, fmt.Errorf("ensure schema: %w", err)
		}
		return repo, nil
	case config.StorePostgres:
		pool, err := database.OpenPostgres(ctx, a.Cfg.PostgresURL)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		a.onClose(func() error { pool.Close(); return nil })
		repo, err := repository.NewPostgresReservationRepo(pool, a.Cfg.TableName)
		if err != nil {
			return nil, err
		}
		if err := repo.EnsureSchema(ctx); err != nil {
			return nil, fmt.Errorf("ensure schema: %w", err)
		}
		return repo, nil
	case config.StoreDynamoDB:
		return repository.NewDynamoReservationRepo(a.aws.DynamoDB, a.Cfg.TableName), nil
	case config.StoreMemory:
		a.Log.Warn("memory store is local to this process; other binaries will not see its reservations")
		return repository.NewMemoryReservationRepo(), nil
	}
	return nil, fmt.Errorf("unknown store driver %q", a.Cfg.StoreDriver)
}

func (a *App) deduper() *queue.Deduper {
	return queue.NewDeduper(a.Redis, a.Cfg.DedupWindow, a.Log)
}

// IntakeQueue returns the producer side of the configured queue.
func (a *App) IntakeQueue() (service.IntakeQueue, error) {
	switch a.Cfg.QueueDriver {
	case config.QueueRabbitMQ:
		q := queue.NewRabbitQueue(a.queueConn().Opener(), a.Cfg.QueueName, a.Cfg.QueuePartitions, a.deduper(), a.Log)
		a.onClose(q.Close)
		return q, nil
	case config.QueueKafka:
		producer, err := sarama.NewSyncProducer(a.Cfg.KafkaBrokers(), queue.NewSaramaConfig())
		if err != nil {
			return nil, fmt.Errorf("failed to create producer: %w", err)
		}
		q := queue.NewKafkaQueue(producer, a.Cfg.QueueName, a.deduper(), a.Log)
		a.onClose(q.Close)
		return q, nil
	case config.QueueSQS:
		return queue.NewSQSQueue(a.aws.SQS, a.Cfg.QueueURL, a.Log), nil
	}
	return nil, fmt.Errorf("unknown queue driver %q", a.Cfg.QueueDriver)
}

// Notifier returns the configured success notification channel.
func (a *App) Notifier() (service.Notifier, error) {
	switch a.Cfg.NotifyDriver {
	case config.NotifyRabbitMQ:
		n := notify.NewRabbitNotifier(a.notifyConn().Opener(), a.Cfg.TopicARN, a.Log)
		a.onClose(n.Close)
		return n, nil
	case config.NotifySNS:
		return notify.NewSNSNotifier(a.aws.SNS, a.Cfg.TopicARN, a.Log), nil
	}
	return nil, fmt.Errorf("unknown notify driver %q", a.Cfg.NotifyDriver)
}

// Consumer returns the settlement side of the configured queue.
func (a *App) Consumer(settler queue.Settler) (Runner, error) {
	cfg := a.Cfg
	switch cfg.QueueDriver {
	case config.QueueRabbitMQ:
		return queue.NewRabbitConsumer(a.queueConn(), cfg.QueueName, cfg.QueuePartitions, cfg.BatchSize, cfg.BatchWait, settler, a.Log), nil
	case config.QueueKafka:
		scfg := queue.NewSaramaConfig()
		group, err := sarama.NewConsumerGroup(cfg.KafkaBrokers(), cfg.KafkaGroupID, scfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create consumer group: %w", err)
		}
		a.onClose(group.Close)
		dlq, err := sarama.NewSyncProducer(cfg.KafkaBrokers(), scfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create dead-letter producer: %w", err)
		}
		a.onClose(dlq.Close)
		return queue.NewKafkaConsumer(group, cfg.QueueName, dlq, cfg.BatchSize, cfg.BatchWait, settler, a.Log), nil
	case config.QueueSQS:
		return queue.NewSQSPoller(a.aws.SQS, cfg.QueueURL, cfg.BatchSize, settler, a.Log), nil
	}
	return nil, fmt.Errorf("unknown queue driver %q", cfg.QueueDriver)
}

// LogSubscriber returns the confirmation log consumer, or nil when no log
// file is configured or notifications do not go through RabbitMQ.
func (a *App) LogSubscriber() Runner {
	if a.Cfg.NotifyLogFile == "" || a.Cfg.NotifyDriver != config.NotifyRabbitMQ {
		return nil
	}
	return notify.NewLogSubscriber(a.notifyConn(), a.Cfg.TopicARN, a.Cfg.NotifyLogFile, a.Log)
}
