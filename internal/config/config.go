package config // package config loads application configuration from environment variables

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Store, queue and notification backends understood by the binaries.
const (
	StoreMySQL    = "mysql"
	StorePostgres = "postgres"
	StoreDynamoDB = "dynamodb"
	StoreMemory   = "memory"

	QueueRabbitMQ = "rabbitmq"
	QueueKafka    = "kafka"
	QueueSQS      = "sqs"

	NotifyRabbitMQ = "rabbitmq"
	NotifySNS      = "sns"
)

// Config holds all runtime configuration values.  The three endpoints
// (QueueURL, TableName, TopicARN) are mandatory for every binary: a
// component that starts without one of them would only fail later on
// its first call.
type Config struct {
	Env      string // application environment (e.g. "dev", "prod")
	Port     string // HTTP port to listen on
	LogLevel string // zap level name

	QueueURL  string // AMQP URL, comma separated Kafka brokers or SQS queue URL
	TableName string // MySQL table or DynamoDB table
	TopicARN  string // SNS topic ARN or RabbitMQ fanout exchange

	StoreDriver  string
	QueueDriver  string
	NotifyDriver string
	NotifyURL    string // AMQP URL for notifications, defaults to QueueURL

	QueueName       string        // RabbitMQ queue prefix or Kafka topic
	QueuePartitions int           // number of RabbitMQ partition queues
	KafkaGroupID    string        // Kafka consumer group
	BatchSize       int           // settlement batch size
	BatchWait       time.Duration // max wait to fill a settlement batch
	DedupWindow     time.Duration // Redis dedup window (RabbitMQ/Kafka)

	DB          DBConfig
	PostgresURL string // pgx connection string, required when StoreDriver is postgres

	AWSEndpoint string // optional endpoint override (localstack)

	JWTSecret     string // optional; enables bearer auth on intake/cancel
	NotifyLogFile string // optional; worker appends confirmations here

	ServiceName  string // tracer and resource name
	OTLPEndpoint string // optional; host:port of an OTLP gRPC collector
}

// DBConfig holds the MySQL connection settings.  They are required only
// when StoreDriver is mysql.
type DBConfig struct {
	User string
	Pass string
	Host string
	Port string
	Name string
}

// MissingEnvError lists every required variable that was unset or empty.
type MissingEnvError struct {
	Keys []string
}

func (e *MissingEnvError) Error() string {
	return "missing required env vars: " + strings.Join(e.Keys, ", ")
}

// loader accumulates missing and invalid variables so a single Load call
// reports all of them at once.
type loader struct {
	missing []string
	invalid []string
}

// Load reads an optional .env file and then the environment.  It returns
// a *MissingEnvError when a required variable is absent and a plain error
// when a value cannot be parsed or names an unknown driver.
func Load() (Config, error) {
	_ = godotenv.Load() // a missing .env file is normal outside local dev
	return FromEnv()
}

// FromEnv builds a Config from the process environment only.
func FromEnv() (Config, error) {
	l := &loader{}
	cfg := Config{
		Env:      envStr("APP_ENV", "dev"),
		Port:     envStr("APP_PORT", "8080"),
		LogLevel: envStr("LOG_LEVEL", "info"),

		QueueURL:  l.must("QUEUE_URL"),
		TableName: l.must("TABLE_NAME"),
		TopicARN:  l.must("TOPIC_ARN"),

		StoreDriver:  strings.ToLower(envStr("STORE_DRIVER", StoreMySQL)),
		QueueDriver:  strings.ToLower(envStr("QUEUE_DRIVER", QueueRabbitMQ)),
		NotifyDriver: strings.ToLower(envStr("NOTIFY_DRIVER", NotifyRabbitMQ)),

		QueueName:       envStr("QUEUE_NAME", "reservation.intake"),
		QueuePartitions: l.intOr("QUEUE_PARTITIONS", 8),
		KafkaGroupID:    envStr("KAFKA_GROUP_ID", "reservation-settlement"),
		BatchSize:       l.intOr("BATCH_SIZE", 10),
		BatchWait:       l.durOr("BATCH_WAIT", 250*time.Millisecond),
		DedupWindow:     l.durOr("DEDUP_WINDOW", 5*time.Minute),

		AWSEndpoint:   os.Getenv("AWS_ENDPOINT_URL"),
		JWTSecret:     os.Getenv("JWT_SECRET"),
		NotifyLogFile: os.Getenv("NOTIFY_LOG_FILE"),

		ServiceName:  envStr("OTEL_SERVICE_NAME", "event-seat-reservation"),
		OTLPEndpoint: os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
	}
	cfg.NotifyURL = envStr("NOTIFY_URL", cfg.QueueURL)

	switch cfg.StoreDriver {
	case StorePostgres:
		cfg.PostgresURL = l.must("DATABASE_URL")
	case StoreMySQL:
		cfg.DB = DBConfig{
			User: l.must("DB_USER"),
			Pass: os.Getenv("DB_PASS"), // empty allowed
			Host: l.must("DB_HOST"),
			Port: l.must("DB_PORT"),
			Name: l.must("DB_NAME"),
		}
	}

	if len(l.missing) > 0 {
		return Config{}, &MissingEnvError{Keys: l.missing}
	}
	if len(l.invalid) > 0 {
		return Config{}, fmt.Errorf("invalid env vars: %s", strings.Join(l.invalid, ", "))
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.StoreDriver {
	case StoreMySQL, StorePostgres, StoreDynamoDB, StoreMemory:
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}
	switch c.QueueDriver {
	case QueueRabbitMQ, QueueKafka, QueueSQS:
	default:
		return fmt.Errorf("unknown QUEUE_DRIVER %q", c.QueueDriver)
	}
	switch c.NotifyDriver {
	case NotifyRabbitMQ, NotifySNS:
	default:
		return fmt.Errorf("unknown NOTIFY_DRIVER %q", c.NotifyDriver)
	}
	if c.StoreDriver == StoreMemory && c.Env != "dev" && c.Env != "test" {
		return fmt.Errorf("STORE_DRIVER=memory is process-local and only allowed with APP_ENV=dev or test, got %q", c.Env)
	}
	if c.BatchSize < 1 || c.BatchSize > 10 {
		return fmt.Errorf("BATCH_SIZE must be between 1 and 10, got %d", c.BatchSize)
	}
	if c.QueuePartitions < 1 {
		return fmt.Errorf("QUEUE_PARTITIONS must be positive, got %d", c.QueuePartitions)
	}
	if c.NotifyDriver == NotifyRabbitMQ && c.QueueDriver != QueueRabbitMQ && c.NotifyURL == c.QueueURL {
		return fmt.Errorf("NOTIFY_URL is required when NOTIFY_DRIVER=rabbitmq and QUEUE_DRIVER=%s", c.QueueDriver)
	}
	return nil
}

// NeedsAWS reports whether any configured backend is an AWS service.
func (c Config) NeedsAWS() bool {
	return c.StoreDriver == StoreDynamoDB || c.QueueDriver == QueueSQS || c.NotifyDriver == NotifySNS
}

// KafkaBrokers splits QueueURL into a broker list.
func (c Config) KafkaBrokers() []string {
	var out []string
	for _, b := range strings.Split(c.QueueURL, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

// must records key as missing when it is unset or empty.
func (l *loader) must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(v) == "" {
		l.missing = append(l.missing, key)
		return ""
	}
	return v
}

func (l *loader) intOr(key string, def int) int {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		l.invalid = append(l.invalid, fmt.Sprintf("%s=%q", key, s))
		return def
	}
	return n
}

func (l *loader) durOr(key string, def time.Duration) time.Duration {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		l.invalid = append(l.invalid, fmt.Sprintf("%s=%q", key, s))
		return def
	}
	return d
}
