package config

import (
	"fmt"
	"time"

	env "github.com/caarlos0/env/v11"
)

type Config struct {
	DatabaseURL string `env:"DATABASE_URL,required,notEmpty"`
	RedisURL    string `env:"REDIS_URL"`
	TenantID    string `env:"TENANT_ID" envDefault:"default"`
	Port        int    `env:"PORT" envDefault:"8080"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	AppEnv      string `env:"APP_ENV" envDefault:"production"`

	RoundingMode string `env:"ROUNDING_MODE" envDefault:"HALF_EVEN"`

	KafkaBrokers        []string      `env:"KAFKA_BROKERS" envSeparator:","`
	BusinessEventsTopic string        `env:"BUSINESS_EVENTS_TOPIC" envDefault:"loan.business-events"`
	RelayInterval       time.Duration `env:"RELAY_INTERVAL" envDefault:"5s"`
	RelayBatchSize      int           `env:"RELAY_BATCH_SIZE" envDefault:"50"`
	RelayMaxAttempts    int           `env:"RELAY_MAX_ATTEMPTS" envDefault:"10"`

	AgingInterval    time.Duration `env:"AGING_INTERVAL" envDefault:"1h"`
	AgingConcurrency int           `env:"AGING_CONCURRENCY" envDefault:"8"`
	JobLockTTL       time.Duration `env:"JOB_LOCK_TTL" envDefault:"30m"`

	OTelEndpoint string `env:"OTEL_ENDPOINT"`

	DBMaxOpenConns     int `env:"DB_MAX_OPEN_CONNS" envDefault:"25"`
	DBMaxIdleConns     int `env:"DB_MAX_IDLE_CONNS" envDefault:"10"`
	DBConnMaxLifetimeS int `env:"DB_CONN_MAX_LIFETIME_S" envDefault:"300"`
	DBConnMaxIdleTimeS int `env:"DB_CONN_MAX_IDLE_TIME_S" envDefault:"60"`
}

func Load() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	if cfg.AgingConcurrency < 1 {
		return nil, fmt.Errorf("config.Load: AGING_CONCURRENCY must be at least 1, got %d", cfg.AgingConcurrency)
	}
	if cfg.RelayBatchSize < 1 {
		return nil, fmt.Errorf("config.Load: RELAY_BATCH_SIZE must be at least 1, got %d", cfg.RelayBatchSize)
	}
	return &cfg, nil
}
