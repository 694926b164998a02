package config

import (
	"fmt"
	"time"

	env "github.com/caarlos0/env/v11"
	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/account-ledger/internal/domain"
	"github.com/josh-kwaku/account-ledger/internal/service/ledger"
)

type Config struct {
	DatabaseURL string `env:"DATABASE_URL,required,notEmpty"`
	JWTSecret   string `env:"JWT_SECRET,required,notEmpty"`
	Port        int    `env:"PORT" envDefault:"8080"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	AppEnv      string `env:"APP_ENV" envDefault:"production"`

	MigrationsDir string `env:"MIGRATIONS_DIR" envDefault:"migrations"`

	RedisAddr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`
	EventsStream  string `env:"EVENTS_STREAM" envDefault:"account.events"`

	DBMaxOpenConns     int `env:"DB_MAX_OPEN_CONNS" envDefault:"25"`
	DBMaxIdleConns     int `env:"DB_MAX_IDLE_CONNS" envDefault:"10"`
	DBConnMaxLifetimeS int `env:"DB_CONN_MAX_LIFETIME_S" envDefault:"300"`
	DBConnMaxIdleTimeS int `env:"DB_CONN_MAX_IDLE_TIME_S" envDefault:"60"`

	StoreTimeoutMS    int    `env:"STORE_TIMEOUT_MS" envDefault:"3000"`
	DebitConcurrency  string `env:"DEBIT_CONCURRENCY" envDefault:"pessimistic"`
	DebitMaxRetries   int    `env:"DEBIT_MAX_RETRIES" envDefault:"5"`
	ClosedIsTerminal  bool   `env:"CLOSED_IS_TERMINAL" envDefault:"true"`
	DefaultDailyLimit string `env:"DEFAULT_DAILY_LIMIT" envDefault:"10000.00"`

	OutboxPollIntervalMS int  `env:"OUTBOX_POLL_INTERVAL_MS" envDefault:"500"`
	OutboxBatchSize      int  `env:"OUTBOX_BATCH_SIZE" envDefault:"50"`
	OutboxMaxAttempts    int  `env:"OUTBOX_MAX_ATTEMPTS" envDefault:"10"`
	ProjectionEnabled    bool `env:"PROJECTION_ENABLED" envDefault:"false"`
}

func Load() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.DebitConcurrency {
	case "pessimistic", "optimistic":
	default:
		return fmt.Errorf("DEBIT_CONCURRENCY must be pessimistic or optimistic, got %q", c.DebitConcurrency)
	}
	if c.DebitMaxRetries < 1 {
		return fmt.Errorf("DEBIT_MAX_RETRIES must be at least 1")
	}
	if c.StoreTimeoutMS <= 0 {
		return fmt.Errorf("STORE_TIMEOUT_MS must be positive")
	}
	limit, err := decimal.NewFromString(c.DefaultDailyLimit)
	if err != nil {
		return fmt.Errorf("DEFAULT_DAILY_LIMIT: %w", err)
	}
	if limit.IsNegative() {
		return fmt.Errorf("DEFAULT_DAILY_LIMIT must not be negative")
	}
	if reason := domain.CheckMoney(limit); reason != "" {
		return fmt.Errorf("DEFAULT_DAILY_LIMIT %s", reason)
	}
	return nil
}

func (c *Config) StoreTimeout() time.Duration {
	return time.Duration(c.StoreTimeoutMS) * time.Millisecond
}

func (c *Config) OutboxPollInterval() time.Duration {
	return time.Duration(c.OutboxPollIntervalMS) * time.Millisecond
}

// DailyLimit assumes validate has already accepted the value.
func (c *Config) DailyLimit() decimal.Decimal {
	return decimal.RequireFromString(c.DefaultDailyLimit)
}

func (c *Config) LedgerOptions() ledger.Options {
	return ledger.Options{
		Concurrency:       ledger.ConcurrencyMode(c.DebitConcurrency),
		MaxRetries:        c.DebitMaxRetries,
		StoreTimeout:      c.StoreTimeout(),
		ClosedIsTerminal:  c.ClosedIsTerminal,
		DefaultDailyLimit: c.DailyLimit(),
	}
}
