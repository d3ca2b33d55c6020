/*
Package config loads server configuration.

PRECEDENCE (lowest to highest):
  1. Built-in defaults
  2. .env file in the working directory (optional, godotenv)
  3. Process environment
  4. Command-line flags

VARIABLES:
  PORT               HTTP port (default 8080)
  DB_DRIVER          sqlite | postgres (default sqlite)
  DB_PATH            SQLite database path (default payouts.db, ":memory:" allowed)
  DATABASE_URL       PostgreSQL DSN, required when DB_DRIVER=postgres
  AMQP_URL           RabbitMQ URL; empty disables audit publishing
  AUDIT_EXCHANGE     Topic exchange for audit entries (default payout.audit)
  LOG_LEVEL          logrus level (default info)
  LOG_FORMAT         text | json (default text)
  HOUSEKEEPING_SPEC  cron expression for rejected-record purge (default "0 0 * * *")
  REJECTED_TTL       age after which rejected records are purged (default 24h)
  REWARD_DEDUPE      skip rewards already recorded for the month (default false)
*/
package config

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

type Config struct {
	Port             int
	DBDriver         string
	DBPath           string
	DatabaseURL      string
	AMQPURL          string
	AuditExchange    string
	LogLevel         string
	LogFormat        string
	HousekeepingSpec string
	RejectedTTL      time.Duration
	RewardDedupe     bool
}

// Load reads .env (when present), the environment and args.
func Load(args []string, envFiles ...string) (*Config, error) {
	if err := godotenv.Load(envFiles...); err != nil && len(envFiles) > 0 {
		return nil, fmt.Errorf("failed to load env file: %w", err)
	}

	cfg := &Config{
		Port:             envInt("PORT", 8080),
		DBDriver:         envString("DB_DRIVER", "sqlite"),
		DBPath:           envString("DB_PATH", "payouts.db"),
		DatabaseURL:      envString("DATABASE_URL", ""),
		AMQPURL:          envString("AMQP_URL", ""),
		AuditExchange:    envString("AUDIT_EXCHANGE", "payout.audit"),
		LogLevel:         envString("LOG_LEVEL", "info"),
		LogFormat:        envString("LOG_FORMAT", "text"),
		HousekeepingSpec: envString("HOUSEKEEPING_SPEC", "0 0 * * *"),
		RejectedTTL:      envDuration("REJECTED_TTL", 24*time.Hour),
		RewardDedupe:     envBool("REWARD_DEDUPE", false),
	}

	fs := flag.NewFlagSet("server", flag.ContinueOnError)
	fs.IntVar(&cfg.Port, "port", cfg.Port, "HTTP server port")
	fs.StringVar(&cfg.DBDriver, "driver", cfg.DBDriver, "Database driver: sqlite or postgres")
	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "SQLite database path")
	fs.StringVar(&cfg.DatabaseURL, "database-url", cfg.DatabaseURL, "PostgreSQL DSN")
	fs.StringVar(&cfg.AMQPURL, "amqp", cfg.AMQPURL, "RabbitMQ URL for audit publishing")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level")
	fs.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "Log format: text or json")
	fs.DurationVar(&cfg.RejectedTTL, "rejected-ttl", cfg.RejectedTTL, "Age after which rejected records are purged")
	fs.BoolVar(&cfg.RewardDedupe, "reward-dedupe", cfg.RewardDedupe, "Skip rewards already recorded for the month")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.DBDriver {
	case "sqlite":
		if c.DBPath == "" {
			return fmt.Errorf("DB_PATH is required for the sqlite driver")
		}
	case "postgres":
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unknown DB_DRIVER %q", c.DBDriver)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid PORT %d", c.Port)
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		return fmt.Errorf("unknown LOG_FORMAT %q", c.LogFormat)
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}
	return nil
}

// Logger builds a logrus logger from LOG_LEVEL and LOG_FORMAT.
func (c *Config) Logger() *logrus.Logger {
	logger := logrus.New()
	if level, err := logrus.ParseLevel(c.LogLevel); err == nil {
		logger.SetLevel(level)
	}
	if c.LogFormat == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return logger
}

func envString(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return def
}

func envBool(key string, def bool) bool {
	if v, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return v
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	if v, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return v
	}
	return def
}
