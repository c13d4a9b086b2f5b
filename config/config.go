/*
Package config loads deployment settings and builds the process-wide
infrastructure clients (logger, Redis).

SOURCES (later wins):
  1. defaults below
  2. .env in the working directory, when present
  3. process environment
  4. command-line flags, applied by cmd/server

KEYS:
  PORT                 HTTP port (8080)
  DB_PATH              SQLite file, ":memory:" allowed (orderflow.db)
  LOG_LEVEL            logrus level name (info)
  LOG_FORMAT           text | json (text)
  PRODUCTION_LOCATION  where finished orders are posted (MAIN)
  STOCK_LOCATION       pool auto provisioning draws from (MAIN)
  REDIS_ADDR           host:port, empty disables Redis
  REDIS_PASSWORD
  REDIS_DB             (0)
  NOTIFY_CHANNEL       pub/sub channel for lifecycle events (orderflow.events)
  ORDERS_URL           link attached to order_created events
  RATE_LIMIT           ulule formatted rate (300-M)
  CORS_ORIGINS         comma separated allowed origins
  AUDIT_INTERVAL       Go duration, 0 disables the periodic audit (1h)
*/
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port   int
	DBPath string

	Log   LogConfig
	Redis RedisConfig

	ProductionLocation string
	StockLocation      string
	NotifyChannel      string
	OrdersURL          string

	RateLimit     string
	CORSOrigins   []string
	AuditInterval time.Duration
}

type LogConfig struct {
	Level  string
	Format string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// Enabled reports whether a Redis address was configured.
func (r RedisConfig) Enabled() bool { return r.Addr != "" }

// Load reads .env (if any) and the environment.
func Load() (Config, error) {
	// A missing .env is normal outside development.
	_ = godotenv.Load()
	return FromEnv()
}

// FromEnv builds a Config from the current environment only.
func FromEnv() (Config, error) {
	port, err := strconv.Atoi(getEnv("PORT", "8080"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid PORT: %w", err)
	}
	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid REDIS_DB: %w", err)
	}
	audit, err := time.ParseDuration(getEnv("AUDIT_INTERVAL", "1h"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid AUDIT_INTERVAL: %w", err)
	}

	return Config{
		Port:   port,
		DBPath: getEnv("DB_PATH", "orderflow.db"),
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "text"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       redisDB,
		},
		ProductionLocation: getEnv("PRODUCTION_LOCATION", "MAIN"),
		StockLocation:      getEnv("STOCK_LOCATION", "MAIN"),
		NotifyChannel:      getEnv("NOTIFY_CHANNEL", "orderflow.events"),
		OrdersURL:          getEnv("ORDERS_URL", ""),
		RateLimit:          getEnv("RATE_LIMIT", "300-M"),
		CORSOrigins:        splitList(getEnv("CORS_ORIGINS", "http://localhost:5173,http://localhost:8080")),
		AuditInterval:      audit,
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
