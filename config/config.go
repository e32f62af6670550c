// Package config reads the server settings from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
	Debug    bool
}

// DSN is the postgres connection string.
func (c DBConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode)
}

type Config struct {
	DB                DBConfig
	HTTPAddr          string
	RedisAddr         string
	RedisChannel      string
	NATSURL           string
	NATSSubject       string
	PaymentVerifyURL  string
	ReservationTTL    time.Duration
	SweepInterval     time.Duration
	LedgerMaxAttempts int
	ShutdownTimeout   time.Duration
	LogLevel          string
}

// Load reads .env when present, then the process environment.
// Variables already set in the environment win over the file.
func Load(files ...string) (Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !os.IsNotExist(err) {
			return Config{}, fmt.Errorf("failed to load %s: %w", f, err)
		}
	}

	var errs []error
	cfg := Config{
		DB: DBConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvInt("DB_PORT", 5432, &errs),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			Name:     getEnv("DB_NAME", "storefront"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
			Debug:    getEnvBool("DB_DEBUG", false, &errs),
		},
		HTTPAddr:          getEnv("HTTP_ADDR", ":8080"),
		RedisAddr:         getEnv("REDIS_ADDR", "localhost:6379"),
		RedisChannel:      getEnv("REDIS_CHANNEL", "orders.status"),
		NATSURL:           getEnv("NATS_URL", ""),
		NATSSubject:       getEnv("NATS_SUBJECT", "orders"),
		PaymentVerifyURL:  getEnv("PAYMENT_VERIFY_URL", "http://localhost:8090"),
		ReservationTTL:    getEnvDuration("RESERVATION_TTL", 24*time.Hour, &errs),
		SweepInterval:     getEnvDuration("SWEEP_INTERVAL", time.Minute, &errs),
		LedgerMaxAttempts: getEnvInt("LEDGER_MAX_ATTEMPTS", 5, &errs),
		ShutdownTimeout:   getEnvDuration("SHUTDOWN_TIMEOUT", 30*time.Second, &errs),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
	}
	if len(errs) > 0 {
		return Config{}, errs[0]
	}
	if cfg.LedgerMaxAttempts < 1 {
		return Config{}, fmt.Errorf("LEDGER_MAX_ATTEMPTS must be at least 1, got %d", cfg.LedgerMaxAttempts)
	}
	if cfg.SweepInterval <= 0 {
		return Config{}, fmt.Errorf("SWEEP_INTERVAL must be positive, got %s", cfg.SweepInterval)
	}
	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int, errs *[]error) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("invalid int value for %s: %q", key, value))
		return defaultValue
	}
	return n
}

func getEnvBool(key string, defaultValue bool, errs *[]error) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("invalid bool value for %s: %q", key, value))
		return defaultValue
	}
	return b
}

func getEnvDuration(key string, defaultValue time.Duration, errs *[]error) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("invalid duration value for %s: %q", key, value))
		return defaultValue
	}
	return d
}
