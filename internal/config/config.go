package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/BordignonMD/anti-fraud/internal/engine"
)

// Config carries everything the binaries read from the environment. The
// engine itself never touches the environment; it receives Engine() instead.
type Config struct {
	Port        string
	DatabaseURL string

	// AmountLimit is the rule-pipeline spend limit (TRANSACTION_AMOUNT_LIMIT).
	AmountLimit decimal.Decimal

	// Period is the trailing window for the spend limit (TRANSACTION_PERIOD,
	// in seconds).
	Period time.Duration
}

// Load reads an optional .env file and the environment, falling back to the
// stock limits where a variable is unset or malformed.
func Load(log zerolog.Logger) *Config {
	// A missing .env is fine in production; the variables come from the
	// process environment there.
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("No .env file found, relying on process environment")
	}

	defaults := engine.DefaultConfig()

	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		DatabaseURL: getEnv("DATABASE_URL", ""),
		AmountLimit: defaults.AmountLimit,
		Period:      defaults.Period,
	}

	if raw := os.Getenv("TRANSACTION_AMOUNT_LIMIT"); raw != "" {
		limit, err := decimal.NewFromString(raw)
		if err != nil {
			log.Warn().Str("value", raw).Msg("Ignoring malformed TRANSACTION_AMOUNT_LIMIT")
		} else {
			cfg.AmountLimit = limit
		}
	}

	if raw := os.Getenv("TRANSACTION_PERIOD"); raw != "" {
		seconds, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || seconds <= 0 {
			log.Warn().Str("value", raw).Msg("Ignoring malformed TRANSACTION_PERIOD")
		} else {
			cfg.Period = time.Duration(seconds) * time.Second
		}
	}

	return cfg
}

// Engine returns the explicit limits the rule pipeline is constructed with.
func (c *Config) Engine() engine.Config {
	return engine.Config{
		AmountLimit: c.AmountLimit,
		Period:      c.Period,
	}
}

// getEnv returns the variable's value or a fallback when unset.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}
