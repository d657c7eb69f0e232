package api

import (
	"os"
	"strconv"
	"time"
)

// Config holds the authority server configuration.
type Config struct {
	ListenAddr      string
	DBPath          string
	SeedFile        string
	AMQPURL         string
	Latency         time.Duration
	FailRate        float64
	ShutdownTimeout time.Duration
	MaxBodyBytes    int64
}

// LoadConfig reads configuration from WSMENU_SERVE_* environment variables
// with defaults. Flags override it in cmd.
func LoadConfig() Config {
	cfg := Config{
		ListenAddr:      ":8787",
		DBPath:          "./data/authority.db",
		ShutdownTimeout: 10 * time.Second,
		MaxBodyBytes:    1 << 20,
	}

	if v := os.Getenv("WSMENU_SERVE_ADDR"); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv("WSMENU_SERVE_DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("WSMENU_SERVE_SEED_FILE"); v != "" {
		cfg.SeedFile = v
	}
	if v := os.Getenv("WSMENU_AMQP_URL"); v != "" {
		cfg.AMQPURL = v
	}
	if v := os.Getenv("WSMENU_SERVE_LATENCY"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d >= 0 {
			cfg.Latency = d
		}
	}
	if v := os.Getenv("WSMENU_SERVE_FAIL_RATE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f >= 0 && f <= 1 {
			cfg.FailRate = f
		}
	}
	if v := os.Getenv("WSMENU_SERVE_SHUTDOWN_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.ShutdownTimeout = d
		}
	}
	return cfg
}
