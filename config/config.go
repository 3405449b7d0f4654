package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	DatabaseURL  string
	Port         string
	PollInterval time.Duration
	AuthEnabled  bool
}

func Load() Config {
	cfg := Config{
		DatabaseURL:  os.Getenv("DATABASE_URL"),
		Port:         os.Getenv("PORT"),
		PollInterval: 5 * time.Second,
		AuthEnabled:  os.Getenv("AUTH_ENABLED") == "true",
	}
	if cfg.Port == "" {
		cfg.Port = "8080"
	}
	if v := os.Getenv("POLL_INTERVAL_SECONDS"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			cfg.PollInterval = time.Duration(secs) * time.Second
		}
	}
	return cfg
}
