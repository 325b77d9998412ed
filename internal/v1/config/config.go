// Package config validates and binds environment configuration for the
// signaling relay.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds validated environment configuration.
type Config struct {
	// Optional variables with defaults
	Port     string
	LogLevel string
	GoEnv    string

	// Distribution bridge (optional; bridge is disabled when RedisURL is empty)
	RedisURL string

	// Protocol timings
	HeartbeatInterval time.Duration
	PongTimeout       time.Duration
	DisconnectTimeout time.Duration

	// Resource bounds
	MessageCacheCapacity   int
	RoomSubscriptionLinger time.Duration
	ShutdownTimeout        time.Duration

	// TLS (all optional; server runs plain HTTP unless cert+key are both set)
	TLSCertFile string
	TLSKeyFile  string
	TLSCAFiles  []string

	MetricsPath string
}

// Load validates all environment variables and returns a Config object.
// Returns an error describing every violation if validation fails.
func Load() (*Config, error) {
	cfg := &Config{}
	var errs []string

	cfg.Port = getEnvOrDefault("PORT", "9000")
	if port, err := strconv.Atoi(cfg.Port); err != nil || port < 1 || port > 65535 {
		errs = append(errs, fmt.Sprintf("PORT must be a valid port number between 1 and 65535 (got '%s')", cfg.Port))
	}

	cfg.LogLevel = getEnvOrDefault("LOG_LEVEL", "info")
	cfg.GoEnv = getEnvOrDefault("GO_ENV", "production")

	cfg.RedisURL = os.Getenv("REDIS_URL")

	var err error
	cfg.HeartbeatInterval, err = durationMsOrDefault("HEARTBEAT_INTERVAL", 30_000)
	if err != nil {
		errs = append(errs, err.Error())
	}
	cfg.PongTimeout, err = durationMsOrDefault("PONG_TIMEOUT", 60_000)
	if err != nil {
		errs = append(errs, err.Error())
	}
	cfg.DisconnectTimeout, err = durationMsOrDefault("DISCONNECT_TIMEOUT", 90_000)
	if err != nil {
		errs = append(errs, err.Error())
	}

	cfg.MessageCacheCapacity, err = intOrDefault("MESSAGE_CACHE_CAPACITY", 256)
	if err != nil {
		errs = append(errs, err.Error())
	}

	if raw := os.Getenv("ROOM_SUBSCRIPTION_LINGER_MS"); raw != "" {
		cfg.RoomSubscriptionLinger, err = durationMsOrDefault("ROOM_SUBSCRIPTION_LINGER_MS", 0)
		if err != nil {
			errs = append(errs, err.Error())
		}
	} else {
		cfg.RoomSubscriptionLinger = cfg.DisconnectTimeout
	}

	cfg.ShutdownTimeout, err = durationMsOrDefault("SHUTDOWN_TIMEOUT_MS", 5_000)
	if err != nil {
		errs = append(errs, err.Error())
	}

	cfg.TLSCertFile = os.Getenv("TLS_CERT_FILE")
	cfg.TLSKeyFile = os.Getenv("TLS_KEY_FILE")
	if (cfg.TLSCertFile == "") != (cfg.TLSKeyFile == "") {
		errs = append(errs, "TLS_CERT_FILE and TLS_KEY_FILE must be set together")
	}
	if raw := os.Getenv("TLS_CA_FILES"); raw != "" {
		for _, p := range strings.Split(raw, ",") {
			if p = strings.TrimSpace(p); p != "" {
				cfg.TLSCAFiles = append(cfg.TLSCAFiles, p)
			}
		}
	}

	cfg.MetricsPath = getEnvOrDefault("METRICS_PATH", "/metrics")

	if len(errs) > 0 {
		return nil, fmt.Errorf("environment validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	logValidatedConfig(cfg)
	return cfg, nil
}

func durationMsOrDefault(key string, defaultMs int) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return time.Duration(defaultMs) * time.Millisecond, nil
	}
	ms, err := strconv.Atoi(raw)
	if err != nil || ms < 0 {
		return 0, fmt.Errorf("%s must be a non-negative integer number of milliseconds (got '%s')", key, raw)
	}
	return time.Duration(ms) * time.Millisecond, nil
}

func intOrDefault(key string, defaultVal int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("%s must be a positive integer (got '%s')", key, raw)
	}
	return n, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func logValidatedConfig(cfg *Config) {
	slog.Info("environment configuration validated",
		"port", cfg.Port,
		"log_level", cfg.LogLevel,
		"go_env", cfg.GoEnv,
		"redis_enabled", cfg.RedisURL != "",
		"heartbeat_interval", cfg.HeartbeatInterval,
		"pong_timeout", cfg.PongTimeout,
		"disconnect_timeout", cfg.DisconnectTimeout,
		"message_cache_capacity", cfg.MessageCacheCapacity,
		"tls_enabled", cfg.TLSCertFile != "",
	)
}
