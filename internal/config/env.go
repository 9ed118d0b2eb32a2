package config

import (
	"os"
	"strconv"
)

// FromEnv overlays RELAY_* environment variables onto cfg.
func FromEnv(cfg *Config) {
	if v := os.Getenv("RELAY_HTTP_ADDR"); v != "" {
		cfg.Server.HTTPAddr = v
	}
	if v := os.Getenv("RELAY_LIVENESS_PROBE_INTERVAL_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Liveness.ProbeIntervalMs = n
		}
	}
	if v := os.Getenv("RELAY_LIVENESS_DEADLINE_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Liveness.DeadlineMs = n
		}
	}
	if v := os.Getenv("RELAY_MAX_MESSAGE_BYTES"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Limits.MaxMessageBytes = n
		}
	}
	if v := os.Getenv("RELAY_SEND_QUEUE_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Limits.SendQueueSize = n
		}
	}
	if v := os.Getenv("RELAY_WRITE_TIMEOUT_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Limits.WriteTimeoutMs = n
		}
	}
	if v := os.Getenv("RELAY_JWT_SECRET"); v != "" {
		cfg.Auth.JWTSecret = v
	}
	if v := os.Getenv("RELAY_CLIENT_MAX_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Client.MaxRetries = n
		}
	}
	if v := os.Getenv("RELAY_CLIENT_RETRY_BACKOFF_MIN_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Client.RetryBackoffMinMs = n
		}
	}
	if v := os.Getenv("RELAY_CLIENT_RETRY_BACKOFF_MAX_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Client.RetryBackoffMaxMs = n
		}
	}
}
