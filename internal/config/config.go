package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"encoding/json"

	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration loaded from file/env.
type Config struct {
	Server   ServerConfig   `json:"server" yaml:"server"`
	Liveness LivenessConfig `json:"liveness" yaml:"liveness"`
	Limits   LimitsConfig   `json:"limits" yaml:"limits"`
	Auth     AuthConfig     `json:"auth" yaml:"auth"`
	Client   ClientConfig   `json:"client" yaml:"client"`
}

// ServerConfig holds listener addresses for the relay node.
type ServerConfig struct {
	HTTPAddr string `json:"httpAddr" yaml:"httpAddr"`
}

// LivenessConfig tunes the connection liveness monitor.
type LivenessConfig struct {
	// ProbeIntervalMs is the sweep cadence for liveness probes.
	ProbeIntervalMs int `json:"probeIntervalMs" yaml:"probeIntervalMs"`
	// DeadlineMs is how long a connection may go without a probe
	// acknowledgment before it is evicted.
	DeadlineMs int `json:"deadlineMs" yaml:"deadlineMs"`
}

// ProbeInterval returns the probe cadence as a duration.
func (l LivenessConfig) ProbeInterval() time.Duration {
	return time.Duration(l.ProbeIntervalMs) * time.Millisecond
}

// Deadline returns the ack deadline as a duration.
func (l LivenessConfig) Deadline() time.Duration {
	return time.Duration(l.DeadlineMs) * time.Millisecond
}

// LimitsConfig bounds per-connection resources.
type LimitsConfig struct {
	// MaxMessageBytes caps a single inbound frame.
	MaxMessageBytes int64 `json:"maxMessageBytes" yaml:"maxMessageBytes"`
	// SendQueueSize is the per-connection outbound buffer in events. A full
	// queue marks the recipient's delivery as dropped.
	SendQueueSize int `json:"sendQueueSize" yaml:"sendQueueSize"`
	// WriteTimeoutMs bounds a single transport write.
	WriteTimeoutMs int `json:"writeTimeoutMs" yaml:"writeTimeoutMs"`
}

// WriteTimeout returns the write timeout as a duration.
func (l LimitsConfig) WriteTimeout() time.Duration {
	return time.Duration(l.WriteTimeoutMs) * time.Millisecond
}

// AuthConfig configures the identity token validator.
type AuthConfig struct {
	// JWTSecret is the HMAC secret for the default validator. Empty means
	// the deployment wires its own validator.
	JWTSecret string `json:"jwtSecret" yaml:"jwtSecret"`
}

// ClientConfig tunes the offline action queue and reconciliation.
type ClientConfig struct {
	// MaxRetries is how many replay attempts an action gets before it is
	// dead-lettered.
	MaxRetries int `json:"maxRetries" yaml:"maxRetries"`
	// RetryBackoffMinMs is the base backoff between drain attempts.
	RetryBackoffMinMs int `json:"retryBackoffMinMs" yaml:"retryBackoffMinMs"`
	// RetryBackoffMaxMs caps the backoff.
	RetryBackoffMaxMs int `json:"retryBackoffMaxMs" yaml:"retryBackoffMaxMs"`
}

// RetryBackoffMin returns the base backoff as a duration.
func (c ClientConfig) RetryBackoffMin() time.Duration {
	return time.Duration(c.RetryBackoffMinMs) * time.Millisecond
}

// RetryBackoffMax returns the backoff cap as a duration.
func (c ClientConfig) RetryBackoffMax() time.Duration {
	return time.Duration(c.RetryBackoffMaxMs) * time.Millisecond
}

// Default returns built-in defaults.
func Default() Config {
	return Config{
		Server: ServerConfig{
			HTTPAddr: ":8080",
		},
		Liveness: LivenessConfig{
			ProbeIntervalMs: 30_000,
			DeadlineMs:      60_000,
		},
		Limits: LimitsConfig{
			MaxMessageBytes: 1 << 20,
			SendQueueSize:   256,
			WriteTimeoutMs:  10_000,
		},
		Client: ClientConfig{
			MaxRetries:        3,
			RetryBackoffMinMs: 200,
			RetryBackoffMaxMs: 30_000,
		},
	}
}

// Load reads configuration from a JSON or YAML file (by extension). If path
// is empty, returns defaults.
func Load(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	cfg := Default()
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	default:
		if err := json.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	return cfg, nil
}
