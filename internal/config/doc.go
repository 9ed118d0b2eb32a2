// Package config provides loading and environment overlay for relay runtime
// configuration. It exposes a Default() baseline, file loading in JSON or
// YAML, and a RELAY_* environment overlay.
//
// Example:
//
//	cfg := config.Default()
//	if fileCfg, err := config.Load("/etc/relay.yaml"); err == nil {
//	    cfg = fileCfg
//	}
//	config.FromEnv(&cfg)
package config
