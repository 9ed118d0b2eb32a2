package client

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"unicode/utf8"

	clientpkg "github.com/Chriisy/Myhrvoldgruppen-sub000/internal/client"
	"github.com/Chriisy/Myhrvoldgruppen-sub000/internal/client/outbox"
	cfgpkg "github.com/Chriisy/Myhrvoldgruppen-sub000/internal/config"
	pebblestore "github.com/Chriisy/Myhrvoldgruppen-sub000/internal/storage/pebble"
	logpkg "github.com/Chriisy/Myhrvoldgruppen-sub000/pkg/log"
)

// BaseURLFunc supplies the relay HTTP base URL, e.g. http://127.0.0.1:8080.
type BaseURLFunc func() string

// relayURLFromEnv returns the WebSocket endpoint from RELAY_WS or a default.
func relayURLFromEnv() string {
	if v := os.Getenv("RELAY_WS"); v != "" {
		return v
	}
	return "ws://127.0.0.1:8080/ws"
}

func tokenFromEnv() string { return os.Getenv("RELAY_TOKEN") }

// clientDataDir is where the client keeps its durable outbox.
func clientDataDir(flag string) string {
	if flag != "" {
		return flag
	}
	return filepath.Join(cfgpkg.DefaultDataDir(), "client")
}

func openClientStore(dir string) (*pebblestore.DB, error) {
	return pebblestore.Open(pebblestore.Options{DataDir: dir, Fsync: pebblestore.FsyncModeAlways})
}

func cliLogger() logpkg.Logger {
	return logpkg.NewLogger(
		logpkg.WithLevel(logpkg.WarnLevel),
		logpkg.WithFormatter(&logpkg.TextFormatter{}),
		logpkg.WithOutput(logpkg.NewConsoleOutput()),
	)
}

func openSession(url, token, dataDir string, onEvent clientpkg.EventFunc) (*clientpkg.Session, *pebblestore.DB, error) {
	db, err := openClientStore(dataDir)
	if err != nil {
		return nil, nil, err
	}
	s, err := clientpkg.NewSession(clientpkg.SessionOptions{
		URL:     url,
		Token:   token,
		DB:      db,
		OnEvent: onEvent,
		Config:  cfgpkg.Default().Client,
		Logger:  cliLogger(),
	})
	if err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	return s, db, nil
}

// printAction renders one outbox action with its payload decoded as JSON or
// text where possible.
func printAction(a outbox.Action) {
	out := map[string]any{
		"seq":        a.Seq,
		"actionId":   a.ID,
		"retries":    a.Retries,
		"enqueuedMs": a.EnqueuedMs,
	}
	if a.LastError != "" {
		out["lastError"] = a.LastError
	}
	switch {
	case len(a.Payload) > 0 && (a.Payload[0] == '{' || a.Payload[0] == '['):
		var v any
		if json.Unmarshal(a.Payload, &v) == nil {
			out["payload"] = v
			break
		}
		fallthrough
	case utf8.Valid(a.Payload):
		out["payloadText"] = string(a.Payload)
	default:
		out["payloadBytes"] = len(a.Payload)
	}
	b, _ := json.Marshal(out)
	fmt.Println(string(b))
}
