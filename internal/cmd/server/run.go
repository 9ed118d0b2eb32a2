package serverrun

import (
	"context"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/Chriisy/Myhrvoldgruppen-sub000/internal/auth"
	cfgpkg "github.com/Chriisy/Myhrvoldgruppen-sub000/internal/config"
	"github.com/Chriisy/Myhrvoldgruppen-sub000/internal/metrics"
	"github.com/Chriisy/Myhrvoldgruppen-sub000/internal/registry"
	"github.com/Chriisy/Myhrvoldgruppen-sub000/internal/runtime"
	httpserver "github.com/Chriisy/Myhrvoldgruppen-sub000/internal/server/http"
	wsserver "github.com/Chriisy/Myhrvoldgruppen-sub000/internal/server/ws"
	messagesvc "github.com/Chriisy/Myhrvoldgruppen-sub000/internal/services/messages"
	pebblestore "github.com/Chriisy/Myhrvoldgruppen-sub000/internal/storage/pebble"
	logpkg "github.com/Chriisy/Myhrvoldgruppen-sub000/pkg/log"
)

func getenvDefault(key, def string) string {
	if v := getenv(key); v != "" {
		return v
	}
	return def
}

// small wrapper to allow testing; replaced by os.Getenv at build time
var getenv = func(key string) string { return os.Getenv(key) }

type Options struct {
	DataDir       string
	HTTPAddr      string
	Fsync         pebblestore.FsyncMode
	FsyncInterval time.Duration
	Config        cfgpkg.Config
}

// Run starts the relay node and blocks until ctx is cancelled.
func Run(ctx context.Context, opts Options) error {
	// Be robust to callers that don't pass a signal-aware context.
	sctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	if opts.DataDir == "" {
		opts.DataDir = cfgpkg.DefaultDataDir()
	}
	if opts.HTTPAddr == "" {
		opts.HTTPAddr = opts.Config.Server.HTTPAddr
	}

	// Build process-wide logger; defaults: level=info, format=text
	cfg := &logpkg.Config{
		Level:  getenvDefault("RELAY_LOG_LEVEL", "info"),
		Format: getenvDefault("RELAY_LOG_FORMAT", "text"),
	}
	procLogger, err := logpkg.ApplyConfig(cfg)
	if err != nil {
		lvl := logpkg.InfoLevel
		if l, e := logpkg.ParseLevel(cfg.Level); e == nil {
			lvl = l
		}
		procLogger = logpkg.NewLogger(logpkg.WithLevel(lvl), logpkg.WithFormatter(&logpkg.TextFormatter{}))
	}

	// Redirect stdlib logs (e.g., Pebble) to our logger
	logpkg.RedirectStdLog(procLogger)

	m := metrics.New()

	storeDir := filepath.Join(opts.DataDir, "store")
	rt, err := runtime.Open(runtime.Options{
		DataDir:       storeDir,
		Fsync:         opts.Fsync,
		FsyncInterval: opts.FsyncInterval,
		Metrics:       m,
		Config:        opts.Config,
	})
	if err != nil {
		return err
	}
	defer rt.Close()

	var validator auth.TokenValidator
	if secret := opts.Config.Auth.JWTSecret; secret != "" {
		validator = auth.NewJWTValidator(secret)
	} else {
		procLogger.Warn("no JWT secret configured, accepting any non-empty token as the user id")
		validator = auth.InsecureValidator{}
	}

	procLogger.Info("Starting relay server",
		logpkg.Str("http", opts.HTTPAddr),
		logpkg.Str("data_dir", opts.DataDir),
		logpkg.Str("level", cfg.Level),
		logpkg.Str("format", cfg.Format),
		logpkg.Dur("probe_interval", opts.Config.Liveness.ProbeInterval()),
		logpkg.Dur("deadline", opts.Config.Liveness.Deadline()),
	)

	reg := registry.New(registry.Options{
		ProbeInterval: opts.Config.Liveness.ProbeInterval(),
		Deadline:      opts.Config.Liveness.Deadline(),
		Logger:        procLogger,
		Metrics:       m,
	})
	svc := messagesvc.New(messagesvc.Options{Registry: reg, DB: rt.DB(), Logger: procLogger})
	wsHandler := wsserver.NewHandler(wsserver.Options{
		Registry:  reg,
		Service:   svc,
		Validator: validator,
		Config:    opts.Config,
		Logger:    procLogger,
	})
	hsrv := httpserver.New(httpserver.Options{
		Runtime:  rt,
		Registry: reg,
		Service:  svc,
		WS:       wsHandler,
		Metrics:  m.Handler(),
		Logger:   procLogger,
	})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		reg.RunMonitor(sctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := hsrv.ListenAndServe(sctx, opts.HTTPAddr); err != nil && sctx.Err() == nil {
			log.Printf("http error: %v", err)
		}
	}()

	<-sctx.Done()
	// Shut the HTTP surface down before closing the runtime/DB to avoid races.
	hsrv.Close()
	wg.Wait()
	return nil
}
