package httpserver

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"time"

	"github.com/Chriisy/Myhrvoldgruppen-sub000/internal/registry"
	"github.com/Chriisy/Myhrvoldgruppen-sub000/internal/runtime"
	messagesvc "github.com/Chriisy/Myhrvoldgruppen-sub000/internal/services/messages"
	logpkg "github.com/Chriisy/Myhrvoldgruppen-sub000/pkg/log"
)

// Options configures the HTTP server.
type Options struct {
	Runtime  *runtime.Runtime
	Registry *registry.Registry
	Service  *messagesvc.Service
	// WS handles relay connection upgrades, mounted at /ws.
	WS http.Handler
	// Metrics is mounted at /metrics when non-nil.
	Metrics http.Handler
	Logger  logpkg.Logger
}

// Server is the node's HTTP surface: the WebSocket endpoint plus a small
// ops API (health, stats, server-side publish).
type Server struct {
	rt  *runtime.Runtime
	reg *registry.Registry
	svc *messagesvc.Service
	log logpkg.Logger
	srv *http.Server
	lis net.Listener
}

func New(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = logpkg.NewLogger(logpkg.WithLevel(logpkg.InfoLevel))
	}
	mux := http.NewServeMux()
	s := &Server{
		rt:  opts.Runtime,
		reg: opts.Registry,
		svc: opts.Service,
		log: logger.WithComponent("http"),
		srv: &http.Server{Handler: cors(mux)},
	}
	mux.HandleFunc("/v1/healthz", s.handleHealth)
	mux.HandleFunc("/v1/stats", s.handleStats)
	mux.HandleFunc("/v1/channels/publish", s.handlePublish)
	if opts.WS != nil {
		mux.Handle("/ws", opts.WS)
	}
	if opts.Metrics != nil {
		mux.Handle("/metrics", opts.Metrics)
	}
	return s
}

// Handler exposes the root handler for tests.
func (s *Server) Handler() http.Handler { return s.srv.Handler }

func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.lis = l
	s.log.Infof("listening on %s", l.Addr())
	errCh := make(chan error, 1)
	go func() { errCh <- s.srv.Serve(l) }()
	select {
	case <-ctx.Done():
		cctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.srv.Shutdown(cctx)
		return nil
	case err := <-errCh:
		return err
	}
}

func (s *Server) Close() {
	if s.lis != nil {
		_ = s.lis.Close()
	}
}

func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.rt.CheckHealth(r.Context()); err != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "not_serving"})
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(s.reg.Snapshot())
}

type publishReq struct {
	Channel string          `json:"channel"`
	Sender  string          `json:"sender"`
	Data    json.RawMessage `json:"data"`
}

type publishResp struct {
	Queued   int `json:"queued"`
	Dropped  int `json:"dropped"`
	Filtered int `json:"filtered"`
}

// handlePublish injects a server-originated message into a channel. Used by
// backend jobs that need to reach live subscribers without a relay session.
func (s *Server) handlePublish(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req publishReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	if req.Channel == "" {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	sender := req.Sender
	if sender == "" {
		sender = "system"
	}
	var resp publishResp
	for _, d := range s.svc.Broadcast(req.Channel, sender, req.Data) {
		switch d.Status {
		case registry.StatusQueued:
			resp.Queued++
		case registry.StatusDropped:
			resp.Dropped++
		case registry.StatusFiltered:
			resp.Filtered++
		}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(resp)
}
