// Package server exposes a Manager to local agent processes over a
// WebSocket, with health and Prometheus endpoints alongside.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/becomeliminal/nim-memory/memory"
)

// Frame operations.
const (
	OpMemorize = "memorize"
	OpRecall   = "recall"
	OpForget   = "forget"
)

// Request is a client frame. Fields beyond ID and Op depend on the
// operation.
type Request struct {
	ID string `json:"id,omitempty"`
	Op string `json:"op"`

	// memorize
	Content  string          `json:"content,omitempty"`
	Category string          `json:"category,omitempty"`
	Metadata memory.Metadata `json:"metadata,omitempty"`

	// recall
	Query     string        `json:"query,omitempty"`
	Filter    memory.Filter `json:"filter,omitempty"`
	K         *int          `json:"k,omitempty"`
	Threshold *float64      `json:"threshold,omitempty"`
}

// Response answers exactly one Request and echoes its ID.
type Response struct {
	ID     string      `json:"id"`
	Op     string      `json:"op"`
	Result interface{} `json:"result,omitempty"`
	Error  string      `json:"error,omitempty"`
}

// Config configures the server.
type Config struct {
	// Addr to listen on. Default: "127.0.0.1:7077"
	Addr string

	// RequestTimeout bounds each frame's work. Default: 30s
	RequestTimeout time.Duration

	// Gatherer backs /metrics. Default: prometheus.DefaultGatherer
	Gatherer prometheus.Gatherer

	// Health reports storage reachability for /health. Optional.
	Health func(ctx context.Context) error

	Logger *slog.Logger
}

// Server serves a single Manager.
type Server struct {
	manager  *memory.Manager
	cfg      Config
	logger   *slog.Logger
	upgrader websocket.Upgrader
}

// New creates a server for manager.
func New(manager *memory.Manager, cfg Config) *Server {
	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1:7077"
	}
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = 30 * time.Second
	}
	if cfg.Gatherer == nil {
		cfg.Gatherer = prometheus.DefaultGatherer
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Server{
		manager: manager,
		cfg:     cfg,
		logger:  cfg.Logger.With("component", "server"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
	}
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.Handle("/metrics", promhttp.HandlerFor(s.cfg.Gatherer, promhttp.HandlerOpts{}))
	mux.HandleFunc("/ws", s.handleWebSocket)
	return mux
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", s.cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.logger.Info("shutting down")
	return srv.Shutdown(shutdownCtx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if s.cfg.Health != nil {
		if err := s.cfg.Health(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(map[string]string{"status": "unavailable", "error": err.Error()})
			return
		}
	}
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()
	conn.SetReadLimit(1 << 20)

	connID := uuid.New().String()
	logger := s.logger.With("conn", connID)
	logger.Debug("client connected", "remote", r.RemoteAddr)

	var writeMu sync.Mutex
	for {
		var req Request
		if err := conn.ReadJSON(&req); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Warn("read failed", "error", err)
			}
			return
		}
		if req.ID == "" {
			req.ID = uuid.New().String()
		}

		resp := s.Handle(r.Context(), &req)

		writeMu.Lock()
		err := conn.WriteJSON(resp)
		writeMu.Unlock()
		if err != nil {
			logger.Warn("write failed", "error", err)
			return
		}
	}
}

// Handle executes one request under the configured timeout.
func (s *Server) Handle(ctx context.Context, req *Request) *Response {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.RequestTimeout)
	defer cancel()

	resp := &Response{ID: req.ID, Op: req.Op}
	switch req.Op {
	case OpMemorize:
		opts := []memory.MemorizeOption{memory.WithMetadata(req.Metadata)}
		if req.Category != "" {
			opts = append(opts, memory.WithCategory(req.Category))
		}
		res := s.manager.Memorize(ctx, req.Content, opts...)
		resp.Result, resp.Error = res, res.Error

	case OpRecall:
		opts := []memory.RecallOption{memory.WithFilter(req.Filter)}
		if req.K != nil {
			opts = append(opts, memory.WithK(*req.K))
		}
		if req.Threshold != nil {
			opts = append(opts, memory.WithThreshold(*req.Threshold))
		}
		res := s.manager.Recall(ctx, req.Query, opts...)
		resp.Result, resp.Error = res, res.Error

	case OpForget:
		res := s.manager.Forget(ctx)
		resp.Result, resp.Error = res, res.Error

	default:
		resp.Error = fmt.Sprintf("unknown op %q", req.Op)
	}
	return resp
}
