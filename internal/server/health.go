// Package server provides the cleaner daemon's HTTP health and metrics
// endpoint.
package server

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dray-io/cleaner/internal/logging"
)

// HealthServer serves /healthz for liveness probes and any extra
// handlers registered before Start (typically promhttp.Handler at
// /metrics).
type HealthServer struct {
	mu            sync.RWMutex
	addr          string
	boundAddr     string
	server        *http.Server
	logger        *logging.Logger
	shuttingDown  atomic.Bool
	goroutines    map[string]*goroutineStatus
	extraHandlers map[string]http.Handler
}

type goroutineStatus struct {
	running   bool
	lastCheck time.Time
}

// HealthStatus is the /healthz response body.
type HealthStatus struct {
	Status     string          `json:"status"`
	Goroutines map[string]bool `json:"goroutines,omitempty"`
}

// NewHealthServer creates a HealthServer bound to addr once Start is
// called. logger may be nil.
func NewHealthServer(addr string, logger *logging.Logger) *HealthServer {
	if logger == nil {
		logger = logging.DefaultLogger()
	}
	return &HealthServer{
		addr:          addr,
		logger:        logger,
		goroutines:    make(map[string]*goroutineStatus),
		extraHandlers: make(map[string]http.Handler),
	}
}

// RegisterHandler mounts handler at pattern. Call before Start.
func (h *HealthServer) RegisterHandler(pattern string, handler http.Handler) {
	if pattern == "" || handler == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.extraHandlers[pattern] = handler
}

// RegisterGoroutine marks name as a critical goroutine to report on in
// /healthz. Call when the goroutine starts.
func (h *HealthServer) RegisterGoroutine(name string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.goroutines[name] = &goroutineStatus{running: true, lastCheck: time.Now()}
}

// UnregisterGoroutine marks name as stopped.
func (h *HealthServer) UnregisterGoroutine(name string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if s, ok := h.goroutines[name]; ok {
		s.running = false
	}
}

// SetShuttingDown causes subsequent /healthz requests to return 503.
func (h *HealthServer) SetShuttingDown() {
	h.shuttingDown.Store(true)
}

// Start binds addr and begins serving in the background.
func (h *HealthServer) Start() error {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", h.handleHealthz)

	h.mu.RLock()
	extra := make(map[string]http.Handler, len(h.extraHandlers))
	for pattern, handler := range h.extraHandlers {
		extra[pattern] = handler
	}
	h.mu.RUnlock()
	for pattern, handler := range extra {
		mux.Handle(pattern, handler)
	}

	h.server = &http.Server{
		Addr:         h.addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	ln, err := net.Listen("tcp", h.addr)
	if err != nil {
		return err
	}

	h.mu.Lock()
	h.boundAddr = ln.Addr().String()
	h.mu.Unlock()

	h.logger.Infof("health server listening", map[string]any{"addr": ln.Addr().String()})

	go func() {
		if err := h.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			h.logger.Errorf("health server error", map[string]any{"error": err.Error()})
		}
	}()

	return nil
}

// Addr returns the bound address, or the configured address if Start
// has not run yet.
func (h *HealthServer) Addr() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.boundAddr != "" {
		return h.boundAddr
	}
	return h.addr
}

// Close shuts the server down gracefully.
func (h *HealthServer) Close() error {
	if h.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return h.server.Shutdown(ctx)
}

func (h *HealthServer) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	status := h.checkLiveness()
	w.Header().Set("Content-Type", "application/json")
	if status.Status != "ok" {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	if r.Method == http.MethodGet {
		_ = json.NewEncoder(w).Encode(status)
	}
}

func (h *HealthServer) checkLiveness() HealthStatus {
	if h.shuttingDown.Load() {
		return HealthStatus{Status: "shutting_down"}
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	goroutines := make(map[string]bool, len(h.goroutines))
	allRunning := true
	for name, s := range h.goroutines {
		goroutines[name] = s.running
		if !s.running {
			allRunning = false
		}
	}

	status := "ok"
	if !allRunning {
		status = "degraded"
	}
	return HealthStatus{Status: status, Goroutines: goroutines}
}
