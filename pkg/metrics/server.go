// HTTP endpoint for Prometheus scraping
//
//	m := metrics.NewFOCMetrics()
//	srv := metrics.NewMetricsServer(m, ":9100")
//	errCh := srv.StartAsync()
//	defer srv.Shutdown(context.Background())
//
// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package metrics

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strconv"
	"sync"
	"time"

	"nuttx-foc-go/pkg/errors"
	"nuttx-foc-go/pkg/log"
)

// MetricsServerConfig configures the metrics server.
type MetricsServerConfig struct {
	// Address to listen on, e.g. ":9100"
	Address string

	// Optional basic auth credentials
	Username string
	Password string

	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultMetricsServerConfig returns the default server configuration.
func DefaultMetricsServerConfig() MetricsServerConfig {
	return MetricsServerConfig{
		Address:      ":9100",
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
}

// MetricsServer serves /metrics, /health and /ready.
type MetricsServer struct {
	m      *FOCMetrics
	cfg    MetricsServerConfig
	server *http.Server
	mux    *http.ServeMux

	mu        sync.RWMutex
	running   bool
	startTime time.Time

	logger *log.Logger
}

// NewMetricsServer creates a server on addr with default timeouts.
func NewMetricsServer(m *FOCMetrics, addr string) *MetricsServer {
	cfg := DefaultMetricsServerConfig()
	cfg.Address = addr
	return NewMetricsServerWithConfig(m, cfg)
}

// NewMetricsServerWithConfig creates a server with cfg.
func NewMetricsServerWithConfig(m *FOCMetrics, cfg MetricsServerConfig) *MetricsServer {
	ms := &MetricsServer{
		m:      m,
		cfg:    cfg,
		mux:    http.NewServeMux(),
		logger: log.GetLogger("metrics"),
	}
	ms.mux.HandleFunc("/metrics", ms.handleMetrics)
	ms.mux.HandleFunc("/health", ms.handleHealth)
	ms.mux.HandleFunc("/ready", ms.handleReady)

	ms.server = &http.Server{
		Addr:         cfg.Address,
		Handler:      ms.mux,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return ms
}

// Start serves until Shutdown.
func (ms *MetricsServer) Start() error {
	ms.mu.Lock()
	ms.running = true
	ms.startTime = time.Now()
	ms.mu.Unlock()

	ms.logger.Info("metrics server listening on %s", ms.cfg.Address)
	err := ms.server.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		ms.mu.Lock()
		ms.running = false
		ms.mu.Unlock()
		return errors.Wrap(err, errors.ErrTelemetry, "metrics server").SetComponent("metrics")
	}
	return nil
}

// StartAsync runs Start in a goroutine. The channel yields its error, if
// any, and is closed when the server stops.
func (ms *MetricsServer) StartAsync() <-chan error {
	errCh := make(chan error, 1)
	go func() {
		if err := ms.Start(); err != nil {
			errCh <- err
		}
		close(errCh)
	}()
	return errCh
}

// Shutdown stops the server gracefully.
func (ms *MetricsServer) Shutdown(ctx context.Context) error {
	ms.mu.Lock()
	ms.running = false
	ms.mu.Unlock()
	return ms.server.Shutdown(ctx)
}

// IsRunning reports whether Start has been called and not shut down.
func (ms *MetricsServer) IsRunning() bool {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	return ms.running
}

// Address returns the configured listen address.
func (ms *MetricsServer) Address() string {
	return ms.cfg.Address
}

// Status returns diagnostics for logging.
func (ms *MetricsServer) Status() map[string]any {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	status := map[string]any{
		"address": ms.cfg.Address,
		"running": ms.running,
	}
	if ms.running {
		status["uptime"] = time.Since(ms.startTime).Seconds()
	}
	return status
}

func (ms *MetricsServer) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if !ms.checkAuth(w, r) {
		return
	}
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	out := ms.m.Gather()
	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
	w.Header().Set("Content-Length", strconv.Itoa(len(out)))
	if r.Method == http.MethodHead {
		return
	}
	_, _ = w.Write([]byte(out))
}

func (ms *MetricsServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = w.Write([]byte("OK\n"))
}

func (ms *MetricsServer) handleReady(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	if !ms.IsRunning() {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("Not Ready\n"))
		return
	}
	_, _ = w.Write([]byte("Ready\n"))
}

func (ms *MetricsServer) checkAuth(w http.ResponseWriter, r *http.Request) bool {
	if ms.cfg.Username == "" && ms.cfg.Password == "" {
		return true
	}
	user, pass, ok := r.BasicAuth()
	if ok &&
		subtle.ConstantTimeCompare([]byte(user), []byte(ms.cfg.Username)) == 1 &&
		subtle.ConstantTimeCompare([]byte(pass), []byte(ms.cfg.Password)) == 1 {
		return true
	}
	w.Header().Set("WWW-Authenticate", `Basic realm="FOC Metrics"`)
	http.Error(w, "Unauthorized", http.StatusUnauthorized)
	return false
}
