// Telemetry websocket server
//
// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

// Package telemetry streams control loop samples to websocket clients.
package telemetry

import (
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"nuttx-foc-go/pkg/errors"
	"nuttx-foc-go/pkg/log"
	"nuttx-foc-go/pkg/sim"
)

const (
	// DefaultQueueLen is the per-client frame queue length
	DefaultQueueLen = 64

	pingPeriod   = 30 * time.Second
	readTimeout  = 60 * time.Second
	writeTimeout = 10 * time.Second
)

// Config configures the telemetry server.
type Config struct {
	Addr string

	// Decimate sends every Nth sample (default: 1)
	Decimate int

	// QueueLen bounds the frames waiting per client (default: 64)
	QueueLen int
}

// Frame is the message sent for each forwarded sample.
type Frame struct {
	JSONRPC string        `json:"jsonrpc"`
	Method  string        `json:"method"`
	Params  []*sim.Sample `json:"params"`
}

// Server forwards samples to all connected clients. Slow clients lose
// frames instead of blocking the control loop.
type Server struct {
	cfg      Config
	upgrader websocket.Upgrader

	srvMu      sync.Mutex
	httpServer *http.Server
	stopped    bool

	clients  map[int64]*client
	clientMu sync.RWMutex
	nextID   int64

	seen    uint64
	latest  atomic.Pointer[sim.Sample]
	dropped atomic.Uint64

	logger *log.Logger
}

// New creates a server. Start serves it on cfg.Addr; Handler allows
// mounting it elsewhere.
func New(cfg Config) *Server {
	if cfg.Decimate <= 0 {
		cfg.Decimate = 1
	}
	if cfg.QueueLen <= 0 {
		cfg.QueueLen = DefaultQueueLen
	}
	return &Server{
		cfg:     cfg,
		clients: make(map[int64]*client),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger: log.GetLogger("telemetry"),
	}
}

// Handler returns the HTTP handler with the /telemetry websocket and the
// /telemetry/latest JSON endpoint.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/telemetry", s.handleWebSocket)
	mux.HandleFunc("/telemetry/latest", s.handleLatest)
	return mux
}

// Start serves until Stop is called.
func (s *Server) Start() error {
	s.srvMu.Lock()
	if s.stopped {
		s.srvMu.Unlock()
		return nil
	}
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	s.httpServer = srv
	s.srvMu.Unlock()
	s.logger.Info("telemetry server starting on %s", s.cfg.Addr)

	err := srv.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		return errors.Wrap(err, errors.ErrTelemetry, "serve").SetComponent("telemetry")
	}
	return nil
}

// Stop disconnects all clients and closes the listener.
func (s *Server) Stop() error {
	s.clientMu.Lock()
	for _, c := range s.clients {
		c.close()
	}
	s.clients = make(map[int64]*client)
	s.clientMu.Unlock()

	s.srvMu.Lock()
	defer s.srvMu.Unlock()
	s.stopped = true
	if s.httpServer != nil {
		return s.httpServer.Close()
	}
	return nil
}

// ClientCount returns the number of connected clients.
func (s *Server) ClientCount() int {
	s.clientMu.RLock()
	defer s.clientMu.RUnlock()
	return len(s.clients)
}

// Dropped returns the number of frames dropped for full client queues.
func (s *Server) Dropped() uint64 {
	return s.dropped.Load()
}

// Observe implements sim.Observer. It is called from the control loop
// and never blocks on a client.
func (s *Server) Observe(smp *sim.Sample) error {
	n := s.seen
	s.seen++
	if n%uint64(s.cfg.Decimate) != 0 {
		return nil
	}

	cp := *smp
	s.latest.Store(&cp)

	s.clientMu.RLock()
	defer s.clientMu.RUnlock()
	if len(s.clients) == 0 {
		return nil
	}
	frame := &Frame{
		JSONRPC: "2.0",
		Method:  "notify_foc_sample",
		Params:  []*sim.Sample{&cp},
	}
	for _, c := range s.clients {
		c.send(frame)
	}
	return nil
}

func (s *Server) handleLatest(w http.ResponseWriter, r *http.Request) {
	smp := s.latest.Load()
	if smp == nil {
		http.Error(w, "no sample yet", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(smp)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.WithError(err).Warn("websocket upgrade failed")
		return
	}

	c := &client{
		id:     atomic.AddInt64(&s.nextID, 1),
		conn:   conn,
		server: s,
		sendCh: make(chan *Frame, s.cfg.QueueLen),
		done:   make(chan struct{}),
	}

	s.clientMu.Lock()
	s.clients[c.id] = c
	s.clientMu.Unlock()
	s.logger.WithField("client", c.id).Info("telemetry client connected")

	go c.writePump()
	c.readPump()
}

func (s *Server) removeClient(c *client) {
	s.clientMu.Lock()
	delete(s.clients, c.id)
	s.clientMu.Unlock()
	s.logger.WithField("client", c.id).Info("telemetry client disconnected")
}

type client struct {
	id     int64
	conn   *websocket.Conn
	server *Server
	sendCh chan *Frame
	done   chan struct{}
	once   sync.Once
}

func (c *client) send(f *Frame) {
	select {
	case c.sendCh <- f:
	case <-c.done:
	default:
		c.server.dropped.Add(1)
	}
}

func (c *client) close() {
	c.once.Do(func() {
		close(c.done)
		if c.conn != nil {
			c.conn.Close()
		}
	})
}

// readPump discards incoming messages and detects disconnects.
func (c *client) readPump() {
	defer func() {
		c.server.removeClient(c)
		c.close()
	}()

	c.conn.SetReadLimit(4096)
	c.conn.SetReadDeadline(time.Now().Add(readTimeout))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(readTimeout))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.server.logger.WithError(err).Warn("telemetry read failed")
			}
			return
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case f := <-c.sendCh:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteJSON(f); err != nil {
				c.server.logger.WithError(err).Debug("telemetry write failed")
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.done:
			return
		}
	}
}
