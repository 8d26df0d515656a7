// Package server exposes the watcher's job view over HTTP and websockets.
package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/raphaelgruber/flinkwatch/internal/flink"
	"github.com/raphaelgruber/flinkwatch/internal/metrics"
	"github.com/raphaelgruber/flinkwatch/internal/service"
)

const (
	defaultPingInterval = 10 * time.Second
	writeWait           = 5 * time.Second
)

// JobView is the read side of the watcher. *service.Watcher satisfies it.
type JobView interface {
	Latest() []flink.Job
	Get(jid string) (flink.Job, bool)
	Subscribe() (<-chan service.Change, func())
}

// Server serves the HTTP API.
type Server struct {
	jobs         JobView
	metrics      *metrics.Collector
	logger       *slog.Logger
	upgrader     websocket.Upgrader
	pingInterval time.Duration
}

// New creates a server backed by the given job view. collector may be nil.
func New(jobs JobView, collector *metrics.Collector, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		jobs:    jobs,
		metrics: collector,
		logger:  logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // dashboards are served from other origins
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		pingInterval: defaultPingInterval,
	}
}

// SetPingInterval changes how often websocket clients are pinged.
func (s *Server) SetPingInterval(d time.Duration) {
	if d > 0 {
		s.pingInterval = d
	}
}

// Handler returns the routed handler wrapped in request logging.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	})
	mux.HandleFunc("GET /jobs", s.handleJobs)
	mux.HandleFunc("GET /jobs/{jid}", s.handleJob)
	mux.HandleFunc("GET /stats", s.handleStats)
	mux.HandleFunc("GET /ws", s.handleWS)

	return LoggingMiddleware(s.logger)(mux)
}

func (s *Server) handleJobs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.jobs.Latest())
}

func (s *Server) handleJob(w http.ResponseWriter, r *http.Request) {
	jid := r.PathValue("jid")
	job, ok := s.jobs.Get(jid)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "job not found: " + jid})
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.metrics.Snapshot())
}

// handleWS streams every change as a JSON text message until the client goes away.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	// Subscribe before the handshake completes so no change after it is missed.
	changes, cancel := s.jobs.Subscribe()
	defer cancel()

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the error response
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	// Reading is required to process control frames; any error means the peer is gone.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(s.pingInterval)
	defer ping.Stop()

	s.logger.Debug("websocket client connected", "remote", r.RemoteAddr)
	for {
		select {
		case <-closed:
			s.logger.Debug("websocket client disconnected", "remote", r.RemoteAddr)
			return
		case <-r.Context().Done():
			return
		case change, ok := <-changes:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(change); err != nil {
				s.logger.Debug("websocket write failed", "error", err)
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("failed to write response", "error", err)
	}
}
