// Package web serves a read-only JSON API over the bot's records and a live SSE stream of events.
package web

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/vadiminshakov/asterbot/internal/domain"
	"github.com/vadiminshakov/asterbot/internal/events"
	"github.com/vadiminshakov/asterbot/internal/monitor"
	"github.com/vadiminshakov/asterbot/internal/services/risk"
)

const (
	defaultLimit      = 50
	maxLimit          = 500
	heartbeatInterval = 30 * time.Second
)

type recordReader interface {
	Recent(ctx context.Context, kind domain.RecordKind, limit int) ([]domain.StoredRecord, error)
	CurrentPosition(ctx context.Context) (*domain.PositionRecord, error)
}

type statusSource interface {
	Status() risk.Status
}

// StatusResponse is the body of /api/status.
type StatusResponse struct {
	Risk risk.Status         `json:"risk"`
	API  monitor.HealthStats `json:"api"`
}

// Server exposes HTTP endpoints over the record store and the event stream.
type Server struct {
	Addr    string
	records recordReader
	status  statusSource
	events  *events.Broadcaster
	metrics *monitor.Metrics
	logger  *zap.Logger
}

// NewServer creates a new web server instance.
func NewServer(addr string, logger *zap.Logger, records recordReader, status statusSource, b *events.Broadcaster, metrics *monitor.Metrics) *Server {
	return &Server{
		Addr:    addr,
		records: records,
		status:  status,
		events:  b,
		metrics: metrics,
		logger:  logger,
	}
}

// Handler returns the routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("GET /api/records/{kind}", s.handleRecords)
	mux.HandleFunc("GET /api/position", s.handlePosition)
	mux.HandleFunc("GET /events/stream", s.handleStream)

	return mux
}

// Start runs the HTTP server (blocking) and shuts it down when ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	s.logger.Info("web api listening", zap.String("addr", s.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "web server")
	}

	return nil
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, StatusResponse{
		Risk: s.status.Status(),
		API:  s.metrics.Health(),
	})
}

func (s *Server) handleRecords(w http.ResponseWriter, r *http.Request) {
	kind := domain.RecordKind(r.PathValue("kind"))
	if !kind.Valid() {
		http.Error(w, fmt.Sprintf("unknown record kind %q", kind), http.StatusNotFound)
		return
	}

	limit := defaultLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = min(n, maxLimit)
	}

	recs, err := s.records.Recent(r.Context(), kind, limit)
	if err != nil {
		s.logger.Error("failed to read records", zap.String("kind", string(kind)), zap.Error(err))
		http.Error(w, "failed to read records", http.StatusInternalServerError)
		return
	}
	if recs == nil {
		recs = []domain.StoredRecord{}
	}

	s.writeJSON(w, http.StatusOK, recs)
}

func (s *Server) handlePosition(w http.ResponseWriter, r *http.Request) {
	pos, err := s.records.CurrentPosition(r.Context())
	if err != nil {
		s.logger.Error("failed to read position", zap.Error(err))
		http.Error(w, "failed to read position", http.StatusInternalServerError)
		return
	}
	if pos == nil {
		http.Error(w, "no position recorded", http.StatusNotFound)
		return
	}

	s.writeJSON(w, http.StatusOK, pos)
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := s.events.Subscribe()
	defer s.events.Unsubscribe(ch)

	// comment heartbeat keeps proxies from closing an idle stream
	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			fmt.Fprintf(w, ": ping\n\n")
			flusher.Flush()
		case e, ok := <-ch:
			if !ok {
				return
			}
			payload, err := json.Marshal(e)
			if err != nil {
				s.logger.Warn("failed to encode event", zap.String("event", e.Name), zap.Error(err))
				continue
			}
			fmt.Fprintf(w, "event: %s\n", e.Name)
			fmt.Fprintf(w, "data: %s\n\n", payload)
			flusher.Flush()
		}
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("failed to write response", zap.Error(err))
	}
}
