package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/hochfrequenz/process-eta/internal/domain"
	"github.com/hochfrequenz/process-eta/internal/metrics"
	"github.com/hochfrequenz/process-eta/internal/processstore"
	"github.com/hochfrequenz/process-eta/internal/regression"
	"github.com/hochfrequenz/process-eta/internal/retrain"
)

// Store interface for database operations
type Store interface {
	ListProcesses(ctx context.Context, opts processstore.ListOptions) ([]*domain.Process, error)
	GetProcess(ctx context.Context, id string) (*domain.Process, error)
	CountByStatus(ctx context.Context) (map[domain.Status]int, error)
}

// Server is the HTTP API server
type Server struct {
	store   Store
	trainer *retrain.Trainer
	metrics *metrics.Metrics
	logger  *slog.Logger
	addr    string
	mux     *http.ServeMux
	sseHub  *SSEHub
}

// NewServer creates a new API server. Training outcomes of trainer are
// recorded in m and pushed to SSE clients.
func NewServer(store Store, trainer *retrain.Trainer, m *metrics.Metrics, logger *slog.Logger, addr string) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		store:   store,
		trainer: trainer,
		metrics: m,
		logger:  logger,
		addr:    addr,
		mux:     http.NewServeMux(),
		sseHub:  NewSSEHub(),
	}
	trainer.OnTrained(s.onTrained)
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/api/status", s.statusHandler())
	s.mux.HandleFunc("/api/model", s.modelHandler())
	s.mux.HandleFunc("/api/forecast", s.forecastHandler())
	s.mux.HandleFunc("/api/processes", s.listProcessesHandler())
	s.mux.HandleFunc("/api/processes/", s.getProcessHandler())
	s.mux.HandleFunc("/api/train", s.trainHandler())
	s.mux.HandleFunc("/api/events", s.sseHandler())
	s.mux.Handle("/metrics", s.metrics.Handler())
}

// Handler returns the root handler
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Start serves HTTP until ctx is cancelled, then shuts down gracefully
func (s *Server) Start(ctx context.Context) error {
	go s.sseHub.Run()
	defer s.sseHub.Close()

	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", s.addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Broadcast sends an event to all SSE clients
func (s *Server) Broadcast(event SSEEvent) {
	s.sseHub.Broadcast(event)
}

func (s *Server) onTrained(report regression.FitReport, err error) {
	s.metrics.ObserveTrain(report, err)
	if err != nil || report.Skipped() {
		return
	}
	s.Broadcast(SSEEvent{Type: EventModelTrained, Data: fitReportToResponse(report)})
}

// writeJSON encodes data before touching the response so that an encoding
// failure still reaches the client as a 500
func writeJSON(w http.ResponseWriter, data interface{}) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(data); err != nil {
		slog.Error("encoding response", "error", err)
		writeError(w, http.StatusInternalServerError, "encoding response: "+err.Error())
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(buf.Bytes())
}

func writeError(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
