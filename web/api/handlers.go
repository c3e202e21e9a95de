package api

import (
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/hochfrequenz/process-eta/internal/domain"
	"github.com/hochfrequenz/process-eta/internal/features"
	"github.com/hochfrequenz/process-eta/internal/processstore"
	"github.com/hochfrequenz/process-eta/internal/regression"
)

// ProcessResponse is the API response for a process record
type ProcessResponse struct {
	ID        string            `json:"id"`
	Owner     string            `json:"owner,omitempty"`
	Type      string            `json:"type"`
	Priority  string            `json:"priority"`
	Status    string            `json:"status"`
	StartTime string            `json:"start_time"`
	EndTime   *string           `json:"end_time,omitempty"`
	Duration  *float64          `json:"duration_seconds,omitempty"`
	Steps     []string          `json:"steps"`
	Retries   int               `json:"retries"`
	Automated bool              `json:"automated"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// StatusResponse is the API response for overall status
type StatusResponse struct {
	Total      int            `json:"total"`
	ByStatus   map[string]int `json:"by_status"`
	ModelState string         `json:"model_state"`
}

// CoefficientResponse is one named model weight. Weight is null when the
// fit produced a non-finite value.
type CoefficientResponse struct {
	Feature string   `json:"feature"`
	Weight  *float64 `json:"weight"`
}

// FitReportResponse is the API response for a training run
type FitReportResponse struct {
	Rows         int                   `json:"rows"`
	RSquared     *float64              `json:"r_squared"`
	RMSE         *float64              `json:"rmse_seconds"`
	TrainedAt    *string               `json:"trained_at,omitempty"`
	Coefficients []CoefficientResponse `json:"coefficients"`
}

// ModelResponse is the API response for the current model
type ModelResponse struct {
	State        string                `json:"state"`
	Finite       bool                  `json:"finite"`
	Formula      string                `json:"formula"`
	Coefficients []CoefficientResponse `json:"coefficients"`
	LastFit      *FitReportResponse    `json:"last_fit,omitempty"`
}

// ForecastRequest describes the process to forecast. If only ID is given the
// record is looked up in the store.
type ForecastRequest struct {
	ID        string   `json:"id"`
	Type      string   `json:"type"`
	Priority  string   `json:"priority"`
	StartTime string   `json:"start_time"`
	Steps     []string `json:"steps"`
	Retries   int      `json:"retries"`
	Automated bool     `json:"automated"`
}

// ForecastResponse is the API response for a forecast. ForecastSeconds and
// ETA are null when the model yields a non-finite duration.
type ForecastResponse struct {
	ID              string   `json:"id,omitempty"`
	ForecastSeconds *float64 `json:"forecast_seconds"`
	ETA             *string  `json:"eta"`
}

// finite returns nil for NaN and infinities, which JSON cannot carry
func finite(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

func processToResponse(p *domain.Process) ProcessResponse {
	resp := ProcessResponse{
		ID:        p.ID,
		Owner:     p.OwnerID,
		Type:      p.Type,
		Priority:  string(p.Priority),
		Status:    string(p.Status),
		StartTime: p.StartTime.Format(time.RFC3339),
		Steps:     p.StepsCompleted,
		Retries:   p.Retries,
		Automated: p.Automated,
		Metadata:  p.Metadata,
	}
	if resp.Steps == nil {
		resp.Steps = []string{}
	}
	if !p.EndTime.IsZero() {
		t := p.EndTime.Format(time.RFC3339)
		resp.EndTime = &t
	}
	if p.IsCompleted() {
		d := features.ElapsedSeconds(p.StartTime, p.EndTime)
		resp.Duration = &d
	}
	return resp
}

func coefficientsToResponse(c regression.Coefficients) []CoefficientResponse {
	names := features.Names()
	out := make([]CoefficientResponse, len(c))
	for i, w := range c {
		out[i] = CoefficientResponse{Feature: names[i], Weight: finite(w)}
	}
	return out
}

func fitReportToResponse(r regression.FitReport) FitReportResponse {
	resp := FitReportResponse{
		Rows:         r.Rows,
		RSquared:     finite(r.RSquared),
		RMSE:         finite(r.RMSE),
		Coefficients: coefficientsToResponse(r.Coefficients),
	}
	if !r.TrainedAt.IsZero() {
		t := r.TrainedAt.Format(time.RFC3339)
		resp.TrainedAt = &t
	}
	return resp
}

func (s *Server) statusHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}

		counts, err := s.store.CountByStatus(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}

		status := StatusResponse{
			ByStatus:   make(map[string]int, len(counts)),
			ModelState: s.trainer.Engine().State().String(),
		}
		for st, n := range counts {
			status.ByStatus[string(st)] = n
			status.Total += n
		}

		writeJSON(w, status)
	}
}

func (s *Server) modelHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}

		engine := s.trainer.Engine()
		coeffs := engine.Coefficients()
		resp := ModelResponse{
			State:        engine.State().String(),
			Finite:       coeffs.Finite(),
			Formula:      coeffs.String(),
			Coefficients: coefficientsToResponse(coeffs),
		}
		if last := s.trainer.LastReport(); !last.Skipped() {
			fit := fitReportToResponse(last)
			resp.LastFit = &fit
		}

		writeJSON(w, resp)
	}
}

func (s *Server) forecastHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}

		var req ForecastRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
			return
		}

		var p *domain.Process
		if req.StartTime == "" && req.ID != "" {
			stored, err := s.store.GetProcess(r.Context(), req.ID)
			if errors.Is(err, processstore.ErrNotFound) {
				writeError(w, http.StatusNotFound, "process not found")
				return
			}
			if err != nil {
				writeError(w, http.StatusInternalServerError, err.Error())
				return
			}
			p = stored
		} else {
			start := time.Now()
			if req.StartTime != "" {
				parsed, err := time.Parse(time.RFC3339, req.StartTime)
				if err != nil {
					writeError(w, http.StatusBadRequest, "invalid start_time: "+err.Error())
					return
				}
				start = parsed
			}
			p = &domain.Process{
				ID:             req.ID,
				Type:           req.Type,
				Priority:       domain.ParsePriority(req.Priority),
				Status:         domain.StatusInProgress,
				StartTime:      start,
				StepsCompleted: req.Steps,
				Retries:        req.Retries,
				Automated:      req.Automated,
			}
		}

		engine := s.trainer.Engine()
		resp := ForecastResponse{
			ID:              p.ID,
			ForecastSeconds: finite(engine.ForecastDuration(p)),
		}
		if resp.ForecastSeconds != nil {
			eta := engine.PredictETA(p).Format(time.RFC3339)
			resp.ETA = &eta
		}
		s.metrics.ObserveForecast()

		writeJSON(w, resp)
	}
}

func (s *Server) listProcessesHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}

		q := r.URL.Query()
		opts := processstore.ListOptions{
			Type:  q.Get("type"),
			Owner: q.Get("owner"),
		}
		if st := q.Get("status"); st != "" {
			opts.Status = domain.ParseStatus(st)
		}

		processes, err := s.store.ListProcesses(r.Context(), opts)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}

		responses := make([]ProcessResponse, len(processes))
		for i, p := range processes {
			responses[i] = processToResponse(p)
		}

		writeJSON(w, responses)
	}
}

func (s *Server) getProcessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}

		id := strings.TrimPrefix(r.URL.Path, "/api/processes/")
		if id == "" {
			writeError(w, http.StatusBadRequest, "process ID required")
			return
		}

		p, err := s.store.GetProcess(r.Context(), id)
		if errors.Is(err, processstore.ErrNotFound) {
			writeError(w, http.StatusNotFound, "process not found")
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}

		writeJSON(w, processToResponse(p))
	}
}

func (s *Server) trainHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}

		report, err := s.trainer.Reload(r.Context())
		switch {
		case errors.Is(err, regression.ErrSingularSystem), errors.Is(err, regression.ErrInsufficientSamples):
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		case err != nil:
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}

		writeJSON(w, fitReportToResponse(report))
	}
}
