package regression

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hochfrequenz/process-eta/internal/domain"
	"github.com/hochfrequenz/process-eta/internal/features"
)

// ErrInsufficientSamples is returned when WithMinSamples is set and too few
// completed records are available.
var ErrInsufficientSamples = errors.New("model fit failed: insufficient completed records")

// Engine holds the historical records and the current model coefficients.
type Engine struct {
	mu      sync.RWMutex
	records []*domain.Process
	coeffs  Coefficients
	state   State

	pivotTolerance float64
	minSamples     int
	now            func() time.Time
}

// New creates an untrained Engine.
func New(opts ...Option) *Engine {
	e := &Engine{now: time.Now}
	for _, opt := range opts {
		opt(e)
	}

	return e
}

// AddRecord appends a historical record. Records are not validated; odd
// values just make the model less useful.
func (e *Engine) AddRecord(p *domain.Process) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.records = append(e.records, p)
}

// AddRecords appends several historical records.
func (e *Engine) AddRecords(ps []*domain.Process) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.records = append(e.records, ps...)
}

// Len returns the number of records held, whatever their status.
func (e *Engine) Len() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.records)
}

// Records returns a copy of the record slice. The records themselves are shared.
func (e *Engine) Records() []*domain.Process {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make([]*domain.Process, len(e.records))
	copy(out, e.records)
	return out
}

// Train fits the model on all COMPLETED records and replaces the coefficients.
//
// With no completed records it does nothing and returns a report with Rows == 0
// and a nil error. A failed fit (only possible with WithPivotTolerance or
// WithMinSamples) leaves the previous coefficients in place.
func (e *Engine) Train() (FitReport, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	rows, targets := e.trainingSet()
	if len(rows) == 0 {
		return FitReport{Coefficients: e.coeffs}, nil
	}

	if e.minSamples > 0 && len(rows) < e.minSamples {
		return FitReport{Rows: len(rows), Coefficients: e.coeffs},
			fmt.Errorf("%w: have %d, need %d", ErrInsufficientSamples, len(rows), e.minSamples)
	}

	gram, moment := normalEquations(rows, targets)
	w, err := Solve(gram, moment, e.pivotTolerance)
	if err != nil {
		return FitReport{Rows: len(rows), Coefficients: e.coeffs}, err
	}

	e.coeffs = Coefficients(w)
	e.state = Trained

	r2, rmse := goodnessOfFit(e.coeffs, rows, targets)
	return FitReport{
		Rows:         len(rows),
		Coefficients: e.coeffs,
		RSquared:     r2,
		RMSE:         rmse,
		TrainedAt:    e.now(),
	}, nil
}

// trainingSet builds feature rows and elapsed-second targets from the
// completed records. Caller must hold the lock.
func (e *Engine) trainingSet() ([]features.Vector, []float64) {
	var rows []features.Vector
	var targets []float64

	for _, p := range e.records {
		if !p.IsCompleted() {
			continue
		}
		rows = append(rows, features.Extract(p))
		targets = append(targets, features.ElapsedSeconds(p.StartTime, p.EndTime))
	}

	return rows, targets
}

// ForecastDuration returns the predicted duration of p in seconds. It is 0
// for an untrained engine.
func (e *Engine) ForecastDuration(p *domain.Process) float64 {
	e.mu.RLock()
	c := e.coeffs
	e.mu.RUnlock()

	return c.Apply(features.Extract(p))
}

// PredictETA returns p.StartTime plus the forecast duration truncated to
// whole seconds (125.9s adds 125s).
func (e *Engine) PredictETA(p *domain.Process) time.Time {
	seconds := int64(e.ForecastDuration(p))
	return p.StartTime.Add(time.Duration(seconds) * time.Second)
}

// Coefficients returns a copy of the current weights.
func (e *Engine) Coefficients() Coefficients {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.coeffs
}

// State returns whether the engine has been trained.
func (e *Engine) State() State {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state
}
