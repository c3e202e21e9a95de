package retrain

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/hochfrequenz/process-eta/internal/domain"
	"github.com/hochfrequenz/process-eta/internal/processstore"
	"github.com/hochfrequenz/process-eta/internal/regression"
)

// Source lists historical records
type Source interface {
	ListProcesses(ctx context.Context, opts processstore.ListOptions) ([]*domain.Process, error)
}

// TrainedFunc is called after every Reload attempt
type TrainedFunc func(report regression.FitReport, err error)

// Trainer rebuilds the engine from a Source. Readers always see a fully
// trained engine: a new one is swapped in only after its fit succeeds.
type Trainer struct {
	source Source
	opts   []regression.Option
	logger *slog.Logger

	mu        sync.RWMutex
	engine    *regression.Engine
	last      regression.FitReport
	listeners []TrainedFunc

	reloadMu sync.Mutex
}

// NewTrainer creates a trainer with an untrained engine built from opts
func NewTrainer(source Source, logger *slog.Logger, opts ...regression.Option) *Trainer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Trainer{
		source: source,
		opts:   opts,
		logger: logger,
		engine: regression.New(opts...),
	}
}

// OnTrained registers a listener for training outcomes
func (t *Trainer) OnTrained(fn TrainedFunc) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.listeners = append(t.listeners, fn)
}

// Engine returns the current engine
func (t *Trainer) Engine() *regression.Engine {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.engine
}

// LastReport returns the report of the last successful fit
func (t *Trainer) LastReport() regression.FitReport {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.last
}

// Reload reads all completed records from the source, fits a fresh engine
// and swaps it in. On a cold start or a failed fit the current engine stays.
func (t *Trainer) Reload(ctx context.Context) (regression.FitReport, error) {
	t.reloadMu.Lock()
	defer t.reloadMu.Unlock()

	report, err := t.fit(ctx)
	t.notify(report, err)
	return report, err
}

func (t *Trainer) fit(ctx context.Context) (regression.FitReport, error) {
	records, err := t.source.ListProcesses(ctx, processstore.ListOptions{Status: domain.StatusCompleted})
	if err != nil {
		t.logger.Error("loading records for training failed", "error", err)
		return regression.FitReport{}, fmt.Errorf("loading records: %w", err)
	}

	engine := regression.New(t.opts...)
	engine.AddRecords(records)

	report, err := engine.Train()
	if err != nil {
		t.logger.Warn("model fit failed, keeping previous coefficients", "rows", report.Rows, "error", err)
		return report, err
	}
	if report.Skipped() {
		t.logger.Info("training skipped, no completed records")
		return report, nil
	}

	t.mu.Lock()
	t.engine = engine
	t.last = report
	t.mu.Unlock()

	t.logger.Info("model trained",
		"rows", report.Rows,
		"r_squared", report.RSquared,
		"rmse", report.RMSE,
	)
	return report, nil
}

func (t *Trainer) notify(report regression.FitReport, err error) {
	t.mu.RLock()
	listeners := append([]TrainedFunc(nil), t.listeners...)
	t.mu.RUnlock()

	for _, fn := range listeners {
		fn(report, err)
	}
}
