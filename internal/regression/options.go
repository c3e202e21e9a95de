package regression

import "time"

// Option configures an Engine.
type Option func(*Engine)

// WithPivotTolerance enables singularity detection. Train returns
// ErrSingularSystem when a pivot is smaller than tol relative to the largest
// entry of XᵀX. Zero (the default) disables the check.
func WithPivotTolerance(tol float64) Option {
	return func(e *Engine) {
		e.pivotTolerance = tol
	}
}

// WithMinSamples makes Train return ErrInsufficientSamples when fewer than
// min completed records qualify. Zero (the default) disables the check; an
// empty history is always a no-op regardless.
func WithMinSamples(min int) Option {
	return func(e *Engine) {
		e.minSamples = min
	}
}

// WithClock sets the time source used to stamp FitReport.TrainedAt.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}
