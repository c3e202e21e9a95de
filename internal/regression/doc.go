// Package regression forecasts process durations with a multivariate linear
// model fitted on historical completed processes.
//
// The model is
//
//	duration = w0 + w1*retries + w2*steps + w3*priority + w4*automated
//
// where the feature row comes from features.Extract. Training solves the
// normal equations (XᵀX)w = Xᵀy with Gaussian elimination and partial
// pivoting on fixed-size 5×5 arrays.
//
// # Usage
//
//	engine := regression.New()
//	for _, p := range history {
//	    engine.AddRecord(p)
//	}
//
//	report, err := engine.Train()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(report.Coefficients) // duration = ...
//
//	seconds := engine.ForecastDuration(inFlight)
//	eta := engine.PredictETA(inFlight)
//
// # Lifecycle
//
// An Engine starts Untrained with all-zero coefficients, so forecasts are 0
// and PredictETA returns the start time. A successful Train moves it to
// Trained and replaces the coefficients wholesale; later calls overwrite
// them again. Train with no COMPLETED records is a no-op.
//
// # Numerical limits
//
// With fewer than five linearly independent completed records the normal
// equations are singular. By default this is not detected: the solver
// divides by whatever near-zero pivot remains and the coefficients may be
// huge, Inf or NaN. WithPivotTolerance turns that into ErrSingularSystem and
// WithMinSamples rejects small training sets up front; in both cases the
// previous coefficients are kept.
//
// # Concurrency
//
// All Engine methods are safe for concurrent use. Train holds the write lock
// for its whole duration; forecasts only take the read lock.
package regression
