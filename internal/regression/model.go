package regression

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/hochfrequenz/process-eta/internal/features"
)

// State is the training state of an Engine.
type State int

const (
	// Untrained engines have all-zero coefficients.
	Untrained State = iota
	// Trained engines hold coefficients from the last successful Train.
	Trained
)

func (s State) String() string {
	if s == Trained {
		return "trained"
	}

	return "untrained"
}

// Coefficients are the model weights w0..w4, in features.Vector order.
type Coefficients [n]float64

// Apply returns the dot product of the coefficients with a feature row.
func (c Coefficients) Apply(v features.Vector) float64 {
	sum := 0.0
	for i := range n {
		sum += c[i] * v[i]
	}

	return sum
}

// String renders the model as a formula, e.g.
// "duration = 5.00 + 2.00*retries + 3.00*steps + 1.00*priority + 4.00*automated".
func (c Coefficients) String() string {
	names := features.Names()

	var b strings.Builder
	fmt.Fprintf(&b, "duration = %.2f", c[0])
	for i := 1; i < n; i++ {
		sign, w := "+", c[i]
		if w < 0 || (w == 0 && math.Signbit(w)) {
			sign, w = "-", -w
		}
		fmt.Fprintf(&b, " %s %.2f*%s", sign, w, names[i])
	}

	return b.String()
}

// Finite reports whether every coefficient is a finite number.
func (c Coefficients) Finite() bool {
	for _, w := range c {
		if math.IsNaN(w) || math.IsInf(w, 0) {
			return false
		}
	}

	return true
}

// FitReport summarises a training call.
//
// Rows is the number of COMPLETED records used. When Rows is zero the call was
// a cold-start no-op and Coefficients are the engine's unchanged weights.
// RSquared and RMSE are measured on the training rows themselves.
type FitReport struct {
	Rows         int
	Coefficients Coefficients
	RSquared     float64
	RMSE         float64
	TrainedAt    time.Time
}

// Skipped reports whether the training call left the model untouched
// because no completed records were available.
func (r FitReport) Skipped() bool {
	return r.Rows == 0
}

// String returns a one-line summary of the report.
func (r FitReport) String() string {
	if r.Skipped() {
		return "FitReport{skipped: no completed records}"
	}

	return fmt.Sprintf("FitReport{Rows: %d, R²: %.4f, RMSE: %.2fs, Formula: %s}",
		r.Rows, r.RSquared, r.RMSE, r.Coefficients)
}

// goodnessOfFit computes R² and RMSE of c over the training rows in one pass.
// R² is 0 when the targets have no variance.
func goodnessOfFit(c Coefficients, rows []features.Vector, targets []float64) (r2, rmse float64) {
	m := len(rows)
	if m == 0 {
		return 0, 0
	}

	mean := 0.0
	for _, y := range targets {
		mean += y
	}
	mean /= float64(m)

	ssTot, ssRes := 0.0, 0.0
	for i, row := range rows {
		residual := targets[i] - c.Apply(row)
		ssRes += residual * residual
		ssTot += (targets[i] - mean) * (targets[i] - mean)
	}

	if ssTot != 0 {
		r2 = 1.0 - ssRes/ssTot
	}
	rmse = math.Sqrt(ssRes / float64(m))

	return r2, rmse
}
