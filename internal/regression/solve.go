package regression

import (
	"errors"
	"fmt"
	"math"

	"github.com/hochfrequenz/process-eta/internal/features"
)

const n = features.Size

// ErrSingularSystem is returned when a pivot falls below the configured tolerance.
var ErrSingularSystem = errors.New("model fit failed: singular system")

// Matrix is a dense n×n system matrix.
type Matrix [n][n]float64

// Vector is a right-hand side or solution vector.
type Vector [n]float64

// normalEquations accumulates XᵀX and Xᵀy over all rows.
func normalEquations(rows []features.Vector, targets []float64) (Matrix, Vector) {
	var gram Matrix
	var moment Vector

	for r, row := range rows {
		y := targets[r]
		for j := range n {
			moment[j] += row[j] * y
			for k := range n {
				gram[j][k] += row[j] * row[k]
			}
		}
	}

	return gram, moment
}

// Solve solves a·x = b by Gaussian elimination with partial pivoting followed
// by back-substitution. a and b are copied, the caller's values are untouched.
//
// With tol <= 0 no singularity check is made and a zero or near-zero pivot
// propagates Inf/NaN into the result. With tol > 0 a pivot whose magnitude is
// below tol times the largest entry of a yields ErrSingularSystem.
func Solve(a Matrix, b Vector, tol float64) (Vector, error) {
	var aug [n][n + 1]float64
	scale := 0.0
	for i := range n {
		for j := range n {
			aug[i][j] = a[i][j]
			scale = math.Max(scale, math.Abs(a[i][j]))
		}
		aug[i][n] = b[i]
	}

	for i := range n {
		maxRow := i
		for k := i + 1; k < n; k++ {
			if math.Abs(aug[k][i]) > math.Abs(aug[maxRow][i]) {
				maxRow = k
			}
		}
		aug[i], aug[maxRow] = aug[maxRow], aug[i]

		if tol > 0 && math.Abs(aug[i][i]) <= tol*scale {
			return Vector{}, fmt.Errorf("%w: pivot %d is %.3g", ErrSingularSystem, i, aug[i][i])
		}

		for k := i + 1; k < n; k++ {
			factor := aug[k][i] / aug[i][i]
			for j := i; j <= n; j++ {
				aug[k][j] -= factor * aug[i][j]
			}
		}
	}

	var x Vector
	for i := n - 1; i >= 0; i-- {
		x[i] = aug[i][n] / aug[i][i]
		for k := 0; k < i; k++ {
			aug[k][n] -= aug[k][i] * x[i]
		}
	}

	return x, nil
}
