package regression

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/hochfrequenz/process-eta/internal/features"
)

func TestNormalEquations(t *testing.T) {
	require := require.New(t)

	row := features.Vector{1, 2, 3, 3, 1}
	gram, moment := normalEquations([]features.Vector{row, row}, []float64{10, 20})

	for j := range n {
		require.Equal(30*row[j], moment[j])
		for k := range n {
			require.Equal(2*row[j]*row[k], gram[j][k])
		}
	}
}

func TestSolve_Diagonal(t *testing.T) {
	a := Matrix{
		{2, 0, 0, 0, 0},
		{0, 4, 0, 0, 0},
		{0, 0, 5, 0, 0},
		{0, 0, 0, 8, 0},
		{0, 0, 0, 0, 10},
	}
	b := Vector{2, 8, 15, 32, 50}

	x, err := Solve(a, b, 0)
	require.NoError(t, err)
	require.Equal(t, Vector{1, 2, 3, 4, 5}, x)
}

func TestSolve_RequiresPivoting(t *testing.T) {
	// Every leading diagonal entry is zero; elimination without row swaps
	// would divide by zero on the first step.
	a := Matrix{
		{0, 2, 0, 0, 0},
		{1, 0, 0, 0, 0},
		{0, 0, 0, 0, 3},
		{0, 0, 4, 0, 0},
		{0, 0, 0, 5, 0},
	}
	b := Vector{4, 1, 15, 12, 20}

	x, err := Solve(a, b, 1e-12)
	require.NoError(t, err)
	require.Equal(t, Vector{1, 2, 3, 4, 5}, x)
}

func TestSolve_MatchesGonum(t *testing.T) {
	rng := rand.New(rand.NewPCG(42, 7))

	for trial := 0; trial < 50; trial++ {
		var a Matrix
		var b Vector
		dense := mat.NewDense(n, n, nil)
		for i := range n {
			for j := range n {
				a[i][j] = rng.Float64()*20 - 10
			}
			// keep the system well conditioned
			a[i][i] += 60
			b[i] = rng.Float64()*200 - 100
			for j := range n {
				dense.Set(i, j, a[i][j])
			}
		}

		var want mat.VecDense
		require.NoError(t, want.SolveVec(dense, mat.NewVecDense(n, b[:])))

		got, err := Solve(a, b, 1e-12)
		require.NoError(t, err)
		for i := range n {
			require.InDelta(t, want.AtVec(i), got[i], 1e-9, "trial %d, x[%d]", trial, i)
		}
	}
}

func TestSolve_SingularWithoutToleranceIsNotDetected(t *testing.T) {
	x, err := Solve(Matrix{}, Vector{}, 0)
	require.NoError(t, err)
	require.False(t, Coefficients(x).Finite())
}

func TestSolve_SingularWithTolerance(t *testing.T) {
	rows := []features.Vector{
		{1, 2, 3, 3, 1},
		{1, 1, 2, 2, 0},
		{1, 0, 2, 1, 0},
	}
	gram, moment := normalEquations(rows, []float64{300, 400, 300})

	_, err := Solve(gram, moment, 1e-9)
	require.ErrorIs(t, err, ErrSingularSystem)

	x, err := Solve(gram, moment, 0)
	require.NoError(t, err)
	require.NotEqual(t, Vector{}, x)
}
