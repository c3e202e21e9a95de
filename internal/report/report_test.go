package report

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hochfrequenz/process-eta/internal/domain"
	"github.com/hochfrequenz/process-eta/internal/regression"
)

func TestWriteCoefficients(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCoefficients(&buf, regression.Coefficients{5, 2, 3, 1, 4}))

	out := buf.String()
	assert.Contains(t, out, "Trained weights:")
	assert.Contains(t, out, "w0: 5 (bias)")
	assert.Contains(t, out, "w1: 2 (retries)")
	assert.Contains(t, out, "w2: 3 (steps)")
	assert.Contains(t, out, "w3: 1 (priority)")
	assert.Contains(t, out, "w4: 4 (automated)")
}

func TestWriteFitReport(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteFitReport(&buf, regression.FitReport{Rows: 8, RSquared: 1, RMSE: 0.25}))
	assert.Contains(t, buf.String(), "8 records, R² 1.0000, RMSE 0.25s")
}

func TestWriteFitReportSkipped(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteFitReport(&buf, regression.FitReport{}))
	assert.Contains(t, buf.String(), "No completed records")
}

func TestWriteForecasts(t *testing.T) {
	now := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)
	rows := []Forecast{{
		Process: &domain.Process{ID: "pX", Type: "TRADE", Priority: domain.PriorityHigh},
		Seconds: 300.5,
		ETA:     now.Add(5 * time.Minute),
	}}

	var buf bytes.Buffer
	require.NoError(t, WriteForecasts(&buf, rows, now))

	out := buf.String()
	assert.Contains(t, out, "Forecasts:")
	assert.Contains(t, out, "pX")
	assert.Contains(t, out, "TRADE")
	assert.Contains(t, out, "HIGH")
	assert.Contains(t, out, "300.5s")
	assert.Contains(t, out, "2025-05-01T10:05:00Z")
	assert.Contains(t, out, "5 minutes from now")
}

func TestWriteForecastsEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteForecasts(&buf, nil, time.Now()))
	assert.Contains(t, buf.String(), "No in-flight processes")
}
