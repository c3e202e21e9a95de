// Package metrics exposes Prometheus collectors for model training and
// forecasting.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hochfrequenz/process-eta/internal/features"
	"github.com/hochfrequenz/process-eta/internal/regression"
)

const namespace = "process_eta"

// Train results used as the "result" label
const (
	ResultOK      = "ok"
	ResultSkipped = "skipped"
	ResultFailed  = "failed"
)

// Metrics holds the collectors, registered on a dedicated registry
type Metrics struct {
	registry *prometheus.Registry

	// TrainTotal counts training runs.
	// Labels: result (ok, skipped, failed)
	TrainTotal *prometheus.CounterVec

	// TrainRows is the number of completed records used by the last fit.
	TrainRows prometheus.Gauge

	// RSquared is the coefficient of determination of the last fit.
	RSquared prometheus.Gauge

	// Coefficient holds the current model weights.
	// Labels: feature (bias, retries, steps, priority, automated)
	Coefficient *prometheus.GaugeVec

	// ForecastTotal counts duration forecasts served.
	ForecastTotal prometheus.Counter
}

// New creates the collectors on a fresh registry
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		TrainTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "train_total",
			Help:      "Total model training runs by result",
		}, []string{"result"}),
		TrainRows: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "train_rows",
			Help:      "Completed records used by the last successful fit",
		}),
		RSquared: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "model_r_squared",
			Help:      "Coefficient of determination of the last successful fit",
		}),
		Coefficient: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "model_coefficient",
			Help:      "Current model weight per feature",
		}, []string{"feature"}),
		ForecastTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "forecast_total",
			Help:      "Total duration forecasts served",
		}),
	}
}

// ObserveTrain records the outcome of a training run
func (m *Metrics) ObserveTrain(report regression.FitReport, err error) {
	switch {
	case err != nil:
		m.TrainTotal.WithLabelValues(ResultFailed).Inc()
	case report.Skipped():
		m.TrainTotal.WithLabelValues(ResultSkipped).Inc()
	default:
		m.TrainTotal.WithLabelValues(ResultOK).Inc()
		m.TrainRows.Set(float64(report.Rows))
		m.RSquared.Set(report.RSquared)
		names := features.Names()
		for i, c := range report.Coefficients {
			m.Coefficient.WithLabelValues(names[i]).Set(c)
		}
	}
}

// ObserveForecast counts one served forecast
func (m *Metrics) ObserveForecast() {
	m.ForecastTotal.Inc()
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
