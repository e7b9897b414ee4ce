package core

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the counters of one import run. A batch job has nothing to
// scrape, so the registry is written to a node-exporter textfile instead.
type Metrics struct {
	Registry *prometheus.Registry

	rowsLoaded  *prometheus.CounterVec
	rowsRead    *prometheus.CounterVec
	runDuration prometheus.Gauge
	lastOutcome *prometheus.GaugeVec
}

// NewMetrics returns metrics registered on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Metrics{
		Registry: reg,
		rowsLoaded: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "asvimport",
				Name:      "rows_loaded_total",
				Help:      "Rows written to each target table by the last run",
			},
			[]string{"entity"},
		),
		rowsRead: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "asvimport",
				Name:      "source_rows_read_total",
				Help:      "Rows read from each source file by the last run",
			},
			[]string{"source"},
		),
		runDuration: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "asvimport",
			Name:      "run_duration_seconds",
			Help:      "Wall time of the last run",
		}),
		lastOutcome: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "asvimport",
				Name:      "last_run_outcome",
				Help:      "1 for the outcome of the last run, 0 for the others",
			},
			[]string{"outcome"},
		),
	}
}

// Observe records a finished run.
func (m *Metrics) Observe(r *Report) {
	if m == nil || r == nil {
		return
	}
	if r.Outcome == OutcomeCommitted {
		for entity, n := range r.Rows {
			m.rowsLoaded.WithLabelValues(entity).Add(float64(n))
		}
	}
	for source, n := range r.Sources {
		m.rowsRead.WithLabelValues(source).Add(float64(n))
	}
	m.runDuration.Set(r.Duration.Seconds())
	for _, o := range []Outcome{OutcomeCommitted, OutcomeRolledBack, OutcomeNotStarted} {
		v := 0.0
		if o == r.Outcome {
			v = 1
		}
		m.lastOutcome.WithLabelValues(string(o)).Set(v)
	}
}

// WriteTextfile writes the registry in text exposition format to path.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.Registry)
}
