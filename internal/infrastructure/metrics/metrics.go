package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics collects pipeline counters on a private registry. A batch run has no
// scrape endpoint, so the registry is dumped with WriteTextfile at exit for the
// node_exporter textfile collector. All methods are safe on a nil *Metrics.
type Metrics struct {
	Registry *prometheus.Registry

	rowsAssembled    prometheus.Counter
	facilityQueries  *prometheus.CounterVec
	unseenCategories *prometheus.CounterVec
	stageDuration    *prometheus.HistogramVec
	modelMAPE        *prometheus.GaugeVec
}

func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		rowsAssembled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "housing_rows_assembled_total",
			Help: "Records that received spatial features",
		}),
		facilityQueries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "housing_facility_queries_total",
			Help: "Spatial queries evaluated per facility set",
		}, []string{"facility", "feature"}),
		unseenCategories: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "housing_unseen_categories_total",
			Help: "Rows encoded with the prior because their category was not fitted",
		}, []string{"column"}),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "housing_stage_duration_seconds",
			Help:    "Wall time of pipeline stages",
			Buckets: prometheus.ExponentialBuckets(0.01, 4, 10),
		}, []string{"stage"}),
		modelMAPE: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "housing_model_validation_mape",
			Help: "Validation MAPE per candidate model",
		}, []string{"model"}),
	}
	m.Registry.MustRegister(m.rowsAssembled, m.facilityQueries, m.unseenCategories, m.stageDuration, m.modelMAPE)
	return m
}

func (m *Metrics) AddRows(n int) {
	if m == nil {
		return
	}
	m.rowsAssembled.Add(float64(n))
}

func (m *Metrics) AddFacilityQueries(facility, feature string, n int) {
	if m == nil {
		return
	}
	m.facilityQueries.WithLabelValues(facility, feature).Add(float64(n))
}

func (m *Metrics) AddUnseen(column string, n int) {
	if m == nil {
		return
	}
	m.unseenCategories.WithLabelValues(column).Add(float64(n))
}

// ObserveStage records the time elapsed since start. Use with defer.
func (m *Metrics) ObserveStage(stage string, start time.Time) {
	if m == nil {
		return
	}
	m.stageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}

func (m *Metrics) SetModelMAPE(name string, mape float64) {
	if m == nil {
		return
	}
	m.modelMAPE.WithLabelValues(name).Set(mape)
}

// WriteTextfile atomically writes the registry in text exposition format.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil || path == "" {
		return nil
	}
	return prometheus.WriteToTextfile(path, m.Registry)
}
