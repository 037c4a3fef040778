// Package metrics expõe as métricas Prometheus dos scans de concorrentes.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "competitor"

// Tipos de mudança de catálogo
const (
	ChangeNew     = "new"
	ChangeRemoved = "removed"
	ChangePrice   = "price"
	ChangeTitle   = "title"
)

// Metrics agrupa os coletores dos scans
type Metrics struct {
	ScansTotal     *prometheus.CounterVec
	ScanDuration   prometheus.Histogram
	CatalogChanges *prometheus.CounterVec
}

// New cria e registra as métricas. Com reg nil usa o registry padrão.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		ScansTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "scans_total",
				Help:      "Total de scans executados por status",
			},
			[]string{"status"},
		),
		ScanDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "scan_duration_seconds",
				Help:      "Duração dos scans em segundos",
				Buckets:   prometheus.ExponentialBuckets(0.5, 2, 12), // 0.5s a ~17min
			},
		),
		CatalogChanges: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "catalog_changes_total",
				Help:      "Mudanças de catálogo detectadas por tipo",
			},
			[]string{"kind"},
		),
	}
}

// ObserveScan registra o status e a duração de um scan
func (m *Metrics) ObserveScan(status string, d time.Duration) {
	if m == nil {
		return
	}
	m.ScansTotal.WithLabelValues(status).Inc()
	m.ScanDuration.Observe(d.Seconds())
}

// AddChanges soma as mudanças de catálogo aplicadas
func (m *Metrics) AddChanges(kind string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.CatalogChanges.WithLabelValues(kind).Add(float64(n))
}
