package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
// Se registran en un Registry propio para poder crear varios routers en tests.
type Metrics struct {
	registry *prometheus.Registry

	AuditAppendFailures *prometheus.CounterVec
	AuditReconciledRows prometheus.Counter
	AuditReconcileFail  *prometheus.CounterVec
	Comparisons         prometheus.Counter
	MatchScore          prometheus.Histogram
	ReportEdits         prometheus.Counter
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		AuditAppendFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "odontolegal_audit_append_failures_total",
			Help: "History entries that could not be persisted after the entity mutation committed",
		}, []string{"entity_kind"}),
		AuditReconciledRows: f.NewCounter(prometheus.CounterOpts{
			Name: "odontolegal_audit_reconciled_total",
			Help: "Queued history entries successfully re-appended",
		}),
		AuditReconcileFail: f.NewCounterVec(prometheus.CounterOpts{
			Name: "odontolegal_audit_reconcile_failures_total",
			Help: "Pending history entries the reconciler could not apply or requeue",
		}, []string{"reason"}),
		Comparisons: f.NewCounter(prometheus.CounterOpts{
			Name: "odontolegal_dental_comparisons_total",
			Help: "Dental record comparisons computed",
		}),
		MatchScore: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "odontolegal_match_score",
			Help:    "Distribution of dental comparison scores (0-100)",
			Buckets: prometheus.LinearBuckets(0, 10, 11),
		}),
		ReportEdits: f.NewCounter(prometheus.CounterOpts{
			Name: "odontolegal_report_versions_total",
			Help: "Report edits that produced a version snapshot",
		}),
	}
}

// AuditAppendFailed implementa audit.FailureRecorder.
func (m *Metrics) AuditAppendFailed(kind string) {
	m.AuditAppendFailures.WithLabelValues(kind).Inc()
}

// AuditReconciled implementa audit.FailureRecorder.
func (m *Metrics) AuditReconciled(n int) {
	m.AuditReconciledRows.Add(float64(n))
}

// AuditReconcileFailed implementa audit.FailureRecorder.
func (m *Metrics) AuditReconcileFailed(reason string) {
	m.AuditReconcileFail.WithLabelValues(reason).Inc()
}

func (m *Metrics) ObserveComparison(score float64) {
	m.Comparisons.Inc()
	m.MatchScore.Observe(score)
}

func (m *Metrics) IncReportEdits() {
	m.ReportEdits.Inc()
}

// Handler expone /metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
