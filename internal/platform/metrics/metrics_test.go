package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_IndependentRegistries(t *testing.T) {
	// Dos instancias no deben colisionar en el registro.
	a := New()
	b := New()

	a.AuditAppendFailed("case")
	a.AuditAppendFailed("case")
	b.AuditAppendFailed("report")

	assert.Equal(t, 2.0, testutil.ToFloat64(a.AuditAppendFailures.WithLabelValues("case")))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.AuditAppendFailures.WithLabelValues("case")))
}

func TestMetrics_HandlerExposesCounters(t *testing.T) {
	m := New()
	m.ObserveComparison(75)
	m.AuditReconciled(3)
	m.AuditReconcileFailed("requeue")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	out := string(body)
	assert.True(t, strings.Contains(out, "odontolegal_dental_comparisons_total 1"))
	assert.True(t, strings.Contains(out, "odontolegal_audit_reconciled_total 3"))
	assert.True(t, strings.Contains(out, `odontolegal_audit_reconcile_failures_total{reason="requeue"} 1`))
}
