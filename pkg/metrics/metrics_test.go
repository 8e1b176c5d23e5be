package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Observe(t *testing.T) {
	m := New()

	m.ObserveAnalysis("csv", 120*time.Millisecond, nil)
	m.ObserveAnalysis("csv", time.Second, errors.New("boom"))
	m.ObservePrepared("transacoes", 8, 2)
	m.ObserveImport("transacoes", 7, 1, 2)
	m.SetActiveSessions(3)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.FilesAnalyzed.WithLabelValues("csv", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FilesAnalyzed.WithLabelValues("csv", "error")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.RowsPrepared.WithLabelValues("transacoes", "invalid")))
	assert.Equal(t, 7.0, testutil.ToFloat64(m.ItemsImported.WithLabelValues("transacoes", "imported")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.ActiveSessions))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveAnalysis("pdf", time.Second, nil)
		m.ObservePrepared("patrimonio", 1, 0)
		m.ObserveImport("patrimonio", 1, 0, 0)
		m.SetActiveSessions(0)
	})
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.ObserveImport("transacoes_fixas", 2, 0, 0)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `smart_import_items_total{import_type="transacoes_fixas",outcome="imported"} 2`)
}
