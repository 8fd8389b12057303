package metrics

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Counters(t *testing.T) {
	m := New()

	m.ObservePair("ok", 200*time.Millisecond)
	m.ObservePair("failed", time.Second)
	m.ObservePair("ok", time.Millisecond)
	m.AddStatements("INSERT", 3)
	m.AddStatements("DELETE", 0)
	m.IncDiagnostic("resolution_miss")
	m.AddResolutions(2, 4)
	m.AddResolutions(0, 1)
	m.ObserveRequest("entity_data", 200, 10*time.Millisecond)
	m.ObserveCache(true)
	m.ObserveCache(false)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.pairs.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.pairs.WithLabelValues("failed")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.statements.WithLabelValues("INSERT")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.statements.WithLabelValues("DELETE")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.diagnostics.WithLabelValues("resolution_miss")))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.resolutions.WithLabelValues("2")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.resolutions.WithLabelValues("miss")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues("entity_data", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.cacheLookups.WithLabelValues("hit")))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	m.ObservePair("ok", time.Second)
	m.AddStatements("INSERT", 1)
	m.IncDiagnostic("format_error")
	m.ObserveRequest("sparql", 500, time.Second)
	m.ObserveCache(true)
	assert.Nil(t, m.Registry())
	assert.NoError(t, m.WriteTextfile(filepath.Join(t.TempDir(), "x.prom")))
}

func TestMetrics_WriteTextfile(t *testing.T) {
	m := New()
	m.AddStatements("DELETE", 2)

	path := filepath.Join(t.TempDir(), "wdsync.prom")
	require.NoError(t, m.WriteTextfile(path))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `wdsync_statements_total{op="DELETE"} 2`)
}
