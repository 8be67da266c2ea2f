package metrics

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveIndexing(3, 7)
	m.ObserveIndexing(1, 2)
	m.ObserveQuery(OutcomeAnswered, 20*time.Millisecond)
	m.ObserveQuery(OutcomeInsufficient, time.Millisecond)
	m.ObserveQuery(OutcomeAnswered, 5*time.Millisecond)
	m.SetIndexEntries(9)

	assert.Equal(t, 4.0, testutil.ToFloat64(m.documentsIndexed))
	assert.Equal(t, 9.0, testutil.ToFloat64(m.chunksIndexed))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.queries.WithLabelValues(OutcomeAnswered)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.queries.WithLabelValues(OutcomeInsufficient)))
	assert.Equal(t, 9.0, testutil.ToFloat64(m.indexEntries))

	expected := `
# HELP ragcore_index_entries Number of entries currently in the vector index
# TYPE ragcore_index_entries gauge
ragcore_index_entries 9
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "ragcore_index_entries"))
	assert.Equal(t, 1, testutil.CollectAndCount(m.queryDuration))
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveIndexing(1, 1)
		m.ObserveQuery(OutcomeError, time.Second)
		m.SetIndexEntries(1)
	})
}

func TestNew_SeparateRegistries(t *testing.T) {
	assert.NotPanics(t, func() {
		New(prometheus.NewRegistry())
		New(prometheus.NewRegistry())
	})
}
