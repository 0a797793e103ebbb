package telemetry

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveReportLabelsAllServices(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.ObserveReport("", 128.5, 40*time.Millisecond)
	m.ObserveReport(" lesson ", 90, 10*time.Millisecond)

	assert.Equal(t, 128.5, testutil.ToFloat64(m.netRevenue.WithLabelValues("all")))
	assert.Equal(t, 90.0, testutil.ToFloat64(m.netRevenue.WithLabelValues("lesson")))
	assert.Equal(t, 2, testutil.CollectAndCount(m.reportDuration))
}

func TestObserveRebuildAccumulates(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.ObserveRebuild(3, 1, 0)
	m.ObserveRebuild(2, 0, 1)

	expected := `
# HELP finance_snapshot_rebuild_entities_total Entities visited by snapshot rebuilds by outcome.
# TYPE finance_snapshot_rebuild_entities_total counter
finance_snapshot_rebuild_entities_total{outcome="failed"} 1
finance_snapshot_rebuild_entities_total{outcome="skipped"} 1
finance_snapshot_rebuild_entities_total{outcome="written"} 5
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "finance_snapshot_rebuild_entities_total"))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveAPIRequest("GET", "/health", 200, time.Millisecond)
		m.ObserveReport("lesson", 1, time.Millisecond)
		m.ObserveRebuild(1, 1, 1)
	})
}
