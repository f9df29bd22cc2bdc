package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.Transition("approve")
	m.Transition("approve")
	m.Evaluated(3)
	m.Evaluated(0)
	m.StoreError("list")
	m.NotifyFailure("mail")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Transitions.WithLabelValues("approve")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Evaluations))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.AlertsEmitted))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StoreErrors.WithLabelValues("list")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.NotifyFailures.WithLabelValues("mail")))

	n, err := testutil.GatherAndCount(reg)
	assert.NoError(t, err)
	assert.Equal(t, 5, n)
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.Transition("x")
		m.Evaluated(1)
		m.StoreError("x")
		m.NotifyFailure("x")
	})
}
