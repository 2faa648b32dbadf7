package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Counters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.Message(ResultCommand)
	m.Message(ResultCommand)
	m.Message(ResultLocked)
	m.Command("vender")
	m.Notification(StatusSent)
	m.Notification(StatusFailed)
	m.SessionExpired()
	m.Sale()

	assert.InDelta(t, 2, testutil.ToFloat64(m.Messages.WithLabelValues(ResultCommand)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.Messages.WithLabelValues(ResultLocked)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.Commands.WithLabelValues("vender")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.Notifications.WithLabelValues(StatusFailed)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.SessionsExpired), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.Sales), 0)

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.Message(ResultFlow)
		m.Command("help")
		m.Notification(StatusSent)
		m.SessionExpired()
		m.Sale()
	})
}
