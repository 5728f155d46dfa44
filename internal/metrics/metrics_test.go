package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gaugeValue(t *testing.T, g prometheus.Gauge) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, g.Write(&m))
	return m.GetGauge().GetValue()
}

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, c.Write(&m))
	return m.GetCounter().GetValue()
}

func TestCollectorsRegisterAgainstIsolatedRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := New(reg)

	c.ConnectionsCurrent.Set(3)
	c.ConnectionsTotal.Inc()
	c.MessagesSent.WithLabelValues("PRIVMSG").Inc()
	c.BanHits.WithLabelValues("K").Inc()

	assert.Equal(t, float64(3), gaugeValue(t, c.ConnectionsCurrent))
	assert.Equal(t, float64(1), counterValue(t, c.ConnectionsTotal))

	families, err := reg.Gather()
	require.NoError(t, err)
	names := map[string]bool{}
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["ircd_connections_current"])
	assert.True(t, names["ircd_messages_sent_total"])
	assert.True(t, names["ircd_ban_hits_total"])
}

func TestUptimeIsPositive(t *testing.T) {
	c := New(prometheus.NewRegistry())
	assert.GreaterOrEqual(t, c.Uptime().Seconds(), float64(0))
}
