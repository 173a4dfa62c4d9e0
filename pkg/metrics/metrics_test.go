package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestCollectorCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := New(reg)

	c.Sent()
	c.Sent()
	c.Dropped(DropIntegrity)
	c.Handshake("success")
	c.SolOut(5)
	c.SolIn(0)

	require.Equal(t, 2.0, testutil.ToFloat64(c.PacketsSent))
	require.Equal(t, 1.0, testutil.ToFloat64(c.PacketsDropped.WithLabelValues(DropIntegrity)))
	require.Equal(t, 1.0, testutil.ToFloat64(c.Handshakes.WithLabelValues("success")))
	require.Equal(t, 5.0, testutil.ToFloat64(c.SolBytes.WithLabelValues("out")))

	n, err := testutil.GatherAndCount(reg, "lanplus_packets_sent_total")
	require.NoError(t, err)
	require.Equal(t, 1, n)
}

func TestNilCollector(t *testing.T) {
	var c *Collector
	require.NotPanics(t, func() {
		c.Sent()
		c.Received()
		c.Dropped(DropState)
		c.Retry()
		c.Handshake("failure")
		c.SolIn(3)
	})
}
