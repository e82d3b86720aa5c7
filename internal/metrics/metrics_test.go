package metrics

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsIsSafe(t *testing.T) {
	t.Parallel()

	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveStep("NEXUS", 0.001)
		m.ObserveEvent("tick")
		m.ObserveOrder("BUY", "ok")
		m.ObserveLiquidation()
		m.ObserveRejected("rate_limit")
		m.SetQueueDepth(3)
		m.SetFeedClients(1)
		m.SetAccount(1, 2, 3, 4)
	})
	assert.Nil(t, m.Registry())

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	assert.Equal(t, 404, rec.Code)
}

func TestCollectors(t *testing.T) {
	t.Parallel()

	m := New()
	m.ObserveStep("NEXUS", 0.0001)
	m.ObserveStep("NEXUS", 0.0002)
	m.ObserveEvent("trade")
	m.ObserveOrder("SELL", "rejected")
	m.ObserveLiquidation()
	m.SetAccount(9000, 8800, 8700, 2)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Steps.WithLabelValues("NEXUS")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Events.WithLabelValues("trade")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Orders.WithLabelValues("SELL", "rejected")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Liquidations))
	assert.Equal(t, 8800.0, testutil.ToFloat64(m.Equity))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.OpenPositions))
}

func TestHandlerExposesMetrics(t *testing.T) {
	t.Parallel()

	m := New()
	m.SetQueueDepth(7)

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "marketsim_event_queue_depth 7")
	assert.Contains(t, string(body), "go_goroutines")
}
