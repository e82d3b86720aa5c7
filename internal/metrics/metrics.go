// Package metrics exposes the simulator's Prometheus collectors.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "marketsim"

// Metrics is the collector set. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	Steps          *prometheus.CounterVec
	Events         *prometheus.CounterVec
	Orders         *prometheus.CounterVec
	Liquidations   prometheus.Counter
	QueueDepth     prometheus.Gauge
	Cash           prometheus.Gauge
	Equity         prometheus.Gauge
	FreeMargin     prometheus.Gauge
	OpenPositions  prometheus.Gauge
	StepDuration   prometheus.Histogram
	FeedClients    prometheus.Gauge
	RejectedOrders *prometheus.CounterVec
}

// New registers every collector on a fresh registry together with the Go
// and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		Steps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "steps_total",
			Help:      "Simulation steps per instrument",
		}, []string{"symbol"}),
		Events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Events delivered to consumers by kind",
		}, []string{"kind"}),
		Orders: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_total",
			Help:      "User orders by side and result",
		}, []string{"side", "result"}),
		Liquidations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "liquidations_total",
			Help:      "Margin calls that liquidated the account",
		}),
		QueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "event_queue_depth",
			Help:      "Events waiting to be drained",
		}),
		Cash: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "account",
			Name:      "cash",
			Help:      "Account cash balance",
		}),
		Equity: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "account",
			Name:      "equity",
			Help:      "Cash plus unrealized P&L",
		}),
		FreeMargin: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "account",
			Name:      "free_margin",
			Help:      "Equity minus used margin",
		}),
		OpenPositions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "account",
			Name:      "open_positions",
			Help:      "Number of open positions",
		}),
		StepDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "step_duration_seconds",
			Help:      "Time spent advancing one instrument",
			Buckets:   []float64{1e-6, 5e-6, 1e-5, 5e-5, 1e-4, 5e-4, 1e-3, 5e-3},
		}),
		FeedClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "feed_clients",
			Help:      "Connected websocket feed clients",
		}),
		RejectedOrders: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_rejected_total",
			Help:      "HTTP requests rejected before reaching the simulator",
		}, []string{"reason"}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.Steps, m.Events, m.Orders, m.Liquidations, m.QueueDepth,
		m.Cash, m.Equity, m.FreeMargin, m.OpenPositions,
		m.StepDuration, m.FeedClients, m.RejectedOrders,
	)
	return m
}

// Registry returns the registry backing m.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) ObserveStep(symbol string, seconds float64) {
	if m == nil {
		return
	}
	m.Steps.WithLabelValues(symbol).Inc()
	m.StepDuration.Observe(seconds)
}

func (m *Metrics) ObserveEvent(kind string) {
	if m == nil {
		return
	}
	m.Events.WithLabelValues(kind).Inc()
}

func (m *Metrics) ObserveOrder(side, result string) {
	if m == nil {
		return
	}
	m.Orders.WithLabelValues(side, result).Inc()
}

func (m *Metrics) ObserveLiquidation() {
	if m == nil {
		return
	}
	m.Liquidations.Inc()
}

func (m *Metrics) ObserveRejected(reason string) {
	if m == nil {
		return
	}
	m.RejectedOrders.WithLabelValues(reason).Inc()
}

func (m *Metrics) SetQueueDepth(n int) {
	if m == nil {
		return
	}
	m.QueueDepth.Set(float64(n))
}

func (m *Metrics) SetFeedClients(n int) {
	if m == nil {
		return
	}
	m.FeedClients.Set(float64(n))
}

// SetAccount publishes the account gauges.
func (m *Metrics) SetAccount(cash, equity, freeMargin float64, open int) {
	if m == nil {
		return
	}
	m.Cash.Set(cash)
	m.Equity.Set(equity)
	m.FreeMargin.Set(freeMargin)
	m.OpenPositions.Set(float64(open))
}
