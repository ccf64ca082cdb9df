// Package metrics exposes Prometheus collectors for the bridge.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "pulse"

// Metrics holds all collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	FramesSent       *prometheus.CounterVec
	FramesDropped    *prometheus.CounterVec
	DialAttempts     *prometheus.CounterVec
	AgentConnected   prometheus.Gauge
	Actions          *prometheus.CounterVec
	ActionDuration   *prometheus.HistogramVec
	CaptureSkips     *prometheus.CounterVec
	SurfacesOpen     prometheus.Gauge
	AgentStates      *prometheus.CounterVec
	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	EventSubscribers prometheus.Gauge
}

// New registers every collector on a private registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		FramesSent: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_sent_total",
			Help:      "Frames written to the agent channel, by kind.",
		}, []string{"kind"}),
		FramesDropped: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_dropped_total",
			Help:      "Frames discarded because the agent channel was not connected, by kind.",
		}, []string{"kind"}),
		DialAttempts: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "agent_dial_attempts_total",
			Help:      "Agent connection attempts, by result.",
		}, []string{"result"}),
		AgentConnected: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "agent_connected",
			Help:      "1 while the agent channel is open.",
		}),
		Actions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "actions_total",
			Help:      "Executed actions, by action name and result.",
		}, []string{"action", "result"}),
		ActionDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "action_duration_seconds",
			Help:      "Action execution time.",
			Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}, []string{"action"}),
		CaptureSkips: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "capture_skips_total",
			Help:      "Capture ticks that produced no frame, by reason.",
		}, []string{"reason"}),
		SurfacesOpen: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "surfaces_open",
			Help:      "Number of open surfaces.",
		}),
		AgentStates: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "agent_state_changes_total",
			Help:      "Agent state transitions, by destination state.",
		}, []string{"state"}),
		RequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests served, by method and status.",
		}, []string{"method", "status"}),
		RequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   []float64{.001, .005, .01, .05, .1, .5, 1, 5},
		}, []string{"method"}),
		EventSubscribers: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "event_subscribers",
			Help:      "Connected event stream clients.",
		}),
	}
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) FrameSent(kind string) {
	if m == nil {
		return
	}
	m.FramesSent.WithLabelValues(kind).Inc()
}

func (m *Metrics) FrameDropped(kind string) {
	if m == nil {
		return
	}
	m.FramesDropped.WithLabelValues(kind).Inc()
}

func (m *Metrics) DialAttempt(ok bool) {
	if m == nil {
		return
	}
	m.DialAttempts.WithLabelValues(result(ok)).Inc()
}

func (m *Metrics) SetConnected(up bool) {
	if m == nil {
		return
	}
	if up {
		m.AgentConnected.Set(1)
	} else {
		m.AgentConnected.Set(0)
	}
}

// ActionDone records one executed action.
func (m *Metrics) ActionDone(action string, ok bool, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.Actions.WithLabelValues(action, result(ok)).Inc()
	m.ActionDuration.WithLabelValues(action).Observe(elapsed.Seconds())
}

func (m *Metrics) CaptureSkipped(reason string) {
	if m == nil {
		return
	}
	m.CaptureSkips.WithLabelValues(reason).Inc()
}

func (m *Metrics) SetSurfaces(n int) {
	if m == nil {
		return
	}
	m.SurfacesOpen.Set(float64(n))
}

func (m *Metrics) AgentState(state string) {
	if m == nil {
		return
	}
	m.AgentStates.WithLabelValues(state).Inc()
}

// Request records one served HTTP request.
func (m *Metrics) Request(method string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(method, statusClass(status)).Inc()
	m.RequestDuration.WithLabelValues(method).Observe(elapsed.Seconds())
}

func (m *Metrics) SetSubscribers(n int) {
	if m == nil {
		return
	}
	m.EventSubscribers.Set(float64(n))
}

func result(ok bool) string {
	if ok {
		return "ok"
	}
	return "error"
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
