package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/themobileprof/telecare-be/internal/classifier"
)

type Collector struct {
	registry *prometheus.Registry

	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	InFlightGauge   prometheus.Gauge

	AssessmentsTotal    *prometheus.CounterVec
	AppointmentsTotal   *prometheus.CounterVec
	PrescriptionsIssued prometheus.Counter

	OnlineUsers      prometheus.Gauge
	RealtimeRelayed  *prometheus.CounterVec
	RealtimeDropped  *prometheus.CounterVec
	RealtimeRejected prometheus.Counter
}

// NewCollector registers every metric on a private registry so tests can
// build as many collectors as they like.
func NewCollector(serviceName string) *Collector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Collector{
		registry: reg,

		RequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: serviceName,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests by method, path, and status code.",
		}, []string{"method", "path", "status"}),

		RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: serviceName,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency distribution.",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}, []string{"method", "path", "status"}),

		InFlightGauge: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: serviceName,
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		}),

		AssessmentsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: serviceName,
			Subsystem: "triage",
			Name:      "assessments_total",
			Help:      "Triage assessments by computed risk level.",
		}, []string{"risk_level"}),

		AppointmentsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: serviceName,
			Subsystem: "clinical",
			Name:      "appointments_total",
			Help:      "Appointment status transitions by new status.",
		}, []string{"status"}),

		PrescriptionsIssued: factory.NewCounter(prometheus.CounterOpts{
			Namespace: serviceName,
			Subsystem: "clinical",
			Name:      "prescriptions_issued_total",
			Help:      "Total prescriptions issued.",
		}),

		OnlineUsers: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: serviceName,
			Subsystem: "realtime",
			Name:      "online_users",
			Help:      "Users with a live realtime connection.",
		}),

		RealtimeRelayed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: serviceName,
			Subsystem: "realtime",
			Name:      "events_relayed_total",
			Help:      "Realtime events delivered to an online receiver.",
		}, []string{"event"}),

		RealtimeDropped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: serviceName,
			Subsystem: "realtime",
			Name:      "events_dropped_total",
			Help:      "Realtime events dropped because the receiver was offline or its buffer was full.",
		}, []string{"event"}),

		RealtimeRejected: factory.NewCounter(prometheus.CounterOpts{
			Namespace: serviceName,
			Subsystem: "realtime",
			Name:      "handshakes_rejected_total",
			Help:      "Realtime handshakes rejected for missing or invalid credentials.",
		}),
	}
}

func (c *Collector) ObserveAssessment(risk classifier.RiskLevel) {
	c.AssessmentsTotal.WithLabelValues(string(risk)).Inc()
}

func (c *Collector) ObserveAppointmentStatus(status string) {
	c.AppointmentsTotal.WithLabelValues(status).Inc()
}

func (c *Collector) ObservePrescription() {
	c.PrescriptionsIssued.Inc()
}

func (c *Collector) SetOnline(n int) {
	c.OnlineUsers.Set(float64(n))
}

func (c *Collector) EventRelayed(event string) {
	c.RealtimeRelayed.WithLabelValues(event).Inc()
}

func (c *Collector) EventDropped(event string) {
	c.RealtimeDropped.WithLabelValues(event).Inc()
}

func (c *Collector) HandshakeRejected() {
	c.RealtimeRejected.Inc()
}

func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
