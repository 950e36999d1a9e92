package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/garyjia/order-resolution/internal/domain/event"
)

const namespace = "resolution"

// Recorder exposes workflow, dispatcher, outbox and HTTP metrics
type Recorder struct {
	registry *prometheus.Registry

	transitions *prometheus.CounterVec
	rejections  *prometheus.CounterVec
	ledgerRows  *prometheus.CounterVec
	ledgerCents *prometheus.CounterVec
	enqueued    *prometheus.CounterVec
	deliveries  *prometheus.CounterVec
	handlerRuns *prometheus.CounterVec
	requests    *prometheus.CounterVec
	latencyMS   *prometheus.HistogramVec
}

// New creates a Recorder with its own registry
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),

		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transitions_total",
			Help:      "State transitions applied, by machine and edge.",
		}, []string{"machine", "from", "to"}),
		rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transitions_rejected_total",
			Help:      "Transitions refused by the rules, by machine and reason.",
		}, []string{"machine", "reason"}),
		ledgerRows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ledger_entries_total",
			Help:      "Rows appended to the refund ledger and seller expenses.",
		}, []string{"ledger", "action"}),
		ledgerCents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ledger_amount_cents_total",
			Help:      "Absolute amount in cents appended to each ledger.",
		}, []string{"ledger", "action"}),
		enqueued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_enqueued_total",
			Help:      "Notifications written to the outbox, by template.",
		}, []string{"template"}),
		deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_delivered_total",
			Help:      "Outbox delivery outcomes, by template.",
		}, []string{"template", "outcome"}),
		handlerRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "event_handler_runs_total",
			Help:      "Domain event handler invocations.",
		}, []string{"event_type", "handler", "status"}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests.",
		}, []string{"route", "status"}),
		latencyMS: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_ms",
			Help:      "HTTP request latency in milliseconds.",
			Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		}, []string{"route"}),
	}

	r.registry.MustRegister(
		r.transitions,
		r.rejections,
		r.ledgerRows,
		r.ledgerCents,
		r.enqueued,
		r.deliveries,
		r.handlerRuns,
		r.requests,
		r.latencyMS,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// Registry returns the registry backing the recorder
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in the Prometheus text format
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

func (r *Recorder) TransitionApplied(machine, from, to string) {
	r.transitions.WithLabelValues(machine, from, to).Inc()
}

func (r *Recorder) TransitionRejected(machine, reason string) {
	r.rejections.WithLabelValues(machine, reason).Inc()
}

func (r *Recorder) LedgerAppended(ledger, action string, amountCents int64) {
	r.ledgerRows.WithLabelValues(ledger, action).Inc()
	if amountCents < 0 {
		amountCents = -amountCents
	}
	r.ledgerCents.WithLabelValues(ledger, action).Add(float64(amountCents))
}

func (r *Recorder) NotificationEnqueued(template string) {
	r.enqueued.WithLabelValues(template).Inc()
}

// NotificationDelivered counts an outbox outcome: sent, failed or retried
func (r *Recorder) NotificationDelivered(template, outcome string) {
	r.deliveries.WithLabelValues(template, outcome).Inc()
}

// HandlerObserved matches the dispatcher observer hook
func (r *Recorder) HandlerObserved(eventType event.Type, handler string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	r.handlerRuns.WithLabelValues(string(eventType), handler, status).Inc()
}

// GinMiddleware records request counts and latency by route template
func (r *Recorder) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		r.requests.WithLabelValues(route, strconv.Itoa(c.Writer.Status())).Inc()
		r.latencyMS.WithLabelValues(route).Observe(float64(time.Since(start).Milliseconds()))
	}
}
