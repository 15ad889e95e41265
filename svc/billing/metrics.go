package billing

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dmitrymomot/diary/pkg/subscription"
)

const namespace = "diary"

// Metrics records billing outcomes. A nil *Metrics records nothing.
type Metrics struct {
	webhooks        *prometheus.CounterVec
	checkouts       *prometheus.CounterVec
	jobRuns         *prometheus.CounterVec
	expired         prometheus.Counter
	downgraded      prometheus.Counter
	sweepFailures   prometheus.Counter
	remindersSent   prometheus.Counter
	remindersFailed prometheus.Counter
	usageResets     prometheus.Counter
}

// NewMetrics registers the billing collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		webhooks: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "billing",
			Name:      "webhooks_total",
			Help:      "Gateway webhook requests by result.",
		}, []string{"result"}),
		checkouts: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "billing",
			Name:      "checkouts_total",
			Help:      "Checkout sessions requested by result.",
		}, []string{"result"}),
		jobRuns: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "jobs",
			Name:      "runs_total",
			Help:      "Periodic job runs by job and result.",
		}, []string{"job", "result"}),
		expired: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "subscriptions",
			Name:      "expired_total",
			Help:      "Subscriptions marked expired by the sweeper.",
		}),
		downgraded: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "subscriptions",
			Name:      "downgraded_total",
			Help:      "Expired subscriptions moved to the free plan.",
		}),
		sweepFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "subscriptions",
			Name:      "sweep_failures_total",
			Help:      "Subscriptions the sweeper failed to process.",
		}),
		remindersSent: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reminders",
			Name:      "sent_total",
			Help:      "Payment reminders delivered.",
		}),
		remindersFailed: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reminders",
			Name:      "failed_total",
			Help:      "Payment reminder deliveries that failed and will be retried.",
		}),
		usageResets: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "usage",
			Name:      "resets_total",
			Help:      "Usage counters reset by the monthly job.",
		}),
	}
}

// MetricsHandler serves the metrics gathered by g.
func MetricsHandler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

func (m *Metrics) webhook(result string) {
	if m != nil {
		m.webhooks.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) checkout(result string) {
	if m != nil {
		m.checkouts.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) jobRun(job string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.jobRuns.WithLabelValues(job, result).Inc()
}

func (m *Metrics) sweep(r subscription.SweepResult) {
	if m != nil {
		m.expired.Add(float64(r.Expired))
		m.downgraded.Add(float64(r.Downgraded))
		m.sweepFailures.Add(float64(r.Failed))
	}
}

func (m *Metrics) dispatch(r subscription.DispatchResult) {
	if m != nil && !r.DryRun {
		m.remindersSent.Add(float64(r.Sent))
		m.remindersFailed.Add(float64(r.Failed))
	}
}

func (m *Metrics) resets(n int) {
	if m != nil {
		m.usageResets.Add(float64(n))
	}
}
