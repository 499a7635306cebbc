package observability

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "wapair"

type moduleMetrics struct {
	connectRequests *prometheus.CounterVec
	sessions        *prometheus.GaugeVec

	promotionsTotal   *prometheus.CounterVec
	promotionDuration prometheus.Histogram

	commandReplies *prometheus.CounterVec
	commandErrors  *prometheus.CounterVec

	credentialWrites *prometheus.CounterVec
	sweptSessions    prometheus.Counter
}

var (
	metricsOnce sync.Once
	metricsInst *moduleMetrics
)

func getMetrics() *moduleMetrics {
	metricsOnce.Do(func() {
		m := &moduleMetrics{
			connectRequests: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: namespace,
					Name:      "connect_requests_total",
					Help:      "Connect requests by outcome (pairing, accepted, invalid, error).",
				},
				[]string{"outcome"},
			),
			sessions: prometheus.NewGaugeVec(
				prometheus.GaugeOpts{
					Namespace: namespace,
					Name:      "sessions",
					Help:      "Sessions held by the lifecycle manager by state.",
				},
				[]string{"state"},
			),
			promotionsTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: namespace,
					Name:      "promotions_total",
					Help:      "Promotion attempts by result (promoted, noop, error).",
				},
				[]string{"result"},
			),
			promotionDuration: prometheus.NewHistogram(
				prometheus.HistogramOpts{
					Namespace: namespace,
					Name:      "promote_duration_seconds",
					Help:      "Duration of pending to persisted promotion in seconds.",
					Buckets:   prometheus.DefBuckets,
				},
			),
			commandReplies: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: namespace,
					Name:      "command_replies_total",
					Help:      "Replies sent by the command dispatcher by command.",
				},
				[]string{"command"},
			),
			commandErrors: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: namespace,
					Name:      "command_errors_total",
					Help:      "Failed command replies by command.",
				},
				[]string{"command"},
			),
			credentialWrites: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: namespace,
					Name:      "credential_writes_total",
					Help:      "Credential files written from update events by status.",
				},
				[]string{"status"},
			),
			sweptSessions: prometheus.NewCounter(
				prometheus.CounterOpts{
					Namespace: namespace,
					Name:      "swept_sessions_total",
					Help:      "Stale pending sessions deleted by the sweeper.",
				},
			),
		}

		prometheus.MustRegister(
			m.connectRequests,
			m.sessions,
			m.promotionsTotal,
			m.promotionDuration,
			m.commandReplies,
			m.commandErrors,
			m.credentialWrites,
			m.sweptSessions,
		)

		metricsInst = m
	})

	return metricsInst
}

// EnsureRegistered initializes and registers metrics the first time it is called.
func EnsureRegistered() {
	_ = getMetrics()
}

func MetricsHandler() http.Handler {
	EnsureRegistered()
	return promhttp.Handler()
}

func RecordConnectRequest(outcome string) {
	getMetrics().connectRequests.WithLabelValues(outcome).Inc()
}

func SetSessions(state string, count int) {
	getMetrics().sessions.WithLabelValues(state).Set(float64(count))
}

func RecordPromotion(result string, duration time.Duration) {
	m := getMetrics()
	m.promotionsTotal.WithLabelValues(result).Inc()
	if result == "promoted" {
		m.promotionDuration.Observe(duration.Seconds())
	}
}

func RecordCommandReply(command string, success bool) {
	m := getMetrics()
	if success {
		m.commandReplies.WithLabelValues(command).Inc()
		return
	}
	m.commandErrors.WithLabelValues(command).Inc()
}

func RecordCredentialWrite(success bool) {
	status := "error"
	if success {
		status = "success"
	}
	getMetrics().credentialWrites.WithLabelValues(status).Inc()
}

func RecordSwept(count int) {
	getMetrics().sweptSessions.Add(float64(count))
}
