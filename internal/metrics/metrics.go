// Package metrics provides Prometheus metrics for the fileopen host.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	locatorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fileopen_locators_total",
			Help: "Locators received with open-file signals, by filtering result",
		},
		[]string{"result"},
	)

	notificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fileopen_notifications_total",
			Help: "file-opened notifications, by delivery result",
		},
		[]string{"result"},
	)

	drainsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fileopen_drains_total",
			Help: "Number of take_pending_opens calls",
		},
	)

	drainedPathsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fileopen_drained_paths_total",
			Help: "Paths handed to the interface layer by take_pending_opens",
		},
	)

	pendingOpens = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "fileopen_pending_opens",
			Help: "Paths currently waiting in the pending store",
		},
	)

	subscribers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "fileopen_event_subscribers",
			Help: "Consumers currently attached to the event stream",
		},
	)

	commandsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fileopen_command_invocations_total",
			Help: "Command invocations, by command and status",
		},
		[]string{"command", "status"},
	)
)

// RecordLocators records the outcome of filtering one open-file signal.
func RecordLocators(accepted, discarded int) {
	locatorsTotal.WithLabelValues("accepted").Add(float64(accepted))
	locatorsTotal.WithLabelValues("discarded").Add(float64(discarded))
}

// RecordNotification records one emitted event. An event emitted with no
// subscribers at all counts as unattended.
func RecordNotification(delivered, dropped int) {
	if delivered == 0 && dropped == 0 {
		notificationsTotal.WithLabelValues("unattended").Inc()
		return
	}
	notificationsTotal.WithLabelValues("delivered").Add(float64(delivered))
	notificationsTotal.WithLabelValues("dropped").Add(float64(dropped))
}

// RecordDrain records a take_pending_opens call returning n paths.
func RecordDrain(n int) {
	drainsTotal.Inc()
	drainedPathsTotal.Add(float64(n))
}

// SetPendingOpens sets the pending store size gauge.
func SetPendingOpens(n int) {
	pendingOpens.Set(float64(n))
}

// SetSubscribers sets the attached consumer gauge.
func SetSubscribers(n int) {
	subscribers.Set(float64(n))
}

// RecordCommand records a command invocation.
func RecordCommand(command, status string) {
	commandsTotal.WithLabelValues(command, status).Inc()
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
