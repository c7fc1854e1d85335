package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors/version"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "larkbridge"

// Result label values.
const (
	ResultSuccess = "success"
	ResultError   = "error"
)

var (
	AlertsReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_received_total",
			Help:      "Normalized alerts handed to a provider.",
		},
		[]string{"provider"},
	)
	MessagesSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_sent_total",
			Help:      "Outbound card deliveries by provider, kind and result.",
		},
		[]string{"provider", "kind", "result"},
	)
	SendDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "send_duration_seconds",
			Help:      "Duration of outbound card deliveries.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"provider", "kind"},
	)
	TokenRefresh = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "token_refresh_total",
			Help:      "Tenant access token refreshes by result.",
		},
		[]string{"provider", "result"},
	)
	SilencesCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "silences_created_total",
			Help:      "Silences requested from interactive cards by result.",
		},
		[]string{"provider", "result"},
	)
	Callbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "callbacks_total",
			Help:      "Inbound card callbacks by type (challenge|action).",
		},
		[]string{"provider", "type"},
	)
)

func init() {
	prometheus.MustRegister(version.NewCollector(namespace))
}

// Result maps an error to a result label value.
func Result(err error) string {
	if err != nil {
		return ResultError
	}
	return ResultSuccess
}
