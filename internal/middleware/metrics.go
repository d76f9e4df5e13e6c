package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	messagesReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "laila_messages_received_total",
		Help: "Total number of messages received",
	}, []string{"chat_type"})

	messagesProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "laila_messages_processed_total",
		Help: "Total number of messages processed",
	}, []string{"status"})

	commandsExecuted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "laila_commands_executed_total",
		Help: "Total number of commands executed",
	}, []string{"command"})

	resolutionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "laila_resolutions_total",
		Help: "Total number of resolved replies by source",
	}, []string{"source"})

	resolutionDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "laila_resolution_duration_seconds",
		Help:    "Duration of response resolution",
		Buckets: prometheus.DefBuckets,
	}, []string{"source"})

	credentialRotations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "laila_credential_rotations_total",
		Help: "Total number of quota-triggered credential rotations",
	})

	rateLimitExceeded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "laila_rate_limit_exceeded_total",
		Help: "Total number of rate limit exceeded events",
	})
)

// Metrics provides methods to record metrics.
type Metrics struct{}

// NewMetrics creates a new metrics instance.
func NewMetrics() *Metrics {
	return &Metrics{}
}

// RecordMessageReceived records a received message.
func (m *Metrics) RecordMessageReceived(chatType string) {
	messagesReceived.WithLabelValues(chatType).Inc()
}

// RecordMessageProcessed records a processed message.
func (m *Metrics) RecordMessageProcessed(status string) {
	messagesProcessed.WithLabelValues(status).Inc()
}

// RecordCommandExecuted records an executed command.
func (m *Metrics) RecordCommandExecuted(command string) {
	commandsExecuted.WithLabelValues(command).Inc()
}

// RecordResolution records one produced reply and which source made it.
func (m *Metrics) RecordResolution(source string) {
	resolutionsTotal.WithLabelValues(source).Inc()
}

// ObserveResolution records how long a resolution took.
func (m *Metrics) ObserveResolution(source string, duration time.Duration) {
	resolutionDuration.WithLabelValues(source).Observe(duration.Seconds())
}

// RecordCredentialRotation records a quota-triggered key rotation.
func (m *Metrics) RecordCredentialRotation() {
	credentialRotations.Inc()
}

// RecordRateLimitExceeded records a rate limit exceeded event.
func (m *Metrics) RecordRateLimitExceeded() {
	rateLimitExceeded.Inc()
}

// StartMetricsServer starts the metrics HTTP server.
func StartMetricsServer(port int, path string) error {
	router := mux.NewRouter()
	router.Handle(path, promhttp.Handler())

	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	return server.ListenAndServe()
}
