package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics stores Prometheus collectors used across the service.
type Metrics struct {
	AuthRequests     *prometheus.CounterVec
	SupabaseRequests *prometheus.CounterVec
	SupabaseLatency  *prometheus.HistogramVec
	RealtimeEvents   *prometheus.CounterVec
	ProofSubmissions *prometheus.CounterVec
	ProofUploadBytes prometheus.Counter
	Errors           *prometheus.CounterVec
}

var (
	regOnce         sync.Once
	metricsInstance *Metrics
)

// Registry builds and registers the metrics singleton with optional namespace.
func Registry(namespace string) *Metrics {
	regOnce.Do(func() {
		metricsInstance = &Metrics{
			AuthRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "auth_requests_total",
				Help:      "Total auth operations by kind and outcome.",
			}, []string{"kind", "status"}),
			SupabaseRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "supabase_requests_total",
				Help:      "Total Supabase API requests by endpoint and status.",
			}, []string{"endpoint", "status"}),
			SupabaseLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "supabase_request_duration_seconds",
				Help:      "Latency distribution for Supabase API requests.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"endpoint", "status"}),
			RealtimeEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "realtime_events_total",
				Help:      "Total row-change notifications delivered by table and event.",
			}, []string{"table", "event"}),
			ProofSubmissions: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "proof_submissions_total",
				Help:      "Total task proof submissions by outcome.",
			}, []string{"status"}),
			ProofUploadBytes: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "proof_upload_bytes_total",
				Help:      "Total bytes uploaded to the proof bucket.",
			}),
			Errors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_total",
				Help:      "Total errors grouped by component.",
			}, []string{"component"}),
		}

		prometheus.MustRegister(
			metricsInstance.AuthRequests,
			metricsInstance.SupabaseRequests,
			metricsInstance.SupabaseLatency,
			metricsInstance.RealtimeEvents,
			metricsInstance.ProofSubmissions,
			metricsInstance.ProofUploadBytes,
			metricsInstance.Errors,
		)
	})
	return metricsInstance
}
