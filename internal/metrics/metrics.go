// Package metrics declares the Prometheus collectors of the upload service.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// RequestsTotal counts HTTP requests by route pattern and status.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "imgpub",
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	// RequestDuration observes HTTP handling time.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "imgpub",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"method", "route"},
	)

	// UploadsTotal counts uploads by media type and outcome.
	UploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "imgpub",
			Name:      "uploads_total",
			Help:      "Total file uploads",
		},
		[]string{"content_type", "status"},
	)

	// UploadBytesTotal counts published bytes by media type.
	UploadBytesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "imgpub",
			Name:      "upload_bytes_total",
			Help:      "Total bytes published",
		},
		[]string{"content_type"},
	)

	// PublishAttemptsTotal counts gateway attempts by endpoint and outcome.
	PublishAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "imgpub",
			Subsystem: "publish",
			Name:      "attempts_total",
			Help:      "Upload attempts against the publish gateways",
		},
		[]string{"endpoint", "outcome"},
	)

	// FailoversTotal counts switches to the backup gateway.
	FailoversTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "imgpub",
			Subsystem: "publish",
			Name:      "failovers_total",
			Help:      "Failovers to the backup gateway",
		},
	)

	// SanitizerStageSkips counts optional sanitizer stages skipped after an error.
	SanitizerStageSkips = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "imgpub",
			Subsystem: "svg",
			Name:      "stage_skips_total",
			Help:      "Sanitizer stages skipped because of an internal error",
		},
		[]string{"stage"},
	)

	// AllocationsTotal counts short link allocations by outcome.
	AllocationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "imgpub",
			Subsystem: "links",
			Name:      "allocations_total",
			Help:      "Short link allocations",
		},
		[]string{"outcome"},
	)

	// CodeCollisionsTotal counts generated codes that were already taken.
	CodeCollisionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "imgpub",
			Subsystem: "links",
			Name:      "code_collisions_total",
			Help:      "Generated short codes that collided with an existing one",
		},
	)
)

// Handler serves the default registry in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.Handler()
}
