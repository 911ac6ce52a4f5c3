// Package metrics exposes Prometheus collectors for the harvest engine.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	harvestPagesTotal     *prometheus.CounterVec
	harvestDocumentsTotal prometheus.Counter
	harvestFetchErrors    prometheus.Counter
	harvestDegradedTotal  prometheus.Counter
	harvestRetriesTotal   prometheus.Counter

	once sync.Once
)

// Init initializes the Prometheus collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		harvestPagesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvest_pages_total",
				Help: "Total number of pages processed, labeled by status.",
			},
			[]string{"status"},
		)

		harvestDocumentsTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "harvest_documents_total",
				Help: "Total number of documents downloaded.",
			},
		)

		harvestFetchErrors = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "harvest_fetch_errors_total",
				Help: "Total number of fetch or render failures.",
			},
		)

		harvestDegradedTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "harvest_degraded_renders_total",
				Help: "Total number of renders accepted without reaching network quiescence.",
			},
		)

		harvestRetriesTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "harvest_render_retries_total",
				Help: "Total number of degraded-mode render retries.",
			},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObservePage increments the page counter for the given status.
func ObservePage(status string) {
	if harvestPagesTotal != nil {
		harvestPagesTotal.WithLabelValues(status).Inc()
	}
}

// ObserveDocument increments the downloaded documents counter.
func ObserveDocument() {
	if harvestDocumentsTotal != nil {
		harvestDocumentsTotal.Inc()
	}
}

// ObserveFetchError increments the fetch error counter.
func ObserveFetchError() {
	if harvestFetchErrors != nil {
		harvestFetchErrors.Inc()
	}
}

// ObserveDegradedRender increments the degraded render counter.
func ObserveDegradedRender() {
	if harvestDegradedTotal != nil {
		harvestDegradedTotal.Inc()
	}
}

// ObserveRenderRetry increments the render retry counter.
func ObserveRenderRetry() {
	if harvestRetriesTotal != nil {
		harvestRetriesTotal.Inc()
	}
}
