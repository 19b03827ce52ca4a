package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	PipelineRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "globo_pipeline_requests_total",
		Help: "Simplify/count requests issued by the viewer",
	}, []string{"kind"})
	PipelineResponsesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "globo_pipeline_responses_total",
		Help: "Simplify/count responses by outcome (applied, failed, stale, discarded)",
	}, []string{"kind", "outcome"})
	PipelineDurationMs = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "globo_pipeline_duration_ms",
		Help:    "Backend round trip in milliseconds",
		Buckets: []float64{5, 10, 20, 50, 100, 200, 500, 1000, 5000},
	}, []string{"kind"})
	LayersCreatedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "globo_layers_created_total",
		Help: "Overlay layers attached to the map",
	})
	LayersRemovedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "globo_layers_removed_total",
		Help: "Overlay layers detached from the map",
	})
	LayerErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "globo_layer_errors_total",
		Help: "Overlay constructions that failed",
	})
	BackendRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "globo_backend_requests_total",
		Help: "Simplify/count requests served by the embedded backend",
	}, []string{"endpoint", "status"})
	CellsScannedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "globo_backend_cells_scanned_total",
		Help: "Cell rows examined while counting",
	})
)

func init() {
	prometheus.MustRegister(PipelineRequestsTotal)
	prometheus.MustRegister(PipelineResponsesTotal)
	prometheus.MustRegister(PipelineDurationMs)
	prometheus.MustRegister(LayersCreatedTotal)
	prometheus.MustRegister(LayersRemovedTotal)
	prometheus.MustRegister(LayerErrorsTotal)
	prometheus.MustRegister(BackendRequestsTotal)
	prometheus.MustRegister(CellsScannedTotal)
}

// Handler exposes the registered metrics for scraping
func Handler() http.Handler { return promhttp.Handler() }
