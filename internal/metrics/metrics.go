package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	RowsProcessed    *prometheus.CounterVec
	ProviderErrors   *prometheus.CounterVec
	RequestSeconds   *prometheus.HistogramVec
	ProviderRetries  prometheus.Counter
	InFlightRequests prometheus.Gauge
	BatchSeconds     *prometheus.HistogramVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		RowsProcessed: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "coordtrans_rows_processed_total",
			Help: "Total number of processed batch rows.",
		}, []string{"kind", "status"}),
		ProviderErrors: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "coordtrans_provider_errors_total",
			Help: "Total number of errors received from the geocoding provider API.",
		}, []string{"provider", "kind"}),
		RequestSeconds: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "coordtrans_provider_request_duration_seconds",
			Help:    "Duration of requests to the geocoding provider API.",
			Buckets: prometheus.DefBuckets,
		}, []string{"provider", "operation"}),
		ProviderRetries: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "coordtrans_provider_retries_total",
			Help: "Total number of retried provider requests.",
		}),
		InFlightRequests: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "coordtrans_inflight_requests",
			Help: "Current number of provider requests in flight.",
		}),
		BatchSeconds: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "coordtrans_batch_duration_seconds",
			Help:    "Duration of whole batch runs.",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300},
		}, []string{"kind"}),
	}
}
