package app

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/jsamuelsen/print-quote-service/internal/domain"
)

const metricsNamespace = "print_quote"

// Failure reasons recorded on quote_submissions_failed_total.
const (
	ReasonValidation  = "validation"
	ReasonProcessing  = "processing"
	ReasonUnavailable = "unavailable"
	ReasonInternal    = "internal"
)

// Metrics holds the quoting collectors exposed on /-/metrics.
type Metrics struct {
	QuotesCreated     *prometheus.CounterVec
	SubmissionsFailed *prometheus.CounterVec
	AnalysisDuration  prometheus.Histogram
	QuoteTotal        prometheus.Histogram
	TempFilesCleaned  prometheus.Counter
}

// NewMetrics registers the quoting collectors with reg. A nil registerer
// yields collectors that are not registered anywhere, which is what tests use.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		QuotesCreated: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "quotes_created_total",
			Help:      "Quotes created, by shipping size.",
		}, []string{"shipping_size"}),
		SubmissionsFailed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "quote_submissions_failed_total",
			Help:      "Quote submissions rejected or failed, by reason.",
		}, []string{"reason"}),
		AnalysisDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "mesh_analysis_duration_seconds",
			Help:      "Time spent loading and measuring a single mesh.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
		}),
		QuoteTotal: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "quote_total_usd",
			Help:      "Distribution of created quote totals.",
			Buckets:   []float64{20, 50, 100, 250, 500, 1000, 2500, 10000},
		}),
		TempFilesCleaned: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "temp_files_cleaned_total",
			Help:      "Staged upload files removed.",
		}),
	}
}

// failureReason classifies err for the failed-submission counter.
func failureReason(err error) string {
	switch {
	case domain.IsValidation(err):
		return ReasonValidation
	case domain.IsProcessing(err):
		return ReasonProcessing
	case domain.IsUnavailable(err):
		return ReasonUnavailable
	default:
		return ReasonInternal
	}
}

// RegisterPendingCleanups exposes the number of delayed cleanups waiting to
// fire. A nil registerer returns an unregistered gauge.
func RegisterPendingCleanups(reg prometheus.Registerer, artifacts *ArtifactManager) prometheus.GaugeFunc {
	return promauto.With(reg).NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Name:      "temp_cleanups_pending",
		Help:      "Delayed upload cleanups scheduled and not yet run.",
	}, func() float64 {
		return float64(artifacts.Pending())
	})
}
