// Package metrics описывает метрики Prometheus веб‑интерфейса агрегатора.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "budget_aggregator"

// Исходы запроса к форме.
const (
	OutcomeForm          = "form"
	OutcomeDownload      = "download"
	OutcomeUserError     = "user_error"
	OutcomeInternalError = "internal_error"
)

// Результаты запуска агрегатора.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

// Metrics — набор метрик сервиса.
type Metrics struct {
	Requests           *prometheus.CounterVec
	AggregatorRuns     *prometheus.CounterVec
	AggregatorDuration *prometheus.HistogramVec
	UploadedFiles      prometheus.Counter
	UploadedBytes      prometheus.Counter
}

// New регистрирует метрики в reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Requests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Requests to the form endpoint by method and outcome.",
		}, []string{"method", "outcome"}),
		AggregatorRuns: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Aggregator invocations by format and result.",
		}, []string{"format", "result"}),
		AggregatorDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Aggregator wall-clock duration.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 30, 60, 120},
		}, []string{"format"}),
		UploadedFiles: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "uploaded_files_total",
			Help:      "Files staged for the aggregator.",
		}),
		UploadedBytes: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "uploaded_bytes_total",
			Help:      "Bytes staged for the aggregator.",
		}),
	}
}
