// Package metrics 定义 tabrec 的 Prometheus 指标（promauto 注册到默认 registry）。
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// 训练
	TrainingRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tabrec_training_runs_total",
			Help: "Total number of training runs by model kind and outcome",
		},
		[]string{"kind", "outcome"},
	)

	TrainingDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tabrec_training_duration_seconds",
			Help:    "Duration of training runs in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 300},
		},
		[]string{"kind"},
	)

	// 预测
	Predictions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tabrec_predictions_total",
			Help: "Total number of predictions by model kind and outcome",
		},
		[]string{"kind", "outcome"},
	)

	PredictionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tabrec_prediction_duration_seconds",
			Help:    "Duration of predictions in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind"},
	)

	NodeDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tabrec_pipeline_node_duration_seconds",
			Help:    "Duration of serving pipeline nodes in seconds",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		},
		[]string{"node", "kind"},
	)

	// bundle 加载与缓存
	BundleLoads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tabrec_bundle_loads_total",
			Help: "Total number of artifact bundle loads by outcome",
		},
		[]string{"outcome"},
	)

	BundleCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tabrec_bundle_cache_hits_total",
			Help: "Total number of bundle cache hits",
		},
	)

	BundleCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tabrec_bundle_cache_misses_total",
			Help: "Total number of bundle cache misses",
		},
	)
)

// Outcome 把 error 映射为 outcome 标签值。
func Outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// RecordTraining 记录一次训练。
func RecordTraining(kind string, d time.Duration, err error) {
	TrainingRuns.WithLabelValues(kind, Outcome(err)).Inc()
	TrainingDuration.WithLabelValues(kind).Observe(d.Seconds())
}

// RecordPrediction 记录一次预测。
func RecordPrediction(kind string, d time.Duration, failed bool) {
	outcome := "ok"
	if failed {
		outcome = "error"
	}
	Predictions.WithLabelValues(kind, outcome).Inc()
	PredictionDuration.WithLabelValues(kind).Observe(d.Seconds())
}
