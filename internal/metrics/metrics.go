// Package metrics exposes Prometheus collectors for training and inference.
//
// Collectors are registered on the default registry at init, so the command
// line tool can serve them with promhttp without further wiring.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	EpochsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tinyfnn_train_epochs_total",
		Help: "Total number of completed training epochs",
	})

	BatchesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tinyfnn_train_batches_total",
		Help: "Total number of processed training batches",
	})

	EpochLoss = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "tinyfnn_train_loss",
		Help: "Loss measured at the end of the last epoch",
	}, []string{"split"})

	EpochDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "tinyfnn_train_epoch_duration_seconds",
		Help:    "Duration of training epochs",
		Buckets: prometheus.ExponentialBuckets(0.0001, 4, 10),
	})

	RunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tinyfnn_train_runs_total",
		Help: "Training runs by terminal state",
	}, []string{"state"})

	NumericalInstability = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tinyfnn_numerical_instability_total",
		Help: "Total number of NaN/Inf values detected",
	}, []string{"tensor", "type"})

	ArenaBytes = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "tinyfnn_arena_bytes",
		Help: "Planned working memory size in bytes",
	}, []string{"mode"})

	InferenceDuration = promauto.NewSummaryVec(prometheus.SummaryOpts{
		Name: "tinyfnn_inference_duration_seconds",
		Help: "Duration of forward passes",
	}, []string{"dtype"})
)

// RecordEpoch records one finished epoch. valLoss is ignored when hasVal is
// false.
func RecordEpoch(trainLoss, valLoss float32, hasVal bool, duration time.Duration) {
	EpochsTotal.Inc()
	EpochLoss.WithLabelValues("train").Set(float64(trainLoss))
	if hasVal {
		EpochLoss.WithLabelValues("validation").Set(float64(valLoss))
	}
	EpochDuration.Observe(duration.Seconds())
}

// RecordBatch counts one processed batch.
func RecordBatch() {
	BatchesTotal.Inc()
}

// RecordRun counts a training run that ended in state.
func RecordRun(state string) {
	RunsTotal.WithLabelValues(state).Inc()
}

// RecordNumericalInstability counts non-finite values found in a tensor.
func RecordNumericalInstability(name string, nanCount, infCount int) {
	if nanCount > 0 {
		NumericalInstability.WithLabelValues(name, "nan").Add(float64(nanCount))
	}
	if infCount > 0 {
		NumericalInstability.WithLabelValues(name, "inf").Add(float64(infCount))
	}
}

// RecordArena sets the planned arena size for mode ("inference",
// "training" or "q7").
func RecordArena(mode string, bytes int) {
	ArenaBytes.WithLabelValues(mode).Set(float64(bytes))
}

// RecordInference observes the duration of one forward pass.
func RecordInference(dtype string, duration time.Duration) {
	InferenceDuration.WithLabelValues(dtype).Observe(duration.Seconds())
}
