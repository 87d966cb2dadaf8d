// Package metrics exposes Prometheus instrumentation for the detection
// pipeline. All collectors are registered at init and accessed through small
// helper functions so callers never touch label plumbing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	detectionRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "astrashield_detection_runs_total",
			Help: "Total conjunction detection runs by outcome.",
		},
		[]string{"outcome"},
	)

	detectionDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "astrashield_detection_duration_seconds",
			Help:    "Wall time of a full conjunction detection run.",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		},
	)

	conjunctionsDetectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "astrashield_conjunctions_detected_total",
			Help: "Conjunctions persisted, by risk level.",
		},
		[]string{"risk_level"},
	)

	propagationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "astrashield_propagations_total",
			Help: "Object trajectory propagations by result.",
		},
		[]string{"result"},
	)

	propagationDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "astrashield_propagation_batch_duration_seconds",
			Help:    "Duration of a batch trajectory sampling pass.",
			Buckets: prometheus.DefBuckets,
		},
	)

	pcComputeDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "astrashield_pc_compute_duration_seconds",
			Help:    "Duration of a single collision probability computation.",
			Buckets: prometheus.ExponentialBuckets(1e-5, 4, 10),
		},
	)

	pcValue = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name: "astrashield_pc_value",
			Help: "Distribution of computed collision probabilities.",
			Buckets: []float64{
				1e-9, 1e-8, 1e-7, 1e-6, 1e-5, 1e-4, 1e-3, 1e-2, 1e-1, 1,
			},
		},
	)

	storeOpsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "astrashield_store_operations_total",
			Help: "Object store operations by operation and result.",
		},
		[]string{"op", "result"},
	)

	reentryPredictionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "astrashield_reentry_predictions_total",
			Help: "Reentry predictions by status.",
		},
		[]string{"status"},
	)

	alertsPublishedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "astrashield_alerts_published_total",
			Help: "Alert bus publishes by subject class and result.",
		},
		[]string{"class", "result"},
	)

	trackedObjects = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "astrashield_tracked_objects",
			Help: "Objects in the most recent detection snapshot.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		detectionRunsTotal,
		detectionDurationSeconds,
		conjunctionsDetectedTotal,
		propagationsTotal,
		propagationDurationSeconds,
		pcComputeDurationSeconds,
		pcValue,
		storeOpsTotal,
		reentryPredictionsTotal,
		alertsPublishedTotal,
		trackedObjects,
	)
}

// Detection run outcomes. These are the only values RecordDetectionRun
// accepts; the duration histogram observes completed runs only.
const (
	OutcomeOK        = "ok"
	OutcomeError     = "error"
	OutcomeCanceled  = "canceled"
	OutcomeCoalesced = "coalesced"
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordDetectionRun records the outcome and duration of a detection run.
func RecordDetectionRun(outcome string, d time.Duration) {
	detectionRunsTotal.WithLabelValues(outcome).Inc()
	if outcome == OutcomeOK {
		detectionDurationSeconds.Observe(d.Seconds())
	}
}

// IncConjunctions counts persisted conjunctions at the given risk level.
func IncConjunctions(riskLevel string, n int) {
	conjunctionsDetectedTotal.WithLabelValues(riskLevel).Add(float64(n))
}

// RecordPropagation records a batch sampling pass.
func RecordPropagation(d time.Duration, success, failed int) {
	propagationDurationSeconds.Observe(d.Seconds())
	propagationsTotal.WithLabelValues("ok").Add(float64(success))
	propagationsTotal.WithLabelValues("error").Add(float64(failed))
}

// ObservePc records a collision probability computation.
func ObservePc(pc float64, d time.Duration) {
	pcValue.Observe(pc)
	pcComputeDurationSeconds.Observe(d.Seconds())
}

// RecordStoreOp counts one store operation.
func RecordStoreOp(op string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	storeOpsTotal.WithLabelValues(op, result).Inc()
}

// RecordReentryPrediction counts one reentry prediction by status.
func RecordReentryPrediction(status string) {
	reentryPredictionsTotal.WithLabelValues(status).Inc()
}

// RecordAlertPublish counts one alert publish attempt.
func RecordAlertPublish(class string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	alertsPublishedTotal.WithLabelValues(class, result).Inc()
}

// SetTrackedObjects publishes the current snapshot population size.
func SetTrackedObjects(n int) {
	trackedObjects.Set(float64(n))
}
