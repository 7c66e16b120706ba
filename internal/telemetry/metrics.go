// Package telemetry provides logging setup and run metrics for moviecheck.
//
// # Metrics
//
// A verification run is a short-lived process, so nothing is scraped. Metrics are
// registered against the default Prometheus registry while the run executes and
// exported once it ends, through either or both of:
//
//   - a textfile in Prometheus exposition format (telemetry.metrics.textfile), suitable
//     for the node_exporter textfile collector;
//   - a push to a Pushgateway (telemetry.metrics.pushgateway_url), grouped by run ID.
//
// # Metric Groups
//
//   - Step counters and latency histograms, labelled by step name and outcome
//   - Run result and duration gauges
//   - Bootstrap, shipper and artifact upload counters
//
// Step names come from a fixed plan, so label cardinality is bounded.
package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Step outcomes used as the "outcome" label value.
const (
	OutcomePass  = "pass"
	OutcomeFail  = "fail"
	OutcomeError = "error"
)

// Step metrics, labelled by step name.
//
// StepsTotal is a CounterVec with labels {step, outcome}. outcome is "pass", "fail"
// (unexpected status or field mismatch) or "error" (transport failure).
//
// Example PromQL queries:
//   - Failing steps across runs:  sum by (step) (moviecheck_steps_total{outcome!="pass"})
//
// StepDuration is a HistogramVec with label {step} and buckets from 5 ms to 30 s.
//
// Example PromQL queries:
//   - Slowest step:  topk(1, moviecheck_step_duration_seconds_sum / moviecheck_step_duration_seconds_count)
var (
	StepsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "moviecheck_steps_total",
			Help: "Total number of verification steps executed, by step name and outcome.",
		},
		[]string{"step", "outcome"},
	)

	StepDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "moviecheck_step_duration_seconds",
			Help:    "Histogram of verification step latencies, by step name.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"step"},
	)
)

// Run metrics, set once when the run ends.
//
// RunSuccess is 1 when every step passed and 0 otherwise. Alert on
// moviecheck_run_success == 0 from the Pushgateway or textfile collector.
var (
	RunSuccess = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "moviecheck_run_success",
			Help: "1 if the last verification run passed every step, 0 otherwise.",
		},
	)

	RunDuration = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "moviecheck_run_duration_seconds",
			Help: "Wall-clock duration of the last verification run.",
		},
	)

	RunTimestamp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "moviecheck_run_timestamp_seconds",
			Help: "Unix time at which the last verification run finished.",
		},
	)
)

// BootstrapTotal counts container recreation attempts by outcome ("pass" or "fail").
var BootstrapTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "moviecheck_bootstrap_total",
		Help: "Total number of dependency container recreation attempts, by outcome.",
	},
	[]string{"outcome"},
)

// ShipperErrorsTotal counts results a shipper failed to deliver, by shipper type.
var ShipperErrorsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "moviecheck_shipper_errors_total",
		Help: "Total number of results that could not be shipped, by shipper type.",
	},
	[]string{"shipper"},
)

// ArtifactUploadsTotal counts transcript uploads, by storage backend and outcome.
var ArtifactUploadsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "moviecheck_artifact_uploads_total",
		Help: "Total number of run transcript uploads, by storage backend and outcome.",
	},
	[]string{"backend", "outcome"},
)

// ObserveStep records one executed step.
func ObserveStep(step, outcome string, d time.Duration) {
	StepsTotal.WithLabelValues(step, outcome).Inc()
	StepDuration.WithLabelValues(step).Observe(d.Seconds())
}

// ObserveRun records the end of a run.
func ObserveRun(passed bool, d time.Duration) {
	if passed {
		RunSuccess.Set(1)
	} else {
		RunSuccess.Set(0)
	}
	RunDuration.Set(d.Seconds())
	RunTimestamp.SetToCurrentTime()
}
