// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package observability provides metrics and instrumentation for the
// impact engine.
//
// # Description
//
// This package implements Prometheus metrics for monitoring impact runs.
// Metrics include:
//   - Run counters (by trigger source and outcome)
//   - Run duration histograms
//   - Element and material-group throughput counters
//   - Warning counters by kind
//   - Active run gauge
//
// # Integration
//
// Metrics are exposed via the /metrics endpoint. Use with Prometheus +
// Grafana for dashboards and alerting.
//
// # Thread Safety
//
// All metric operations are thread-safe via Prometheus's internal locking.
package observability

import (
	"context"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// =============================================================================
// Metric Definitions
// =============================================================================

// Namespace for all metrics
const metricsNamespace = "carbonframe"

// Subsystem for impact run metrics
const runsSubsystem = "runs"

// RunMetrics holds all Prometheus metrics for impact run operations.
//
// # Description
//
// Provides counters, histograms, and gauges for monitoring run throughput
// and outcomes. Initialize once at startup via InitMetrics().
//
// # Fields
//
//   - RunsTotal: Counter of runs by trigger source and outcome
//   - RunDurationSeconds: Histogram of run duration by outcome
//   - ElementsProcessedTotal: Counter of elements that received results
//   - MaterialGroupsTotal: Counter of grade subgroups processed
//   - WarningsTotal: Counter of run warnings by kind
//   - FailuresTotal: Counter of fatal run conditions by stage
//   - ActiveRuns: Gauge of runs currently executing
//
// # Thread Safety
//
// All operations are thread-safe.
type RunMetrics struct {
	// RunsTotal counts completed runs by trigger and outcome.
	// Labels: trigger (webhook, cli), status (succeeded, failed)
	RunsTotal *prometheus.CounterVec

	// RunDurationSeconds measures end-to-end run duration.
	// Labels: status (succeeded, failed)
	RunDurationSeconds *prometheus.HistogramVec

	// ElementsProcessedTotal counts elements that received an impact result.
	ElementsProcessedTotal prometheus.Counter

	// MaterialGroupsTotal counts grade subgroups processed.
	MaterialGroupsTotal prometheus.Counter

	// WarningsTotal counts non-fatal run conditions.
	// Labels: kind (unresolved_factor, missing_quantity, other)
	WarningsTotal *prometheus.CounterVec

	// FailuresTotal counts fatal run conditions by pipeline stage.
	// Labels: stage (fetch_model, fetch_table, parse_table, classify, publish)
	FailuresTotal *prometheus.CounterVec

	// ActiveRuns tracks runs currently executing.
	ActiveRuns prometheus.Gauge
}

// DefaultMetrics is the singleton instance of RunMetrics.
// Initialized by InitMetrics().
var DefaultMetrics *RunMetrics

// InitMetrics initializes the default metrics instance.
//
// # Description
//
// Creates and registers all Prometheus metrics. Should be called once
// at application startup, after the Prometheus registry is available.
//
// # Outputs
//
//   - *RunMetrics: The initialized metrics instance.
//
// # Examples
//
//	func main() {
//	    observability.InitMetrics()
//	    // ... start server ...
//	}
//
// # Limitations
//
//   - Panics if called twice (duplicate registration).
//
// # Assumptions
//
//   - Prometheus default registry is available.
func InitMetrics() *RunMetrics {
	DefaultMetrics = &RunMetrics{
		RunsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: runsSubsystem,
				Name:      "total",
				Help:      "Total impact runs by trigger source and outcome",
			},
			[]string{"trigger", "status"},
		),

		RunDurationSeconds: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: runsSubsystem,
				Name:      "duration_seconds",
				Help:      "End-to-end impact run duration in seconds",
				Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600},
			},
			[]string{"status"},
		),

		ElementsProcessedTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: runsSubsystem,
				Name:      "elements_processed_total",
				Help:      "Total elements that received an impact result",
			},
		),

		MaterialGroupsTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: runsSubsystem,
				Name:      "material_groups_total",
				Help:      "Total grade subgroups processed across all runs",
			},
		),

		WarningsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: runsSubsystem,
				Name:      "warnings_total",
				Help:      "Total non-fatal run conditions by kind",
			},
			[]string{"kind"},
		),

		FailuresTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: runsSubsystem,
				Name:      "failures_total",
				Help:      "Total fatal run conditions by pipeline stage",
			},
			[]string{"stage"},
		),

		ActiveRuns: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: runsSubsystem,
				Name:      "active",
				Help:      "Impact runs currently executing",
			},
		),
	}

	return DefaultMetrics
}

// =============================================================================
// Label Values
// =============================================================================

// Trigger identifies what started a run, for metrics labeling.
type Trigger string

const (
	// TriggerWebhook is a run started by the model store's webhook.
	TriggerWebhook Trigger = "webhook"

	// TriggerCLI is a run started from the command line.
	TriggerCLI Trigger = "cli"
)

// WarningKind categorizes non-fatal run conditions.
type WarningKind string

const (
	// WarningUnresolvedFactor indicates a grade subgroup with no factor.
	WarningUnresolvedFactor WarningKind = "unresolved_factor"

	// WarningMissingQuantity indicates an element lacking the quantity
	// its factor calls for.
	WarningMissingQuantity WarningKind = "missing_quantity"

	// WarningOther covers warnings outside the known kinds.
	WarningOther WarningKind = "other"
)

// FailureStage identifies the pipeline stage where a run died.
type FailureStage string

const (
	StageFetchModel FailureStage = "fetch_model"
	StageFetchTable FailureStage = "fetch_table"
	StageParseTable FailureStage = "parse_table"
	StageClassify   FailureStage = "classify"
	StagePublish    FailureStage = "publish"
	StageOther      FailureStage = "other"
)

// =============================================================================
// Helper Methods
// =============================================================================

// RecordRun records a completed run.
//
// # Inputs
//
//   - trigger: What started the run.
//   - success: Whether the run published a version.
func (m *RunMetrics) RecordRun(trigger Trigger, success bool) {
	status := "succeeded"
	if !success {
		status = "failed"
	}
	m.RunsTotal.WithLabelValues(string(trigger), status).Inc()
}

// RecordRunDuration records the end-to-end run duration.
//
// # Inputs
//
//   - seconds: Run duration in seconds.
//   - success: Whether the run published a version.
func (m *RunMetrics) RecordRunDuration(seconds float64, success bool) {
	status := "succeeded"
	if !success {
		status = "failed"
	}
	m.RunDurationSeconds.WithLabelValues(status).Observe(seconds)
}

// RecordCounters adds one run's processing counts to the totals.
//
// # Inputs
//
//   - materialGroups: Grade subgroups the run processed.
//   - elements: Elements that received an impact result.
func (m *RunMetrics) RecordCounters(materialGroups, elements int) {
	m.MaterialGroupsTotal.Add(float64(materialGroups))
	m.ElementsProcessedTotal.Add(float64(elements))
}

// RecordWarning records a non-fatal run condition.
func (m *RunMetrics) RecordWarning(kind WarningKind) {
	m.WarningsTotal.WithLabelValues(string(kind)).Inc()
}

// RecordFailure records a fatal run condition.
func (m *RunMetrics) RecordFailure(stage FailureStage) {
	m.FailuresTotal.WithLabelValues(string(stage)).Inc()
}

// RunStarted increments the active runs gauge.
func (m *RunMetrics) RunStarted() {
	m.ActiveRuns.Inc()
}

// RunEnded decrements the active runs gauge.
func (m *RunMetrics) RunEnded() {
	m.ActiveRuns.Dec()
}

// =============================================================================
// Status Sink Adapter
// =============================================================================

// StatusRecorder adapts RunMetrics to the run package's status sink
// interface, so warning and outcome counts stay accurate without the
// runner knowing about Prometheus.
//
// # Description
//
// ReportWarning classifies the warning message by its known prefixes.
// Outcome counters are recorded by the handler that owns the run (it has
// the Result and the trigger source); the recorder only counts warnings,
// so composing it with handler-side recording never double-counts.
type StatusRecorder struct {
	metrics *RunMetrics
}

// NewStatusRecorder creates a sink adapter over the given metrics.
func NewStatusRecorder(metrics *RunMetrics) *StatusRecorder {
	return &StatusRecorder{metrics: metrics}
}

// ReportSuccess is a no-op; the owning handler records outcomes.
func (r *StatusRecorder) ReportSuccess(ctx context.Context, runID, message string) error {
	return nil
}

// ReportFailure is a no-op; the owning handler records outcomes.
func (r *StatusRecorder) ReportFailure(ctx context.Context, runID, message string) error {
	return nil
}

// ReportWarning counts the warning under its classified kind.
func (r *StatusRecorder) ReportWarning(ctx context.Context, runID, message string) error {
	r.metrics.RecordWarning(ClassifyWarning(message))
	return nil
}

// ClassifyWarning maps a warning message to its metrics kind.
func ClassifyWarning(message string) WarningKind {
	switch {
	case strings.HasPrefix(message, "no impact factor"):
		return WarningUnresolvedFactor
	case strings.HasPrefix(message, "element "):
		return WarningMissingQuantity
	default:
		return WarningOther
	}
}

// ClassifyFailure maps a run failure reason to the pipeline stage that
// produced it. Reasons are matched by the stable prefixes the runner
// wraps each stage error with.
func ClassifyFailure(reason string) FailureStage {
	switch {
	case strings.HasPrefix(reason, "fetching model"):
		return StageFetchModel
	case strings.HasPrefix(reason, "fetching reference table"):
		return StageFetchTable
	case strings.HasPrefix(reason, "parsing reference table"):
		return StageParseTable
	case strings.HasPrefix(reason, "subtree "), strings.HasPrefix(reason, "run cancelled"):
		return StageClassify
	case strings.HasPrefix(reason, "publishing version"):
		return StagePublish
	default:
		return StageOther
	}
}
