// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package run

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/CarbonFrame/services/impact_engine/calc"
	"github.com/AleutianAI/CarbonFrame/services/impact_engine/classify"
	"github.com/AleutianAI/CarbonFrame/services/impact_engine/datatypes"
	"github.com/AleutianAI/CarbonFrame/services/impact_engine/modelstore"
	"github.com/AleutianAI/CarbonFrame/services/impact_engine/reference"
	"github.com/AleutianAI/CarbonFrame/services/impact_engine/resolve"
)

var tracer = otel.Tracer("carbonframe.run")

// ModelStore is the slice of the store client the runner depends on.
type ModelStore interface {
	FetchModel(ctx context.Context, projectID, modelID string) (*modelstore.ModelSnapshot, error)
	FetchReferenceTable(ctx context.Context, projectID, tableID string) ([]byte, error)
	PublishVersion(ctx context.Context, projectID, modelID string, graph *datatypes.ModelGraph, message string) (string, error)
}

var _ ModelStore = (*modelstore.Client)(nil)

// Runner drives impact runs against the model store.
//
// # Description
//
// Runner combines model fetching, reference parsing, classification,
// factor resolution, calculation, and publishing into a single pipeline.
//
// # Thread Safety
//
// Runner is safe for concurrent use.
type Runner struct {
	store  ModelStore
	parser *reference.Parser
	sink   StatusSink
	logger *slog.Logger
}

// NewRunner creates a new Runner.
//
// # Inputs
//
//   - store: The model store client. Must not be nil.
//   - sink: Status sink for run outcomes. Nil falls back to a SlogSink.
//   - logger: Structured logger. Nil falls back to slog.Default().
//
// # Outputs
//
//   - *Runner: The runner instance.
func NewRunner(store ModelStore, sink StatusSink, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	if sink == nil {
		sink = NewSlogSink(logger)
	}
	return &Runner{
		store:  store,
		parser: reference.NewParser(logger),
		sink:   sink,
		logger: logger,
	}
}

// Execute performs one impact run based on the configuration.
//
// # Description
//
// Performs the following steps:
// 1. Fetch the latest model graph from the store
// 2. Fetch and parse the reference factor dataset
// 3. Classify, resolve, and calculate over every subtree in sequence
// 4. Publish the modified graph as a new model version
// 5. Report the outcome through the status sink
//
// A fatal condition at any step aborts the run without publishing. The
// returned Result is non-nil whenever a run was started; on failure its
// Status is failed, its FailureReason is set, and the error is also
// returned so callers can branch on either.
//
// # Inputs
//
//   - ctx: Context for cancellation. Must not be nil.
//   - cfg: Run configuration.
//
// # Outputs
//
//   - *Result: The run outcome, nil only when the run never started.
//   - error: Non-nil if the run failed or the configuration is invalid.
//
// # Thread Safety
//
// Safe for concurrent use.
func (r *Runner) Execute(ctx context.Context, cfg Config) (*Result, error) {
	if ctx == nil {
		return nil, fmt.Errorf("ctx must not be nil")
	}

	cfg.EnsureDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	start := time.Now()
	result := NewResult(cfg.RunID)

	ctx, span := tracer.Start(ctx, "run.Execute",
		trace.WithAttributes(
			attribute.String("run.id", cfg.RunID),
			attribute.String("run.project_id", cfg.ProjectID),
			attribute.String("run.model_id", cfg.ModelID),
			attribute.String("run.reference_table_id", cfg.ReferenceTableID),
		),
	)
	defer span.End()

	r.logger.Info("Starting impact run",
		"run_id", cfg.RunID,
		"project_id", cfg.ProjectID,
		"model_id", cfg.ModelID,
		"reference_table_id", cfg.ReferenceTableID,
		"triggered_by", cfg.TriggeredBy,
	)

	// Step 1: Fetch the model graph
	fetchCtx, fetchSpan := tracer.Start(ctx, "run.fetch_model")
	snap, err := r.store.FetchModel(fetchCtx, cfg.ProjectID, cfg.ModelID)
	endStage(fetchSpan, err)
	if err != nil {
		return r.fail(ctx, result, start, fmt.Errorf("fetching model: %w", err))
	}
	result.ModelName = snap.ModelName
	result.SourceVersionID = snap.VersionID

	// Step 2: Fetch and parse the reference dataset
	tableCtx, tableSpan := tracer.Start(ctx, "run.fetch_reference")
	raw, err := r.store.FetchReferenceTable(tableCtx, cfg.ProjectID, cfg.ReferenceTableID)
	endStage(tableSpan, err)
	if err != nil {
		return r.fail(ctx, result, start, fmt.Errorf("fetching reference table: %w", err))
	}

	_, parseSpan := tracer.Start(ctx, "run.parse_reference")
	table, err := r.parser.Parse(raw)
	endStage(parseSpan, err)
	if err != nil {
		return r.fail(ctx, result, start, fmt.Errorf("parsing reference table: %w", err))
	}

	// Step 3: Process every subtree in sequence
	computeCtx, computeSpan := tracer.Start(ctx, "run.compute")
	err = r.computeAll(computeCtx, result, snap.Graph, table)
	endStage(computeSpan, err)
	if err != nil {
		return r.fail(ctx, result, start, err)
	}

	// Step 4: Publish the modified graph as a new version
	publishCtx, publishSpan := tracer.Start(ctx, "run.publish")
	versionID, err := r.store.PublishVersion(publishCtx, cfg.ProjectID, cfg.ModelID, snap.Graph, cfg.VersionMessage)
	endStage(publishSpan, err)
	if err != nil {
		return r.fail(ctx, result, start, fmt.Errorf("publishing version: %w", err))
	}
	result.PublishedVersionID = versionID

	// Step 5: Report success
	result.Status = datatypes.RunStatusSucceeded
	result.DurationMs = time.Since(start).Milliseconds()

	span.SetAttributes(
		attribute.Int("run.material_groups", result.Counters.MaterialGroupCount),
		attribute.Int("run.elements", result.Counters.ElementCount),
		attribute.Int("run.warnings", len(result.Warnings)),
	)
	span.SetStatus(codes.Ok, "")

	if err := r.sink.ReportSuccess(ctx, result.RunID, result.Summary()); err != nil {
		r.logger.Warn("Status sink rejected success report", "run_id", result.RunID, "error", err)
	}

	r.logger.Info("Impact run succeeded",
		"run_id", result.RunID,
		"published_version_id", versionID,
		"material_groups", result.Counters.MaterialGroupCount,
		"elements", result.Counters.ElementCount,
		"warnings", len(result.Warnings),
		"duration_ms", result.DurationMs,
	)

	return result, nil
}

// computeAll classifies and computes every non-empty subtree in sequence,
// checking for cancellation between subtrees.
func (r *Runner) computeAll(ctx context.Context, result *Result, graph *datatypes.ModelGraph, table datatypes.FactorTable) error {
	for _, subtree := range graph.Subtrees {
		if subtree == nil || subtree.IsEmpty() {
			r.logger.Debug("Skipping empty subtree", "run_id", result.RunID)
			continue
		}

		if err := r.processSubtree(ctx, result, subtree, table); err != nil {
			return fmt.Errorf("subtree %q: %w", subtree.ID, err)
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("run cancelled: %w", ctx.Err())
		default:
		}
	}
	return nil
}

// processSubtree classifies one subtree and computes impacts for every
// resolved material group. Counters accumulate on the shared result.
func (r *Runner) processSubtree(ctx context.Context, result *Result, subtree *datatypes.StructuralSubtree, table datatypes.FactorTable) error {
	groups, err := classify.Classify(subtree.Elements)
	if err != nil {
		return err
	}

	resolved, warnings := resolve.Resolve(groups, table)
	r.warn(ctx, result, warnings)

	for _, group := range resolved {
		result.Counters.MaterialGroupCount++
		if group.Factor == nil {
			continue
		}

		applied, warns := calc.ApplyGroup(group.Elements, *group.Factor)
		result.Counters.ElementCount += applied
		r.warn(ctx, result, warns)
	}

	return nil
}

// warn records warnings on the result and forwards them to the sink.
func (r *Runner) warn(ctx context.Context, result *Result, warnings []string) {
	for _, w := range warnings {
		result.addWarnings(w)
		if err := r.sink.ReportWarning(ctx, result.RunID, w); err != nil {
			r.logger.Warn("Status sink rejected warning report", "run_id", result.RunID, "error", err)
		}
	}
}

// endStage closes a stage span, recording err when non-nil.
func endStage(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// fail finalizes the result as failed and reports through the sink. The
// cause is returned unchanged so callers can unwrap it.
func (r *Runner) fail(ctx context.Context, result *Result, start time.Time, cause error) (*Result, error) {
	result.Status = datatypes.RunStatusFailed
	result.FailureReason = cause.Error()
	result.DurationMs = time.Since(start).Milliseconds()

	span := trace.SpanFromContext(ctx)
	span.RecordError(cause)
	span.SetStatus(codes.Error, cause.Error())

	if err := r.sink.ReportFailure(ctx, result.RunID, cause.Error()); err != nil {
		r.logger.Warn("Status sink rejected failure report", "run_id", result.RunID, "error", err)
	}

	r.logger.Error("Impact run failed",
		"run_id", result.RunID,
		"reason", cause.Error(),
		"duration_ms", result.DurationMs,
	)

	return result, cause
}
