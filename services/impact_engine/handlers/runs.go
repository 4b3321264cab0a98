// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package handlers implements the impact engine's HTTP surface: the run
// trigger webhook, the run event feed, and health reporting.
package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/CarbonFrame/services/impact_engine/datatypes"
	"github.com/AleutianAI/CarbonFrame/services/impact_engine/observability"
	"github.com/AleutianAI/CarbonFrame/services/impact_engine/run"
)

// RunExecutor runs one impact computation through to a published model
// version. *run.Runner satisfies it; tests substitute a mock.
type RunExecutor interface {
	Execute(ctx context.Context, cfg run.Config) (*run.Result, error)
}

var _ RunExecutor = (*run.Runner)(nil)

// TriggerRun handles POST /v1/runs.
//
// # Description
//
// Accepts a run trigger (the model store's version.published webhook or
// a manual POST), validates it, and executes the run synchronously. The
// response body is the full run result in either terminal state.
//
// Status codes:
//   - 200: run succeeded and published a new model version
//   - 400: malformed or invalid request; no run started
//   - 500: run started but failed; the body carries the failed result
//
// # Inputs
//
//   - executor: Executes the run. Must not be nil.
//   - hub: Receives the run-started event. Must not be nil.
//
// # Limitations
//
//   - Runs execute on the request goroutine; the webhook caller waits
//     for the result. Retries must reuse the run_id to stay correlatable.
func TriggerRun(executor RunExecutor, hub *EventHub) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req datatypes.RunRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			slog.Warn("Rejected malformed run trigger", "error", err)
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}

		req.EnsureDefaults()
		if err := req.Validate(); err != nil {
			slog.Warn("Rejected invalid run trigger", "run_id", req.RunID, "error", err)
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid run request: " + err.Error()})
			return
		}

		slog.Info("Accepted run trigger",
			"run_id", req.RunID,
			"project_id", req.ProjectID,
			"model_id", req.ModelID,
			"reference_table_id", req.ReferenceTableID,
			"triggered_by", req.TriggeredBy,
		)

		// Track the in-flight run (for metrics)
		if m := observability.DefaultMetrics; m != nil {
			m.RunStarted()
			defer m.RunEnded()
		}

		hub.Broadcast(datatypes.NewRunEvent(req.RunID, datatypes.SeverityInfo, datatypes.RunStatusRunning,
			fmt.Sprintf("Impact run started for model %q", req.ModelID)))

		startTime := time.Now()
		result, err := executor.Execute(c.Request.Context(), run.ConfigFromRequest(req))
		if result == nil {
			// The run never started; nothing happened worth counting.
			slog.Error("Run rejected before starting", "run_id", req.RunID, "error", err)
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		// Warnings are counted by the runner's status sink as they are
		// reported; the handler records only the outcome.
		success := err == nil
		if m := observability.DefaultMetrics; m != nil {
			m.RecordRun(observability.TriggerWebhook, success)
			m.RecordRunDuration(time.Since(startTime).Seconds(), success)
			m.RecordCounters(result.Counters.MaterialGroupCount, result.Counters.ElementCount)
			if !success {
				m.RecordFailure(observability.ClassifyFailure(result.FailureReason))
			}
		}

		if !success {
			c.JSON(http.StatusInternalServerError, result)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}
