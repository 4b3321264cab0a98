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
	"fmt"

	"github.com/google/uuid"

	"github.com/AleutianAI/CarbonFrame/pkg/validation"
	"github.com/AleutianAI/CarbonFrame/services/impact_engine/datatypes"
)

// APIVersion is the JSON output API version.
const APIVersion = "1.0"

// Exit codes for impact runs.
const (
	ExitSuccess   = 0 // Run succeeded, new version published
	ExitRunFailed = 1 // Run started but ended in failure
	ExitError     = 2 // Invocation error (bad flags, invalid configuration)
)

// DefaultVersionMessage is the version message used when the caller does
// not provide one.
const DefaultVersionMessage = "Embodied carbon results attached"

// Config holds configuration for one impact run.
//
// # Fields
//
//   - ProjectID: Project that owns the model and the reference table.
//   - ModelID: Model whose latest version is processed.
//   - ReferenceTableID: Dataset holding the impact factor table.
//   - RunID: Unique run identifier. Generated when empty.
//   - TriggeredBy: Free-form trigger description for audit logging.
//   - VersionMessage: Message attached to the published version.
type Config struct {
	ProjectID        string
	ModelID          string
	ReferenceTableID string
	RunID            string
	TriggeredBy      string
	VersionMessage   string
}

// DefaultConfig returns a Config with defaults for optional fields.
func DefaultConfig() Config {
	return Config{
		VersionMessage: DefaultVersionMessage,
	}
}

// ConfigFromRequest builds a run Config from a validated trigger request.
func ConfigFromRequest(req datatypes.RunRequest) Config {
	cfg := DefaultConfig()
	cfg.ProjectID = req.ProjectID
	cfg.ModelID = req.ModelID
	cfg.ReferenceTableID = req.ReferenceTableID
	cfg.RunID = req.RunID
	cfg.TriggeredBy = req.TriggeredBy
	return cfg
}

// EnsureDefaults fills optional fields so every run is correlatable.
func (c *Config) EnsureDefaults() {
	if c.RunID == "" {
		c.RunID = uuid.New().String()
	}
	if c.VersionMessage == "" {
		c.VersionMessage = DefaultVersionMessage
	}
}

// Validate checks the identifiers the run will hand to the model store.
func (c Config) Validate() error {
	if err := validation.ValidateResourceIDs(c.ProjectID, c.ModelID, c.ReferenceTableID); err != nil {
		return fmt.Errorf("run config: %w", err)
	}
	return nil
}

// Result holds the outcome of one impact run.
type Result struct {
	APIVersion         string                `json:"api_version"`
	RunID              string                `json:"run_id"`
	Status             datatypes.RunStatus   `json:"status"`
	ModelName          string                `json:"model_name,omitempty"`
	SourceVersionID    string                `json:"source_version_id,omitempty"`
	PublishedVersionID string                `json:"published_version_id,omitempty"`
	Counters           datatypes.RunCounters `json:"counters"`
	Warnings           []string              `json:"warnings,omitempty"`
	FailureReason      string                `json:"failure_reason,omitempty"`
	DurationMs         int64                 `json:"duration_ms"`
}

// NewResult creates a Result in the running state.
func NewResult(runID string) *Result {
	return &Result{
		APIVersion: APIVersion,
		RunID:      runID,
		Status:     datatypes.RunStatusRunning,
		Warnings:   make([]string, 0),
	}
}

// addWarnings appends warnings to the result.
func (r *Result) addWarnings(warnings ...string) {
	r.Warnings = append(r.Warnings, warnings...)
}

// Summary returns a human-readable summary of the run.
func (r *Result) Summary() string {
	switch r.Status {
	case datatypes.RunStatusSucceeded:
		return fmt.Sprintf("Computed embodied carbon for %d elements across %d material groups.",
			r.Counters.ElementCount, r.Counters.MaterialGroupCount)
	case datatypes.RunStatusFailed:
		return fmt.Sprintf("Run failed: %s", r.FailureReason)
	default:
		return "Run in progress."
	}
}

// ExitCode maps the run outcome to a process exit code.
func (r *Result) ExitCode() int {
	if r.Status == datatypes.RunStatusSucceeded {
		return ExitSuccess
	}
	return ExitRunFailed
}
