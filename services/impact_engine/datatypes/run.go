// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package datatypes provides type definitions for the CarbonFrame impact engine.
//
// This file contains the request type that triggers an impact run and the
// counters accumulated while one executes. For run execution and results,
// see the run package.
package datatypes

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/AleutianAI/CarbonFrame/pkg/validation"
)

// =============================================================================
// Constants for Request Limits
// =============================================================================

const (
	// MaxResourceIDLength is the maximum length of a project, model, or
	// reference table identifier. Matches the model store's own limit.
	MaxResourceIDLength = 128

	// MaxTriggeredByBytes is the maximum size of the triggered_by field.
	// Keeps webhook payloads from smuggling arbitrary blobs into logs.
	MaxTriggeredByBytes = 256
)

// =============================================================================
// Shared Validator Instance
// =============================================================================

// runValidate is the validator instance for run datatypes.
// Initialized in init() with custom validators.
var runValidate *validator.Validate

func init() {
	runValidate = validator.New()

	// Register custom validator for store-safe resource identifiers
	_ = runValidate.RegisterValidation("resourceid", validateResourceIDField)
}

// validateResourceIDField validates that a string field is a store-safe
// resource identifier.
//
// # Description
//
// Custom validator bridging to pkg/validation. Identifiers are
// interpolated into model store request paths, so the charset is
// restricted to prevent path traversal and URL injection.
//
// # Inputs
//
//   - fl: Validator field level containing the string to validate
//
// # Outputs
//
//   - bool: true if the identifier passes validation.ValidateResourceID
func validateResourceIDField(fl validator.FieldLevel) bool {
	return validation.ValidateResourceID(fl.Field().String()) == nil
}

// =============================================================================
// Run Request Types
// =============================================================================

// RunRequest represents an impact run trigger request body.
//
// # Description
//
// RunRequest names the model to process and the reference table to price
// it against. It is the body of POST /v1/runs, sent by the model store's
// version-published webhook or constructed locally by the CLI. Every
// request carries a unique ID and timestamp for audit trails and event
// correlation.
//
// # Fields
//
//   - RunID: Optional. Unique identifier for this run (UUID v4).
//     Generated server-side when absent. Used for event correlation
//     and audit logging.
//   - ProjectID: Required. The project that owns both the model and the
//     reference table.
//   - ModelID: Required. The structural model whose latest version is
//     processed.
//   - ReferenceTableID: Required. The dataset holding the impact factor
//     table.
//   - TriggeredBy: Optional. Free-form description of the trigger source
//     ("webhook:version.published", "cli:jdoe"). Limited to 256 bytes.
//   - Timestamp: Optional. Unix timestamp in milliseconds (UTC) when the
//     trigger fired. Populated server-side when absent.
//
// # Validation
//
// Uses go-playground/validator:
//   - RunID: optional, must be valid UUID v4 when present
//   - ProjectID, ModelID, ReferenceTableID: required, store-safe
//     identifiers (1-128 chars, alphanumeric plus dot/underscore/hyphen)
//   - TriggeredBy: max 256 bytes
//   - Timestamp: must be > 0 when present
//
// # Examples
//
//	req := RunRequest{
//	    ProjectID:        "p-housing-02",
//	    ModelID:          "tower-north",
//	    ReferenceTableID: "epd-2025-q3",
//	    TriggeredBy:      "webhook:version.published",
//	}
//
// # Limitations
//
//   - One model per run; batch triggers send one request per model
//   - No way to pin a specific model version; the latest is processed
//
// # Assumptions
//
//   - The reference table lives in the same project as the model
type RunRequest struct {
	RunID            string `json:"run_id,omitempty" validate:"omitempty,uuid4"`
	ProjectID        string `json:"project_id" validate:"required,resourceid"`
	ModelID          string `json:"model_id" validate:"required,resourceid"`
	ReferenceTableID string `json:"reference_table_id" validate:"required,resourceid"`
	TriggeredBy      string `json:"triggered_by,omitempty" validate:"omitempty,max=256"`
	Timestamp        int64  `json:"timestamp,omitempty" validate:"omitempty,gt=0"`
}

// Validate validates the RunRequest fields.
//
// # Description
//
// Performs validation using go-playground/validator tags and custom
// validators. Call after binding the JSON request.
//
// # Outputs
//
//   - error: Non-nil if validation failed, with details about which field
//
// # Examples
//
//	if err := req.Validate(); err != nil {
//	    return fmt.Errorf("invalid request: %w", err)
//	}
func (r *RunRequest) Validate() error {
	return runValidate.Struct(r)
}

// EnsureDefaults populates default values for optional fields.
//
// # Description
//
// Generates RunID and Timestamp if not provided by the caller. This
// ensures every run has proper identifiers for event correlation before
// any work starts.
//
// # Examples
//
//	req := &RunRequest{ProjectID: "p1", ModelID: "m1", ReferenceTableID: "t1"}
//	req.EnsureDefaults()
//	// req.RunID is now a UUID
//	// req.Timestamp is now a Unix timestamp
func (r *RunRequest) EnsureDefaults() {
	if r.RunID == "" {
		r.RunID = uuid.New().String()
	}
	if r.Timestamp == 0 {
		r.Timestamp = time.Now().UnixMilli()
	}
}

// =============================================================================
// Run Status and Counters
// =============================================================================

// RunStatus is the terminal or in-flight state of an impact run.
type RunStatus string

const (
	// RunStatusRunning indicates the run is still processing subtrees.
	RunStatusRunning RunStatus = "running"

	// RunStatusSucceeded indicates the run completed and a new model
	// version was published.
	RunStatusSucceeded RunStatus = "succeeded"

	// RunStatusFailed indicates the run hit a fatal condition; no
	// version was published.
	RunStatusFailed RunStatus = "failed"
)

// validRunStatuses contains all valid RunStatus values.
var validRunStatuses = map[RunStatus]bool{
	RunStatusRunning:   true,
	RunStatusSucceeded: true,
	RunStatusFailed:    true,
}

// IsValid checks if the RunStatus is a valid value.
func (s RunStatus) IsValid() bool {
	return validRunStatuses[s]
}

// IsTerminal reports whether the status ends a run.
func (s RunStatus) IsTerminal() bool {
	return s == RunStatusSucceeded || s == RunStatusFailed
}

// RunCounters accumulates processing counts across one run.
//
// # Description
//
// MaterialGroupCount counts every grade subgroup processed across all
// subtrees. ElementCount counts every element that actually received an
// impact result; elements skipped for missing quantities or unresolved
// factors do not increment it.
//
// # Fields
//
//   - MaterialGroupCount: Grade subgroups processed
//   - ElementCount: Elements that received an impact result
type RunCounters struct {
	MaterialGroupCount int `json:"material_group_count"`
	ElementCount       int `json:"element_count"`
}
