// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package datatypes

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// RunRequest Validation Tests
// =============================================================================

func validRunRequest() *RunRequest {
	return &RunRequest{
		RunID:            uuid.New().String(),
		ProjectID:        "p-housing-02",
		ModelID:          "tower-north",
		ReferenceTableID: "epd-2025-q3",
		TriggeredBy:      "webhook:version.published",
		Timestamp:        time.Now().UnixMilli(),
	}
}

func TestRunRequest_Validate_Success(t *testing.T) {
	req := validRunRequest()

	if err := req.Validate(); err != nil {
		t.Errorf("expected valid request, got error: %v", err)
	}
}

func TestRunRequest_Validate_OptionalFieldsAbsent(t *testing.T) {
	req := &RunRequest{
		ProjectID:        "p1",
		ModelID:          "m1",
		ReferenceTableID: "t1",
	}

	if err := req.Validate(); err != nil {
		t.Errorf("expected valid request without optional fields, got error: %v", err)
	}
}

func TestRunRequest_Validate_MissingProjectID(t *testing.T) {
	req := validRunRequest()
	req.ProjectID = ""

	if err := req.Validate(); err == nil {
		t.Error("expected error for missing project_id, got nil")
	}
}

func TestRunRequest_Validate_MissingModelID(t *testing.T) {
	req := validRunRequest()
	req.ModelID = ""

	if err := req.Validate(); err == nil {
		t.Error("expected error for missing model_id, got nil")
	}
}

func TestRunRequest_Validate_MissingReferenceTableID(t *testing.T) {
	req := validRunRequest()
	req.ReferenceTableID = ""

	if err := req.Validate(); err == nil {
		t.Error("expected error for missing reference_table_id, got nil")
	}
}

func TestRunRequest_Validate_PathTraversalModelID(t *testing.T) {
	req := validRunRequest()
	req.ModelID = "../../admin"

	if err := req.Validate(); err == nil {
		t.Error("expected error for path traversal in model_id, got nil")
	}
}

func TestRunRequest_Validate_InvalidRunID(t *testing.T) {
	req := validRunRequest()
	req.RunID = "not-a-uuid"

	if err := req.Validate(); err == nil {
		t.Error("expected error for invalid run_id, got nil")
	}
}

func TestRunRequest_Validate_TriggeredByTooLong(t *testing.T) {
	req := validRunRequest()
	req.TriggeredBy = strings.Repeat("x", MaxTriggeredByBytes+1)

	if err := req.Validate(); err == nil {
		t.Errorf("expected error for triggered_by over %d bytes, got nil", MaxTriggeredByBytes)
	}
}

func TestRunRequest_Validate_NegativeTimestamp(t *testing.T) {
	req := validRunRequest()
	req.Timestamp = -1

	if err := req.Validate(); err == nil {
		t.Error("expected error for negative timestamp, got nil")
	}
}

// =============================================================================
// RunRequest EnsureDefaults Tests
// =============================================================================

func TestRunRequest_EnsureDefaults_PopulatesEmpty(t *testing.T) {
	req := &RunRequest{
		ProjectID:        "p1",
		ModelID:          "m1",
		ReferenceTableID: "t1",
	}

	req.EnsureDefaults()

	if req.RunID == "" {
		t.Error("expected RunID to be generated")
	}
	if _, err := uuid.Parse(req.RunID); err != nil {
		t.Errorf("expected RunID to be a UUID, got %q", req.RunID)
	}
	if req.Timestamp == 0 {
		t.Error("expected Timestamp to be populated")
	}
}

func TestRunRequest_EnsureDefaults_PreservesProvided(t *testing.T) {
	providedID := uuid.New().String()
	req := &RunRequest{
		RunID:            providedID,
		ProjectID:        "p1",
		ModelID:          "m1",
		ReferenceTableID: "t1",
		Timestamp:        1234567890,
	}

	req.EnsureDefaults()

	if req.RunID != providedID {
		t.Errorf("expected provided RunID to survive, got %q", req.RunID)
	}
	if req.Timestamp != 1234567890 {
		t.Errorf("expected provided Timestamp to survive, got %d", req.Timestamp)
	}
}

// =============================================================================
// RunStatus Tests
// =============================================================================

func TestRunStatus_IsValid(t *testing.T) {
	for _, s := range []RunStatus{RunStatusRunning, RunStatusSucceeded, RunStatusFailed} {
		if !s.IsValid() {
			t.Errorf("expected %q to be valid", s)
		}
	}

	for _, s := range []RunStatus{"", "done", "RUNNING"} {
		if s.IsValid() {
			t.Errorf("expected %q to be invalid", s)
		}
	}
}

func TestRunStatus_IsTerminal(t *testing.T) {
	if RunStatusRunning.IsTerminal() {
		t.Error("running must not be terminal")
	}
	if !RunStatusSucceeded.IsTerminal() {
		t.Error("succeeded must be terminal")
	}
	if !RunStatusFailed.IsTerminal() {
		t.Error("failed must be terminal")
	}
}
