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
// This file contains the event record broadcast to run status subscribers.
package datatypes

import (
	"time"

	"github.com/go-openapi/strfmt"
	"github.com/google/uuid"
)

// EventSeverity classifies a run event for subscribers.
type EventSeverity string

const (
	// SeverityInfo marks routine progress and terminal success events.
	SeverityInfo EventSeverity = "info"

	// SeverityWarning marks non-fatal conditions; the run continues.
	SeverityWarning EventSeverity = "warning"

	// SeverityError marks fatal conditions; the run aborts.
	SeverityError EventSeverity = "error"
)

// validEventSeverities contains all valid EventSeverity values.
var validEventSeverities = map[EventSeverity]bool{
	SeverityInfo:    true,
	SeverityWarning: true,
	SeverityError:   true,
}

// IsValid checks if the EventSeverity is a valid value.
func (s EventSeverity) IsValid() bool {
	return validEventSeverities[s]
}

// RunEvent is one status message emitted while an impact run executes.
//
// Events are broadcast over the websocket feed and mirrored into the
// service log. Timestamps are RFC 3339 with sub-second precision.
type RunEvent struct {
	EventID   string          `json:"event_id"`
	RunID     string          `json:"run_id"`
	Severity  EventSeverity   `json:"severity"`
	Status    RunStatus       `json:"status,omitempty"`
	Message   string          `json:"message"`
	Timestamp strfmt.DateTime `json:"timestamp"`
}

// NewRunEvent creates an event with a fresh ID and the current time.
func NewRunEvent(runID string, severity EventSeverity, status RunStatus, message string) RunEvent {
	return RunEvent{
		EventID:   uuid.New().String(),
		RunID:     runID,
		Severity:  severity,
		Status:    status,
		Message:   message,
		Timestamp: strfmt.DateTime(time.Now().UTC()),
	}
}
