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
	"errors"
	"log/slog"
)

// StatusSink receives run outcome notifications.
//
// # Description
//
// A run reports exactly one terminal outcome (success or failure) and
// any number of warnings while it executes. Sink failures never fail
// the run; the runner logs them and moves on.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use.
type StatusSink interface {
	// ReportSuccess signals that the run completed and published.
	ReportSuccess(ctx context.Context, runID, message string) error

	// ReportFailure signals that the run hit a fatal condition.
	ReportFailure(ctx context.Context, runID, message string) error

	// ReportWarning signals a non-fatal condition; the run continues.
	ReportWarning(ctx context.Context, runID, message string) error
}

// SlogSink reports run status through a structured logger. It is the
// fallback sink when no other reporting channel is wired.
type SlogSink struct {
	logger *slog.Logger
}

// NewSlogSink creates a sink that writes to the given logger, or
// slog.Default() when nil.
func NewSlogSink(logger *slog.Logger) *SlogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogSink{logger: logger}
}

// ReportSuccess logs the run outcome at info level.
func (s *SlogSink) ReportSuccess(ctx context.Context, runID, message string) error {
	s.logger.Info("Run succeeded", "run_id", runID, "message", message)
	return nil
}

// ReportFailure logs the run outcome at error level.
func (s *SlogSink) ReportFailure(ctx context.Context, runID, message string) error {
	s.logger.Error("Run failed", "run_id", runID, "message", message)
	return nil
}

// ReportWarning logs a run warning at warn level.
func (s *SlogSink) ReportWarning(ctx context.Context, runID, message string) error {
	s.logger.Warn("Run warning", "run_id", runID, "message", message)
	return nil
}

// MultiSink fans every report out to all member sinks and joins their
// errors. A failing member never blocks the others.
type MultiSink []StatusSink

// ReportSuccess fans the success report out to all sinks.
func (m MultiSink) ReportSuccess(ctx context.Context, runID, message string) error {
	var errs []error
	for _, sink := range m {
		if err := sink.ReportSuccess(ctx, runID, message); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ReportFailure fans the failure report out to all sinks.
func (m MultiSink) ReportFailure(ctx context.Context, runID, message string) error {
	var errs []error
	for _, sink := range m {
		if err := sink.ReportFailure(ctx, runID, message); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ReportWarning fans the warning report out to all sinks.
func (m MultiSink) ReportWarning(ctx context.Context, runID, message string) error {
	var errs []error
	for _, sink := range m {
		if err := sink.ReportWarning(ctx, runID, message); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
