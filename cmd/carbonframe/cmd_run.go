// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/CarbonFrame/pkg/logging"
	"github.com/AleutianAI/CarbonFrame/pkg/ux"
	"github.com/AleutianAI/CarbonFrame/services/impact_engine/modelstore"
	"github.com/AleutianAI/CarbonFrame/services/impact_engine/run"
)

// cliLogger builds the shared logger for store-facing commands. Logs go
// to stderr so stdout stays clean for --json output.
func cliLogger() *logging.Logger {
	level, err := logging.ParseLevel(cliConfig.LogLevel)
	if err != nil {
		level = logging.LevelInfo
	}
	return logging.New(logging.Config{
		Level:   level,
		Service: "cli",
	})
}

// newStoreClient builds a model store client from config and environment.
// The bearer token comes from MODEL_STORE_TOKEN only.
func newStoreClient(logger *logging.Logger) (*modelstore.Client, error) {
	if cliConfig.Store.URL == "" {
		return nil, fmt.Errorf("no model store configured; set store.url in config.yaml or MODEL_STORE_URL")
	}
	token := os.Getenv("MODEL_STORE_TOKEN")
	if token == "" {
		return nil, fmt.Errorf("MODEL_STORE_TOKEN is not set")
	}

	return modelstore.NewClient(modelstore.ClientConfig{
		BaseURL: cliConfig.Store.URL,
		Token:   token,
		Timeout: time.Duration(cliConfig.Store.TimeoutSeconds) * time.Second,
		Logger:  logger.Slog(),
	})
}

// =============================================================================
// COMMAND IMPLEMENTATION
// =============================================================================

func runRun(cmd *cobra.Command, args []string) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(runTimeoutSecs)*time.Second)
	defer cancel()

	logger := cliLogger()
	defer logger.Close()

	client, err := newStoreClient(logger)
	if err != nil {
		outputError(runJSON, "Cannot reach the model store", err)
		exit(run.ExitError)
	}

	cfg := run.DefaultConfig()
	cfg.ProjectID = firstNonEmpty(runProject, cliConfig.Defaults.ProjectID)
	cfg.ModelID = firstNonEmpty(runModel, cliConfig.Defaults.ModelID)
	cfg.ReferenceTableID = firstNonEmpty(runTable, cliConfig.Defaults.ReferenceTableID)
	cfg.TriggeredBy = runTriggeredBy
	if msg := firstNonEmpty(runMessage, cliConfig.Defaults.VersionMessage); msg != "" {
		cfg.VersionMessage = msg
	}

	if cfg.ProjectID == "" || cfg.ModelID == "" || cfg.ReferenceTableID == "" {
		outputError(runJSON, "Missing run identifiers", fmt.Errorf("--project, --model, and --table are required (or set defaults in config.yaml)"))
		exit(run.ExitError)
	}

	runner := run.NewRunner(client, nil, logger.Slog())

	spin := ux.NewSpinner(fmt.Sprintf("Computing embodied carbon for %s/%s", cfg.ProjectID, cfg.ModelID)).
		WithType(ux.SpinnerLeaf)
	if !runQuiet && !runJSON {
		spin.Start()
	}

	result, execErr := runner.Execute(ctx, cfg)

	if !runQuiet && !runJSON {
		spin.Stop()
	}

	// A nil result means the run never started (bad identifiers).
	if result == nil {
		outputError(runJSON, "Run could not be started", execErr)
		exit(run.ExitError)
	}

	if runReportDir != "" {
		if path, err := saveReport(runReportDir, result); err != nil {
			ux.Warning(fmt.Sprintf("Could not save report: %v", err))
		} else if !runQuiet && !runJSON {
			ux.Muted(fmt.Sprintf("Report saved to %s", path))
		}
	}

	if !runQuiet {
		if runJSON {
			outputJSON(result)
		} else {
			outputRunText(result)
		}
	}

	exit(result.ExitCode())
}

// saveReport writes the result JSON into dir for later `upload reports`.
func saveReport(dir string, result *run.Result) (string, error) {
	if err := os.MkdirAll(dir, 0750); err != nil {
		return "", fmt.Errorf("create report directory: %w", err)
	}

	path := filepath.Join(dir, fmt.Sprintf("run_%s.json", result.RunID))
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode report: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("write report: %w", err)
	}
	return path, nil
}

// firstNonEmpty returns the first non-empty string.
func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
