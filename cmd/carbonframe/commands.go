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
	"fmt"

	"github.com/spf13/cobra"
)

// Version is stamped at build time with -ldflags.
var Version = "dev"

// --- Global Command Variables ---
var (
	configPath       string
	personalityLevel string // UX personality level (full/standard/minimal/machine)

	// Run flags
	runProject     string
	runModel       string
	runTable       string
	runMessage     string
	runTriggeredBy string
	runReportDir   string
	runTimeoutSecs int
	runJSON        bool
	runQuiet       bool

	// Factors flags
	factorsProject string
	factorsTable   string
	factorsJSON    bool

	// Watch flags
	watchEngineURL string

	// Upload flags
	uploadBucket string
	uploadSAKey  string
	uploadPrefix string

	rootCmd = &cobra.Command{
		Use:   "carbonframe",
		Short: "A cli to run and observe CarbonFrame embodied-carbon calculations",
		Long: `CarbonFrame assigns LCA impact factors to the structural elements of a
building model and publishes a new model version with per-element
embodied-carbon results attached.`,
	}

	// --- Runs ---
	runCmd = &cobra.Command{
		Use:   "run",
		Short: "Execute one impact run against the model store",
		Long: `Fetches the latest version of a model and a reference factor table,
computes embodied-carbon results for every structural element, and publishes
a new model version.

The model store endpoint comes from config.yaml or MODEL_STORE_URL; the
bearer token always comes from MODEL_STORE_TOKEN.

Examples:
  carbonframe run --project bridge-a1 --model north-span --table lca-factors-2026
  carbonframe run --project bridge-a1 --model north-span --table lca-factors-2026 --json

CI/CD Integration:
  exits 0 on success, 1 if the run failed, 2 on invocation errors`,
		Run: runRun, // Defined in cmd_run.go
	}

	// --- Factors ---
	factorsCmd = &cobra.Command{
		Use:   "factors",
		Short: "Fetch and inspect a parsed reference factor table",
		Long: `Fetches a reference dataset from the model store, parses it into typed
impact factors, and prints the table. Coefficients that failed numeric
parsing are zeroed by the parser; this command marks those rows so table
owners can fix the source data.`,
		Run: runFactors, // Defined in cmd_factors.go
	}

	// --- Watch ---
	watchCmd = &cobra.Command{
		Use:   "watch",
		Short: "Stream run events from an impact engine service",
		Long: `Subscribes to the impact engine's websocket event feed and prints run
lifecycle events as they happen. The feed requires the engine's webhook
secret, read from CARBONFRAME_WEBHOOK_SECRET.`,
		Run: runWatch, // Defined in cmd_watch.go
	}

	// --- GCS ---
	uploadCmd = &cobra.Command{
		Use:   "upload",
		Short: "Upload data to Google Cloud Storage (GCS)",
	}
	uploadReportsCmd = &cobra.Command{
		Use:   "reports [local_directory]",
		Short: "Uploads saved run reports from a local directory to GCS",
		Args:  cobra.ExactArgs(1),
		Run:   runUploadReports, // Defined in cmd_upload.go
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the carbonframe version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(Version)
		},
	}
)

// init runs when the Go program starts
func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config.yaml",
		"Path to the CLI configuration file")
	rootCmd.PersistentFlags().StringVar(&personalityLevel, "personality", "",
		"Output style: full (default, rich botanical), standard, minimal, or machine (scripting)")

	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringVar(&runProject, "project", "", "Project that owns the model and the reference table")
	runCmd.Flags().StringVar(&runModel, "model", "", "Model whose latest version is processed")
	runCmd.Flags().StringVar(&runTable, "table", "", "Reference table holding the impact factors")
	runCmd.Flags().StringVar(&runMessage, "message", "", "Version message for the published model version")
	runCmd.Flags().StringVar(&runTriggeredBy, "triggered-by", "cli", "Trigger description recorded with the run")
	runCmd.Flags().StringVar(&runReportDir, "report-dir", "", "Save the run result JSON into this directory")
	runCmd.Flags().IntVar(&runTimeoutSecs, "timeout", 300, "Overall run timeout in seconds")
	runCmd.Flags().BoolVar(&runJSON, "json", false, "Output as JSON for scripting")
	runCmd.Flags().BoolVar(&runQuiet, "quiet", false, "Only exit code, no output")

	rootCmd.AddCommand(factorsCmd)
	factorsCmd.Flags().StringVar(&factorsProject, "project", "", "Project that owns the reference table")
	factorsCmd.Flags().StringVar(&factorsTable, "table", "", "Reference table to fetch")
	factorsCmd.Flags().BoolVar(&factorsJSON, "json", false, "Output as JSON for scripting")

	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().StringVar(&watchEngineURL, "engine", "", "Impact engine base URL (default from config.yaml)")

	// GCS data commands
	rootCmd.AddCommand(uploadCmd)
	uploadCmd.AddCommand(uploadReportsCmd)
	uploadReportsCmd.Flags().StringVar(&uploadBucket, "bucket", "", "GCS bucket name (default from config.yaml)")
	uploadReportsCmd.Flags().StringVar(&uploadSAKey, "sa-key", "", "Path to the service account key (default from config.yaml)")
	uploadReportsCmd.Flags().StringVar(&uploadPrefix, "prefix", "reports", "Object prefix inside the bucket")

	rootCmd.AddCommand(versionCmd)
}
