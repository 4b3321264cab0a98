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
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/AleutianAI/CarbonFrame/pkg/ux"
	"github.com/AleutianAI/CarbonFrame/services/impact_engine/datatypes"
	"github.com/AleutianAI/CarbonFrame/services/impact_engine/run"
)

// =============================================================================
// OUTPUT FUNCTIONS
// =============================================================================

// outputError writes an error in the appropriate format.
func outputError(jsonMode bool, msg string, err error) {
	if jsonMode {
		result := map[string]interface{}{
			"api_version": run.APIVersion,
			"success":     false,
			"error":       msg,
		}
		if err != nil {
			result["error"] = fmt.Sprintf("%s: %v", msg, err)
		}
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		encoder.Encode(result)
		return
	}

	if err != nil {
		ux.Error(fmt.Sprintf("%s: %v", msg, err))
	} else {
		ux.Error(msg)
	}
}

// outputJSON writes structured data as indented JSON to stdout.
func outputJSON(data interface{}) {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(data); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to encode JSON: %v\n", err)
		exit(run.ExitError)
	}
}

// outputRunText prints a run result for a terminal reader.
func outputRunText(result *run.Result) {
	fmt.Print(formatRunResult(result))

	switch result.Status {
	case datatypes.RunStatusSucceeded:
		ux.Success(result.Summary())
	case datatypes.RunStatusFailed:
		ux.Error(result.Summary())
	}
}

// formatRunResult renders the run report body. Kept free of styling so
// the layout is testable; status coloring happens in outputRunText.
func formatRunResult(result *run.Result) string {
	var b strings.Builder

	b.WriteString("Impact Run\n")
	b.WriteString(strings.Repeat("=", 60))
	b.WriteString("\n\n")

	fmt.Fprintf(&b, "Run ID:     %s\n", result.RunID)
	if result.ModelName != "" {
		fmt.Fprintf(&b, "Model:      %s\n", result.ModelName)
	}
	fmt.Fprintf(&b, "Status:     %s\n", result.Status)
	if result.SourceVersionID != "" {
		fmt.Fprintf(&b, "Source:     %s\n", result.SourceVersionID)
	}
	if result.PublishedVersionID != "" {
		fmt.Fprintf(&b, "Published:  %s\n", result.PublishedVersionID)
	}

	b.WriteString("\nCounters:\n")
	fmt.Fprintf(&b, "  Material groups:  %d\n", result.Counters.MaterialGroupCount)
	fmt.Fprintf(&b, "  Elements:         %d\n", result.Counters.ElementCount)

	if len(result.Warnings) > 0 {
		b.WriteString("\nWarnings:\n")
		for _, w := range result.Warnings {
			fmt.Fprintf(&b, "  - %s\n", w)
		}
	}

	if result.FailureReason != "" {
		fmt.Fprintf(&b, "\nFailure: %s\n", result.FailureReason)
	}

	fmt.Fprintf(&b, "\nRun completed in %dms\n", result.DurationMs)
	return b.String()
}

// formatFactorTable renders a parsed factor table as aligned columns.
func formatFactorTable(table datatypes.FactorTable) string {
	var b strings.Builder

	fmt.Fprintf(&b, "%-24s %-16s %12s %12s   %-7s\n",
		"FAMILY", "GRADE", "STAGE A-C", "STAGE D", "UNIT")
	for _, f := range table {
		marker := " "
		if f.StageABC == 0 && f.StageD == 0 {
			marker = "!"
		}
		fmt.Fprintf(&b, "%s%-23s %-16s %12.3f %12.3f   %-7s\n",
			marker, f.MaterialFamily, f.MaterialGrade, f.StageABC, f.StageD, f.Unit)
	}
	fmt.Fprintf(&b, "\n%d factor(s)\n", len(table))
	return b.String()
}

// countZeroedFactors counts rows whose coefficients are both zero,
// the signature of unparsable source cells.
func countZeroedFactors(table datatypes.FactorTable) int {
	count := 0
	for _, f := range table {
		if f.StageABC == 0 && f.StageD == 0 {
			count++
		}
	}
	return count
}
