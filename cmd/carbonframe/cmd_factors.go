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
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/CarbonFrame/pkg/ux"
	"github.com/AleutianAI/CarbonFrame/services/impact_engine/reference"
	"github.com/AleutianAI/CarbonFrame/services/impact_engine/run"
)

func runFactors(cmd *cobra.Command, args []string) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cliConfig.Store.TimeoutSeconds)*time.Second)
	defer cancel()

	logger := cliLogger()
	defer logger.Close()

	client, err := newStoreClient(logger)
	if err != nil {
		outputError(factorsJSON, "Cannot reach the model store", err)
		exit(run.ExitError)
	}

	projectID := firstNonEmpty(factorsProject, cliConfig.Defaults.ProjectID)
	tableID := firstNonEmpty(factorsTable, cliConfig.Defaults.ReferenceTableID)
	if projectID == "" || tableID == "" {
		outputError(factorsJSON, "Missing table identifiers", fmt.Errorf("--project and --table are required (or set defaults in config.yaml)"))
		exit(run.ExitError)
	}

	raw, err := client.FetchReferenceTable(ctx, projectID, tableID)
	if err != nil {
		outputError(factorsJSON, "Failed to fetch the reference table", err)
		exit(run.ExitError)
	}

	parser := reference.NewParser(logger.Slog())
	table, err := parser.Parse(raw)
	if err != nil {
		outputError(factorsJSON, "Failed to parse the reference table", err)
		exit(run.ExitError)
	}

	if factorsJSON {
		outputJSON(table)
	} else {
		ux.Title(fmt.Sprintf("Reference table %s/%s", projectID, tableID))
		fmt.Print(formatFactorTable(table))
		if zeroed := countZeroedFactors(table); zeroed > 0 {
			ux.Warning(fmt.Sprintf("%d row(s) carry all-zero coefficients; check the source data", zeroed))
		}
	}

	exit(run.ExitSuccess)
}
