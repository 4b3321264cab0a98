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
	"path"
	"time"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/CarbonFrame/cmd/carbonframe/gcs"
	"github.com/AleutianAI/CarbonFrame/pkg/ux"
	"github.com/AleutianAI/CarbonFrame/services/impact_engine/run"
)

func runUploadReports(cmd *cobra.Command, args []string) {
	localDir := args[0]

	bucket := firstNonEmpty(uploadBucket, cliConfig.GCS.Bucket)
	saKey := firstNonEmpty(uploadSAKey, cliConfig.GCS.ServiceAccountKey)
	if bucket == "" || saKey == "" {
		outputError(false, "Missing GCS settings", fmt.Errorf("set --bucket and --sa-key or the gcs section in config.yaml"))
		exit(run.ExitError)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	client, err := gcs.NewClient(ctx, cliConfig.GCS.ProjectID, bucket, saKey)
	if err != nil {
		outputError(false, "Could not create the GCS client", err)
		exit(run.ExitError)
	}

	// Date-stamped prefix keeps each archival batch separate.
	prefix := path.Join(uploadPrefix, time.Now().UTC().Format("2006-01-02"))

	var uploaded, skipped int
	err = ux.WithSpinner(fmt.Sprintf("Uploading reports from %s to gs://%s/%s", localDir, bucket, prefix), func() error {
		var walkErr error
		uploaded, skipped, walkErr = client.UploadReportDir(ctx, localDir, prefix)
		return walkErr
	})
	if err != nil {
		exit(run.ExitError)
	}

	ux.Summary(uploaded, skipped, uploaded+skipped)
	exit(run.ExitSuccess)
}
