// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package gcs uploads saved run reports to Google Cloud Storage for
// compliance retention. The engine itself persists nothing; archival is
// strictly operator tooling.
package gcs

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

type Client struct {
	storageClient *storage.Client
	ProjectId     string
	BucketName    string
}

func NewClient(ctx context.Context, projectId, bucketName, saKeyPath string) (*Client, error) {
	if _, err := os.Stat(saKeyPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("service account key not found at path: %s. Please ensure you have the correct key and it is accessible", saKeyPath)
	}

	storageClient, err := storage.NewClient(ctx, option.WithCredentialsFile(saKeyPath))
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS storage client: %w", err)
	}

	return &Client{
		storageClient: storageClient,
		ProjectId:     projectId,
		BucketName:    bucketName,
	}, nil
}

// UploadReport uploads one run report file to the bucket.
func (c *Client) UploadReport(ctx context.Context, localPath, gcsPath string) error {
	localFile, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("failed to open the local report: %s: %w", localPath, err)
	}
	defer localFile.Close()

	// Get a writer for the GCS object
	obj := c.storageClient.Bucket(c.BucketName).Object(gcsPath)
	writer := obj.NewWriter(ctx)
	writer.ContentType = "application/json"
	writer.CacheControl = "no-cache, no-store, must-revalidate"

	if _, err := io.Copy(writer, localFile); err != nil {
		return fmt.Errorf("failed to copy local report %s to GCS object %s: %w", localPath, gcsPath, err)
	}

	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to close GCS writer for %s: %w", gcsPath, err)
	}
	return nil
}

// UploadReportDir uploads every JSON report in a local directory under
// the given object prefix. Non-JSON files are skipped so scratch files
// in a report directory never land in the retention bucket.
//
// Returns the number of reports uploaded and the number of files skipped.
func (c *Client) UploadReportDir(ctx context.Context, localDir, gcsPrefix string) (uploaded, skipped int, err error) {
	err = filepath.Walk(localDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		if !strings.HasSuffix(info.Name(), ".json") {
			skipped++
			return nil
		}
		gcsPath := filepath.Join(gcsPrefix, info.Name())
		if err := c.UploadReport(ctx, path, gcsPath); err != nil {
			return err
		}
		uploaded++
		return nil
	})
	return uploaded, skipped, err
}
