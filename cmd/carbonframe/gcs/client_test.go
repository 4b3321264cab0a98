// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package gcs

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// ============================================================================
// NewClient Tests
// ============================================================================

func TestNewClient_NonExistentSAKeyPath(t *testing.T) {
	ctx := context.Background()

	_, err := NewClient(ctx, "test-project", "test-bucket", "/nonexistent/path/to/key.json")
	if err == nil {
		t.Fatal("NewClient with non-existent SA key should return error")
	}
	if !strings.Contains(err.Error(), "service account key not found") {
		t.Errorf("Error should mention SA key not found, got: %v", err)
	}
	if !strings.Contains(err.Error(), "/nonexistent/path/to/key.json") {
		t.Errorf("Error should contain the path, got: %v", err)
	}
}

func TestNewClient_EmptyPath(t *testing.T) {
	ctx := context.Background()

	_, err := NewClient(ctx, "test-project", "test-bucket", "")
	if err == nil {
		t.Fatal("NewClient with empty SA key path should return error")
	}
}

func TestNewClient_InvalidCredentialsFile(t *testing.T) {
	ctx := context.Background()

	// Create a temporary file with invalid JSON
	tmpDir := t.TempDir()
	invalidKeyPath := filepath.Join(tmpDir, "invalid_key.json")
	err := os.WriteFile(invalidKeyPath, []byte("not valid json"), 0644)
	if err != nil {
		t.Fatalf("Failed to create temp file: %v", err)
	}

	_, err = NewClient(ctx, "test-project", "test-bucket", invalidKeyPath)
	if err == nil {
		t.Fatal("NewClient with invalid credentials file should return error")
	}
	if !strings.Contains(err.Error(), "failed to create GCS storage client") {
		t.Errorf("Error should mention failed to create client, got: %v", err)
	}
}

// ============================================================================
// UploadReport Tests (error paths that don't require GCS connection)
// ============================================================================

func TestClient_UploadReport_NonExistentLocalFile(t *testing.T) {
	// Create a client struct directly without a real storage client
	// This tests the local file validation before any GCS operations
	client := &Client{
		storageClient: nil, // Will fail if we try to use it
		ProjectId:     "test-project",
		BucketName:    "test-bucket",
	}

	ctx := context.Background()
	err := client.UploadReport(ctx, "/nonexistent/report.json", "reports/report.json")
	if err == nil {
		t.Fatal("UploadReport with non-existent local file should return error")
	}
	if !strings.Contains(err.Error(), "failed to open the local report") {
		t.Errorf("Error should mention failed to open report, got: %v", err)
	}
}

func TestClient_UploadReport_EmptyPath(t *testing.T) {
	client := &Client{
		storageClient: nil,
		ProjectId:     "test-project",
		BucketName:    "test-bucket",
	}

	ctx := context.Background()
	err := client.UploadReport(ctx, "", "reports/report.json")
	if err == nil {
		t.Fatal("UploadReport with empty local path should return error")
	}
}

// ============================================================================
// UploadReportDir Tests (error paths)
// ============================================================================

func TestClient_UploadReportDir_NonExistentDirectory(t *testing.T) {
	client := &Client{
		storageClient: nil,
		ProjectId:     "test-project",
		BucketName:    "test-bucket",
	}

	ctx := context.Background()
	_, _, err := client.UploadReportDir(ctx, "/nonexistent/directory/path", "reports")
	if err == nil {
		t.Fatal("UploadReportDir with non-existent directory should return error")
	}
}

func TestClient_UploadReportDir_SkipsNonJSONFiles(t *testing.T) {
	client := &Client{
		storageClient: nil,
		ProjectId:     "test-project",
		BucketName:    "test-bucket",
	}

	// A directory holding only non-JSON files never touches the
	// storage client, so a nil client is safe here.
	tmpDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(tmpDir, "notes.txt"), []byte("scratch"), 0644); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}
	if err := os.WriteFile(filepath.Join(tmpDir, "run.log"), []byte("log"), 0644); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}

	ctx := context.Background()
	uploaded, skipped, err := client.UploadReportDir(ctx, tmpDir, "reports")
	if err != nil {
		t.Fatalf("UploadReportDir failed: %v", err)
	}
	if uploaded != 0 {
		t.Errorf("uploaded = %d, want 0", uploaded)
	}
	if skipped != 2 {
		t.Errorf("skipped = %d, want 2", skipped)
	}
}

// ============================================================================
// Client Fields Tests
// ============================================================================

func TestClient_Fields(t *testing.T) {
	client := &Client{
		storageClient: nil,
		ProjectId:     "my-project-123",
		BucketName:    "my-bucket-456",
	}

	if client.ProjectId != "my-project-123" {
		t.Errorf("ProjectId = %q, want %q", client.ProjectId, "my-project-123")
	}
	if client.BucketName != "my-bucket-456" {
		t.Errorf("BucketName = %q, want %q", client.BucketName, "my-bucket-456")
	}
}

// ============================================================================
// Integration Tests (require real GCS credentials)
// These tests are skipped by default but document how to test with real GCS
// ============================================================================

func TestClient_UploadReportDir_Integration(t *testing.T) {
	keyPath := os.Getenv("GCS_TEST_SA_KEY_PATH")
	projectID := os.Getenv("GCS_TEST_PROJECT_ID")
	bucketName := os.Getenv("GCS_TEST_BUCKET_NAME")

	if keyPath == "" || projectID == "" || bucketName == "" {
		t.Skip("Skipping integration test: GCS_TEST_SA_KEY_PATH, GCS_TEST_PROJECT_ID, and GCS_TEST_BUCKET_NAME not set")
	}

	ctx := context.Background()
	client, err := NewClient(ctx, projectID, bucketName, keyPath)
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}

	tmpDir := t.TempDir()
	err = os.WriteFile(filepath.Join(tmpDir, "run_abc.json"), []byte(`{"run_id":"abc"}`), 0644)
	if err != nil {
		t.Fatalf("Failed to create test report: %v", err)
	}

	uploaded, _, err := client.UploadReportDir(ctx, tmpDir, "test/integration_reports")
	if err != nil {
		t.Errorf("UploadReportDir failed: %v", err)
	}
	if uploaded != 1 {
		t.Errorf("uploaded = %d, want 1", uploaded)
	}
}
