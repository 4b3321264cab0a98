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
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/CarbonFrame/services/impact_engine/datatypes"
	"github.com/AleutianAI/CarbonFrame/services/impact_engine/middleware"
	"github.com/AleutianAI/CarbonFrame/services/impact_engine/modelstore"
	"github.com/AleutianAI/CarbonFrame/services/impact_engine/run"
)

// -----------------------------------------------------------------------------
// Configuration loading
// -----------------------------------------------------------------------------

func TestDefaultServiceConfig(t *testing.T) {
	config := defaultServiceConfig()

	assert.Equal(t, "info", config.LogLevel)
	assert.Equal(t, run.DefaultVersionMessage, config.VersionMessage)
	assert.Equal(t, float64(middleware.DefaultRunsPerSecond), config.RunsPerSecond)
	assert.Equal(t, middleware.DefaultRunBurst, config.RunBurst)
	assert.NoError(t, config.Validate())
}

func TestLoadServiceConfig_EmptyPathUsesDefaults(t *testing.T) {
	config, err := loadServiceConfig("")
	require.NoError(t, err)
	assert.Equal(t, defaultServiceConfig(), config)
}

func TestLoadServiceConfig_MissingFileUsesDefaults(t *testing.T) {
	config, err := loadServiceConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, defaultServiceConfig(), config)
}

func TestLoadServiceConfig_ReadsYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "log_level: debug\nversion_message: Quarterly EPD refresh\nruns_per_second: 2.5\nrun_burst: 10\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	config, err := loadServiceConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", config.LogLevel)
	assert.Equal(t, "Quarterly EPD refresh", config.VersionMessage)
	assert.Equal(t, 2.5, config.RunsPerSecond)
	assert.Equal(t, 10, config.RunBurst)
}

func TestLoadServiceConfig_ReadsJSONFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	content := `{"log_level": "warn", "run_burst": 3}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	config, err := loadServiceConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "warn", config.LogLevel)
	assert.Equal(t, 3, config.RunBurst)
	// Unset fields keep their defaults.
	assert.Equal(t, run.DefaultVersionMessage, config.VersionMessage)
}

func TestLoadServiceConfig_SparseFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log_level: error\n"), 0o644))

	config, err := loadServiceConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "error", config.LogLevel)
	assert.Equal(t, float64(middleware.DefaultRunsPerSecond), config.RunsPerSecond)
	assert.Equal(t, middleware.DefaultRunBurst, config.RunBurst)
}

func TestLoadServiceConfig_RejectsMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("{"), 0o644))

	_, err := loadServiceConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load config file")
}

func TestLoadServiceConfig_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log_level: debug\nrun_burst: 10\n"), 0o644))

	t.Setenv("IMPACT_ENGINE_LOG_LEVEL", "error")
	t.Setenv("IMPACT_ENGINE_RUNS_PER_SECOND", "0.5")
	t.Setenv("IMPACT_ENGINE_RUN_BURST", "2")
	t.Setenv("IMPACT_ENGINE_VERSION_MESSAGE", "Nightly automation run")

	config, err := loadServiceConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "error", config.LogLevel)
	assert.Equal(t, 0.5, config.RunsPerSecond)
	assert.Equal(t, 2, config.RunBurst)
	assert.Equal(t, "Nightly automation run", config.VersionMessage)
}

func TestLoadServiceConfig_IgnoresUnparsableEnvNumbers(t *testing.T) {
	t.Setenv("IMPACT_ENGINE_RUNS_PER_SECOND", "fast")
	t.Setenv("IMPACT_ENGINE_RUN_BURST", "many")

	config, err := loadServiceConfig("")
	require.NoError(t, err)

	assert.Equal(t, float64(middleware.DefaultRunsPerSecond), config.RunsPerSecond)
	assert.Equal(t, middleware.DefaultRunBurst, config.RunBurst)
}

func TestServiceConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*serviceConfig)
		wantErr string
	}{
		{
			name:   "defaults are valid",
			mutate: func(c *serviceConfig) {},
		},
		{
			name:    "unknown log level",
			mutate:  func(c *serviceConfig) { c.LogLevel = "verbose" },
			wantErr: "log_level",
		},
		{
			name:    "zero rate",
			mutate:  func(c *serviceConfig) { c.RunsPerSecond = 0 },
			wantErr: "runs_per_second",
		},
		{
			name:    "negative rate",
			mutate:  func(c *serviceConfig) { c.RunsPerSecond = -1 },
			wantErr: "runs_per_second",
		},
		{
			name:    "zero burst",
			mutate:  func(c *serviceConfig) { c.RunBurst = 0 },
			wantErr: "run_burst",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := defaultServiceConfig()
			tt.mutate(&config)

			err := config.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

// -----------------------------------------------------------------------------
// Configured executor
// -----------------------------------------------------------------------------

// captureStore is a run.ModelStore that serves a one-element model and
// records the version message of every publish.
type captureStore struct {
	mu       sync.Mutex
	messages []string
}

func (s *captureStore) FetchModel(ctx context.Context, projectID, modelID string) (*modelstore.ModelSnapshot, error) {
	el := datatypes.NewLinearElement("b1")
	el.Material = &datatypes.MaterialRef{Family: "Concrete", Grade: "C30/37"}
	el.Quantities = map[string]float64{"mass": 1000}
	subtree := datatypes.NewStructuralSubtree("st-1", "Level 1", el)

	return &modelstore.ModelSnapshot{
		ModelID:   modelID,
		ModelName: "Office Tower",
		VersionID: "v-1",
		Graph:     &datatypes.ModelGraph{RootID: "root", Subtrees: []*datatypes.StructuralSubtree{subtree}},
	}, nil
}

func (s *captureStore) FetchReferenceTable(ctx context.Context, projectID, tableID string) ([]byte, error) {
	table := `{"data": [
	  ["family", "grade", "stage_abc", "stage_d", "unit"],
	  ["Concrete", "C30/37", 0.25, -0.02, "mass"]
	]}`
	return []byte(table), nil
}

func (s *captureStore) PublishVersion(ctx context.Context, projectID, modelID string, graph *datatypes.ModelGraph, message string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, message)
	return "v-2", nil
}

func (s *captureStore) lastMessage() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.messages) == 0 {
		return ""
	}
	return s.messages[len(s.messages)-1]
}

func executorRunConfig() run.Config {
	cfg := run.DefaultConfig()
	cfg.ProjectID = "p-1"
	cfg.ModelID = "m-1"
	cfg.ReferenceTableID = "epd-2025"
	return cfg
}

func TestConfiguredExecutor_InjectsVersionMessage(t *testing.T) {
	store := &captureStore{}
	executor := newConfiguredExecutor(run.NewRunner(store, nil, nil), "Quarterly EPD refresh")

	result, err := executor.Execute(context.Background(), executorRunConfig())
	require.NoError(t, err)
	assert.Equal(t, datatypes.RunStatusSucceeded, result.Status)
	assert.Equal(t, "Quarterly EPD refresh", store.lastMessage())
}

func TestConfiguredExecutor_SetVersionMessage(t *testing.T) {
	store := &captureStore{}
	executor := newConfiguredExecutor(run.NewRunner(store, nil, nil), "First message")

	executor.SetVersionMessage("Updated factors applied")
	_, err := executor.Execute(context.Background(), executorRunConfig())
	require.NoError(t, err)
	assert.Equal(t, "Updated factors applied", store.lastMessage())

	// Empty messages are ignored on reload.
	executor.SetVersionMessage("")
	_, err = executor.Execute(context.Background(), executorRunConfig())
	require.NoError(t, err)
	assert.Equal(t, "Updated factors applied", store.lastMessage())
}

// -----------------------------------------------------------------------------
// Config watcher
// -----------------------------------------------------------------------------

// startWatcher runs watchConfig against path and returns a channel of
// applied configs plus a stop function that waits for the watcher to exit.
func startWatcher(t *testing.T, path string) (chan serviceConfig, func()) {
	t.Helper()

	applied := make(chan serviceConfig, 8)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- watchConfig(ctx, path, func(cfg serviceConfig) { applied <- cfg })
	}()

	// Let the watcher register before the test writes the file.
	time.Sleep(100 * time.Millisecond)

	stop := func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(2 * time.Second):
			t.Fatal("watcher did not stop on context cancel")
		}
	}
	return applied, stop
}

func TestWatchConfig_AppliesReloadOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log_level: info\n"), 0o644))

	applied, stop := startWatcher(t, path)
	defer stop()

	content := "log_level: debug\nruns_per_second: 4\nrun_burst: 8\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	select {
	case config := <-applied:
		assert.Equal(t, "debug", config.LogLevel)
		assert.Equal(t, 4.0, config.RunsPerSecond)
		assert.Equal(t, 8, config.RunBurst)
	case <-time.After(5 * time.Second):
		t.Fatal("config reload was not applied")
	}
}

func TestWatchConfig_IgnoresInvalidReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log_level: info\n"), 0o644))

	applied, stop := startWatcher(t, path)
	defer stop()

	// A reload that fails validation is dropped without stopping the watcher.
	require.NoError(t, os.WriteFile(path, []byte("run_burst: 0\n"), 0o644))
	require.NoError(t, os.WriteFile(path, []byte("log_level: warn\n"), 0o644))

	select {
	case config := <-applied:
		assert.Equal(t, "warn", config.LogLevel)
	case <-time.After(5 * time.Second):
		t.Fatal("valid reload after an invalid one was not applied")
	}
}

func TestWatchConfig_SkipsTruncationPhase(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log_level: warn\n"), 0o644))

	applied, stop := startWatcher(t, path)
	defer stop()

	// A non-atomic save truncates first; an empty file parses as valid
	// YAML and would silently apply all-defaults settings.
	require.NoError(t, os.WriteFile(path, nil, 0o644))
	require.NoError(t, os.WriteFile(path, []byte("log_level: error\n"), 0o644))

	select {
	case config := <-applied:
		assert.Equal(t, "error", config.LogLevel,
			"the empty truncation phase must not be applied as a config")
	case <-time.After(5 * time.Second):
		t.Fatal("reload after the truncation phase was not applied")
	}
}

func TestWatchConfig_IgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log_level: info\n"), 0o644))

	applied, stop := startWatcher(t, path)
	defer stop()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.yaml"), []byte("log_level: debug\n"), 0o644))

	select {
	case config := <-applied:
		t.Fatalf("unexpected reload from unrelated file: %+v", config)
	case <-time.After(300 * time.Millisecond):
	}
}
