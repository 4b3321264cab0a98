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
	"os"

	"gopkg.in/yaml.v3"
)

// CLIConfig holds the carbonframe CLI configuration.
//
// The file is optional; a missing config.yaml falls back to defaults so
// one-shot runs work with nothing but flags and environment variables.
// The store bearer token is never read from the file, only from
// MODEL_STORE_TOKEN.
type CLIConfig struct {
	// Store: the model store the engine runs against
	Store StoreConfig `yaml:"store"`

	// Engine: a deployed impact engine service, used by `watch`
	Engine EngineConfig `yaml:"engine"`

	// GCS: report archival destination for `upload reports`
	GCS GCSConfig `yaml:"gcs"`

	// Defaults: per-repo run identifiers so flags can be omitted
	Defaults RunDefaults `yaml:"defaults"`

	// LogLevel: debug, info, warn, or error
	LogLevel string `yaml:"log_level"`
}

type StoreConfig struct {
	URL            string `yaml:"url"`             // e.g. https://models.example.com
	TimeoutSeconds int    `yaml:"timeout_seconds"` // per-request timeout
}

type EngineConfig struct {
	URL string `yaml:"url"` // e.g. http://localhost:8080
}

type GCSConfig struct {
	ProjectID         string `yaml:"project_id"`
	Bucket            string `yaml:"bucket"`
	ServiceAccountKey string `yaml:"service_account_key"`
}

type RunDefaults struct {
	ProjectID        string `yaml:"project_id"`
	ModelID          string `yaml:"model_id"`
	ReferenceTableID string `yaml:"reference_table_id"`
	VersionMessage   string `yaml:"version_message"`
}

// defaultCLIConfig returns the configuration used when no file exists.
func defaultCLIConfig() CLIConfig {
	return CLIConfig{
		Store:    StoreConfig{TimeoutSeconds: 60},
		Engine:   EngineConfig{URL: "http://localhost:8080"},
		LogLevel: "info",
	}
}

// loadCLIConfig reads the config file and applies environment overrides.
// A missing file is not an error; a malformed one is.
func loadCLIConfig(path string) (CLIConfig, error) {
	cfg := defaultCLIConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return cfg, fmt.Errorf("read config: %w", err)
		}
	} else {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
	}

	// Environment wins over the file
	if v := os.Getenv("MODEL_STORE_URL"); v != "" {
		cfg.Store.URL = v
	}
	if v := os.Getenv("CARBONFRAME_ENGINE_URL"); v != "" {
		cfg.Engine.URL = v
	}
	if v := os.Getenv("CARBONFRAME_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if cfg.Store.TimeoutSeconds <= 0 {
		cfg.Store.TimeoutSeconds = 60
	}

	return cfg, nil
}
