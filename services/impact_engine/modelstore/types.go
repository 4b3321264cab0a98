// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package modelstore provides the HTTP client for the model store that
// hosts structural models and reference datasets.
package modelstore

import (
	"errors"

	"github.com/AleutianAI/CarbonFrame/services/impact_engine/datatypes"
)

// Sentinel errors returned by the client. Callers branch on these with
// errors.Is.
var (
	// ErrInvalidInput indicates a nil context, an empty argument, or an
	// identifier that failed validation.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotFound indicates the store has no such project, model, or table.
	ErrNotFound = errors.New("resource not found")

	// ErrUnauthorized indicates the store rejected the client's token.
	ErrUnauthorized = errors.New("store rejected credentials")

	// ErrIncompatibleStore indicates the store speaks an API version below
	// the minimum this client supports.
	ErrIncompatibleStore = errors.New("store api version not supported")
)

// ModelSnapshot bundles a fetched model graph with the store metadata a
// run reports back to operators.
//
// # Fields
//
//   - ModelID: The model's identifier in the store.
//   - ModelName: Human-readable model name, used in run summaries.
//   - VersionID: Identifier of the version the graph was read from.
//   - Graph: The decoded model graph with subtrees located.
type ModelSnapshot struct {
	ModelID   string
	ModelName string
	VersionID string
	Graph     *datatypes.ModelGraph
}

// modelEnvelope is the store's response shape for a model fetch.
type modelEnvelope struct {
	Model struct {
		ID        string `json:"id"`
		Name      string `json:"name"`
		VersionID string `json:"version_id"`
	} `json:"model"`
	Graph *datatypes.ModelGraph `json:"graph"`
}

// publishRequest is the body for creating a new model version.
type publishRequest struct {
	Graph   *datatypes.ModelGraph `json:"graph"`
	Message string                `json:"message,omitempty"`
}

// publishResponse is the store's response to a successful publish.
type publishResponse struct {
	VersionID string `json:"version_id"`
}

// healthResponse is the store's health endpoint shape. Older stores
// return a bare 200 with no body.
type healthResponse struct {
	Status     string `json:"status"`
	APIVersion string `json:"api_version"`
}

// storeError is the store's error response shape.
type storeError struct {
	Error string `json:"error"`
}
