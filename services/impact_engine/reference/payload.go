// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package reference converts the externally fetched impact factor dataset
// into typed factors.
//
// The dataset arrives in one of two wire shapes. NormalizeRows collapses
// both into a single "sequence of rows" representation before any parsing
// runs; the Parser then turns rows into datatypes.FactorTable with a
// lenient numeric policy. All locale and format handling lives in this
// package and nowhere else.
package reference

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
)

// ErrDataUnavailable signals that the reference dataset resolved as empty
// or unobtainable. Callers treat this as fatal for the whole run.
var ErrDataUnavailable = errors.New("reference dataset unavailable or empty")

// NormalizeRows converts either reference payload shape into one flat
// sequence of rows.
//
// # Description
//
// Two shapes are accepted:
//
//   - Tabular: {"data": [[cell, ...], ...]} with rows under a data key.
//   - Bag: {"<name>": [[cell, ...], ...], ...} where each named
//     sub-record is itself a sequence of rows.
//
// Bag sub-records are concatenated in sorted key order so the result is
// deterministic regardless of map iteration. Bag entries whose value is
// not a row sequence (metadata strings, counts) are skipped. The first
// row of the normalized result is the header; dropping it is the
// parser's job, not this adapter's.
//
// # Inputs
//
//   - raw: The payload bytes as returned by the model store.
//
// # Outputs
//
//   - [][]interface{}: Rows in wire order (tabular) or sorted sub-record
//     order (bag).
//   - error: ErrDataUnavailable if the payload is empty or carries no
//     row data; a wrapped decode error for malformed JSON.
func NormalizeRows(raw []byte) ([][]interface{}, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, ErrDataUnavailable
	}

	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("decode reference payload: %w", err)
	}

	if data, ok := envelope["data"]; ok {
		var rows [][]interface{}
		if err := json.Unmarshal(data, &rows); err != nil {
			return nil, fmt.Errorf("decode tabular payload: %w", err)
		}
		return rows, nil
	}

	keys := make([]string, 0, len(envelope))
	for k := range envelope {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var rows [][]interface{}
	matched := false
	for _, k := range keys {
		var sub [][]interface{}
		if err := json.Unmarshal(envelope[k], &sub); err != nil {
			// Not a row sequence; metadata entry, skipped.
			continue
		}
		matched = true
		rows = append(rows, sub...)
	}

	if !matched {
		return nil, ErrDataUnavailable
	}
	return rows, nil
}
