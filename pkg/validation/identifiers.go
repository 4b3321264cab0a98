// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package validation provides input validation utilities for security-critical operations.
//
// This package contains validators for user-provided inputs that are used in
// model store request paths and subprocess calls. Using these validators
// prevents injection attacks (URL path injection, command injection, path traversal).
package validation

import (
	"fmt"
	"regexp"
	"strings"
)

// resourceIDPattern matches valid model store resource identifiers.
// Allows: letters, digits, dots, underscores, hyphens after a leading alphanumeric.
// Max length: 128 characters (covers project, model, and table IDs)
var resourceIDPattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._\-]{0,127}$`)

// ValidateResourceID validates a project, model, or reference table identifier
// before it is interpolated into a model store request path.
//
// Valid identifiers:
//   - 1-128 characters
//   - Letters a-z, A-Z
//   - Digits 0-9
//   - Dots (.), underscores (_), and hyphens (-) after the first character
//
// Returns an error if the identifier is invalid.
//
// Example:
//
//	if err := validation.ValidateResourceID(modelID); err != nil {
//	    return nil, fmt.Errorf("invalid model id: %w", err)
//	}
//	// Safe to use in a request path
func ValidateResourceID(id string) error {
	if id == "" {
		return fmt.Errorf("resource id cannot be empty")
	}

	if !resourceIDPattern.MatchString(id) {
		return fmt.Errorf("invalid resource id format: %q (must be 1-128 alphanumeric chars, dots, underscores, or hyphens)", id)
	}

	return nil
}

// ValidateResourceIDs validates multiple resource identifiers.
// Returns an error listing all invalid identifiers if any fail validation.
func ValidateResourceIDs(ids ...string) error {
	var invalid []string
	for _, id := range ids {
		if err := ValidateResourceID(id); err != nil {
			invalid = append(invalid, id)
		}
	}

	if len(invalid) > 0 {
		return fmt.Errorf("invalid resource ids: %v", invalid)
	}
	return nil
}

// SanitizeResourceID normalizes and validates a resource identifier.
// Returns the trimmed identifier if valid, or an error if invalid.
// Identifiers are case-sensitive, so no case folding is applied.
//
// Use this when accepting identifiers from flags or request bodies:
//
//	safeID, err := validation.SanitizeResourceID(userInput)
//	if err != nil {
//	    return err
//	}
//	// safeID is trimmed and validated
func SanitizeResourceID(id string) (string, error) {
	normalized := strings.TrimSpace(id)
	if err := ValidateResourceID(normalized); err != nil {
		return "", err
	}
	return normalized, nil
}
