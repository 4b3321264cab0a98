// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package calc computes embodied-carbon contributions and attaches them
// to structural elements.
package calc

import (
	"fmt"

	"github.com/AleutianAI/CarbonFrame/services/impact_engine/datatypes"
)

// Status classifies the outcome of computing one element's impact.
//
// # Valid Values
//
//   - StatusComputed: A result was produced and may be attached
//   - StatusMissingQuantity: The factor's unit names a quantity the
//     element does not carry; reported as a warning
//   - StatusNotComputable: The factor's unit is outside the computable
//     set; the element is skipped without a warning
type Status string

const (
	StatusComputed        Status = "computed"
	StatusMissingQuantity Status = "missing_quantity"
	StatusNotComputable   Status = "not_computable"
)

// Compute derives one element's impact from its resolved factor.
//
// # Description
//
// The factor's unit selects which element quantity feeds the
// calculation: mass factors read the element mass, volume factors the
// element net volume. Both stage coefficients multiply the same
// quantity. Compute never mutates the element; callers attach the
// result themselves.
//
// # Inputs
//
//   - el: The element to compute for.
//   - factor: The subgroup's effective impact factor.
//
// # Outputs
//
//   - datatypes.ImpactResult: The contribution; zero value unless
//     Status is StatusComputed.
//   - Status: The computation outcome.
func Compute(el datatypes.StructuralElement, factor datatypes.ImpactFactor) (datatypes.ImpactResult, Status) {
	var qty float64
	var ok bool

	switch factor.Unit {
	case datatypes.UnitMass:
		qty, ok = el.Mass()
	case datatypes.UnitVolume:
		qty, ok = el.Volume()
	default:
		return datatypes.ImpactResult{}, StatusNotComputable
	}

	if !ok {
		return datatypes.ImpactResult{}, StatusMissingQuantity
	}

	return datatypes.ImpactResult{
		StageABC: qty * factor.StageABC,
		StageD:   qty * factor.StageD,
	}, StatusComputed
}

// ApplyGroup computes and attaches impacts for every element of one
// resolved subgroup.
//
// # Description
//
// Attachment replaces any prior result, so re-running a calculation
// over an already-processed graph converges instead of accumulating.
// Elements missing the quantity the factor calls for are skipped with
// a warning; elements skipped for a non-computable unit produce no
// warning at all.
//
// # Inputs
//
//   - elements: The subgroup's elements in encounter order.
//   - factor: The subgroup's effective impact factor.
//
// # Outputs
//
//   - int: Number of elements that received an impact result.
//   - []string: Human-readable warnings for skipped elements.
func ApplyGroup(elements []datatypes.StructuralElement, factor datatypes.ImpactFactor) (int, []string) {
	applied := 0
	var warnings []string

	for _, el := range elements {
		result, status := Compute(el, factor)
		switch status {
		case StatusComputed:
			el.AttachImpact(result)
			applied++
		case StatusMissingQuantity:
			warnings = append(warnings, fmt.Sprintf(
				"element %q has no %s quantity", el.ElementID(), factor.Unit))
		case StatusNotComputable:
			// Skipped without note; the factor cannot apply to anything.
		}
	}

	return applied, warnings
}
