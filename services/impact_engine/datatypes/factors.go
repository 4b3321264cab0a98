// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package datatypes provides type definitions for the CarbonFrame impact engine.
//
// This file contains the impact factor types built from the reference dataset.
// For structural element types, see elements.go.
package datatypes

import "strings"

// =============================================================================
// ENUMS
// =============================================================================

// QuantityUnit declares which physical quantity an impact factor scales with.
//
// Description:
//
//	Each reference factor carries a unit that selects the element quantity
//	used during calculation. Mass-based factors multiply by the element's
//	mass, volume-based factors by its net volume.
//
// Valid Values:
//   - "mass": Coefficients are per unit mass (kgCO2e/kg)
//   - "volume": Coefficients are per unit volume (kgCO2e/m3)
//   - "unknown": Any other declared unit; no calculation is performed
//
// Example:
//
//	unit := datatypes.ParseQuantityUnit(" Mass ")
//	if unit == datatypes.UnitMass {
//	    log.Println("mass-based factor")
//	}
//
// Limitations:
//   - Does not support per-area or per-length factors
//   - Unrecognized units are preserved only as UnitUnknown, not verbatim
//
// Assumptions:
//   - Reference tables declare units as free-form text, normalized here
type QuantityUnit string

const (
	UnitMass    QuantityUnit = "mass"
	UnitVolume  QuantityUnit = "volume"
	UnitUnknown QuantityUnit = "unknown"
)

// validQuantityUnits contains the units that drive a calculation.
var validQuantityUnits = map[QuantityUnit]bool{
	UnitMass:   true,
	UnitVolume: true,
}

// IsValid checks if the QuantityUnit drives a calculation.
//
// Description:
//
//	IsValid returns true only for the mass and volume units. UnitUnknown
//	and arbitrary values return false, which the calculator treats as
//	"not computable with current rules".
//
// Outputs:
//   - bool: true if the unit is mass or volume
//
// Example:
//
//	if !factor.Unit.IsValid() {
//	    continue // skip, no applicable calculation
//	}
func (u QuantityUnit) IsValid() bool {
	return validQuantityUnits[u]
}

// ParseQuantityUnit converts a raw unit cell into a QuantityUnit.
//
// Description:
//
//	Normalizes the declared unit by trimming whitespace and lowercasing
//	before matching. Anything that is not "mass" or "volume" maps to
//	UnitUnknown rather than failing the row.
//
// Inputs:
//   - raw: The unit text as found in the reference table
//
// Outputs:
//   - QuantityUnit: UnitMass, UnitVolume, or UnitUnknown
//
// Example:
//
//	datatypes.ParseQuantityUnit("VOLUME") // UnitVolume
//	datatypes.ParseQuantityUnit("kg/m2")  // UnitUnknown
func ParseQuantityUnit(raw string) QuantityUnit {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "mass":
		return UnitMass
	case "volume":
		return UnitVolume
	default:
		return UnitUnknown
	}
}

// =============================================================================
// IMPACT FACTORS
// =============================================================================

// ImpactFactor is one typed row of the LCA reference dataset.
//
// Description:
//
//	An ImpactFactor carries the two embodied-carbon coefficients for a
//	material, addressed by a two-level taxonomy. Family is the coarse
//	category ("Concrete", "Steel"), grade the specific product or mix
//	within it ("C30/37", "S355"). A factor with an empty grade acts as
//	the family-level default.
//
//	Factors are immutable once parsed. Lookups over a table are
//	first-match-wins in original row order.
//
// Fields:
//   - MaterialFamily: Coarse material category the factor applies to
//   - MaterialGrade: Specific grade, or empty for a family default
//   - StageABC: Impact coefficient for stages A-C (production through construction)
//   - StageD: Impact coefficient for stage D (end-of-life and benefits)
//   - Unit: Physical quantity the coefficients scale with
//
// JSON Tags:
//
//	All fields are serialized with snake_case names.
//
// Example:
//
//	factor := datatypes.ImpactFactor{
//	    MaterialFamily: "Concrete",
//	    MaterialGrade:  "C30/37",
//	    StageABC:       250.0,
//	    StageD:         -12.5,
//	    Unit:           datatypes.UnitVolume,
//	}
//
// Assumptions:
//   - Coefficients that failed numeric parsing were zeroed upstream
type ImpactFactor struct {
	MaterialFamily string       `json:"material_family"`
	MaterialGrade  string       `json:"material_grade"`
	StageABC       float64      `json:"stage_abc"`
	StageD         float64      `json:"stage_d"`
	Unit           QuantityUnit `json:"unit"`
}

// FactorTable is the ordered collection of impact factors for one run.
//
// Description:
//
//	A FactorTable preserves the original row order of the reference
//	dataset. All lookups scan linearly and return the first match; the
//	table is small (dozens of rows), so no index is built.
type FactorTable []ImpactFactor

// DefaultFor returns the family-level default factor for a material family.
//
// Description:
//
//	Scans the table in order and returns the first factor whose
//	MaterialFamily equals the family key exactly. An absent default is
//	not by itself an error; grade-specific factors may still apply.
//
// Inputs:
//   - family: The family group key (case-sensitive)
//
// Outputs:
//   - ImpactFactor: The matched factor (zero value if none)
//   - bool: true if a factor was found
func (t FactorTable) DefaultFor(family string) (ImpactFactor, bool) {
	for _, f := range t {
		if f.MaterialFamily == family {
			return f, true
		}
	}
	return ImpactFactor{}, false
}

// GradeOverride returns the grade-specific factor for a grade subgroup.
//
// Description:
//
//	Scans the table in order and returns the first factor whose
//	MaterialGrade equals the grade key exactly. A grade match overrides
//	the family default for that subgroup only.
//
// Inputs:
//   - grade: The grade subgroup key (case-sensitive)
//
// Outputs:
//   - ImpactFactor: The matched factor (zero value if none)
//   - bool: true if a factor was found
func (t FactorTable) GradeOverride(grade string) (ImpactFactor, bool) {
	for _, f := range t {
		if f.MaterialGrade == grade {
			return f, true
		}
	}
	return ImpactFactor{}, false
}
