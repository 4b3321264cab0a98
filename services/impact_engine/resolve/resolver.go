// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package resolve matches classified material groups against a reference
// factor table.
package resolve

import (
	"fmt"

	"github.com/AleutianAI/CarbonFrame/services/impact_engine/classify"
	"github.com/AleutianAI/CarbonFrame/services/impact_engine/datatypes"
)

// ResolvedGroup is one grade subgroup with its effective impact factor.
//
// Description:
//
//	The effective factor is the grade override when the table carries
//	one, otherwise the family default. Factor is nil when neither
//	matched; such groups still appear in the output so downstream
//	accounting sees every subgroup, but no impact can be computed for
//	their elements.
//
// Fields:
//   - Family: Material family the subgroup belongs to
//   - Grade: Material grade shared by the subgroup's elements
//   - Factor: Effective impact factor, nil when unresolved
//   - Elements: The subgroup's elements in encounter order
type ResolvedGroup struct {
	Family   string
	Grade    string
	Factor   *datatypes.ImpactFactor
	Elements []datatypes.StructuralElement
}

// Resolve assigns an effective impact factor to every grade subgroup.
//
// Description:
//
//	For each family the resolver picks the family default: the first
//	table row whose family matches the group's. For each grade subgroup
//	it then scans the whole table for a row whose grade matches the
//	subgroup's; a match overrides the family default regardless of which
//	family the matching row belongs to. A subgroup with neither an
//	override nor a default produces a warning and a nil factor; the run
//	continues.
//
// Inputs:
//   - groups: Family groups from classification, in encounter order.
//   - table: Parsed reference factors in dataset row order.
//
// Outputs:
//   - []ResolvedGroup: One entry per grade subgroup, in input order.
//   - []string: Human-readable warnings for unresolved subgroups.
func Resolve(groups []classify.FamilyGroup, table datatypes.FactorTable) ([]ResolvedGroup, []string) {
	var resolved []ResolvedGroup
	var warnings []string

	for _, fam := range groups {
		def, hasDefault := table.DefaultFor(fam.Family)

		for _, sub := range fam.Grades {
			rg := ResolvedGroup{Family: fam.Family, Grade: sub.Grade, Elements: sub.Elements}

			if override, ok := table.GradeOverride(sub.Grade); ok {
				rg.Factor = &override
			} else if hasDefault {
				// Copy so subgroups of one family never share a factor value.
				d := def
				rg.Factor = &d
			} else {
				warnings = append(warnings, fmt.Sprintf(
					"no impact factor for material family %q grade %q", fam.Family, sub.Grade))
			}

			resolved = append(resolved, rg)
		}
	}

	return resolved, warnings
}
