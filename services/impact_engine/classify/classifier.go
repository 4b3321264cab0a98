// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package classify groups structural elements into the two-level material
// taxonomy used for factor resolution.
package classify

import (
	"errors"

	"github.com/AleutianAI/CarbonFrame/services/impact_engine/datatypes"
)

// ErrNoApplicableElements signals that a subtree carries no recognized
// element variants. Fatal for the whole run.
var ErrNoApplicableElements = errors.New("subtree contains no applicable element variants")

// ErrGroupingFailed signals that partitioning by material family yielded
// zero groups; every element lacked a material family. Fatal for the
// whole run.
var ErrGroupingFailed = errors.New("grouping by material family yielded no groups")

// GradeGroup is one grade subgroup within a material family.
type GradeGroup struct {
	Grade    string
	Elements []datatypes.StructuralElement
}

// FamilyGroup is one material family and its grade subgroups, both in
// encounter order.
type FamilyGroup struct {
	Family string
	Grades []GradeGroup
}

// Classify partitions a subtree's elements by material family, then by
// grade within each family.
//
// # Description
//
// Elements without a material family are dropped before family
// partitioning; within a family, elements without a grade are dropped
// before grade partitioning. Group order is the order each key was first
// encountered, which keeps counts reproducible across runs without
// imposing a canonical ordering.
//
// # Inputs
//
//   - elements: The recognized element variants of one subtree.
//
// # Outputs
//
//   - []FamilyGroup: Family groups in encounter order, each with grade
//     subgroups in encounter order.
//   - error: ErrNoApplicableElements when the slice is empty;
//     ErrGroupingFailed when no element carries a material family.
func Classify(elements []datatypes.StructuralElement) ([]FamilyGroup, error) {
	if len(elements) == 0 {
		return nil, ErrNoApplicableElements
	}

	families := partition(elements, datatypes.StructuralElement.MaterialFamily)
	if len(families) == 0 {
		return nil, ErrGroupingFailed
	}

	groups := make([]FamilyGroup, 0, len(families))
	for _, fam := range families {
		grades := partition(fam.elements, datatypes.StructuralElement.MaterialGrade)

		gg := make([]GradeGroup, 0, len(grades))
		for _, g := range grades {
			gg = append(gg, GradeGroup{Grade: g.key, Elements: g.elements})
		}

		groups = append(groups, FamilyGroup{Family: fam.key, Grades: gg})
	}

	return groups, nil
}

// bucket is one partition key with its elements in encounter order.
type bucket struct {
	key      string
	elements []datatypes.StructuralElement
}

// partition splits elements by the given key accessor, preserving
// encounter order of both keys and elements. Elements whose key is
// absent are dropped.
func partition(elements []datatypes.StructuralElement, keyOf func(datatypes.StructuralElement) (string, bool)) []bucket {
	var buckets []bucket
	index := make(map[string]int, len(elements))

	for _, el := range elements {
		key, ok := keyOf(el)
		if !ok {
			continue
		}

		i, seen := index[key]
		if !seen {
			i = len(buckets)
			index[key] = i
			buckets = append(buckets, bucket{key: key})
		}
		buckets[i].elements = append(buckets[i].elements, el)
	}

	return buckets
}
