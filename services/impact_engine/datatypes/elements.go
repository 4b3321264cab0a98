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
// This file contains the structural element variants, the subtree and graph
// containers they arrive in, and the impact result attached to an element.
// For reference factor types, see factors.go.
package datatypes

import (
	"encoding/json"
	"fmt"
)

// =============================================================================
// ENUMS
// =============================================================================

// ElementKind discriminates the recognized structural element variants.
//
// Description:
//
//	ElementKind is the wire-level tag that selects which concrete element
//	type a subtree entry decodes into. The set of recognized kinds is
//	closed; entries with any other kind pass through untouched and never
//	receive an impact result.
//
// Valid Values:
//   - "linear": One-dimensional members (beams, columns, braces)
//   - "planar": Two-dimensional members (slabs, walls, panels)
//
// Example:
//
//	if kind.IsValid() {
//	    log.Println("element participates in impact runs")
//	}
//
// Limitations:
//   - Point elements (nodes, connections) are not recognized
//   - Adding a new kind requires a new variant type in this file
type ElementKind string

const (
	ElementKindLinear ElementKind = "linear"
	ElementKindPlanar ElementKind = "planar"
)

// validElementKinds contains all recognized ElementKind values.
var validElementKinds = map[ElementKind]bool{
	ElementKindLinear: true,
	ElementKindPlanar: true,
}

// IsValid checks if the ElementKind is a recognized variant.
func (k ElementKind) IsValid() bool {
	return validElementKinds[k]
}

// =============================================================================
// QUANTITY KEYS
// =============================================================================

// Quantity map keys an element may carry. Authoring tools emit either the
// canonical key or its legacy spelling; lookups prefer canonical.
const (
	// QuantityKeyMass is the canonical key for element mass in kg.
	QuantityKeyMass = "mass"

	// QuantityKeyWeight is the legacy key for element mass in kg.
	QuantityKeyWeight = "weight"

	// QuantityKeyVolume is the canonical key for element net volume in m3.
	QuantityKeyVolume = "volume"

	// QuantityKeyNetVolume is the legacy key for element net volume in m3.
	QuantityKeyNetVolume = "netVolume"
)

// =============================================================================
// MATERIAL AND RESULT RECORDS
// =============================================================================

// MaterialRef is the material descriptor carried by a structural element.
//
// Description:
//
//	MaterialRef names the element's material in the two-level taxonomy
//	used by the reference dataset. Grade may equal a specific product
//	name. Either field may be empty when the authoring tool did not
//	assign a material; such elements are excluded from grouping.
//
// Fields:
//   - Family: Coarse material category ("Concrete", "Timber")
//   - Grade: Specific product or mix within the family ("C30/37")
type MaterialRef struct {
	Family string `json:"family"`
	Grade  string `json:"grade"`
}

// ImpactResult is the embodied-carbon contribution computed for one element.
//
// Description:
//
//	An ImpactResult holds the element's quantity multiplied by the two
//	coefficients of its resolved factor. It is attached to exactly one
//	element as a named sub-record and survives only as part of the
//	serialized element graph; it is never persisted separately.
//
// Fields:
//   - StageABC: Quantity times the factor's stage A-C coefficient
//   - StageD: Quantity times the factor's stage D coefficient
type ImpactResult struct {
	StageABC float64 `json:"stage_abc"`
	StageD   float64 `json:"stage_d"`
}

// =============================================================================
// ELEMENT CAPABILITY INTERFACE
// =============================================================================

// StructuralElement is the capability interface shared by all recognized
// element variants.
//
// Description:
//
//	Classification, resolution, and calculation depend only on this
//	interface, never on variant-specific branches. Optional data follows
//	the (value, ok) convention: material fields are absent when the
//	element carries no material reference or an empty field, quantities
//	are absent when no recognized key is present.
//
// Example:
//
//	family, ok := el.MaterialFamily()
//	if !ok {
//	    continue // never receives an impact result
//	}
//
// Limitations:
//   - AttachImpact replaces any prior result; re-running a calculation
//     over the same element overwrites rather than duplicates.
type StructuralElement interface {
	// ElementID returns the element's stable identifier.
	ElementID() string

	// MaterialFamily returns the material family, if assigned.
	MaterialFamily() (string, bool)

	// MaterialGrade returns the material grade, if assigned.
	MaterialGrade() (string, bool)

	// Mass returns the element mass in kg, preferring the canonical
	// quantity key over the legacy key.
	Mass() (float64, bool)

	// Volume returns the element net volume in m3, preferring the
	// canonical quantity key over the legacy key.
	Volume() (float64, bool)

	// AttachImpact sets the element's impact result, replacing any
	// prior attachment.
	AttachImpact(r ImpactResult)

	// Impact returns the attached impact result, if any.
	Impact() (ImpactResult, bool)
}

// elementCore holds the fields and capability methods shared by every
// recognized variant. Variants embed it and add their own geometry.
type elementCore struct {
	ID             string             `json:"id"`
	Kind           ElementKind        `json:"kind"`
	Name           string             `json:"name,omitempty"`
	Material       *MaterialRef       `json:"material,omitempty"`
	Quantities     map[string]float64 `json:"quantities,omitempty"`
	EmbodiedImpact *ImpactResult      `json:"embodied_impact,omitempty"`
}

// ElementID returns the element's stable identifier.
func (e *elementCore) ElementID() string {
	return e.ID
}

// MaterialFamily returns the material family, if assigned.
func (e *elementCore) MaterialFamily() (string, bool) {
	if e.Material == nil || e.Material.Family == "" {
		return "", false
	}
	return e.Material.Family, true
}

// MaterialGrade returns the material grade, if assigned.
func (e *elementCore) MaterialGrade() (string, bool) {
	if e.Material == nil || e.Material.Grade == "" {
		return "", false
	}
	return e.Material.Grade, true
}

// Mass returns the element mass in kg, if present under a recognized key.
func (e *elementCore) Mass() (float64, bool) {
	return e.quantity(QuantityKeyMass, QuantityKeyWeight)
}

// Volume returns the element net volume in m3, if present under a
// recognized key.
func (e *elementCore) Volume() (float64, bool) {
	return e.quantity(QuantityKeyVolume, QuantityKeyNetVolume)
}

// quantity returns the first quantity present under the given keys.
// A key that is present with value zero counts as present.
func (e *elementCore) quantity(keys ...string) (float64, bool) {
	for _, k := range keys {
		if v, ok := e.Quantities[k]; ok {
			return v, true
		}
	}
	return 0, false
}

// AttachImpact sets the element's impact result, replacing any prior one.
func (e *elementCore) AttachImpact(r ImpactResult) {
	e.EmbodiedImpact = &r
}

// Impact returns the attached impact result, if any.
func (e *elementCore) Impact() (ImpactResult, bool) {
	if e.EmbodiedImpact == nil {
		return ImpactResult{}, false
	}
	return *e.EmbodiedImpact, true
}

// =============================================================================
// ELEMENT VARIANTS
// =============================================================================

// LinearElement is a one-dimensional structural member.
//
// Description:
//
//	Beams, columns, and braces arrive as linear elements. Geometry
//	fields are carried for round-tripping; the impact engine reads only
//	the shared material and quantity data.
//
// Fields:
//   - Profile: Section profile designation ("HEB200", "IPE300")
//   - LengthM: Member length in meters
type LinearElement struct {
	elementCore

	Profile string  `json:"profile,omitempty"`
	LengthM float64 `json:"length_m,omitempty"`
}

// PlanarElement is a two-dimensional structural member.
//
// Description:
//
//	Slabs, walls, and panels arrive as planar elements. Geometry fields
//	are carried for round-tripping; the impact engine reads only the
//	shared material and quantity data.
//
// Fields:
//   - AreaM2: Surface area in square meters
//   - ThicknessM: Thickness in meters
type PlanarElement struct {
	elementCore

	AreaM2     float64 `json:"area_m2,omitempty"`
	ThicknessM float64 `json:"thickness_m,omitempty"`
}

var (
	_ StructuralElement = (*LinearElement)(nil)
	_ StructuralElement = (*PlanarElement)(nil)
)

// NewLinearElement creates a linear element with its kind tag set.
func NewLinearElement(id string) *LinearElement {
	return &LinearElement{elementCore: elementCore{ID: id, Kind: ElementKindLinear}}
}

// NewPlanarElement creates a planar element with its kind tag set.
func NewPlanarElement(id string) *PlanarElement {
	return &PlanarElement{elementCore: elementCore{ID: id, Kind: ElementKindPlanar}}
}

// =============================================================================
// SUBTREE AND GRAPH CONTAINERS
// =============================================================================

// StructuralSubtree is one self-contained analysis model within a larger
// model graph.
//
// Description:
//
//	A subtree carries the element list for one structural model. Decoding
//	from the wire materializes entries with a recognized kind into their
//	variant types and passes every other entry through untouched, so a
//	republished graph keeps content this engine does not understand.
//
// Fields:
//   - ID: Subtree identifier within the model graph
//   - Name: Human-readable subtree name
//   - Elements: Recognized element variants in wire order
//
// Limitations:
//   - Unrecognized entries are opaque; they are counted but not exposed
type StructuralSubtree struct {
	ID       string
	Name     string
	Elements []StructuralElement

	// rawEntries holds every wire entry in order; elementPos maps
	// Elements[i] back to its rawEntries index for re-serialization.
	rawEntries []json.RawMessage
	elementPos []int
}

// NewStructuralSubtree creates a subtree from already-typed elements,
// bypassing wire decoding. Used by tests and fixtures.
func NewStructuralSubtree(id, name string, elements ...StructuralElement) *StructuralSubtree {
	return &StructuralSubtree{ID: id, Name: name, Elements: elements}
}

// TotalEntryCount returns the number of element entries the subtree
// arrived with, including unrecognized kinds.
func (s *StructuralSubtree) TotalEntryCount() int {
	if s.rawEntries != nil {
		return len(s.rawEntries)
	}
	return len(s.Elements)
}

// IsEmpty reports whether the subtree carries no element entries at all.
func (s *StructuralSubtree) IsEmpty() bool {
	return s.TotalEntryCount() == 0
}

// subtreeWire is the serialized shape of a StructuralSubtree.
type subtreeWire struct {
	ID       string            `json:"id"`
	Name     string            `json:"name,omitempty"`
	Elements []json.RawMessage `json:"elements"`
}

// UnmarshalJSON decodes a subtree, materializing recognized element
// variants and passing unrecognized entries through untouched.
func (s *StructuralSubtree) UnmarshalJSON(data []byte) error {
	var wire subtreeWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return fmt.Errorf("decode subtree: %w", err)
	}

	s.ID = wire.ID
	s.Name = wire.Name
	s.Elements = nil
	s.rawEntries = wire.Elements
	s.elementPos = nil

	for i, raw := range wire.Elements {
		var probe struct {
			Kind ElementKind `json:"kind"`
		}
		if err := json.Unmarshal(raw, &probe); err != nil {
			// Not an object; passes through untouched.
			continue
		}

		switch probe.Kind {
		case ElementKindLinear:
			var el LinearElement
			if err := json.Unmarshal(raw, &el); err != nil {
				return fmt.Errorf("decode linear element at index %d: %w", i, err)
			}
			s.Elements = append(s.Elements, &el)
			s.elementPos = append(s.elementPos, i)
		case ElementKindPlanar:
			var el PlanarElement
			if err := json.Unmarshal(raw, &el); err != nil {
				return fmt.Errorf("decode planar element at index %d: %w", i, err)
			}
			s.Elements = append(s.Elements, &el)
			s.elementPos = append(s.elementPos, i)
		default:
			// Unrecognized kind; passes through untouched.
		}
	}

	return nil
}

// MarshalJSON re-serializes the subtree, emitting mutated recognized
// elements at their original positions and raw entries everywhere else.
func (s *StructuralSubtree) MarshalJSON() ([]byte, error) {
	entries := make([]json.RawMessage, len(s.rawEntries))
	copy(entries, s.rawEntries)

	for i, el := range s.Elements {
		b, err := json.Marshal(el)
		if err != nil {
			return nil, fmt.Errorf("encode element %q: %w", el.ElementID(), err)
		}
		if i < len(s.elementPos) {
			entries[s.elementPos[i]] = b
		} else {
			entries = append(entries, b)
		}
	}

	if entries == nil {
		entries = []json.RawMessage{}
	}
	return json.Marshal(subtreeWire{ID: s.ID, Name: s.Name, Elements: entries})
}

// ModelGraph is the root object returned by the model store for one
// published model version.
//
// Description:
//
//	The store locates structural subtrees within the full object graph
//	before returning it, so consumers never re-implement tree traversal.
//	Attributes is an opaque bag of graph-level data preserved verbatim
//	when the modified graph is republished.
//
// Fields:
//   - RootID: Identifier of the graph's root object
//   - Attributes: Graph-level data outside the subtrees, round-tripped opaquely
//   - Subtrees: The structural subtrees found in the graph
type ModelGraph struct {
	RootID     string               `json:"root_id,omitempty"`
	Attributes json.RawMessage      `json:"attributes,omitempty"`
	Subtrees   []*StructuralSubtree `json:"subtrees"`
}
