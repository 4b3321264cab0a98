// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package datatypes

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// =============================================================================
// QuantityUnit Tests
// =============================================================================

func TestQuantityUnit_IsValid(t *testing.T) {
	assert.True(t, UnitMass.IsValid())
	assert.True(t, UnitVolume.IsValid())
	assert.False(t, UnitUnknown.IsValid())
	assert.False(t, QuantityUnit("").IsValid())
	assert.False(t, QuantityUnit("area").IsValid())
}

func TestParseQuantityUnit(t *testing.T) {
	testCases := []struct {
		raw      string
		expected QuantityUnit
	}{
		{"mass", UnitMass},
		{"volume", UnitVolume},
		{"Mass", UnitMass},
		{"VOLUME", UnitVolume},
		{"  mass  ", UnitMass},
		{"\tvolume\n", UnitVolume},
		{"", UnitUnknown},
		{"kg", UnitUnknown},
		{"m3", UnitUnknown},
		{"per area", UnitUnknown},
	}

	for _, tc := range testCases {
		t.Run(tc.raw, func(t *testing.T) {
			assert.Equal(t, tc.expected, ParseQuantityUnit(tc.raw))
		})
	}
}

// =============================================================================
// FactorTable Lookup Tests
// =============================================================================

// lookupTable mirrors a small EPD dataset: a family default row followed
// by grade-specific rows.
func lookupTable() FactorTable {
	return FactorTable{
		{MaterialFamily: "Concrete", MaterialGrade: "", StageABC: 10, StageD: -1, Unit: UnitMass},
		{MaterialFamily: "Concrete", MaterialGrade: "C30/37", StageABC: 20, StageD: -2, Unit: UnitMass},
		{MaterialFamily: "Steel", MaterialGrade: "S355", StageABC: 2500, StageD: -900, Unit: UnitMass},
		{MaterialFamily: "Concrete", MaterialGrade: "", StageABC: 99, StageD: 99, Unit: UnitVolume},
	}
}

func TestFactorTable_DefaultFor_FirstMatchWins(t *testing.T) {
	table := lookupTable()

	f, ok := table.DefaultFor("Concrete")
	assert.True(t, ok)
	assert.Equal(t, 10.0, f.StageABC, "first Concrete row wins, not the later duplicate")
	assert.Equal(t, UnitMass, f.Unit)
}

func TestFactorTable_DefaultFor_NoMatch(t *testing.T) {
	table := lookupTable()

	_, ok := table.DefaultFor("Timber")
	assert.False(t, ok)
}

func TestFactorTable_DefaultFor_CaseSensitive(t *testing.T) {
	table := lookupTable()

	_, ok := table.DefaultFor("concrete")
	assert.False(t, ok, "family keys match exactly")
}

func TestFactorTable_GradeOverride_Match(t *testing.T) {
	table := lookupTable()

	f, ok := table.GradeOverride("C30/37")
	assert.True(t, ok)
	assert.Equal(t, 20.0, f.StageABC)
}

func TestFactorTable_GradeOverride_NoMatch(t *testing.T) {
	table := lookupTable()

	_, ok := table.GradeOverride("C40/50")
	assert.False(t, ok)
}

func TestFactorTable_Empty(t *testing.T) {
	var table FactorTable

	_, ok := table.DefaultFor("Concrete")
	assert.False(t, ok)

	_, ok = table.GradeOverride("C30/37")
	assert.False(t, ok)
}
