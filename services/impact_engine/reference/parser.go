// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package reference

import (
	"encoding/json"
	"log/slog"
	"strconv"
	"strings"

	"github.com/AleutianAI/CarbonFrame/services/impact_engine/datatypes"
)

// Positional fields of one reference row after the header.
const (
	colFamily   = 0
	colGrade    = 1
	colStageABC = 2
	colStageD   = 3
	colUnit     = 4

	// minRowFields is the number of positional fields a complete row carries.
	minRowFields = 5
)

// Parser turns normalized reference rows into typed impact factors.
//
// # Description
//
// Parser applies the lenient numeric policy: coefficients accept comma or
// period decimals, and a cell that cannot be parsed zeroes the
// coefficient instead of failing the row. Every zeroed cell is logged at
// warning level so an operator can audit the dataset.
//
// # Thread Safety
//
// Parser is safe for concurrent use.
type Parser struct {
	logger *slog.Logger
}

// NewParser creates a Parser.
//
// # Inputs
//
//   - logger: Logger for per-cell parse warnings. If nil, uses slog.Default().
func NewParser(logger *slog.Logger) *Parser {
	if logger == nil {
		logger = slog.Default()
	}
	return &Parser{logger: logger}
}

// Parse normalizes a raw reference payload and converts it into factors.
//
// # Inputs
//
//   - raw: The payload bytes as returned by the model store.
//
// # Outputs
//
//   - datatypes.FactorTable: One factor per data row, in original order.
//   - error: ErrDataUnavailable for empty or header-only datasets; a
//     wrapped decode error for malformed JSON.
func (p *Parser) Parse(raw []byte) (datatypes.FactorTable, error) {
	rows, err := NormalizeRows(raw)
	if err != nil {
		return nil, err
	}
	return p.ParseRows(rows)
}

// ParseRows converts normalized rows into typed impact factors.
//
// # Description
//
// The first row is the header and is discarded. Every subsequent row
// yields exactly one factor in original order:
//
//   - family, grade, unit cells coerce to plain strings
//   - coefficient cells parse leniently; on failure the coefficient is
//     0.0 and a warning is logged
//   - short rows zero-fill their missing fields and log a warning
//
// # Inputs
//
//   - rows: The normalized row sequence, header first.
//
// # Outputs
//
//   - datatypes.FactorTable: One factor per data row.
//   - error: ErrDataUnavailable if no data rows remain after the header.
func (p *Parser) ParseRows(rows [][]interface{}) (datatypes.FactorTable, error) {
	if len(rows) <= 1 {
		return nil, ErrDataUnavailable
	}

	table := make(datatypes.FactorTable, 0, len(rows)-1)
	for i, row := range rows[1:] {
		rowNum := i + 2 // 1-based, counting the header

		if len(row) < minRowFields {
			p.logger.Warn("reference row is missing fields",
				slog.Int("row", rowNum),
				slog.Int("fields", len(row)))
		}

		family := coerceString(cellAt(row, colFamily))
		grade := coerceString(cellAt(row, colGrade))

		stageABC, ok := coerceFloat(cellAt(row, colStageABC))
		if !ok {
			p.logger.Warn("unparsable stage A-C coefficient zeroed",
				slog.Int("row", rowNum),
				slog.String("family", family),
				slog.String("cell", coerceString(cellAt(row, colStageABC))))
		}

		stageD, ok := coerceFloat(cellAt(row, colStageD))
		if !ok {
			p.logger.Warn("unparsable stage D coefficient zeroed",
				slog.Int("row", rowNum),
				slog.String("family", family),
				slog.String("cell", coerceString(cellAt(row, colStageD))))
		}

		table = append(table, datatypes.ImpactFactor{
			MaterialFamily: family,
			MaterialGrade:  grade,
			StageABC:       stageABC,
			StageD:         stageD,
			Unit:           datatypes.ParseQuantityUnit(coerceString(cellAt(row, colUnit))),
		})
	}

	return table, nil
}

// cellAt returns the cell at index i, or nil when the row is short.
func cellAt(row []interface{}, i int) interface{} {
	if i >= len(row) {
		return nil
	}
	return row[i]
}

// coerceString renders a mixed-typed cell as a plain string.
func coerceString(cell interface{}) string {
	switch v := cell.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case json.Number:
		return v.String()
	case bool:
		return strconv.FormatBool(v)
	default:
		return ""
	}
}

// coerceFloat parses a mixed-typed cell as a coefficient.
// Returns (0, false) when the cell cannot be interpreted as a number;
// callers zero the coefficient rather than failing the row.
func coerceFloat(cell interface{}) (float64, bool) {
	switch v := cell.(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return 0, false
		}
		return f, true
	case string:
		f, err := parseLenientDecimal(v)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// parseLenientDecimal parses numeric text that may use a comma or a
// period as the decimal separator, with the other character (and spaces)
// acting as grouping.
//
// The last comma or period in the text is taken as the decimal
// separator; every other comma, period, and space is stripped before the
// final parse. "1,5" and "1.5" both yield 1.5; "1.234,56" and "1,234.56"
// both yield 1234.56. A lone comma in "1,234" is read as a decimal
// separator, yielding 1.234.
func parseLenientDecimal(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, strconv.ErrSyntax
	}

	sep := strings.LastIndexAny(s, ",.")
	var b strings.Builder
	b.Grow(len(s))
	for i, r := range s {
		switch r {
		case ',', '.':
			if i == sep {
				b.WriteByte('.')
			}
		case ' ':
			// Grouping space, stripped.
		default:
			b.WriteRune(r)
		}
	}

	return strconv.ParseFloat(b.String(), 64)
}
