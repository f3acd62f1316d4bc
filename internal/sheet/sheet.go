// Package sheet models the tabular data moved between the application and a
// remote spreadsheet: ordered columns, scalar cells, batch validation,
// column-letter addressing, and the xlsx encode/decode used by the rewrite
// path.
package sheet

import (
	"errors"
	"fmt"
	"strconv"
)

// Sentinel errors for malformed input. These are data errors: the caller
// must fix the input, no retry helps.
var (
	ErrNoColumns      = errors.New("sheet: batch has no columns")
	ErrColumnMismatch = errors.New("sheet: record columns do not match batch columns")
	ErrBadCell        = errors.New("sheet: cell value is not a scalar")
)

// Cell is a scalar spreadsheet value. Valid dynamic types are string, bool,
// the built-in integer and float types, and nil (written as empty).
type Cell = any

// Batch is an ordered set of rows sharing one column set, destined for one
// worksheet. Rows are stored positionally in Columns order.
type Batch struct {
	Columns []string
	Rows    [][]Cell

	// TargetSheet selects the destination worksheet; empty means the
	// workbook's first sheet.
	TargetSheet string
}

// NewBatch validates records against the column list and builds a Batch.
// Every record must supply exactly the batch's columns; values are
// positioned in Columns order regardless of map iteration. Zero records is
// allowed at construction — emptiness is rejected later, after the batch
// has been backed up.
func NewBatch(columns []string, records []map[string]Cell) (*Batch, error) {
	if len(columns) == 0 {
		return nil, ErrNoColumns
	}

	seen := make(map[string]bool, len(columns))
	for _, col := range columns {
		if col == "" {
			return nil, fmt.Errorf("%w: empty column name", ErrColumnMismatch)
		}

		if seen[col] {
			return nil, fmt.Errorf("%w: duplicate column %q", ErrColumnMismatch, col)
		}

		seen[col] = true
	}

	rows := make([][]Cell, 0, len(records))

	for i, rec := range records {
		if len(rec) != len(columns) {
			return nil, fmt.Errorf("%w: record %d has %d values, want %d",
				ErrColumnMismatch, i, len(rec), len(columns))
		}

		row := make([]Cell, len(columns))

		for j, col := range columns {
			v, ok := rec[col]
			if !ok {
				return nil, fmt.Errorf("%w: record %d missing column %q", ErrColumnMismatch, i, col)
			}

			if !isScalar(v) {
				return nil, fmt.Errorf("%w: record %d column %q has type %T", ErrBadCell, i, col, v)
			}

			row[j] = v
		}

		rows = append(rows, row)
	}

	return &Batch{Columns: columns, Rows: rows}, nil
}

// isScalar reports whether v is an allowed cell value.
func isScalar(v Cell) bool {
	switch v.(type) {
	case nil, string, bool,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return true
	default:
		return false
	}
}

// Aligned reprojects the batch's rows onto a destination column layout.
// Columns absent from the batch become empty strings; batch columns absent
// from the destination are dropped. Used by the rewrite path so appended
// rows line up with the sheet's existing header.
func (b *Batch) Aligned(destColumns []string) [][]Cell {
	index := make(map[string]int, len(b.Columns))
	for i, col := range b.Columns {
		index[col] = i
	}

	out := make([][]Cell, len(b.Rows))

	for r, row := range b.Rows {
		aligned := make([]Cell, len(destColumns))

		for c, col := range destColumns {
			if i, ok := index[col]; ok {
				aligned[c] = row[i]
			} else {
				aligned[c] = ""
			}
		}

		out[r] = aligned
	}

	return out
}

// Records rebuilds the batch as a slice of column→value maps, the shape the
// JSON backup artifact uses.
func (b *Batch) Records() []map[string]Cell {
	records := make([]map[string]Cell, len(b.Rows))

	for r, row := range b.Rows {
		rec := make(map[string]Cell, len(b.Columns))
		for c, col := range b.Columns {
			rec[col] = row[c]
		}

		records[r] = rec
	}

	return records
}

// ColumnLetter converts a 1-indexed column number to its spreadsheet letter
// name: 1→"A", 26→"Z", 27→"AA", 53→"BA".
func ColumnLetter(n int) string {
	var letters []byte

	for n > 0 {
		n--
		letters = append([]byte{byte('A' + n%26)}, letters...)
		n /= 26
	}

	return string(letters)
}

// CellString renders a cell value for CSV and xlsx output.
func CellString(v Cell) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	default:
		return fmt.Sprintf("%v", t)
	}
}
