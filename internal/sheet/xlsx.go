package sheet

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"
)

// Table is the decoded contents of one worksheet: a header row and the data
// rows beneath it, all as strings (the xlsx cell rendering).
type Table struct {
	Name    string
	Columns []string
	Rows    [][]string
}

// DecodeXLSX parses the first worksheet of an xlsx document into a Table.
// An entirely empty sheet yields a Table with no columns.
func DecodeXLSX(data []byte) (*Table, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("sheet: opening xlsx: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("sheet: workbook has no worksheets")
	}

	name := sheets[0]

	rows, err := f.GetRows(name)
	if err != nil {
		return nil, fmt.Errorf("sheet: reading worksheet %q: %w", name, err)
	}

	t := &Table{Name: name}

	if len(rows) > 0 {
		t.Columns = rows[0]
		t.Rows = rows[1:]
	}

	return t, nil
}

// EncodeXLSX serializes a Table to xlsx bytes, header row first, preserving
// the worksheet name and existing row order.
func EncodeXLSX(t *Table) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	name := t.Name
	if name == "" {
		name = "Sheet1"
	}

	if name != "Sheet1" {
		if err := f.SetSheetName("Sheet1", name); err != nil {
			return nil, fmt.Errorf("sheet: naming worksheet: %w", err)
		}
	}

	writeRow := func(rowIdx int, values []string) error {
		for col, v := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, rowIdx)
			if err != nil {
				return fmt.Errorf("sheet: cell coordinates: %w", err)
			}

			if err := f.SetCellValue(name, cell, v); err != nil {
				return fmt.Errorf("sheet: writing cell %s: %w", cell, err)
			}
		}

		return nil
	}

	if err := writeRow(1, t.Columns); err != nil {
		return nil, err
	}

	for i, row := range t.Rows {
		if err := writeRow(i+2, row); err != nil {
			return nil, err
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("sheet: serializing xlsx: %w", err)
	}

	return buf.Bytes(), nil
}

// AppendAligned appends batch rows to the table, reprojected onto the
// table's column layout. An empty table adopts the batch's columns so a
// fresh sheet still gets a header.
func (t *Table) AppendAligned(b *Batch) {
	if len(t.Columns) == 0 {
		t.Columns = append([]string(nil), b.Columns...)
	}

	for _, row := range b.Aligned(t.Columns) {
		strRow := make([]string, len(row))
		for i, cell := range row {
			strRow[i] = CellString(cell)
		}

		t.Rows = append(t.Rows, strRow)
	}
}
