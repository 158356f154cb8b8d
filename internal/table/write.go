package table

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"

	"github.com/xuri/excelize/v2"
)

// SheetName is the worksheet written to spreadsheet output.
const SheetName = "Sheet1"

// Write stores the result table as .xlsx or .csv depending on the extension.
func Write(path string, p *Processed) error {
	format, err := formatOf(path)
	if err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output: %w", err)
	}

	switch format {
	case "xlsx":
		err = WriteXLSX(f, p)
	default:
		err = WriteCSV(f, p)
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	return err
}

// WriteCSV writes the result table; NaN cells are left empty.
func WriteCSV(w io.Writer, p *Processed) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(OutputColumns); err != nil {
		return err
	}
	rec := make([]string, len(OutputColumns))
	for _, row := range p.Rows {
		for i, v := range row.Values() {
			rec[i] = FormatFloat(v)
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteXLSX writes the result table to a single-sheet workbook.
func WriteXLSX(w io.Writer, p *Processed) error {
	f := excelize.NewFile()
	defer f.Close()

	header := make([]interface{}, len(OutputColumns))
	for i, h := range OutputColumns {
		header[i] = h
	}
	if err := f.SetSheetRow(SheetName, "A1", &header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for r, row := range p.Rows {
		cell, err := excelize.CoordinatesToCellName(1, r+2)
		if err != nil {
			return err
		}
		vals := row.Values()
		out := make([]interface{}, len(vals))
		for i, v := range vals {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				out[i] = nil
				continue
			}
			out[i] = v
		}
		if err := f.SetSheetRow(SheetName, cell, &out); err != nil {
			return fmt.Errorf("failed to write row %d: %w", r+1, err)
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write spreadsheet: %w", err)
	}
	return nil
}

// FormatFloat renders v with the shortest exact representation; NaN and
// infinities render as the empty string.
func FormatFloat(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return ""
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}
