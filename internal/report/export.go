package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/raman-lab/fcpr/internal/analysis"
	"github.com/raman-lab/fcpr/internal/search"
	"github.com/raman-lab/fcpr/internal/table"
)

// SolutionColumns heads a solution listing.
var SolutionColumns = []string{"theta_deg", "chi_deg", "f1", "f2", "residual"}

// AnalysisColumns heads a batch analysis export.
var AnalysisColumns = []string{
	"Index", table.ColFreq1, table.ColFreq2,
	"r_1", "r_2", "I_1", "I_2",
	"status", "theta_deg", "chi_deg", "f1", "f2", "residual",
}

// Row statuses in an analysis export.
const (
	StatusSolved    = "solved"
	StatusUnmatched = "unmatched"
	StatusSkipped   = "skipped"
)

// WriteSolutionsCSV writes one line per solution.
func WriteSolutionsCSV(w io.Writer, sols []search.Solution) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(SolutionColumns); err != nil {
		return err
	}
	for _, s := range sols {
		if err := cw.Write(formatRow(solutionValues(s))); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func solutionValues(s search.Solution) []float64 {
	return []float64{s.ThetaDeg, s.ChiDeg, s.F1, s.F2, s.Residual}
}

func formatRow(vals []float64) []string {
	out := make([]string, len(vals))
	for i, v := range vals {
		out[i] = table.FormatFloat(v)
	}
	return out
}

// Status classifies a row outcome.
func Status(r analysis.RowSolution) string {
	switch {
	case r.Skipped:
		return StatusSkipped
	case r.Found():
		return StatusSolved
	default:
		return StatusUnmatched
	}
}

// analysisRecord returns the leading columns, the status and the trailing
// solution columns. Unsolved rows carry NaN solution cells.
func analysisRecord(r analysis.RowSolution) (head []float64, status string, tail []float64) {
	row := r.Row
	head = []float64{float64(row.Index), row.Freq1, row.Freq2, row.R1, row.R2, row.I1, row.I2}
	tail = []float64{math.NaN(), math.NaN(), math.NaN(), math.NaN(), math.NaN()}
	if best := r.Result.Best(); !r.Skipped && best != nil {
		tail = solutionValues(*best)
	}
	return head, Status(r), tail
}

// WriteAnalysisCSV writes one line per table row; empty cells mark values
// that are undefined for the row.
func WriteAnalysisCSV(w io.Writer, rows []analysis.RowSolution) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(AnalysisColumns); err != nil {
		return err
	}
	for _, r := range rows {
		head, status, tail := analysisRecord(r)
		rec := append(formatRow(head), status)
		rec = append(rec, formatRow(tail)...)
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteAnalysisXLSX writes the analysis export as a single-sheet workbook.
func WriteAnalysisXLSX(w io.Writer, rows []analysis.RowSolution) error {
	f := excelize.NewFile()
	defer f.Close()

	header := make([]interface{}, len(AnalysisColumns))
	for i, h := range AnalysisColumns {
		header[i] = h
	}
	if err := f.SetSheetRow(table.SheetName, "A1", &header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for i, r := range rows {
		head, status, tail := analysisRecord(r)
		out := make([]interface{}, 0, len(AnalysisColumns))
		for _, v := range head {
			out = append(out, cellValue(v))
		}
		out = append(out, status)
		for _, v := range tail {
			out = append(out, cellValue(v))
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(table.SheetName, cell, &out); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+1, err)
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write spreadsheet: %w", err)
	}
	return nil
}

func cellValue(v float64) interface{} {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return v
}

// WriteAnalysis stores the export as .xlsx or .csv depending on the extension.
func WriteAnalysis(path string, rows []analysis.RowSolution) error {
	ext := strings.ToLower(filepath.Ext(path))
	var write func(io.Writer, []analysis.RowSolution) error
	switch ext {
	case ".xlsx", ".xlsm":
		write = WriteAnalysisXLSX
	case ".csv":
		write = WriteAnalysisCSV
	default:
		return fmt.Errorf("%w: %q", table.ErrUnsupportedFormat, ext)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output: %w", err)
	}
	err = write(f, rows)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	return err
}
