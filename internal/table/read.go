package table

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Read loads a table from an .xlsx or .csv file.
func Read(path string) (*Sheet, error) {
	format, err := formatOf(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open table: %w", err)
	}
	defer f.Close()

	switch format {
	case "xlsx":
		return ReadXLSX(f)
	default:
		return ReadCSV(f)
	}
}

// utf8BOM is prepended by Excel's "CSV UTF-8" export.
const utf8BOM = "\ufeff"

// ReadCSV parses a comma-separated table with a header row.
func ReadCSV(r io.Reader) (*Sheet, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse csv: %w", err)
	}
	return fromRecords(records)
}

// ReadXLSX parses the first worksheet of a spreadsheet.
func ReadXLSX(r io.Reader) (*Sheet, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open spreadsheet: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrEmpty
	}
	// Raw values, so number formats such as "0.00" or "#,##0.00" do not
	// round or break parsing.
	records, err := f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheets[0], err)
	}
	return fromRecords(records)
}

func fromRecords(records [][]string) (*Sheet, error) {
	if len(records) == 0 {
		return nil, ErrEmpty
	}
	header := append([]string(nil), records[0]...)
	body := records[1:]
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], utf8BOM)
	}

	// Drop trailing rows that are entirely blank.
	for len(body) > 0 && blank(body[len(body)-1]) {
		body = body[:len(body)-1]
	}

	cells := make([][]float64, len(body))
	for i, rec := range body {
		row := make([]float64, len(header))
		for j := range row {
			row[j] = math.NaN()
			if j < len(rec) {
				row[j] = parseCell(rec[j])
			}
		}
		cells[i] = row
	}
	return NewSheet(header, cells), nil
}

func blank(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// parseCell converts a cell to float64; empty or non-numeric cells are NaN.
func parseCell(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return math.NaN()
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		var numErr *strconv.NumError
		if errors.As(err, &numErr) && errors.Is(numErr.Err, strconv.ErrRange) {
			return v
		}
		return math.NaN()
	}
	return v
}
