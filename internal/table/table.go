// Package table reads FCPR measurement tables (spreadsheet or CSV), reduces
// them to tensor and intensity ratios and writes the result table.
//
// Input columns are matched by header name, case-insensitively, in any
// order. Extra columns are ignored. Empty or unparsable cells read as NaN.
package table

import (
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"strings"
)

// Input column names.
const (
	ColFreq1 = "Freq1"
	ColAxx   = "Axx"
	ColAxy   = "Axy"
	ColAyy   = "Ayy"
	ColAxz   = "Axz"
	ColAyz   = "Ayz"
	ColAzz   = "Azz"
	ColFreq2 = "Freq2"
	ColIaa   = "I/aa"
	ColIac   = "I/ac"
	ColIcc   = "I/cc"
)

// TensorColumns are the Raman tensor component columns in component order.
var TensorColumns = []string{ColAxx, ColAxy, ColAyy, ColAxz, ColAyz, ColAzz}

// IntensityColumns are the polarized intensity columns.
var IntensityColumns = []string{ColIaa, ColIac, ColIcc}

// RequiredColumns lists every column Process reads.
var RequiredColumns = append(append(append([]string{ColFreq1}, TensorColumns...), ColFreq2), IntensityColumns...)

// OutputColumns is the header of the result table.
var OutputColumns = []string{"Freq1", "a_xx", "a_yy", "a_zz", "r_1", "r_2", "Freq2", "I_1", "I_2"}

var (
	// ErrMissingColumn is returned when a required header is absent.
	ErrMissingColumn = errors.New("missing column")
	// ErrRaggedTensor is returned when the tensor columns hold different
	// numbers of finite values.
	ErrRaggedTensor = errors.New("tensor columns have different numbers of values")
	// ErrEmpty is returned for a table without a header row.
	ErrEmpty = errors.New("table is empty")
	// ErrUnsupportedFormat is returned for file extensions other than .xlsx and .csv.
	ErrUnsupportedFormat = errors.New("unsupported table format")
)

// Sheet is a parsed numeric table keyed by normalised header name.
type Sheet struct {
	Header  []string
	columns map[string][]float64
	rows    int
}

// NewSheet builds a Sheet from a header and row-major cells. Rows shorter
// than the header are padded with NaN.
func NewSheet(header []string, cells [][]float64) *Sheet {
	s := &Sheet{
		Header:  append([]string(nil), header...),
		columns: make(map[string][]float64, len(header)),
		rows:    len(cells),
	}
	for ci, name := range header {
		key := normalise(name)
		if key == "" {
			continue
		}
		if _, dup := s.columns[key]; dup {
			// First occurrence wins, matching how a spreadsheet user reads it.
			continue
		}
		col := make([]float64, len(cells))
		for ri, row := range cells {
			if ci < len(row) {
				col[ri] = row[ci]
			} else {
				col[ri] = math.NaN()
			}
		}
		s.columns[key] = col
	}
	return s
}

// Rows returns the number of data rows.
func (s *Sheet) Rows() int { return s.rows }

// Column returns the named column, or ErrMissingColumn.
func (s *Sheet) Column(name string) ([]float64, error) {
	col, ok := s.columns[normalise(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrMissingColumn, name)
	}
	return col, nil
}

// Has reports whether the named column is present.
func (s *Sheet) Has(name string) bool {
	_, ok := s.columns[normalise(name)]
	return ok
}

// CheckColumns returns an error naming every missing column in names.
func (s *Sheet) CheckColumns(names ...string) error {
	var missing []string
	for _, n := range names {
		if !s.Has(n) {
			missing = append(missing, n)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingColumn, strings.Join(missing, ", "))
	}
	return nil
}

func normalise(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// DefaultOutputPath appends "_result" to the base name, keeping the extension.
func DefaultOutputPath(input string) string {
	ext := filepath.Ext(input)
	base := strings.TrimSuffix(input, ext)
	return base + "_result" + ext
}

// formatOf returns "xlsx" or "csv" for a path.
func formatOf(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		return "xlsx", nil
	case ".csv":
		return "csv", nil
	default:
		return "", fmt.Errorf("%w: %q (expected .xlsx or .csv)", ErrUnsupportedFormat, filepath.Ext(path))
	}
}
