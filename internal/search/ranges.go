// Package search locates crystal orientations (theta, chi) whose modelled
// polarized intensity ratios match measured targets.
package search

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/floats"
)

// maxValuesPerAxis limits the number of grid points generated for one axis
// to avoid excessive memory allocation from untrusted input.
const maxValuesPerAxis = 100000

// maxGridPoints bounds a full theta x chi scan.
const maxGridPoints = 50_000_000

// ErrInvalidRange is returned for malformed or oversized ranges.
var ErrInvalidRange = errors.New("invalid range")

// RangeSpec defines an inclusive angle range in degrees.
type RangeSpec struct {
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
	Step float64 `json:"step"`
}

// ParseRangeSpec parses a "min:max:step" string into a RangeSpec.
// Returns an error if the format is invalid or values cannot be parsed.
func ParseRangeSpec(s string) (RangeSpec, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return RangeSpec{}, fmt.Errorf("invalid range format %q: expected min:max:step", s)
	}

	min, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return RangeSpec{}, fmt.Errorf("invalid min value %q: %w", parts[0], err)
	}

	max, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return RangeSpec{}, fmt.Errorf("invalid max value %q: %w", parts[1], err)
	}

	step, err := strconv.ParseFloat(strings.TrimSpace(parts[2]), 64)
	if err != nil {
		return RangeSpec{}, fmt.Errorf("invalid step value %q: %w", parts[2], err)
	}

	r := RangeSpec{Min: min, Max: max, Step: step}
	if err := r.Validate(); err != nil {
		return RangeSpec{}, err
	}
	return r, nil
}

// String returns the "min:max:step" form accepted by ParseRangeSpec.
func (r RangeSpec) String() string {
	return fmt.Sprintf("%g:%g:%g", r.Min, r.Max, r.Step)
}

// UnmarshalJSON accepts either {"min":..,"max":..,"step":..} or "min:max:step".
func (r *RangeSpec) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		parsed, err := ParseRangeSpec(s)
		if err != nil {
			return err
		}
		*r = parsed
		return nil
	}
	type plain RangeSpec
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*r = RangeSpec(p)
	return nil
}

// Validate checks that the range is finite, ordered and small enough to scan.
func (r RangeSpec) Validate() error {
	for _, v := range []float64{r.Min, r.Max, r.Step} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: %s contains a non-finite value", ErrInvalidRange, r)
		}
	}
	if r.Step <= 0 {
		return fmt.Errorf("%w: step must be positive, got %g", ErrInvalidRange, r.Step)
	}
	if r.Min > r.Max {
		return fmt.Errorf("%w: min %g is greater than max %g", ErrInvalidRange, r.Min, r.Max)
	}
	if n := r.Len(); n > maxValuesPerAxis {
		return fmt.Errorf("%w: %s has %d values (max %d)", ErrInvalidRange, r, n, maxValuesPerAxis)
	}
	return nil
}

// Len returns the number of grid values in the range, or 0 when the range
// is empty or malformed.
func (r RangeSpec) Len() int {
	if r.Step <= 0 || r.Min > r.Max {
		return 0
	}
	n := math.Floor((r.Max-r.Min)/r.Step + 1e-9)
	if n < 0 || math.IsNaN(n) || n >= math.MaxInt32 {
		return 0
	}
	return int(n) + 1
}

// Values returns min, min+step, ... up to and including max. Values are
// computed from the index rather than accumulated and rounded to 1e-6 so
// that e.g. 0:360:0.5 yields exactly 721 half-degree angles.
func (r RangeSpec) Values() []float64 {
	n := r.Len()
	if n == 0 || n > maxValuesPerAxis {
		return nil
	}
	out := make([]float64, n)
	if n == 1 {
		out[0] = r.Min
		return out
	}
	floats.Span(out, r.Min, r.Min+float64(n-1)*r.Step)
	for i, v := range out {
		out[i] = math.Round(v*1e6) / 1e6
	}
	return out
}

// Grid is the (theta, chi) lattice scanned by Solve, theta outer.
type Grid struct {
	Theta RangeSpec `json:"theta"`
	Chi   RangeSpec `json:"chi"`
}

// DefaultGrid scans both angles over 0..360 degrees in 0.5 degree steps.
func DefaultGrid() Grid {
	full := RangeSpec{Min: 0, Max: 360, Step: 0.5}
	return Grid{Theta: full, Chi: full}
}

// Validate checks both axes.
func (g Grid) Validate() error {
	if err := g.Theta.Validate(); err != nil {
		return fmt.Errorf("theta: %w", err)
	}
	if err := g.Chi.Validate(); err != nil {
		return fmt.Errorf("chi: %w", err)
	}
	if n := g.Size(); n > maxGridPoints {
		return fmt.Errorf("%w: grid has %d points (max %d)", ErrInvalidRange, n, maxGridPoints)
	}
	return nil
}

// Size returns the number of grid points.
func (g Grid) Size() int {
	return g.Theta.Len() * g.Chi.Len()
}
