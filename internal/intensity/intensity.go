// Package intensity reduces polarized Raman intensities measured in the
// aa, ac and cc scattering configurations to the two ratios used as search
// targets.
package intensity

import "math"

// Triple holds the integrated intensities of one Raman mode measured in
// the parallel (aa), crossed (ac) and cc configurations.
type Triple struct {
	AA float64 `json:"aa"`
	AC float64 `json:"ac"`
	CC float64 `json:"cc"`
}

// Finite reports whether all three intensities are finite numbers.
func (t Triple) Finite() bool {
	return finite(t.AA) && finite(t.AC) && finite(t.CC)
}

// Ratios returns I1 = CC/AA and I2 = AC/AA. Both are NaN when AA is zero
// or any intensity is not finite.
func (t Triple) Ratios() (i1, i2 float64) {
	if !t.Finite() || t.AA == 0 {
		return math.NaN(), math.NaN()
	}
	return t.CC / t.AA, t.AC / t.AA
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
