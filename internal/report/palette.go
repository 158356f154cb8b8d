// Package report renders orientation search results as residual maps and
// tabular exports.
package report

import (
	"image/color"

	"github.com/lucasb-eyer/go-colorful"
)

// Residual maps run from rampLow (best fit) to rampHigh.
var (
	rampLow  = mustHex("#0d0887")
	rampHigh = mustHex("#f0f921")
)

func mustHex(s string) colorful.Color {
	c, err := colorful.Hex(s)
	if err != nil {
		panic(err)
	}
	return c
}

// ramp is a palette.Palette of colours blended in HCL space.
type ramp []color.Color

func (r ramp) Colors() []color.Color { return r }

// Ramp returns n colours blended from the low to the high end of the
// residual scale. HCL blending keeps perceived lightness monotonic.
func Ramp(n int) []color.Color {
	if n <= 0 {
		return nil
	}
	if n == 1 {
		return []color.Color{rampLow}
	}
	colors := make([]color.Color, n)
	for i := range colors {
		t := float64(i) / float64(n-1)
		colors[i] = rampLow.BlendHcl(rampHigh, t).Clamped()
	}
	return colors
}

// HexRamp returns Ramp(n) as "#rrggbb" strings.
func HexRamp(n int) []string {
	colors := Ramp(n)
	out := make([]string, len(colors))
	for i, c := range colors {
		out[i] = c.(colorful.Color).Hex()
	}
	return out
}
