package report

import (
	"errors"
	"fmt"
	"image/color"
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/raman-lab/fcpr/internal/search"
)

// logFloor clamps log10 residuals so exact fits stay on the colour scale.
const logFloor = -6

// ErrSurfaceTooSmall is returned for surfaces a heat map cannot be drawn from.
var ErrSurfaceTooSmall = errors.New("residual surface needs at least 2x2 finite points")

// LogResidual maps a residual to the plotted log10 scale. Non-finite
// residuals map to NaN and are left blank.
func LogResidual(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return math.NaN()
	}
	if v <= 0 {
		return logFloor
	}
	return math.Max(math.Log10(v), logFloor)
}

// residualGrid adapts a Surface to plotter.GridXYZ with theta on X.
type residualGrid struct {
	s *search.Surface
}

func (g residualGrid) Dims() (c, r int)   { return len(g.s.Theta), len(g.s.Chi) }
func (g residualGrid) Z(c, r int) float64 { return LogResidual(g.s.Residual[c][r]) }
func (g residualGrid) X(c int) float64    { return g.s.Theta[c] }
func (g residualGrid) Y(r int) float64    { return g.s.Chi[r] }

func checkSurface(s *search.Surface) error {
	if s == nil || len(s.Theta) < 2 || len(s.Chi) < 2 {
		return ErrSurfaceTooSmall
	}
	if _, _, _, ok := s.Min(); !ok {
		return ErrSurfaceTooSmall
	}
	return nil
}

// PNG draws the log10 residual map of s with sols overlaid and saves it to
// path. The image format follows the extension (.png, .svg, .pdf).
func PNG(path string, s *search.Surface, sols []search.Solution, title string) error {
	if err := checkSurface(s); err != nil {
		return err
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "θ (deg)"
	p.Y.Label.Text = "χ (deg)"

	hm := plotter.NewHeatMap(residualGrid{s}, ramp(Ramp(64)))
	p.Add(hm)

	if len(sols) > 0 {
		pts := make(plotter.XYs, len(sols))
		for i, sol := range sols {
			pts[i] = plotter.XY{X: sol.ThetaDeg, Y: sol.ChiDeg}
		}
		sc, err := plotter.NewScatter(pts)
		if err != nil {
			return fmt.Errorf("failed to create solution overlay: %w", err)
		}
		sc.GlyphStyle.Shape = draw.CrossGlyph{}
		sc.GlyphStyle.Color = color.White
		sc.GlyphStyle.Radius = vg.Points(4)
		p.Add(sc)
		p.Legend.Add(fmt.Sprintf("solutions (%d)", len(sols)), sc)
	}

	if err := p.Save(10*vg.Inch, 8*vg.Inch, path); err != nil {
		return fmt.Errorf("failed to save residual map: %w", err)
	}
	return nil
}
