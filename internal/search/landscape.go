package search

import (
	"context"
	"math"

	"golang.org/x/sync/errgroup"

	"github.com/raman-lab/fcpr/internal/model"
)

// Surface is the residual max(|F1-I1|, |F2-I2|) over a grid, indexed
// [theta][chi]. Non-finite model values are stored as +Inf.
type Surface struct {
	Theta    []float64   `json:"theta"`
	Chi      []float64   `json:"chi"`
	Residual [][]float64 `json:"residual"`
}

// Min returns the smallest finite residual and its indices, or ok=false
// when the surface holds no finite value.
func (s *Surface) Min() (v float64, i, j int, ok bool) {
	v = math.Inf(1)
	for ti, row := range s.Residual {
		for ci, r := range row {
			if r < v {
				v, i, j, ok = r, ti, ci, true
			}
		}
	}
	return v, i, j, ok
}

// Landscape evaluates the residual at every grid point.
func Landscape(ctx context.Context, target Target, grid Grid, workers int) (*Surface, error) {
	if err := target.Validate(); err != nil {
		return nil, err
	}
	if err := grid.Validate(); err != nil {
		return nil, err
	}

	s := &Surface{
		Theta:    grid.Theta.Values(),
		Chi:      grid.Chi.Values(),
		Residual: make([][]float64, grid.Theta.Len()),
	}
	chiRad := make([]float64, len(s.Chi))
	for j, c := range s.Chi {
		chiRad[j] = model.Radians(c)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(Options{Workers: workers}.workers())
	for i, thetaDeg := range s.Theta {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			theta := model.Radians(thetaDeg)
			row := make([]float64, len(chiRad))
			for j, chi := range chiRad {
				p := model.Evaluate(theta, chi, target.R1, target.R2)
				row[j] = model.MaxAbsResidual(p, target.I1, target.I2)
			}
			s.Residual[i] = row
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s, nil
}
