package search

import (
	"context"
	"math"
)

// refineDivisor is the factor by which the step shrinks on each pass.
const refineDivisor = 10

// narrowAround returns a range of ±1 step around center with step/refineDivisor.
func narrowAround(center float64, r RangeSpec) RangeSpec {
	step := r.Step / refineDivisor
	return RangeSpec{
		Min:  math.Round((center-r.Step)*1e6) / 1e6,
		Max:  math.Round((center+r.Step)*1e6) / 1e6,
		Step: step,
	}
}

// refine re-scans a shrinking window around the current best solution and
// replaces it whenever a finer grid point matches with a smaller residual.
// The window may extend past the original grid bounds; the model is
// periodic so that is harmless.
func refine(ctx context.Context, res *Result, opts Options) error {
	theta, chi := res.Grid.Theta, res.Grid.Chi
	inner := Options{Mode: ModeBest, Workers: opts.Workers}

	for pass := 0; pass < opts.Refine; pass++ {
		best := res.Solutions[0]
		theta = narrowAround(best.ThetaDeg, theta)
		chi = narrowAround(best.ChiDeg, chi)
		if theta.Step < 1e-6 || chi.Step < 1e-6 {
			return nil
		}

		sub, err := scan(ctx, res.Target, Grid{Theta: theta, Chi: chi}, inner)
		if err != nil {
			return err
		}
		res.Evaluated += sub.Evaluated
		if sub.Found() && sub.Solutions[0].Residual < best.Residual {
			res.Solutions[0] = sub.Solutions[0]
		}
	}
	return nil
}
