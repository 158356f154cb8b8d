// Package analysis chains table reduction and the orientation search over
// every row of a processed measurement table.
package analysis

import (
	"context"
	"fmt"
	"math"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"

	"github.com/raman-lab/fcpr/internal/monitoring"
	"github.com/raman-lab/fcpr/internal/search"
	"github.com/raman-lab/fcpr/internal/table"
)

// Config controls a batch analysis.
type Config struct {
	Grid      search.Grid
	Options   search.Options
	Tolerance float64
	// Concurrency bounds how many rows are solved at once. Each row search
	// additionally uses Options.Workers goroutines.
	Concurrency int
}

// RowSolution is the search outcome for one table row.
type RowSolution struct {
	Row     table.ResultRow `json:"row"`
	Skipped bool            `json:"skipped"`
	Result  *search.Result  `json:"result,omitempty"`
}

// Found reports whether the row was searched and matched.
func (r RowSolution) Found() bool {
	return !r.Skipped && r.Result.Found()
}

// Summary aggregates a batch.
type Summary struct {
	Rows      int           `json:"rows"`
	Solved    int           `json:"solved"`
	Skipped   int           `json:"skipped"`
	Unmatched int           `json:"unmatched"`
	MeanTheta float64       `json:"mean_theta_deg"`
	StdTheta  float64       `json:"std_theta_deg"`
	MeanChi   float64       `json:"mean_chi_deg"`
	StdChi    float64       `json:"std_chi_deg"`
	Elapsed   time.Duration `json:"elapsed_ns"`
}

// Analyze runs search.Solve for every solvable row of p. Rows with a
// non-finite tensor or intensity ratio are returned with Skipped set.
// Output order follows the table.
func Analyze(ctx context.Context, p *table.Processed, cfg Config) ([]RowSolution, error) {
	defer monitoring.Stage("analyze")()

	tol := cfg.Tolerance
	if tol == 0 {
		tol = search.DefaultTolerance
	}
	if err := cfg.Grid.Validate(); err != nil {
		return nil, err
	}

	out := make([]RowSolution, len(p.Rows))
	conc := cfg.Concurrency
	if conc <= 0 {
		conc = max(1, runtime.GOMAXPROCS(0)/2)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(conc)
	for i, row := range p.Rows {
		out[i].Row = row
		if !row.Solvable() {
			out[i].Skipped = true
			continue
		}
		g.Go(func() error {
			target := search.Target{R1: row.R1, R2: row.R2, I1: row.I1, I2: row.I2, Tolerance: tol}
			res, err := search.Solve(gctx, target, cfg.Grid, cfg.Options)
			if err != nil {
				return fmt.Errorf("row %d: %w", row.Index+1, err)
			}
			out[i].Result = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Summarize counts outcomes and computes the mean and standard deviation of
// the reported angles over matched rows.
func Summarize(rows []RowSolution, elapsed time.Duration) Summary {
	s := Summary{Rows: len(rows), Elapsed: elapsed}
	var thetas, chis []float64
	for _, r := range rows {
		switch {
		case r.Skipped:
			s.Skipped++
		case r.Found():
			s.Solved++
			best := r.Result.Best()
			thetas = append(thetas, best.ThetaDeg)
			chis = append(chis, best.ChiDeg)
		default:
			s.Unmatched++
		}
	}
	s.MeanTheta, s.StdTheta = meanStd(thetas)
	s.MeanChi, s.StdChi = meanStd(chis)
	return s
}

func meanStd(xs []float64) (float64, float64) {
	switch len(xs) {
	case 0:
		return math.NaN(), math.NaN()
	case 1:
		return xs[0], 0
	}
	return stat.MeanStdDev(xs, nil)
}
