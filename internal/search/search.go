package search

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/raman-lab/fcpr/internal/model"
	"github.com/raman-lab/fcpr/internal/monitoring"
)

// DefaultTolerance is the acceptance band applied to both intensity ratios.
const DefaultTolerance = 0.05

// DefaultMaxSolutions caps ModeAll output.
const DefaultMaxSolutions = 1000

// ErrInvalidTarget is returned when a Target cannot be searched.
var ErrInvalidTarget = errors.New("invalid search target")

// Mode selects which matching grid points Solve reports.
type Mode int

const (
	// ModeFirst reports the first match in scan order (theta outer, chi
	// inner, both ascending).
	ModeFirst Mode = iota
	// ModeBest reports the match with the smallest residual.
	ModeBest
	// ModeAll reports every match in scan order.
	ModeAll
)

func (m Mode) String() string {
	switch m {
	case ModeFirst:
		return "first"
	case ModeBest:
		return "best"
	case ModeAll:
		return "all"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// ParseMode parses "first", "best" or "all". The empty string maps to ModeFirst.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "first":
		return ModeFirst, nil
	case "best":
		return ModeBest, nil
	case "all":
		return ModeAll, nil
	default:
		return ModeFirst, fmt.Errorf("unknown search mode %q: expected first, best or all", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (m Mode) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *Mode) UnmarshalText(b []byte) error {
	parsed, err := ParseMode(string(b))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Target is one orientation problem: tensor ratios and measured intensity ratios.
type Target struct {
	R1        float64 `json:"r1"`
	R2        float64 `json:"r2"`
	I1        float64 `json:"i1"`
	I2        float64 `json:"i2"`
	Tolerance float64 `json:"tolerance"`
}

// Validate rejects non-finite inputs and a non-positive tolerance.
func (t Target) Validate() error {
	fields := []struct {
		name string
		v    float64
	}{{"r1", t.R1}, {"r2", t.R2}, {"i1", t.I1}, {"i2", t.I2}, {"tolerance", t.Tolerance}}
	for _, f := range fields {
		if math.IsNaN(f.v) || math.IsInf(f.v, 0) {
			return fmt.Errorf("%w: %s is not finite", ErrInvalidTarget, f.name)
		}
	}
	if t.Tolerance <= 0 {
		return fmt.Errorf("%w: tolerance must be positive, got %g", ErrInvalidTarget, t.Tolerance)
	}
	return nil
}

// Matches reports whether p lies strictly within the tolerance band of both targets.
func (t Target) Matches(p model.Point) bool {
	if !p.Finite() {
		return false
	}
	return math.Abs(p.F1-t.I1) < t.Tolerance && math.Abs(p.F2-t.I2) < t.Tolerance
}

// Options tune a Solve call. The zero value is ModeFirst on GOMAXPROCS workers.
type Options struct {
	Mode         Mode `json:"mode"`
	Workers      int  `json:"workers,omitempty"`
	Refine       int  `json:"refine,omitempty"`
	MaxSolutions int  `json:"max_solutions,omitempty"`
}

func (o Options) workers() int {
	if o.Workers > 0 {
		return o.Workers
	}
	return runtime.GOMAXPROCS(0)
}

func (o Options) maxSolutions() int {
	if o.MaxSolutions > 0 {
		return o.MaxSolutions
	}
	return DefaultMaxSolutions
}

// Solution is one grid point, angles in degrees.
type Solution struct {
	ThetaDeg float64 `json:"theta_deg"`
	ChiDeg   float64 `json:"chi_deg"`
	F1       float64 `json:"f1"`
	F2       float64 `json:"f2"`
	Residual float64 `json:"residual"`
}

// Result is the outcome of one Solve call. Evaluated counts the grid points
// a sequential scan visits before it can stop, so it does not vary with
// Options.Workers.
type Result struct {
	Target    Target        `json:"target"`
	Grid      Grid          `json:"grid"`
	Mode      Mode          `json:"mode"`
	Solutions []Solution    `json:"solutions"`
	Closest   *Solution     `json:"closest,omitempty"`
	Evaluated int64         `json:"evaluated"`
	Truncated bool          `json:"truncated,omitempty"`
	Elapsed   time.Duration `json:"elapsed_ns"`
}

// Found reports whether any grid point matched.
func (r *Result) Found() bool { return r != nil && len(r.Solutions) > 0 }

// Best returns the first reported solution, or nil.
func (r *Result) Best() *Solution {
	if !r.Found() {
		return nil
	}
	return &r.Solutions[0]
}

// rowScan is the per-theta-row outcome.
type rowScan struct {
	matches []Solution
	best    int // index into matches, -1 if none, -2 if ModeAll overflowed
	closest Solution
	valid   bool
	visited int // grid points evaluated in this row
}

// kept is the number of matches the row contributes towards a ModeAll
// budget, counting an overflow as one more.
func (rs rowScan) kept() int {
	n := len(rs.matches)
	if rs.best == -2 {
		n++
	}
	return n
}

// allBudget tracks how many ModeAll matches the rows scanned so far hold,
// in scan order. Once the finished prefix of rows exceeds the limit, every
// later row is irrelevant and cutoff records the row where that happened.
type allBudget struct {
	mu     sync.Mutex
	limit  int
	kept   []int // -1 until the row finishes
	next   int   // first row not yet folded into total
	total  int
	cutoff atomic.Int64
}

func newAllBudget(rows, limit int) *allBudget {
	b := &allBudget{limit: limit, kept: make([]int, rows)}
	for i := range b.kept {
		b.kept[i] = -1
	}
	b.cutoff.Store(math.MaxInt64)
	return b
}

// finish records the match count of row i and advances the prefix.
func (b *allBudget) finish(i, n int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.kept[i] = n
	for b.next < len(b.kept) && b.kept[b.next] >= 0 {
		b.total += b.kept[b.next]
		if b.total > b.limit {
			b.cutoff.Store(int64(b.next))
			b.next = len(b.kept)
			return
		}
		b.next++
	}
}

// Solve scans grid for orientations matching target.
//
// Rows of constant theta are evaluated concurrently but the reported
// solutions are independent of the worker count: ModeFirst always returns
// the match a sequential theta-outer, chi-inner scan would find first.
// A search without matches is not an error; Result.Found reports false and
// Result.Closest holds the nearest point.
func Solve(ctx context.Context, target Target, grid Grid, opts Options) (*Result, error) {
	if err := target.Validate(); err != nil {
		return nil, err
	}
	if err := grid.Validate(); err != nil {
		return nil, err
	}
	if opts.Mode < ModeFirst || opts.Mode > ModeAll {
		return nil, fmt.Errorf("unknown search mode %d", int(opts.Mode))
	}

	start := time.Now()
	res, err := scan(ctx, target, grid, opts)
	if err != nil {
		return nil, err
	}

	if opts.Mode == ModeBest && opts.Refine > 0 && res.Found() {
		if err := refine(ctx, res, opts); err != nil {
			return nil, err
		}
	}
	res.Elapsed = time.Since(start)
	monitoring.Debugf("search: mode=%s evaluated=%d found=%d elapsed=%v",
		opts.Mode, res.Evaluated, len(res.Solutions), res.Elapsed)
	return res, nil
}

func scan(ctx context.Context, target Target, grid Grid, opts Options) (*Result, error) {
	thetas := grid.Theta.Values()
	chis := grid.Chi.Values()
	chiRad := make([]float64, len(chis))
	for j, c := range chis {
		chiRad[j] = model.Radians(c)
	}

	limit := opts.maxSolutions()
	rows := make([]rowScan, len(thetas))

	// stopRow is the last row a sequential scan would need: the first
	// matching row for ModeFirst, the row exhausting the budget for ModeAll.
	var stopRow *atomic.Int64
	var budget *allBudget
	switch opts.Mode {
	case ModeFirst:
		stopRow = new(atomic.Int64)
		stopRow.Store(math.MaxInt64)
	case ModeAll:
		budget = newAllBudget(len(thetas), limit)
		stopRow = &budget.cutoff
	}
	past := func(i int) bool {
		return stopRow != nil && int64(i) > stopRow.Load()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.workers())

	for i := range thetas {
		if past(i) {
			break
		}
		if err := gctx.Err(); err != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			if past(i) {
				return nil
			}
			rs := scanRow(target, thetas[i], chis, chiRad, opts.Mode, limit)
			switch opts.Mode {
			case ModeFirst:
				if len(rs.matches) > 0 {
					for {
						cur := stopRow.Load()
						if int64(i) >= cur || stopRow.CompareAndSwap(cur, int64(i)) {
							break
						}
					}
				}
			case ModeAll:
				budget.finish(i, rs.kept())
				if past(i) {
					return nil
				}
			}
			rows[i] = rs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	last := len(rows) - 1
	if stopRow != nil && stopRow.Load() != math.MaxInt64 {
		last = int(stopRow.Load())
	}

	res := &Result{
		Target: target,
		Grid:   grid,
		Mode:   opts.Mode,
	}
	// Only rows up to last count, so Evaluated does not depend on how far
	// other workers got before the scan stopped.
	for i := 0; i <= last; i++ {
		res.Evaluated += int64(rows[i].visited)
	}

	switch opts.Mode {
	case ModeFirst:
		if len(rows[last].matches) > 0 {
			res.Solutions = []Solution{rows[last].matches[0]}
		}
	case ModeBest:
		var best *Solution
		for i := range rows {
			if rows[i].best < 0 || len(rows[i].matches) == 0 {
				continue
			}
			cand := rows[i].matches[rows[i].best]
			if best == nil || cand.Residual < best.Residual {
				c := cand
				best = &c
			}
		}
		if best != nil {
			res.Solutions = []Solution{*best}
		}
	case ModeAll:
		for i := 0; i <= last; i++ {
			for _, m := range rows[i].matches {
				if len(res.Solutions) >= limit {
					res.Truncated = true
					break
				}
				res.Solutions = append(res.Solutions, m)
			}
			if rows[i].best == -2 {
				res.Truncated = true
			}
		}
	}

	if !res.Found() {
		// No early exit happened, so every row was scanned.
		var closest *Solution
		for i := range rows {
			if !rows[i].valid {
				continue
			}
			if closest == nil || rows[i].closest.Residual < closest.Residual {
				c := rows[i].closest
				closest = &c
			}
		}
		res.Closest = closest
	}
	return res, nil
}

// scanRow evaluates one theta row. For ModeFirst it stops at the first
// match; ModeBest keeps only the row minimum; ModeAll keeps up to limit
// matches and stops at the next one, marking the overflow with best == -2.
func scanRow(target Target, thetaDeg float64, chis, chiRad []float64, mode Mode, limit int) rowScan {
	rs := rowScan{best: -1}
	theta := model.Radians(thetaDeg)
	for j, chi := range chiRad {
		rs.visited = j + 1
		p := model.Evaluate(theta, chi, target.R1, target.R2)
		resid := model.MaxAbsResidual(p, target.I1, target.I2)
		sol := Solution{ThetaDeg: thetaDeg, ChiDeg: chis[j], F1: p.F1, F2: p.F2, Residual: resid}

		if !math.IsInf(resid, 1) && (!rs.valid || resid < rs.closest.Residual) {
			rs.closest = sol
			rs.valid = true
		}
		if !target.Matches(p) {
			continue
		}

		switch mode {
		case ModeFirst:
			rs.matches = []Solution{sol}
			rs.best = 0
			return rs
		case ModeBest:
			if rs.best < 0 {
				rs.matches = []Solution{sol}
				rs.best = 0
			} else if resid < rs.matches[0].Residual {
				rs.matches[0] = sol
			}
		case ModeAll:
			if len(rs.matches) >= limit {
				rs.best = -2
				return rs
			}
			rs.matches = append(rs.matches, sol)
			rs.best = 0
		}
	}
	return rs
}
