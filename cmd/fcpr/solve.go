package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/raman-lab/fcpr/internal/report"
	"github.com/raman-lab/fcpr/internal/search"
	"github.com/raman-lab/fcpr/internal/store"
)

// rangeFlag adapts search.RangeSpec to flag.Value.
type rangeFlag struct {
	r *search.RangeSpec
}

func (f rangeFlag) String() string {
	if f.r == nil {
		return ""
	}
	return f.r.String()
}

func (f rangeFlag) Set(s string) error {
	r, err := search.ParseRangeSpec(s)
	if err != nil {
		return err
	}
	*f.r = r
	return nil
}

// modeFlag adapts search.Mode to flag.Value.
type modeFlag struct {
	m *search.Mode
}

func (f modeFlag) String() string {
	if f.m == nil {
		return ""
	}
	return f.m.String()
}

func (f modeFlag) Set(s string) error {
	return f.m.UnmarshalText([]byte(s))
}

// warnUnusedRefine flags a refine count that the chosen mode will ignore.
func (e *env) warnUnusedRefine(opts search.Options) {
	if opts.Refine > 0 && opts.Mode != search.ModeBest {
		fmt.Fprintf(e.stderr, "Warning: --refine %d has no effect with --mode %s (only with --mode best)\n", opts.Refine, opts.Mode)
	}
}

func (e *env) runSolve(args []string) int {
	fs := e.newFlagSet("solve")
	r1 := fs.Float64("r1", 0, "First principal ratio (required)")
	r2 := fs.Float64("r2", 0, "Second principal ratio (required)")
	target1 := fs.Float64("target1", 0, "Target value for f1, the I_cc/I_aa ratio (required)")
	target2 := fs.Float64("target2", 0, "Target value for f2, the I_ac/I_aa ratio (required)")
	tolerance := fs.Float64("tolerance", e.cfg.GetTolerance(), "Tolerance for target values")
	grid := e.cfg.GetGrid()
	fs.Var(rangeFlag{&grid.Theta}, "theta", "Theta scan range min:max:step in degrees")
	fs.Var(rangeFlag{&grid.Chi}, "chi", "Chi scan range min:max:step in degrees")
	opts := e.cfg.SearchOptions()
	fs.Var(modeFlag{&opts.Mode}, "mode", "Which matches to report: first, best or all")
	fs.IntVar(&opts.Workers, "workers", opts.Workers, "Concurrent theta rows (0 = GOMAXPROCS)")
	fs.IntVar(&opts.Refine, "refine", opts.Refine, "Refinement passes around the best match (mode best)")
	plotPath := fs.String("plot", "", "Write the residual map image to this path (.png, .svg, .pdf)")
	htmlPath := fs.String("html", "", "Write an interactive residual map to this HTML file")
	csvPath := fs.String("csv", "", "Write the reported solutions to this CSV file")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}

	if missing := missingFlags(fs, "r1", "r2", "target1", "target2"); len(missing) > 0 {
		fmt.Fprintf(e.stderr, "Error: missing required flags: %v\n", missing)
		fs.Usage()
		return exitUsage
	}
	e.warnUnusedRefine(opts)

	target := search.Target{R1: *r1, R2: *r2, I1: *target1, I2: *target2, Tolerance: *tolerance}

	fmt.Fprintln(e.stdout, "Searching for angles with parameters:")
	fmt.Fprintf(e.stdout, "r1 = %g, r2 = %g\n", target.R1, target.R2)
	fmt.Fprintf(e.stdout, "Target values: %g, %g\n", target.I1, target.I2)
	fmt.Fprintf(e.stdout, "Tolerance: %g\n", target.Tolerance)
	fmt.Fprintf(e.stdout, "Grid: theta %s, chi %s (%d points), mode %s\n", grid.Theta, grid.Chi, grid.Size(), opts.Mode)

	ctx, stop := signalContext()
	defer stop()

	res, err := search.Solve(ctx, target, grid, opts)
	if err != nil {
		fmt.Fprintf(e.stderr, "Error: %v\n", err)
		return exitError
	}

	runs, closeStore, err := e.openRunStore()
	if err != nil {
		fmt.Fprintf(e.stderr, "Error: %v\n", err)
		return exitError
	}
	defer closeStore()
	if runs != nil {
		run := store.NewRun(store.KindSolve, "", -1, res)
		if err := runs.Insert(run); err != nil {
			fmt.Fprintf(e.stderr, "Error: failed to save run: %v\n", err)
			return exitError
		}
		fmt.Fprintf(e.stdout, "Run saved: %s\n", run.RunID)
	}

	if err := e.writeSolveOutputs(res, *plotPath, *htmlPath, *csvPath, opts.Workers); err != nil {
		fmt.Fprintf(e.stderr, "Error: %v\n", err)
		return exitError
	}

	printResult(e, res)
	if !res.Found() {
		return exitError
	}
	return exitOK
}

func printResult(e *env, res *search.Result) {
	if !res.Found() {
		fmt.Fprintln(e.stdout, "\nNo solutions found within the given tolerance.")
		if c := res.Closest; c != nil {
			fmt.Fprintf(e.stdout, "Closest point: theta = %.2f°, chi = %.2f°, residual = %.4f\n", c.ThetaDeg, c.ChiDeg, c.Residual)
		}
		return
	}

	if res.Mode == search.ModeAll {
		fmt.Fprintf(e.stdout, "\nFound %d solutions:\n", len(res.Solutions))
		for _, s := range res.Solutions {
			fmt.Fprintf(e.stdout, "theta = %.2f°, chi = %.2f°, f1 = %.4f, f2 = %.4f\n", s.ThetaDeg, s.ChiDeg, s.F1, s.F2)
		}
		if res.Truncated {
			fmt.Fprintln(e.stdout, "(output truncated; raise max_solutions to see more)")
		}
		return
	}

	s := res.Solutions[0]
	fmt.Fprintln(e.stdout, "\nFound solution:")
	fmt.Fprintf(e.stdout, "theta = %.2f°\n", s.ThetaDeg)
	fmt.Fprintf(e.stdout, "chi = %.2f°\n", s.ChiDeg)
	fmt.Fprintln(e.stdout, "Function values at solution:")
	fmt.Fprintf(e.stdout, "f1 = %.4f\n", s.F1)
	fmt.Fprintf(e.stdout, "f2 = %.4f\n", s.F2)
}

func (e *env) writeSolveOutputs(res *search.Result, plotPath, htmlPath, csvPath string, workers int) error {
	if csvPath != "" {
		f, err := os.Create(csvPath)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", csvPath, err)
		}
		err = report.WriteSolutionsCSV(f, res.Solutions)
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(e.stdout, "Solutions saved to: %s\n", csvPath)
	}

	if plotPath == "" && htmlPath == "" {
		return nil
	}

	ctx, stop := signalContext()
	defer stop()
	surface, err := search.Landscape(ctx, res.Target, res.Grid, workers)
	if err != nil {
		return fmt.Errorf("failed to compute residual map: %w", err)
	}
	title := fmt.Sprintf("r1=%g r2=%g I1=%g I2=%g", res.Target.R1, res.Target.R2, res.Target.I1, res.Target.I2)

	if plotPath != "" {
		if err := report.PNG(plotPath, surface, res.Solutions, title); err != nil {
			return err
		}
		fmt.Fprintf(e.stdout, "Residual map saved to: %s\n", plotPath)
	}
	if htmlPath != "" {
		f, err := os.Create(htmlPath)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", htmlPath, err)
		}
		err = report.HTML(f, surface, res.Solutions, report.HTMLOptions{Title: title, AssetsHost: e.cfg.GetAssetsHost()})
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(e.stdout, "Interactive map saved to: %s\n", htmlPath)
	}
	return nil
}

// missingFlags returns the names in required that were not set on fs.
func missingFlags(fs *flag.FlagSet, required ...string) []string {
	set := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
	var missing []string
	for _, name := range required {
		if !set[name] {
			missing = append(missing, name)
		}
	}
	return missing
}
