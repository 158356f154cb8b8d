package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/raman-lab/fcpr/internal/analysis"
	"github.com/raman-lab/fcpr/internal/report"
	"github.com/raman-lab/fcpr/internal/search"
	"github.com/raman-lab/fcpr/internal/store"
	"github.com/raman-lab/fcpr/internal/table"
)

// defaultAnalysisPath derives "<base>_orientations.csv" next to input.
func defaultAnalysisPath(input string) string {
	ext := filepath.Ext(input)
	return strings.TrimSuffix(input, ext) + "_orientations.csv"
}

func (e *env) runAnalyze(args []string) int {
	fs := e.newFlagSet("analyze")
	output := fs.String("output", "", "Output file (.csv or .xlsx); defaults to <input>_orientations.csv")
	processed := fs.String("processed", "", "Also save the processed ratio table to this path")
	tolerance := fs.Float64("tolerance", e.cfg.GetTolerance(), "Tolerance for target values")
	grid := e.cfg.GetGrid()
	fs.Var(rangeFlag{&grid.Theta}, "theta", "Theta scan range min:max:step in degrees")
	fs.Var(rangeFlag{&grid.Chi}, "chi", "Chi scan range min:max:step in degrees")
	opts := e.cfg.SearchOptions()
	fs.Var(modeFlag{&opts.Mode}, "mode", "Which matches to report: first, best or all")
	fs.IntVar(&opts.Refine, "refine", opts.Refine, "Refinement passes around the best match (mode best)")
	concurrency := fs.Int("concurrency", e.cfg.GetConcurrency(), "Rows solved at once (0 = automatic)")
	plotDir := fs.String("plot-dir", e.cfg.GetPlotDir(), "Write one residual map per solved row into this directory")
	pos, err := parseInterspersed(fs, args)
	if err != nil {
		return exitUsage
	}
	if len(pos) != 1 {
		fmt.Fprintln(e.stderr, "Usage: fcpr analyze <input.xlsx|csv> [--output out.csv]")
		return exitUsage
	}
	e.warnUnusedRefine(opts)
	input := pos[0]
	if *output == "" {
		*output = defaultAnalysisPath(input)
	}

	if _, err := os.Stat(input); errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(e.stderr, "Error: Input file '%s' does not exist\n", input)
		return exitError
	}

	start := time.Now()
	sheet, err := table.Read(input)
	if err != nil {
		fmt.Fprintf(e.stderr, "Error processing file: %v\n", err)
		return exitError
	}
	p, err := table.Process(sheet, e.cfg.GetEigenOrder())
	if err != nil {
		fmt.Fprintf(e.stderr, "Error processing file: %v\n", err)
		return exitError
	}
	if *processed != "" {
		if err := table.Write(*processed, p); err != nil {
			fmt.Fprintf(e.stderr, "Error: %v\n", err)
			return exitError
		}
		fmt.Fprintf(e.stdout, "Processed table saved to: %s\n", *processed)
	}

	ctx, stop := signalContext()
	defer stop()

	rows, err := analysis.Analyze(ctx, p, analysis.Config{
		Grid:        grid,
		Options:     opts,
		Tolerance:   *tolerance,
		Concurrency: *concurrency,
	})
	if err != nil {
		fmt.Fprintf(e.stderr, "Error: %v\n", err)
		return exitError
	}

	if err := report.WriteAnalysis(*output, rows); err != nil {
		fmt.Fprintf(e.stderr, "Error: %v\n", err)
		return exitError
	}

	if err := e.saveAnalysisRuns(input, rows); err != nil {
		fmt.Fprintf(e.stderr, "Error: %v\n", err)
		return exitError
	}

	if *plotDir != "" {
		if err := writeRowPlots(ctx, *plotDir, rows, opts.Workers); err != nil {
			fmt.Fprintf(e.stderr, "Error: %v\n", err)
			return exitError
		}
		fmt.Fprintf(e.stdout, "Residual maps saved to: %s\n", *plotDir)
	}

	sum := analysis.Summarize(rows, time.Since(start))
	fmt.Fprintf(e.stdout, "Rows: %d, solved: %d, unmatched: %d, skipped: %d\n",
		sum.Rows, sum.Solved, sum.Unmatched, sum.Skipped)
	if sum.Solved > 0 {
		fmt.Fprintf(e.stdout, "theta = %.2f ± %.2f°, chi = %.2f ± %.2f°\n",
			sum.MeanTheta, sum.StdTheta, sum.MeanChi, sum.StdChi)
	}
	fmt.Fprintf(e.stdout, "Results saved to: %s\n", *output)
	return exitOK
}

// saveAnalysisRuns records every searched row in the run history.
func (e *env) saveAnalysisRuns(input string, rows []analysis.RowSolution) error {
	runs, closeStore, err := e.openRunStore()
	if err != nil {
		return err
	}
	defer closeStore()
	if runs == nil {
		return nil
	}

	abs, err := filepath.Abs(input)
	if err != nil {
		abs = input
	}
	saved := 0
	for _, r := range rows {
		if r.Skipped {
			continue
		}
		if err := runs.Insert(store.NewRun(store.KindAnalyze, abs, r.Row.Index, r.Result)); err != nil {
			return fmt.Errorf("failed to save run for row %d: %w", r.Row.Index+1, err)
		}
		saved++
	}
	fmt.Fprintf(e.stdout, "Runs saved: %d\n", saved)
	return nil
}

// writeRowPlots renders row_NNN.png for every solved row.
func writeRowPlots(ctx context.Context, dir string, rows []analysis.RowSolution, workers int) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create plot directory: %w", err)
	}
	for _, r := range rows {
		if !r.Found() {
			continue
		}
		surface, err := search.Landscape(ctx, r.Result.Target, r.Result.Grid, workers)
		if err != nil {
			return err
		}
		path := filepath.Join(dir, fmt.Sprintf("row_%03d.png", r.Row.Index+1))
		title := fmt.Sprintf("Row %d (Freq2 %g)", r.Row.Index+1, r.Row.Freq2)
		if err := report.PNG(path, surface, r.Result.Solutions, title); err != nil {
			return fmt.Errorf("row %d: %w", r.Row.Index+1, err)
		}
	}
	return nil
}
