package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/raman-lab/fcpr/internal/model"
	"github.com/raman-lab/fcpr/internal/search"
	"github.com/raman-lab/fcpr/internal/store"
	"github.com/raman-lab/fcpr/internal/table"
	"github.com/raman-lab/fcpr/internal/testutil"
)

func runCLI(t *testing.T, args ...string) (code int, stdout, stderr string) {
	t.Helper()
	var out, errOut bytes.Buffer
	code = run(args, &out, &errOut)
	return code, out.String(), errOut.String()
}

func TestRun_Usage(t *testing.T) {
	code, _, stderr := runCLI(t)
	if code != exitUsage {
		t.Errorf("exit code = %d, want %d", code, exitUsage)
	}
	if !strings.Contains(stderr, "Usage: fcpr") {
		t.Errorf("usage not printed: %q", stderr)
	}

	code, _, stderr = runCLI(t, "frobnicate")
	if code != exitUsage || !strings.Contains(stderr, "Unknown command: frobnicate") {
		t.Errorf("unknown command: code=%d stderr=%q", code, stderr)
	}
}

func TestRun_Version(t *testing.T) {
	code, stdout, _ := runCLI(t, "version")
	if code != exitOK || !strings.HasPrefix(stdout, "fcpr ") {
		t.Errorf("version: code=%d stdout=%q", code, stdout)
	}
}

func TestRun_BadConfig(t *testing.T) {
	path := testutil.WriteTempFile(t, "bad.json", `{"tolerance": -1}`)
	code, _, stderr := runCLI(t, "--config", path, "version")
	if code != exitError || !strings.Contains(stderr, "tolerance") {
		t.Errorf("code=%d stderr=%q", code, stderr)
	}
}

func TestParseInterspersed(t *testing.T) {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	order := fs.String("order", "", "")
	pos, err := parseInterspersed(fs, []string{"in.csv", "--order", "desc", "out.csv"})
	testutil.AssertNoError(t, err)
	if *order != "desc" {
		t.Errorf("order = %q, want desc", *order)
	}
	if len(pos) != 2 || pos[0] != "in.csv" || pos[1] != "out.csv" {
		t.Errorf("positionals = %v", pos)
	}
}

func TestProcess(t *testing.T) {
	input := testutil.WriteTempFile(t, "spectra.csv", testutil.SampleTable)

	code, stdout, stderr := runCLI(t, "process", input)
	if code != exitOK {
		t.Fatalf("process exit %d: %s", code, stderr)
	}
	output := table.DefaultOutputPath(input)
	if !strings.Contains(stdout, "Results saved to: "+output) {
		t.Errorf("stdout = %q", stdout)
	}

	sheet, err := table.Read(output)
	testutil.AssertNoError(t, err)
	if sheet.Rows() != 3 {
		t.Errorf("output rows = %d, want 3", sheet.Rows())
	}
	r1, err := sheet.Column("r_1")
	testutil.AssertNoError(t, err)
	if math.Abs(r1[0]+2) > 1e-9 {
		t.Errorf("r_1[0] = %v, want -2", r1[0])
	}
}

func TestProcess_Errors(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "absent.csv")
	code, _, stderr := runCLI(t, "process", missing)
	if code != exitError || !strings.Contains(stderr, "does not exist") {
		t.Errorf("missing input: code=%d stderr=%q", code, stderr)
	}

	bad := testutil.WriteTempFile(t, "bad.csv", "Freq1,Axx\n1,2\n")
	code, _, stderr = runCLI(t, "process", bad)
	if code != exitError || !strings.Contains(stderr, "Error processing file") {
		t.Errorf("missing columns: code=%d stderr=%q", code, stderr)
	}

	code, _, _ = runCLI(t, "process")
	if code != exitUsage {
		t.Errorf("no input: code=%d, want %d", code, exitUsage)
	}
}

func TestSolve_Found(t *testing.T) {
	p := model.EvaluateDeg(30, 60, 0.4, 1.8)
	grid := search.Grid{
		Theta: search.RangeSpec{Min: 0, Max: 90, Step: 1},
		Chi:   search.RangeSpec{Min: 0, Max: 90, Step: 1},
	}
	target := search.Target{R1: 0.4, R2: 1.8, I1: p.F1, I2: p.F2, Tolerance: search.DefaultTolerance}
	want, err := search.Solve(context.Background(), target, grid, search.Options{})
	testutil.AssertNoError(t, err)
	if !want.Found() {
		t.Fatal("reference search found nothing")
	}

	csvPath := filepath.Join(t.TempDir(), "solutions.csv")
	code, stdout, stderr := runCLI(t, "solve",
		"--r1", "0.4", "--r2", "1.8",
		"--target1", fmt.Sprint(p.F1), "--target2", fmt.Sprint(p.F2),
		"--theta", "0:90:1", "--chi", "0:90:1",
		"--csv", csvPath,
	)
	if code != exitOK {
		t.Fatalf("solve exit %d: %s", code, stderr)
	}

	s := want.Solutions[0]
	for _, line := range []string{
		"Searching for angles with parameters:",
		"r1 = 0.4, r2 = 1.8",
		"Tolerance: 0.05",
		"Found solution:",
		fmt.Sprintf("theta = %.2f°", s.ThetaDeg),
		fmt.Sprintf("chi = %.2f°", s.ChiDeg),
		fmt.Sprintf("f1 = %.4f", s.F1),
		fmt.Sprintf("f2 = %.4f", s.F2),
	} {
		if !strings.Contains(stdout, line) {
			t.Errorf("stdout missing %q:\n%s", line, stdout)
		}
	}

	data, err := os.ReadFile(csvPath)
	testutil.AssertNoError(t, err)
	if !strings.HasPrefix(string(data), "theta_deg,chi_deg,f1,f2,residual\n") {
		t.Errorf("csv = %q", data)
	}
}

func TestSolve_RefineWarnsOutsideBestMode(t *testing.T) {
	p := model.EvaluateDeg(30, 60, 0.4, 1.8)
	args := []string{"solve",
		"--r1", "0.4", "--r2", "1.8",
		"--target1", fmt.Sprint(p.F1), "--target2", fmt.Sprint(p.F2),
		"--theta", "0:90:1", "--chi", "0:90:1",
		"--refine", "2",
	}

	code, _, stderr := runCLI(t, args...)
	if code != exitOK {
		t.Fatalf("solve exit %d: %s", code, stderr)
	}
	if !strings.Contains(stderr, "Warning: --refine 2 has no effect with --mode first") {
		t.Errorf("stderr = %q, want refine warning", stderr)
	}

	code, _, stderr = runCLI(t, append(args, "--mode", "best")...)
	if code != exitOK {
		t.Fatalf("solve --mode best exit %d: %s", code, stderr)
	}
	if strings.Contains(stderr, "Warning") {
		t.Errorf("unexpected warning with --mode best: %q", stderr)
	}
}

func TestSolve_NoSolution(t *testing.T) {
	code, stdout, _ := runCLI(t, "solve",
		"--r1", "1", "--r2", "1", "--target1", "50", "--target2", "50",
		"--theta", "0:90:5", "--chi", "0:90:5",
	)
	if code != exitError {
		t.Errorf("exit code = %d, want %d", code, exitError)
	}
	if !strings.Contains(stdout, "No solutions found within the given tolerance.") {
		t.Errorf("stdout = %q", stdout)
	}
	if !strings.Contains(stdout, "Closest point:") {
		t.Errorf("closest point not reported: %q", stdout)
	}
}

func TestSolve_MissingFlags(t *testing.T) {
	code, _, stderr := runCLI(t, "solve", "--r1", "1")
	if code != exitUsage {
		t.Errorf("exit code = %d, want %d", code, exitUsage)
	}
	if !strings.Contains(stderr, "target1") {
		t.Errorf("stderr = %q", stderr)
	}

	code, _, _ = runCLI(t, "solve", "--r1", "1", "--r2", "1", "--target1", "1", "--target2", "1", "--mode", "fastest")
	if code != exitUsage {
		t.Errorf("bad mode exit code = %d, want %d", code, exitUsage)
	}
}

func TestSolve_PersistsAndPlots(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "runs.db")
	plotPath := filepath.Join(dir, "map.png")
	htmlPath := filepath.Join(dir, "map.html")
	p := model.EvaluateDeg(20, 40, 0.5, 2)

	code, stdout, stderr := runCLI(t, "--db", dbPath, "solve",
		"--r1", "0.5", "--r2", "2",
		"--target1", fmt.Sprint(p.F1), "--target2", fmt.Sprint(p.F2),
		"--theta", "0:90:2", "--chi", "0:90:2", "--mode", "all",
		"--plot", plotPath, "--html", htmlPath,
	)
	if code != exitOK {
		t.Fatalf("solve exit %d: %s", code, stderr)
	}
	if !strings.Contains(stdout, "Run saved: ") || !strings.Contains(stdout, "solutions:") {
		t.Errorf("stdout = %q", stdout)
	}
	for _, path := range []string{plotPath, htmlPath} {
		if _, err := os.Stat(path); err != nil {
			t.Errorf("expected %s: %v", path, err)
		}
	}

	db, err := store.OpenMigrated(dbPath)
	testutil.AssertNoError(t, err)
	defer db.Close()
	runs, err := store.NewRunStore(db).List(10)
	testutil.AssertNoError(t, err)
	if len(runs) != 1 || runs[0].Mode != search.ModeAll {
		t.Errorf("stored runs = %+v", runs)
	}
}

func TestAnalyze(t *testing.T) {
	dir := t.TempDir()
	input := testutil.WriteTempFile(t, "spectra.csv", testutil.SampleTable)
	output := filepath.Join(dir, "orientations.xlsx")
	dbPath := filepath.Join(dir, "runs.db")

	code, stdout, stderr := runCLI(t, "--db", dbPath, "analyze", input,
		"--output", output, "--theta", "0:90:2", "--chi", "0:90:2")
	if code != exitOK {
		t.Fatalf("analyze exit %d: %s", code, stderr)
	}
	for _, want := range []string{"Rows: 3", "skipped: 2", "Runs saved: 1", "Results saved to: " + output} {
		if !strings.Contains(stdout, want) {
			t.Errorf("stdout missing %q:\n%s", want, stdout)
		}
	}
	if _, err := os.Stat(output); err != nil {
		t.Errorf("expected output file: %v", err)
	}
}

func TestAnalyze_DefaultOutput(t *testing.T) {
	input := testutil.WriteTempFile(t, "spectra.csv", testutil.SampleTable)

	code, _, stderr := runCLI(t, "analyze", "--theta", "0:90:5", "--chi", "0:90:5", input)
	if code != exitOK {
		t.Fatalf("analyze exit %d: %s", code, stderr)
	}
	if _, err := os.Stat(defaultAnalysisPath(input)); err != nil {
		t.Errorf("expected default output: %v", err)
	}
}

func TestMigrate(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "runs.db")

	code, stdout, stderr := runCLI(t, "--db", dbPath, "migrate", "up")
	if code != exitOK {
		t.Fatalf("migrate up exit %d: %s", code, stderr)
	}
	if !strings.Contains(stdout, "Current version: 1 (dirty: false)") {
		t.Errorf("stdout = %q", stdout)
	}

	code, stdout, _ = runCLI(t, "--db", dbPath, "migrate", "down")
	if code != exitOK || !strings.Contains(stdout, "Current version: 0") {
		t.Errorf("migrate down: code=%d stdout=%q", code, stdout)
	}

	code, _, _ = runCLI(t, "--db", dbPath, "migrate", "sideways")
	if code != exitUsage {
		t.Errorf("unknown action exit = %d, want %d", code, exitUsage)
	}

	code, _, stderr = runCLI(t, "migrate", "up")
	if code != exitUsage || !strings.Contains(stderr, "requires --db") {
		t.Errorf("no db: code=%d stderr=%q", code, stderr)
	}
}
