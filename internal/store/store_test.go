package store

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/raman-lab/fcpr/internal/search"
	"github.com/raman-lab/fcpr/internal/timeutil"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := OpenMigrated(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("OpenMigrated: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func sampleRun() *Run {
	return &Run{
		Kind:      KindSolve,
		RowIndex:  -1,
		Target:    search.Target{R1: 0.5, R2: 0.25, I1: 1.2, I2: 0.3, Tolerance: 0.05},
		Mode:      search.ModeAll,
		Grid:      search.DefaultGrid(),
		Evaluated: 519841,
		Found:     true,
		Elapsed:   42 * time.Millisecond,
		Solutions: []search.Solution{
			{ThetaDeg: 10, ChiDeg: 20.5, F1: 1.21, F2: 0.31, Residual: 0.01},
			{ThetaDeg: 12.5, ChiDeg: 340, F1: 1.19, F2: 0.29, Residual: 0.011},
		},
	}
}

func TestMigrations(t *testing.T) {
	db := setupTestDB(t)

	version, dirty, err := db.MigrateVersion()
	if err != nil {
		t.Fatalf("MigrateVersion: %v", err)
	}
	if version != 1 || dirty {
		t.Errorf("version = %d dirty = %v, want 1 clean", version, dirty)
	}

	if err := db.MigrateDown(); err != nil {
		t.Fatalf("MigrateDown: %v", err)
	}
	version, _, err = db.MigrateVersion()
	if err != nil {
		t.Fatalf("MigrateVersion after down: %v", err)
	}
	if version != 0 {
		t.Errorf("version after down = %d, want 0", version)
	}

	if err := db.MigrateUp(); err != nil {
		t.Fatalf("MigrateUp again: %v", err)
	}
	// A second up is a no-op.
	if err := db.MigrateUp(); err != nil {
		t.Fatalf("MigrateUp no change: %v", err)
	}
}

func TestRunStore_InsertGet(t *testing.T) {
	rs := NewRunStore(setupTestDB(t))

	run := sampleRun()
	if err := rs.Insert(run); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if run.RunID == "" || run.CreatedAt == 0 {
		t.Fatalf("Insert did not assign id/timestamp: %+v", run)
	}

	got, err := rs.Get(run.RunID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if diff := cmp.Diff(run, got); diff != "" {
		t.Errorf("Get mismatch (-want +got):\n%s", diff)
	}
}

func TestRunStore_Closest(t *testing.T) {
	rs := NewRunStore(setupTestDB(t))

	run := sampleRun()
	run.Found = false
	run.Solutions = nil
	run.Closest = &search.Solution{ThetaDeg: 90, ChiDeg: 45, F1: 2, F2: 1, Residual: 0.4}
	if err := rs.Insert(run); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	got, err := rs.Get(run.RunID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Found || len(got.Solutions) != 0 {
		t.Errorf("got %d solutions, found=%v", len(got.Solutions), got.Found)
	}
	if diff := cmp.Diff(run.Closest, got.Closest); diff != "" {
		t.Errorf("closest mismatch (-want +got):\n%s", diff)
	}
}

func TestRunStore_ListNewestFirst(t *testing.T) {
	rs := NewRunStore(setupTestDB(t))
	clock := timeutil.NewMockClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	rs.SetClock(clock)

	for i := 0; i < 3; i++ {
		clock.Advance(time.Minute)
		run := sampleRun()
		run.InputPath = []string{"a.csv", "b.csv", "c.csv"}[i]
		if err := rs.Insert(run); err != nil {
			t.Fatalf("Insert %d: %v", i, err)
		}
	}

	runs, err := rs.List(2)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("List returned %d runs, want 2", len(runs))
	}
	if runs[0].InputPath != "c.csv" || runs[1].InputPath != "b.csv" {
		t.Errorf("List order = %q, %q; want c.csv, b.csv", runs[0].InputPath, runs[1].InputPath)
	}
	if runs[0].Solutions != nil {
		t.Errorf("List should not load solutions")
	}
	if want := clock.Now().UnixNano(); runs[0].CreatedAt != want {
		t.Errorf("CreatedAt = %d, want %d", runs[0].CreatedAt, want)
	}

	all, err := rs.List(0)
	if err != nil {
		t.Fatalf("List(0): %v", err)
	}
	if len(all) != 3 {
		t.Errorf("List(0) returned %d runs, want 3", len(all))
	}
}

func TestRunStore_DeleteCascades(t *testing.T) {
	db := setupTestDB(t)
	rs := NewRunStore(db)

	run := sampleRun()
	if err := rs.Insert(run); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := rs.Delete(run.RunID); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	if _, err := rs.Get(run.RunID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get after delete error = %v, want ErrNotFound", err)
	}
	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM fcpr_solutions WHERE run_id = ?`, run.RunID).Scan(&n); err != nil {
		t.Fatalf("count solutions: %v", err)
	}
	if n != 0 {
		t.Errorf("%d solutions left after delete", n)
	}

	if err := rs.Delete(run.RunID); !errors.Is(err, ErrNotFound) {
		t.Errorf("second Delete error = %v, want ErrNotFound", err)
	}
}

func TestNewRunAndResult(t *testing.T) {
	res := &search.Result{
		Target:    search.Target{R1: 1, R2: 2, I1: 0.5, I2: 0.1, Tolerance: 0.05},
		Grid:      search.DefaultGrid(),
		Mode:      search.ModeBest,
		Solutions: []search.Solution{{ThetaDeg: 1, ChiDeg: 2, F1: 0.5, F2: 0.1}},
		Evaluated: 10,
		Elapsed:   time.Second,
	}
	run := NewRun(KindAnalyze, "in.xlsx", 3, res)
	if !run.Found || run.RowIndex != 3 || run.Kind != KindAnalyze {
		t.Errorf("NewRun = %+v", run)
	}
	if diff := cmp.Diff(res, run.Result()); diff != "" {
		t.Errorf("Result round trip (-want +got):\n%s", diff)
	}
}
