package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/raman-lab/fcpr/internal/search"
	"github.com/raman-lab/fcpr/internal/timeutil"
)

// ErrNotFound is returned when a run ID does not exist.
var ErrNotFound = errors.New("run not found")

// Run kinds.
const (
	KindSolve   = "solve"
	KindAnalyze = "analyze"
)

// DefaultListLimit bounds List when no limit is given.
const DefaultListLimit = 50

// Run is one persisted orientation search.
type Run struct {
	RunID     string            `json:"run_id"`
	Kind      string            `json:"kind"`
	InputPath string            `json:"input_path,omitempty"`
	RowIndex  int               `json:"row_index"` // -1 for single solves
	Target    search.Target     `json:"target"`
	Mode      search.Mode       `json:"mode"`
	Grid      search.Grid       `json:"grid"`
	Evaluated int64             `json:"evaluated"`
	Found     bool              `json:"found"`
	Truncated bool              `json:"truncated,omitempty"`
	Closest   *search.Solution  `json:"closest,omitempty"`
	Elapsed   time.Duration     `json:"elapsed_ns"`
	CreatedAt int64             `json:"created_at"`
	Solutions []search.Solution `json:"solutions"`
}

// NewRun captures a search result for persistence.
func NewRun(kind, inputPath string, rowIndex int, res *search.Result) *Run {
	return &Run{
		Kind:      kind,
		InputPath: inputPath,
		RowIndex:  rowIndex,
		Target:    res.Target,
		Mode:      res.Mode,
		Grid:      res.Grid,
		Evaluated: res.Evaluated,
		Found:     res.Found(),
		Truncated: res.Truncated,
		Closest:   res.Closest,
		Elapsed:   res.Elapsed,
		Solutions: res.Solutions,
	}
}

// Result rebuilds the search result a run was created from.
func (r *Run) Result() *search.Result {
	return &search.Result{
		Target:    r.Target,
		Grid:      r.Grid,
		Mode:      r.Mode,
		Solutions: r.Solutions,
		Closest:   r.Closest,
		Evaluated: r.Evaluated,
		Truncated: r.Truncated,
		Elapsed:   r.Elapsed,
	}
}

// RunStore provides persistence for search runs and their solutions.
type RunStore struct {
	db    *sql.DB
	clock timeutil.Clock
}

// NewRunStore creates a new RunStore.
func NewRunStore(db *DB) *RunStore {
	return &RunStore{db: db.DB, clock: timeutil.RealClock{}}
}

// SetClock replaces the clock used for CreatedAt stamps and busy backoff.
func (s *RunStore) SetClock(c timeutil.Clock) {
	s.clock = c
}

// Insert persists a run and its solutions atomically. If RunID is empty, a
// UUID is generated.
func (s *RunStore) Insert(run *Run) error {
	if run.RunID == "" {
		run.RunID = uuid.New().String()
	}
	if run.CreatedAt == 0 {
		run.CreatedAt = s.clock.Now().UnixNano()
	}

	gridJSON, err := json.Marshal(run.Grid)
	if err != nil {
		return fmt.Errorf("marshal grid: %w", err)
	}
	var closestJSON interface{}
	if run.Closest != nil {
		b, err := json.Marshal(run.Closest)
		if err != nil {
			return fmt.Errorf("marshal closest: %w", err)
		}
		closestJSON = string(b)
	}

	return retryOnBusy(s.clock, func() error {
		tx, err := s.db.Begin()
		if err != nil {
			return err
		}
		defer tx.Rollback()

		_, err = tx.Exec(`
			INSERT INTO fcpr_runs (
				run_id, kind, input_path, row_index,
				r1, r2, i1, i2, tolerance,
				mode, grid_json, evaluated, found, truncated,
				closest_json, elapsed_ns, created_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			run.RunID, run.Kind, run.InputPath, run.RowIndex,
			run.Target.R1, run.Target.R2, run.Target.I1, run.Target.I2, run.Target.Tolerance,
			run.Mode.String(), string(gridJSON), run.Evaluated, run.Found, run.Truncated,
			closestJSON, int64(run.Elapsed), run.CreatedAt,
		)
		if err != nil {
			return err
		}

		stmt, err := tx.Prepare(`
			INSERT INTO fcpr_solutions (run_id, idx, theta_deg, chi_deg, f1, f2, residual)
			VALUES (?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for i, sol := range run.Solutions {
			if _, err := stmt.Exec(run.RunID, i, sol.ThetaDeg, sol.ChiDeg, sol.F1, sol.F2, sol.Residual); err != nil {
				return err
			}
		}
		return tx.Commit()
	})
}

const runColumns = `
	run_id, kind, input_path, row_index,
	r1, r2, i1, i2, tolerance,
	mode, grid_json, evaluated, found, truncated,
	closest_json, elapsed_ns, created_at`

// Get returns a single run with its solutions.
func (s *RunStore) Get(runID string) (*Run, error) {
	row := s.db.QueryRow(`SELECT`+runColumns+` FROM fcpr_runs WHERE run_id = ?`, runID)
	run, err := scanRun(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, runID)
		}
		return nil, err
	}
	if run.Solutions, err = s.solutions(runID); err != nil {
		return nil, err
	}
	return run, nil
}

// List returns the most recent runs, newest first. Solutions are not loaded.
func (s *RunStore) List(limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	rows, err := s.db.Query(`SELECT`+runColumns+`
		FROM fcpr_runs
		ORDER BY created_at DESC, run_id
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// Delete removes a run and its solutions.
func (s *RunStore) Delete(runID string) error {
	return retryOnBusy(s.clock, func() error {
		result, err := s.db.Exec(`DELETE FROM fcpr_runs WHERE run_id = ?`, runID)
		if err != nil {
			return fmt.Errorf("delete run: %w", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		if affected == 0 {
			return fmt.Errorf("%w: %s", ErrNotFound, runID)
		}
		return nil
	})
}

func (s *RunStore) solutions(runID string) ([]search.Solution, error) {
	rows, err := s.db.Query(`
		SELECT theta_deg, chi_deg, f1, f2, residual
		FROM fcpr_solutions
		WHERE run_id = ?
		ORDER BY idx`, runID)
	if err != nil {
		return nil, fmt.Errorf("query solutions: %w", err)
	}
	defer rows.Close()

	sols := []search.Solution{}
	for rows.Next() {
		var sol search.Solution
		if err := rows.Scan(&sol.ThetaDeg, &sol.ChiDeg, &sol.F1, &sol.F2, &sol.Residual); err != nil {
			return nil, fmt.Errorf("scan solution row: %w", err)
		}
		sols = append(sols, sol)
	}
	return sols, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(sc rowScanner) (*Run, error) {
	var (
		r           Run
		mode        string
		gridJSON    string
		closestJSON sql.NullString
		elapsed     int64
	)
	err := sc.Scan(
		&r.RunID, &r.Kind, &r.InputPath, &r.RowIndex,
		&r.Target.R1, &r.Target.R2, &r.Target.I1, &r.Target.I2, &r.Target.Tolerance,
		&mode, &gridJSON, &r.Evaluated, &r.Found, &r.Truncated,
		&closestJSON, &elapsed, &r.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan run row: %w", err)
	}
	if r.Mode, err = search.ParseMode(mode); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(gridJSON), &r.Grid); err != nil {
		return nil, fmt.Errorf("decode grid for run %s: %w", r.RunID, err)
	}
	if closestJSON.Valid {
		r.Closest = &search.Solution{}
		if err := json.Unmarshal([]byte(closestJSON.String), r.Closest); err != nil {
			return nil, fmt.Errorf("decode closest for run %s: %w", r.RunID, err)
		}
	}
	r.Elapsed = time.Duration(elapsed)
	return &r, nil
}
