package analysis

import (
	"context"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raman-lab/fcpr/internal/model"
	"github.com/raman-lab/fcpr/internal/search"
	"github.com/raman-lab/fcpr/internal/table"
	"github.com/raman-lab/fcpr/internal/tensor"
)

func processedFor(t *testing.T, csv string) *table.Processed {
	t.Helper()
	s, err := table.ReadCSV(strings.NewReader(csv))
	require.NoError(t, err)
	p, err := table.Process(s, tensor.OrderAscending)
	require.NoError(t, err)
	return p
}

func TestAnalyze(t *testing.T) {
	// Diagonal tensor -4,1,2 gives r1=-2, r2=0.5; build intensities from a
	// known orientation so the row is guaranteed a match.
	pt := model.EvaluateDeg(40, 70, -2, 0.5)
	aa := 1.0
	csv := "Freq1,Axx,Axy,Ayy,Axz,Ayz,Azz,Freq2,I/aa,I/ac,I/cc\n" +
		"100,-4,0,1,0,0,2,100," + table.FormatFloat(aa) + "," + table.FormatFloat(pt.F2) + "," + table.FormatFloat(pt.F1) + "\n" +
		"200,1,0,1,0,0,1,200,0,1,1\n" +
		",,,,,,,300,1,1,1\n"

	cfg := Config{
		Grid:        search.Grid{Theta: search.RangeSpec{Min: 0, Max: 90, Step: 1}, Chi: search.RangeSpec{Min: 0, Max: 180, Step: 1}},
		Options:     search.Options{Mode: search.ModeBest, Workers: 2},
		Tolerance:   0.01,
		Concurrency: 2,
	}
	rows, err := Analyze(context.Background(), processedFor(t, csv), cfg)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.False(t, rows[0].Skipped)
	require.True(t, rows[0].Found())
	best := rows[0].Result.Best()
	assert.Less(t, best.Residual, 1e-9)

	// I/aa = 0 makes the intensity ratios undefined.
	assert.True(t, rows[1].Skipped)
	// No tensor for the third row.
	assert.True(t, rows[2].Skipped)
	assert.False(t, rows[2].Found())

	sum := Summarize(rows, time.Second)
	assert.Equal(t, 3, sum.Rows)
	assert.Equal(t, 1, sum.Solved)
	assert.Equal(t, 2, sum.Skipped)
	assert.Equal(t, 0, sum.Unmatched)
	assert.Equal(t, best.ThetaDeg, sum.MeanTheta)
	assert.Equal(t, 0.0, sum.StdTheta)
}

func TestAnalyze_Cancelled(t *testing.T) {
	csv := "Freq1,Axx,Axy,Ayy,Axz,Ayz,Azz,Freq2,I/aa,I/ac,I/cc\n100,-4,0,1,0,0,2,100,1,1,1\n"
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Analyze(ctx, processedFor(t, csv), Config{Grid: search.DefaultGrid()})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSummarize(t *testing.T) {
	mk := func(theta, chi float64) RowSolution {
		return RowSolution{Result: &search.Result{Solutions: []search.Solution{{ThetaDeg: theta, ChiDeg: chi}}}}
	}
	rows := []RowSolution{
		mk(10, 100),
		mk(20, 120),
		{Result: &search.Result{}},
		{Skipped: true},
	}
	s := Summarize(rows, 0)
	assert.Equal(t, 2, s.Solved)
	assert.Equal(t, 1, s.Unmatched)
	assert.Equal(t, 1, s.Skipped)
	assert.InDelta(t, 15, s.MeanTheta, 1e-12)
	assert.InDelta(t, 110, s.MeanChi, 1e-12)
	assert.InDelta(t, math.Sqrt(50), s.StdTheta, 1e-12)

	empty := Summarize(nil, 0)
	assert.True(t, math.IsNaN(empty.MeanTheta))
}
