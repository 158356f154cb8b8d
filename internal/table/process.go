package table

import (
	"fmt"
	"math"

	"github.com/raman-lab/fcpr/internal/intensity"
	"github.com/raman-lab/fcpr/internal/monitoring"
	"github.com/raman-lab/fcpr/internal/tensor"
)

// ResultRow is one line of the result table. Tensor-derived fields are NaN
// for rows beyond the number of tensors in the input.
type ResultRow struct {
	Index int     `json:"index"`
	Freq1 float64 `json:"freq1"`
	AXX   float64 `json:"a_xx"`
	AYY   float64 `json:"a_yy"`
	AZZ   float64 `json:"a_zz"`
	R1    float64 `json:"r_1"`
	R2    float64 `json:"r_2"`
	Freq2 float64 `json:"freq2"`
	I1    float64 `json:"i_1"`
	I2    float64 `json:"i_2"`
}

// Solvable reports whether the row carries both tensor and intensity ratios.
func (r ResultRow) Solvable() bool {
	for _, v := range []float64{r.R1, r.R2, r.I1, r.I2} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Values returns the row in OutputColumns order.
func (r ResultRow) Values() []float64 {
	return []float64{r.Freq1, r.AXX, r.AYY, r.AZZ, r.R1, r.R2, r.Freq2, r.I1, r.I2}
}

// Processed is the reduced table.
type Processed struct {
	Rows        []ResultRow         `json:"rows"`
	Tensors     []tensor.Components `json:"tensors"`
	Principals  []tensor.Principal  `json:"principals"`
	Intensities []intensity.Triple  `json:"intensities"`
	Order       tensor.Order        `json:"-"`
}

// Solvable returns the rows that carry both tensor and intensity ratios.
func (p *Processed) Solvable() []ResultRow {
	var out []ResultRow
	for _, r := range p.Rows {
		if r.Solvable() {
			out = append(out, r)
		}
	}
	return out
}

// Tensors extracts the Raman tensors from a sheet. Each component column
// is compacted to its finite values independently and tensor k is built
// from the k-th finite value of every column, so all six columns must
// hold the same number of finite values.
func Tensors(s *Sheet) ([]tensor.Components, error) {
	if err := s.CheckColumns(TensorColumns...); err != nil {
		return nil, err
	}
	compact := make([][]float64, len(TensorColumns))
	for i, name := range TensorColumns {
		col, _ := s.Column(name)
		for _, v := range col {
			if !math.IsNaN(v) && !math.IsInf(v, 0) {
				compact[i] = append(compact[i], v)
			}
		}
	}
	n := len(compact[0])
	for i := range compact {
		if len(compact[i]) != n {
			return nil, fmt.Errorf("%w: %s has %d, %s has %d",
				ErrRaggedTensor, TensorColumns[0], n, TensorColumns[i], len(compact[i]))
		}
	}

	out := make([]tensor.Components, n)
	for k := range out {
		out[k] = tensor.Components{
			Axx: compact[0][k],
			Axy: compact[1][k],
			Ayy: compact[2][k],
			Axz: compact[3][k],
			Ayz: compact[4][k],
			Azz: compact[5][k],
		}
	}
	return out, nil
}

// Intensities extracts one intensity triple per sheet row.
func Intensities(s *Sheet) ([]intensity.Triple, error) {
	if err := s.CheckColumns(IntensityColumns...); err != nil {
		return nil, err
	}
	aa, _ := s.Column(ColIaa)
	ac, _ := s.Column(ColIac)
	cc, _ := s.Column(ColIcc)
	out := make([]intensity.Triple, s.Rows())
	for i := range out {
		out[i] = intensity.Triple{AA: aa[i], AC: ac[i], CC: cc[i]}
	}
	return out, nil
}

// Process reduces a sheet to the result table.
func Process(s *Sheet, order tensor.Order) (*Processed, error) {
	defer monitoring.Stage("process")()

	if err := s.CheckColumns(RequiredColumns...); err != nil {
		return nil, err
	}
	tensors, err := Tensors(s)
	if err != nil {
		return nil, err
	}
	triples, err := Intensities(s)
	if err != nil {
		return nil, err
	}
	if len(tensors) > s.Rows() {
		return nil, fmt.Errorf("%w: %d tensors for %d rows", ErrRaggedTensor, len(tensors), s.Rows())
	}

	freq1, _ := s.Column(ColFreq1)
	freq2, _ := s.Column(ColFreq2)

	p := &Processed{
		Rows:        make([]ResultRow, s.Rows()),
		Tensors:     tensors,
		Principals:  make([]tensor.Principal, len(tensors)),
		Intensities: triples,
		Order:       order,
	}
	for k, c := range tensors {
		pr, err := tensor.Decompose(c, order)
		if err != nil {
			return nil, fmt.Errorf("tensor %d: %w", k+1, err)
		}
		p.Principals[k] = pr
	}

	nan := math.NaN()
	for i := range p.Rows {
		row := ResultRow{
			Index: i,
			Freq1: freq1[i],
			Freq2: freq2[i],
			AXX:   nan,
			AYY:   nan,
			AZZ:   nan,
			R1:    nan,
			R2:    nan,
		}
		if i < len(p.Principals) {
			pr := p.Principals[i]
			row.AXX, row.AYY, row.AZZ = pr.Values[0], pr.Values[1], pr.Values[2]
			row.R1, row.R2 = pr.R1, pr.R2
		}
		row.I1, row.I2 = triples[i].Ratios()
		p.Rows[i] = row
	}

	monitoring.Debugf("process: %d rows, %d tensors, %d solvable", len(p.Rows), len(tensors), len(p.Solvable()))
	return p, nil
}
