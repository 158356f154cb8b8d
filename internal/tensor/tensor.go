// Package tensor builds symmetric Raman tensors from their six independent
// components and reduces them to principal values and principal ratios.
//
// The ratios r1 = v[0]/v[2] and r2 = v[1]/v[2] feed the orientation model
// in package model. Which eigenvalue lands in v[2] depends on the Order
// used; OrderAscending matches the layout the processing tables have
// always been produced with.
package tensor

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"gonum.org/v1/gonum/mat"
)

// ErrNonFinite is returned when a tensor component is NaN or infinite.
var ErrNonFinite = errors.New("tensor component is not finite")

// ErrDecomposition is returned when the eigen decomposition does not converge.
var ErrDecomposition = errors.New("eigen decomposition failed")

// Components are the six independent entries of a symmetric Raman tensor.
type Components struct {
	Axx float64 `json:"axx"`
	Axy float64 `json:"axy"`
	Ayy float64 `json:"ayy"`
	Axz float64 `json:"axz"`
	Ayz float64 `json:"ayz"`
	Azz float64 `json:"azz"`
}

// Order selects how principal values are arranged before ratios are taken.
type Order int

const (
	// OrderAscending sorts principal values from smallest to largest.
	OrderAscending Order = iota
	// OrderDescending sorts principal values from largest to smallest.
	OrderDescending
	// OrderMagnitude sorts principal values by ascending absolute value.
	OrderMagnitude
)

// String returns the config/flag spelling of the order.
func (o Order) String() string {
	switch o {
	case OrderAscending:
		return "ascending"
	case OrderDescending:
		return "descending"
	case OrderMagnitude:
		return "magnitude"
	default:
		return fmt.Sprintf("Order(%d)", int(o))
	}
}

// ParseOrder parses the spelling produced by Order.String.
// The empty string maps to OrderAscending.
func ParseOrder(s string) (Order, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "ascending", "asc":
		return OrderAscending, nil
	case "descending", "desc":
		return OrderDescending, nil
	case "magnitude", "abs":
		return OrderMagnitude, nil
	default:
		return OrderAscending, fmt.Errorf("unknown eigenvalue order %q: expected ascending, descending or magnitude", s)
	}
}

// Finite reports whether all six components are finite numbers.
func (c Components) Finite() bool {
	for _, v := range c.slice() {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Trace returns Axx + Ayy + Azz.
func (c Components) Trace() float64 {
	return c.Axx + c.Ayy + c.Azz
}

func (c Components) slice() []float64 {
	return []float64{c.Axx, c.Axy, c.Ayy, c.Axz, c.Ayz, c.Azz}
}

// Matrix returns the symmetric 3x3 matrix
//
//	| Axx Axy Axz |
//	| Axy Ayy Ayz |
//	| Axz Ayz Azz |
func (c Components) Matrix() *mat.SymDense {
	return mat.NewSymDense(3, []float64{
		c.Axx, c.Axy, c.Axz,
		c.Axy, c.Ayy, c.Ayz,
		c.Axz, c.Ayz, c.Azz,
	})
}

// Eigenvalues returns the three real eigenvalues of the tensor arranged per order.
func Eigenvalues(c Components, order Order) ([3]float64, error) {
	var out [3]float64
	if !c.Finite() {
		return out, ErrNonFinite
	}

	var es mat.EigenSym
	if ok := es.Factorize(c.Matrix(), false); !ok {
		return out, ErrDecomposition
	}
	// EigenSym yields ascending values.
	vals := es.Values(nil)
	copy(out[:], vals)

	switch order {
	case OrderAscending:
	case OrderDescending:
		out[0], out[2] = out[2], out[0]
	case OrderMagnitude:
		s := out[:]
		sort.SliceStable(s, func(i, j int) bool {
			return math.Abs(s[i]) < math.Abs(s[j])
		})
	default:
		return out, fmt.Errorf("unknown eigenvalue order %d", int(order))
	}
	return out, nil
}

// Principal holds the principal values of a tensor and the two ratios
// normalised to the third principal value.
type Principal struct {
	Values [3]float64 `json:"values"`
	R1     float64    `json:"r1"`
	R2     float64    `json:"r2"`
}

// Valid reports whether both ratios are finite.
func (p Principal) Valid() bool {
	return isFinite(p.R1) && isFinite(p.R2)
}

// Decompose computes principal values and ratios for a tensor.
// A zero reference value yields NaN ratios rather than an error so that a
// batch can carry the row through to the output table.
func Decompose(c Components, order Order) (Principal, error) {
	vals, err := Eigenvalues(c, order)
	if err != nil {
		return Principal{R1: math.NaN(), R2: math.NaN()}, err
	}
	p := Principal{Values: vals}
	if vals[2] == 0 {
		p.R1, p.R2 = math.NaN(), math.NaN()
		return p, nil
	}
	p.R1 = vals[0] / vals[2]
	p.R2 = vals[1] / vals[2]
	return p, nil
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
