// Package model evaluates the closed-form polarized Raman intensity ratios
// of a uniaxially described mode whose crystal frame is tilted by theta and
// rotated by chi relative to the laboratory frame.
//
// With p = r1·cos²χ + r2·sin²χ and q = r1·sin²χ + r2·cos²χ the shared
// denominator is D = (cos²θ·p + q + sin²θ)², and
//
//	ParallelRatio = 4·(sin²θ·p + cos²θ)² / D                          (Icc/Iaa)
//	CrossRatio    = 2·(sin²θ·cos²θ·(p−1)² + sin²θ·sin²χ·cos²χ·(r1−r2)²) / D   (Iac/Iaa)
//
// Angles are in radians. D == 0 produces IEEE Inf/NaN results, which
// callers must treat as "no match".
package model

import "math"

// Point is the pair of model ratios at one orientation.
type Point struct {
	F1 float64 `json:"f1"`
	F2 float64 `json:"f2"`
}

// Finite reports whether both ratios are finite.
func (p Point) Finite() bool {
	return !math.IsNaN(p.F1) && !math.IsInf(p.F1, 0) &&
		!math.IsNaN(p.F2) && !math.IsInf(p.F2, 0)
}

type terms struct {
	s2t, c2t float64 // sin²θ, cos²θ
	s2c, c2c float64 // sin²χ, cos²χ
	p, q     float64
	den      float64
}

func expand(theta, chi, r1, r2 float64) terms {
	st, ct := math.Sincos(theta)
	sc, cc := math.Sincos(chi)
	t := terms{
		s2t: st * st,
		c2t: ct * ct,
		s2c: sc * sc,
		c2c: cc * cc,
	}
	t.p = r1*t.c2c + r2*t.s2c
	t.q = r1*t.s2c + r2*t.c2c
	d := t.c2t*t.p + t.q + t.s2t
	t.den = d * d
	return t
}

func (t terms) parallel() float64 {
	n := t.s2t*t.p + t.c2t
	return 4 * n * n / t.den
}

func (t terms) cross(r1, r2 float64) float64 {
	pm := t.p - 1
	dr := r1 - r2
	n := t.s2t*t.c2t*pm*pm + t.s2t*t.s2c*t.c2c*dr*dr
	return 2 * n / t.den
}

// ParallelRatio models I1 = Icc/Iaa.
func ParallelRatio(theta, chi, r1, r2 float64) float64 {
	return expand(theta, chi, r1, r2).parallel()
}

// CrossRatio models I2 = Iac/Iaa.
func CrossRatio(theta, chi, r1, r2 float64) float64 {
	return expand(theta, chi, r1, r2).cross(r1, r2)
}

// Evaluate returns both ratios, sharing the trigonometric terms.
func Evaluate(theta, chi, r1, r2 float64) Point {
	t := expand(theta, chi, r1, r2)
	return Point{F1: t.parallel(), F2: t.cross(r1, r2)}
}

// EvaluateDeg is Evaluate with angles given in degrees.
func EvaluateDeg(thetaDeg, chiDeg, r1, r2 float64) Point {
	return Evaluate(Radians(thetaDeg), Radians(chiDeg), r1, r2)
}

// Residual returns the signed deviations of p from the targets.
func Residual(p Point, t1, t2 float64) (d1, d2 float64) {
	return p.F1 - t1, p.F2 - t2
}

// MaxAbsResidual returns max(|F1-t1|, |F2-t2|), or +Inf when p is not finite.
func MaxAbsResidual(p Point, t1, t2 float64) float64 {
	if !p.Finite() {
		return math.Inf(1)
	}
	d1, d2 := Residual(p, t1, t2)
	return math.Max(math.Abs(d1), math.Abs(d2))
}

// Radians converts degrees to radians.
func Radians(deg float64) float64 { return deg * math.Pi / 180 }

// Degrees converts radians to degrees.
func Degrees(rad float64) float64 { return rad * 180 / math.Pi }
