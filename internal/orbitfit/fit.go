// Package orbitfit estimates the circle a vehicle actually traced from its
// recorded positions.
package orbitfit

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/blas/blas64"
	"gonum.org/v1/gonum/mat"

	"multi-uuv-sim/internal/common"
	"multi-uuv-sim/internal/simulation"
)

// maxCondition rejects point sets too close to a line to locate a center.
const maxCondition = 1e12

var (
	// ErrInsufficientPoints is returned for fewer than three points.
	ErrInsufficientPoints = errors.New("at least three points are needed to fit a circle")
	// ErrDegenerate is returned when the points are (nearly) collinear or coincident.
	ErrDegenerate = errors.New("points do not determine a circle")
)

// Circle is a fitted orbit.
type Circle struct {
	Center common.Vec2
	Radius float64
	// Residual is the RMS distance of the points from the circle.
	Residual float64
}

// FitCircle returns the least-squares circle through points.
//
// Every point is equidistant from the center, so subtracting the mean of the
// equations |p_i - c|² = R² from each of them leaves the linear system
// 2(p̄ - p_i)·c = mean|p|² - |p_i|², solved by QR. The radius is the mean
// distance of the points from that center.
func FitCircle(points []common.Vec2) (Circle, error) {
	n := len(points)
	if n < 3 {
		return Circle{}, fmt.Errorf("%w: got %d", ErrInsufficientPoints, n)
	}

	var centroid common.Vec2
	var meanNormSq float64
	for _, p := range points {
		centroid = centroid.Add(p)
		meanNormSq += p.NormSq()
	}
	centroid = centroid.MultiplyByScalar(1 / float64(n))
	meanNormSq /= float64(n)

	aData := make([]float64, 0, n*2)
	bData := make([]float64, n)
	for i, p := range points {
		row := centroid.Subtract(p).MultiplyByScalar(2)
		aData = append(aData, row.X, row.Y)
		bData[i] = meanNormSq - p.NormSq()
	}
	A := mat.NewDense(n, 2, aData)
	b := mat.NewVecDense(n, bData)

	var qr mat.QR
	qr.Factorize(A)
	if c := qr.Cond(); math.IsNaN(c) || c > maxCondition {
		return Circle{}, fmt.Errorf("%w: condition number %g", ErrDegenerate, c)
	}
	var x mat.VecDense
	if err := qr.SolveVecTo(&x, false, b); err != nil {
		return Circle{}, fmt.Errorf("%w: %v", ErrDegenerate, err)
	}
	center := common.NewVec2(x.AtVec(0), x.AtVec(1))

	dists := make([]float64, n)
	var radius float64
	for i, p := range points {
		dists[i] = p.Distance(center)
		radius += dists[i]
	}
	radius /= float64(n)

	for i := range dists {
		dists[i] -= radius
	}
	residual := blas64.Nrm2(blas64.Vector{N: n, Inc: 1, Data: dists}) / math.Sqrt(float64(n))

	return Circle{Center: center, Radius: radius, Residual: residual}, nil
}

// FitRun fits the last tail fraction (0, 1] of every vehicle's trajectory.
func FitRun(r *simulation.Result, tail float64) ([]Circle, error) {
	if !(tail > 0 && tail <= 1) {
		return nil, fmt.Errorf("tail fraction must be in (0, 1], got %v", tail)
	}
	circles := make([]Circle, len(r.Trajectories))
	for id := range r.Trajectories {
		positions := r.Positions(id)
		start := len(positions) - int(math.Ceil(tail*float64(len(positions))))
		c, err := FitCircle(positions[start:])
		if err != nil {
			return nil, fmt.Errorf("vehicle %d: %w", id, err)
		}
		circles[id] = c
	}
	return circles, nil
}

// CenterDistance returns the distance between a and b's centers.
func CenterDistance(a, b Circle) float64 {
	return a.Center.Distance(b.Center)
}
