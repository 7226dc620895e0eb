package common

import (
	"fmt"
	"math"
	"math/rand"
)

// Vec2 is a point or direction in the horizontal plane.
type Vec2 struct {
	X float64
	Y float64
}

// NewVec2 creates a vector from its components.
func NewVec2(x, y float64) Vec2 {
	return Vec2{X: x, Y: y}
}

// Heading returns the unit vector pointing along yaw (radians, counter-clockwise from +X).
func Heading(yaw float64) Vec2 {
	return Vec2{X: math.Cos(yaw), Y: math.Sin(yaw)}
}

// NewRandomVec2 creates a vector with coordinates drawn uniformly from bounds.
// bounds must hold four elements: [minX, maxX, minY, maxY].
func NewRandomVec2(rng *rand.Rand, bounds []float64) (Vec2, error) {
	if len(bounds) != 4 {
		return Vec2{}, fmt.Errorf("bounds length must be 4, got %d", len(bounds))
	}
	return Vec2{
		X: bounds[0] + rng.Float64()*(bounds[1]-bounds[0]),
		Y: bounds[2] + rng.Float64()*(bounds[3]-bounds[2]),
	}, nil
}

// Add returns v + other.
func (v Vec2) Add(other Vec2) Vec2 {
	return Vec2{X: v.X + other.X, Y: v.Y + other.Y}
}

// Subtract returns v - other.
func (v Vec2) Subtract(other Vec2) Vec2 {
	return Vec2{X: v.X - other.X, Y: v.Y - other.Y}
}

// MultiplyByScalar returns v scaled by s.
func (v Vec2) MultiplyByScalar(s float64) Vec2 {
	return Vec2{X: v.X * s, Y: v.Y * s}
}

// Dot returns the scalar product of v and other.
func (v Vec2) Dot(other Vec2) float64 {
	return v.X*other.X + v.Y*other.Y
}

// Perp returns v rotated by +90 degrees.
func (v Vec2) Perp() Vec2 {
	return Vec2{X: -v.Y, Y: v.X}
}

// NormSq returns the squared Euclidean length of v.
func (v Vec2) NormSq() float64 {
	return v.Dot(v)
}

// Norm returns the Euclidean length of v.
func (v Vec2) Norm() float64 {
	return math.Hypot(v.X, v.Y)
}

// Distance returns the Euclidean distance between v and other.
func (v Vec2) Distance(other Vec2) float64 {
	return v.Subtract(other).Norm()
}

// Slice returns the components as a two-element slice, the layout gonum rows expect.
func (v Vec2) Slice() []float64 {
	return []float64{v.X, v.Y}
}

// String returns a string representation of the vector.
func (v Vec2) String() string {
	return fmt.Sprintf("[%.3f, %.3f]", v.X, v.Y)
}
