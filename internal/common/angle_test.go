package common

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeYawRange(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 10000; i++ {
		x := (rng.Float64()*2 - 1) * 1000
		got := NormalizeYaw(x)
		assert.GreaterOrEqual(t, got, 0.0, "x=%v", x)
		assert.Less(t, got, FullTurn, "x=%v", x)

		// Congruent modulo 2π; tolerance grows with |x| because of math.Mod rounding.
		rem := math.Remainder(got-x, FullTurn)
		assert.InDelta(t, 0, rem, 1e-12*math.Max(1, math.Abs(x)), "x=%v", x)
	}
}

func TestNormalizeYawEdgeCases(t *testing.T) {
	cases := []struct {
		name string
		in   float64
		want float64
	}{
		{"zero", 0, 0},
		{"full turn", FullTurn, 0},
		{"negative full turn", -FullTurn, 0},
		{"minus pi", -math.Pi, math.Pi},
		{"three halves turn", 3 * math.Pi, math.Pi},
		{"just below zero", -1e-18, 0},
		{"in range", 1.25, 1.25},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := NormalizeYaw(tc.in)
			assert.InDelta(t, tc.want, got, 1e-12)
			assert.Less(t, got, FullTurn)
		})
	}
}

func TestAngleDiff(t *testing.T) {
	assert.InDelta(t, 0.2, AngleDiff(0.1, FullTurn-0.1), 1e-12)
	assert.InDelta(t, -0.2, AngleDiff(FullTurn-0.1, 0.1), 1e-12)
	assert.InDelta(t, math.Pi, AngleDiff(math.Pi, 0), 1e-12)
}

func TestVec2Operations(t *testing.T) {
	a := NewVec2(3, 4)
	b := NewVec2(1, -2)

	assert.Equal(t, NewVec2(4, 2), a.Add(b))
	assert.Equal(t, NewVec2(2, 6), a.Subtract(b))
	assert.Equal(t, NewVec2(6, 8), a.MultiplyByScalar(2))
	assert.Equal(t, -5.0, a.Dot(b))
	assert.Equal(t, 25.0, a.NormSq())
	assert.Equal(t, 5.0, a.Norm())
	assert.Equal(t, NewVec2(-4, 3), a.Perp())
	assert.InDelta(t, math.Sqrt(40), a.Distance(b), 1e-12)
	assert.Equal(t, "[3.000, 4.000]", a.String())

	h := Heading(math.Pi / 2)
	assert.InDelta(t, 0, h.X, 1e-15)
	assert.InDelta(t, 1, h.Y, 1e-15)
}

func TestNewRandomVec2(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	bounds := []float64{-1, 1, 10, 20}
	for i := 0; i < 100; i++ {
		v, err := NewRandomVec2(rng, bounds)
		assert.NoError(t, err)
		assert.True(t, v.X >= -1 && v.X <= 1)
		assert.True(t, v.Y >= 10 && v.Y <= 20)
	}

	_, err := NewRandomVec2(rng, []float64{0, 1})
	assert.Error(t, err)
}
