// Package visualization turns recorded runs into pictures.
package visualization

import (
	"math"

	"multi-uuv-sim/internal/common"
	"multi-uuv-sim/internal/simulation"
)

// DefaultMargin is the fraction of the span added on each side by AutoLimits.
const DefaultMargin = 0.1

// Bounds is an axis-aligned rectangle in world coordinates.
type Bounds struct {
	MinX, MaxX float64
	MinY, MaxY float64
}

// EmptyBounds contains nothing; extending it by a point yields that point.
func EmptyBounds() Bounds {
	return Bounds{
		MinX: math.Inf(1), MaxX: math.Inf(-1),
		MinY: math.Inf(1), MaxY: math.Inf(-1),
	}
}

// IsEmpty reports whether no point has been added.
func (b Bounds) IsEmpty() bool {
	return b.MinX > b.MaxX || b.MinY > b.MaxY
}

// Extend returns the smallest bounds containing b and p.
func (b Bounds) Extend(p common.Vec2) Bounds {
	b.MinX = math.Min(b.MinX, p.X)
	b.MaxX = math.Max(b.MaxX, p.X)
	b.MinY = math.Min(b.MinY, p.Y)
	b.MaxY = math.Max(b.MaxY, p.Y)
	return b
}

// Width returns the horizontal span.
func (b Bounds) Width() float64 {
	return b.MaxX - b.MinX
}

// Height returns the vertical span.
func (b Bounds) Height() float64 {
	return b.MaxY - b.MinY
}

// Center returns the midpoint.
func (b Bounds) Center() common.Vec2 {
	return common.NewVec2((b.MinX+b.MaxX)/2, (b.MinY+b.MaxY)/2)
}

// WithMargin grows every side by frac of the span along that axis.
func (b Bounds) WithMargin(frac float64) Bounds {
	mx := b.Width() * frac
	my := b.Height() * frac
	return Bounds{MinX: b.MinX - mx, MaxX: b.MaxX + mx, MinY: b.MinY - my, MaxY: b.MaxY + my}
}

// PointsBounds returns the bounds of every point.
func PointsBounds(points ...[]common.Vec2) Bounds {
	b := EmptyBounds()
	for _, ps := range points {
		for _, p := range ps {
			b = b.Extend(p)
		}
	}
	return b
}

// AutoLimits returns the bounds of every recorded position with DefaultMargin added.
func AutoLimits(r *simulation.Result) Bounds {
	paths := make([][]common.Vec2, len(r.Trajectories))
	for i := range r.Trajectories {
		paths[i] = r.Positions(i)
	}
	return PointsBounds(paths...).WithMargin(DefaultMargin)
}

// Transform maps world coordinates onto a screen with a fixed padding,
// preserving aspect ratio. Screen y grows downwards.
type Transform struct {
	Scale   float64
	OffsetX float64
	OffsetY float64
	height  float64
}

// FitTransform centers b on a width x height screen.
func FitTransform(b Bounds, width, height, padding float64) Transform {
	t := Transform{Scale: 1, height: height}
	if b.IsEmpty() {
		t.OffsetX = width / 2
		t.OffsetY = height / 2
		return t
	}
	w, h := b.Width(), b.Height()
	if w == 0 && h == 0 {
		c := b.Center()
		t.OffsetX = width/2 - c.X
		t.OffsetY = height/2 - c.Y
		return t
	}
	if w == 0 {
		w = 1
	}
	if h == 0 {
		h = 1
	}
	t.Scale = math.Min((width-2*padding)/w, (height-2*padding)/h)
	if t.Scale <= 0 || math.IsNaN(t.Scale) || math.IsInf(t.Scale, 0) {
		t.Scale = 1
	}
	c := b.Center()
	t.OffsetX = width/2 - c.X*t.Scale
	t.OffsetY = height/2 - c.Y*t.Scale
	return t
}

// Apply returns the screen position of p.
func (t Transform) Apply(p common.Vec2) (float32, float32) {
	x := p.X*t.Scale + t.OffsetX
	y := t.height - (p.Y*t.Scale + t.OffsetY)
	return float32(x), float32(y)
}
