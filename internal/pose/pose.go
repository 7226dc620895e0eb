// Package pose holds planar vehicle poses and the per-vehicle registry
// of what each vehicle believes about the rest of the group.
package pose

import (
	"fmt"

	"multi-uuv-sim/internal/common"
)

// Pose is a planar position plus a heading. The yaw is kept in [0, 2π)
// by every write path, so it is unexported.
type Pose struct {
	Position common.Vec2
	yaw      float64
}

// New creates a pose, wrapping yaw into [0, 2π).
func New(position common.Vec2, yaw float64) Pose {
	return Pose{Position: position, yaw: common.NormalizeYaw(yaw)}
}

// Yaw returns the normalized heading in radians.
func (p Pose) Yaw() float64 {
	return p.yaw
}

// SetYaw stores rad wrapped into [0, 2π).
func (p *Pose) SetYaw(rad float64) {
	p.yaw = common.NormalizeYaw(rad)
}

// Heading returns the unit direction of travel.
func (p Pose) Heading() common.Vec2 {
	return common.Heading(p.yaw)
}

func (p Pose) String() string {
	return fmt.Sprintf("Pos: %s Yaw: %.3f", p.Position, p.yaw)
}
