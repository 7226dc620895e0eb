package simulation

import (
	"multi-uuv-sim/internal/pose"
)

// alternateYawScale is the multiplier of the alternate yaw-delta branch in
// yawDeltaScale. The branch is gated on id%1 != 0, which no integer
// satisfies, so the multiplier never applies.
const alternateYawScale = 1.5

// yawDeltaScale returns the factor applied to a vehicle's yaw change per step.
// Every id takes the uniform branch.
func yawDeltaScale(id int) float64 {
	if id%1 == 0 {
		return 1
	}
	return alternateYawScale // unreachable, see alternateYawScale
}

// Advance moves a constant-speed unicycle one explicit Euler step: the
// heading turns by yawRate*dt first, then the position moves speed*dt
// along the new heading. No turn-rate limit or collision check is applied.
func Advance(p pose.Pose, speed, yawRate, dt float64) pose.Pose {
	next := p
	next.SetYaw(p.Yaw() + yawRate*dt)
	next.Position = p.Position.Add(next.Heading().MultiplyByScalar(speed * dt))
	return next
}
