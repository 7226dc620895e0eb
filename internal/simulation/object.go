package simulation

import "multi-uuv-sim/internal/pose"

// SimulationObject defines the interface for any object within the simulation.
type SimulationObject interface {
	// ID returns the group index of the object.
	ID() int
	// Pose returns the current planar pose of the object.
	Pose() pose.Pose
	// Update advances the object by deltaTime seconds.
	Update(deltaTime float64)
}
