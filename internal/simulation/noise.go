package simulation

import (
	"math/rand"

	"multi-uuv-sim/internal/common"
	"multi-uuv-sim/internal/pose"
)

// NoiseFunction perturbs a broadcast pose before a receiver stores it.
// It models navigation error of the sender as seen by one receiver.
type NoiseFunction func(p pose.Pose) pose.Pose

// NoNoise is a NoiseFunction that delivers poses unchanged.
func NoNoise(p pose.Pose) pose.Pose {
	return p
}

// GaussianNoise creates a NoiseFunction adding zero-mean normal noise with
// standard deviation posStdDev to each coordinate and yawStdDev to the heading.
func GaussianNoise(rng *rand.Rand, posStdDev, yawStdDev float64) NoiseFunction {
	if posStdDev < 0 {
		posStdDev = 0
	}
	if yawStdDev < 0 {
		yawStdDev = 0
	}
	return func(p pose.Pose) pose.Pose {
		offset := common.NewVec2(rng.NormFloat64()*posStdDev, rng.NormFloat64()*posStdDev)
		return pose.New(p.Position.Add(offset), p.Yaw()+rng.NormFloat64()*yawStdDev)
	}
}

// UniformNoise creates a NoiseFunction adding noise uniform in
// [-maxPos, +maxPos] per coordinate and [-maxYaw, +maxYaw] to the heading.
func UniformNoise(rng *rand.Rand, maxPos, maxYaw float64) NoiseFunction {
	if maxPos < 0 {
		maxPos = 0
	}
	if maxYaw < 0 {
		maxYaw = 0
	}
	return func(p pose.Pose) pose.Pose {
		offset := common.NewVec2((rng.Float64()*2-1)*maxPos, (rng.Float64()*2-1)*maxPos)
		return pose.New(p.Position.Add(offset), p.Yaw()+(rng.Float64()*2-1)*maxYaw)
	}
}
