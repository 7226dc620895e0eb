package formation

import (
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"multi-uuv-sim/internal/common"
	"multi-uuv-sim/internal/pose"
)

// CenterSpread returns the sum of the per-axis population variances of a
// center stack. It is zero exactly when every vehicle agrees on the orbit
// center and is the quantity the law drives down.
func CenterSpread(centers mat.Matrix) float64 {
	rows, cols := centers.Dims()
	if rows == 0 {
		return 0
	}
	total := 0.0
	for j := 0; j < cols; j++ {
		total += stat.PopVariance(mat.Col(nil, j, centers), nil)
	}
	return total
}

// GroupCenter returns the mean of a center stack, the orbit the group settles on.
func GroupCenter(centers mat.Matrix) common.Vec2 {
	rows, _ := centers.Dims()
	if rows == 0 {
		return common.Vec2{}
	}
	return common.NewVec2(
		stat.Mean(mat.Col(nil, 0, centers), nil),
		stat.Mean(mat.Col(nil, 1, centers), nil),
	)
}

// Spread is CenterSpread of the centers estimated from poses.
func Spread(l Law, poses []pose.Pose) float64 {
	return CenterSpread(Centers(poses, l.Omega0, l.Speed))
}
