// Package formation implements the leaderless circular-formation control law.
//
// Every vehicle estimates the center of the circle it is currently tracing.
// The law steers each vehicle so that its own center estimate moves toward
// the group average, which settles the whole group on one common orbit with
// no vehicle acting as reference.
package formation

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"multi-uuv-sim/internal/common"
	"multi-uuv-sim/internal/pose"
)

// ErrInvalidConfiguration is returned for inputs the law is undefined for.
var ErrInvalidConfiguration = errors.New("invalid formation configuration")

// Law bundles the constants shared by every vehicle of a group.
type Law struct {
	Omega0 float64 // natural angular rate, sets orbit radius Speed/Omega0 and handedness
	Gain   float64 // consensus gain K
	Speed  float64 // constant forward speed
}

// Validate checks the constants independently of any group size.
func (l Law) Validate() error {
	if l.Omega0 == 0 || math.IsNaN(l.Omega0) || math.IsInf(l.Omega0, 0) {
		return fmt.Errorf("%w: omega0 must be finite and non-zero, got %v", ErrInvalidConfiguration, l.Omega0)
	}
	if !(l.Speed > 0) || math.IsInf(l.Speed, 0) {
		return fmt.Errorf("%w: speed must be positive, got %v", ErrInvalidConfiguration, l.Speed)
	}
	if math.IsNaN(l.Gain) || math.IsInf(l.Gain, 0) {
		return fmt.Errorf("%w: gain must be finite, got %v", ErrInvalidConfiguration, l.Gain)
	}
	return nil
}

// OrbitRadius is the radius of the circle a lone vehicle traces.
func (l Law) OrbitRadius() float64 {
	return math.Abs(l.Speed / l.Omega0)
}

// YawRate evaluates the law for vehicle k over poses, which must be indexed by id.
func (l Law) YawRate(k int, poses []pose.Pose) (float64, error) {
	return ComputeControlOutput(k, l.Omega0, l.Gain, len(poses), l.Speed, poses)
}

// Center estimates the center of the circle a vehicle at p would trace
// moving at velAbs with angular rate omega0.
func Center(p pose.Pose, omega0, velAbs float64) common.Vec2 {
	return p.Position.Add(p.Heading().Perp().MultiplyByScalar(velAbs / omega0))
}

// Centers returns the N×2 stack of orbit-center estimates, one row per pose.
func Centers(poses []pose.Pose, omega0, velAbs float64) *mat.Dense {
	c := mat.NewDense(len(poses), 2, nil)
	for i, p := range poses {
		c.SetRow(i, Center(p, omega0, velAbs).Slice())
	}
	return c
}

// CenteringMatrix returns P = I - J/n. Applied to a stack of row vectors it
// subtracts the stack mean from every row.
func CenteringMatrix(n int) *mat.Dense {
	p := mat.NewDense(n, n, nil)
	off := -1.0 / float64(n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if i == j {
				p.Set(i, j, 1+off)
			} else {
				p.Set(i, j, off)
			}
		}
	}
	return p
}

// ComputeControlOutput returns the yaw-rate command for vehicleID.
//
// poses must hold exactly nVehicles entries ordered by id. The result is
//
//	omega0 * (1 + gain * <P_k C, velAbs*[cos yaw_k, sin yaw_k]>)
//
// where C stacks every vehicle's orbit-center estimate and P_k is row k of
// the centering matrix.
func ComputeControlOutput(vehicleID int, omega0, gain float64, nVehicles int, velAbs float64, poses []pose.Pose) (float64, error) {
	if err := checkInputs(omega0, nVehicles, poses); err != nil {
		return 0, err
	}
	if vehicleID < 0 || vehicleID >= nVehicles {
		return 0, fmt.Errorf("%w: vehicle id %d outside [0, %d)", ErrInvalidConfiguration, vehicleID, nVehicles)
	}

	c := Centers(poses, omega0, velAbs)
	p := CenteringMatrix(nVehicles)

	var deviation mat.VecDense
	deviation.MulVec(c.T(), p.RowView(vehicleID))

	return yawRate(omega0, gain, velAbs, &deviation, poses[vehicleID]), nil
}

// ComputeAllYawRates evaluates the law for every vehicle with a single P·C product.
func ComputeAllYawRates(omega0, gain float64, nVehicles int, velAbs float64, poses []pose.Pose) ([]float64, error) {
	if err := checkInputs(omega0, nVehicles, poses); err != nil {
		return nil, err
	}

	var deviations mat.Dense
	deviations.Mul(CenteringMatrix(nVehicles), Centers(poses, omega0, velAbs))

	rates := make([]float64, nVehicles)
	for k := range rates {
		rates[k] = yawRate(omega0, gain, velAbs, deviations.RowView(k), poses[k])
	}
	return rates, nil
}

func yawRate(omega0, gain, velAbs float64, deviation mat.Vector, p pose.Pose) float64 {
	rDot := mat.NewVecDense(2, p.Heading().MultiplyByScalar(velAbs).Slice())
	return omega0 * (1 + gain*mat.Dot(deviation, rDot))
}

func checkInputs(omega0 float64, nVehicles int, poses []pose.Pose) error {
	if nVehicles < 1 {
		return fmt.Errorf("%w: need at least one vehicle, got %d", ErrInvalidConfiguration, nVehicles)
	}
	if omega0 == 0 {
		return fmt.Errorf("%w: omega0 must be non-zero", ErrInvalidConfiguration)
	}
	if len(poses) != nVehicles {
		return fmt.Errorf("%w: expected %d poses, got %d", ErrInvalidConfiguration, nVehicles, len(poses))
	}
	return nil
}
