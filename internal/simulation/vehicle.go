package simulation

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"multi-uuv-sim/internal/formation"
	"multi-uuv-sim/internal/pose"
)

// Vehicle is the state owned by one member of the group: its pose, the last
// yaw-rate command and its own registry of the group's poses.
type Vehicle struct {
	id        int
	label     string
	groupSize int
	law       formation.Law
	yawRate   float64
	pose      pose.Pose
	registry  *pose.Registry
	log       zerolog.Logger
}

// NewVehicle creates vehicle id of a group of groupSize, starting at initial
// with a zero yaw rate and a zero-seeded registry.
func NewVehicle(id, groupSize int, law formation.Law, initial pose.Pose, logger zerolog.Logger) (*Vehicle, error) {
	if err := law.Validate(); err != nil {
		return nil, err
	}
	if groupSize < 1 {
		return nil, fmt.Errorf("%w: group size must be at least 1, got %d", formation.ErrInvalidConfiguration, groupSize)
	}
	if id < 0 || id >= groupSize {
		return nil, fmt.Errorf("%w: vehicle id %d outside [0, %d)", formation.ErrInvalidConfiguration, id, groupSize)
	}
	log := logger.With().Int("vehicle", id).Logger()
	return &Vehicle{
		id:        id,
		label:     fmt.Sprintf("uuv-%s", uuid.NewString()[:8]),
		groupSize: groupSize,
		law:       law,
		pose:      initial,
		registry:  pose.NewRegistry(id, groupSize, log),
		log:       log,
	}, nil
}

// ID returns the group index of the vehicle.
func (v *Vehicle) ID() int {
	return v.id
}

// Label returns a short unique name for logs and plots.
func (v *Vehicle) Label() string {
	return v.label
}

// Pose returns the current pose of the vehicle.
func (v *Vehicle) Pose() pose.Pose {
	return v.pose
}

// YawRate returns the command produced by the last control evaluation.
func (v *Vehicle) YawRate() float64 {
	return v.yawRate
}

// SetYawRate overrides the command the next Update will apply.
func (v *Vehicle) SetYawRate(rate float64) {
	v.yawRate = rate
}

// Law returns the control constants of the vehicle.
func (v *Vehicle) Law() formation.Law {
	return v.law
}

// Registry returns the vehicle's belief about the group.
func (v *Vehicle) Registry() *pose.Registry {
	return v.registry
}

// Update integrates the pose over deltaTime using the yaw rate from the
// previous control evaluation.
func (v *Vehicle) Update(deltaTime float64) {
	rate := v.yawRate * yawDeltaScale(v.id)
	v.log.Trace().Float64("yaw_delta", rate*deltaTime).Msg("changing yaw")
	v.pose = Advance(v.pose, v.law.Speed, rate, deltaTime)
	v.log.Trace().Stringer("pose", v.pose).Msg("moved")
}

// ObservePoses records a broadcast of group poses in the registry.
func (v *Vehicle) ObservePoses(ids []int, poses []pose.Pose) error {
	return v.registry.BulkUpdate(ids, poses)
}

// ApplyControl evaluates the formation law over the registry and stores the
// new yaw-rate command.
func (v *Vehicle) ApplyControl() error {
	poses, err := v.registry.Ordered(v.groupSize)
	if err != nil {
		return fmt.Errorf("vehicle %d: %w", v.id, err)
	}
	rate, err := v.law.YawRate(v.id, poses)
	if err != nil {
		return fmt.Errorf("vehicle %d: %w", v.id, err)
	}
	v.log.Debug().Float64("from", v.yawRate).Float64("to", rate).Msg("changing yaw rate")
	v.yawRate = rate
	return nil
}

// String representation for logging
func (v *Vehicle) String() string {
	return fmt.Sprintf("Vehicle[%d %s] %s YawRate: %.3f", v.id, v.label, v.pose, v.yawRate)
}
