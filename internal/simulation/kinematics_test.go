package simulation

import (
	"math"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"multi-uuv-sim/internal/common"
	"multi-uuv-sim/internal/formation"
	"multi-uuv-sim/internal/pose"
)

func TestAdvanceStraightLine(t *testing.T) {
	start := pose.New(common.NewVec2(1, -2), 0.7)
	const (
		speed = 1.5
		dt    = 0.01
		steps = 1000
	)

	p := start
	for i := 0; i < steps; i++ {
		p = Advance(p, speed, 0, dt)
	}

	elapsed := dt * steps
	want := start.Position.Add(common.Heading(0.7).MultiplyByScalar(speed * elapsed))
	assert.InDelta(t, want.X, p.Position.X, 1e-9)
	assert.InDelta(t, want.Y, p.Position.Y, 1e-9)
	assert.InDelta(t, 0.7, p.Yaw(), 1e-15)
}

func TestAdvanceTurnsBeforeMoving(t *testing.T) {
	p := Advance(pose.New(common.NewVec2(0, 0), 0), 1, math.Pi/2, 1)
	assert.InDelta(t, math.Pi/2, p.Yaw(), 1e-12)
	assert.InDelta(t, 0, p.Position.X, 1e-12)
	assert.InDelta(t, 1, p.Position.Y, 1e-12)
}

func TestAdvanceKeepsYawNormalized(t *testing.T) {
	p := pose.New(common.NewVec2(0, 0), 6)
	for i := 0; i < 100; i++ {
		p = Advance(p, 1, 3, 0.5)
		assert.GreaterOrEqual(t, p.Yaw(), 0.0)
		assert.Less(t, p.Yaw(), common.FullTurn)
	}
	for i := 0; i < 100; i++ {
		p = Advance(p, 1, -3, 0.5)
		assert.GreaterOrEqual(t, p.Yaw(), 0.0)
		assert.Less(t, p.Yaw(), common.FullTurn)
	}
}

// The alternate 1.5 multiplier is gated on id%1 != 0 and can never apply.
func TestYawDeltaScaleIsUniform(t *testing.T) {
	for id := 0; id < 100; id++ {
		assert.Equal(t, 1.0, yawDeltaScale(id), "id %d", id)
	}
	assert.Equal(t, 1.5, alternateYawScale)
}

func TestVehicleUsesPreviousYawRate(t *testing.T) {
	law := formation.Law{Omega0: 1, Gain: 1, Speed: 1}
	start := pose.New(common.NewVec2(0, 0), 0)
	v, err := NewVehicle(0, 2, law, start, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, 0.0, v.YawRate())

	other := pose.New(common.NewVec2(1, 0), math.Pi)
	require.NoError(t, v.ObservePoses([]int{0, 1}, []pose.Pose{start, other}))
	require.NoError(t, v.ApplyControl())

	// Control does not move the vehicle.
	assert.Equal(t, start, v.Pose())
	assert.InDelta(t, 0.5, v.YawRate(), 1e-12)

	v.Update(0.1)
	assert.InDelta(t, 0.05, v.Pose().Yaw(), 1e-12)
}

func TestNewVehicleRejectsInvalidConfiguration(t *testing.T) {
	good := formation.Law{Omega0: 1, Gain: 1, Speed: 1}
	_, err := NewVehicle(0, 1, formation.Law{Omega0: 0, Gain: 1, Speed: 1}, pose.Pose{}, zerolog.Nop())
	assert.ErrorIs(t, err, formation.ErrInvalidConfiguration)
	_, err = NewVehicle(0, 0, good, pose.Pose{}, zerolog.Nop())
	assert.ErrorIs(t, err, formation.ErrInvalidConfiguration)
	_, err = NewVehicle(3, 3, good, pose.Pose{}, zerolog.Nop())
	assert.ErrorIs(t, err, formation.ErrInvalidConfiguration)
}

func TestVehicleRegistryAcceptsLateJoiner(t *testing.T) {
	law := formation.Law{Omega0: 1, Gain: 1, Speed: 1}
	v, err := NewVehicle(0, 2, law, pose.Pose{}, zerolog.Nop())
	require.NoError(t, err)

	late := pose.New(common.NewVec2(4, 4), 1)
	require.NoError(t, v.ObservePoses([]int{5}, []pose.Pose{late}))

	got, err := v.Registry().Get(5)
	require.NoError(t, err)
	assert.Equal(t, late, got)

	// The late joiner is outside the configured group and does not enter the law.
	require.NoError(t, v.ApplyControl())
}
