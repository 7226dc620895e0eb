package simulation

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"multi-uuv-sim/internal/common"
	"multi-uuv-sim/internal/formation"
	"multi-uuv-sim/internal/pose"
)

// Sample is one recorded state of a vehicle.
type Sample struct {
	Tick     int
	Time     float64
	Position common.Vec2
	Yaw      float64
	YawRate  float64
}

// Result is the recorded output of a run.
type Result struct {
	RunID         string
	Law           formation.Law
	Dt            float64
	Steps         int
	InitialSpread float64
	// Trajectories holds one slice of samples per vehicle, indexed by id.
	Trajectories [][]Sample
	// Spread is the orbit-center spread of the true poses after each tick.
	Spread []float64
}

// Positions returns the recorded positions of one vehicle.
func (r *Result) Positions(id int) []common.Vec2 {
	out := make([]common.Vec2, len(r.Trajectories[id]))
	for i, s := range r.Trajectories[id] {
		out[i] = s.Position
	}
	return out
}

// FinalSpread returns the spread after the last tick, or the initial spread
// if nothing ran.
func (r *Result) FinalSpread() float64 {
	if len(r.Spread) == 0 {
		return r.InitialSpread
	}
	return r.Spread[len(r.Spread)-1]
}

// Simulation owns every vehicle of a group and advances them in lock-step.
type Simulation struct {
	id             string
	law            formation.Law
	dt             float64
	vehicles       []*Vehicle
	simulationTime float64
	tick           int
	result         *Result
	noise          NoiseFunction
	log            zerolog.Logger
}

// NewSimulation creates a group of len(initial) vehicles, vehicle i starting at initial[i].
func NewSimulation(law formation.Law, dt float64, initial []pose.Pose, logger zerolog.Logger) (*Simulation, error) {
	if err := law.Validate(); err != nil {
		return nil, err
	}
	if !(dt > 0) {
		return nil, fmt.Errorf("%w: time step must be positive, got %v", formation.ErrInvalidConfiguration, dt)
	}
	n := len(initial)
	if n < 1 {
		return nil, fmt.Errorf("%w: need at least one vehicle", formation.ErrInvalidConfiguration)
	}

	id := uuid.NewString()
	log := logger.With().Str("run", id[:8]).Logger()
	s := &Simulation{
		id:       id,
		law:      law,
		dt:       dt,
		vehicles: make([]*Vehicle, n),
		noise:    NoNoise,
		log:      log,
	}
	for i, p := range initial {
		v, err := NewVehicle(i, n, law, p, log)
		if err != nil {
			return nil, fmt.Errorf("failed to create vehicle %d: %w", i, err)
		}
		s.vehicles[i] = v
	}
	s.result = &Result{
		RunID:         id,
		Law:           law,
		Dt:            dt,
		InitialSpread: formation.Spread(law, initial),
		Trajectories:  make([][]Sample, n),
	}
	return s, nil
}

// ID returns the run identifier.
func (s *Simulation) ID() string {
	return s.id
}

// Vehicles returns the vehicles ordered by id.
func (s *Simulation) Vehicles() []*Vehicle {
	return s.vehicles
}

// Objects returns the vehicles as simulation objects.
func (s *Simulation) Objects() []SimulationObject {
	objs := make([]SimulationObject, len(s.vehicles))
	for i, v := range s.vehicles {
		objs[i] = v
	}
	return objs
}

// CurrentTime returns the elapsed simulated time.
func (s *Simulation) CurrentTime() float64 {
	return s.simulationTime
}

// Tick returns the number of completed steps.
func (s *Simulation) Tick() int {
	return s.tick
}

// Law returns the control constants shared by the group.
func (s *Simulation) Law() formation.Law {
	return s.law
}

// Poses returns the true current pose of every vehicle.
func (s *Simulation) Poses() []pose.Pose {
	poses := make([]pose.Pose, len(s.vehicles))
	for i, v := range s.vehicles {
		poses[i] = v.Pose()
	}
	return poses
}

// SetBroadcastNoise sets the perturbation applied independently to every
// pose a receiver observes of another vehicle. A nil fn delivers poses unchanged.
func (s *Simulation) SetBroadcastNoise(fn NoiseFunction) {
	if fn == nil {
		fn = NoNoise
	}
	s.noise = fn
}

// Step advances every vehicle by one tick: integrate with the previous
// yaw rate, broadcast the fresh poses to every registry, re-evaluate the
// control law, then record.
func (s *Simulation) Step() error {
	s.tick++
	s.simulationTime += s.dt

	ids := make([]int, len(s.vehicles))
	fresh := make([]pose.Pose, len(s.vehicles))
	for i, v := range s.vehicles {
		v.Update(s.dt)
		ids[i] = v.ID()
		fresh[i] = v.Pose()
	}

	// A vehicle knows its own pose exactly; only poses of others are noisy.
	observed := make([]pose.Pose, len(fresh))
	for j, v := range s.vehicles {
		for i, p := range fresh {
			if i == j {
				observed[i] = p
				continue
			}
			observed[i] = s.noise(p)
		}
		if err := v.ObservePoses(ids, observed); err != nil {
			return fmt.Errorf("tick %d: %w", s.tick, err)
		}
	}

	for _, v := range s.vehicles {
		if err := v.ApplyControl(); err != nil {
			return fmt.Errorf("tick %d: %w", s.tick, err)
		}
	}

	for i, v := range s.vehicles {
		s.result.Trajectories[i] = append(s.result.Trajectories[i], Sample{
			Tick:     s.tick,
			Time:     s.simulationTime,
			Position: fresh[i].Position,
			Yaw:      fresh[i].Yaw(),
			YawRate:  v.YawRate(),
		})
	}
	s.result.Spread = append(s.result.Spread, formation.Spread(s.law, fresh))
	s.result.Steps = s.tick
	return nil
}

// Run executes numSteps ticks, stopping early if ctx is cancelled.
func (s *Simulation) Run(ctx context.Context, numSteps int) error {
	s.log.Info().
		Int("vehicles", len(s.vehicles)).
		Float64("omega0", s.law.Omega0).
		Float64("gain", s.law.Gain).
		Float64("speed", s.law.Speed).
		Float64("dt", s.dt).
		Int("steps", numSteps).
		Msg("starting simulation")

	for i := 0; i < numSteps; i++ {
		if err := ctx.Err(); err != nil {
			s.log.Warn().Int("tick", s.tick).Msg("simulation cancelled")
			return err
		}
		if err := s.Step(); err != nil {
			return err
		}
	}

	s.log.Info().
		Float64("time", s.simulationTime).
		Float64("initial_spread", s.result.InitialSpread).
		Float64("final_spread", s.result.FinalSpread()).
		Msg("simulation finished")
	for _, v := range s.vehicles {
		s.log.Debug().Stringer("vehicle", v).Msg("final state")
	}
	return nil
}

// Result returns the recording so far.
func (s *Simulation) Result() *Result {
	return s.result
}
