package simulation

import (
	"context"
	"math"
	"math/rand"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"multi-uuv-sim/internal/formation"
	"multi-uuv-sim/internal/pose"
)

var unitLaw = formation.Law{Omega0: 1, Gain: 1, Speed: 1}

func newTestSimulation(t *testing.T, law formation.Law, initial []pose.Pose) *Simulation {
	t.Helper()
	sim, err := NewSimulation(law, 0.02, initial, zerolog.Nop())
	require.NoError(t, err)
	return sim
}

func TestSimulationRecordsTrajectories(t *testing.T) {
	sim := newTestSimulation(t, unitLaw, LineScenario(3))
	require.NoError(t, sim.Run(context.Background(), 50))

	res := sim.Result()
	assert.Equal(t, 50, res.Steps)
	assert.Equal(t, 50, sim.Tick())
	assert.InDelta(t, 1.0, sim.CurrentTime(), 1e-12)
	require.Len(t, res.Trajectories, 3)
	for id, traj := range res.Trajectories {
		require.Len(t, traj, 50)
		assert.Equal(t, 1, traj[0].Tick)
		assert.Equal(t, sim.Vehicles()[id].Pose().Position, traj[49].Position)
	}
	assert.Len(t, res.Spread, 50)
	assert.Len(t, res.Positions(0), 50)
	assert.NotEmpty(t, res.RunID)
	assert.Len(t, sim.Objects(), 3)
}

func TestSimulationRegistriesMirrorTruth(t *testing.T) {
	sim := newTestSimulation(t, unitLaw, LineScenario(4))
	require.NoError(t, sim.Step())

	truth := sim.Poses()
	for _, v := range sim.Vehicles() {
		believed, err := v.Registry().Ordered(4)
		require.NoError(t, err)
		assert.Equal(t, truth, believed, "registry of vehicle %d", v.ID())
	}
}

func TestSymmetricGroupTurnsInUnison(t *testing.T) {
	sim := newTestSimulation(t, unitLaw, CircleScenario(4, 1))
	for i := 0; i < 200; i++ {
		require.NoError(t, sim.Step())
		first := sim.Vehicles()[0].YawRate()
		for _, v := range sim.Vehicles()[1:] {
			assert.InDelta(t, first, v.YawRate(), 1e-9, "tick %d vehicle %d", i, v.ID())
		}
	}
}

func TestSingleVehicleKeepsNaturalRate(t *testing.T) {
	law := formation.Law{Omega0: 0.8, Gain: 3, Speed: 1.2}
	sim := newTestSimulation(t, law, LineScenario(1))
	require.NoError(t, sim.Run(context.Background(), 300))

	for _, s := range sim.Result().Trajectories[0] {
		assert.Equal(t, 0.8, s.YawRate)
	}
	for _, spread := range sim.Result().Spread {
		assert.Equal(t, 0.0, spread)
	}
}

func TestConvergenceFromPerturbedCircle(t *testing.T) {
	for seed := int64(1); seed <= 10; seed++ {
		rng := rand.New(rand.NewSource(seed))
		initial := PerturbedCircleScenario(rng, 5, 1, 0.3)
		sim := newTestSimulation(t, unitLaw, initial)
		require.NoError(t, sim.Run(context.Background(), 750))

		res := sim.Result()
		require.Greater(t, res.InitialSpread, 0.0)
		assert.Less(t, res.FinalSpread(), 0.1*res.InitialSpread, "seed %d", seed)

		quarter := len(res.Spread) / 4
		assert.Less(t, mean(res.Spread[3*quarter:]), mean(res.Spread[:quarter]), "seed %d", seed)
	}
}

func TestConvergenceFromLine(t *testing.T) {
	sim := newTestSimulation(t, unitLaw, LineScenario(4))
	require.NoError(t, sim.Run(context.Background(), 750))
	res := sim.Result()
	assert.Less(t, res.FinalSpread(), res.InitialSpread)
}

func TestRunStopsWhenCancelled(t *testing.T) {
	sim := newTestSimulation(t, unitLaw, LineScenario(2))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := sim.Run(ctx, 10)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, sim.Tick())
}

func TestNewSimulationRejectsInvalidConfiguration(t *testing.T) {
	_, err := NewSimulation(unitLaw, 0.02, nil, zerolog.Nop())
	assert.ErrorIs(t, err, formation.ErrInvalidConfiguration)
	_, err = NewSimulation(unitLaw, 0, LineScenario(2), zerolog.Nop())
	assert.ErrorIs(t, err, formation.ErrInvalidConfiguration)
	_, err = NewSimulation(formation.Law{Omega0: 0, Speed: 1}, 0.02, LineScenario(2), zerolog.Nop())
	assert.ErrorIs(t, err, formation.ErrInvalidConfiguration)
}

func TestBroadcastNoiseReachesRegistries(t *testing.T) {
	sim := newTestSimulation(t, unitLaw, LineScenario(3))
	sim.SetBroadcastNoise(GaussianNoise(rand.New(rand.NewSource(2)), 0.1, 0.01))
	require.NoError(t, sim.Step())

	truth := sim.Poses()
	believed, err := sim.Vehicles()[0].Registry().Ordered(3)
	require.NoError(t, err)
	assert.NotEqual(t, truth, believed)
	for i := range truth {
		assert.InDelta(t, truth[i].Position.X, believed[i].Position.X, 1.0)
	}

	sim.SetBroadcastNoise(nil)
	require.NoError(t, sim.Step())
	believed, err = sim.Vehicles()[0].Registry().Ordered(3)
	require.NoError(t, err)
	assert.Equal(t, sim.Poses(), believed)
}

func TestBroadcastNoiseSkipsOwnPose(t *testing.T) {
	sim := newTestSimulation(t, unitLaw, LineScenario(3))
	sim.SetBroadcastNoise(func(p pose.Pose) pose.Pose {
		p.Position.X += 10
		return p
	})
	require.NoError(t, sim.Step())

	truth := sim.Poses()
	for _, v := range sim.Vehicles() {
		believed, err := v.Registry().Ordered(3)
		require.NoError(t, err)
		for i := range truth {
			if i == v.ID() {
				assert.Equal(t, truth[i], believed[i], "vehicle %d own pose", v.ID())
				continue
			}
			assert.InDelta(t, truth[i].Position.X+10, believed[i].Position.X, 1e-12, "vehicle %d view of %d", v.ID(), i)
		}
	}
}

func TestBuildScenario(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	line, err := BuildScenario(ScenarioOptions{Kind: ScenarioLine, Vehicles: 3})
	require.NoError(t, err)
	assert.Len(t, line, 3)
	assert.InDelta(t, 6.28, line[2].Yaw(), 1e-12)
	assert.Equal(t, 2.0, line[2].Position.X)

	circle, err := BuildScenario(ScenarioOptions{Kind: ScenarioCircle, Vehicles: 4, Radius: 2})
	require.NoError(t, err)
	assert.InDelta(t, 0, formation.Spread(formation.Law{Omega0: 0.5, Speed: 1}, circle), 1e-20)

	perturbed, err := BuildScenario(ScenarioOptions{Kind: ScenarioPerturbed, Vehicles: 4, Radius: 1, Perturbation: 0.2, Rand: rng})
	require.NoError(t, err)
	for i, p := range perturbed {
		assert.InDelta(t, circle[i].Position.X/2, p.Position.X, 0.2+1e-12)
	}

	random, err := BuildScenario(ScenarioOptions{Kind: ScenarioRandom, Vehicles: 5, Radius: 3, Rand: rng})
	require.NoError(t, err)
	require.Len(t, random, 5)
	for _, p := range random {
		assert.LessOrEqual(t, math.Abs(p.Position.X), 3.0)
		assert.LessOrEqual(t, math.Abs(p.Position.Y), 3.0)
	}

	_, err = BuildScenario(ScenarioOptions{Kind: ScenarioPerturbed, Vehicles: 4})
	assert.Error(t, err)
	_, err = BuildScenario(ScenarioOptions{Kind: ScenarioRandom, Vehicles: 4})
	assert.Error(t, err)
	_, err = BuildScenario(ScenarioOptions{Kind: "spiral", Vehicles: 4})
	assert.Error(t, err)
	_, err = BuildScenario(ScenarioOptions{Kind: ScenarioLine})
	assert.Error(t, err)
}

func TestScenarioFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	require.NoError(t, SaveScenario(path, LineScenario(3)))

	poses, err := BuildScenario(ScenarioOptions{Kind: ScenarioFile, File: path})
	require.NoError(t, err)
	require.Len(t, poses, 3)
	assert.Equal(t, 1.0, poses[1].Position.X)
	assert.InDelta(t, 3.14, poses[1].Yaw(), 1e-12)
}

func TestParseScenario(t *testing.T) {
	poses, err := ParseScenario([]byte(`
vehicles:
  - position: [0, 1]
    yaw: -1.5707963267948966
  - position: [2.5, -3]
`))
	require.NoError(t, err)
	require.Len(t, poses, 2)
	assert.InDelta(t, 4.71238898038469, poses[0].Yaw(), 1e-12)
	assert.Equal(t, -3.0, poses[1].Position.Y)

	_, err = ParseScenario([]byte("vehicles: []"))
	assert.Error(t, err)
	_, err = ParseScenario([]byte("vehicles: [oops"))
	assert.Error(t, err)
	_, err = LoadScenario(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestNoiseFunctions(t *testing.T) {
	p := pose.New(pose.Pose{}.Position, 1)
	assert.Equal(t, p, NoNoise(p))

	rng := rand.New(rand.NewSource(9))
	uniform := UniformNoise(rng, 0.5, 0.1)
	for i := 0; i < 100; i++ {
		q := uniform(p)
		assert.LessOrEqual(t, q.Position.X, 0.5)
		assert.GreaterOrEqual(t, q.Position.X, -0.5)
		assert.InDelta(t, 1, q.Yaw(), 0.1+1e-12)
	}

	zero := GaussianNoise(rng, -1, -1)
	assert.Equal(t, p.Position, zero(p).Position)
}

func mean(xs []float64) float64 {
	total := 0.0
	for _, x := range xs {
		total += x
	}
	return total / float64(len(xs))
}
