package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"multi-uuv-sim/internal/formation"
	"multi-uuv-sim/internal/simulation"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func runSimulation(t *testing.T, steps int) *simulation.Result {
	t.Helper()
	law := formation.Law{Omega0: 1, Gain: 1, Speed: 1}
	sim, err := simulation.NewSimulation(law, 0.05, simulation.LineScenario(3), zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, sim.Run(context.Background(), steps))
	return sim.Result()
}

func TestSaveAndLoadTrajectory(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	res := runSimulation(t, 20)

	require.NoError(t, s.SaveRun(ctx, res))

	for id := range res.Trajectories {
		got, err := s.LoadTrajectory(ctx, res.RunID, id)
		require.NoError(t, err)
		if diff := cmp.Diff(res.Trajectories[id], got); diff != "" {
			t.Errorf("trajectory of vehicle %d mismatch (-want +got):\n%s", id, diff)
		}
	}

	spread, err := s.LoadSpread(ctx, res.RunID)
	require.NoError(t, err)
	assert.Equal(t, res.Spread, spread)
}

func TestListRuns(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	runs, err := s.ListRuns(ctx)
	require.NoError(t, err)
	assert.Empty(t, runs)

	s.now = func() time.Time { return time.Unix(1000, 0) }
	first := runSimulation(t, 5)
	require.NoError(t, s.SaveRun(ctx, first))
	s.now = func() time.Time { return time.Unix(2000, 0) }
	second := runSimulation(t, 10)
	require.NoError(t, s.SaveRun(ctx, second))

	runs, err = s.ListRuns(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, second.RunID, runs[0].RunID)
	assert.Equal(t, first.RunID, runs[1].RunID)
	assert.Equal(t, 10, runs[0].Steps)
	assert.Equal(t, 3, runs[0].Vehicles)
	assert.Equal(t, second.Law, runs[0].Law)
	assert.Equal(t, second.FinalSpread(), runs[0].FinalSpread)
	assert.Equal(t, time.Unix(2000, 0), runs[0].Created)
}

func TestSaveRunTwiceFails(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	res := runSimulation(t, 3)
	require.NoError(t, s.SaveRun(ctx, res))
	assert.Error(t, s.SaveRun(ctx, res))

	// the failed transaction left the first copy intact
	got, err := s.LoadTrajectory(ctx, res.RunID, 0)
	require.NoError(t, err)
	assert.Len(t, got, 3)
}

func TestUnknownRun(t *testing.T) {
	s := openTestStore(t)
	_, err := s.LoadTrajectory(context.Background(), "missing", 0)
	assert.ErrorIs(t, err, ErrRunNotFound)
	_, err = s.LoadSpread(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrRunNotFound)
}
