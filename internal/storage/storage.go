// Package storage keeps simulation runs in a SQLite database.
package storage

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"multi-uuv-sim/internal/common"
	"multi-uuv-sim/internal/formation"
	"multi-uuv-sim/internal/simulation"
)

// ErrRunNotFound is returned when a run id is not in the database.
var ErrRunNotFound = errors.New("run not found")

// schema.sql creates the runs, samples and spreads tables.
//
//go:embed schema.sql
var schemaSQL string

// Store is a run database.
type Store struct {
	*sql.DB
	now func() time.Time
}

// RunSummary describes one stored run.
type RunSummary struct {
	RunID         string
	Created       time.Time
	Vehicles      int
	Law           formation.Law
	Dt            float64
	Steps         int
	InitialSpread float64
	FinalSpread   float64
}

// Open opens or creates the database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return &Store{DB: db, now: time.Now}, nil
}

// SaveRun writes the run and all its samples in one transaction.
func (s *Store) SaveRun(ctx context.Context, r *simulation.Result) error {
	tx, err := s.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (run_id, created_unix, vehicles, omega0, gain, speed, dt, steps, initial_spread, final_spread)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, r.RunID, s.now().Unix(), len(r.Trajectories), r.Law.Omega0, r.Law.Gain, r.Law.Speed, r.Dt, r.Steps, r.InitialSpread, r.FinalSpread())
	if err != nil {
		return fmt.Errorf("failed to insert run %s: %w", r.RunID, err)
	}

	sampleStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO samples (run_id, vehicle_id, tick, sim_time, x, y, yaw, yaw_rate)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare sample insert: %w", err)
	}
	defer sampleStmt.Close()
	for id, samples := range r.Trajectories {
		for _, smp := range samples {
			_, err := sampleStmt.ExecContext(ctx, r.RunID, id, smp.Tick, smp.Time, smp.Position.X, smp.Position.Y, smp.Yaw, smp.YawRate)
			if err != nil {
				return fmt.Errorf("failed to insert sample of vehicle %d at tick %d: %w", id, smp.Tick, err)
			}
		}
	}

	spreadStmt, err := tx.PrepareContext(ctx, `INSERT INTO spreads (run_id, tick, spread) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare spread insert: %w", err)
	}
	defer spreadStmt.Close()
	for i, spread := range r.Spread {
		if _, err := spreadStmt.ExecContext(ctx, r.RunID, i+1, spread); err != nil {
			return fmt.Errorf("failed to insert spread at tick %d: %w", i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run %s: %w", r.RunID, err)
	}
	return nil
}

// LoadTrajectory returns the samples of one vehicle of a run in tick order.
func (s *Store) LoadTrajectory(ctx context.Context, runID string, vehicleID int) ([]simulation.Sample, error) {
	if err := s.checkRun(ctx, runID); err != nil {
		return nil, err
	}
	rows, err := s.QueryContext(ctx, `
		SELECT tick, sim_time, x, y, yaw, yaw_rate
		FROM samples
		WHERE run_id = ? AND vehicle_id = ?
		ORDER BY tick
	`, runID, vehicleID)
	if err != nil {
		return nil, fmt.Errorf("failed to query trajectory: %w", err)
	}
	defer rows.Close()

	var samples []simulation.Sample
	for rows.Next() {
		var smp simulation.Sample
		var x, y float64
		if err := rows.Scan(&smp.Tick, &smp.Time, &x, &y, &smp.Yaw, &smp.YawRate); err != nil {
			return nil, fmt.Errorf("failed to scan sample: %w", err)
		}
		smp.Position = common.NewVec2(x, y)
		samples = append(samples, smp)
	}
	return samples, rows.Err()
}

// LoadSpread returns the per-tick orbit-center spread of a run.
func (s *Store) LoadSpread(ctx context.Context, runID string) ([]float64, error) {
	if err := s.checkRun(ctx, runID); err != nil {
		return nil, err
	}
	rows, err := s.QueryContext(ctx, `SELECT spread FROM spreads WHERE run_id = ? ORDER BY tick`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query spread: %w", err)
	}
	defer rows.Close()

	var spread []float64
	for rows.Next() {
		var v float64
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("failed to scan spread: %w", err)
		}
		spread = append(spread, v)
	}
	return spread, rows.Err()
}

// ListRuns returns every stored run, newest first.
func (s *Store) ListRuns(ctx context.Context) ([]RunSummary, error) {
	rows, err := s.QueryContext(ctx, `
		SELECT run_id, created_unix, vehicles, omega0, gain, speed, dt, steps, initial_spread, final_spread
		FROM runs
		ORDER BY created_unix DESC, run_id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []RunSummary
	for rows.Next() {
		var r RunSummary
		var created int64
		if err := rows.Scan(&r.RunID, &created, &r.Vehicles, &r.Law.Omega0, &r.Law.Gain, &r.Law.Speed,
			&r.Dt, &r.Steps, &r.InitialSpread, &r.FinalSpread); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		r.Created = time.Unix(created, 0)
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

func (s *Store) checkRun(ctx context.Context, runID string) error {
	var n int
	err := s.QueryRowContext(ctx, `SELECT COUNT(*) FROM runs WHERE run_id = ?`, runID).Scan(&n)
	if err != nil {
		return fmt.Errorf("failed to look up run %s: %w", runID, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return nil
}
