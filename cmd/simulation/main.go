// Command simulation runs a leaderless circular-formation group in lock-step
// and optionally plots, stores or shows the result.
package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"syscall"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"multi-uuv-sim/internal/config"
	"multi-uuv-sim/internal/logging"
	"multi-uuv-sim/internal/orbitfit"
	"multi-uuv-sim/internal/simulation"
	"multi-uuv-sim/internal/storage"
	"multi-uuv-sim/internal/visualization"
	"multi-uuv-sim/internal/visualization/live"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	fs := pflag.NewFlagSet("simulation", pflag.ContinueOnError)
	config.AddFlags(fs)
	if err := fs.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	cfg, err := config.Load(viper.New(), fs)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	logger := logging.NewLogger(os.Stderr, cfg.Log.Level, cfg.Log.JSON)

	rng := rand.New(rand.NewSource(cfg.Seed))
	initial, err := simulation.BuildScenario(simulation.ScenarioOptions{
		Kind:         cfg.Scenario.Kind,
		Vehicles:     cfg.Vehicles,
		Radius:       cfg.Radius(),
		Perturbation: cfg.Scenario.Perturbation,
		File:         cfg.Scenario.File,
		Rand:         rng,
	})
	if err != nil {
		return fmt.Errorf("failed to build scenario: %w", err)
	}

	if cfg.Output.Scenario != "" {
		if err := simulation.SaveScenario(cfg.Output.Scenario, initial); err != nil {
			return err
		}
		logger.Info().Str("file", cfg.Output.Scenario).Msg("initial poses saved")
	}

	sim, err := simulation.NewSimulation(cfg.Law(), cfg.Dt, initial, logger)
	if err != nil {
		return fmt.Errorf("failed to create simulation: %w", err)
	}
	if cfg.Noise.Position > 0 || cfg.Noise.Yaw > 0 {
		sim.SetBroadcastNoise(simulation.GaussianNoise(rng, cfg.Noise.Position, cfg.Noise.Yaw))
		logger.Info().Float64("position", cfg.Noise.Position).Float64("yaw", cfg.Noise.Yaw).Msg("broadcast noise enabled")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Output.GUI {
		if err := runWindow(sim, cfg.Steps(), logger); err != nil {
			return err
		}
	} else if err := sim.Run(ctx, cfg.Steps()); err != nil {
		if !errors.Is(err, context.Canceled) {
			return err
		}
		logger.Warn().Msg("interrupted, keeping the partial run")
	}

	reportOrbits(sim.Result(), logger)
	return writeOutputs(context.WithoutCancel(ctx), cfg, sim.Result(), logger)
}

// reportOrbits logs the circle each vehicle traced over the last fifth of the run.
func reportOrbits(res *simulation.Result, logger zerolog.Logger) {
	circles, err := orbitfit.FitRun(res, 0.2)
	if err != nil {
		logger.Debug().Err(err).Msg("no orbit fit")
		return
	}
	for id, c := range circles {
		logger.Info().
			Int("vehicle", id).
			Stringer("center", c.Center).
			Float64("radius", c.Radius).
			Float64("residual", c.Residual).
			Float64("offset", orbitfit.CenterDistance(c, circles[0])).
			Msg("fitted orbit")
	}
}

func runWindow(sim *simulation.Simulation, steps int, logger zerolog.Logger) error {
	renderer := live.NewRenderer(sim, steps, 1, logger)
	ebiten.SetWindowSize(900, 900)
	ebiten.SetWindowTitle("Leaderless circular formation")
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	if err := ebiten.RunGame(renderer); err != nil {
		return fmt.Errorf("window: %w", err)
	}
	return nil
}

func writeOutputs(ctx context.Context, cfg *config.Config, res *simulation.Result, logger zerolog.Logger) error {
	if cfg.Output.Plot != "" {
		paths, err := visualization.WritePNG(res, cfg.Output.Plot)
		if err != nil {
			return err
		}
		logger.Info().Strs("files", paths).Msg("plots written")
	}

	if cfg.Output.DB != "" {
		store, err := storage.Open(cfg.Output.DB)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer store.Close()
		if err := store.SaveRun(ctx, res); err != nil {
			return err
		}
		logger.Info().Str("db", cfg.Output.DB).Str("run", res.RunID).Int("steps", res.Steps).Msg("run stored")
	}
	return nil
}
