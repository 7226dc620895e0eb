// Command formation-node runs one vehicle of the group as a networked
// process exchanging pose broadcasts over UDP.
package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"multi-uuv-sim/internal/broadcast"
	"multi-uuv-sim/internal/config"
	"multi-uuv-sim/internal/logging"
	"multi-uuv-sim/internal/node"
	"multi-uuv-sim/internal/pid"
	"multi-uuv-sim/internal/relay"
	"multi-uuv-sim/internal/simulation"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	fs := pflag.NewFlagSet("formation-node", pflag.ContinueOnError)
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
	logger := logging.NewLogger(os.Stderr, cfg.Log.Level, cfg.Log.JSON)

	id, err := config.VehicleNumber(cfg.Node.ID, cfg.Node.Namespace, logger)
	if err != nil {
		return err
	}
	if err := cfg.ValidateNode(id); err != nil {
		return err
	}

	initial, err := simulation.BuildScenario(simulation.ScenarioOptions{
		Kind:         cfg.Scenario.Kind,
		Vehicles:     cfg.Vehicles,
		Radius:       cfg.Radius(),
		Perturbation: cfg.Scenario.Perturbation,
		File:         cfg.Scenario.File,
		Rand:         rand.New(rand.NewSource(cfg.Seed)),
	})
	if err != nil {
		return fmt.Errorf("failed to build scenario: %w", err)
	}
	if id >= len(initial) {
		return fmt.Errorf("scenario has no pose for vehicle %d", id)
	}

	transport, err := broadcast.ListenUDP(cfg.Node.Listen, cfg.Node.Peers)
	if err != nil {
		return err
	}
	defer transport.Close()
	logger.Info().Str("listen", transport.LocalAddr().String()).Strs("peers", cfg.Node.Peers).Msg("pose broadcast transport ready")

	n, err := node.New(node.Config{
		ID:         id,
		Vehicles:   cfg.Vehicles,
		Law:        cfg.Law(),
		Initial:    initial[id],
		Rate:       cfg.Node.Rate,
		StaleAfter: cfg.Node.StaleAfter,
	}, transport, logger, nodeOptions(cfg, logger)...)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return n.Run(ctx)
}

func nodeOptions(cfg *config.Config, logger zerolog.Logger) []node.Option {
	var opts []node.Option
	if rl := cfg.Node.RateLoop; rl.Enabled {
		c := pid.New(rl.PGain, rl.IGain, 0)
		c.SetSaturation(-rl.Limit, rl.Limit)
		c.SetIntegralLimits(-rl.IntegralMax, rl.IntegralMax)
		opts = append(opts, node.WithRateLoop(c))
	}
	if cfg.Node.LeaderID >= 0 {
		sink := relay.LogSink{Log: logger.With().Str("component", "relay").Logger()}
		opts = append(opts, node.WithRelay(relay.New(cfg.Node.LeaderID, cfg.Node.RelayRate, sink, logger)))
	}
	return opts
}
