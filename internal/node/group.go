package node

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"multi-uuv-sim/internal/broadcast"
	"multi-uuv-sim/internal/formation"
	"multi-uuv-sim/internal/pose"
)

// busBuffer is the per-node receive queue of a local group.
const busBuffer = 64

// Group is a set of nodes sharing an in-process bus.
type Group struct {
	bus   *broadcast.Bus
	nodes []*Node
}

// NewGroup creates one node per initial pose, node i being vehicle i.
func NewGroup(law formation.Law, initial []pose.Pose, rate, staleAfter time.Duration, logger zerolog.Logger, opts ...Option) (*Group, error) {
	g := &Group{bus: broadcast.NewBus()}
	for i, p := range initial {
		cfg := Config{
			ID:         i,
			Vehicles:   len(initial),
			Law:        law,
			Initial:    p,
			Rate:       rate,
			StaleAfter: staleAfter,
		}
		n, err := New(cfg, g.bus.Endpoint(busBuffer), logger, opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create node %d: %w", i, err)
		}
		g.nodes = append(g.nodes, n)
	}
	return g, nil
}

// Nodes returns the nodes ordered by vehicle id.
func (g *Group) Nodes() []*Node {
	return g.nodes
}

// Run runs every node until ctx is done or one of them fails.
func (g *Group) Run(ctx context.Context) error {
	eg, ctx := errgroup.WithContext(ctx)
	for _, n := range g.nodes {
		n := n
		eg.Go(func() error { return n.Run(ctx) })
	}
	err := eg.Wait()
	for _, n := range g.nodes {
		n.transport.Close()
	}
	return err
}

// Poses returns the pose of every node after its last tick.
func (g *Group) Poses() []pose.Pose {
	poses := make([]pose.Pose, len(g.nodes))
	for i, n := range g.nodes {
		poses[i] = n.State().Pose
	}
	return poses
}
