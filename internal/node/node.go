// Package node runs one vehicle of the group as a networked process: it
// integrates its own pose, broadcasts it, ingests the broadcasts of its
// peers and re-evaluates the formation law at a fixed rate.
package node

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"multi-uuv-sim/internal/broadcast"
	"multi-uuv-sim/internal/formation"
	"multi-uuv-sim/internal/pid"
	"multi-uuv-sim/internal/pose"
	"multi-uuv-sim/internal/relay"
	"multi-uuv-sim/internal/simulation"
)

// Config describes one node.
type Config struct {
	ID       int
	Vehicles int
	Law      formation.Law
	Initial  pose.Pose
	// Rate is the control period.
	Rate time.Duration
	// StaleAfter excludes peers not heard from for longer. Zero keeps them forever.
	StaleAfter time.Duration
}

// State is a snapshot of a node after its last control tick.
type State struct {
	Tick      int
	Pose      pose.Pose
	Commanded float64 // output of the formation law
	Applied   float64 // heading rate the vehicle turns at
	Active    []int
}

// Option customizes a Node.
type Option func(*Node)

// WithRelay feeds every received broadcast to r and runs it alongside the node.
func WithRelay(r *relay.Relay) Option {
	return func(n *Node) { n.relay = r }
}

// WithRateLoop makes the applied heading rate track the commanded one
// through c instead of following it instantly.
func WithRateLoop(c *pid.Controller) Option {
	return func(n *Node) { n.rateLoop = c }
}

// WithClock replaces the wall clock.
func WithClock(now func() time.Time) Option {
	return func(n *Node) { n.now = now }
}

// Node is a software-in-the-loop vehicle.
type Node struct {
	instance  string
	cfg       Config
	vehicle   *simulation.Vehicle
	transport broadcast.Transport
	relay     *relay.Relay
	rateLoop  *pid.Controller
	now       func() time.Time
	log       zerolog.Logger

	// control loop only
	applied float64
	stale   map[int]bool

	mu    sync.Mutex
	state State
}

// New creates the node described by cfg, talking over transport.
func New(cfg Config, transport broadcast.Transport, logger zerolog.Logger, opts ...Option) (*Node, error) {
	if !(cfg.Rate > 0) {
		return nil, fmt.Errorf("%w: node rate must be positive, got %s", formation.ErrInvalidConfiguration, cfg.Rate)
	}
	if cfg.StaleAfter < 0 {
		return nil, fmt.Errorf("%w: stale-after must not be negative", formation.ErrInvalidConfiguration)
	}
	if transport == nil {
		return nil, errors.New("node needs a transport")
	}

	instance := uuid.NewString()
	log := logger.With().Str("node", instance[:8]).Logger()
	v, err := simulation.NewVehicle(cfg.ID, cfg.Vehicles, cfg.Law, cfg.Initial, log)
	if err != nil {
		return nil, err
	}
	n := &Node{
		instance:  instance,
		cfg:       cfg,
		vehicle:   v,
		transport: transport,
		now:       time.Now,
		log:       log.With().Int("vehicle", cfg.ID).Logger(),
		stale:     make(map[int]bool),
		state:     State{Pose: cfg.Initial},
	}
	for _, opt := range opts {
		opt(n)
	}
	v.Registry().SetClock(n.now)
	return n, nil
}

// ID returns the vehicle id of the node.
func (n *Node) ID() int {
	return n.cfg.ID
}

// Instance returns the unique id of this node process.
func (n *Node) Instance() string {
	return n.instance
}

// Registry returns the node's belief about the group.
func (n *Node) Registry() *pose.Registry {
	return n.vehicle.Registry()
}

// State returns a snapshot taken at the end of the last control tick.
func (n *Node) State() State {
	n.mu.Lock()
	defer n.mu.Unlock()
	s := n.state
	s.Active = slices.Clone(n.state.Active)
	return s
}

// Run drives the node until ctx is done.
func (n *Node) Run(ctx context.Context) error {
	n.log.Info().
		Str("instance", n.instance).
		Int("vehicles", n.cfg.Vehicles).
		Dur("rate", n.cfg.Rate).
		Dur("stale_after", n.cfg.StaleAfter).
		Bool("rate_loop", n.rateLoop != nil).
		Msg("starting node")

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return n.receiveLoop(ctx) })
	g.Go(func() error { return n.controlLoop(ctx) })
	if n.relay != nil {
		g.Go(func() error { return n.relay.Run(ctx) })
	}
	err := g.Wait()
	n.log.Info().Int("ticks", n.State().Tick).Msg("node stopped")
	return err
}

func (n *Node) receiveLoop(ctx context.Context) error {
	for {
		msg, err := n.transport.Recv(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, broadcast.ErrMalformed) {
				n.log.Warn().Err(err).Msg("dropping pose broadcast")
				continue
			}
			return fmt.Errorf("vehicle %d: receive: %w", n.cfg.ID, err)
		}
		n.Ingest(msg)
	}
}

func (n *Node) controlLoop(ctx context.Context) error {
	ticker := time.NewTicker(n.cfg.Rate)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := n.Tick(ctx); err != nil {
				return err
			}
		}
	}
}

// Ingest records a peer's broadcast. The node's own broadcasts are ignored.
func (n *Node) Ingest(msg broadcast.Message) {
	if n.relay != nil {
		n.relay.Observe(msg.ID, msg.Yaw, msg.Time())
	}
	if msg.ID == n.cfg.ID {
		return
	}
	n.vehicle.Registry().Set(msg.ID, msg.Pose())
}

// Tick runs one control period: integrate with the previous heading rate,
// publish the fresh pose, then evaluate the law over the active members.
func (n *Node) Tick(ctx context.Context) error {
	dt := n.cfg.Rate.Seconds()
	n.vehicle.Update(dt)
	own := n.vehicle.Pose()
	now := n.now()
	registry := n.vehicle.Registry()
	registry.Set(n.cfg.ID, own)

	msg := broadcast.NewMessage(n.cfg.ID, own, now)
	if n.relay != nil {
		n.relay.Observe(msg.ID, msg.Yaw, msg.Time())
	}
	if err := n.transport.Send(ctx, msg); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		n.log.Warn().Err(err).Msg("failed to broadcast pose")
	}

	active := registry.Active(now, n.cfg.StaleAfter)
	n.reportStaleness(registry, active)
	poses, err := registry.Snapshot(active)
	if err != nil {
		return fmt.Errorf("vehicle %d: %w", n.cfg.ID, err)
	}
	k := slices.Index(active, n.cfg.ID)
	commanded, err := n.cfg.Law.YawRate(k, poses)
	if err != nil {
		return fmt.Errorf("vehicle %d: %w", n.cfg.ID, err)
	}

	n.applied = n.actuate(commanded, dt)
	n.vehicle.SetYawRate(n.applied)
	n.log.Debug().
		Int("active", len(active)).
		Float64("commanded", commanded).
		Float64("applied", n.applied).
		Msg("changing yaw rate")

	n.mu.Lock()
	n.state = State{
		Tick:      n.state.Tick + 1,
		Pose:      own,
		Commanded: commanded,
		Applied:   n.applied,
		Active:    active,
	}
	n.mu.Unlock()
	return nil
}

// actuate returns the heading rate the vehicle turns at over the next period.
func (n *Node) actuate(commanded, dt float64) float64 {
	if n.rateLoop == nil {
		return commanded
	}
	return n.applied + n.rateLoop.Update(commanded-n.applied, dt)*dt
}

// reportStaleness logs peers that drop out of or come back into the active set.
// Peers never heard from are not reported.
func (n *Node) reportStaleness(registry *pose.Registry, active []int) {
	for _, id := range registry.IDs() {
		if id == n.cfg.ID {
			continue
		}
		last, heard := registry.LastUpdated(id)
		if !heard {
			continue
		}
		isStale := !slices.Contains(active, id)
		if isStale == n.stale[id] {
			continue
		}
		n.stale[id] = isStale
		if isStale {
			n.log.Warn().Int("peer", id).Time("last_heard", last).Msg("peer became stale")
		} else {
			n.log.Info().Int("peer", id).Msg("peer is active again")
		}
	}
}
