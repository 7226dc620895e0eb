// Package relay republishes the attitude of a leader vehicle at a fixed rate
// so that followers can mimic it.
package relay

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// DefaultRate is the publish period used when none is configured.
const DefaultRate = time.Second / 30

// Quaternion is an orientation in (w, x, y, z) form.
type Quaternion struct {
	W, X, Y, Z float64
}

// FromYaw returns the rotation of yaw radians about the vertical axis.
func FromYaw(yaw float64) Quaternion {
	return Quaternion{W: math.Cos(yaw / 2), Z: math.Sin(yaw / 2)}
}

// Yaw returns the heading encoded in q.
func (q Quaternion) Yaw() float64 {
	return math.Atan2(2*(q.W*q.Z+q.X*q.Y), 1-2*(q.Y*q.Y+q.Z*q.Z))
}

// IsZero reports whether no orientation has been set.
func (q Quaternion) IsZero() bool {
	return q == Quaternion{}
}

// AttitudeTarget is the setpoint handed to the sink.
type AttitudeTarget struct {
	LeaderID    int
	Orientation Quaternion
	Stamp       time.Time
}

// Sink receives every published setpoint.
type Sink interface {
	PublishAttitude(ctx context.Context, target AttitudeTarget) error
}

// SinkFunc adapts a function to a Sink.
type SinkFunc func(ctx context.Context, target AttitudeTarget) error

// PublishAttitude calls f.
func (f SinkFunc) PublishAttitude(ctx context.Context, target AttitudeTarget) error {
	return f(ctx, target)
}

// Relay caches the last orientation heard from the leader.
type Relay struct {
	leaderID int
	rate     time.Duration
	sink     Sink
	log      zerolog.Logger

	mu     sync.Mutex
	target AttitudeTarget
}

// New returns a relay for leaderID publishing to sink every rate. A
// non-positive rate selects DefaultRate. Until the leader is heard the
// published orientation is the zero quaternion.
func New(leaderID int, rate time.Duration, sink Sink, logger zerolog.Logger) *Relay {
	if rate <= 0 {
		rate = DefaultRate
	}
	return &Relay{
		leaderID: leaderID,
		rate:     rate,
		sink:     sink,
		log:      logger.With().Int("leader", leaderID).Logger(),
		target:   AttitudeTarget{LeaderID: leaderID},
	}
}

// LeaderID returns the vehicle being mimicked.
func (r *Relay) LeaderID() int {
	return r.leaderID
}

// Observe records a pose broadcast. Broadcasts from other vehicles are ignored.
func (r *Relay) Observe(id int, yaw float64, stamp time.Time) bool {
	if id != r.leaderID {
		return false
	}
	r.mu.Lock()
	r.target.Orientation = FromYaw(yaw)
	r.target.Stamp = stamp
	r.mu.Unlock()
	return true
}

// Target returns the current setpoint.
func (r *Relay) Target() AttitudeTarget {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.target
}

// Run publishes the current setpoint every period until ctx is done.
func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.rate)
	defer ticker.Stop()

	r.log.Info().Dur("rate", r.rate).Msg("attitude relay started")
	for {
		select {
		case <-ctx.Done():
			r.log.Info().Msg("attitude relay stopped")
			return nil
		case <-ticker.C:
			if err := r.sink.PublishAttitude(ctx, r.Target()); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("failed to publish attitude target: %w", err)
			}
		}
	}
}

// LogSink writes every setpoint to a logger at debug level.
type LogSink struct {
	Log zerolog.Logger
}

// PublishAttitude logs target.
func (s LogSink) PublishAttitude(_ context.Context, target AttitudeTarget) error {
	s.Log.Debug().
		Int("leader", target.LeaderID).
		Float64("w", target.Orientation.W).
		Float64("z", target.Orientation.Z).
		Float64("yaw", target.Orientation.Yaw()).
		Msg("attitude target")
	return nil
}
