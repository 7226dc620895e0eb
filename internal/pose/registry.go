package pose

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// ErrUnknownVehicle is returned when a pose is requested for an id that was never set.
var ErrUnknownVehicle = errors.New("unknown vehicle")

type entry struct {
	pose    Pose
	updated time.Time // zero until the id is first observed
}

// Registry is one vehicle's belief about the last known pose of every group member.
//
// Reads and writes are serialized by an internal lock so a receive loop can
// update the registry while a control loop takes snapshots of it.
type Registry struct {
	mu      sync.RWMutex
	owner   int
	entries map[int]*entry
	log     zerolog.Logger
	now     func() time.Time
}

// NewRegistry creates the registry owned by vehicle owner, seeded with
// zero poses for ids 0..n-1 and for the owner.
func NewRegistry(owner, n int, logger zerolog.Logger) *Registry {
	r := &Registry{
		owner:   owner,
		entries: make(map[int]*entry, n),
		log:     logger.With().Int("owner", owner).Logger(),
		now:     time.Now,
	}
	for i := 0; i < n; i++ {
		r.entries[i] = &entry{}
	}
	if _, ok := r.entries[owner]; !ok {
		r.entries[owner] = &entry{}
	}
	return r
}

// Owner returns the id of the vehicle holding this registry.
func (r *Registry) Owner() int {
	return r.owner
}

// SetClock replaces the time source used to stamp updates.
func (r *Registry) SetClock(now func() time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.now = now
}

// Set inserts or overwrites the pose for id.
func (r *Registry) Set(id int, p Pose) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.setLocked(id, p)
}

func (r *Registry) setLocked(id int, p Pose) {
	e, ok := r.entries[id]
	if !ok {
		r.log.Info().Int("vehicle", id).Msg("adding new pose entry")
		e = &entry{}
		r.entries[id] = e
	}
	e.pose = p
	e.updated = r.now()
	r.log.Debug().Int("vehicle", id).Stringer("pose", p).Msg("pose updated")
}

// Get returns the last stored pose for id.
func (r *Registry) Get(id int) (Pose, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[id]
	if !ok {
		return Pose{}, fmt.Errorf("registry of vehicle %d: %w: %d", r.owner, ErrUnknownVehicle, id)
	}
	return e.pose, nil
}

// BulkUpdate applies Set for every (ids[i], poses[i]) pair in order, so a
// repeated id keeps its last pose. Nothing is applied on a length mismatch.
func (r *Registry) BulkUpdate(ids []int, poses []Pose) error {
	if len(ids) != len(poses) {
		return fmt.Errorf("bulk update: %d ids but %d poses", len(ids), len(poses))
	}
	r.log.Debug().Int("count", len(ids)).Msg("updating poses")

	r.mu.Lock()
	defer r.mu.Unlock()
	for i, id := range ids {
		r.setLocked(id, poses[i])
	}
	return nil
}

// Len returns the number of known vehicles.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// IDs returns every known id in ascending order.
func (r *Registry) IDs() []int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]int, 0, len(r.entries))
	for id := range r.entries {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// Ordered returns the poses of ids 0..n-1 in id order, the layout the
// formation control law indexes into.
func (r *Registry) Ordered(n int) ([]Pose, error) {
	ids := make([]int, n)
	for i := range ids {
		ids[i] = i
	}
	return r.Snapshot(ids)
}

// Snapshot returns the poses for ids, read under a single lock.
func (r *Registry) Snapshot(ids []int) ([]Pose, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	poses := make([]Pose, len(ids))
	for i, id := range ids {
		e, ok := r.entries[id]
		if !ok {
			return nil, fmt.Errorf("registry of vehicle %d: %w: %d", r.owner, ErrUnknownVehicle, id)
		}
		poses[i] = e.pose
	}
	return poses, nil
}

// LastUpdated reports when id was last observed. The second result is
// false if id is unknown or has only its seeded zero pose.
func (r *Registry) LastUpdated(id int) (time.Time, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[id]
	if !ok || e.updated.IsZero() {
		return time.Time{}, false
	}
	return e.updated, true
}

// Active returns, in ascending order, the ids observed within maxAge of now.
// The owner is always included. A maxAge of zero disables expiry and
// returns every known id.
func (r *Registry) Active(now time.Time, maxAge time.Duration) []int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]int, 0, len(r.entries))
	for id, e := range r.entries {
		if maxAge > 0 && id != r.owner {
			if e.updated.IsZero() || now.Sub(e.updated) > maxAge {
				continue
			}
		}
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}
