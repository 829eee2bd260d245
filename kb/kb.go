// Package kb holds the in-memory fleet store for one scenario and the
// file formats around it: the scenario loaders that populate the store
// and the solution writer that serializes a finished assignment. The
// planning engine consumes sorted snapshots; the store's job is id
// uniqueness and fleet-size telemetry.
package kb

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/signalsfoundry/beam-planner/model"
)

var (
	// ErrUserExists means a user id was added twice.
	ErrUserExists = errors.New("user already exists")
	// ErrSatelliteExists means a satellite id was added twice.
	ErrSatelliteExists = errors.New("satellite already exists")
	// ErrUserNotFound means the requested user id is not in the store.
	ErrUserNotFound = errors.New("user not found")
	// ErrSatelliteNotFound means the requested satellite id is not in the store.
	ErrSatelliteNotFound = errors.New("satellite not found")
)

// FleetMetricsRecorder receives fleet-size updates after every mutation.
// The observability package's collector implements it.
type FleetMetricsRecorder interface {
	SetFleetCounts(users, satellites int)
}

// FleetKB is an in-memory, thread-safe store for one scenario's users and
// satellites. Entities are stored by value; a loaded fleet is immutable
// apart from Clear between scenarios.
type FleetKB struct {
	mu         sync.RWMutex
	users      map[model.UserID]model.User
	satellites map[model.SatelliteID]model.Satellite

	metrics FleetMetricsRecorder
}

// Option configures a FleetKB at construction.
type Option func(*FleetKB)

// WithMetricsRecorder wires fleet-count gauges to the store.
func WithMetricsRecorder(rec FleetMetricsRecorder) Option {
	return func(f *FleetKB) { f.metrics = rec }
}

// NewFleetKB constructs an empty store.
func NewFleetKB(opts ...Option) *FleetKB {
	f := &FleetKB{
		users:      make(map[model.UserID]model.User),
		satellites: make(map[model.SatelliteID]model.Satellite),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// AddUser stores a user. Duplicate ids are rejected so a scenario cannot
// silently carry conflicting entries.
func (f *FleetKB) AddUser(u model.User) error {
	f.mu.Lock()
	if _, exists := f.users[u.ID]; exists {
		f.mu.Unlock()
		return fmt.Errorf("%w: %d", ErrUserExists, u.ID)
	}
	f.users[u.ID] = u
	users, sats := len(f.users), len(f.satellites)
	f.mu.Unlock()

	f.recordCounts(users, sats)
	return nil
}

// AddSatellite stores a satellite, rejecting duplicate ids.
func (f *FleetKB) AddSatellite(s model.Satellite) error {
	f.mu.Lock()
	if _, exists := f.satellites[s.ID]; exists {
		f.mu.Unlock()
		return fmt.Errorf("%w: %d", ErrSatelliteExists, s.ID)
	}
	f.satellites[s.ID] = s
	users, sats := len(f.users), len(f.satellites)
	f.mu.Unlock()

	f.recordCounts(users, sats)
	return nil
}

// GetUser returns the user with the given id.
func (f *FleetKB) GetUser(id model.UserID) (model.User, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	u, ok := f.users[id]
	if !ok {
		return model.User{}, fmt.Errorf("%w: %d", ErrUserNotFound, id)
	}
	return u, nil
}

// GetSatellite returns the satellite with the given id.
func (f *FleetKB) GetSatellite(id model.SatelliteID) (model.Satellite, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	s, ok := f.satellites[id]
	if !ok {
		return model.Satellite{}, fmt.Errorf("%w: %d", ErrSatelliteNotFound, id)
	}
	return s, nil
}

// Users returns a snapshot of all users sorted by id, the order the
// planner expects.
func (f *FleetKB) Users() []model.User {
	f.mu.RLock()
	out := make([]model.User, 0, len(f.users))
	for _, u := range f.users {
		out = append(out, u)
	}
	f.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Satellites returns a snapshot of all satellites sorted by id.
func (f *FleetKB) Satellites() []model.Satellite {
	f.mu.RLock()
	out := make([]model.Satellite, 0, len(f.satellites))
	for _, s := range f.satellites {
		out = append(out, s)
	}
	f.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// UserCount returns the number of stored users.
func (f *FleetKB) UserCount() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.users)
}

// SatelliteCount returns the number of stored satellites.
func (f *FleetKB) SatelliteCount() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.satellites)
}

// Clear empties the store so it can take the next scenario of a batch.
func (f *FleetKB) Clear() {
	f.mu.Lock()
	f.users = make(map[model.UserID]model.User)
	f.satellites = make(map[model.SatelliteID]model.Satellite)
	f.mu.Unlock()

	f.recordCounts(0, 0)
}

// recordCounts publishes fleet gauges outside the store lock.
func (f *FleetKB) recordCounts(users, sats int) {
	if f.metrics == nil {
		return
	}
	f.metrics.SetFleetCounts(users, sats)
}
