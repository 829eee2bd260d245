package model

// UserID identifies a ground terminal within one scenario.
type UserID int32

// SatelliteID identifies a satellite within one scenario.
type SatelliteID int32

// Coordinates represents an ECEF position in kilometres.
type Coordinates struct {
	X float64
	Y float64
	Z float64
}

// User is a ground terminal requesting a single beam. Its local vertical
// is the direction from Earth's center through Position.
type User struct {
	ID       UserID
	Position Coordinates
}

// Satellite is an orbiting asset capable of serving users within its
// visibility footprint. Beam-slot occupancy is tracked by the planning
// engine, not here; a Satellite is immutable once loaded.
type Satellite struct {
	ID       SatelliteID
	Name     string // optional; set when derived from a TLE
	Position Coordinates
}
