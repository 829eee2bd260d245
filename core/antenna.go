package core

import (
	"errors"
	"fmt"

	"github.com/signalsfoundry/beam-planner/model"
)

// ErrInvalidProfile reports a beam profile whose limits cannot describe a
// real antenna.
var ErrInvalidProfile = errors.New("invalid beam profile")

// Canonical constraint values for the current constellation hardware.
const (
	DefaultMaxBeams         = 32
	DefaultConeDeg          = 45.0
	DefaultMinSeparationDeg = 10.0
)

// BeamProfile describes the per-satellite beam constraints the planner
// enforces: slot capacity, the color alphabet, the user-side visibility
// cone, and the same-color angular separation floor.
type BeamProfile struct {
	// MaxBeams is the number of concurrent beams one satellite can carry.
	MaxBeams int `json:"MaxBeams"`

	// Colors is the number of frequency colors available to each beam.
	// Beams on one satellite sharing a color must be separated by more
	// than MinSeparationDeg.
	Colors int `json:"Colors"`

	// ConeDeg is the half-angle of the visibility cone around a user's
	// local vertical. A satellite at exactly this angle is visible.
	ConeDeg float64 `json:"ConeDeg"`

	// MinSeparationDeg is the same-color interference floor measured at
	// the satellite between beam directions. A separation at exactly
	// this value still conflicts; placement requires strictly more.
	MinSeparationDeg float64 `json:"MinSeparationDeg"`
}

// DefaultBeamProfile returns the canonical 32-beam, 4-color profile.
func DefaultBeamProfile() BeamProfile {
	return BeamProfile{
		MaxBeams:         DefaultMaxBeams,
		Colors:           model.NumColors,
		ConeDeg:          DefaultConeDeg,
		MinSeparationDeg: DefaultMinSeparationDeg,
	}
}

// Validate rejects profiles the engine cannot plan against.
func (p BeamProfile) Validate() error {
	if p.MaxBeams <= 0 {
		return fmt.Errorf("%w: MaxBeams %d", ErrInvalidProfile, p.MaxBeams)
	}
	if p.Colors <= 0 || p.Colors > model.NumColors {
		return fmt.Errorf("%w: Colors %d (1..%d)", ErrInvalidProfile, p.Colors, model.NumColors)
	}
	if p.ConeDeg <= 0 || p.ConeDeg > 90 {
		return fmt.Errorf("%w: ConeDeg %v", ErrInvalidProfile, p.ConeDeg)
	}
	if p.MinSeparationDeg < 0 || p.MinSeparationDeg >= 180 {
		return fmt.Errorf("%w: MinSeparationDeg %v", ErrInvalidProfile, p.MinSeparationDeg)
	}
	return nil
}
