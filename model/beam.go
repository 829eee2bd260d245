package model

import (
	"errors"
	"fmt"
	"sort"
)

// ErrBadColor reports a color letter outside the A-D alphabet.
var ErrBadColor = errors.New("color out of range")

// Color is one of the four frequency colors a beam can use. Two beams on
// the same satellite may share a color only if their directions are
// separated by more than the interference threshold.
type Color uint8

const (
	ColorA Color = iota
	ColorB
	ColorC
	ColorD

	// NumColors is the size of the color alphabet.
	NumColors = 4
)

// String renders the color as the letter used in solution files.
func (c Color) String() string {
	return string(rune('A' + c))
}

// ParseColor maps a solution-file letter back to a Color.
func ParseColor(s string) (Color, error) {
	if len(s) != 1 || s[0] < 'A' || s[0] >= 'A'+NumColors {
		return 0, fmt.Errorf("%w: %q", ErrBadColor, s)
	}
	return Color(s[0] - 'A'), nil
}

// Beam is one activated link: a satellite serving a user on a color.
type Beam struct {
	User      UserID
	Satellite SatelliteID
	Color     Color
}

// Assignment is the outcome of a planning run. Each user appears at most
// once; beams are kept sorted by user id so output and comparisons are
// stable.
type Assignment struct {
	Beams []Beam
}

// Sort orders the beams by user id. Assignments built by the planner are
// already ordered; loaders call this after parsing.
func (a *Assignment) Sort() {
	sort.Slice(a.Beams, func(i, j int) bool {
		return a.Beams[i].User < a.Beams[j].User
	})
}

// Served returns the number of users holding a beam.
func (a Assignment) Served() int {
	return len(a.Beams)
}

// Coverage returns the served fraction out of totalUsers. Vacuously 1
// when the scenario has no users.
func (a Assignment) Coverage(totalUsers int) float64 {
	if totalUsers <= 0 {
		return 1
	}
	return float64(len(a.Beams)) / float64(totalUsers)
}

// ByUser returns a lookup from user id to that user's beam.
func (a Assignment) ByUser() map[UserID]Beam {
	out := make(map[UserID]Beam, len(a.Beams))
	for _, b := range a.Beams {
		out[b.User] = b
	}
	return out
}
