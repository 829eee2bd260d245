package core

import "github.com/signalsfoundry/beam-planner/model"

// beamSlot is one filled slot on a satellite: the served user, the beam
// color, and the unit direction from the satellite to that user.
type beamSlot struct {
	user  int32
	color model.Color
	dir   Vec3
}

// BeamTable tracks filled beam slots per satellite and is the
// authoritative checker for the two placement constraints: slot capacity
// and same-color angular separation. Users and satellites are addressed
// by dense index (their position in the sorted fleet), which keeps the
// hot path free of map lookups.
//
// A BeamTable belongs to a single solve run and is not safe for
// concurrent use; the solver serializes every Place and Remove.
type BeamTable struct {
	profile BeamProfile
	slots   [][]beamSlot
}

// NewBeamTable returns an empty table for numSats satellites.
func NewBeamTable(numSats int, profile BeamProfile) *BeamTable {
	return &BeamTable{
		profile: profile,
		slots:   make([][]beamSlot, numSats),
	}
}

// SlotCount returns the number of filled slots on the satellite.
func (t *BeamTable) SlotCount(sat int32) int {
	return len(t.slots[sat])
}

// TotalBeams returns the number of filled slots across all satellites.
func (t *BeamTable) TotalBeams() int {
	total := 0
	for _, filled := range t.slots {
		total += len(filled)
	}
	return total
}

// CanPlace reports whether a beam toward dir on color fits on the
// satellite: fewer than MaxBeams filled slots and no same-color slot
// within MinSeparationDeg of dir. The separation boundary itself
// conflicts; placement requires strictly more than the floor.
func (t *BeamTable) CanPlace(sat int32, dir Vec3, color model.Color) bool {
	filled := t.slots[sat]
	if len(filled) >= t.profile.MaxBeams {
		return false
	}
	for _, s := range filled {
		if s.color != color {
			continue
		}
		if SeparationDeg(s.dir, dir) <= t.profile.MinSeparationDeg {
			return false
		}
	}
	return true
}

// SameColorConflicts counts the filled slots on the satellite sharing
// color within the separation floor of dir. blocker is the served user of
// one such slot; the swap search uses it when the count is exactly 1.
func (t *BeamTable) SameColorConflicts(sat int32, dir Vec3, color model.Color) (count int, blocker int32) {
	blocker = -1
	for _, s := range t.slots[sat] {
		if s.color != color {
			continue
		}
		if SeparationDeg(s.dir, dir) <= t.profile.MinSeparationDeg {
			count++
			blocker = s.user
		}
	}
	return count, blocker
}

// Place fills a slot for user toward dir on color. Constraints are
// checked before anything is written, so a false return leaves the table
// exactly as it was.
func (t *BeamTable) Place(sat, user int32, dir Vec3, color model.Color) bool {
	if !t.CanPlace(sat, dir, color) {
		return false
	}
	if t.slots[sat] == nil {
		t.slots[sat] = make([]beamSlot, 0, t.profile.MaxBeams)
	}
	t.slots[sat] = append(t.slots[sat], beamSlot{user: user, color: color, dir: dir})
	return true
}

// Remove retracts the user's slot on the satellite, restoring capacity
// and freeing the color at that direction. Returns false when the user
// holds no slot there.
func (t *BeamTable) Remove(sat, user int32) bool {
	filled := t.slots[sat]
	for i, s := range filled {
		if s.user == user {
			filled[i] = filled[len(filled)-1]
			t.slots[sat] = filled[:len(filled)-1]
			return true
		}
	}
	return false
}
