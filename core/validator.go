package core

import (
	"fmt"
	"sort"

	"github.com/signalsfoundry/beam-planner/model"
)

// ViolationKind classifies a constraint breach found by Validate.
type ViolationKind string

const (
	ViolationUnknownUser      ViolationKind = "unknown-user"
	ViolationUnknownSatellite ViolationKind = "unknown-satellite"
	ViolationDuplicateUser    ViolationKind = "duplicate-user"
	ViolationBadColor         ViolationKind = "bad-color"
	ViolationNotVisible       ViolationKind = "not-visible"
	ViolationCapacity         ViolationKind = "capacity"
	ViolationSeparation       ViolationKind = "separation"
)

// Violation is one independently recomputed constraint breach. Other is
// set only for separation violations, naming the second user of the
// offending pair.
type Violation struct {
	Kind      ViolationKind
	User      model.UserID
	Other     model.UserID
	Satellite model.SatelliteID
	Detail    string
}

func (v Violation) String() string {
	return fmt.Sprintf("%s: %s", v.Kind, v.Detail)
}

// Validate re-checks a finished assignment using nothing but the fleet
// positions and the assignment itself, so a bug in the solver's own
// bookkeeping cannot hide. It returns every breach of the profile's
// constraints in a stable order: per-beam checks in user order, then
// per-satellite checks in satellite order. An empty slice certifies the
// assignment. Pure and idempotent.
func Validate(users []model.User, sats []model.Satellite, asg model.Assignment, profile BeamProfile) []Violation {
	userPos := make(map[model.UserID]Vec3, len(users))
	for _, u := range users {
		userPos[u.ID] = vecOf(u.Position)
	}
	satPos := make(map[model.SatelliteID]Vec3, len(sats))
	for _, s := range sats {
		satPos[s.ID] = vecOf(s.Position)
	}

	var out []Violation

	// Per-beam checks, in assignment (user id) order.
	seen := make(map[model.UserID]bool, len(asg.Beams))
	perSat := make(map[model.SatelliteID][]model.Beam)
	for _, b := range asg.Beams {
		if seen[b.User] {
			out = append(out, Violation{
				Kind:   ViolationDuplicateUser,
				User:   b.User,
				Detail: fmt.Sprintf("user %d assigned more than once", b.User),
			})
			continue
		}
		seen[b.User] = true

		uPos, uOK := userPos[b.User]
		if !uOK {
			out = append(out, Violation{
				Kind:   ViolationUnknownUser,
				User:   b.User,
				Detail: fmt.Sprintf("user %d not in scenario", b.User),
			})
			continue
		}
		sPos, sOK := satPos[b.Satellite]
		if !sOK {
			out = append(out, Violation{
				Kind:      ViolationUnknownSatellite,
				User:      b.User,
				Satellite: b.Satellite,
				Detail:    fmt.Sprintf("satellite %d not in scenario", b.Satellite),
			})
			continue
		}
		if int(b.Color) >= profile.Colors {
			out = append(out, Violation{
				Kind:      ViolationBadColor,
				User:      b.User,
				Satellite: b.Satellite,
				Detail:    fmt.Sprintf("user %d color %s outside the %d-color profile", b.User, b.Color, profile.Colors),
			})
			continue
		}
		if angle, ok := ZenithAngleDeg(uPos, sPos); !ok || angle > profile.ConeDeg {
			out = append(out, Violation{
				Kind:      ViolationNotVisible,
				User:      b.User,
				Satellite: b.Satellite,
				Detail:    fmt.Sprintf("user %d sees satellite %d at %.3f° from vertical (limit %.1f°)", b.User, b.Satellite, angle, profile.ConeDeg),
			})
			continue
		}
		perSat[b.Satellite] = append(perSat[b.Satellite], b)
	}

	// Per-satellite checks, in satellite id order. Only beams that passed
	// the reference checks above participate, so a dangling id cannot
	// double-report here.
	satIDs := make([]model.SatelliteID, 0, len(perSat))
	for id := range perSat {
		satIDs = append(satIDs, id)
	}
	sort.Slice(satIDs, func(i, j int) bool { return satIDs[i] < satIDs[j] })

	for _, id := range satIDs {
		beams := perSat[id]
		if len(beams) > profile.MaxBeams {
			out = append(out, Violation{
				Kind:      ViolationCapacity,
				Satellite: id,
				Detail:    fmt.Sprintf("satellite %d carries %d beams (limit %d)", id, len(beams), profile.MaxBeams),
			})
		}

		dirs := make([]Vec3, len(beams))
		for i, b := range beams {
			// A degenerate direction would already be flagged as not
			// visible; the zero vector keeps the pair check fail-closed.
			dirs[i], _ = BeamDirection(satPos[id], userPos[b.User])
		}
		for i := 0; i < len(beams); i++ {
			for j := i + 1; j < len(beams); j++ {
				if beams[i].Color != beams[j].Color {
					continue
				}
				if sep := SeparationDeg(dirs[i], dirs[j]); sep <= profile.MinSeparationDeg {
					out = append(out, Violation{
						Kind:      ViolationSeparation,
						User:      beams[i].User,
						Other:     beams[j].User,
						Satellite: id,
						Detail:    fmt.Sprintf("users %d and %d share color %s on satellite %d at %.3f° (needs > %.1f°)", beams[i].User, beams[j].User, beams[i].Color, id, sep, profile.MinSeparationDeg),
					})
				}
			}
		}
	}
	return out
}
