package core

import (
	"context"
	"sort"

	"github.com/signalsfoundry/beam-planner/model"
	"github.com/signalsfoundry/beam-planner/timectrl"
)

// solver carries the dense per-run state shared by the greedy and
// improvement phases. Users and satellites are addressed by their rank in
// the ID-sorted fleet, so dense order and ID order tie-break identically.
type solver struct {
	profile BeamProfile

	userVec []Vec3
	satVec  []Vec3
	cand    [][]int32
	table   *BeamTable

	assignedSat   []int32 // -1 = unserved
	assignedColor []model.Color
	served        int
	swaps         int
	sweeps        int
	deadlineHit   bool

	ctx    context.Context
	budget *timectrl.Budget

	onSweep func(served int)

	candBuf  []int32
	orderBuf []int32
}

func newSolver(ctx context.Context, users []model.User, sats []model.Satellite, cand *CandidateSet, profile BeamProfile, budget *timectrl.Budget) *solver {
	s := &solver{
		profile:       profile,
		userVec:       make([]Vec3, len(users)),
		satVec:        make([]Vec3, len(sats)),
		cand:          cand.PerUser,
		table:         NewBeamTable(len(sats), profile),
		assignedSat:   make([]int32, len(users)),
		assignedColor: make([]model.Color, len(users)),
		ctx:           ctx,
		budget:        budget,
	}
	for i := range users {
		s.userVec[i] = vecOf(users[i].Position)
		s.assignedSat[i] = -1
	}
	for i := range sats {
		s.satVec[i] = vecOf(sats[i].Position)
	}
	return s
}

// expired reports whether the run must stop: wall-clock budget spent or
// the caller's context cancelled. Checked once per user so the solver
// returns promptly no matter how large the sweep.
func (s *solver) expired() bool {
	if s.budget.Exhausted() {
		return true
	}
	return s.ctx.Err() != nil
}

func (s *solver) dirTo(user, sat int32) (Vec3, bool) {
	return BeamDirection(s.satVec[sat], s.userVec[user])
}

// constrainedOrder returns the given users sorted most-constrained first:
// fewest candidate satellites, then lowest id. Users with no candidates
// are dropped; nothing can serve them.
func (s *solver) constrainedOrder(users []int32) []int32 {
	out := s.orderBuf[:0]
	for _, u := range users {
		if len(s.cand[u]) > 0 {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		ci, cj := len(s.cand[out[i]]), len(s.cand[out[j]])
		if ci != cj {
			return ci < cj
		}
		return out[i] < out[j]
	})
	s.orderBuf = out
	return out
}

// orderedCandidates returns the user's candidate satellites preferring
// the least-loaded, then the lowest id, the spread-load ordering both
// phases use.
func (s *solver) orderedCandidates(u int32) []int32 {
	out := append(s.candBuf[:0], s.cand[u]...)
	sort.Slice(out, func(i, j int) bool {
		li, lj := s.table.SlotCount(out[i]), s.table.SlotCount(out[j])
		if li != lj {
			return li < lj
		}
		return out[i] < out[j]
	})
	s.candBuf = out
	return out
}

// tryPlace serves an unserved user at the first feasible (satellite,
// color) in the deterministic ordering. Colors are tried lowest first.
func (s *solver) tryPlace(u int32) bool {
	for _, si := range s.orderedCandidates(u) {
		dir, ok := s.dirTo(u, si)
		if !ok {
			continue
		}
		for c := 0; c < s.profile.Colors; c++ {
			if s.table.Place(si, u, dir, model.Color(c)) {
				s.assignedSat[u] = si
				s.assignedColor[u] = model.Color(c)
				s.served++
				return true
			}
		}
	}
	return false
}

// greedy is phase one: place users most-constrained first. Users that do
// not fit are left unserved for the improvement phase.
func (s *solver) greedy() {
	all := make([]int32, len(s.cand))
	for i := range all {
		all[i] = int32(i)
	}
	for _, u := range s.constrainedOrder(all) {
		if s.expired() {
			s.deadlineHit = true
			return
		}
		s.tryPlace(u)
	}
}

// improve is phase two: sweep the still-unserved users retrying direct
// placement and single-relocation swaps until a sweep makes no progress
// or the budget runs out. The served count never decreases.
func (s *solver) improve() {
	for {
		if s.expired() {
			s.deadlineHit = true
			return
		}
		unserved := make([]int32, 0)
		for u := range s.assignedSat {
			if s.assignedSat[u] < 0 {
				unserved = append(unserved, int32(u))
			}
		}
		if len(unserved) == 0 {
			return
		}

		improved := false
		order := append([]int32(nil), s.constrainedOrder(unserved)...)
		for _, u := range order {
			if s.expired() {
				s.deadlineHit = true
				return
			}
			if s.tryPlace(u) || s.trySwap(u) {
				improved = true
			}
		}
		s.sweeps++
		if s.onSweep != nil {
			s.onSweep(s.served)
		}
		if !improved {
			return
		}
	}
}

// trySwap frees a spot for unserved user u by relocating a single
// blocking beam. For each candidate satellite and color blocked by
// exactly one same-color beam, that blocker is lifted, u takes the slot,
// and the blocker is re-homed at any other feasible placement. The move
// commits only when the blocker lands somewhere, so the served count
// goes up by one or the table is rolled back untouched.
func (s *solver) trySwap(u int32) bool {
	// relocate reuses the shared candidate buffer, so this walk needs its
	// own copy of the ordering.
	cands := append([]int32(nil), s.orderedCandidates(u)...)
	for _, si := range cands {
		dirU, ok := s.dirTo(u, si)
		if !ok {
			continue
		}
		for c := 0; c < s.profile.Colors; c++ {
			color := model.Color(c)
			count, blocker := s.table.SameColorConflicts(si, dirU, color)
			if count != 1 {
				continue
			}
			dirW, ok := s.dirTo(blocker, si)
			if !ok {
				continue
			}
			if !s.table.Remove(si, blocker) {
				continue
			}
			if !s.table.Place(si, u, dirU, color) {
				// Still blocked, e.g. the satellite is at capacity with
				// other colors. Put the blocker back and move on.
				s.table.Place(si, blocker, dirW, color)
				continue
			}
			if s.relocate(blocker) {
				s.assignedSat[u] = si
				s.assignedColor[u] = color
				s.served++
				s.swaps++
				return true
			}
			s.table.Remove(si, u)
			s.table.Place(si, blocker, dirW, color)
		}
	}
	return false
}

// relocate re-homes an already-served user whose slot was lifted by a
// swap attempt. The user's old slot now holds the newcomer's conflicting
// beam, so the table itself rules the old placement out.
func (s *solver) relocate(w int32) bool {
	for _, sj := range s.orderedCandidates(w) {
		dir, ok := s.dirTo(w, sj)
		if !ok {
			continue
		}
		for c := 0; c < s.profile.Colors; c++ {
			if s.table.Place(sj, w, dir, model.Color(c)) {
				s.assignedSat[w] = sj
				s.assignedColor[w] = model.Color(c)
				return true
			}
		}
	}
	return false
}

// assignment assembles the final beams in user-id order from the fleet
// slices the planner sorted up front.
func (s *solver) assignment(users []model.User, sats []model.Satellite) model.Assignment {
	beams := make([]model.Beam, 0, s.served)
	for u := range s.assignedSat {
		si := s.assignedSat[u]
		if si < 0 {
			continue
		}
		beams = append(beams, model.Beam{
			User:      users[u].ID,
			Satellite: sats[si].ID,
			Color:     s.assignedColor[u],
		})
	}
	return model.Assignment{Beams: beams}
}
