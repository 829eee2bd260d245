package core

import (
	"context"
	"errors"
	"math"
	"runtime"

	"github.com/puzpuzpuz/xsync/v4"
	"golang.org/x/sync/errgroup"

	"github.com/signalsfoundry/beam-planner/model"
	"github.com/signalsfoundry/beam-planner/timectrl"
)

// ErrBudgetExhausted reports that the wall-clock budget ran out while
// candidate lists were still being built.
var ErrBudgetExhausted = errors.New("solve budget exhausted")

// Default index tuning. Cells are sized well under the visibility cone so
// dense LEO shells prune hard; below the threshold the exhaustive scan
// takes over since grid upkeep costs more than it saves.
const (
	DefaultCellDeg             = 12.0
	DefaultExhaustiveThreshold = 48
)

// capSlackDeg pads every reach cap so floating-point drift at a cell edge
// can never drop a genuinely visible satellite.
const capSlackDeg = 0.25

// IndexOptions tunes candidate generation. Zero values select defaults.
type IndexOptions struct {
	// CellDeg is the angular size of one grid cell.
	CellDeg float64
	// ExhaustiveThreshold is the satellite count below which the grid is
	// skipped in favor of a full scan.
	ExhaustiveThreshold int
	// Workers bounds the parallel fan-out of per-user queries.
	Workers int
	// Budget, when set, is checked between work chunks; an exhausted
	// budget abandons the build with ErrBudgetExhausted.
	Budget *timectrl.Budget
}

func (o IndexOptions) withDefaults() IndexOptions {
	if o.CellDeg <= 0 {
		o.CellDeg = DefaultCellDeg
	}
	if o.ExhaustiveThreshold <= 0 {
		o.ExhaustiveThreshold = DefaultExhaustiveThreshold
	}
	if o.Workers <= 0 {
		o.Workers = runtime.NumCPU()
	}
	return o
}

// CandidateStats summarizes how much scanning the index saved.
type CandidateStats struct {
	TestedPairs int64 // exact visibility tests performed
	PrunedPairs int64 // pairs skipped by the grid
	Exhaustive  bool  // fleet was below the index threshold
}

// PruneRatio returns the fraction of the full user x satellite product
// that never reached the exact test.
func (s CandidateStats) PruneRatio() float64 {
	total := s.TestedPairs + s.PrunedPairs
	if total == 0 {
		return 0
	}
	return float64(s.PrunedPairs) / float64(total)
}

// CandidateSet holds, per user, the satellites passing the visibility
// test. Indices are dense: users[i] of the build call maps to PerUser[i],
// and the values are positions in the build call's satellite slice, in
// ascending order. Read-only after construction.
type CandidateSet struct {
	PerUser [][]int32
	Stats   CandidateStats
}

// BuildCandidates computes every user's visible-satellite list. The grid
// only ever prunes provably invisible satellites; each surviving pair is
// confirmed with the exact geometric test, so the result is identical to
// an exhaustive scan. Queries run in parallel across users; a context
// cancellation abandons the build and returns the context error.
func BuildCandidates(ctx context.Context, users []model.User, sats []model.Satellite, profile BeamProfile, opts IndexOptions) (*CandidateSet, error) {
	opts = opts.withDefaults()

	set := &CandidateSet{PerUser: make([][]int32, len(users))}
	if len(users) == 0 {
		return set, nil
	}

	var grid *dirGrid
	if len(sats) >= opts.ExhaustiveThreshold {
		grid = buildDirGrid(users, sats, profile.ConeDeg, opts.CellDeg)
	} else {
		set.Stats.Exhaustive = true
	}

	tested := xsync.NewCounter()
	pruned := xsync.NewCounter()

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Workers)

	const chunk = 256
	for start := 0; start < len(users); start += chunk {
		end := start + chunk
		if end > len(users) {
			end = len(users)
		}
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if opts.Budget.Exhausted() {
				return ErrBudgetExhausted
			}
			var chunkTested, chunkPruned int64
			for i := start; i < end; i++ {
				userVec := vecOf(users[i].Position)
				var list []int32
				if grid != nil {
					shortlist := grid.shortlist(userVec)
					chunkTested += int64(len(shortlist))
					chunkPruned += int64(len(sats) - len(shortlist))
					for _, si := range shortlist {
						if WithinCone(userVec, vecOf(sats[si].Position), profile.ConeDeg) {
							list = append(list, si)
						}
					}
				} else {
					chunkTested += int64(len(sats))
					for si := range sats {
						if WithinCone(userVec, vecOf(sats[si].Position), profile.ConeDeg) {
							list = append(list, int32(si))
						}
					}
				}
				set.PerUser[i] = list
			}
			tested.Add(chunkTested)
			pruned.Add(chunkPruned)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	set.Stats.TestedPairs = tested.Value()
	set.Stats.PrunedPairs = pruned.Value()
	return set, nil
}

// ---------- direction grid ----------

// dirGrid partitions unit directions into latitude bands split into
// longitude columns. Each cell lists the satellites whose reach cap
// intersects it, so a user's cell shortlist is always a superset of the
// user's truly visible satellites.
type dirGrid struct {
	cellDeg float64
	rows    int
	cols    int
	cells   [][]int32
}

func buildDirGrid(users []model.User, sats []model.Satellite, coneDeg, cellDeg float64) *dirGrid {
	g := &dirGrid{
		cellDeg: cellDeg,
		rows:    int(math.Ceil(180.0 / cellDeg)),
		cols:    int(math.Ceil(360.0 / cellDeg)),
	}
	g.cells = make([][]int32, g.rows*g.cols)

	// Cell centers and circumradii are reused for every satellite sweep.
	centers := make([]Vec3, len(g.cells))
	radii := make([]float64, len(g.cells))
	for row := 0; row < g.rows; row++ {
		for col := 0; col < g.cols; col++ {
			centers[row*g.cols+col], radii[row*g.cols+col] = g.cellBound(row, col)
		}
	}

	minUserRadius := math.Inf(1)
	for _, u := range users {
		if r := vecOf(u.Position).Norm(); r >= degenerateNorm && r < minUserRadius {
			minUserRadius = r
		}
	}

	for si := range sats {
		satVec := vecOf(sats[si].Position)
		dir, ok := satVec.Unit()
		if !ok {
			// A satellite at the origin is below every user's horizon;
			// the exact test can never accept it.
			continue
		}
		capDeg := reachCapDeg(satVec.Norm(), minUserRadius, coneDeg) + capSlackDeg
		for ci := range g.cells {
			if SeparationDeg(centers[ci], dir) <= capDeg+radii[ci] {
				g.cells[ci] = append(g.cells[ci], int32(si))
			}
		}
	}
	return g
}

// cellBound returns the cell's center direction and the largest angular
// distance from that center to any point of the cell. Latitude/longitude
// boxes under 90° attain that maximum at a corner.
func (g *dirGrid) cellBound(row, col int) (Vec3, float64) {
	latLo := -90.0 + float64(row)*g.cellDeg
	latHi := math.Min(latLo+g.cellDeg, 90.0)
	lonLo := -180.0 + float64(col)*g.cellDeg
	lonHi := math.Min(lonLo+g.cellDeg, 180.0)

	center := unitFromLatLon((latLo+latHi)/2, (lonLo+lonHi)/2)
	radius := 0.0
	for _, lat := range []float64{latLo, latHi} {
		for _, lon := range []float64{lonLo, lonHi} {
			if d := SeparationDeg(center, unitFromLatLon(lat, lon)); d > radius {
				radius = d
			}
		}
	}
	return center, radius
}

// shortlist returns the satellites indexed under the cell containing the
// direction of pos. Degenerate positions shortlist nothing; the exact
// test fails closed for them anyway.
func (g *dirGrid) shortlist(pos Vec3) []int32 {
	dir, ok := pos.Unit()
	if !ok {
		return nil
	}
	lat := math.Asin(math.Max(-1, math.Min(1, dir.Z))) * 180.0 / math.Pi
	lon := math.Atan2(dir.Y, dir.X) * 180.0 / math.Pi

	row := int((lat + 90.0) / g.cellDeg)
	if row >= g.rows {
		row = g.rows - 1
	}
	col := int((lon + 180.0) / g.cellDeg)
	if col >= g.cols {
		col = g.cols - 1
	}
	return g.cells[row*g.cols+col]
}

// reachCapDeg bounds the central angle between a satellite and any user
// able to see it. The triangle bound applies when the satellite orbits
// above the lowest user; otherwise the cone half-angle itself is the safe
// bound, since a visible satellite's central angle never exceeds it.
func reachCapDeg(satRadius, minUserRadius, coneDeg float64) float64 {
	if minUserRadius <= 0 || math.IsInf(minUserRadius, 1) || satRadius <= minUserRadius {
		return coneDeg
	}
	sinCone := math.Sin(coneDeg * math.Pi / 180.0)
	return coneDeg - math.Asin(minUserRadius*sinCone/satRadius)*180.0/math.Pi
}

func unitFromLatLon(latDeg, lonDeg float64) Vec3 {
	lat := latDeg * math.Pi / 180.0
	lon := lonDeg * math.Pi / 180.0
	return Vec3{
		X: math.Cos(lat) * math.Cos(lon),
		Y: math.Cos(lat) * math.Sin(lon),
		Z: math.Sin(lat),
	}
}
