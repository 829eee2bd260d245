// Package orbit derives satellite positions for scenario generation:
// SGP4 snapshots of real TLE sets and synthetic Walker-delta shells. The
// planner itself never moves a satellite; these helpers exist so the
// generator can lay out realistic fleets.
package orbit

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	satellite "github.com/joshuaferrara/go-satellite"

	"github.com/signalsfoundry/beam-planner/core"
	"github.com/signalsfoundry/beam-planner/model"
)

// ErrBadTLE reports an unreadable two-line element set.
var ErrBadTLE = errors.New("bad TLE")

// TLE is one two-line element set plus the optional name line above it.
type TLE struct {
	Name  string
	Line1 string
	Line2 string
}

// ParseTLEs reads a TLE file: repeated groups of an optional name line
// followed by the "1 ..." and "2 ..." element lines.
func ParseTLEs(r io.Reader) ([]TLE, error) {
	var out []TLE
	var cur TLE

	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		switch {
		case strings.HasPrefix(line, "1 "):
			cur.Line1 = line
		case strings.HasPrefix(line, "2 "):
			if cur.Line1 == "" {
				return nil, fmt.Errorf("%w: element line 2 before line 1", ErrBadTLE)
			}
			cur.Line2 = line
			out = append(out, cur)
			cur = TLE{}
		default:
			cur.Name = line
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("ParseTLEs: %w", err)
	}
	if cur.Line1 != "" {
		return nil, fmt.Errorf("%w: dangling element line 1", ErrBadTLE)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: no element sets", ErrBadTLE)
	}
	return out, nil
}

// SnapshotTLEs propagates each element set to the instant at and returns
// ECEF satellites in kilometres, ids assigned in input order starting at
// firstID. go-satellite already works in kilometres, the engine's unit.
func SnapshotTLEs(tles []TLE, at time.Time, firstID model.SatelliteID) []model.Satellite {
	year, month, day := at.Date()
	hour, min, sec := at.Clock()
	jd := satellite.JDay(year, int(month), day, hour, min, sec)
	gmst := satellite.ThetaG_JD(jd)

	out := make([]model.Satellite, 0, len(tles))
	for i, t := range tles {
		sat := satellite.TLEToSat(t.Line1, t.Line2, satellite.GravityWGS72)
		posECI, _ := satellite.Propagate(sat, year, int(month), day, hour, min, sec)
		posECEF := satellite.ECIToECEF(posECI, gmst)
		out = append(out, model.Satellite{
			ID:       firstID + model.SatelliteID(i),
			Name:     t.Name,
			Position: model.Coordinates{X: posECEF.X, Y: posECEF.Y, Z: posECEF.Z},
		})
	}
	return out
}

// WalkerConfig describes a synthetic Walker-delta shell.
type WalkerConfig struct {
	// Planes is the number of orbital planes, ascending nodes spread
	// evenly over 360°.
	Planes int
	// PerPlane is the number of satellites in each plane.
	PerPlane int
	// InclinationDeg tilts every plane against the equator.
	InclinationDeg float64
	// AltitudeKm is the circular-orbit altitude above the mean radius.
	AltitudeKm float64
	// PhasingSteps is the Walker F parameter: the in-plane offset between
	// adjacent planes in units of 360°/total.
	PhasingSteps int
	// FirstID numbers the shell's satellites sequentially from here.
	FirstID model.SatelliteID
}

// Walker lays out the shell at epoch and returns ECEF positions in
// kilometres. Circular orbits, argument of perigee folded into the
// argument of latitude.
func Walker(cfg WalkerConfig) []model.Satellite {
	total := cfg.Planes * cfg.PerPlane
	if cfg.Planes <= 0 || cfg.PerPlane <= 0 {
		return nil
	}

	radius := core.EarthRadiusKm + cfg.AltitudeKm
	inc := cfg.InclinationDeg * math.Pi / 180.0

	out := make([]model.Satellite, 0, total)
	id := cfg.FirstID
	for p := 0; p < cfg.Planes; p++ {
		raan := 2 * math.Pi * float64(p) / float64(cfg.Planes)
		for k := 0; k < cfg.PerPlane; k++ {
			u := 2 * math.Pi * (float64(k)/float64(cfg.PerPlane) + float64(cfg.PhasingSteps)*float64(p)/float64(total))
			out = append(out, model.Satellite{
				ID: id,
				Position: model.Coordinates{
					X: radius * (math.Cos(u)*math.Cos(raan) - math.Sin(u)*math.Cos(inc)*math.Sin(raan)),
					Y: radius * (math.Cos(u)*math.Sin(raan) + math.Sin(u)*math.Cos(inc)*math.Cos(raan)),
					Z: radius * math.Sin(u) * math.Sin(inc),
				},
			})
			id++
		}
	}
	return out
}
