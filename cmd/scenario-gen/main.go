// Command scenario-gen produces scenario files for the beam planner:
// users scattered uniformly over the Earth's surface plus a satellite
// shell, either a synthetic Walker constellation or a snapshot of real
// TLEs.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"math"
	"math/rand"
	"os"
	"time"

	"github.com/signalsfoundry/beam-planner/core"
	"github.com/signalsfoundry/beam-planner/model"
	"github.com/signalsfoundry/beam-planner/orbit"
)

func main() {
	users := flag.Int("users", 1000, "number of ground users to generate")
	sats := flag.Int("sats", 64, "total number of satellites (Walker mode)")
	seed := flag.Int64("seed", 1, "RNG seed for user placement")
	minCoverage := flag.Float64("min-coverage", 0, "min_coverage directive to emit (0 omits it)")
	out := flag.String("out", "", "output file (empty writes to stdout)")
	altitudeKm := flag.Float64("altitude-km", 550, "Walker shell altitude above the mean Earth radius")
	planes := flag.Int("planes", 8, "number of Walker orbital planes")
	inclinationDeg := flag.Float64("inclination-deg", 53, "Walker plane inclination")
	tlePath := flag.String("tle", "", "TLE file to snapshot instead of a Walker shell")
	at := flag.String("at", "", "RFC3339 epoch for the TLE snapshot (default: now)")
	flag.Parse()

	if *users <= 0 {
		fatalf("-users must be positive, got %d", *users)
	}

	var fleet []model.Satellite
	var source string
	if *tlePath != "" {
		epoch := time.Now().UTC()
		if *at != "" {
			parsed, err := time.Parse(time.RFC3339, *at)
			if err != nil {
				fatalf("bad -at value %q: %v", *at, err)
			}
			epoch = parsed.UTC()
		}

		f, err := os.Open(*tlePath)
		if err != nil {
			fatalf("open TLE file: %v", err)
		}
		tles, err := orbit.ParseTLEs(f)
		f.Close()
		if err != nil {
			fatalf("parse TLE file %s: %v", *tlePath, err)
		}
		fleet = orbit.SnapshotTLEs(tles, epoch, 1)
		source = fmt.Sprintf("TLE snapshot of %s at %s", *tlePath, epoch.Format(time.RFC3339))
	} else {
		if *planes <= 0 || *sats <= 0 || *sats%*planes != 0 {
			fatalf("-sats (%d) must be a positive multiple of -planes (%d)", *sats, *planes)
		}
		fleet = orbit.Walker(orbit.WalkerConfig{
			Planes:         *planes,
			PerPlane:       *sats / *planes,
			InclinationDeg: *inclinationDeg,
			AltitudeKm:     *altitudeKm,
			PhasingSteps:   1,
			FirstID:        1,
		})
		source = fmt.Sprintf("Walker %d/%d/1 shell at %.0f km, %.1f°",
			*sats, *planes, *altitudeKm, *inclinationDeg)
	}

	w := io.Writer(os.Stdout)
	if *out != "" {
		f, err := os.Create(*out)
		if err != nil {
			fatalf("create output file: %v", err)
		}
		defer f.Close()
		w = f
	}

	if err := writeScenario(w, *users, *seed, *minCoverage, fleet, source); err != nil {
		fatalf("write scenario: %v", err)
	}
}

func writeScenario(w io.Writer, users int, seed int64, minCoverage float64, fleet []model.Satellite, source string) error {
	bw := bufio.NewWriter(w)

	fmt.Fprintf(bw, "# %d users (seed %d), %d satellites\n", users, seed, len(fleet))
	fmt.Fprintf(bw, "# satellites: %s\n", source)

	rng := rand.New(rand.NewSource(seed))
	for i := 0; i < users; i++ {
		pos := surfacePoint(rng)
		fmt.Fprintf(bw, "user %d %.3f %.3f %.3f\n", i+1, pos.X, pos.Y, pos.Z)
	}
	for _, sat := range fleet {
		fmt.Fprintf(bw, "sat %d %.3f %.3f %.3f\n", sat.ID, sat.Position.X, sat.Position.Y, sat.Position.Z)
	}
	if minCoverage > 0 {
		fmt.Fprintf(bw, "min_coverage %g\n", minCoverage)
	}

	return bw.Flush()
}

// surfacePoint draws a uniformly distributed point on the mean-radius
// sphere.
func surfacePoint(rng *rand.Rand) model.Coordinates {
	z := 2*rng.Float64() - 1
	theta := 2 * math.Pi * rng.Float64()
	r := math.Sqrt(1 - z*z)
	return model.Coordinates{
		X: core.EarthRadiusKm * r * math.Cos(theta),
		Y: core.EarthRadiusKm * r * math.Sin(theta),
		Z: core.EarthRadiusKm * z,
	}
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "scenario-gen: "+format+"\n", args...)
	os.Exit(1)
}
