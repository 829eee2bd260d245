package main

import (
	"bytes"
	"math"
	"math/rand"
	"testing"

	"github.com/signalsfoundry/beam-planner/core"
	"github.com/signalsfoundry/beam-planner/kb"
	"github.com/signalsfoundry/beam-planner/orbit"
)

// The generator's output must be accepted verbatim by the scenario
// loader, with every count and directive surviving the trip.
func TestWriteScenarioFeedsLoader(t *testing.T) {
	fleet := orbit.Walker(orbit.WalkerConfig{
		Planes:         2,
		PerPlane:       3,
		InclinationDeg: 53,
		AltitudeKm:     550,
		PhasingSteps:   1,
		FirstID:        1,
	})

	var buf bytes.Buffer
	if err := writeScenario(&buf, 25, 7, 0.85, fleet, "test shell"); err != nil {
		t.Fatalf("writeScenario: %v", err)
	}

	fkb := kb.NewFleetKB()
	info, err := kb.LoadScenario(fkb, bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("LoadScenario rejected generated output: %v", err)
	}
	if info.Users != 25 || info.Satellites != len(fleet) {
		t.Fatalf("loaded %d users and %d satellites, want 25 and %d", info.Users, info.Satellites, len(fleet))
	}
	if info.MinCoverage != 0.85 {
		t.Fatalf("min coverage %g, want 0.85", info.MinCoverage)
	}
}

func TestWriteScenarioDeterministicForSeed(t *testing.T) {
	fleet := orbit.Walker(orbit.WalkerConfig{
		Planes:         1,
		PerPlane:       4,
		InclinationDeg: 0,
		AltitudeKm:     550,
		PhasingSteps:   1,
		FirstID:        1,
	})

	var a, b bytes.Buffer
	if err := writeScenario(&a, 10, 42, 0, fleet, "shell"); err != nil {
		t.Fatalf("first writeScenario: %v", err)
	}
	if err := writeScenario(&b, 10, 42, 0, fleet, "shell"); err != nil {
		t.Fatalf("second writeScenario: %v", err)
	}
	if !bytes.Equal(a.Bytes(), b.Bytes()) {
		t.Fatal("same seed produced different scenario files")
	}
}

func TestSurfacePointStaysOnSphere(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 1000; i++ {
		p := surfacePoint(rng)
		r := math.Sqrt(p.X*p.X + p.Y*p.Y + p.Z*p.Z)
		if math.Abs(r-core.EarthRadiusKm) > 1e-6 {
			t.Fatalf("draw %d has radius %.9f, want %.1f", i, r, core.EarthRadiusKm)
		}
	}
}
