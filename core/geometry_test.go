package core

import (
	"math"
	"testing"
)

func TestSeparationDeg_KnownAngles(t *testing.T) {
	cases := []struct {
		name string
		a, b Vec3
		want float64
	}{
		{"aligned", Vec3{X: 1}, Vec3{X: 1}, 0},
		{"orthogonal", Vec3{X: 1}, Vec3{Y: 1}, 90},
		{"opposite", Vec3{X: 1}, Vec3{X: -1}, 180},
		{"diagonal", Vec3{X: 1}, Vec3{X: 1, Y: 1}, 45},
		{"scale invariant", Vec3{X: 2000}, Vec3{Z: 3000}, 90},
	}
	for _, tc := range cases {
		got := SeparationDeg(tc.a, tc.b)
		if math.Abs(got-tc.want) > 1e-9 {
			t.Errorf("%s: SeparationDeg = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestSeparationDeg_LargeVectorsStayFinite(t *testing.T) {
	// Self-separation of a large vector exercises the cosine clamp; the
	// result must collapse to 0 without a domain error.
	v := Vec3{X: 1e8, Y: 1e8, Z: 1e8}
	got := SeparationDeg(v, v)
	if math.IsNaN(got) {
		t.Fatal("SeparationDeg(v, v) returned NaN")
	}
	if got > 1e-6 {
		t.Fatalf("SeparationDeg(v, v) = %v, want ~0", got)
	}
}

func TestSeparationDeg_DegenerateCollapsesToConflict(t *testing.T) {
	// A zero-length direction cannot be distinguished from any other, so
	// it reads as 0° and therefore always conflicts.
	if got := SeparationDeg(Vec3{}, Vec3{X: 1}); got != 0 {
		t.Fatalf("SeparationDeg(zero, x) = %v, want 0", got)
	}
	if got := SeparationDeg(Vec3{X: 1}, Vec3{}); got != 0 {
		t.Fatalf("SeparationDeg(x, zero) = %v, want 0", got)
	}
}

func TestZenithAngleDeg_Overhead(t *testing.T) {
	user := Vec3{X: EarthRadiusKm}
	sat := Vec3{X: EarthRadiusKm + 550}

	angle, ok := ZenithAngleDeg(user, sat)
	if !ok {
		t.Fatal("overhead satellite reported as degenerate")
	}
	if math.Abs(angle) > 1e-9 {
		t.Fatalf("zenith angle = %v, want 0", angle)
	}
}

func TestZenithAngleDeg_Horizontal(t *testing.T) {
	// Satellite due "east" at the user's own altitude: the direction to it
	// is orthogonal to the local vertical.
	user := Vec3{X: EarthRadiusKm}
	sat := Vec3{X: EarthRadiusKm, Y: 1000}

	angle, ok := ZenithAngleDeg(user, sat)
	if !ok {
		t.Fatal("horizontal satellite reported as degenerate")
	}
	if math.Abs(angle-90) > 1e-9 {
		t.Fatalf("zenith angle = %v, want 90", angle)
	}
}

func TestZenithAngleDeg_Degenerate(t *testing.T) {
	if _, ok := ZenithAngleDeg(Vec3{}, Vec3{X: 7000}); ok {
		t.Error("user at Earth's center should have no zenith direction")
	}
	pos := Vec3{X: EarthRadiusKm}
	if _, ok := ZenithAngleDeg(pos, pos); ok {
		t.Error("coincident user and satellite should be degenerate")
	}
}

func TestWithinCone_BoundaryIsInclusive(t *testing.T) {
	user := Vec3{X: EarthRadiusKm}
	sat := Vec3{X: EarthRadiusKm + 400, Y: 300}

	angle, ok := ZenithAngleDeg(user, sat)
	if !ok {
		t.Fatal("test geometry unexpectedly degenerate")
	}

	if !WithinCone(user, sat, angle) {
		t.Errorf("satellite at exactly the cone angle (%v°) should be visible", angle)
	}
	if WithinCone(user, sat, angle-1e-9) {
		t.Errorf("satellite just outside the cone should not be visible")
	}
}

func TestWithinCone_RejectsFarSide(t *testing.T) {
	user := Vec3{X: EarthRadiusKm}
	sat := Vec3{X: -(EarthRadiusKm + 550)}

	if WithinCone(user, sat, 45) {
		t.Error("satellite on the far side of Earth should not be visible")
	}
}

func TestWithinCone_DegenerateFailsClosed(t *testing.T) {
	if WithinCone(Vec3{}, Vec3{X: 7000}, 45) {
		t.Error("degenerate user position should never be visible")
	}
}

func TestBeamDirection(t *testing.T) {
	sat := Vec3{X: EarthRadiusKm + 550}
	user := Vec3{X: EarthRadiusKm}

	dir, ok := BeamDirection(sat, user)
	if !ok {
		t.Fatal("beam direction reported degenerate for distinct positions")
	}
	want := Vec3{X: -1}
	if math.Abs(dir.X-want.X) > 1e-12 || math.Abs(dir.Y) > 1e-12 || math.Abs(dir.Z) > 1e-12 {
		t.Fatalf("beam direction = %+v, want %+v", dir, want)
	}

	if _, ok := BeamDirection(sat, sat); ok {
		t.Error("beam direction for coincident positions should be degenerate")
	}
}
