package core

import (
	"math"

	"github.com/signalsfoundry/beam-planner/model"
)

// EarthRadiusKm is the mean Earth radius used for all simple geometry
// calculations in the planning layer (kilometres).
const EarthRadiusKm = 6371.0

// degenerateNorm is the magnitude below which a direction vector carries
// no usable pointing information. Pairs that degenerate like this are
// treated as not visible rather than propagating NaNs into the solver.
const degenerateNorm = 1e-9

// Vec3 is an ECEF-style vector in kilometres.
type Vec3 struct {
	X, Y, Z float64
}

// Norm returns the Euclidean norm of the vector.
func (v Vec3) Norm() float64 {
	return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z)
}

// Sub returns v - other.
func (v Vec3) Sub(other Vec3) Vec3 {
	return Vec3{X: v.X - other.X, Y: v.Y - other.Y, Z: v.Z - other.Z}
}

// Dot returns the dot product of two vectors.
func (v Vec3) Dot(other Vec3) float64 {
	return v.X*other.X + v.Y*other.Y + v.Z*other.Z
}

// Unit returns the normalised vector. ok is false when the magnitude is
// too small to define a direction.
func (v Vec3) Unit() (Vec3, bool) {
	n := v.Norm()
	if n < degenerateNorm {
		return Vec3{}, false
	}
	return Vec3{X: v.X / n, Y: v.Y / n, Z: v.Z / n}, true
}

// vecOf converts loaded coordinates into the engine's vector type.
func vecOf(c model.Coordinates) Vec3 {
	return Vec3{X: c.X, Y: c.Y, Z: c.Z}
}

// SeparationDeg returns the angle between two direction vectors in
// degrees. The cosine is clamped to [-1, 1] before the inverse step so
// floating-point drift never produces a domain error. Degenerate inputs
// collapse to 0° (fully aligned), which the interference check treats as
// a conflict.
func SeparationDeg(a, b Vec3) float64 {
	na := a.Norm()
	nb := b.Norm()
	if na < degenerateNorm || nb < degenerateNorm {
		return 0
	}
	cos := a.Dot(b) / (na * nb)
	if cos > 1 {
		cos = 1
	} else if cos < -1 {
		cos = -1
	}
	return math.Acos(cos) * 180.0 / math.Pi
}

// ZenithAngleDeg returns the angle, at the user, between the user's local
// vertical and the direction toward the satellite. 0° = directly
// overhead. ok is false when either the user sits at the Earth's center
// or the two positions coincide; such pairs carry no direction and are
// never considered visible.
func ZenithAngleDeg(user, sat Vec3) (float64, bool) {
	toSat := sat.Sub(user)
	if toSat.Norm() < degenerateNorm {
		return 0, false
	}
	if user.Norm() < degenerateNorm {
		return 0, false
	}
	return SeparationDeg(user, toSat), true
}

// WithinCone reports whether the satellite lies within coneDeg of the
// user's local vertical. The boundary is inclusive: a satellite at
// exactly the cone angle is visible.
func WithinCone(user, sat Vec3, coneDeg float64) bool {
	angle, ok := ZenithAngleDeg(user, sat)
	return ok && angle <= coneDeg
}

// BeamDirection returns the unit vector from the satellite toward the
// user, the direction stored with a filled beam slot and compared by the
// interference rule. ok is false when the positions coincide.
func BeamDirection(sat, user Vec3) (Vec3, bool) {
	return user.Sub(sat).Unit()
}
