// Copyright ©2024 The OpenSLAM-copslam Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package pose implements rigid-motion primitives over SE(3): vectors,
// unit-quaternion rotations, and their composition, used as the common
// algebra beneath the chain, integrate, interp, cob, and update packages.
//
// Scale (the Sim(3) correction) is deliberately not a field of Pose: the
// spec keeps per-slot scale in the chain's own buffer and applies it as a
// scalar multiply of a relative pose's translation, so Pose stays a plain
// SE(3) element throughout.
package pose

import (
	"math"

	"gonum.org/v1/gonum/num/quat"
)

// Vec is a 3D vector.
type Vec struct {
	X, Y, Z float64
}

// Add returns the vector sum of v and w.
func (v Vec) Add(w Vec) Vec { return Vec{v.X + w.X, v.Y + w.Y, v.Z + w.Z} }

// Sub returns v-w.
func (v Vec) Sub(w Vec) Vec { return Vec{v.X - w.X, v.Y - w.Y, v.Z - w.Z} }

// Scale returns v scaled by f.
func (v Vec) Scale(f float64) Vec { return Vec{v.X * f, v.Y * f, v.Z * f} }

// Norm returns the Euclidean length of v.
func (v Vec) Norm() float64 { return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z) }

// Rotation is a rotation in SE(3), backed by a unit quaternion.
type Rotation struct {
	q quat.Number
}

// IdentityRotation returns the rotation that leaves every vector fixed.
func IdentityRotation() Rotation {
	return Rotation{q: quat.Number{Real: 1}}
}

// NewRotation builds the rotation by angle (radians) around axis.
// If axis is the zero vector, NewRotation returns the identity.
func NewRotation(angle float64, axis Vec) Rotation {
	n := axis.Norm()
	if n == 0 {
		return IdentityRotation()
	}
	axis = axis.Scale(1 / n)
	sin, cos := math.Sincos(0.5 * angle)
	q := quat.Number{Real: cos, Imag: sin * axis.X, Jmag: sin * axis.Y, Kmag: sin * axis.Z}
	return Rotation{q: q}
}

// NewRotationFromQuat builds a rotation from quaternion components in
// (x, y, z, w) order, the order g2o-style vertex/edge records use.
// The result is renormalized so that malformed input still yields a
// valid rotation.
func NewRotationFromQuat(x, y, z, w float64) Rotation {
	q := quat.Number{Real: w, Imag: x, Jmag: y, Kmag: z}
	return Rotation{q: q}.Normalize()
}

// Quat returns the rotation's quaternion components in (x, y, z, w) order.
func (r Rotation) Quat() (x, y, z, w float64) {
	return r.q.Imag, r.q.Jmag, r.q.Kmag, r.q.Real
}

// Mul returns the composed rotation r∘s: Mul(r, s).Rotate(v) equals
// r.Rotate(s.Rotate(v)).
func (r Rotation) Mul(s Rotation) Rotation {
	return Rotation{q: quat.Mul(r.q, s.q)}
}

// Conj returns the conjugate (equivalently, the inverse for a unit
// quaternion) of r.
func (r Rotation) Conj() Rotation {
	return Rotation{q: quat.Conj(r.q)}
}

// Inverse returns the rotation that undoes r. For the unit quaternions
// this package always constructs, this is the same closed-form
// conjugate Conj computes; it is named separately to mirror the
// compose/invert/isometry-invert triad PoseAlgebra specifies.
func (r Rotation) Inverse() Rotation {
	return r.Conj()
}

// Rotate returns v rotated according to r.
func (r Rotation) Rotate(v Vec) Vec {
	p := quat.Mul(quat.Mul(r.q, quat.Number{Imag: v.X, Jmag: v.Y, Kmag: v.Z}), quat.Conj(r.q))
	return Vec{X: p.Imag, Y: p.Jmag, Z: p.Kmag}
}

// Normalize re-unitizes r's underlying quaternion, correcting for
// numerical drift accumulated over many compositions.
func (r Rotation) Normalize() Rotation {
	l := quat.Abs(r.q)
	if l == 0 {
		return IdentityRotation()
	}
	return Rotation{q: quat.Scale(1/l, r.q)}
}

// Log returns the (angle, axis) tangent-space representation of r, with
// angle chosen in (-π, π]. If r is (numerically) the identity, axis is
// the X axis and angle is 0.
func (r Rotation) Log() (angle float64, axis Vec) {
	q := r.q
	if l := quat.Abs(q); l != 0 && l != 1 {
		q = quat.Scale(1/l, q)
	}
	w := q.Real
	if w > 1 {
		w = 1
	} else if w < -1 {
		w = -1
	}
	angle = 2 * math.Acos(w)
	s := math.Sqrt(1 - w*w)
	if s < 1e-12 {
		return 0, Vec{X: 1}
	}
	axis = Vec{X: q.Imag / s, Y: q.Jmag / s, Z: q.Kmag / s}
	if angle > math.Pi {
		angle -= 2 * math.Pi
	}
	return angle, axis
}

// Pose is a rigid-body transform: rotation then translation, i.e.
// p.Transform(v) == p.R.Rotate(v) + p.T.
type Pose struct {
	R Rotation
	T Vec
}

// Identity returns the pose that leaves every point fixed.
func Identity() Pose {
	return Pose{R: IdentityRotation()}
}

// New builds a pose from translation and rotation components directly,
// following the common "(translation, unit quaternion) → 4×4" PoseAlgebra
// constructor.
func New(t Vec, r Rotation) Pose {
	return Pose{R: r, T: t}
}

// Transform applies p to v.
func (p Pose) Transform(v Vec) Vec {
	return p.R.Rotate(v).Add(p.T)
}

// Mul returns the composed pose p∘q: Mul(p, q).Transform(v) equals
// p.Transform(q.Transform(v)).
func (p Pose) Mul(q Pose) Pose {
	return Pose{
		R: p.R.Mul(q.R),
		T: p.R.Rotate(q.T).Add(p.T),
	}
}

// InverseIsometry returns p's inverse using the closed form available
// because p is always a rigid isometry (no shear, no non-uniform
// scale), cheaper than a general matrix inverse.
func (p Pose) InverseIsometry() Pose {
	rInv := p.R.Inverse()
	return Pose{R: rInv, T: rInv.Rotate(p.T).Scale(-1)}
}

// Inverse returns p's inverse. Pose is always a rigid isometry, so this
// is exactly InverseIsometry; the two are named separately to mirror
// PoseAlgebra's invert/invert-as-isometry pair.
func (p Pose) Inverse() Pose {
	return p.InverseIsometry()
}

// Normalize re-orthonormalizes p's rotation block, leaving translation
// untouched.
func (p Pose) Normalize() Pose {
	return Pose{R: p.R.Normalize(), T: p.T}
}

// Translate returns the pure-translation pose by v.
func Translate(v Vec) Pose {
	return Pose{R: IdentityRotation(), T: v}
}

// Rotate returns the pure-rotation pose by angle around axis.
func Rotate(angle float64, axis Vec) Pose {
	return Pose{R: NewRotation(angle, axis)}
}

// InterpRigid returns Translate(v·t)·Rotate(θ·t, axis): the point on the
// tangent-space geodesic-like path between identity (t=0) and the full
// motion (t=1), linear in translation and great-circle in rotation.
func InterpRigid(t float64, v Vec, angle float64, axis Vec) Pose {
	return Pose{R: NewRotation(angle*t, axis), T: v.Scale(t)}
}
