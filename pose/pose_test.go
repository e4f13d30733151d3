// Copyright ©2024 The OpenSLAM-copslam Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pose

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/floats/scalar"
)

const tol = 1e-9

func vecEqual(a, b Vec) bool {
	return scalar.EqualWithinAbs(a.X, b.X, tol) &&
		scalar.EqualWithinAbs(a.Y, b.Y, tol) &&
		scalar.EqualWithinAbs(a.Z, b.Z, tol)
}

func TestRotationRoundTrip(t *testing.T) {
	r := NewRotation(math.Pi/3, Vec{X: 0, Y: 0, Z: 1})
	v := Vec{X: 1, Y: 0, Z: 0}
	got := r.Inverse().Rotate(r.Rotate(v))
	if !vecEqual(got, v) {
		t.Fatalf("Rotate/Inverse round trip: got %v, want %v", got, v)
	}
}

func TestLogBranch(t *testing.T) {
	for _, angle := range []float64{0.1, math.Pi - 0.01, math.Pi, math.Pi + 0.2, 2*math.Pi - 0.1} {
		r := NewRotation(angle, Vec{X: 0, Y: 1, Z: 0})
		got, _ := r.Log()
		if got <= -math.Pi || got > math.Pi+1e-9 {
			t.Fatalf("Log(%v) = %v, want angle in (-pi, pi]", angle, got)
		}
	}
}

func TestLogIdentity(t *testing.T) {
	angle, axis := IdentityRotation().Log()
	if angle != 0 {
		t.Fatalf("Log(identity) angle = %v, want 0", angle)
	}
	if axis != (Vec{X: 1}) {
		t.Fatalf("Log(identity) axis = %v, want {1,0,0}", axis)
	}
}

func TestPoseMulInverse(t *testing.T) {
	p := New(Vec{X: 1, Y: 2, Z: 3}, NewRotation(0.7, Vec{X: 1, Y: 1, Z: 0}))
	q := New(Vec{X: -1, Y: 0, Z: 2}, NewRotation(1.2, Vec{X: 0, Y: 0, Z: 1}))
	got := p.Mul(q).Mul(q.Inverse())
	if !vecEqual(got.T, p.T) {
		t.Fatalf("Mul/Inverse round trip translation: got %v, want %v", got.T, p.T)
	}
	wx, wy, wz, ww := got.R.Quat()
	px, py, pz, pw := p.R.Quat()
	if !(scalar.EqualWithinAbs(wx, px, tol) && scalar.EqualWithinAbs(wy, py, tol) &&
		scalar.EqualWithinAbs(wz, pz, tol) && scalar.EqualWithinAbs(ww, pw, tol)) {
		t.Fatalf("Mul/Inverse round trip rotation: got %v, want %v", got.R, p.R)
	}
}

func TestInterpRigidEndpoints(t *testing.T) {
	v := Vec{X: 2, Y: 0, Z: 0}
	angle := math.Pi / 2
	axis := Vec{X: 0, Y: 0, Z: 1}

	start := InterpRigid(0, v, angle, axis)
	if !vecEqual(start.T, Vec{}) {
		t.Fatalf("InterpRigid(0): T = %v, want zero", start.T)
	}
	end := InterpRigid(1, v, angle, axis)
	if !vecEqual(end.T, v) {
		t.Fatalf("InterpRigid(1): T = %v, want %v", end.T, v)
	}
}
