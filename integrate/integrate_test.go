// Copyright ©2024 The OpenSLAM-copslam Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package integrate

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/floats/scalar"

	"github.com/OpenSLAM-org/openslam-copslam/chain"
	"github.com/OpenSLAM-org/openslam-copslam/pose"
)

const tol = 1e-9

func vecEqual(a, b pose.Vec) bool {
	return scalar.EqualWithinAbs(a.X, b.X, tol) &&
		scalar.EqualWithinAbs(a.Y, b.Y, tol) &&
		scalar.EqualWithinAbs(a.Z, b.Z, tol)
}

func TestIntegrateComposesRelatives(t *testing.T) {
	c := chain.New(4, chain.SE3)
	for i := 1; i <= 3; i++ {
		c.SetRelOriginal(i, pose.Translate(pose.Vec{X: 1, Y: 0, Z: 0}))
	}
	Integrate(c, 0, 3, false)
	if !vecEqual(c.Abs(3).T, pose.Vec{X: 3, Y: 0, Z: 0}) {
		t.Fatalf("Abs(3).T = %v, want {3,0,0}", c.Abs(3).T)
	}
	for i := 1; i <= 3; i++ {
		want := c.Abs(i - 1).Mul(c.Rel(i))
		if !vecEqual(c.Abs(i).T, want.T) {
			t.Fatalf("invariant P_%d = P_%d.R_%d broken", i, i-1, i)
		}
	}
}

func TestIntegratePinIdentity(t *testing.T) {
	c := chain.New(3, chain.SE3)
	c.SetAbs(0, pose.Translate(pose.Vec{X: 100, Y: 0, Z: 0}))
	c.SetRelOriginal(1, pose.Translate(pose.Vec{X: 1, Y: 0, Z: 0}))
	c.SetRelOriginal(2, pose.Translate(pose.Vec{X: 1, Y: 0, Z: 0}))

	Integrate(c, 0, 2, true)
	if !vecEqual(c.Abs(2).T, pose.Vec{X: 2, Y: 0, Z: 0}) {
		t.Fatalf("pinIdentity drift = %v, want {2,0,0}", c.Abs(2).T)
	}
	if !vecEqual(c.Abs(0).T, pose.Vec{X: 100, Y: 0, Z: 0}) {
		t.Fatalf("P_a not restored: got %v", c.Abs(0).T)
	}
}

func TestNormalizedRenormalizesFirst(t *testing.T) {
	c := chain.New(2, chain.SE3)
	r := pose.NewRotation(math.Pi/2, pose.Vec{X: 0, Y: 0, Z: 1})
	c.SetRelOriginal(1, pose.New(pose.Vec{}, r))

	Normalized(c, 0, 1, true)
	x, y, z, w := c.Rel(1).R.Quat()
	norm := math.Sqrt(x*x + y*y + z*z + w*w)
	if !scalar.EqualWithinAbs(norm, 1, 1e-12) {
		t.Fatalf("Normalized did not leave a unit quaternion: |q| = %v", norm)
	}
}
