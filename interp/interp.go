// Copyright ©2024 The OpenSLAM-copslam Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package interp allocates a single loop-closure residual across a
// chain segment in closed form, weighted by each slot's information
// scalars, and writes the per-slot update transforms the cob and
// update packages then conjugate and apply.
package interp

import (
	"github.com/OpenSLAM-org/openslam-copslam/chain"
	"github.com/OpenSLAM-org/openslam-copslam/pose"
)

// Normalizers is the pair (η_t, η_r) an Interpolator call returns to
// the driver: the multiplicative information down-weight for the
// segment's translation and rotation channels, respectively. A zero
// field means that channel was not distributed by this call.
type Normalizers struct {
	EtaT, EtaR float64
}

// Motion performs the combined (rotation+translation) allocation used
// by the one-pass method. delta is the residual P_b^{-1}·Z_c, already
// computed by the caller after Integrate(a, b, pinIdentity=true); z is
// the measured closure transform. The interior information sums run
// over [a+1, b-1], exclusive of b, per the motion variant's asymmetric
// bound (spec.md §4.4, §9).
func Motion(c *chain.Chain, a, b int, delta, z pose.Pose, wt, wr, g float64) Normalizers {
	angle, axis := delta.R.Log()
	v := delta.T

	sumT := c.SumWt(a+1, b-1)
	sumR := c.SumWr(a+1, b-1)
	etaT := 1 / (1 + sumT/wt)
	etaR := 1 / (1 + sumR/wr)
	denomT := g * (sumT + wt)
	denomR := g * (sumR + wr)

	zInv := z.Inverse()
	// B and A use independent accumulators (τ for translation, ρ for
	// rotation), so they are built directly rather than through
	// InterpRigid, which shares a single time parameter across both.
	var tau, rho float64
	for i := a + 1; i <= b; i++ {
		before := pose.Pose{R: pose.NewRotation(angle*rho, axis), T: v.Scale(tau)}
		tau += c.Wt(i) / denomT
		rho += c.Wr(i) / denomR
		after := pose.Pose{R: pose.NewRotation(angle*rho, axis), T: v.Scale(tau)}

		step := before.Inverse().Mul(after)
		c.SetUpd(i, z.Mul(step).Mul(zInv))
	}
	return Normalizers{EtaT: etaT, EtaR: etaR}
}

// TranslationOnly performs the second pass of the two-pass method:
// delta carries only the translation residual. The interior information
// sum runs over the inclusive range [a+1, b].
func TranslationOnly(c *chain.Chain, a, b int, delta, z pose.Pose, wt, g float64) Normalizers {
	v := delta.T
	sumT := c.SumWt(a+1, b)
	etaT := 1 / (1 + sumT/wt)
	denomT := g * (sumT + wt)

	zInv := z.Inverse()
	for i := a + 1; i <= b; i++ {
		step := pose.Translate(v.Scale(c.Wt(i) / denomT))
		c.SetUpd(i, z.Mul(step).Mul(zInv))
	}
	return Normalizers{EtaT: etaT}
}

// RotationOnly performs the first pass of the two-pass method (and the
// only distribution pass for orientation-only closures): delta carries
// only the rotation residual. The interior information sum runs over
// the inclusive range [a+1, b]. The angle is mapped into (-π, π] by
// Rotation.Log before allocation.
func RotationOnly(c *chain.Chain, a, b int, delta, z pose.Pose, wr, g float64) Normalizers {
	angle, axis := delta.R.Log()

	sumR := c.SumWr(a+1, b)
	etaR := 1 / (1 + sumR/wr)
	denomR := g * (sumR + wr)

	zrInv := z.R.Inverse()
	for i := a + 1; i <= b; i++ {
		step := pose.NewRotation(angle*c.Wr(i)/denomR, axis)
		r := z.R.Mul(step).Mul(zrInv)
		u := c.Upd(i)
		u.R = r
		c.SetUpd(i, u)
	}
	return Normalizers{EtaR: etaR}
}
