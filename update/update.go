// Copyright ©2024 The OpenSLAM-copslam Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package update right-multiplies the per-slot update transforms the
// interp and cob packages produced into the chain's relative poses.
package update

import (
	"math"

	"github.com/OpenSLAM-org/openslam-copslam/chain"
)

// Both right-multiplies the full update into each relative pose in
// [a+1, b]: R_i <- R_i·U_i.
func Both(c *chain.Chain, a, b int) {
	for i := a + 1; i <= b; i++ {
		c.SetRel(i, c.Rel(i).Mul(c.Upd(i)))
	}
}

// Rotation right-multiplies only the rotation part of the update into
// each relative pose's rotation block in [a+1, b].
func Rotation(c *chain.Chain, a, b int) {
	for i := a + 1; i <= b; i++ {
		r := c.Rel(i)
		r.R = r.R.Mul(c.Upd(i).R)
		c.SetRel(i, r)
	}
}

// Translation adds the update's translation into each relative pose's
// translation in [a+1, b].
func Translation(c *chain.Chain, a, b int) {
	for i := a + 1; i <= b; i++ {
		r := c.Rel(i)
		r.T = r.T.Add(c.Upd(i).T)
		c.SetRel(i, r)
	}
}

// Scale applies the Sim(3) running-product scale correction to the
// translations of the relative poses in [a+1, b]: at the i-th slot of
// the segment (0-indexed), σ <- σ·scaleCloseFactor^(w_s(slot)/scaleNormalizer),
// then t(R_slot) <- σ·t(R_slot), recording the accumulated correction
// into the chain's scale buffer. σ always starts at 1 for the call: the
// caller is responsible for invoking Scale once per closure's SCALE
// pass, never carrying a running product across closures.
func Scale(c *chain.Chain, a, b int, scaleCloseFactor, scaleNormalizer float64) {
	sigma := 1.0
	for i := a + 1; i <= b; i++ {
		sigma *= math.Pow(scaleCloseFactor, c.Ws(i)/scaleNormalizer)
		c.SetScaleAt(i, sigma)
		r := c.Rel(i)
		r.T = r.T.Scale(sigma)
		c.SetRel(i, r)
	}
}
