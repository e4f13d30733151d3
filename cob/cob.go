// Copyright ©2024 The OpenSLAM-copslam Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package cob rewrites a per-slot update transform so that it composes
// correctly with the relative pose it will multiply: conjugation by the
// running absolute pose at that slot.
package cob

import (
	"github.com/OpenSLAM-org/openslam-copslam/chain"
	"github.com/OpenSLAM-org/openslam-copslam/pose"
)

// Both conjugates the full update (rotation and translation) at every
// slot in [a+1, b]: U_i <- P_i^{-1}·U_i·P_i.
func Both(c *chain.Chain, a, b int) {
	for i := a + 1; i <= b; i++ {
		pInv := c.Abs(i).Inverse()
		c.SetUpd(i, pInv.Mul(c.Upd(i)).Mul(c.Abs(i)))
	}
}

// Rotation conjugates only the linear (rotation) part of the update at
// every slot in [a+1, b]: R(U_i) <- R(P_i)^T·R(U_i)·R(P_i).
func Rotation(c *chain.Chain, a, b int) {
	for i := a + 1; i <= b; i++ {
		p := c.Abs(i)
		u := c.Upd(i)
		r := p.R.Inverse().Mul(u.R).Mul(p.R)
		c.SetUpd(i, pose.Pose{R: r, T: u.T})
	}
}

// Translation rotates the translation-only update at every slot in
// [a+1, b] into the local frame: t(U_i) <- R(T)^T·t(U_i), where T is
// P_i with its translation zeroed.
func Translation(c *chain.Chain, a, b int) {
	for i := a + 1; i <= b; i++ {
		p := c.Abs(i)
		u := c.Upd(i)
		t := p.R.Inverse().Rotate(u.T)
		c.SetUpd(i, pose.Pose{R: u.R, T: t})
	}
}
