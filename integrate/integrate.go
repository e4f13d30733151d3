// Copyright ©2024 The OpenSLAM-copslam Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package integrate (re-)computes absolute poses from a sub-range of
// relative poses, optionally re-orthonormalizing rotations first.
package integrate

import (
	"github.com/OpenSLAM-org/openslam-copslam/chain"
	"github.com/OpenSLAM-org/openslam-copslam/pose"
)

// Integrate sets P_i = P_{i-1}·R_i for i = a+1..b. If pinIdentity is
// true, P_a is temporarily replaced by the identity for the duration of
// the sweep and restored afterward, yielding the segment's accumulated
// drift in the local frame of slot a.
func Integrate(c *chain.Chain, a, b int, pinIdentity bool) {
	original := c.Abs(a)
	if pinIdentity {
		c.SetAbs(a, pose.Identity())
	}
	for i := a + 1; i <= b; i++ {
		c.SetAbs(i, c.Abs(i-1).Mul(c.Rel(i)))
	}
	if pinIdentity {
		c.SetAbs(a, original)
	}
}

// Normalized is Integrate, plus, when doNormalize is true,
// re-orthonormalizing every R_i in [a+1, b] before the integration
// sweep runs. The caller schedules doNormalize periodically to correct
// for float-rotation drift at low amortized cost.
func Normalized(c *chain.Chain, a, b int, doNormalize bool) {
	if doNormalize {
		for i := a + 1; i <= b; i++ {
			c.SetRel(i, c.Rel(i).Normalize())
		}
	}
	Integrate(c, a, b, false)
}
