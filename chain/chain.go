// Copyright ©2024 The OpenSLAM-copslam Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package chain owns the pose-chain storage: the absolute-pose array,
// the relative-pose array (current and original), the per-slot update
// scratch buffer, the per-slot scale buffer, and the per-edge
// information scalars. All capacities are pre-allocated from the parsed
// graph; no slice in Chain is ever grown once New returns.
package chain

import (
	"gonum.org/v1/gonum/floats"

	"github.com/OpenSLAM-org/openslam-copslam/pose"
)

// Space is the solution-space the chain was parsed for.
type Space int

const (
	// SE3 is the rigid-motion solution space (no scale).
	SE3 Space = iota
	// Sim3 is the similarity solution space (rotation, translation, scale).
	Sim3
	// RxT3 is the decoupled rotation+translation solution space.
	RxT3
)

func (s Space) String() string {
	switch s {
	case SE3:
		return "SE3"
	case Sim3:
		return "Sim3"
	case RxT3:
		return "RxT3"
	default:
		return "unknown"
	}
}

// Closure is a loop-closure measurement between two non-adjacent slots.
type Closure struct {
	A, B int // 0 <= A < B <= N-1
	Z    pose.Pose
	Wt   float64
	Wr   float64
	// Scale is the measured closure scale S_c; meaningful only in Sim3.
	Scale float64
	// Cov is the original upper-triangular 6x6 covariance, preserved
	// for lossless output.
	Cov [21]float64
}

// Chain is the pose-chain store. Index 0 is the fixed origin; slots
// 1..N-1 are aligned with the relative poses and their buffers.
type Chain struct {
	space Space

	abs     []pose.Pose // absolute poses, length N
	rel     []pose.Pose // current relative poses, length N (index 0 unused)
	relOrig []pose.Pose // original measurements, length N (index 0 unused)
	upd     []pose.Pose // scratch update buffer, length N (index 0 unused)

	scale []float64 // accumulated scale correction, length N (index 0 unused)

	wt, wr, ws []float64 // information scalars, length N (index 0 unused)

	covOrig [][21]float64 // original edge covariance, length N (index 0 unused)
}

// New allocates a chain of n absolute poses (and n-1 relative poses) in
// the given solution space. All absolute and relative poses start as
// identity; information scalars start at 1; scale starts at 1.
func New(n int, space Space) *Chain {
	if n < 1 {
		panic("chain: New requires at least one absolute pose")
	}
	c := &Chain{
		space:   space,
		abs:     make([]pose.Pose, n),
		rel:     make([]pose.Pose, n),
		relOrig: make([]pose.Pose, n),
		upd:     make([]pose.Pose, n),
		scale:   make([]float64, n),
		wt:      make([]float64, n),
		wr:      make([]float64, n),
		ws:      make([]float64, n),
		covOrig: make([][21]float64, n),
	}
	for i := range c.abs {
		c.abs[i] = pose.Identity()
		c.rel[i] = pose.Identity()
		c.relOrig[i] = pose.Identity()
		c.upd[i] = pose.Identity()
		c.scale[i] = 1
		c.wt[i] = 1
		c.wr[i] = 1
		c.ws[i] = 1
	}
	return c
}

// N returns the number of absolute poses.
func (c *Chain) N() int { return len(c.abs) }

// Space returns the chain's solution space.
func (c *Chain) Space() Space { return c.space }

// Abs returns the absolute pose at index i.
func (c *Chain) Abs(i int) pose.Pose { return c.abs[i] }

// SetAbs sets the absolute pose at index i.
func (c *Chain) SetAbs(i int, p pose.Pose) { c.abs[i] = p }

// Rel returns the current relative pose at index i (1 <= i <= N-1).
func (c *Chain) Rel(i int) pose.Pose { return c.rel[i] }

// SetRel sets the current relative pose at index i.
func (c *Chain) SetRel(i int, p pose.Pose) { c.rel[i] = p }

// RelOriginal returns the original (immutable) relative measurement at
// index i, preserved for output.
func (c *Chain) RelOriginal(i int) pose.Pose { return c.relOrig[i] }

// SetRelOriginal sets both the current and original relative pose at
// index i; used only while parsing.
func (c *Chain) SetRelOriginal(i int, p pose.Pose) {
	c.rel[i] = p
	c.relOrig[i] = p
}

// CovOriginal returns the original upper-triangular 6x6 covariance of
// the relative edge at index i, preserved for lossless output.
func (c *Chain) CovOriginal(i int) [21]float64 { return c.covOrig[i] }

// SetCovOriginal sets the original covariance of the relative edge at
// index i; used only while parsing.
func (c *Chain) SetCovOriginal(i int, cov [21]float64) { c.covOrig[i] = cov }

// Upd returns the scratch update transform at index i.
func (c *Chain) Upd(i int) pose.Pose { return c.upd[i] }

// SetUpd sets the scratch update transform at index i.
func (c *Chain) SetUpd(i int, p pose.Pose) { c.upd[i] = p }

// ScaleAt returns the accumulated scale correction at index i.
func (c *Chain) ScaleAt(i int) float64 { return c.scale[i] }

// SetScaleAt sets the accumulated scale correction at index i.
func (c *Chain) SetScaleAt(i int, s float64) { c.scale[i] = s }

// Wt returns the translation information scalar at index i.
func (c *Chain) Wt(i int) float64 { return c.wt[i] }

// SetWt sets the translation information scalar at index i.
func (c *Chain) SetWt(i int, w float64) { c.wt[i] = w }

// Wr returns the rotation information scalar at index i.
func (c *Chain) Wr(i int) float64 { return c.wr[i] }

// SetWr sets the rotation information scalar at index i.
func (c *Chain) SetWr(i int, w float64) { c.wr[i] = w }

// Ws returns the scale information scalar at index i.
func (c *Chain) Ws(i int) float64 { return c.ws[i] }

// SetWs sets the scale information scalar at index i.
func (c *Chain) SetWs(i int, w float64) { c.ws[i] = w }

// SumWt returns the sum of translation information scalars over
// [lo, hi], inclusive.
func (c *Chain) SumWt(lo, hi int) float64 { return sumRange(c.wt, lo, hi) }

// SumWr returns the sum of rotation information scalars over
// [lo, hi], inclusive.
func (c *Chain) SumWr(lo, hi int) float64 { return sumRange(c.wr, lo, hi) }

// SumWs returns the sum of scale information scalars over
// [lo, hi], inclusive.
func (c *Chain) SumWs(lo, hi int) float64 { return sumRange(c.ws, lo, hi) }

func sumRange(xs []float64, lo, hi int) float64 {
	if hi < lo {
		return 0
	}
	return floats.Sum(xs[lo : hi+1])
}
