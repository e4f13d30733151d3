// Copyright ©2024 The OpenSLAM-copslam Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package driver implements copSLAM: it walks loop closures in order,
// orchestrating the integrate, interp, cob, and update packages, and
// down-weights information inside closed loops to reflect the
// improvement in accuracy a successful closure brings.
package driver

import (
	"errors"
	"fmt"
	"io"

	"github.com/OpenSLAM-org/openslam-copslam/chain"
	"github.com/OpenSLAM-org/openslam-copslam/cob"
	"github.com/OpenSLAM-org/openslam-copslam/integrate"
	"github.com/OpenSLAM-org/openslam-copslam/interp"
	"github.com/OpenSLAM-org/openslam-copslam/pose"
	"github.com/OpenSLAM-org/openslam-copslam/update"
)

// Method selects between the monolithic and stratified distribution
// strategies.
type Method int

const (
	// TwoPass distributes rotation and translation in separate passes.
	// It is the default method.
	TwoPass Method = iota
	// OnePass distributes the combined SE(3) motion in a single pass.
	OnePass
)

func (m Method) String() string {
	if m == OnePass {
		return "one-pass"
	}
	return "two-pass"
}

// ErrUnknownMethod is returned by ParseMethod for an unrecognized
// method string. Per spec, callers should warn and fall back to
// TwoPass rather than abort.
var ErrUnknownMethod = errors.New("driver: unknown method")

// ParseMethod parses a CLI method token ("one-pass", "two-pass", or
// "no-scale", which selects TwoPass with IgnoreScale implied).
func ParseMethod(s string) (method Method, ignoreScale bool, err error) {
	switch s {
	case "", "two-pass":
		return TwoPass, false, nil
	case "one-pass":
		return OnePass, false, nil
	case "no-scale":
		return TwoPass, true, nil
	default:
		return TwoPass, false, fmt.Errorf("%w: %q", ErrUnknownMethod, s)
	}
}

// Config is the immutable configuration passed to Run: the global
// normalizer, scale handling, method, orientation-only threshold, and
// the normalization schedule, modeled as a value rather than mutable
// chain fields (spec.md §9).
type Config struct {
	// G is the global normalizer damping every correction. Zero means
	// the default of 1.0.
	G float64
	// IgnoreScale forces a Sim3 chain to be optimized as SE3.
	IgnoreScale bool
	// Method selects one-pass vs two-pass distribution.
	Method Method
	// OrientationOnlyThreshold is the W_t(c) value at or above which a
	// closure is classified orientation-only. Zero means the default
	// of 4.5e9.
	OrientationOnlyThreshold float64
	// NormalizeEvery schedules Integrator re-orthonormalization once
	// every this many closures. Zero means the default of 101.
	NormalizeEvery int
	// ErrorOnNonProgressing, when false (the zero value, and the
	// default), makes Run silently skip any closure whose b is less
	// than the previous closure's b — the spec codifies this as the
	// original's behavior while leaving it open whether it should be
	// configurable. When true, Run returns ErrNonProgressing instead of
	// skipping.
	ErrorOnNonProgressing bool
	// Log receives progress lines ("Loop N from A to B (L)",
	// "ORIENTATION-ONLY", final scale corrections) when non-nil.
	Log io.Writer
}

func (cfg Config) normalized() Config {
	if cfg.G == 0 {
		cfg.G = 1.0
	}
	if cfg.OrientationOnlyThreshold == 0 {
		cfg.OrientationOnlyThreshold = 4.5e9
	}
	if cfg.NormalizeEvery == 0 {
		cfg.NormalizeEvery = 101
	}
	return cfg
}

// ErrNonProgressing is returned by Run when a closure's end is less
// than the previous closure's end and cfg.ErrorOnNonProgressing is
// true.
var ErrNonProgressing = errors.New("driver: closure does not progress past previous closure")

func (cfg Config) logf(format string, args ...interface{}) {
	if cfg.Log != nil {
		fmt.Fprintf(cfg.Log, format, args...)
	}
}

// Run walks closures in order and mutates c in place. DegenerateClosure
// (a == b) closures are skipped silently, per spec.md §7.
func Run(c *chain.Chain, closures []chain.Closure, cfg Config) error {
	cfg = cfg.normalized()

	prevEnd := 0
	counter := 0
	for n, cl := range closures {
		if cl.A == cl.B {
			continue // DegenerateClosure: skip silently
		}
		cfg.logf("[MESSAGE] Loop %d from %d to %d (%d)\n", n, cl.A, cl.B, cl.B-cl.A)

		if cl.B < prevEnd {
			if cfg.ErrorOnNonProgressing {
				return ErrNonProgressing
			}
			continue
		}

		if prevEnd < cl.A {
			integrate.Integrate(c, prevEnd, cl.A, false)
		}

		orientationOnly := cl.Wt >= cfg.OrientationOnlyThreshold
		if orientationOnly {
			cfg.logf("[MESSAGE] ORIENTATION-ONLY\n")
		}

		integrate.Integrate(c, cl.A, cl.B, true)
		delta := c.Abs(cl.B).Inverse().Mul(cl.Z)

		var norm interp.Normalizers
		switch {
		case cfg.Method == OnePass && !orientationOnly:
			norm = runOnePass(c, cl, delta, cfg)
		default:
			norm = runTwoPass(c, cl, delta, orientationOnly, cfg)
		}

		doNormalize := counter == cfg.NormalizeEvery-1
		integrate.Normalized(c, cl.A, cl.B, doNormalize)
		counter++
		if counter == cfg.NormalizeEvery {
			counter = 0
		}

		for i := cl.A + 1; i <= cl.B; i++ {
			c.SetWr(i, c.Wr(i)*norm.EtaR)
			if !orientationOnly {
				c.SetWt(i, c.Wt(i)*norm.EtaT)
			}
		}

		prevEnd = cl.B
	}

	integrate.Integrate(c, prevEnd, c.N()-1, false)
	return nil
}

func runOnePass(c *chain.Chain, cl chain.Closure, delta pose.Pose, cfg Config) interp.Normalizers {
	norm := interp.Motion(c, cl.A, cl.B, delta, cl.Z, cl.Wt, cl.Wr, cfg.G)
	cob.Both(c, cl.A, cl.B)
	update.Both(c, cl.A, cl.B)
	return norm
}

func runTwoPass(c *chain.Chain, cl chain.Closure, delta pose.Pose, orientationOnly bool, cfg Config) interp.Normalizers {
	rotDelta := delta
	rotDelta.T = pose.Vec{}
	norm := interp.RotationOnly(c, cl.A, cl.B, rotDelta, cl.Z, cl.Wr, cfg.G)
	cob.Rotation(c, cl.A, cl.B)
	update.Rotation(c, cl.A, cl.B)

	if orientationOnly {
		return norm
	}

	spaceIsSim3 := c.Space() == chain.Sim3
	if spaceIsSim3 && !cfg.IgnoreScale && cl.Scale != 0 {
		scaleNormalizer := cfg.G * (c.SumWs(cl.A+1, cl.B) + 1.0)
		update.Scale(c, cl.A, cl.B, cl.Scale, scaleNormalizer)
		for i := cl.A + 1; i <= cl.B; i++ {
			c.SetWs(i, c.Ws(i)/scaleNormalizer)
		}
		cfg.logf("[MESSAGE] Loop-closure final scale correction: %v\n", c.ScaleAt(cl.B))
	}

	integrate.Integrate(c, cl.A, cl.B, true)
	traDelta := c.Abs(cl.B).Inverse().Mul(cl.Z)
	traDelta.R = pose.IdentityRotation()

	traNorm := interp.TranslationOnly(c, cl.A, cl.B, traDelta, cl.Z, cl.Wt, cfg.G)
	cob.Translation(c, cl.A, cl.B)
	update.Translation(c, cl.A, cl.B)

	norm.EtaT = traNorm.EtaT
	return norm
}
