// Copyright ©2024 The OpenSLAM-copslam Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package g2o

import (
	"strings"
	"testing"

	"gonum.org/v1/gonum/floats/scalar"

	"github.com/OpenSLAM-org/openslam-copslam/chain"
)

const tol = 1e-9

// identityInfoCov is the upper-triangular 6x6 identity matrix: an
// edge carrying it inverts to unit variance on every axis, so
// informationScalars resolves both w_t and w_r to 1.
const identityInfoCov = "1 0 0 0 0 0 1 0 0 0 0 1 0 0 0 1 0 0 1 0 1"

func smallSE3Graph() string {
	lines := []string{
		"VERTEX_SE3:QUAT 0 0 0 0 0 0 0 1",
		"VERTEX_SE3:QUAT 1 1 0 0 0 0 0 1",
		"VERTEX_SE3:QUAT 2 2 0 0 0 0 0 1",
		"EDGE_SE3:QUAT 0 1 1 0 0 0 0 0 1 " + identityInfoCov,
		"EDGE_SE3:QUAT 1 2 1 0 0 0 0 0 1 " + identityInfoCov,
		"EDGE_SE3:QUAT 0 2 2 0 0 0 0 0 1 " + identityInfoCov,
	}
	return strings.Join(lines, "\n") + "\n"
}

func TestParseSolutionSpaceAndCounts(t *testing.T) {
	g, err := Parse(strings.NewReader(smallSE3Graph()))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if g.Chain.Space() != chain.SE3 {
		t.Fatalf("Space() = %v, want SE3", g.Chain.Space())
	}
	if g.Chain.N() != 3 {
		t.Fatalf("N() = %d, want 3", g.Chain.N())
	}
	if len(g.Closures) != 1 {
		t.Fatalf("len(Closures) = %d, want 1", len(g.Closures))
	}
	cl := g.Closures[0]
	if cl.A != 0 || cl.B != 2 {
		t.Fatalf("closure = (%d,%d), want (0,2)", cl.A, cl.B)
	}
	if !scalar.EqualWithinAbs(cl.Z.T.X, 2, tol) {
		t.Fatalf("closure Z.T.X = %v, want 2", cl.Z.T.X)
	}
	if !scalar.EqualWithinAbs(g.Chain.Wt(1), 1, tol) || !scalar.EqualWithinAbs(g.Chain.Wr(1), 1, tol) {
		t.Fatalf("relative edge 1 information = (%v,%v), want (1,1)", g.Chain.Wt(1), g.Chain.Wr(1))
	}
}

func TestParseInvertsBackwardClosure(t *testing.T) {
	lines := []string{
		"VERTEX_SE3:QUAT 0 0 0 0 0 0 0 1",
		"VERTEX_SE3:QUAT 1 1 0 0 0 0 0 1",
		"VERTEX_SE3:QUAT 2 2 0 0 0 0 0 1",
		"EDGE_SE3:QUAT 0 1 1 0 0 0 0 0 1 " + identityInfoCov,
		"EDGE_SE3:QUAT 1 2 1 0 0 0 0 0 1 " + identityInfoCov,
		// closure given j<i (2 -> 0): must be inverted and swapped to A=0, B=2.
		"EDGE_SE3:QUAT 2 0 -2 0 0 0 0 0 1 " + identityInfoCov,
	}
	g, err := Parse(strings.NewReader(strings.Join(lines, "\n") + "\n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(g.Closures) != 1 {
		t.Fatalf("len(Closures) = %d, want 1", len(g.Closures))
	}
	cl := g.Closures[0]
	if cl.A != 0 || cl.B != 2 {
		t.Fatalf("closure = (%d,%d), want (0,2)", cl.A, cl.B)
	}
	if !scalar.EqualWithinAbs(cl.Z.T.X, 2, tol) {
		t.Fatalf("inverted closure Z.T.X = %v, want 2", cl.Z.T.X)
	}
}

func TestParseRejectsInconsistentCounts(t *testing.T) {
	lines := []string{
		"VERTEX_SE3:QUAT 0 0 0 0 0 0 0 1",
		"VERTEX_SE3:QUAT 1 1 0 0 0 0 0 1",
		"VERTEX_SE3:QUAT 2 2 0 0 0 0 0 1",
		// Only one relative edge for three vertices: missing edge 1->2.
		"EDGE_SE3:QUAT 0 1 1 0 0 0 0 0 1 " + identityInfoCov,
	}
	_, err := Parse(strings.NewReader(strings.Join(lines, "\n") + "\n"))
	if err == nil {
		t.Fatal("expected ErrParseInconsistency, got nil")
	}
}

func TestParseRejectsEmptyInput(t *testing.T) {
	_, err := Parse(strings.NewReader(""))
	if err == nil {
		t.Fatal("expected ErrParseInconsistency for empty input, got nil")
	}
}

// TestWriteParseRoundTrip checks spec.md §8 property 6: writing a
// parsed graph back out and re-parsing it yields identical original
// edges and covariances.
func TestWriteParseRoundTrip(t *testing.T) {
	g1, err := Parse(strings.NewReader(smallSE3Graph()))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	var buf strings.Builder
	if err := Write(&buf, g1); err != nil {
		t.Fatalf("Write: %v", err)
	}

	g2, err := Parse(strings.NewReader(buf.String()))
	if err != nil {
		t.Fatalf("re-Parse: %v", err)
	}

	if g2.Chain.N() != g1.Chain.N() || len(g2.Closures) != len(g1.Closures) {
		t.Fatalf("round trip changed shape: N=%d/%d closures=%d/%d",
			g2.Chain.N(), g1.Chain.N(), len(g2.Closures), len(g1.Closures))
	}
	for i := 1; i < g1.Chain.N(); i++ {
		a, b := g1.Chain.RelOriginal(i), g2.Chain.RelOriginal(i)
		if !scalar.EqualWithinAbs(a.T.X, b.T.X, tol) || !scalar.EqualWithinAbs(a.T.Y, b.T.Y, tol) ||
			!scalar.EqualWithinAbs(a.T.Z, b.T.Z, tol) {
			t.Fatalf("slot %d: RelOriginal translation changed across round trip: %v vs %v", i, a.T, b.T)
		}
		if g1.Chain.CovOriginal(i) != g2.Chain.CovOriginal(i) {
			t.Fatalf("slot %d: CovOriginal changed across round trip", i)
		}
	}
	for i, cl1 := range g1.Closures {
		cl2 := g2.Closures[i]
		if cl1.A != cl2.A || cl1.B != cl2.B {
			t.Fatalf("closure %d: (%d,%d) vs (%d,%d)", i, cl1.A, cl1.B, cl2.A, cl2.B)
		}
		if !scalar.EqualWithinAbs(cl1.Z.T.X, cl2.Z.T.X, tol) {
			t.Fatalf("closure %d: Z.T.X changed across round trip: %v vs %v", i, cl1.Z.T.X, cl2.Z.T.X)
		}
	}
}

func TestParseRejectsMixedVertexKinds(t *testing.T) {
	lines := []string{
		"VERTEX_RST3:QUAT 0 0 0 0 0 0 0 1",
		"VERTEX_SE3:QUAT 1 1 0 0 0 0 0 1",
	}
	// Mixed vertex kinds: SE3 wins since it appears, so only one
	// absolute pose is expected and the RST3 record is ignored; the SE3
	// vertex id 1 is then out of range.
	_, err := Parse(strings.NewReader(strings.Join(lines, "\n") + "\n"))
	if err == nil {
		t.Fatal("expected ErrParseInconsistency for mixed vertex kinds, got nil")
	}
}
