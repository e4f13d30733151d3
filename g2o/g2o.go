// Copyright ©2024 The OpenSLAM-copslam Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package g2o reads and writes the g2o-style text format COP-SLAM uses
// for pose-chain graphs: VERTEX_SE3:QUAT / VERTEX_RT3:QUAT /
// VERTEX_RST3:QUAT vertex records and the matching EDGE_* records, with
// a 21-value upper-triangular 6x6 covariance trailing every edge. This
// package is out of the optimization core (spec.md §1): it only turns
// text into a *chain.Chain plus []chain.Closure and back.
package g2o

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/OpenSLAM-org/openslam-copslam/chain"
	"github.com/OpenSLAM-org/openslam-copslam/pose"
)

// ErrIOUnavailable is returned when the input or output stream cannot
// be used at all (the caller is expected to have already turned a
// path into a reader/writer; this covers reads/writes failing outright).
var ErrIOUnavailable = errors.New("g2o: stream unavailable")

// ErrParseInconsistency is returned when the observed vertex/edge
// counts disagree with the counts implied by the vertex tags seen in
// a first pass over the file, or when a record is malformed. Per
// spec.md §7 this is fatal: the Driver must not run.
var ErrParseInconsistency = errors.New("g2o: parse inconsistency")

const (
	vertexSE3  = "VERTEX_SE3:QUAT"
	vertexRT3  = "VERTEX_RT3:QUAT"
	vertexRST3 = "VERTEX_RST3:QUAT"
	edgeSE3    = "EDGE_SE3:QUAT"
	edgeRT3    = "EDGE_RT3:QUAT"
	edgeRST3   = "EDGE_RST3:QUAT"
)

// Graph is the parsed contents of a g2o-style file: a chain ready for
// driver.Run, plus the loop closures driving it.
type Graph struct {
	Chain    *chain.Chain
	Closures []chain.Closure
}

func tagsFor(space chain.Space) (vertex, edge string) {
	switch space {
	case chain.Sim3:
		return vertexRST3, edgeRST3
	case chain.RxT3:
		return vertexRT3, edgeRT3
	default:
		return vertexSE3, edgeSE3
	}
}

// Parse reads a full g2o-style graph from r. It makes two passes over
// the input (buffering it in memory, mirroring the original parser's
// rewind-and-recount strategy) so that chain storage can be allocated
// to its final size up front, with no reallocation once the Driver runs.
func Parse(r io.Reader) (*Graph, error) {
	lines, err := readNonEmptyLines(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIOUnavailable, err)
	}

	space := chain.SE3
	var naposes, naposesSE3, naposesSim3, naposesRxT3 int
	for _, line := range lines {
		switch {
		case strings.HasPrefix(line, vertexSE3):
			naposesSE3++
		case strings.HasPrefix(line, vertexRST3):
			naposesSim3++
		case strings.HasPrefix(line, vertexRT3):
			naposesRxT3++
		}
	}
	switch {
	case naposesSE3 > 0:
		space, naposes = chain.SE3, naposesSE3
	case naposesSim3 > 0:
		space, naposes = chain.Sim3, naposesSim3
	case naposesRxT3 > 0:
		space, naposes = chain.RxT3, naposesRxT3
	default:
		return nil, fmt.Errorf("%w: no vertex records found", ErrParseInconsistency)
	}
	if naposes == 0 {
		return nil, fmt.Errorf("%w: zero absolute poses", ErrParseInconsistency)
	}

	vertexTag, edgeTag := tagsFor(space)
	expNPoses := naposes - 1
	expNClosures := len(lines) - (expNPoses + naposes)
	if expNClosures < 0 {
		return nil, fmt.Errorf("%w: fewer edge records than relative poses require", ErrParseInconsistency)
	}

	c := chain.New(naposes, space)
	closures := make([]chain.Closure, 0, expNClosures)

	var gotAPoses, gotPoses, gotClosures int
	for _, line := range lines {
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case vertexTag:
			id, t, r, err := parseVertex(fields)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrParseInconsistency, err)
			}
			if id < 0 || id >= naposes {
				return nil, fmt.Errorf("%w: vertex id %d out of range", ErrParseInconsistency, id)
			}
			c.SetAbs(id, pose.New(t, r))
			gotAPoses++

		case edgeTag:
			i, j, z, scale, cov, err := parseEdge(fields, space)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrParseInconsistency, err)
			}
			wt, wr := informationScalars(cov)

			if j-i == 1 {
				if j < 1 || j >= naposes {
					return nil, fmt.Errorf("%w: relative edge endpoint %d out of range", ErrParseInconsistency, j)
				}
				c.SetRelOriginal(j, z)
				c.SetWt(j, wt)
				c.SetWr(j, wr)
				c.SetCovOriginal(j, cov)
				gotPoses++
				continue
			}

			a, b, zc := i, j, z
			if j < i {
				a, b = j, i
				zc = z.Inverse()
			}
			closures = append(closures, chain.Closure{
				A: a, B: b, Z: zc, Wt: wt, Wr: wr, Scale: scale, Cov: cov,
			})
			gotClosures++
		}
	}

	if gotAPoses != naposes || gotPoses != expNPoses || gotClosures != expNClosures {
		return nil, fmt.Errorf("%w: absolute poses %d/%d, relative poses %d/%d, closures %d/%d",
			ErrParseInconsistency, gotAPoses, naposes, gotPoses, expNPoses, gotClosures, expNClosures)
	}

	return &Graph{Chain: c, Closures: closures}, nil
}

func readNonEmptyLines(r io.Reader) ([]string, error) {
	var lines []string
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line != "" {
			lines = append(lines, line)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return lines, nil
}

func parseVertex(fields []string) (id int, t pose.Vec, r pose.Rotation, err error) {
	if len(fields) < 9 {
		return 0, pose.Vec{}, pose.Rotation{}, fmt.Errorf("vertex record has %d fields, want 9", len(fields))
	}
	nums, err := parseFloats(fields[2:9])
	if err != nil {
		return 0, pose.Vec{}, pose.Rotation{}, err
	}
	id, err = strconv.Atoi(fields[1])
	if err != nil {
		return 0, pose.Vec{}, pose.Rotation{}, fmt.Errorf("vertex id: %v", err)
	}
	t = pose.Vec{X: nums[0], Y: nums[1], Z: nums[2]}
	r = pose.NewRotationFromQuat(nums[3], nums[4], nums[5], nums[6])
	return id, t, r, nil
}

func parseEdge(fields []string, space chain.Space) (i, j int, z pose.Pose, scale float64, cov [21]float64, err error) {
	scale = 1.0
	hasScale := space == chain.Sim3
	want := 2 + 7 + 21
	if hasScale {
		want++
	}
	if len(fields) < want+1 {
		return 0, 0, pose.Pose{}, 0, cov, fmt.Errorf("edge record has %d fields, want %d", len(fields), want+1)
	}

	i, err = strconv.Atoi(fields[1])
	if err != nil {
		return 0, 0, pose.Pose{}, 0, cov, fmt.Errorf("edge i: %v", err)
	}
	j, err = strconv.Atoi(fields[2])
	if err != nil {
		return 0, 0, pose.Pose{}, 0, cov, fmt.Errorf("edge j: %v", err)
	}

	nums, err := parseFloats(fields[3:10])
	if err != nil {
		return 0, 0, pose.Pose{}, 0, cov, err
	}
	t := pose.Vec{X: nums[0], Y: nums[1], Z: nums[2]}
	r := pose.NewRotationFromQuat(nums[3], nums[4], nums[5], nums[6])
	z = pose.New(t, r)

	covStart := 10
	if hasScale {
		scale, err = strconv.ParseFloat(fields[10], 64)
		if err != nil {
			return 0, 0, pose.Pose{}, 0, cov, fmt.Errorf("edge scale: %v", err)
		}
		covStart = 11
	}

	covNums, err := parseFloats(fields[covStart : covStart+21])
	if err != nil {
		return 0, 0, pose.Pose{}, 0, cov, err
	}
	copy(cov[:], covNums)

	return i, j, z, scale, cov, nil
}

func parseFloats(fields []string) ([]float64, error) {
	out := make([]float64, len(fields))
	for k, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, fmt.Errorf("field %d (%q): %v", k, f, err)
		}
		out[k] = v
	}
	return out, nil
}

// informationScalars inverts the 6x6 covariance block (stored on the
// edge as an information-style upper triangle) into a variance matrix
// and applies the mean-std-of-diagonal heuristic of spec.md §6:
// w_t uses V's translation block (indices 0..2), w_r its rotation
// block (indices 3..5). The variance matrix is recovered with an LU
// solve against the identity rather than a hand-rolled 6x6 inverse,
// matching gonum's own Dense.Inverse idiom.
func informationScalars(cov [21]float64) (wt, wr float64) {
	c := mat.NewDense(6, 6, nil)
	k := 0
	for row := 0; row < 6; row++ {
		for col := row; col < 6; col++ {
			c.Set(row, col, cov[k])
			c.Set(col, row, cov[k])
			k++
		}
	}

	var lu mat.LU
	lu.Factorize(c)
	var v mat.Dense
	if err := lu.SolveTo(&v, false, mat.NewDense(6, 6, identity6)); err != nil {
		// A singular information block has no physical meaning; fall
		// back to unit variance so the chain stays well-posed.
		return 1, 1
	}

	sd := func(idx int) float64 {
		x := v.At(idx, idx)
		if x < 0 {
			x = 0
		}
		return math.Sqrt(x)
	}
	wt = square((sd(0) + sd(1) + sd(2)) / 3)
	wr = square((sd(3) + sd(4) + sd(5)) / 3)
	return wt, wr
}

var identity6 = []float64{
	1, 0, 0, 0, 0, 0,
	0, 1, 0, 0, 0, 0,
	0, 0, 1, 0, 0, 0,
	0, 0, 0, 1, 0, 0,
	0, 0, 0, 0, 1, 0,
	0, 0, 0, 0, 0, 1,
}

func square(x float64) float64 { return x * x }

// Write emits g's absolute poses, then for every relative edge its
// R_i^original with its original covariance, interleaved with any loop
// closures ending at that slot — spec.md §6's output layout, chosen so
// a downstream consumer sees each slot's relative edge immediately
// followed by the closures it resolves.
func Write(w io.Writer, g *Graph) error {
	bw := bufio.NewWriter(w)
	c := g.Chain
	vertexTag, edgeTag := tagsFor(c.Space())

	for i := 0; i < c.N(); i++ {
		if err := writeVertex(bw, vertexTag, i, c.Abs(i)); err != nil {
			return fmt.Errorf("%w: %v", ErrIOUnavailable, err)
		}
	}

	closuresByEnd := make(map[int][]chain.Closure, len(g.Closures))
	for _, cl := range g.Closures {
		closuresByEnd[cl.B] = append(closuresByEnd[cl.B], cl)
	}

	for i := 1; i < c.N(); i++ {
		if err := writeEdge(bw, edgeTag, i-1, i, c.RelOriginal(i), 1.0, c.CovOriginal(i), c.Space()); err != nil {
			return fmt.Errorf("%w: %v", ErrIOUnavailable, err)
		}
		for _, cl := range closuresByEnd[i] {
			if err := writeEdge(bw, edgeTag, cl.A, cl.B, cl.Z, cl.Scale, cl.Cov, c.Space()); err != nil {
				return fmt.Errorf("%w: %v", ErrIOUnavailable, err)
			}
		}
	}

	if err := bw.Flush(); err != nil {
		return fmt.Errorf("%w: %v", ErrIOUnavailable, err)
	}
	return nil
}

func writeVertex(w *bufio.Writer, tag string, id int, p pose.Pose) error {
	x, y, z, qw := p.R.Quat()
	_, err := fmt.Fprintf(w, "%s %d %s %s %s %s %s %s %s\n",
		tag, id,
		formatFloat(p.T.X), formatFloat(p.T.Y), formatFloat(p.T.Z),
		formatFloat(x), formatFloat(y), formatFloat(z), formatFloat(qw))
	return err
}

func writeEdge(w *bufio.Writer, tag string, i, j int, z pose.Pose, scale float64, cov [21]float64, space chain.Space) error {
	qx, qy, qz, qw := z.R.Quat()
	if _, err := fmt.Fprintf(w, "%s %d %d %s %s %s %s %s %s %s",
		tag, i, j,
		formatFloat(z.T.X), formatFloat(z.T.Y), formatFloat(z.T.Z),
		formatFloat(qx), formatFloat(qy), formatFloat(qz), formatFloat(qw)); err != nil {
		return err
	}
	if space == chain.Sim3 {
		if _, err := fmt.Fprintf(w, " %s", formatFloat(scale)); err != nil {
			return err
		}
	}
	for _, v := range cov {
		if _, err := fmt.Fprintf(w, " %s", formatFloat(v)); err != nil {
			return err
		}
	}
	_, err := fmt.Fprint(w, "\n")
	return err
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'e', -1, 64)
}
