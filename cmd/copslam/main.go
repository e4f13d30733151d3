// Copyright ©2024 The OpenSLAM-copslam Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// The copslam command reads a g2o-style pose-chain graph, distributes
// its loop closures along the chain in closed form, and writes the
// optimized graph back out.
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/OpenSLAM-org/openslam-copslam/driver"
	"github.com/OpenSLAM-org/openslam-copslam/g2o"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("copslam", flag.ContinueOnError)
	verbose := fs.Bool("verbose", false, "print per-closure progress messages")
	normalizer := fs.Float64("normalizer", 1.0, "global normalizer G damping every correction")
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "usage: copslam <input> <output> [one-pass|two-pass|no-scale]")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return 2
	}
	rest := fs.Args()
	if len(rest) < 2 {
		fs.Usage()
		return 2
	}

	inPath, outPath := rest[0], rest[1]
	methodArg := ""
	if len(rest) >= 3 {
		methodArg = rest[2]
	}

	method, ignoreScale, err := driver.ParseMethod(methodArg)
	if err != nil && errors.Is(err, driver.ErrUnknownMethod) {
		fmt.Fprintf(os.Stderr, "[WARNING] %v, falling back to two-pass\n", err)
	}

	in, err := os.Open(inPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "[ERROR] unable to open input file: %v\n", err)
		return 1
	}
	defer in.Close()

	fmt.Printf("[MESSAGE] Opening file: %s for reading\n", inPath)
	graph, err := g2o.Parse(in)
	if err != nil {
		fmt.Fprintf(os.Stderr, "[ERROR] %v\n", err)
		return 1
	}
	fmt.Printf("[MESSAGE] Solution space is %s\n", graph.Chain.Space())
	fmt.Printf("[MESSAGE] Number of absolute poses: %d\n", graph.Chain.N())
	fmt.Printf("[MESSAGE] Number of relative poses: %d\n", graph.Chain.N()-1)
	fmt.Printf("[MESSAGE] Number of  loop closures: %d\n", len(graph.Closures))

	cfg := driver.Config{
		G:           *normalizer,
		IgnoreScale: ignoreScale,
		Method:      method,
	}
	if *verbose {
		cfg.Log = os.Stdout
		fmt.Printf("\n[MESSAGE] Using %s method\n", method)
	}

	if err := driver.Run(graph.Chain, graph.Closures, cfg); err != nil {
		fmt.Fprintf(os.Stderr, "[ERROR] %v\n", err)
		return 1
	}

	out, err := os.Create(outPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "[ERROR] unable to create output file: %v\n", err)
		return 1
	}
	defer out.Close()

	fmt.Printf("[MESSAGE] Opening file: %s for writing\n", outPath)
	if err := g2o.Write(out, graph); err != nil {
		fmt.Fprintf(os.Stderr, "[ERROR] %v\n", err)
		return 1
	}

	return 0
}
