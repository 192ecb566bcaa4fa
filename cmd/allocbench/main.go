// Copyright 2017 The Memory Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command allocbench drives a synthetic allocate/free/resize workload
// against the allocator and reports throughput, playing the role a
// malloc-lab trace-file driver would: generate requests, apply them, and
// measure the outcome. It issues no Calloc requests and reports no
// fragmentation measure; its summary line gives the operation count,
// elapsed time, operations per second, live buffer count and the bytes
// reserved for the arena.
package main

import (
	"fmt"
	"math"
	"os"
	"time"

	"github.com/cznic/mathutil"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	memory "github.com/wSilber/Dynamic-Memory-Allocator"
)

var (
	arenaSize   int64
	opCount     int
	maxRequest  int
	seed        uint32
	checkEvery  int
	resizeRatio float64
)

func main() {
	root := &cobra.Command{
		Use:   "allocbench",
		Short: "Drive a synthetic allocation workload against the allocator",
		RunE:  run,
	}
	flags := root.Flags()
	flags.Int64Var(&arenaSize, "arena", 64<<20, "bytes of address space to reserve")
	flags.IntVar(&opCount, "ops", 200000, "number of allocate/free/resize requests to issue")
	flags.IntVar(&maxRequest, "max-size", 4096, "maximum request size in bytes")
	flags.Uint32Var(&seed, "seed", 42, "PRNG seed")
	flags.IntVar(&checkEvery, "check-every", 0, "run a consistency check every N operations (0 disables)")
	flags.Float64Var(&resizeRatio, "resize-ratio", 0.1, "fraction of operations that are resize rather than allocate/free")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "allocbench:", err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	a, err := memory.NewAllocatorSize(int(arenaSize))
	if err != nil {
		return errors.Wrap(err, "allocbench: reserving arena")
	}
	defer a.Close()

	rng, err := mathutil.NewFC32(1, math.MaxInt32, true)
	if err != nil {
		return errors.Wrap(err, "allocbench: seeding PRNG")
	}
	rng.Seed(int32(seed))

	var live [][]byte
	start := time.Now()
	for i := 0; i < opCount; i++ {
		switch {
		case len(live) > 0 && float64(rng.Next()%1000)/1000 < resizeRatio:
			idx := rng.Next() % len(live)
			b, err := a.Realloc(live[idx], rng.Next()%maxRequest+1)
			if err != nil {
				return errors.Wrap(err, "allocbench: resize")
			}
			live[idx] = b
		case len(live) == 0 || rng.Next()%2 == 0:
			b, err := a.Malloc(rng.Next()%maxRequest + 1)
			if err != nil {
				return errors.Wrap(err, "allocbench: allocate")
			}
			live = append(live, b)
		default:
			idx := rng.Next() % len(live)
			if err := a.Free(live[idx]); err != nil {
				return errors.Wrap(err, "allocbench: free")
			}
			live[idx] = live[len(live)-1]
			live = live[:len(live)-1]
		}

		if checkEvery > 0 && (i+1)%checkEvery == 0 {
			if err := a.Check(); err != nil {
				return errors.Wrapf(err, "allocbench: consistency check after %d ops", i+1)
			}
		}
	}
	elapsed := time.Since(start)

	stats := a.Stats()
	fmt.Printf("ops=%d elapsed=%s ops/s=%.0f live=%d bytes_reserved=%d\n",
		opCount, elapsed, float64(opCount)/elapsed.Seconds(), len(live), stats.Bytes)
	return nil
}
