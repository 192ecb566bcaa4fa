// Copyright 2017 The Memory Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package memory

import (
	"bytes"
	"math"
	"testing"

	"github.com/cznic/mathutil"
	"github.com/stretchr/testify/require"
)

const quota = 16 << 20

func newTestAllocator(t *testing.T) *Allocator {
	t.Helper()
	a, err := NewAllocatorSize(64 << 20)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, a.Close()) })
	return a
}

func test1(t *testing.T, max int) {
	a := newTestAllocator(t)
	rem := quota
	var bufs [][]byte
	rng, err := mathutil.NewFC32(0, math.MaxInt32, true)
	require.NoError(t, err)

	rng.Seed(42)
	pos := rng.Pos()
	for rem > 0 {
		size := rng.Next()%max + 1
		rem -= size
		b, err := a.Malloc(size)
		require.NoError(t, err)

		bufs = append(bufs, b)
		for i := range b {
			b[i] = byte(rng.Next())
		}
	}
	require.NoError(t, a.Check())
	t.Logf("allocs %v, bytes %v", a.stats.Allocs, a.stats.Bytes)

	rng.Seek(pos)
	for i, b := range bufs {
		require.Equal(t, rng.Next()%max+1, len(b), "buffer %d", i)
		for j, g := range b {
			require.Equal(t, byte(rng.Next()), g, "buffer %d byte %d", i, j)
			b[j] = 0
		}
	}

	for i := range bufs {
		j := rng.Next() % len(bufs)
		bufs[i], bufs[j] = bufs[j], bufs[i]
	}

	for _, b := range bufs {
		require.NoError(t, a.Free(b))
	}
	require.NoError(t, a.Check())
	require.EqualValues(t, 0, a.stats.Allocs)
}

func Test1Small(t *testing.T) { test1(t, 1<<10) }
func Test1Big(t *testing.T)   { test1(t, 1<<16) }

func test2(t *testing.T, max int) {
	a := newTestAllocator(t)
	rem := quota
	var bufs [][]byte
	rng, err := mathutil.NewFC32(0, math.MaxInt32, true)
	require.NoError(t, err)

	rng.Seed(42)
	pos := rng.Pos()
	for rem > 0 {
		size := rng.Next()%max + 1
		rem -= size
		b, err := a.Malloc(size)
		require.NoError(t, err)

		bufs = append(bufs, b)
		for i := range b {
			b[i] = byte(rng.Next())
		}
	}

	rng.Seek(pos)
	for i, b := range bufs {
		require.Equal(t, rng.Next()%max+1, len(b), "buffer %d", i)
		for j, g := range b {
			require.Equal(t, byte(rng.Next()), g, "buffer %d byte %d", i, j)
			b[j] = 0
		}
		require.NoError(t, a.Free(b))
	}
	require.NoError(t, a.Check())
	require.EqualValues(t, 0, a.stats.Allocs)
}

func Test2Small(t *testing.T) { test2(t, 1<<10) }
func Test2Big(t *testing.T)   { test2(t, 1<<16) }

// test3 interleaves allocation and release in random order, exercising
// the coalescer under pressure, and checks the surviving buffers for
// cross-allocation corruption at the end.
func test3(t *testing.T, max int) {
	a := newTestAllocator(t)
	rem := quota
	m := map[*[]byte][]byte{}
	rng, err := mathutil.NewFC32(1, max, true)
	require.NoError(t, err)

	for rem > 0 {
		switch rng.Next() % 3 {
		case 0, 1: // 2/3 allocate
			size := rng.Next()
			rem -= size
			b, err := a.Malloc(size)
			require.NoError(t, err)

			m[&b] = append([]byte(nil), b...)
		default: // 1/3 free
			for k := range m {
				b := *k
				for i := range b {
					b[i] = 0
				}
				rem += len(b)
				require.NoError(t, a.Free(b))
				delete(m, k)
				break
			}
		}
	}
	require.NoError(t, a.Check())

	for k, v := range m {
		b := *k
		require.True(t, bytes.Equal(b, v), "corrupted heap")

		for i := range b {
			b[i] = 0
		}
		require.NoError(t, a.Free(b))
	}
	require.NoError(t, a.Check())
	require.EqualValues(t, 0, a.stats.Allocs)
}

func Test3Small(t *testing.T) { test3(t, 1<<10) }
func Test3Big(t *testing.T)   { test3(t, 1<<16) }

func TestFreeEmpty(t *testing.T) {
	a := newTestAllocator(t)
	b, err := a.Malloc(1)
	require.NoError(t, err)
	require.NoError(t, a.Free(b[:0]))
	require.EqualValues(t, 0, a.stats.Allocs)
}

func TestMallocZero(t *testing.T) {
	a := newTestAllocator(t)
	b, err := a.Malloc(0)
	require.NoError(t, err)
	require.Nil(t, b)
	require.EqualValues(t, 0, a.stats.Allocs)
}

func benchmarkFree(b *testing.B, size int) {
	a, err := NewAllocatorSize(256 << 20)
	require.NoError(b, err)
	defer a.Close()

	bufs := make([][]byte, b.N)
	for i := 0; i < b.N; i++ {
		p, err := a.Malloc(size)
		require.NoError(b, err)
		bufs[i] = p
	}
	b.ResetTimer()
	for _, p := range bufs {
		a.Free(p)
	}
	b.StopTimer()
}

func BenchmarkFree16(b *testing.B) { benchmarkFree(b, 1<<4) }
func BenchmarkFree32(b *testing.B) { benchmarkFree(b, 1<<5) }
func BenchmarkFree64(b *testing.B) { benchmarkFree(b, 1<<6) }

func benchmarkCalloc(b *testing.B, size int) {
	a, err := NewAllocatorSize(256 << 20)
	require.NoError(b, err)
	defer a.Close()

	bufs := make([][]byte, b.N)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		p, err := a.Calloc(1, size)
		require.NoError(b, err)
		bufs[i] = p
	}
	b.StopTimer()
	for _, p := range bufs {
		a.Free(p)
	}
}

func BenchmarkCalloc16(b *testing.B) { benchmarkCalloc(b, 1<<4) }
func BenchmarkCalloc32(b *testing.B) { benchmarkCalloc(b, 1<<5) }
func BenchmarkCalloc64(b *testing.B) { benchmarkCalloc(b, 1<<6) }

func benchmarkMalloc(b *testing.B, size int) {
	a, err := NewAllocatorSize(256 << 20)
	require.NoError(b, err)
	defer a.Close()

	bufs := make([][]byte, b.N)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		p, err := a.Malloc(size)
		require.NoError(b, err)
		bufs[i] = p
	}
	b.StopTimer()
	for _, p := range bufs {
		a.Free(p)
	}
}

func BenchmarkMalloc16(b *testing.B) { benchmarkMalloc(b, 1<<4) }
func BenchmarkMalloc32(b *testing.B) { benchmarkMalloc(b, 1<<5) }
func BenchmarkMalloc64(b *testing.B) { benchmarkMalloc(b, 1<<6) }
