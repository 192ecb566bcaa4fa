// Copyright 2017 The Memory Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package memory

import (
	"unsafe"

	"github.com/pkg/errors"
)

// DefaultArenaSize is the virtual address space reserved by NewAllocator.
// Reservation is cheap (the OS commits pages lazily) and this module
// never returns memory to the OS, so sizing generously upfront avoids a
// second reservation later at the cost of unused address space only.
const DefaultArenaSize = 1 << 30 // 1 GiB

// ErrOutOfMemory is returned by Malloc/Calloc when the reserved arena is
// exhausted and growArena can no longer extend the heap tail.
var ErrOutOfMemory = errors.New("memory: arena exhausted")

// Stats reports bookkeeping counters useful for benchmarking and for
// the allocbench CLI.
type Stats struct {
	Allocs int64 // number of live Malloc/Calloc allocations
	Bytes  int64 // bytes reserved from the OS for the arena
}

// Allocator is a single-threaded, footerless-allocated-block, segregated
// free-list memory allocator over one growable mmap'd arena. Its zero
// value is not ready for use; construct with NewAllocator or
// NewAllocatorSize.
type Allocator struct {
	arena   []byte  // the raw mmap'd reservation backing [base, base+cap)
	base    uintptr // H_lo
	hi      uintptr // H_hi, current heap tail (epilogue sits at hi-wordSize)
	capEnd  uintptr // base + len(arena); growArena never crosses this
	classes [numClasses]uintptr
	stats   Stats
}

// NewAllocator reserves DefaultArenaSize bytes of address space and
// initializes the heap (prologue/epilogue sentinels, one initial
// chunkSize free block).
func NewAllocator() (*Allocator, error) { return NewAllocatorSize(DefaultArenaSize) }

// NewAllocatorSize is like NewAllocator but lets the caller size the
// backing reservation explicitly.
func NewAllocatorSize(reserve int) (*Allocator, error) {
	if reserve <= 0 {
		return nil, errors.Errorf("memory: invalid arena size %d", reserve)
	}
	b, err := mmapReserve(reserve)
	if err != nil {
		return nil, errors.Wrap(err, "memory: reserving arena")
	}

	a := &Allocator{
		arena: b,
		base:  uintptr(unsafe.Pointer(&b[0])),
	}
	a.hi = a.base
	a.capEnd = a.base + uintptr(len(b))
	a.stats.Bytes = int64(len(b))
	if err := a.init(); err != nil {
		munmap(a.arena)
		return nil, err
	}
	return a, nil
}

// Close releases the reserved arena back to the OS. It is not necessary
// to Close an Allocator when exiting a process.
func (a *Allocator) Close() error {
	if a.arena == nil {
		return nil
	}
	err := munmap(a.arena)
	*a = Allocator{}
	return err
}

// Stats reports the allocator's current bookkeeping counters.
func (a *Allocator) Stats() Stats { return a.stats }

// growArena is the lower-level memory primitive: it appends n bytes to
// the heap tail and returns the old H_hi, or fails if the reservation is
// exhausted. n is always a positive multiple of align by the time it
// reaches here.
func (a *Allocator) growArena(n uintptr) (uintptr, error) {
	if a.hi+n > a.capEnd {
		return 0, ErrOutOfMemory
	}
	old := a.hi
	a.hi += n
	return old, nil
}

// init lays down the prologue/epilogue sentinels and extends the heap
// with one initial chunkSize free block.
func (a *Allocator) init() error {
	oldHi, err := a.growArena(2 * wordSize)
	if err != nil {
		return errors.Wrap(err, "memory: initializing heap")
	}
	prologue := oldHi
	epilogue := oldHi + wordSize
	a.setWordAt(prologue, packLarge(0, true, true))
	a.setWordAt(epilogue, packLarge(0, true, true))

	if _, err := a.extendHeap(chunkSize); err != nil {
		return errors.Wrap(err, "memory: initial heap extension")
	}
	return nil
}

// extendHeap rounds n up to the alignment, grows the arena, reuses the
// old epilogue word as the new free block's header, reinstalls the
// epilogue at the new tail, and coalesces the new block with whatever
// free block preceded it. Returns the address of the resulting free
// block, ready to be handed to place.
func (a *Allocator) extendHeap(n uintptr) (uintptr, error) {
	n = roundup(n, align)
	oldHi, err := a.growArena(n)
	if err != nil {
		return 0, err
	}

	blockAddr := oldHi - wordSize
	prevAlloc := a.blockPrevAlloc(blockAddr) // read before overwriting
	a.writeLargeFree(blockAddr, n, prevAlloc)

	newEpilogue := blockAddr + n
	a.setWordAt(newEpilogue, packLarge(0, true, false))

	return a.coalesceFree(blockAddr), nil
}
