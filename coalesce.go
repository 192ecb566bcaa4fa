// Copyright 2017 The Memory Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package memory

// coalesceFree merges the free block at addr with any free heap
// neighbours, re-establishing invariant 4 (no two adjacent free blocks),
// inserts the (possibly grown) result into the segregated index, and
// clears its successor's prevAlloc bit. Returns the address of the
// resulting block, which may be addr itself or its left neighbour.
//
// addr must already carry a valid free header/footer (or, for a small
// block, free header/footer pair) before this is called; release and
// extendHeap both do that before delegating here.
func (a *Allocator) coalesceFree(addr uintptr) uintptr {
	prevAlloc := a.blockPrevAlloc(addr)
	next := a.nextBlock(addr)
	nextAlloc := a.blockAlloc(next)
	size := a.blockSize(addr)

	switch {
	case prevAlloc && nextAlloc:
		// Surrounded by allocated blocks; nothing to merge.
	case prevAlloc && !nextAlloc:
		a.removeFree(next)
		size += a.blockSize(next)
	case !prevAlloc && nextAlloc:
		prev := a.prevBlock(addr)
		a.removeFree(prev)
		size += a.blockSize(prev)
		addr = prev
	default: // !prevAlloc && !nextAlloc
		prev := a.prevBlock(addr)
		a.removeFree(prev)
		a.removeFree(next)
		size += a.blockSize(prev) + a.blockSize(next)
		addr = prev
	}

	finalPrevAlloc := a.blockPrevAlloc(addr)
	if size == minBlockSize {
		a.writeSmallFree(addr, 0, 0, finalPrevAlloc)
	} else {
		a.writeLargeFree(addr, size, finalPrevAlloc)
	}
	a.insertFree(addr)
	a.setPrevAlloc(a.nextBlock(addr), false)
	return addr
}

// release marks the allocated block at addr free and coalesces it with
// any free neighbours.
func (a *Allocator) release(addr uintptr) {
	size := a.blockSize(addr)
	prevAlloc := a.blockPrevAlloc(addr)
	if size == minBlockSize {
		a.writeSmallFree(addr, 0, 0, prevAlloc)
	} else {
		a.writeLargeFree(addr, size, prevAlloc)
	}
	a.setPrevAlloc(a.nextBlock(addr), false)
	a.coalesceFree(addr)
}
