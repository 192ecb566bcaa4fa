// Copyright 2017 The Memory Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package memory

// adjustedSize converts a user-visible request of s bytes into the
// block size that must be placed for it: one header word of overhead,
// rounded up to the alignment, clamped to the minimum block size.
func adjustedSize(s uintptr) uintptr {
	sz := roundup(s+wordSize, align)
	if sz < minBlockSize {
		sz = minBlockSize
	}
	return sz
}

// findFit performs a best-of-bestFitWindow search over the segregated
// index, starting at asize's own class and moving to larger classes. The
// candidate counter only decrements on size-acceptable candidates; a
// perfect-size match returns immediately.
func (a *Allocator) findFit(asize uintptr) uintptr {
	var best uintptr
	bestSize := ^uintptr(0)
	n := bestFitWindow
	for c := classOf(asize); c < numClasses; c++ {
		for addr := a.classes[c]; addr != 0; addr = a.freeNext(addr) {
			size := a.blockSize(addr)
			if size < asize {
				continue
			}
			n--
			if size == asize {
				return addr
			}
			if size < bestSize {
				best, bestSize = addr, size
			}
			if n == 0 {
				return best
			}
		}
	}
	return best
}

// place carves an allocation of asize bytes out of the free block at
// addr, splitting off and re-inserting the remainder when it is large
// enough to form a block of its own. addr is removed from its free list
// either way.
func (a *Allocator) place(addr, asize uintptr) {
	csize := a.blockSize(addr)
	prevAlloc := a.blockPrevAlloc(addr)
	rem := csize - asize
	a.removeFree(addr)

	if rem == 0 {
		a.allocateInPlace(addr, csize, prevAlloc)
		a.setPrevAlloc(a.nextBlock(addr), true)
		return
	}

	a.allocateInPlace(addr, asize, prevAlloc)
	remAddr := addr + asize
	if rem == minBlockSize {
		a.writeSmallFree(remAddr, 0, 0, true)
	} else {
		a.writeLargeFree(remAddr, rem, true)
	}
	a.insertFree(remAddr)
	a.setPrevAlloc(a.nextBlock(remAddr), false)
}

// allocateInPlace writes addr's header as allocated without touching its
// free-list membership (the caller has already removed it, or it was
// never inserted — used from place and from the initial grow path).
func (a *Allocator) allocateInPlace(addr, size uintptr, prevAlloc bool) {
	if size == minBlockSize {
		a.writeSmallAlloc(addr, prevAlloc)
	} else {
		a.writeLargeAllocHeader(addr, size, prevAlloc)
	}
}
