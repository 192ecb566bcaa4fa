// Copyright 2017 The Memory Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package memory

// nextBlock returns the address of B's heap neighbour to the right. It is
// always valid; it yields the epilogue address when B is the last real
// block.
func (a *Allocator) nextBlock(addr uintptr) uintptr {
	return addr + a.blockSize(addr)
}

// prevBlock returns the address of B's heap neighbour to the left by
// reading the word immediately preceding B's header. The caller MUST have
// established prevAlloc(B) == false first: an allocated large block
// carries no footer, so there would be nothing valid to read.
func (a *Allocator) prevBlock(addr uintptr) uintptr {
	footer := a.wordAt(addr - wordSize)
	var size uintptr
	if isSmall(footer) {
		size = minBlockSize
	} else {
		size = sizeOrPointer(footer)
	}
	return addr - size
}
