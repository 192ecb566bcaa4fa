// Copyright 2017 The Memory Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package memory

// classOf returns the size-class index (0..numClasses-1) that a block of
// the given size belongs to.
//
//	0  exactly 16
//	1  (16, 32]
//	2  (32, 64]
//	3  (64, 128]
//	4  (128, 256]
//	5  (256, 512]
//	6  > 512
func classOf(size uintptr) int {
	switch {
	case size == minBlockSize:
		return 0
	case size <= 32:
		return 1
	case size <= 64:
		return 2
	case size <= 128:
		return 3
	case size <= 256:
		return 4
	case size <= 512:
		return 5
	default:
		return 6
	}
}

// freeNext returns the next free-list neighbour of addr, regardless of
// which class (and therefore which link representation) it belongs to.
func (a *Allocator) freeNext(addr uintptr) uintptr {
	if a.blockSmall(addr) {
		return a.smallNextFree(addr)
	}
	return a.linkAt(addr).next
}

// insertFree pushes addr onto the head of its size class's list. addr's
// header/footer must already be written as free before calling this.
func (a *Allocator) insertFree(addr uintptr) {
	c := classOf(a.blockSize(addr))
	head := a.classes[c]
	if c == 0 {
		prevAlloc := a.blockPrevAlloc(addr)
		a.writeSmallFree(addr, head, 0, prevAlloc)
		if head != 0 {
			a.writeSmallFree(head, a.smallNextFree(head), addr, a.blockPrevAlloc(head))
		}
	} else {
		link := a.linkAt(addr)
		link.prev = 0
		link.next = head
		if head != 0 {
			a.linkAt(head).prev = addr
		}
	}
	a.classes[c] = addr
}

// removeFree unlinks addr from its size class's list.
func (a *Allocator) removeFree(addr uintptr) {
	c := classOf(a.blockSize(addr))
	if c == 0 {
		next := a.smallNextFree(addr)
		prev := a.smallPrevFree(addr)
		if prev != 0 {
			a.writeSmallFree(prev, next, a.smallPrevFree(prev), a.blockPrevAlloc(prev))
		} else {
			a.classes[0] = next
		}
		if next != 0 {
			a.writeSmallFree(next, a.smallNextFree(next), prev, a.blockPrevAlloc(next))
		}
		return
	}

	link := a.linkAt(addr)
	if link.prev != 0 {
		a.linkAt(link.prev).next = link.next
	} else {
		a.classes[c] = link.next
	}
	if link.next != 0 {
		a.linkAt(link.next).prev = link.prev
	}
}
