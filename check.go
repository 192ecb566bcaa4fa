// Copyright 2017 The Memory Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package memory

import (
	"fmt"

	"github.com/pkg/errors"
)

// CheckCode identifies the specific invariant a CheckError reports on.
// The names and the violations they describe mirror the six named error
// codes (NEIGHBOR_FREE_ERROR et al.) the original C allocator's
// mm_checkheap returns.
type CheckCode int

const (
	// ErrNeighborsBothFree: two adjacent heap blocks are both free.
	ErrNeighborsBothFree CheckCode = -(iota + 1)
	// ErrPrevAllocMismatch: B'.prevAlloc does not match B.alloc.
	ErrPrevAllocMismatch
	// ErrAllocInFreeList: an allocated block appears on a segregated list.
	ErrAllocInFreeList
	// ErrHeaderFooterMismatch: a large free block's header and footer disagree.
	ErrHeaderFooterMismatch
	// ErrWrongSizeClass: a free block sits in a list other than its size dictates.
	ErrWrongSizeClass
	// ErrFreeCountMismatch: the heap walk and the list walk disagree on the free-block count.
	ErrFreeCountMismatch
	// ErrMisaligned: a block's payload address (one word past its header)
	// or its size is not a multiple of align.
	ErrMisaligned
	// ErrBrokenLink: a free list's prev/next chain does not agree with itself.
	ErrBrokenLink
)

func (c CheckCode) String() string {
	switch c {
	case ErrNeighborsBothFree:
		return "adjacent free blocks"
	case ErrPrevAllocMismatch:
		return "prevAlloc bit mismatch"
	case ErrAllocInFreeList:
		return "allocated block in free list"
	case ErrHeaderFooterMismatch:
		return "header/footer size or alloc mismatch"
	case ErrWrongSizeClass:
		return "free block in wrong size class"
	case ErrFreeCountMismatch:
		return "free block count mismatch between heap walk and list walk"
	case ErrMisaligned:
		return "misaligned block"
	case ErrBrokenLink:
		return "broken free list link"
	default:
		return "unknown check error"
	}
}

// CheckError reports one heap-consistency violation found by Check.
type CheckError struct {
	Code CheckCode
	Addr uintptr
}

func (e *CheckError) Error() string {
	return fmt.Sprintf("memory: consistency check failed: %s at 0x%x", e.Code, e.Addr)
}

// Check walks the heap and the segregated index and verifies every
// invariant in one pass each, returning the first violation found, or
// nil if none. It is safe to call at any time between public operations;
// it performs no mutation.
//
// Check is O(live blocks + live free blocks); callers that want it run
// automatically after every Malloc/Free/Realloc/Calloc can set
// debugChecks at build time.
func (a *Allocator) Check() error {
	freeInHeap, err := a.checkHeapWalk()
	if err != nil {
		return err
	}
	freeInLists, err := a.checkListWalk()
	if err != nil {
		return err
	}
	if freeInHeap != freeInLists {
		return errors.WithStack(&CheckError{Code: ErrFreeCountMismatch})
	}
	return nil
}

// checkHeapWalk verifies invariants 1, 3, 4 and 6 (alignment, prevAlloc
// consistency, coalescing completeness, header/footer agreement) and
// returns the number of free blocks encountered.
func (a *Allocator) checkHeapWalk() (int, error) {
	free := 0
	firstReal := a.base + wordSize
	epilogue := a.hi - wordSize

	for addr := firstReal; addr < epilogue; addr = a.nextBlock(addr) {
		size := a.blockSize(addr)
		if (addr+wordSize)%align != 0 || size%align != 0 || size < minBlockSize {
			return 0, errors.WithStack(&CheckError{Code: ErrMisaligned, Addr: addr})
		}

		alloc := a.blockAlloc(addr)
		if !alloc {
			free++
			if !a.blockSmall(addr) {
				footer := a.wordAt(addr + size - wordSize)
				header := a.wordAt(addr)
				if sizeOrPointer(footer) != sizeOrPointer(header) || isAlloc(footer) {
					return 0, errors.WithStack(&CheckError{Code: ErrHeaderFooterMismatch, Addr: addr})
				}
			}
		}

		next := a.nextBlock(addr)
		if a.blockPrevAlloc(next) != alloc {
			return 0, errors.WithStack(&CheckError{Code: ErrPrevAllocMismatch, Addr: next})
		}
		if !alloc && !a.blockAlloc(next) && next < epilogue {
			return 0, errors.WithStack(&CheckError{Code: ErrNeighborsBothFree, Addr: addr})
		}
	}
	return free, nil
}

// checkListWalk verifies invariants 5 and 7 (every listed block sits in
// the class its size dictates, and each list is a valid doubly-linked
// chain) and returns the total number of free blocks across all lists.
func (a *Allocator) checkListWalk() (int, error) {
	count := 0
	for c := 0; c < numClasses; c++ {
		var prev uintptr
		for addr := a.classes[c]; addr != 0; addr = a.freeNext(addr) {
			if a.blockAlloc(addr) {
				return 0, errors.WithStack(&CheckError{Code: ErrAllocInFreeList, Addr: addr})
			}
			if classOf(a.blockSize(addr)) != c {
				return 0, errors.WithStack(&CheckError{Code: ErrWrongSizeClass, Addr: addr})
			}
			if backPrev := a.freePrev(addr); backPrev != prev {
				return 0, errors.WithStack(&CheckError{Code: ErrBrokenLink, Addr: addr})
			}
			prev = addr
			count++
		}
	}
	return count, nil
}

// freePrev returns addr's free-list predecessor, regardless of class.
func (a *Allocator) freePrev(addr uintptr) uintptr {
	if a.blockSmall(addr) {
		return a.smallPrevFree(addr)
	}
	return a.linkAt(addr).prev
}
