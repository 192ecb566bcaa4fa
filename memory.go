// Copyright 2017 The Memory Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package memory implements a general-purpose dynamic memory allocator:
// a segregated free-list manager over a single growable arena, exposing
// the classical four-operation interface (Malloc, Free, Realloc,
// Calloc) with 16-byte payload alignment and stable addresses until
// release.
package memory

import (
	"reflect"
	"unsafe"

	"github.com/pkg/errors"
)

// Malloc returns a pointer to a newly allocated, uninitialized region of
// at least s bytes, 16-byte aligned. It returns nil, nil for s == 0. It
// returns a nil slice and ErrOutOfMemory if the arena cannot be grown to
// satisfy the request.
func (a *Allocator) Malloc(s int) ([]byte, error) {
	if trace {
		defer func() { a.traceCall("Malloc", s) }()
	}
	if s <= 0 {
		return nil, nil
	}

	b, err := a.malloc(uintptr(s))
	if err != nil {
		return nil, err
	}
	if debugChecks {
		a.assertConsistent("Malloc")
	}
	return b, nil
}

func (a *Allocator) malloc(s uintptr) ([]byte, error) {
	asize := adjustedSize(s)
	addr := a.findFit(asize)
	if addr == 0 {
		grown, err := a.extendHeap(maxUintptr(asize, chunkSize))
		if err != nil {
			return nil, errors.WithStack(err)
		}
		addr = grown
	}

	a.place(addr, asize)
	a.stats.Allocs++
	return a.payload(addr, s), nil
}

// Free releases the block backing b, which must have been returned by
// Malloc, Calloc or Realloc and not yet freed. Free is a no-op on a b of
// zero capacity (such as nil); a zero-length reslice of a returned buffer
// still frees its block.
func (a *Allocator) Free(b []byte) error {
	if trace {
		defer func() { a.traceCall("Free", len(b)) }()
	}
	b = b[:cap(b)]
	if len(b) == 0 {
		return nil
	}

	addr := a.blockOf(b)
	a.release(addr)
	a.stats.Allocs--
	if debugChecks {
		a.assertConsistent("Free")
	}
	return nil
}

// Calloc is like Malloc but additionally zeroes the returned region. It
// returns an error if n*s overflows.
func (a *Allocator) Calloc(n, s int) ([]byte, error) {
	if trace {
		defer func() { a.traceCall("Calloc", n, s) }()
	}
	if n <= 0 || s <= 0 {
		return nil, nil
	}

	total, err := mulOverflow(n, s)
	if err != nil {
		return nil, err
	}

	b, err := a.malloc(uintptr(total))
	if err != nil {
		return nil, err
	}
	for i := range b {
		b[i] = 0
	}
	if debugChecks {
		a.assertConsistent("Calloc")
	}
	return b, nil
}

// Realloc changes the size of the block backing b to s bytes, copying
// min(s, cap(b)) bytes of the original payload, and returns the
// (possibly new) slice. Realloc(nil, s) behaves as Malloc(s);
// Realloc(b, 0) behaves as Free(b) and returns nil.
func (a *Allocator) Realloc(b []byte, s int) ([]byte, error) {
	if trace {
		defer func() { a.traceCall("Realloc", len(b), s) }()
	}
	b = b[:cap(b)]
	if len(b) == 0 {
		return a.Malloc(s)
	}
	if s <= 0 {
		return nil, a.Free(b)
	}

	n, err := a.Malloc(s)
	if err != nil {
		return nil, err
	}
	copy(n, b)
	if err := a.Free(b); err != nil {
		return nil, err
	}
	return n, nil
}

// payload builds a byte slice of length n viewing the block's payload
// region, starting immediately after its header word.
func (a *Allocator) payload(addr uintptr, n uintptr) []byte {
	var b []byte
	sh := (*reflect.SliceHeader)(unsafe.Pointer(&b))
	sh.Data = addr + wordSize
	sh.Len = int(n)
	sh.Cap = int(a.blockSize(addr) - wordSize)
	return b
}

// UsableSize returns the number of payload bytes actually backing b,
// which may exceed len(b) when b's block was rounded up to the
// alignment or to the minimum block size.
func (a *Allocator) UsableSize(b []byte) int {
	b = b[:cap(b)]
	if len(b) == 0 {
		return 0
	}
	addr := a.blockOf(b)
	return int(a.blockSize(addr) - wordSize)
}

// blockOf recovers a block's header address from a payload slice
// previously returned by payload: the header always sits exactly one
// word before the payload, for both small and large allocated blocks.
func (a *Allocator) blockOf(b []byte) uintptr {
	return uintptr(unsafe.Pointer(&b[0])) - wordSize
}

func maxUintptr(x, y uintptr) uintptr {
	if x > y {
		return x
	}
	return y
}

// mulOverflow returns n*s as an int, or an error if the product
// overflows the platform's int range.
func mulOverflow(n, s int) (int, error) {
	if n != 0 && s != 0 {
		total := n * s
		if total/n != s {
			return 0, errors.Errorf("memory: calloc size overflow: %d * %d", n, s)
		}
		return total, nil
	}
	return 0, nil
}
