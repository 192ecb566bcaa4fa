// Copyright 2017 The Memory Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package memory

import "log"

// trace, when true, makes Malloc, Free, Calloc and Realloc log the
// operation name and its arguments. It is a compile-time constant so the
// compiler can eliminate
// the logging branches entirely in a normal build.
const trace = false

// debugChecks, when true, makes every public operation run Check before
// returning and panic on the first violation found. It mirrors the
// dbg_ensures-style assertions a debug build of a C allocator would
// compile in, and costs O(heap size) per call, so it is off by default.
const debugChecks = false

func (a *Allocator) traceCall(op string, args ...interface{}) {
	if !trace {
		return
	}
	log.Printf("memory: %s %v", op, args)
}

// assertConsistent runs Check and panics if it fails. Callers guard every
// call site with `if debugChecks`.
func (a *Allocator) assertConsistent(where string) {
	if err := a.Check(); err != nil {
		panic("memory: " + where + ": " + err.Error())
	}
}
