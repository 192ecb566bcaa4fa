// Copyright 2011 Evan Shaw. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE-MMAP-GO file.

//go:build darwin || dragonfly || freebsd || linux || openbsd || solaris || netbsd

// Modifications (c) 2017 The Memory Authors.

package memory

import "golang.org/x/sys/unix"

// mmapReserve reserves size bytes of anonymous, zero-filled, read-write
// memory. The OS commits physical pages lazily as they are touched, so
// reserving generously up front (see DefaultArenaSize) costs address
// space, not RAM.
func mmapReserve(size int) ([]byte, error) {
	return unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANON)
}

func munmap(b []byte) error {
	if len(b) == 0 {
		return nil
	}
	return unix.Munmap(b)
}
