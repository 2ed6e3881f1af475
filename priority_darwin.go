//go:build darwin

// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package bgthread

import (
	"golang.org/x/sys/unix"
)

// platformHinter supports only the I/O hint, by toggling the darwin
// background state of the calling thread. There is no per-thread nice value.
type platformHinter struct{}

func (platformHinter) ApplyIOPriority(p IOPriority) error {
	if p.Class == IOClassNone {
		return nil
	}
	var prio int
	if p.Class == IOClassIdle {
		prio = unix.PRIO_DARWIN_BG
	}
	return unix.Setpriority(unix.PRIO_DARWIN_THREAD, 0, prio)
}

func (platformHinter) ApplyCPUPriority(CPUPriority) error {
	return nil
}

func currentThreadID() int {
	return 0
}
