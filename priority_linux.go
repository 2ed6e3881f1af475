//go:build linux

// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package bgthread

import (
	"golang.org/x/sys/unix"
)

const (
	ioprioWhoProcess = 1
	ioprioClassShift = 13
)

// platformHinter uses ioprio_set and setpriority, both of which target a
// single thread when given a thread id.
type platformHinter struct{}

func (platformHinter) ApplyIOPriority(p IOPriority) error {
	if p.Class == IOClassNone {
		return nil
	}
	prio := uintptr(p.Class)<<ioprioClassShift | uintptr(p.Level)
	_, _, errno := unix.Syscall(unix.SYS_IOPRIO_SET, ioprioWhoProcess, uintptr(unix.Gettid()), prio)
	if errno != 0 {
		return errno
	}
	return nil
}

func (platformHinter) ApplyCPUPriority(p CPUPriority) error {
	nice, ok := p.niceValue()
	if !ok {
		return nil
	}
	return unix.Setpriority(unix.PRIO_PROCESS, unix.Gettid(), nice)
}

// currentThreadID returns the id of the calling OS thread.
func currentThreadID() int {
	return unix.Gettid()
}
