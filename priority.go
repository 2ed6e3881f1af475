// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package bgthread

import (
	"fmt"
)

// IOPriorityClass is an I/O scheduling class, numbered as per the Linux
// IOPRIO_CLASS_* constants.
type IOPriorityClass uint8

const (
	// IOClassNone means no I/O priority hint, the zero value.
	IOClassNone IOPriorityClass = iota
	// IOClassRealTime gets first access to the disk.
	IOClassRealTime
	// IOClassBestEffort is the default class of most processes.
	IOClassBestEffort
	// IOClassIdle only gets disk time when no other program asks for it.
	IOClassIdle
)

const (
	// maxIOLevel is the lowest priority level within an I/O class.
	maxIOLevel = 7
	// defaultIOLevel is the level used for the idle class.
	defaultIOLevel = 4
)

// String returns a human-readable representation of the class.
func (c IOPriorityClass) String() string {
	switch c {
	case IOClassNone:
		return "None"
	case IOClassRealTime:
		return "RealTime"
	case IOClassBestEffort:
		return "BestEffort"
	case IOClassIdle:
		return "Idle"
	default:
		return fmt.Sprintf("IOPriorityClass(%d)", uint8(c))
	}
}

// IOPriority is an I/O scheduling hint. The zero value applies no hint.
// Level is 0 (highest) to 7 (lowest), and is only meaningful for the
// real-time and best-effort classes.
type IOPriority struct {
	Class IOPriorityClass
	Level uint8
}

// IOPriorityIdle returns the idle I/O priority.
func IOPriorityIdle() IOPriority {
	return IOPriority{Class: IOClassIdle, Level: defaultIOLevel}
}

// IOPriorityBestEffort returns a best-effort I/O priority, with level n,
// clamped to 0-7.
func IOPriorityBestEffort(n int) IOPriority {
	return IOPriority{Class: IOClassBestEffort, Level: clampIOLevel(n)}
}

// IOPriorityRealTime returns a real-time I/O priority, with level n, clamped
// to 0-7. Typically requires elevated privileges, and will otherwise be
// silently ignored.
func IOPriorityRealTime(n int) IOPriority {
	return IOPriority{Class: IOClassRealTime, Level: clampIOLevel(n)}
}

func (p IOPriority) String() string {
	if p.Class == IOClassNone || p.Class == IOClassIdle {
		return p.Class.String()
	}
	return fmt.Sprintf("%s(%d)", p.Class, p.Level)
}

func clampIOLevel(n int) uint8 {
	if n < 0 {
		return 0
	}
	if n > maxIOLevel {
		return maxIOLevel
	}
	return uint8(n)
}

// CPUPriority is a CPU scheduling hint. The zero value (CPUInherit) applies
// no hint, and the thread keeps the priority of the process.
type CPUPriority int8

const (
	CPUInherit CPUPriority = iota
	CPUIdle
	CPULow
	CPUNormal
	CPUHigh
	CPUTimeCritical
)

// String returns a human-readable representation of the priority.
func (p CPUPriority) String() string {
	switch p {
	case CPUInherit:
		return "Inherit"
	case CPUIdle:
		return "Idle"
	case CPULow:
		return "Low"
	case CPUNormal:
		return "Normal"
	case CPUHigh:
		return "High"
	case CPUTimeCritical:
		return "TimeCritical"
	default:
		return fmt.Sprintf("CPUPriority(%d)", int8(p))
	}
}

// niceValue maps the priority to a unix nice value, the second return value
// is false for CPUInherit, or any unknown value.
func (p CPUPriority) niceValue() (int, bool) {
	switch p {
	case CPUIdle:
		return 19, true
	case CPULow:
		return 10, true
	case CPUNormal:
		return 0, true
	case CPUHigh:
		return -5, true
	case CPUTimeCritical:
		return -10, true
	default:
		return 0, false
	}
}

// PriorityHinter applies scheduling hints to the calling OS thread. Methods
// are only called from the worker goroutine, while it is locked to its OS
// thread. Any error is advisory: the worker logs and discards it.
type PriorityHinter interface {
	ApplyIOPriority(p IOPriority) error
	ApplyCPUPriority(p CPUPriority) error
}

// NoopPriorityHinter accepts and ignores every hint.
type NoopPriorityHinter struct{}

var _ PriorityHinter = NoopPriorityHinter{}

// ApplyIOPriority does nothing.
func (NoopPriorityHinter) ApplyIOPriority(IOPriority) error { return nil }

// ApplyCPUPriority does nothing.
func (NoopPriorityHinter) ApplyCPUPriority(CPUPriority) error { return nil }

// DefaultPriorityHinter returns the implementation for the current platform,
// which is a [NoopPriorityHinter] on anything other than Linux and Darwin.
func DefaultPriorityHinter() PriorityHinter {
	return platformHinter{}
}
