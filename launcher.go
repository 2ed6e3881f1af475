// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package bgthread

// Launcher starts the execution context of a worker. Launch must either
// arrange for entry to be called exactly once, on a new goroutine, or return
// a non-nil error without ever calling it.
//
// The entry function locks itself to its OS thread, see [runtime.LockOSThread].
type Launcher interface {
	Launch(entry func()) error
}

// LauncherFunc adapts a function to a [Launcher].
type LauncherFunc func(entry func()) error

var _ Launcher = LauncherFunc(nil)

// Launch calls fn(entry).
func (fn LauncherFunc) Launch(entry func()) error {
	return fn(entry)
}

// goLauncher is the default Launcher, the go statement cannot fail.
type goLauncher struct{}

func (goLauncher) Launch(entry func()) error {
	go entry()
	return nil
}
