// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package bgthread

import (
	"errors"
	"fmt"
)

// Standard errors.
var (
	// ErrAlreadyStarted is returned when Start is called on a worker that is
	// not in StateNotStarted. A stopped worker cannot be restarted.
	ErrAlreadyStarted = errors.New("bgthread: worker already started")

	// ErrWorkerNotRunning is returned when a creation request is made on a
	// worker that is not in StateRunning. No waiting occurs.
	ErrWorkerNotRunning = errors.New("bgthread: worker is not running")

	// ErrThreadLaunch is matched by every [ThreadLaunchError], via [errors.Is].
	ErrThreadLaunch = errors.New("bgthread: failed to launch worker thread")

	// ErrConstruction is matched by every [ConstructionError], via [errors.Is].
	ErrConstruction = errors.New("bgthread: construction failed")

	// ErrGoexit is the cause of a [ConstructionError] for a factory that
	// called runtime.Goexit, which also terminates the worker.
	ErrGoexit = errors.New("bgthread: factory exited via runtime.Goexit")
)

// ThreadLaunchError indicates the [Launcher] refused to start the worker
// thread. The worker is left in StateNotStarted, and Start may be retried.
type ThreadLaunchError struct {
	Cause error
}

// Error implements the error interface.
func (e *ThreadLaunchError) Error() string {
	if e.Cause == nil {
		return ErrThreadLaunch.Error()
	}
	return ErrThreadLaunch.Error() + ": " + e.Cause.Error()
}

// Unwrap returns the underlying cause for use with [errors.Is] and [errors.As].
func (e *ThreadLaunchError) Unwrap() error {
	return e.Cause
}

// Is matches [ErrThreadLaunch].
func (e *ThreadLaunchError) Is(target error) bool {
	return target == ErrThreadLaunch
}

// ConstructionError wraps the failure of a factory function, run on the
// worker thread. Either the factory returned a non-nil error (Cause), or it
// panicked (Panicked is true, and Value holds the recovered value).
type ConstructionError struct {
	// Cause is the error returned by the factory, the recovered panic value
	// if it was an error, or ErrGoexit.
	Cause error
	// Value is the recovered panic value, if Panicked.
	Value any
	// Tag is the message tag of the factory that made the request.
	Tag string
	// Panicked indicates the factory panicked.
	Panicked bool
}

// Error implements the error interface.
func (e *ConstructionError) Error() string {
	switch {
	case e.Panicked:
		return fmt.Sprintf("bgthread: construction panicked (tag %q): %v", e.Tag, e.Value)
	case e.Cause != nil:
		return fmt.Sprintf("bgthread: construction failed (tag %q): %v", e.Tag, e.Cause)
	default:
		return ErrConstruction.Error()
	}
}

// Unwrap returns the underlying cause for use with [errors.Is] and [errors.As].
//
// If the factory panicked with a value that is not an error, returns nil.
func (e *ConstructionError) Unwrap() error {
	return e.Cause
}

// Is matches [ErrConstruction].
func (e *ConstructionError) Is(target error) bool {
	return target == ErrConstruction
}

// TimeoutError is returned by context-bound creation requests when the
// context is done before the worker completed the request. The construction
// itself is not cancelled.
type TimeoutError struct {
	Cause   error
	Message string
}

// Error implements the error interface.
func (e *TimeoutError) Error() string {
	if e.Message == "" {
		if e.Cause != nil {
			return "bgthread: wait for worker timed out: " + e.Cause.Error()
		}
		return "bgthread: wait for worker timed out"
	}
	return e.Message
}

// Unwrap returns the underlying cause for use with [errors.Is] and [errors.As].
func (e *TimeoutError) Unwrap() error {
	return e.Cause
}

// panicCause returns the panic value as an error, if it is one.
func panicCause(v any) error {
	if err, ok := v.(error); ok {
		return err
	}
	return nil
}
