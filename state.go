// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package bgthread

import (
	"sync/atomic"
)

// State represents the lifecycle state of a [Worker].
//
// State Machine:
//
//	StateNotStarted → StateStarting   [Start()]
//	StateStarting   → StateRunning    [worker goroutine ready]
//	StateStarting   → StateNotStarted [launch failed]
//	StateStarting   → StateStopping   [Stop()]
//	StateRunning    → StateStopping   [Stop()]
//	StateNotStarted → StateStopped    [Stop() before Start()]
//	StateStopping   → StateStopped    [loop exit]
//	StateRunning    → StateStopped    [loop exit via runtime.Goexit]
//	StateStopped    → (terminal)
//
// Use tryTransition (CAS) for every transition except the final store of
// StateStopped, which is only ever performed by the worker goroutine (or by
// Stop, for a worker that was never started).
type State uint32

const (
	// StateNotStarted indicates the worker has been created but not started.
	StateNotStarted State = iota
	// StateStarting indicates Start has launched the worker goroutine, which
	// has not yet signaled readiness.
	StateStarting
	// StateRunning indicates the run loop is accepting creation requests.
	StateRunning
	// StateStopping indicates Stop has been requested, and the loop is
	// draining already accepted requests.
	StateStopping
	// StateStopped indicates the worker goroutine has exited.
	StateStopped
)

// String returns a human-readable representation of the state.
func (s State) String() string {
	switch s {
	case StateNotStarted:
		return "NotStarted"
	case StateStarting:
		return "Starting"
	case StateRunning:
		return "Running"
	case StateStopping:
		return "Stopping"
	case StateStopped:
		return "Stopped"
	default:
		return "Unknown"
	}
}

// fastState is a lock-free state machine.
type fastState struct {
	v atomic.Uint32
}

func (s *fastState) load() State {
	return State(s.v.Load())
}

func (s *fastState) store(state State) {
	s.v.Store(uint32(state))
}

func (s *fastState) tryTransition(from, to State) bool {
	return s.v.CompareAndSwap(uint32(from), uint32(to))
}

// transitionAny attempts each source state in order, returning the state that
// was replaced, and true, on success.
func (s *fastState) transitionAny(validFrom []State, to State) (State, bool) {
	for _, from := range validFrom {
		if s.v.CompareAndSwap(uint32(from), uint32(to)) {
			return from, true
		}
	}
	return 0, false
}
