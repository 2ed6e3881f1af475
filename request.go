// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package bgthread

import (
	"io"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// request phases, see request.complete and request.abandon
const (
	requestPending uint32 = iota
	requestCompleted
	requestAbandoned
)

// request is a single creation request, shared by the requesting goroutine
// and the worker goroutine only for its lifetime.
//
// The value and err fields are written only by the worker, prior to done
// being closed, and may only be read by the requester after done is closed.
type request[T any] struct {
	value T
	err   error
	fn    func() (T, error)
	done  chan struct{}
	tag   string
	phase atomic.Uint32
	id    uuid.UUID
}

var _ task = (*request[any])(nil)

func newRequest[T any](tag string, fn func() (T, error)) *request[T] {
	return &request[T]{
		fn:   fn,
		tag:  tag,
		id:   uuid.New(),
		done: make(chan struct{}),
	}
}

// run invokes the factory function, on the worker goroutine. A panic or
// runtime.Goexit is converted into a ConstructionError, and the request is
// always completed.
func (r *request[T]) run(w *Worker) {
	var (
		returned bool
		outcome  = OutcomeError
		start    = time.Now()
	)

	defer func() {
		if rec := recover(); rec != nil {
			outcome = OutcomePanic
			r.err = &ConstructionError{
				Cause:    panicCause(rec),
				Value:    rec,
				Tag:      r.tag,
				Panicked: true,
			}
			if w.failureLogAllowed(r.tag) {
				w.logger.Err().
					Str(FieldTag, r.tag).
					Str(FieldRequestID, r.id.String()).
					Any(`panic`, rec).
					Log(`factory panicked`)
			}
		} else if !returned {
			r.err = &ConstructionError{Cause: ErrGoexit, Tag: r.tag}
		}

		w.metrics.observeConstruction(w.name, r.tag, time.Since(start))

		if !r.complete() {
			outcome = OutcomeAbandoned
			r.dispose(w)
		} else if r.err == nil {
			w.own(r.value)
		}

		w.metrics.observeRequest(w.name, r.tag, outcome)
	}()

	value, err := r.fn()
	returned = true

	if err != nil {
		r.err = &ConstructionError{Cause: err, Tag: r.tag}
		if w.failureLogAllowed(r.tag) {
			w.logger.Warning().
				Err(err).
				Str(FieldTag, r.tag).
				Str(FieldRequestID, r.id.String()).
				Log(`factory failed`)
		}
		return
	}

	r.value = value
	outcome = OutcomeOK
}

// fail completes the request without running it.
func (r *request[T]) fail(err error) {
	r.err = err
	r.complete()
}

// complete signals the requester, exactly once, returning false if the
// requester had already abandoned the request.
func (r *request[T]) complete() bool {
	ok := r.phase.CompareAndSwap(requestPending, requestCompleted)
	close(r.done)
	return ok
}

// abandon is called by a requester that stopped waiting, returning false if
// the request had already completed, in which case the result must be used.
func (r *request[T]) abandon() bool {
	return r.phase.CompareAndSwap(requestPending, requestAbandoned)
}

// dispose releases the value of an abandoned request, on the worker thread.
func (r *request[T]) dispose(w *Worker) {
	if r.err != nil {
		return
	}
	var v any = r.value
	r.value = *new(T)
	w.logger.Notice().
		Str(FieldTag, r.tag).
		Str(FieldRequestID, r.id.String()).
		Log(`discarding result of abandoned request`)
	if c, ok := v.(io.Closer); ok {
		if err := safeClose(c); err != nil {
			w.logger.Warning().
				Err(err).
				Str(FieldTag, r.tag).
				Str(FieldRequestID, r.id.String()).
				Log(`failed to close abandoned object`)
		}
	}
}
