// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package bgthread

import (
	"context"
)

// Factory constructs values of type T on the goroutine (and OS thread) of a
// [Worker], returning them to the caller synchronously. The factory does not
// enforce affinity beyond construction: callers that need subsequent
// operations to run on the worker must arrange that themselves.
//
// A Factory is safe for concurrent use. Each call uses its own request, and
// requests are run by the worker one at a time, in the order they were
// accepted.
type Factory[T any] struct {
	worker *Worker
	tag    string
}

// NewFactory initializes a new Factory for the given worker, which may be in
// any state. A panic will occur if worker is nil.
func NewFactory[T any](worker *Worker, opts ...FactoryOption) *Factory[T] {
	if worker == nil {
		panic(`bgthread: nil worker`)
	}
	cfg := resolveFactoryOptions(opts)
	return &Factory[T]{
		worker: worker,
		tag:    cfg.tag,
	}
}

// CreateOnWorker is shorthand for NewFactory[T](worker).Create(fn).
func CreateOnWorker[T any](worker *Worker, fn func() (T, error)) (T, error) {
	return NewFactory[T](worker).Create(fn)
}

// Worker returns the worker the factory constructs values on.
func (x *Factory[T]) Worker() *Worker { return x.worker }

// Tag returns the message tag of the factory, see [WithTag].
func (x *Factory[T]) Tag() string { return x.tag }

// Create runs fn on the worker, and waits, unconditionally, for the result.
//
// Returns [ErrWorkerNotRunning] without waiting, unless the worker is in
// [StateRunning]. If fn returns an error, or panics, a [ConstructionError]
// is returned, and the worker continues to serve other requests. A fn that
// calls runtime.Goexit also yields a ConstructionError (wrapping
// [ErrGoexit]), but terminates the worker.
//
// If called from the worker goroutine itself (i.e. from within another
// factory function), fn is run inline, subject to the same Running check.
//
// A panic will occur if fn is nil.
func (x *Factory[T]) Create(fn func() (T, error)) (T, error) {
	return x.create(context.Background(), fn)
}

// CreateContext is Create, but returns a [TimeoutError] (wrapping the
// context's error) if ctx is done before the worker completes the request.
//
// The construction is not cancelled. If it later succeeds, the value is
// discarded on the worker thread, being closed if it implements [io.Closer].
func (x *Factory[T]) CreateContext(ctx context.Context, fn func() (T, error)) (T, error) {
	if ctx == nil {
		panic(`bgthread: nil context`)
	}
	return x.create(ctx, fn)
}

func (x *Factory[T]) create(ctx context.Context, fn func() (T, error)) (value T, err error) {
	if fn == nil {
		panic(`bgthread: nil factory function`)
	}

	w := x.worker
	r := newRequest(x.tag, fn)

	if w.IsWorkerThread() {
		// posting would deadlock, including while draining after Stop, or
		// while closing owned objects on exit
		if w.state.load() != StateRunning {
			w.metrics.observeRequest(w.name, x.tag, OutcomeRejected)
			return value, ErrWorkerNotRunning
		}
		r.run(w)
		return r.value, r.err
	}

	if err := ctx.Err(); err != nil {
		return value, &TimeoutError{Cause: err}
	}

	if err := w.post(r); err != nil {
		w.metrics.observeRequest(w.name, x.tag, OutcomeRejected)
		return value, err
	}

	if ctx.Done() == nil {
		<-r.done
		return r.value, r.err
	}

	select {
	case <-r.done:
		return r.value, r.err
	case <-ctx.Done():
		if r.abandon() {
			return value, &TimeoutError{Cause: ctx.Err()}
		}
		// completed concurrently
		<-r.done
		return r.value, r.err
	}
}
