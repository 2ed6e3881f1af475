// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package bgthread

import (
	"io"
	"os"

	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
)

// Log field names.
const (
	FieldWorker    = "worker"
	FieldWorkerID  = "worker_id"
	FieldThreadID  = "tid"
	FieldTag       = "tag"
	FieldRequestID = "request_id"
	FieldState     = "state"
)

// NewDefaultLogger returns a JSON logger writing to w (os.Stderr if nil),
// at the given level, suitable for use with [WithLogger].
func NewDefaultLogger(w io.Writer, level logiface.Level) *logiface.Logger[logiface.Event] {
	if w == nil {
		w = os.Stderr
	}
	return stumpy.L.New(
		stumpy.L.WithStumpy(stumpy.WithWriter(w)),
		stumpy.L.WithLevel(level),
	).Logger()
}

// workerLogger returns a sub-logger that tags every event with the identity
// of the worker, or nil if logger is nil.
func workerLogger(logger *logiface.Logger[logiface.Event], name string, id uint64) *logiface.Logger[logiface.Event] {
	return logger.Clone().
		Str(FieldWorker, name).
		Uint64(FieldWorkerID, id).
		Logger()
}
