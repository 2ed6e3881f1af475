package bgthread

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// newStartedWorker starts a worker (blocking), stopping it on cleanup.
func newStartedWorker(t *testing.T, opts ...WorkerOption) *Worker {
	t.Helper()
	w, err := New(opts...)
	require.NoError(t, err)
	require.NoError(t, w.Start(true))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := w.Shutdown(ctx); err != nil {
			t.Errorf("shutdown: %v", err)
		}
	})
	return w
}

// blockWorker occupies the run loop until the returned function is called.
func blockWorker(t *testing.T, w *Worker) (release func()) {
	t.Helper()
	entered := make(chan struct{})
	gate := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, err := CreateOnWorker(w, func() (struct{}, error) {
			close(entered)
			<-gate
			return struct{}{}, nil
		})
		if err != nil {
			t.Errorf("blocking request: %v", err)
		}
	}()
	select {
	case <-entered:
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not pick up blocking request")
	}
	var once sync.Once
	return func() {
		once.Do(func() {
			close(gate)
			<-done
		})
	}
}

// waitQueued waits until the worker has n requests queued.
func waitQueued(t *testing.T, w *Worker, n int) {
	t.Helper()
	require.Eventually(t, func() bool {
		return w.queue.len() == n
	}, 5*time.Second, time.Millisecond)
}

// hintCall records a call made to recordingHinter.
type hintCall struct {
	io           *IOPriority
	cpu          *CPUPriority
	workerThread bool
}

// recordingHinter records every hint, and whether it was applied on the
// worker thread.
type recordingHinter struct {
	worker *Worker
	err    error
	calls  chan hintCall
}

func newRecordingHinter() *recordingHinter {
	return &recordingHinter{calls: make(chan hintCall, 16)}
}

func (x *recordingHinter) ApplyIOPriority(p IOPriority) error {
	x.calls <- hintCall{io: &p, workerThread: x.worker != nil && x.worker.IsWorkerThread()}
	return x.err
}

func (x *recordingHinter) ApplyCPUPriority(p CPUPriority) error {
	x.calls <- hintCall{cpu: &p, workerThread: x.worker != nil && x.worker.IsWorkerThread()}
	return x.err
}

func (x *recordingHinter) next(t *testing.T) hintCall {
	t.Helper()
	select {
	case c := <-x.calls:
		return c
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for hint")
		return hintCall{}
	}
}

// syncBuffer is a bytes.Buffer safe for concurrent use.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (x *syncBuffer) Write(p []byte) (int, error) {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.buf.Write(p)
}

func (x *syncBuffer) String() string {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.buf.String()
}

// closer records Close calls.
type closer struct {
	id     int
	closed chan bool // receives IsWorkerThread at the time of Close
	worker *Worker
}

func (x *closer) Close() error {
	x.closed <- x.worker.IsWorkerThread()
	return nil
}
