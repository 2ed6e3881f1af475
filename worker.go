// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package bgthread

import (
	"context"
	"fmt"
	"io"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/joeycumines/go-catrate"
	"github.com/joeycumines/logiface"
)

// Worker owns a goroutine that is locked to its own OS thread, running a
// single-consumer run loop, which executes creation requests made via
// [Factory] (or [CreateOnWorker]) one at a time, in FIFO order.
//
// Instances must be initialized using the [New] factory. A Worker may be
// started at most once: [StateStopped] is terminal.
type Worker struct { // betteralign:ignore
	// Prevent copying
	_ [0]func()

	logger   *logiface.Logger[logiface.Event]
	metrics  *Metrics
	launcher Launcher
	hinter   PriorityHinter
	queue    *ingress

	// nil means no limit
	failureLogs *catrate.Limiter

	// closed by Stop, after the transition to StateStopping
	stopCh chan struct{}
	// closed once the worker has fully stopped
	done chan struct{}

	name string

	// owned values, only accessed by the worker goroutine
	owned []io.Closer

	// start rendezvous
	startMu   sync.Mutex
	startCond sync.Cond

	// hints, guarded by hintMu
	hintMu      sync.Mutex
	ioPriority  IOPriority
	cpuPriority CPUPriority
	hintVersion uint64

	state       fastState
	goroutineID atomic.Uint64
	threadID    atomic.Int64
	id          uint64

	// only accessed by the worker goroutine
	appliedHints uint64

	// guarded by startMu
	ready   bool
	running bool

	// set if the OS thread may have been modified by a hint, only accessed by
	// the worker goroutine
	tainted bool

	ownedObjects bool
}

var workerIDCounter atomic.Uint64

// New initializes a new Worker, in [StateNotStarted]. An error will be
// returned if any option is invalid.
func New(opts ...WorkerOption) (*Worker, error) {
	cfg, err := resolveWorkerOptions(opts)
	if err != nil {
		return nil, err
	}

	w := &Worker{
		id:           workerIDCounter.Add(1),
		name:         cfg.name,
		metrics:      cfg.metrics,
		launcher:     cfg.launcher,
		hinter:       cfg.hinter,
		ioPriority:   cfg.ioPriority,
		cpuPriority:  cfg.cpuPriority,
		ownedObjects: cfg.ownedObjects,
		failureLogs:  cfg.failureLogs,
		queue:        newIngress(),
		stopCh:       make(chan struct{}),
		done:         make(chan struct{}),
	}
	if w.name == "" {
		w.name = fmt.Sprintf("bgthread-%d", w.id)
	}
	if cfg.ioPriority != (IOPriority{}) || cfg.cpuPriority != CPUInherit {
		w.hintVersion = 1
	}
	w.startCond.L = &w.startMu
	w.logger = workerLogger(cfg.logger, w.name, w.id)

	return w, nil
}

// ID returns the process-unique id of the worker.
func (w *Worker) ID() uint64 { return w.id }

// Name returns the name of the worker, see [WithName].
func (w *Worker) Name() string { return w.name }

// State returns the current state of the worker.
func (w *Worker) State() State { return w.state.load() }

// ThreadID returns the id of the OS thread the worker goroutine is locked to,
// or 0 if unavailable (not running, or unsupported on this platform).
func (w *Worker) ThreadID() int { return int(w.threadID.Load()) }

// Done returns a channel that is closed once the worker has stopped.
func (w *Worker) Done() <-chan struct{} { return w.done }

// IsWorkerThread returns true if called from the worker goroutine.
func (w *Worker) IsWorkerThread() bool {
	id := w.goroutineID.Load()
	if id == 0 {
		return false
	}
	return getGoroutineID() == id
}

// Start launches the worker goroutine. If blocking is true, Start returns
// only after the run loop is ready to accept creation requests.
//
// Returns [ErrAlreadyStarted] if the worker is not in [StateNotStarted], or
// a [ThreadLaunchError] if the [Launcher] failed, in which case the worker
// reverts to [StateNotStarted]. A blocking start that observes the worker
// being stopped before it became ready returns [ErrWorkerNotRunning].
func (w *Worker) Start(blocking bool) error {
	if !w.state.tryTransition(StateNotStarted, StateStarting) {
		return ErrAlreadyStarted
	}

	if !blocking {
		return w.launch()
	}

	// Lock before launching, so the worker cannot signal readiness before we
	// begin waiting.
	w.startMu.Lock()
	defer w.startMu.Unlock()

	if err := w.launch(); err != nil {
		return err
	}

	for !w.ready {
		w.startCond.Wait()
	}

	if !w.running {
		return ErrWorkerNotRunning
	}

	return nil
}

func (w *Worker) launch() error {
	err := w.launcher.Launch(w.run)
	if err == nil {
		return nil
	}

	if !w.state.tryTransition(StateStarting, StateNotStarted) {
		// Stop was called concurrently, and no worker goroutine exists to
		// finish stopping
		w.state.store(StateStopped)
		close(w.done)
	}

	w.logger.Err().
		Err(err).
		Log(`worker launch failed`)

	return &ThreadLaunchError{Cause: err}
}

// Stop signals the run loop to exit, without waiting. Requests accepted
// prior to Stop are still processed. Stop is idempotent, and stopping a
// worker that was never started moves it directly to [StateStopped].
//
// See also [Worker.Join] and [Worker.Shutdown].
func (w *Worker) Stop() {
	// serialized with Worker.post, no request is accepted after this point
	w.queue.mu.Lock()
	prev, ok := w.state.transitionAny([]State{StateNotStarted, StateStarting, StateRunning}, StateStopping)
	w.queue.mu.Unlock()

	if !ok {
		return
	}

	w.logger.Debug().
		Stringer(FieldState, prev).
		Log(`worker stop requested`)

	if prev == StateNotStarted {
		w.state.store(StateStopped)
		close(w.done)
		return
	}

	close(w.stopCh)
}

// Join blocks until the worker goroutine has exited. Join returns
// immediately if the worker was never started, and otherwise blocks
// indefinitely unless Stop is called, or a factory calls runtime.Goexit.
//
// This method is unsafe to call from within a factory function.
func (w *Worker) Join() {
	if w.state.load() == StateNotStarted {
		return
	}
	<-w.done
}

// Shutdown calls Stop, then waits for the worker to exit, returning the
// error of ctx if it is done first.
//
// This method is unsafe to call from within a factory function.
func (w *Worker) Shutdown(ctx context.Context) error {
	w.Stop()
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops the worker, and waits for it to exit.
//
// This method is unsafe to call from within a factory function.
func (w *Worker) Close() error {
	return w.Shutdown(context.Background())
}

// SetIOPriority records an I/O priority hint, applied on the worker thread
// when it starts, or as soon as the run loop gets to it, if it is already
// running. Hints are best-effort, and failures are ignored.
func (w *Worker) SetIOPriority(p IOPriority) {
	w.hintMu.Lock()
	w.ioPriority = p
	w.hintVersion++
	w.hintMu.Unlock()
	_ = w.post(hintTask{})
}

// SetCPUPriority records a CPU priority hint, see [Worker.SetIOPriority].
func (w *Worker) SetCPUPriority(p CPUPriority) {
	w.hintMu.Lock()
	w.cpuPriority = p
	w.hintVersion++
	w.hintMu.Unlock()
	_ = w.post(hintTask{})
}

// IOPriority returns the most recently recorded I/O priority hint.
func (w *Worker) IOPriority() IOPriority {
	w.hintMu.Lock()
	defer w.hintMu.Unlock()
	return w.ioPriority
}

// CPUPriority returns the most recently recorded CPU priority hint.
func (w *Worker) CPUPriority() CPUPriority {
	w.hintMu.Lock()
	defer w.hintMu.Unlock()
	return w.cpuPriority
}

// post enqueues a task, failing with ErrWorkerNotRunning unless the worker
// is in StateRunning.
func (w *Worker) post(t task) error {
	q := w.queue
	q.mu.Lock()
	if w.state.load() != StateRunning {
		q.mu.Unlock()
		return ErrWorkerNotRunning
	}
	q.pushLocked(t)
	// under lock, so it cannot race with the series being deleted on exit
	w.metrics.setQueueDepth(w.name, q.length)
	q.mu.Unlock()

	q.signal()

	return nil
}

// run is the worker goroutine.
func (w *Worker) run() {
	runtime.LockOSThread()

	w.goroutineID.Store(getGoroutineID())
	w.threadID.Store(int64(currentThreadID()))

	var returned bool
	defer func() {
		w.exit(!returned)
	}()

	w.applyHints()

	running := w.state.tryTransition(StateStarting, StateRunning)
	if running {
		// catch up on hints set while starting, which could not be posted
		w.applyHints()
		w.metrics.workerStarted()
	}

	w.signalReady(running)

	if running {
		w.logger.Info().
			Int(FieldThreadID, w.ThreadID()).
			Log(`worker started`)

		w.loop()
	}

	returned = true
}

// signalReady wakes any blocking Start, at most once.
func (w *Worker) signalReady(running bool) {
	w.startMu.Lock()
	defer w.startMu.Unlock()
	if w.ready {
		return
	}
	w.ready = true
	w.running = running
	w.startCond.Broadcast()
}

func (w *Worker) loop() {
	for {
		w.drain()
		select {
		case <-w.queue.wake:
		case <-w.stopCh:
			// no further tasks may be accepted
			w.drain()
			return
		}
	}
}

// drain runs queued tasks until the queue is empty.
func (w *Worker) drain() {
	for {
		w.queue.mu.Lock()
		t, ok := w.queue.popLocked()
		if ok {
			w.metrics.setQueueDepth(w.name, w.queue.length)
		}
		w.queue.mu.Unlock()
		if !ok {
			return
		}
		t.run(w)
	}
}

// exit finalizes the worker goroutine, which may be exiting via
// runtime.Goexit, called by a factory.
func (w *Worker) exit(goexit bool) {
	// a blocking Start must never be left waiting
	w.signalReady(false)

	var wasRunning bool
	w.queue.mu.Lock()
	switch w.state.load() {
	case StateRunning:
		wasRunning = true
		w.state.store(StateStopping)
	case StateStopping:
		wasRunning = w.running
	}
	var pending []task
	for {
		t, ok := w.queue.popLocked()
		if !ok {
			break
		}
		pending = append(pending, t)
	}
	w.queue.mu.Unlock()

	if goexit {
		w.logger.Crit().
			Err(ErrGoexit).
			Int(`pending`, len(pending)).
			Log(`worker terminated by factory`)
	}

	for _, t := range pending {
		t.fail(ErrWorkerNotRunning)
	}

	w.closeOwned()

	if wasRunning {
		w.metrics.workerStopped(w.name)
		w.logger.Info().
			Int(FieldThreadID, w.ThreadID()).
			Log(`worker stopped`)
	}

	w.goroutineID.Store(0)
	w.threadID.Store(0)
	w.state.store(StateStopped)
	close(w.done)

	// A thread that had its priority changed is left locked, so the runtime
	// terminates it rather than reusing it.
	if !w.tainted {
		runtime.UnlockOSThread()
	}
}

// applyHints applies any hints not yet applied, on the worker thread.
func (w *Worker) applyHints() {
	w.hintMu.Lock()
	version, ioPriority, cpuPriority := w.hintVersion, w.ioPriority, w.cpuPriority
	w.hintMu.Unlock()

	if version == w.appliedHints {
		return
	}
	w.appliedHints = version

	if ioPriority.Class != IOClassNone {
		w.tainted = true
		if err := safeHint(func() error { return w.hinter.ApplyIOPriority(ioPriority) }); err != nil {
			w.logger.Debug().
				Err(err).
				Stringer(`io_priority`, ioPriority).
				Log(`io priority hint not applied`)
		}
	}

	if cpuPriority != CPUInherit {
		w.tainted = true
		if err := safeHint(func() error { return w.hinter.ApplyCPUPriority(cpuPriority) }); err != nil {
			w.logger.Debug().
				Err(err).
				Stringer(`cpu_priority`, cpuPriority).
				Log(`cpu priority hint not applied`)
		}
	}
}

// failureLogAllowed reports whether a failed construction, for the given
// tag, may be logged.
func (w *Worker) failureLogAllowed(tag string) bool {
	_, ok := w.failureLogs.Allow(tag)
	return ok
}

// own retains v, to be closed as the worker exits, if configured.
func (w *Worker) own(v any) {
	if !w.ownedObjects {
		return
	}
	if c, ok := v.(io.Closer); ok {
		w.owned = append(w.owned, c)
	}
}

// closeOwned closes owned values in reverse order of creation, until none
// remain.
func (w *Worker) closeOwned() {
	for len(w.owned) != 0 {
		last := len(w.owned) - 1
		c := w.owned[last]
		w.owned[last] = nil
		w.owned = w.owned[:last]
		if err := safeClose(c); err != nil {
			w.logger.Warning().
				Err(err).
				Log(`failed to close owned object`)
		}
	}
	w.owned = nil
}

// safeClose calls Close, converting a panic into an error.
func safeClose(c io.Closer) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("bgthread: close panicked: %v", r)
		}
	}()
	return c.Close()
}

// safeHint calls fn, converting a panic into an error.
func safeHint(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("bgthread: priority hint panicked: %v", r)
		}
	}()
	return fn()
}

// hintTask applies hints recorded while running.
type hintTask struct{}

func (hintTask) run(w *Worker) { w.applyHints() }

func (hintTask) fail(error) {}

// getGoroutineID returns the current goroutine's ID.
func getGoroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	var id uint64
	for i := len("goroutine "); i < n; i++ {
		if buf[i] >= '0' && buf[i] <= '9' {
			id = id*10 + uint64(buf[i]-'0')
		} else {
			break
		}
	}
	return id
}
