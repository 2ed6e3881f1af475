// Package bgthread provides a background worker, owning a goroutine that is
// locked to its own OS thread, along with a mechanism to construct values on
// that thread, synchronously, from any other goroutine.
//
// # Architecture
//
// A [Worker] runs a single-consumer run loop, fed by a FIFO queue. Creation
// requests are made via a [Factory] (or [CreateOnWorker]), each of which
// posts a request to the loop, then blocks until the worker has run the
// factory function and signaled completion. The completion signal is only
// observable after the factory function has returned, on the worker thread.
//
// # Lifecycle
//
//	StateNotStarted → StateStarting → StateRunning → StateStopping → StateStopped
//
// [Worker.Start] may block until the run loop is ready to accept requests.
// [Worker.Stop] signals the loop to exit, after running any accepted
// requests, and [Worker.Join] waits for the worker goroutine to exit.
// A worker cannot be restarted.
//
// # Scheduling Hints
//
// I/O and CPU priority hints ([Worker.SetIOPriority],
// [Worker.SetCPUPriority]) are applied to the worker's OS thread, through a
// [PriorityHinter]:
//   - Linux: ioprio_set and setpriority, targeting the thread id
//   - macOS: the darwin background state of the thread (I/O hint only)
//   - others: no-op
//
// Hints are advisory. Failures are logged at debug level and otherwise
// ignored. An OS thread that had a hint applied is never returned to the Go
// runtime's pool, and terminates with the worker.
//
// # Usage
//
//	worker, err := bgthread.New(
//	    bgthread.WithName("decoder"),
//	    bgthread.WithIOPriority(bgthread.IOPriorityIdle()),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := worker.Start(true); err != nil {
//	    log.Fatal(err)
//	}
//	defer worker.Close()
//
//	decoder, err := bgthread.CreateOnWorker(worker, NewDecoder)
//
// # Error Types
//
//   - [ErrAlreadyStarted]: Start called more than once
//   - [ThreadLaunchError]: the [Launcher] failed, Start may be retried
//   - [ErrWorkerNotRunning]: request made against a worker that is not running
//   - [ConstructionError]: the factory function failed or panicked
//   - [TimeoutError]: a context-bound request stopped waiting
package bgthread
