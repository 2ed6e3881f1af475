// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package bgthread

import (
	"errors"

	"github.com/joeycumines/go-catrate"
	"github.com/joeycumines/logiface"
)

// workerOptions holds configuration options for Worker creation.
type workerOptions struct {
	logger       *logiface.Logger[logiface.Event]
	metrics      *Metrics
	launcher     Launcher
	hinter       PriorityHinter
	name         string
	ioPriority   IOPriority
	cpuPriority  CPUPriority
	ownedObjects bool
	failureLogs  *catrate.Limiter
}

// --- Worker Options ---

// WorkerOption configures a Worker instance.
type WorkerOption interface {
	applyWorker(*workerOptions) error
}

// workerOptionImpl implements WorkerOption.
type workerOptionImpl struct {
	applyWorkerFunc func(*workerOptions) error
}

func (w *workerOptionImpl) applyWorker(opts *workerOptions) error {
	return w.applyWorkerFunc(opts)
}

// WithName sets the name of the worker, used in logs and metrics.
// Defaults to "bgthread-<id>".
func WithName(name string) WorkerOption {
	return &workerOptionImpl{func(opts *workerOptions) error {
		if name == "" {
			return errors.New("bgthread: empty worker name")
		}
		opts.name = name
		return nil
	}}
}

// WithLogger sets the structured logger. A nil logger (the default)
// disables logging.
func WithLogger(logger *logiface.Logger[logiface.Event]) WorkerOption {
	return &workerOptionImpl{func(opts *workerOptions) error {
		opts.logger = logger
		return nil
	}}
}

// WithMetrics attaches a metrics collector, which may be shared between
// workers. See [NewMetrics].
func WithMetrics(metrics *Metrics) WorkerOption {
	return &workerOptionImpl{func(opts *workerOptions) error {
		opts.metrics = metrics
		return nil
	}}
}

// WithLauncher replaces the mechanism used to start the worker goroutine.
// Defaults to a plain go statement.
func WithLauncher(launcher Launcher) WorkerOption {
	return &workerOptionImpl{func(opts *workerOptions) error {
		if launcher == nil {
			return errors.New("bgthread: nil launcher")
		}
		opts.launcher = launcher
		return nil
	}}
}

// WithPriorityHinter replaces the platform [PriorityHinter], see
// [DefaultPriorityHinter].
func WithPriorityHinter(hinter PriorityHinter) WorkerOption {
	return &workerOptionImpl{func(opts *workerOptions) error {
		if hinter == nil {
			return errors.New("bgthread: nil priority hinter")
		}
		opts.hinter = hinter
		return nil
	}}
}

// WithIOPriority sets the initial I/O priority hint, equivalent to calling
// Worker.SetIOPriority prior to Start.
func WithIOPriority(p IOPriority) WorkerOption {
	return &workerOptionImpl{func(opts *workerOptions) error {
		opts.ioPriority = p
		return nil
	}}
}

// WithCPUPriority sets the initial CPU priority hint, equivalent to calling
// Worker.SetCPUPriority prior to Start.
func WithCPUPriority(p CPUPriority) WorkerOption {
	return &workerOptionImpl{func(opts *workerOptions) error {
		opts.cpuPriority = p
		return nil
	}}
}

// WithFailureLogLimiter rate limits the logging of failed constructions, with
// the factory tag as the category. Metrics are unaffected. By default, every
// failure is logged.
func WithFailureLogLimiter(limiter *catrate.Limiter) WorkerOption {
	return &workerOptionImpl{func(opts *workerOptions) error {
		opts.failureLogs = limiter
		return nil
	}}
}

// WithOwnedObjects sets whether the worker retains every value produced by a
// successful creation request that implements [io.Closer], closing them in
// reverse order, on the worker thread, as the run loop exits.
//
// WARNING: Callers must not close owned values themselves, unless their
// Close method tolerates being called twice.
func WithOwnedObjects(enabled bool) WorkerOption {
	return &workerOptionImpl{func(opts *workerOptions) error {
		opts.ownedObjects = enabled
		return nil
	}}
}

// resolveWorkerOptions applies WorkerOption instances to workerOptions.
func resolveWorkerOptions(opts []WorkerOption) (*workerOptions, error) {
	cfg := &workerOptions{
		launcher: goLauncher{},
		hinter:   DefaultPriorityHinter(),
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.applyWorker(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// --- Factory Options ---

// DefaultTag is the message tag of factories created without WithTag.
const DefaultTag = "default"

type factoryOptions struct {
	tag string
}

// FactoryOption configures a Factory instance.
type FactoryOption interface {
	applyFactory(*factoryOptions)
}

type factoryOptionImpl struct {
	applyFactoryFunc func(*factoryOptions)
}

func (f *factoryOptionImpl) applyFactory(opts *factoryOptions) {
	f.applyFactoryFunc(opts)
}

// WithTag sets the message tag stamped on every request made by the
// factory, which identifies the factory in logs, metrics and errors.
// An empty tag is ignored.
func WithTag(tag string) FactoryOption {
	return &factoryOptionImpl{func(opts *factoryOptions) {
		if tag != "" {
			opts.tag = tag
		}
	}}
}

func resolveFactoryOptions(opts []FactoryOption) *factoryOptions {
	cfg := &factoryOptions{tag: DefaultTag}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt.applyFactory(cfg)
	}
	return cfg
}
