// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package bgthread

import (
	"sync"
)

// chunkSize is the number of tasks per node in the ingress linked list.
const chunkSize = 64

// task is a unit of work for the run loop, e.g. a creation request.
type task interface {
	// run executes the task on the worker goroutine.
	run(w *Worker)
	// fail completes the task without running it.
	fail(err error)
}

// ingress is the run loop's FIFO queue. Producers only push, and only the
// worker goroutine pops.
//
// The mutex also serializes pushes against the Running to Stopping
// transition, see Worker.post and Worker.Stop.
type ingress struct {
	mu     sync.Mutex
	head   *chunk
	tail   *chunk
	length int
	// wake has a buffer of one, a pending signal is never lost
	wake chan struct{}
}

var chunkPool = sync.Pool{
	New: func() any {
		return &chunk{}
	},
}

// chunk uses readPos/pos cursors for O(1) push/pop without shifting.
type chunk struct {
	tasks   [chunkSize]task
	next    *chunk
	readPos int
	pos     int
}

func newIngress() *ingress {
	return &ingress{wake: make(chan struct{}, 1)}
}

func newChunk() *chunk {
	c := chunkPool.Get().(*chunk)
	c.pos = 0
	c.readPos = 0
	c.next = nil
	return c
}

// returnChunk clears retained tasks before recycling the chunk.
func returnChunk(c *chunk) {
	for i := 0; i < c.pos; i++ {
		c.tasks[i] = nil
	}
	c.pos = 0
	c.readPos = 0
	c.next = nil
	chunkPool.Put(c)
}

// pushLocked adds a task to the queue.
//
// CALLER MUST HOLD q.mu.
func (q *ingress) pushLocked(t task) {
	if q.tail == nil {
		q.tail = newChunk()
		q.head = q.tail
	}
	if q.tail.pos == len(q.tail.tasks) {
		next := newChunk()
		q.tail.next = next
		q.tail = next
	}
	q.tail.tasks[q.tail.pos] = t
	q.tail.pos++
	q.length++
}

// popLocked removes and returns the oldest task, returning false if the
// queue is empty.
//
// CALLER MUST HOLD q.mu.
func (q *ingress) popLocked() (task, bool) {
	if q.head == nil || q.length == 0 {
		return nil, false
	}
	// the head chunk is never left exhausted, see below
	t := q.head.tasks[q.head.readPos]
	q.head.tasks[q.head.readPos] = nil
	q.head.readPos++
	q.length--
	if q.head.readPos >= q.head.pos {
		if q.head == q.tail {
			q.head.pos = 0
			q.head.readPos = 0
		} else {
			old := q.head
			q.head = q.head.next
			returnChunk(old)
		}
	}
	return t, true
}

// signal wakes the run loop, without blocking.
func (q *ingress) signal() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}
