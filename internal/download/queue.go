package download

import (
	"errors"
	"sync"
)

// ErrQueueClosed is returned by Put after Close.
var ErrQueueClosed = errors.New("download: queue closed")

// Queue is an unbounded multi-producer, multi-consumer FIFO with task
// accounting.
//
// Every Put raises the count of unfinished tasks by one. Every item handed
// out by Get must be settled exactly once, either with Done or with Requeue.
// Join blocks until the unfinished count reaches zero.
//
// Example usage:
//
//	q := NewQueue[*model.WorkItem]()
//	q.Put(item)
//
//	go func() {
//	    for {
//	        item, ok := q.Get()
//	        if !ok {
//	            return
//	        }
//	        process(item)
//	        q.Done()
//	    }
//	}()
//
//	q.Join()
//	q.Close()
type Queue[T any] struct {
	mu         sync.Mutex
	ready      *sync.Cond
	drained    *sync.Cond
	items      []T
	unfinished int
	closed     bool
}

// NewQueue creates an empty queue.
func NewQueue[T any]() *Queue[T] {
	q := &Queue[T]{}
	q.ready = sync.NewCond(&q.mu)
	q.drained = sync.NewCond(&q.mu)
	return q
}

// Put appends item and counts it as unfinished.
func (q *Queue[T]) Put(item T) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrQueueClosed
	}
	q.items = append(q.items, item)
	q.unfinished++
	q.ready.Signal()
	return nil
}

// Get removes and returns the oldest item, blocking while the queue is
// empty. It returns false once the queue is closed and empty.
func (q *Queue[T]) Get() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.items) == 0 && !q.closed {
		q.ready.Wait()
	}

	var zero T
	if len(q.items) == 0 {
		return zero, false
	}

	item := q.items[0]
	q.items[0] = zero
	q.items = q.items[1:]
	return item, true
}

// Done settles one item returned by Get. It panics if called more times
// than items were put, like sync.WaitGroup does on a negative counter.
func (q *Queue[T]) Done() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.unfinished <= 0 {
		panic("download: Queue.Done called too many times")
	}
	q.unfinished--
	if q.unfinished == 0 {
		q.drained.Broadcast()
	}
}

// Requeue settles one item returned by Get and puts item back at the tail
// in a single step. The unfinished count never drops in between, so a
// concurrent Join cannot return while a retry is in flight.
//
// Requeue works on a closed queue, since the retried item is still owed
// a Done.
func (q *Queue[T]) Requeue(item T) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.unfinished <= 0 {
		panic("download: Queue.Requeue without a matching Get")
	}
	q.items = append(q.items, item)
	q.ready.Signal()
}

// Join blocks until every item ever put has been settled with Done.
func (q *Queue[T]) Join() {
	q.mu.Lock()
	defer q.mu.Unlock()

	for q.unfinished > 0 {
		q.drained.Wait()
	}
}

// Close stops the queue from accepting new items and releases blocked
// callers of Get once the remaining items are drained.
func (q *Queue[T]) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.closed = true
	q.ready.Broadcast()
}

// Len returns the number of items waiting to be taken.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Unfinished returns the number of items put but not yet settled.
func (q *Queue[T]) Unfinished() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.unfinished
}
