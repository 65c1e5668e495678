package daq

import "github.com/ardnew/tmcdaq/pkg"

// Step is the outcome of consuming one sample from the current job.
type Step uint8

const (
	// NoJob means the queue is empty after the step.
	NoJob Step = iota
	// Continuing means the current job still has samples to take.
	Continuing
	// JobDone means the current job finished and another job is now
	// current.
	JobDone
)

// String returns the step name.
func (s Step) String() string {
	switch s {
	case NoJob:
		return "NoJob"
	case Continuing:
		return "Continuing"
	case JobDone:
		return "JobDone"
	default:
		return "Unknown"
	}
}

// Queue is a bounded FIFO of requests stored in a fixed arena. The head
// entry is the current job. A Queue is not safe for concurrent use; the
// engine serializes access to it.
type Queue struct {
	slots []Request
	head  int
	count int
}

// NewQueue creates a queue holding up to depth requests.
func NewQueue(depth int) *Queue {
	if depth <= 0 {
		depth = DefaultQueueDepth
	}
	return &Queue{slots: make([]Request, depth)}
}

// Len returns the number of queued requests.
func (q *Queue) Len() int { return q.count }

// Cap returns the queue depth.
func (q *Queue) Cap() int { return len(q.slots) }

// Enqueue appends r at the tail. Returns pkg.ErrQueueFull when every slot
// is in use.
func (q *Queue) Enqueue(r Request) error {
	if q.count == len(q.slots) {
		return pkg.ErrQueueFull
	}
	q.slots[(q.head+q.count)%len(q.slots)] = r
	q.count++
	return nil
}

// Head returns the current job.
func (q *Queue) Head() (Request, bool) {
	return q.At(0)
}

// At returns the request at position i, counting from the head.
func (q *Queue) At(i int) (Request, bool) {
	if i < 0 || i >= q.count {
		return Request{}, false
	}
	return q.slots[(q.head+i)%len(q.slots)], true
}

// DequeueHead removes the current job and reports whether another job
// remains.
func (q *Queue) DequeueHead() bool {
	if q.count == 0 {
		return false
	}
	q.slots[q.head] = Request{}
	q.head = (q.head + 1) % len(q.slots)
	q.count--
	return q.count > 0
}

// DecrementCurrent consumes one sample from the current job. A job whose
// count reaches zero is removed.
func (q *Queue) DecrementCurrent() Step {
	if q.count == 0 {
		return NoJob
	}
	cur := &q.slots[q.head]
	if cur.Count > 0 {
		cur.Count--
	}
	if cur.Count > 0 {
		return Continuing
	}
	if q.DequeueHead() {
		return JobDone
	}
	return NoJob
}

// Clear removes every request.
func (q *Queue) Clear() {
	clear(q.slots)
	q.head = 0
	q.count = 0
}
