package wizard

import "sync"

// taskQueue is a thread-safe FIFO queue of pending tasks.
//
// The queue is unbounded so cascading rule firings can enqueue
// arbitrarily many follow-ups without blocking.
//
// Thread-safety covers external triggers enqueueing while a drain is in
// flight. In practice most usage is single-threaded: the sequencer
// drains the queue to empty before control returns to the trigger.
type taskQueue struct {
	mu    sync.Mutex
	tasks []Task
}

func newTaskQueue() *taskQueue {
	return &taskQueue{
		tasks: make([]Task, 0, 16),
	}
}

// Enqueue appends a task to the back of the queue.
// Thread-safe: may be called from any goroutine.
func (q *taskQueue) Enqueue(t Task) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.tasks = append(q.tasks, t)
}

// TryDequeue pops the front task without blocking.
// Returns (Task{}, false) if the queue is empty.
func (q *taskQueue) TryDequeue() (Task, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.tasks) == 0 {
		return Task{}, false
	}

	t := q.tasks[0]

	// Nil out the slot so the slice does not retain the task's slices
	// until the underlying array is reallocated.
	q.tasks[0] = Task{}

	if len(q.tasks) == 1 {
		q.tasks = q.tasks[:0]
	} else {
		q.tasks = q.tasks[1:]
	}

	return t, true
}

// Len returns the current queue length.
func (q *taskQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}
