package voice

import (
	"sync"

	"github.com/discord-voice-bridge/internal/metrics"
)

// TaskQueue runs enqueued tasks strictly in arrival order, one at a time:
// task N+1 starts only after task N has returned. The backlog is unbounded,
// matching the promise-chain semantics this replaces; queue depth is exposed
// through a gauge so pathological growth is observable.
type TaskQueue struct {
	mu     sync.Mutex
	cond   *sync.Cond
	tasks  []func()
	closed bool
	done   chan struct{}
}

func NewTaskQueue() *TaskQueue {
	q := &TaskQueue{done: make(chan struct{})}
	q.cond = sync.NewCond(&q.mu)
	go q.loop()
	return q
}

func (q *TaskQueue) loop() {
	defer close(q.done)
	for {
		q.mu.Lock()
		for len(q.tasks) == 0 && !q.closed {
			q.cond.Wait()
		}
		if q.closed {
			dropped := len(q.tasks)
			q.tasks = nil
			q.mu.Unlock()
			metrics.QueueDepth.Sub(float64(dropped))
			return
		}
		task := q.tasks[0]
		q.tasks = q.tasks[1:]
		q.mu.Unlock()

		metrics.QueueDepth.Dec()
		task()
	}
}

// Enqueue appends a task. Returns false if the queue is closed.
func (q *TaskQueue) Enqueue(task func()) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	q.tasks = append(q.tasks, task)
	q.mu.Unlock()
	metrics.QueueDepth.Inc()
	q.cond.Signal()
	return true
}

// Len reports the number of tasks waiting (not counting a running task).
func (q *TaskQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}

// Close stops the queue after the currently running task settles; waiting
// tasks are dropped. It does not wait for an in-flight task: that task
// finishes on its own and its result is discarded by the disabled session.
// Idempotent.
func (q *TaskQueue) Close() {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		q.cond.Broadcast()
	}
	q.mu.Unlock()
}

// Done is closed once the queue loop has exited. Useful in tests.
func (q *TaskQueue) Done() <-chan struct{} { return q.done }
