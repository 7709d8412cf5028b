// Package worker runs tasks one at a time on a dedicated goroutine.
//
// Tasks carry an identity. Submitting a task whose ID matches one that is
// still pending replaces the pending instance, so at most one instance per ID
// is ever waiting to run.
package worker

import (
	"container/heap"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

var ErrQueueClosed = errors.New("worker: queue closed")

// Task is a unit of work. Discard, if set, is called instead of Run when the
// task is superseded by a newer submission with the same ID or dropped by
// Close, so that resources captured by the task can be released.
type Task struct {
	ID      string
	Run     func(ctx context.Context) error
	Discard func()
}

type Stats struct {
	Executed   uint64
	Superseded uint64
	Failed     uint64
	Panicked   uint64
}

type pending struct {
	task  *Task
	due   time.Time
	seq   uint64
	index int
}

type pendingHeap []*pending

func (h pendingHeap) Len() int { return len(h) }

func (h pendingHeap) Less(i, j int) bool {
	if h[i].due.Equal(h[j].due) {
		return h[i].seq < h[j].seq
	}
	return h[i].due.Before(h[j].due)
}

func (h pendingHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *pendingHeap) Push(x any) {
	p := x.(*pending)
	p.index = len(*h)
	*h = append(*h, p)
}

func (h *pendingHeap) Pop() any {
	old := *h
	n := len(old)
	p := old[n-1]
	old[n-1] = nil
	p.index = -1
	*h = old[:n-1]
	return p
}

type queueKey struct{}

type Queue struct {
	logger *slog.Logger

	mu      sync.Mutex
	heap    pendingHeap
	byID    map[string]*pending
	seq     uint64
	closed  bool
	wake    chan struct{}
	done    chan struct{}
	stopped chan struct{}

	executed   atomic.Uint64
	superseded atomic.Uint64
	failed     atomic.Uint64
	panicked   atomic.Uint64
}

// New starts a queue. A nil logger falls back to slog.Default().
func New(logger *slog.Logger) *Queue {
	if logger == nil {
		logger = slog.Default()
	}
	q := &Queue{
		logger:  logger,
		byID:    make(map[string]*pending),
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	go q.loop()
	return q
}

// OnWorker reports whether ctx was handed out by q to a running task.
func (q *Queue) OnWorker(ctx context.Context) bool {
	if q == nil || ctx == nil {
		return false
	}
	owner, _ := ctx.Value(queueKey{}).(*Queue)
	return owner == q
}

// Submit schedules task to run no earlier than delay from now. A pending task
// with the same ID is discarded. When ctx belongs to a task running on q and
// delay is zero, task runs synchronously before Submit returns.
func (q *Queue) Submit(ctx context.Context, task *Task, delay time.Duration) {
	if task == nil {
		return
	}
	if q == nil {
		discard(task)
		return
	}

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		discard(task)
		return
	}
	old := q.removeLocked(task.ID)
	inline := delay <= 0 && q.OnWorker(ctx)
	if !inline {
		q.seq++
		p := &pending{task: task, due: time.Now().Add(delay), seq: q.seq}
		heap.Push(&q.heap, p)
		if task.ID != "" {
			q.byID[task.ID] = p
		}
	}
	q.mu.Unlock()

	if old != nil {
		q.superseded.Add(1)
		discard(old.task)
	}
	if inline {
		q.run(ctx, task)
		return
	}
	q.signal()
}

// Do runs fn on the worker and waits for it to finish. It runs fn directly
// when called from a task already on the worker.
func (q *Queue) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if q == nil {
		return ErrQueueClosed
	}
	if q.OnWorker(ctx) {
		return fn(ctx)
	}
	result := make(chan error, 1)
	task := &Task{
		ID: "do-" + uuid.NewString(),
		Run: func(ctx context.Context) (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("worker: panic: %v", r)
					result <- err
					panic(r)
				}
				result <- err
			}()
			return fn(ctx)
		},
		Discard: func() { result <- ErrQueueClosed },
	}
	q.Submit(ctx, task, 0)
	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Cancel removes a pending task by ID and reports whether one was found.
func (q *Queue) Cancel(id string) bool {
	if q == nil {
		return false
	}
	q.mu.Lock()
	p := q.removeLocked(id)
	q.mu.Unlock()
	if p == nil {
		return false
	}
	discard(p.task)
	return true
}

// Pending returns the number of tasks waiting to run.
func (q *Queue) Pending() int {
	if q == nil {
		return 0
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.heap)
}

func (q *Queue) Stats() Stats {
	return Stats{
		Executed:   q.executed.Load(),
		Superseded: q.superseded.Load(),
		Failed:     q.failed.Load(),
		Panicked:   q.panicked.Load(),
	}
}

// Close stops the worker once the running task returns. Pending tasks are
// discarded. Close must not be called from a task running on q.
func (q *Queue) Close() error {
	if q == nil {
		return nil
	}
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		<-q.stopped
		return nil
	}
	q.closed = true
	dropped := make([]*Task, 0, len(q.heap))
	for _, p := range q.heap {
		dropped = append(dropped, p.task)
	}
	q.heap = nil
	q.byID = make(map[string]*pending)
	close(q.done)
	q.mu.Unlock()

	for _, t := range dropped {
		discard(t)
	}
	<-q.stopped
	return nil
}

func (q *Queue) removeLocked(id string) *pending {
	if id == "" {
		return nil
	}
	p, ok := q.byID[id]
	if !ok {
		return nil
	}
	delete(q.byID, id)
	heap.Remove(&q.heap, p.index)
	return p
}

func (q *Queue) signal() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

func (q *Queue) loop() {
	defer close(q.stopped)
	ctx := context.WithValue(context.Background(), queueKey{}, q)
	timer := time.NewTimer(time.Hour)
	timer.Stop()
	for {
		q.mu.Lock()
		var next *Task
		var wait time.Duration = -1
		if len(q.heap) > 0 {
			head := q.heap[0]
			if d := time.Until(head.due); d > 0 {
				wait = d
			} else {
				heap.Pop(&q.heap)
				if head.task.ID != "" && q.byID[head.task.ID] == head {
					delete(q.byID, head.task.ID)
				}
				next = head.task
			}
		}
		q.mu.Unlock()

		if next != nil {
			q.run(ctx, next)
			continue
		}
		if wait >= 0 {
			timer.Reset(wait)
		}
		select {
		case <-q.done:
			timer.Stop()
			return
		case <-q.wake:
			timer.Stop()
		case <-timer.C:
		}
	}
}

func (q *Queue) run(ctx context.Context, task *Task) {
	defer func() {
		if r := recover(); r != nil {
			q.panicked.Add(1)
			q.logger.Error("worker: task panicked", "id", task.ID, "panic", r)
		}
	}()
	q.executed.Add(1)
	if task.Run == nil {
		return
	}
	if err := task.Run(ctx); err != nil {
		q.failed.Add(1)
		q.logger.Warn("worker: task failed", "id", task.ID, "err", err)
	}
}

func discard(t *Task) {
	if t == nil || t.Discard == nil {
		return
	}
	t.Discard()
}
