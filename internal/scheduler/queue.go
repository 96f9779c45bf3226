package scheduler

import (
	"container/heap"
	"sync"
	"time"

	"staywatch/internal/models"
)

// taskQueue is the in-memory dispatch order over pending tasks. Tier 1
// drains strictly before tier 2 before tier 3; within a tier tasks come
// out in the order they went in. Items pushed with a not-before time sit
// in a delay heap and move to the ready heap once due.
//
// Durable task state lives in fetch_tasks rows; this queue only orders the
// in-flight working set, so losing it on restart loses nothing.
type taskQueue struct {
	mu      sync.Mutex
	ready   readyHeap
	delayed delayHeap
	seq     uint64
}

type queueItem struct {
	task      models.FetchTask
	notBefore time.Time
	seq       uint64
}

func newTaskQueue() *taskQueue {
	return &taskQueue{}
}

// Push enqueues a task for immediate dispatch.
func (q *taskQueue) Push(task models.FetchTask) {
	q.PushAfter(task, time.Time{})
}

// PushAfter enqueues a task that must not dispatch before notBefore.
func (q *taskQueue) PushAfter(task models.FetchTask, notBefore time.Time) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.seq++
	item := &queueItem{task: task, notBefore: notBefore, seq: q.seq}
	if notBefore.IsZero() {
		heap.Push(&q.ready, item)
		return
	}
	heap.Push(&q.delayed, item)
}

// Pop returns the next dispatchable task at time now, or false when nothing
// is ready yet.
func (q *taskQueue) Pop(now time.Time) (models.FetchTask, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for q.delayed.Len() > 0 && !q.delayed[0].notBefore.After(now) {
		item := heap.Pop(&q.delayed).(*queueItem)
		heap.Push(&q.ready, item)
	}

	if q.ready.Len() == 0 {
		return models.FetchTask{}, false
	}
	item := heap.Pop(&q.ready).(*queueItem)
	return item.task, true
}

// Len counts all queued tasks, ready or delayed.
func (q *taskQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.ready.Len() + q.delayed.Len()
}

// NextDelay reports how long until the earliest delayed task becomes ready.
// Zero means something is ready now; ok is false when the queue is empty.
func (q *taskQueue) NextDelay(now time.Time) (time.Duration, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.ready.Len() > 0 {
		return 0, true
	}
	for q.delayed.Len() > 0 && !q.delayed[0].notBefore.After(now) {
		return 0, true
	}
	if q.delayed.Len() == 0 {
		return 0, false
	}
	return q.delayed[0].notBefore.Sub(now), true
}

// readyHeap orders by tier then insertion order.
type readyHeap []*queueItem

func (h readyHeap) Len() int { return len(h) }
func (h readyHeap) Less(i, j int) bool {
	if h[i].task.Tier != h[j].task.Tier {
		return h[i].task.Tier < h[j].task.Tier
	}
	return h[i].seq < h[j].seq
}
func (h readyHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *readyHeap) Push(x any)   { *h = append(*h, x.(*queueItem)) }
func (h *readyHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}

// delayHeap orders by not-before time.
type delayHeap []*queueItem

func (h delayHeap) Len() int { return len(h) }
func (h delayHeap) Less(i, j int) bool {
	if !h[i].notBefore.Equal(h[j].notBefore) {
		return h[i].notBefore.Before(h[j].notBefore)
	}
	return h[i].seq < h[j].seq
}
func (h delayHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *delayHeap) Push(x any)   { *h = append(*h, x.(*queueItem)) }
func (h *delayHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}
