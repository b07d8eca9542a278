package cxmx

import "container/heap"

// TimerCategory distinguishes a caller-scheduled timer from the
// internal deadline an in-flight Await call installs.
type TimerCategory int

const (
	CategoryUserTimer TimerCategory = iota
	CategoryAwaitDeadline
)

// TimerHandle identifies a scheduled timer for cancellation. cxmx
// prefers an opaque handle over pointer-identity comparison of the
// callback.
type TimerHandle uint64

// TimerCallback is invoked when its timer's deadline is reached.
type TimerCallback func(r *Reactor)

// Timer is one entry in the TimerQueue: an absolute wall-clock
// deadline (seconds since epoch), a callback, and a category.
type Timer struct {
	Deadline float64
	Category TimerCategory
	Handle   TimerHandle
	Callback TimerCallback

	seq int // insertion sequence, breaks deadline ties (stable order)
	idx int // index into the heap's backing slice, maintained by Swap
}

// TimerQueue is a time-ordered priority queue of Timer entries: head
// is always the earliest future deadline. Implemented as a
// container/heap; removeByHandle finds the entry with a linear scan
// and then removes it with heap.Remove.
type TimerQueue struct {
	h      timerHeap
	nextID uint64
	seq    int
}

func newTimerQueue() *TimerQueue {
	return &TimerQueue{}
}

// insert adds a timer, assigning it the next handle and insertion
// sequence number, and returns its handle.
func (q *TimerQueue) insert(deadline float64, cat TimerCategory, cb TimerCallback) TimerHandle {
	q.nextID++
	q.seq++
	t := &Timer{
		Deadline: deadline,
		Category: cat,
		Handle:   TimerHandle(q.nextID),
		Callback: cb,
		seq:      q.seq,
	}
	heap.Push(&q.h, t)
	return t.Handle
}

// peek returns the earliest deadline's Timer, or nil if the queue is empty.
func (q *TimerQueue) peek() *Timer {
	if len(q.h) == 0 {
		return nil
	}
	return q.h[0]
}

// pop removes and returns the head Timer, or nil if the queue is empty.
func (q *TimerQueue) pop() *Timer {
	if len(q.h) == 0 {
		return nil
	}
	return heap.Pop(&q.h).(*Timer)
}

// removeByHandle removes the timer with the given handle, if present.
// No-op if absent.
func (q *TimerQueue) removeByHandle(h TimerHandle) bool {
	for i, t := range q.h {
		if t.Handle == h {
			heap.Remove(&q.h, i)
			return true
		}
	}
	return false
}

func (q *TimerQueue) len() int { return len(q.h) }

// timerHeap implements container/heap.Interface, ordered by Deadline
// with ties broken by insertion sequence (stable order).
type timerHeap []*Timer

func (h timerHeap) Len() int { return len(h) }
func (h timerHeap) Less(i, j int) bool {
	if h[i].Deadline != h[j].Deadline {
		return h[i].Deadline < h[j].Deadline
	}
	return h[i].seq < h[j].seq
}
func (h timerHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].idx = i
	h[j].idx = j
}
func (h *timerHeap) Push(x interface{}) {
	t := x.(*Timer)
	t.idx = len(*h)
	*h = append(*h, t)
}
func (h *timerHeap) Pop() interface{} {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return t
}

// nowSeconds returns the current wall-clock time as seconds since the
// epoch with sub-second resolution.
func nowSeconds() float64 {
	return float64(nowUnixNano()) / 1e9
}
