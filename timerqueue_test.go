package cxmx

import "testing"

func TestTimerQueueOrdersByDeadline(t *testing.T) {
	q := newTimerQueue()
	q.insert(3.0, CategoryUserTimer, nil)
	q.insert(1.0, CategoryUserTimer, nil)
	q.insert(2.0, CategoryUserTimer, nil)

	var got []float64
	for q.len() > 0 {
		got = append(got, q.pop().Deadline)
	}
	want := []float64{1.0, 2.0, 3.0}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("pop order = %v, want %v", got, want)
		}
	}
}

func TestTimerQueueTiesBreakByInsertionOrder(t *testing.T) {
	q := newTimerQueue()
	h1 := q.insert(5.0, CategoryUserTimer, nil)
	h2 := q.insert(5.0, CategoryUserTimer, nil)
	h3 := q.insert(5.0, CategoryUserTimer, nil)

	var got []TimerHandle
	for q.len() > 0 {
		got = append(got, q.pop().Handle)
	}
	want := []TimerHandle{h1, h2, h3}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("tie-break order = %v, want %v", got, want)
		}
	}
}

func TestTimerQueueRemoveByHandle(t *testing.T) {
	q := newTimerQueue()
	q.insert(1.0, CategoryUserTimer, nil)
	h2 := q.insert(2.0, CategoryUserTimer, nil)
	q.insert(3.0, CategoryUserTimer, nil)

	if !q.removeByHandle(h2) {
		t.Fatal("removeByHandle returned false for a present handle")
	}
	if q.len() != 2 {
		t.Fatalf("len after remove = %d, want 2", q.len())
	}
	if q.removeByHandle(h2) {
		t.Fatal("removeByHandle returned true for an already-removed handle")
	}

	var got []float64
	for q.len() > 0 {
		got = append(got, q.pop().Deadline)
	}
	if len(got) != 2 || got[0] != 1.0 || got[1] != 3.0 {
		t.Fatalf("remaining deadlines = %v, want [1 3]", got)
	}
}

func TestTimerQueuePeekDoesNotRemove(t *testing.T) {
	q := newTimerQueue()
	q.insert(1.0, CategoryUserTimer, nil)

	if q.peek() == nil {
		t.Fatal("peek on non-empty queue returned nil")
	}
	if q.len() != 1 {
		t.Fatal("peek must not remove the entry")
	}
	if q.pop() == nil || q.len() != 0 {
		t.Fatal("pop should remove the single remaining entry")
	}
	if q.peek() != nil {
		t.Fatal("peek on empty queue must return nil")
	}
}
