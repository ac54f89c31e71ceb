package core

import (
	"testing"
	"time"
)

func TestSessionQueueIsFIFOPerSession(t *testing.T) {
	q := newSessionQueue()
	waitA, releaseA := q.enqueue("s")
	waitB, releaseB := q.enqueue("s")
	waitOther, releaseOther := q.enqueue("other")

	select {
	case <-waitA:
	default:
		t.Fatalf("first turn on a session should not wait")
	}
	select {
	case <-waitOther:
	default:
		t.Fatalf("another session should not wait on s")
	}
	select {
	case <-waitB:
		t.Fatalf("second turn ran before the first released")
	case <-time.After(20 * time.Millisecond):
	}

	releaseA()
	releaseA()
	select {
	case <-waitB:
	case <-time.After(time.Second):
		t.Fatalf("second turn not released")
	}
	releaseB()
	releaseOther()
	q.mu.Lock()
	n := len(q.tails)
	q.mu.Unlock()
	if n != 0 {
		t.Fatalf("expected empty queue, %d sessions pending", n)
	}
}
