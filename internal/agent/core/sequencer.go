package core

import "sync"

// sessionQueue orders turns per session. Each turn waits for the one accepted
// just before it on the same session; different sessions never wait on each
// other.
type sessionQueue struct {
	mu    sync.Mutex
	tails map[string]chan struct{}
}

func newSessionQueue() *sessionQueue {
	return &sessionQueue{tails: make(map[string]chan struct{})}
}

var closedChan = func() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}()

// enqueue appends a turn for id. The returned channel is closed once every
// earlier turn on id has released; release must be called exactly once.
func (q *sessionQueue) enqueue(id string) (<-chan struct{}, func()) {
	mine := make(chan struct{})
	q.mu.Lock()
	prev, ok := q.tails[id]
	q.tails[id] = mine
	q.mu.Unlock()
	if !ok {
		prev = closedChan
	}
	var once sync.Once
	return prev, func() {
		once.Do(func() {
			q.mu.Lock()
			if q.tails[id] == mine {
				delete(q.tails, id)
			}
			q.mu.Unlock()
			close(mine)
		})
	}
}
