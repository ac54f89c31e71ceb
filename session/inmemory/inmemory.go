package inmemory

import (
	"context"
	"hash/fnv"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/mohammad-safakhou/civicnav/models"
	"github.com/mohammad-safakhou/civicnav/session/session_models"
)

const (
	DefaultCapacity = 500
	DefaultTTL      = 24 * time.Hour

	lockStripes = 64
)

// Store keeps sessions in an LRU bounded by capacity whose entries expire
// ttl after their last update. Appends to one id are serialized by a lock
// stripe chosen from the id, so eviction between two appends can only reset
// a session, never fork it.
type Store struct {
	sessions *expirable.LRU[string, models.Session]
	locks    [lockStripes]sync.Mutex
}

func NewInMemorySessionStore(capacity int, ttl time.Duration, onEvict func(id string)) *Store {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	var cb expirable.EvictCallback[string, models.Session]
	if onEvict != nil {
		cb = func(id string, _ models.Session) { onEvict(id) }
	}
	return &Store{sessions: expirable.NewLRU[string, models.Session](capacity, cb, ttl)}
}

func (store *Store) lockFor(id string) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(id))
	return &store.locks[h.Sum32()%lockStripes]
}

func (store *Store) Get(_ context.Context, id string) (models.Session, error) {
	if sess, ok := store.sessions.Get(id); ok {
		return sess.Clone(), nil
	}
	return models.Session{ID: id}, nil
}

func (store *Store) AppendTurn(_ context.Context, id string, turn models.Turn, merge session_models.MergeFunc) (models.Session, error) {
	mu := store.lockFor(id)
	mu.Lock()
	defer mu.Unlock()

	sess, ok := store.sessions.Get(id)
	if ok {
		sess = sess.Clone()
	} else {
		sess = models.Session{ID: id}
	}
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = time.Now().UTC()
	}
	session_models.Apply(&sess, turn, merge)
	store.sessions.Add(id, sess)
	return sess.Clone(), nil
}

func (store *Store) Len() int { return store.sessions.Len() }
