package session

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/mohammad-safakhou/civicnav/models"
	"github.com/mohammad-safakhou/civicnav/session/inmemory"
	redis_session "github.com/mohammad-safakhou/civicnav/session/redis"
	"github.com/mohammad-safakhou/civicnav/session/session_models"
)

type MergeFunc = session_models.MergeFunc

// Store owns every session's history and accumulated resources. A missing
// session is returned as an empty one, never as an error. AppendTurn is
// atomic per session id: merge runs inside that session's critical section.
type Store interface {
	Get(ctx context.Context, id string) (models.Session, error)
	AppendTurn(ctx context.Context, id string, turn models.Turn, merge MergeFunc) (models.Session, error)
	Len() int
}

type StoreType string

const (
	InMemoryStore StoreType = "inmemory"
	RedisStore    StoreType = "redis"
)

// Options configures NewStore. Redis is required for RedisStore only.
type Options struct {
	Capacity int
	TTL      time.Duration
	Prefix   string
	Redis    *goredis.Client
	OnEvict  func(id string)
}

func NewStore(storeType StoreType, opts Options) (Store, error) {
	switch storeType {
	case InMemoryStore, "":
		return inmemory.NewInMemorySessionStore(opts.Capacity, opts.TTL, opts.OnEvict), nil
	case RedisStore:
		if opts.Redis == nil {
			return nil, fmt.Errorf("redis session store: no client configured")
		}
		return redis_session.NewRedisSessionStore(opts.Redis, opts.Prefix, opts.Capacity, opts.TTL), nil
	default:
		return nil, fmt.Errorf("unsupported session store type: %s", storeType)
	}
}
