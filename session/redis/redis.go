package redis_session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mohammad-safakhou/civicnav/models"
	"github.com/mohammad-safakhou/civicnav/session/session_models"
)

const (
	defaultPrefix   = "civicnav:"
	defaultCapacity = 500
	defaultTTL      = 24 * time.Hour
	maxTxRetries    = 8
)

// Store keeps each session as one JSON document with a TTL. A sorted set
// scored by last-touch time tracks recency; sessions beyond capacity are
// evicted oldest first.
type Store struct {
	client   *redis.Client
	prefix   string
	capacity int
	ttl      time.Duration
	logger   *log.Logger
}

func NewRedisSessionStore(client *redis.Client, prefix string, capacity int, ttl time.Duration) *Store {
	if prefix == "" {
		prefix = defaultPrefix
	}
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &Store{
		client:   client,
		prefix:   prefix,
		capacity: capacity,
		ttl:      ttl,
		logger:   log.New(log.Writer(), "[SESSION] ", log.LstdFlags),
	}
}

func (store *Store) key(id string) string { return fmt.Sprintf("%ssession:%s", store.prefix, id) }
func (store *Store) indexKey() string     { return store.prefix + "sessions" }

func (store *Store) Get(ctx context.Context, id string) (models.Session, error) {
	data, err := store.client.Get(ctx, store.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return models.Session{ID: id}, nil
	}
	if err != nil {
		return models.Session{}, fmt.Errorf("get session %s: %w", id, err)
	}
	var sess models.Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return models.Session{}, fmt.Errorf("decode session %s: %w", id, err)
	}
	return sess, nil
}

// AppendTurn applies the turn inside a WATCH/MULTI transaction, retrying when
// a concurrent writer touched the same session.
func (store *Store) AppendTurn(ctx context.Context, id string, turn models.Turn, merge session_models.MergeFunc) (models.Session, error) {
	key := store.key(id)
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = time.Now().UTC()
	}
	var result models.Session
	txf := func(tx *redis.Tx) error {
		sess := models.Session{ID: id}
		data, err := tx.Get(ctx, key).Bytes()
		switch {
		case errors.Is(err, redis.Nil):
		case err != nil:
			return err
		default:
			if err := json.Unmarshal(data, &sess); err != nil {
				return fmt.Errorf("decode session %s: %w", id, err)
			}
		}
		session_models.Apply(&sess, turn, merge)
		encoded, err := json.Marshal(sess)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, encoded, store.ttl)
			pipe.ZAdd(ctx, store.indexKey(), redis.Z{Score: float64(time.Now().UnixNano()), Member: id})
			return nil
		})
		if err == nil {
			result = sess
		}
		return err
	}

	var err error
	for attempt := 0; attempt < maxTxRetries; attempt++ {
		err = store.client.Watch(ctx, txf, key)
		if !errors.Is(err, redis.TxFailedErr) {
			break
		}
	}
	if err != nil {
		return models.Session{}, fmt.Errorf("append turn to session %s: %w", id, err)
	}
	if err := store.evict(ctx); err != nil {
		store.logger.Printf("evict: %v", err)
	}
	return result, nil
}

// evict drops index entries whose documents have expired, then removes the
// least recently touched sessions above capacity.
func (store *Store) evict(ctx context.Context) error {
	idx := store.indexKey()
	cutoff := time.Now().Add(-store.ttl).UnixNano()
	if err := store.client.ZRemRangeByScore(ctx, idx, "-inf", strconv.FormatInt(cutoff, 10)).Err(); err != nil {
		return err
	}
	n, err := store.client.ZCard(ctx, idx).Result()
	if err != nil {
		return err
	}
	excess := n - int64(store.capacity)
	if excess <= 0 {
		return nil
	}
	ids, err := store.client.ZRange(ctx, idx, 0, excess-1).Result()
	if err != nil {
		return err
	}
	keys := make([]string, len(ids))
	members := make([]interface{}, len(ids))
	for i, id := range ids {
		keys[i] = store.key(id)
		members[i] = id
	}
	if err := store.client.Del(ctx, keys...).Err(); err != nil {
		return err
	}
	return store.client.ZRem(ctx, idx, members...).Err()
}

// Len reports the number of tracked sessions, or 0 when Redis is unreachable.
func (store *Store) Len() int {
	n, err := store.client.ZCard(context.Background(), store.indexKey()).Result()
	if err != nil {
		return 0
	}
	return int(n)
}
