package inmemory

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/mohammad-safakhou/civicnav/internal/resources"
	"github.com/mohammad-safakhou/civicnav/models"
)

func mergeWith(incoming ...models.Resource) func([]models.Resource) []models.Resource {
	return func(existing []models.Resource) []models.Resource {
		return resources.Merge(existing, incoming)
	}
}

func TestGetMissingIsEmpty(t *testing.T) {
	store := NewInMemorySessionStore(10, time.Hour, nil)
	sess, err := store.Get(context.Background(), "nope")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if sess.ID != "nope" || len(sess.Turns) != 0 || len(sess.Resources) != 0 {
		t.Fatalf("expected empty session, got %+v", sess)
	}
	if store.Len() != 0 {
		t.Fatalf("Get must not create sessions")
	}
}

func TestAppendTurn(t *testing.T) {
	ctx := context.Background()
	store := NewInMemorySessionStore(10, time.Hour, nil)
	if _, err := store.AppendTurn(ctx, "s1", models.Turn{ID: "t1"}, mergeWith(models.Resource{Name: "Peoria Food Bank"})); err != nil {
		t.Fatalf("AppendTurn: %v", err)
	}
	sess, err := store.AppendTurn(ctx, "s1", models.Turn{ID: "t2"}, mergeWith(models.Resource{Name: "peoria food bank"}, models.Resource{Name: "CityLink"}))
	if err != nil {
		t.Fatalf("AppendTurn: %v", err)
	}
	if len(sess.Turns) != 2 || len(sess.Resources) != 2 {
		t.Fatalf("unexpected session %+v", sess)
	}
	if sess.CreatedAt.IsZero() || sess.UpdatedAt.Before(sess.CreatedAt) {
		t.Fatalf("timestamps not maintained: %+v", sess)
	}

	// returned copies are private
	sess.Resources[0].Name = "mutated"
	again, _ := store.Get(ctx, "s1")
	if again.Resources[0].Name != "Peoria Food Bank" {
		t.Fatalf("store shares memory with callers")
	}
}

func TestEvictsLeastRecentlyTouched(t *testing.T) {
	ctx := context.Background()
	var evicted []string
	store := NewInMemorySessionStore(2, time.Hour, func(id string) { evicted = append(evicted, id) })
	for _, id := range []string{"a", "b"} {
		_, _ = store.AppendTurn(ctx, id, models.Turn{}, nil)
	}
	_, _ = store.Get(ctx, "a")
	_, _ = store.AppendTurn(ctx, "c", models.Turn{}, nil)
	if store.Len() != 2 {
		t.Fatalf("expected capacity to hold, got %d", store.Len())
	}
	if len(evicted) != 1 || evicted[0] != "b" {
		t.Fatalf("expected b evicted, got %v", evicted)
	}
	if sess, _ := store.Get(ctx, "b"); len(sess.Turns) != 0 {
		t.Fatalf("evicted session still visible")
	}
}

func TestExpiresAfterTTL(t *testing.T) {
	ctx := context.Background()
	store := NewInMemorySessionStore(10, 20*time.Millisecond, nil)
	_, _ = store.AppendTurn(ctx, "s", models.Turn{}, nil)
	time.Sleep(60 * time.Millisecond)
	if sess, _ := store.Get(ctx, "s"); len(sess.Turns) != 0 {
		t.Fatalf("expected expired session to read as empty")
	}
}

func TestConcurrentAppendsLoseNothing(t *testing.T) {
	ctx := context.Background()
	store := NewInMemorySessionStore(10, time.Hour, nil)
	const turns = 50
	var wg sync.WaitGroup
	for i := 0; i < turns; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			name := fmt.Sprintf("Resource %d", i)
			if _, err := store.AppendTurn(ctx, "shared", models.Turn{ID: name}, mergeWith(models.Resource{Name: name})); err != nil {
				t.Errorf("AppendTurn: %v", err)
			}
		}()
	}
	wg.Wait()
	sess, _ := store.Get(ctx, "shared")
	if len(sess.Turns) != turns || len(sess.Resources) != turns {
		t.Fatalf("lost updates: %d turns, %d resources", len(sess.Turns), len(sess.Resources))
	}
}
