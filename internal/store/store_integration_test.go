package store

import (
	"context"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	tcPostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/mohammad-safakhou/civicnav/migrations"
	"github.com/mohammad-safakhou/civicnav/models"
)

func TestStoreRoundTripPostgres(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	ctx := context.Background()

	pg, err := tcPostgres.RunContainer(ctx,
		testcontainers.WithImage("postgres:16-alpine"),
		tcPostgres.WithDatabase("civicnav"),
		tcPostgres.WithUsername("civicnav"),
		tcPostgres.WithPassword("civicnav"),
		testcontainers.WithWaitStrategy(wait.ForLog("database system is ready to accept connections").WithOccurrence(2).WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		t.Skipf("postgres container unavailable: %v", err)
	}
	t.Cleanup(func() { _ = pg.Terminate(ctx) })

	dsn, err := pg.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("connection string: %v", err)
	}
	st, err := NewWithDSN(ctx, dsn)
	if err != nil {
		t.Fatalf("NewWithDSN: %v", err)
	}
	defer st.Close()

	up, err := migrations.FS.ReadFile("000001_conversations.up.sql")
	if err != nil {
		t.Fatalf("read migration: %v", err)
	}
	if _, err := st.DB.ExecContext(ctx, string(up)); err != nil {
		t.Fatalf("apply migration: %v", err)
	}

	base := time.Now().UTC().Truncate(time.Second)
	for i, msg := range []string{"hi", "I need food", "what about housing?"} {
		turn := models.Turn{ID: msg, Message: msg, Reply: "ok", Urgency: models.UrgencyLow, CreatedAt: base.Add(time.Duration(i) * time.Second)}
		if err := st.SaveTurn(ctx, "s1", turn, ""); err != nil {
			t.Fatalf("SaveTurn: %v", err)
		}
	}
	// duplicate writes are ignored
	if err := st.SaveTurn(ctx, "s1", models.Turn{ID: "hi", Message: "hi", Reply: "ok"}, ""); err != nil {
		t.Fatalf("SaveTurn duplicate: %v", err)
	}

	turns, err := st.RecentTurns(ctx, "s1", 2)
	if err != nil {
		t.Fatalf("RecentTurns: %v", err)
	}
	if len(turns) != 2 || turns[0].Message != "I need food" || turns[1].Message != "what about housing?" {
		t.Fatalf("unexpected turns %+v", turns)
	}
}
