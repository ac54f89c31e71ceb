package store

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"

	"github.com/mohammad-safakhou/civicnav/models"
)

func TestSaveTurn(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	st := New(db)
	turn := models.Turn{
		ID:              "turn-1",
		Message:         "I need food assistance in Peoria",
		NeedCategory:    "food_security",
		Urgency:         models.UrgencyMedium,
		Reply:           "Peoria Food Bank can help.",
		Resources:       []models.Resource{{Name: "Peoria Food Bank"}},
		SearchPerformed: true,
		ResponseSource:  "reasoning",
		CreatedAt:       time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	}

	mock.ExpectExec(regexp.QuoteMeta(insertTurnSQL)).
		WithArgs("turn-1", "s1", turn.Message, turn.Reply, "food_security", "medium", true,
			sql.NullString{String: "food pantry Peoria", Valid: true}, 1, sqlmock.AnyArg(), sqlmock.AnyArg(), "reasoning", turn.CreatedAt).
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := st.SaveTurn(context.Background(), "s1", turn, "food pantry Peoria"); err != nil {
		t.Fatalf("SaveTurn: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestRecentTurnsOldestFirst(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	st := New(db)
	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{"turn_id", "user_message", "agent_response", "need_category", "urgency_level", "search_performed", "resources", "stage_timings", "response_source", "created_at"}).
		AddRow("t2", "what about housing?", "Try Habitat.", "housing", "high", true, []byte(`[{"name":"Heart of Illinois Habitat"}]`), []byte(`[]`), "reasoning", now).
		AddRow("t1", "hi", "Hello!", "intake_greeting", "bogus", false, []byte(`[]`), []byte(`[{"stage":"decide_strategy","duration_ns":5}]`), "", now.Add(-time.Minute))
	mock.ExpectQuery(regexp.QuoteMeta(recentTurnsSQL)).WithArgs("s1", 3).WillReturnRows(rows)

	turns, err := st.RecentTurns(context.Background(), "s1", 3)
	if err != nil {
		t.Fatalf("RecentTurns: %v", err)
	}
	if len(turns) != 2 || turns[0].ID != "t1" || turns[1].ID != "t2" {
		t.Fatalf("unexpected order %+v", turns)
	}
	if turns[0].Urgency != models.UrgencyMedium {
		t.Fatalf("unknown urgency should default to medium, got %q", turns[0].Urgency)
	}
	if len(turns[1].Resources) != 1 || turns[1].Resources[0].Name != "Heart of Illinois Habitat" {
		t.Fatalf("resources not decoded: %+v", turns[1].Resources)
	}
	if d, ok := turns[0].Timings.Get("decide_strategy"); !ok || d != 5 {
		t.Fatalf("timings not decoded: %+v", turns[0].Timings)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestRecentTurnsZeroLimit(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()
	turns, err := New(db).RecentTurns(context.Background(), "s1", 0)
	if err != nil || turns != nil {
		t.Fatalf("expected no query for zero limit, got %v %v", turns, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestCategoryStats(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()
	since := time.Now().Add(-24 * time.Hour)
	mock.ExpectQuery(`SELECT COALESCE\(need_category, ''\), COUNT\(\*\)`).
		WithArgs(since).
		WillReturnRows(sqlmock.NewRows([]string{"need_category", "count"}).AddRow("food", 4).AddRow("", 1))

	stats, err := New(db).CategoryStats(context.Background(), since)
	if err != nil {
		t.Fatalf("CategoryStats: %v", err)
	}
	if len(stats) != 2 || stats[1].Category != models.CategoryGeneral {
		t.Fatalf("unexpected stats %+v", stats)
	}
}
