package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"github.com/mohammad-safakhou/civicnav/models"
)

// Store archives finalized turns in Postgres.
type Store struct {
	DB     *sql.DB
	logger *log.Logger
}

// NewWithDSN opens and pings a Postgres connection.
func NewWithDSN(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping archive: %w", err)
	}
	return New(db), nil
}

// New wraps an existing handle.
func New(db *sql.DB) *Store {
	return &Store{DB: db, logger: log.New(log.Writer(), "[ARCHIVE] ", log.LstdFlags)}
}

func (s *Store) Close() error {
	if s == nil || s.DB == nil {
		return nil
	}
	return s.DB.Close()
}

const insertTurnSQL = `
INSERT INTO conversations (turn_id, session_id, user_message, agent_response, need_category, urgency_level, search_performed, search_query, resources_count, resources, stage_timings, response_source, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
ON CONFLICT (turn_id) DO NOTHING;
`

// SaveTurn writes one finalized turn. Writing the same turn twice is a no-op.
func (s *Store) SaveTurn(ctx context.Context, sessionID string, t models.Turn, searchQuery string) error {
	resources, err := json.Marshal(nonNilResources(t.Resources))
	if err != nil {
		return fmt.Errorf("encode resources: %w", err)
	}
	timings, err := json.Marshal(nonNilTimings(t.Timings))
	if err != nil {
		return fmt.Errorf("encode timings: %w", err)
	}
	created := t.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	_, err = s.DB.ExecContext(ctx, insertTurnSQL,
		t.ID, sessionID, t.Message, t.Reply, t.NeedCategory, string(t.Urgency),
		t.SearchPerformed, nullIfEmpty(searchQuery), len(t.Resources), resources, timings,
		t.ResponseSource, created,
	)
	if err != nil {
		return fmt.Errorf("insert conversation turn: %w", err)
	}
	return nil
}

const recentTurnsSQL = `
SELECT turn_id, user_message, agent_response, COALESCE(need_category, ''), COALESCE(urgency_level, ''), search_performed, resources, stage_timings, COALESCE(response_source, ''), created_at
FROM conversations
WHERE session_id = $1
ORDER BY created_at DESC, id DESC
LIMIT $2;
`

// RecentTurns returns up to limit turns of a session, oldest first.
func (s *Store) RecentTurns(ctx context.Context, sessionID string, limit int) ([]models.Turn, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := s.DB.QueryContext(ctx, recentTurnsSQL, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("query conversation turns: %w", err)
	}
	defer rows.Close()

	var out []models.Turn
	for rows.Next() {
		var (
			t                  models.Turn
			urgency            string
			resources, timings []byte
		)
		if err := rows.Scan(&t.ID, &t.Message, &t.Reply, &t.NeedCategory, &urgency, &t.SearchPerformed, &resources, &timings, &t.ResponseSource, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan conversation turn: %w", err)
		}
		t.Urgency = models.ParseUrgency(urgency)
		if len(resources) > 0 {
			if err := json.Unmarshal(resources, &t.Resources); err != nil {
				s.logger.Printf("turn %s: ignoring undecodable resources: %v", t.ID, err)
			}
		}
		if len(timings) > 0 {
			if err := json.Unmarshal(timings, &t.Timings); err != nil {
				s.logger.Printf("turn %s: ignoring undecodable timings: %v", t.ID, err)
			}
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// CategoryCount is one row of CategoryStats.
type CategoryCount struct {
	Category string `json:"category"`
	Turns    int    `json:"turns"`
}

// CategoryStats counts archived turns per need category since the given time.
func (s *Store) CategoryStats(ctx context.Context, since time.Time) ([]CategoryCount, error) {
	rows, err := s.DB.QueryContext(ctx, `
SELECT COALESCE(need_category, ''), COUNT(*)
FROM conversations
WHERE created_at >= $1
GROUP BY 1
ORDER BY 2 DESC, 1;
`, since)
	if err != nil {
		return nil, fmt.Errorf("query category stats: %w", err)
	}
	defer rows.Close()
	var out []CategoryCount
	for rows.Next() {
		var c CategoryCount
		if err := rows.Scan(&c.Category, &c.Turns); err != nil {
			return nil, err
		}
		if strings.TrimSpace(c.Category) == "" {
			c.Category = models.CategoryGeneral
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func nullIfEmpty(s string) sql.NullString {
	return sql.NullString{String: s, Valid: strings.TrimSpace(s) != ""}
}

func nonNilResources(rs []models.Resource) []models.Resource {
	if rs == nil {
		return []models.Resource{}
	}
	return rs
}

func nonNilTimings(ts models.StageTimings) models.StageTimings {
	if ts == nil {
		return models.StageTimings{}
	}
	return ts
}
