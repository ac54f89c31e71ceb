package core

import (
	"context"

	"github.com/mohammad-safakhou/civicnav/models"
)

// FallbackReply is returned whenever a turn cannot produce a reply of its own.
const FallbackReply = "I'm having trouble finding specific matches right now. For immediate help, call 211 - available 24/7."

// Response sources recorded on a turn.
const (
	SourceReasoning    = "reasoning"
	SourceTemplate     = "template"
	SourceFallback     = "fallback"
	SourceConversation = "conversation"
)

// Credentials are per-turn access keys. Empty values fall back to the
// process-wide keys configured on each client.
type Credentials struct {
	Reasoning string `json:"reasoning,omitempty"`
	Search    string `json:"search,omitempty"`
}

// TurnRequest is one user message submitted to a session.
type TurnRequest struct {
	SessionID   string      `json:"session_id"`
	Message     string      `json:"message"`
	Credentials Credentials `json:"api_keys,omitempty"`
}

// TurnError describes why a turn was aborted.
type TurnError struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// TurnResult is the outcome of one turn. Resources is the session's
// accumulated set after the turn; NewResources are the ones this turn found.
type TurnResult struct {
	TurnID          string              `json:"turn_id"`
	SessionID       string              `json:"session_id"`
	ReplyText       string              `json:"reply"`
	Resources       []models.Resource   `json:"resources"`
	NewResources    []models.Resource   `json:"new_resources"`
	NeedCategory    string              `json:"need_category"`
	UrgencyLevel    models.Urgency      `json:"urgency_level"`
	StageTimings    models.StageTimings `json:"stage_timings"`
	SearchPerformed bool                `json:"search_performed"`
	ResponseSource  string              `json:"response_source"`
	Error           *TurnError          `json:"error,omitempty"`
}

// Aborted reports whether the turn ended in an error event.
func (r TurnResult) Aborted() bool { return r.Error != nil }

// Archive is the optional long-term record of finalized turns.
type Archive interface {
	SaveTurn(ctx context.Context, sessionID string, turn models.Turn, searchQuery string) error
	RecentTurns(ctx context.Context, sessionID string, limit int) ([]models.Turn, error)
}
