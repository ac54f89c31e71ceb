package core

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mohammad-safakhou/civicnav/config"
	"github.com/mohammad-safakhou/civicnav/models"
	"github.com/mohammad-safakhou/civicnav/provider"
	"github.com/mohammad-safakhou/civicnav/session"
	"github.com/mohammad-safakhou/civicnav/tools/web_search"
)

// scriptedReasoning answers strategy prompts with strategy and response
// prompts with respond. A nil func returns an empty answer.
type scriptedReasoning struct {
	strategy func(req provider.Request) (provider.Response, error)
	respond  func(req provider.Request) (provider.Response, error)

	mu    sync.Mutex
	calls []provider.Request
}

func (s *scriptedReasoning) Call(_ context.Context, req provider.Request) (provider.Response, error) {
	s.mu.Lock()
	s.calls = append(s.calls, req)
	s.mu.Unlock()
	fn := s.respond
	if strings.Contains(req.Prompt, "search_decision") {
		fn = s.strategy
	}
	if fn == nil {
		return provider.Response{}, nil
	}
	return fn(req)
}

func (s *scriptedReasoning) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

func strategyJSON(category, urgency, decision string) func(provider.Request) (provider.Response, error) {
	return func(provider.Request) (provider.Response, error) {
		return provider.Response{Text: `Here is my analysis:
{"conversation_type":"CIVIC_NEED","need_category":"` + category + `","urgency_level":"` + urgency + `","search_decision":"` + decision + `","reasoning":"test"}`}, nil
	}
}

// echoResources replies with the names listed under the prompt's resources heading.
func echoResources(req provider.Request) (provider.Response, error) {
	var names []string
	inList := false
	for _, line := range strings.Split(req.Prompt, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, "## RESOURCES FOUND"):
			inList = true
		case strings.HasPrefix(line, "##") || line == "":
			inList = false
		case inList && len(line) > 3 && line[0] >= '1' && line[0] <= '9' && line[1] == '.':
			names = append(names, strings.TrimSpace(line[2:]))
		}
	}
	if len(names) == 0 {
		return provider.Response{Text: "I'm glad to help."}, nil
	}
	return provider.Response{Text: "You can reach out to " + strings.Join(names, " and ") + "."}, nil
}

type fakeSearch struct {
	fn    func(n int, q web_search.Query) (web_search.Result, error)
	calls atomic.Int32

	mu      sync.Mutex
	queries []string
}

func (f *fakeSearch) Search(_ context.Context, q web_search.Query) (web_search.Result, error) {
	n := int(f.calls.Add(1))
	f.mu.Lock()
	f.queries = append(f.queries, q.Text)
	f.mu.Unlock()
	if f.fn == nil {
		return web_search.Result{Query: q.Text}, nil
	}
	return f.fn(n, q)
}

func items(titles ...string) []web_search.Item {
	out := make([]web_search.Item, len(titles))
	for i, title := range titles {
		slug := strings.ToLower(strings.ReplaceAll(strings.Fields(title)[0], " ", ""))
		out[i] = web_search.Item{
			Title:    title,
			URL:      "https://" + slug + ".org/" + string(rune('a'+i)),
			Snippet:  title + " serves Peoria County. Call (309) 555-01" + string(rune('0'+i%10)) + "0.",
			Position: i + 1,
		}
	}
	return out
}

type fakeArchive struct {
	mu      sync.Mutex
	saved   []models.Turn
	history []models.Turn
	saveErr error
}

func (a *fakeArchive) SaveTurn(_ context.Context, _ string, turn models.Turn, _ string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.saved = append(a.saved, turn)
	return a.saveErr
}

func (a *fakeArchive) RecentTurns(_ context.Context, _ string, limit int) ([]models.Turn, error) {
	if len(a.history) > limit {
		return a.history[len(a.history)-limit:], nil
	}
	return a.history, nil
}

var fixedNow = time.Date(2026, 3, 14, 10, 30, 0, 0, time.UTC)

func newTestOrchestrator(t *testing.T, reasoning provider.ReasoningClient, search web_search.SearchClient, mutate func(*config.PipelineConfig, *Dependencies)) *Orchestrator {
	t.Helper()
	store, err := session.NewStore(session.InMemoryStore, session.Options{Capacity: 100, TTL: time.Hour})
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	cfg := config.DefaultPipeline()
	deps := Dependencies{
		Reasoning: reasoning,
		Sessions:  store,
		Now:       func() time.Time { return fixedNow },
	}
	if search != nil {
		deps.Search = search
	}
	if mutate != nil {
		mutate(&cfg, &deps)
	}
	o, err := NewOrchestrator(cfg, deps)
	if err != nil {
		t.Fatalf("NewOrchestrator: %v", err)
	}
	return o
}

func drain(h *TurnHandle) []ProgressEvent {
	var out []ProgressEvent
	for ev := range h.Events() {
		out = append(out, ev)
	}
	return out
}
