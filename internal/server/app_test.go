package server

import (
	"context"
	"testing"
	"time"

	"github.com/mohammad-safakhou/civicnav/config"
)

func testConfig() *config.Config {
	return &config.Config{
		LLM:      config.LLMConfig{Provider: "openai", Model: "gpt-4o-mini", Timeout: time.Second},
		Search:   config.SearchConfig{Provider: "brave", MaxResults: 5, Timeout: time.Second},
		Session:  config.SessionConfig{Backend: "inmemory", Capacity: 4, TTL: time.Minute},
		Pipeline: config.DefaultPipeline(),
	}
}

func TestBuildInMemory(t *testing.T) {
	app, err := Build(context.Background(), testConfig())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer app.Close()
	if app.Orchestrator == nil || app.Sessions == nil {
		t.Fatalf("expected orchestrator and session store")
	}
	if app.Archive != nil {
		t.Fatalf("archive should stay nil without postgres config")
	}
	mfs, err := app.Registry.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if len(mfs) == 0 {
		t.Fatalf("expected registered collectors")
	}
}

func TestBuildRejectsUnknownProviders(t *testing.T) {
	cfg := testConfig()
	cfg.LLM.Provider = "mystery"
	if _, err := Build(context.Background(), cfg); err == nil {
		t.Fatalf("expected unknown llm provider to fail")
	}
	cfg = testConfig()
	cfg.Search.Provider = "mystery"
	if _, err := Build(context.Background(), cfg); err == nil {
		t.Fatalf("expected unknown search provider to fail")
	}
}
