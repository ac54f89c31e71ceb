package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/mohammad-safakhou/civicnav/internal/agent/core"
	"github.com/mohammad-safakhou/civicnav/models"
)

func TestPrintEvent(t *testing.T) {
	var buf bytes.Buffer
	printEvent(&buf, core.ProgressEvent{Type: core.EventStageStarted, Message: "Searching for local resources"})
	printEvent(&buf, core.ProgressEvent{Type: core.EventStageCompleted, Stage: "search", Duration: 1500 * time.Microsecond})
	printEvent(&buf, core.ProgressEvent{Type: core.EventError, ErrorKind: "upstream", Message: "search failed"})
	printEvent(&buf, core.ProgressEvent{Type: core.EventTurnCompleted})
	got := buf.String()
	for _, want := range []string{"... Searching for local resources", "ok  search (2ms)", "!!  upstream: search failed"} {
		if !strings.Contains(got, want) {
			t.Fatalf("missing %q in %q", want, got)
		}
	}
	if strings.Count(got, "\n") != 3 {
		t.Fatalf("turn_completed should print nothing, got %q", got)
	}
}

func TestPrintResult(t *testing.T) {
	var buf bytes.Buffer
	printResult(&buf, core.TurnResult{
		ReplyText: "Call the food bank.",
		NewResources: []models.Resource{
			{Name: "Peoria Area Food Bank", Contact: "(309) 671-3906", URL: "https://peoriafoodbank.org/"},
			{Name: "United Way 2-1-1"},
		},
	})
	got := buf.String()
	if !strings.Contains(got, "1. Peoria Area Food Bank | (309) 671-3906 | https://peoriafoodbank.org/") {
		t.Fatalf("unexpected output %q", got)
	}
	if !strings.Contains(got, "2. United Way 2-1-1\n") {
		t.Fatalf("unexpected output %q", got)
	}
}
