package core

import (
	"testing"
	"time"
)

func TestProgressChannelNeverBlocksAndCloses(t *testing.T) {
	p := NewProgressChannel(5, func() time.Time { return fixedNow })
	for i := 0; i < 5; i++ {
		p.stageStarted("s", "working")
		p.stageCompleted("s", time.Millisecond)
	}
	p.turnCompleted(TurnResult{TurnID: "t"})
	// after the terminal event nothing is sent and nothing panics
	p.stageStarted("late", "ignored")

	var got []ProgressEvent
	for ev := range p.Events() {
		got = append(got, ev)
	}
	if len(got) != 11 || p.Dropped() != 0 {
		t.Fatalf("expected 11 buffered events, got %d (dropped %d)", len(got), p.Dropped())
	}
	if !got[10].Terminal() || got[10].Result.TurnID != "t" || got[10].Seq != 11 {
		t.Fatalf("unexpected terminal event %+v", got[10])
	}
	if !got[0].Time.Equal(fixedNow) {
		t.Fatalf("event time not stamped")
	}
}

func TestProgressChannelErrorIsTerminal(t *testing.T) {
	p := NewProgressChannel(1, nil)
	p.stageStarted("decide", "thinking")
	p.fail("invalid_credentials", "rejected", TurnResult{ReplyText: FallbackReply})
	p.fail("internal", "second", TurnResult{})

	var kinds []string
	for ev := range p.Events() {
		kinds = append(kinds, string(ev.Type)+":"+ev.ErrorKind)
	}
	if len(kinds) != 2 || kinds[1] != "error:invalid_credentials" {
		t.Fatalf("unexpected events %v", kinds)
	}
}

func TestProgressChannelCountsOverflow(t *testing.T) {
	p := NewProgressChannel(1, nil)
	for i := 0; i < 4; i++ {
		p.stageStarted("s", "working")
	}
	if p.Dropped() != 1 {
		t.Fatalf("expected 1 dropped event, got %d", p.Dropped())
	}
	p.turnCompleted(TurnResult{})
	var n int
	for range p.Events() {
		n++
	}
	if n != 3 || p.Dropped() != 2 {
		t.Fatalf("got %d events and %d dropped", n, p.Dropped())
	}
}
