package core

import (
	"time"
)

// EventType tags a ProgressEvent.
type EventType string

const (
	EventStageStarted   EventType = "stage_started"
	EventStageCompleted EventType = "stage_completed"
	EventTurnCompleted  EventType = "turn_completed"
	EventError          EventType = "error"
)

// ProgressEvent is one notification about a running turn. Stage and Message
// are set on stage events, Duration on stage_completed, Result on
// turn_completed and error, ErrorKind on error.
type ProgressEvent struct {
	Seq       int           `json:"seq"`
	Type      EventType     `json:"type"`
	Stage     string        `json:"stage,omitempty"`
	Message   string        `json:"message,omitempty"`
	Duration  time.Duration `json:"duration_ns,omitempty"`
	ErrorKind string        `json:"error_kind,omitempty"`
	Result    *TurnResult   `json:"result,omitempty"`
	Time      time.Time     `json:"time"`
}

// Terminal reports whether e ends its turn's stream.
func (e ProgressEvent) Terminal() bool {
	return e.Type == EventTurnCompleted || e.Type == EventError
}

// ProgressChannel carries one turn's events from the orchestrator to a single
// consumer. The buffer holds every event a turn can produce, so sends never
// block even when nobody reads. It is closed right after the terminal event.
type ProgressChannel struct {
	ch      chan ProgressEvent
	seq     int
	done    bool
	dropped int
	now     func() time.Time
}

// NewProgressChannel sizes the buffer for a pipeline of the given number of stages.
func NewProgressChannel(stages int, now func() time.Time) *ProgressChannel {
	if now == nil {
		now = time.Now
	}
	return &ProgressChannel{ch: make(chan ProgressEvent, 2*stages+1), now: now}
}

// Events returns the receive side.
func (p *ProgressChannel) Events() <-chan ProgressEvent { return p.ch }

// Dropped counts events that did not fit in the buffer. Read it from the
// producing goroutine only.
func (p *ProgressChannel) Dropped() int { return p.dropped }

// emit is called only from the turn's goroutine.
func (p *ProgressChannel) emit(e ProgressEvent) {
	if p.done {
		return
	}
	p.seq++
	e.Seq = p.seq
	e.Time = p.now()
	select {
	case p.ch <- e:
	default:
		p.dropped++
	}
	if e.Terminal() {
		p.done = true
		close(p.ch)
	}
}

func (p *ProgressChannel) stageStarted(stage, message string) {
	p.emit(ProgressEvent{Type: EventStageStarted, Stage: stage, Message: message})
}

func (p *ProgressChannel) stageCompleted(stage string, d time.Duration) {
	p.emit(ProgressEvent{Type: EventStageCompleted, Stage: stage, Duration: d})
}

func (p *ProgressChannel) turnCompleted(res TurnResult) {
	p.emit(ProgressEvent{Type: EventTurnCompleted, Result: &res})
}

func (p *ProgressChannel) fail(kind, message string, res TurnResult) {
	p.emit(ProgressEvent{Type: EventError, ErrorKind: kind, Message: message, Result: &res})
}
