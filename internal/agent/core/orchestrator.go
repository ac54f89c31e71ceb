package core

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/mohammad-safakhou/civicnav/config"
	"github.com/mohammad-safakhou/civicnav/internal/agent/telemetry"
	"github.com/mohammad-safakhou/civicnav/internal/resources"
	"github.com/mohammad-safakhou/civicnav/internal/upstream"
	"github.com/mohammad-safakhou/civicnav/models"
	"github.com/mohammad-safakhou/civicnav/provider"
	"github.com/mohammad-safakhou/civicnav/session"
	"github.com/mohammad-safakhou/civicnav/tools/web_search"
)

var orchestratorTracer trace.Tracer = otel.Tracer("civicnav/internal/agent/orchestrator")

// Dependencies are the collaborators injected into an Orchestrator. Search,
// Archive, Telemetry and Prompts are optional.
type Dependencies struct {
	Reasoning provider.ReasoningClient
	Search    web_search.SearchClient
	Sessions  session.Store
	Archive   Archive
	Telemetry *telemetry.Telemetry
	Prompts   *Prompts
	Logger    *log.Logger
	Now       func() time.Time
}

// Orchestrator runs the per-turn pipeline. It holds no per-session state and
// is safe for concurrent use.
type Orchestrator struct {
	cfg       config.PipelineConfig
	stages    config.StageNamesConfig
	reasoning provider.ReasoningClient
	search    web_search.SearchClient
	sessions  session.Store
	archive   Archive
	telemetry *telemetry.Telemetry
	prompts   *Prompts
	logger    *log.Logger
	now       func() time.Time
	queue     *sessionQueue
}

// NewOrchestrator validates cfg and wires deps.
func NewOrchestrator(cfg config.PipelineConfig, deps Dependencies) (*Orchestrator, error) {
	cfg = cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if deps.Reasoning == nil {
		return nil, errors.New("orchestrator: reasoning client is required")
	}
	if deps.Sessions == nil {
		return nil, errors.New("orchestrator: session store is required")
	}
	prompts := deps.Prompts
	if prompts == nil {
		var err error
		if prompts, err = LoadPrompts(cfg.PromptsFile); err != nil {
			return nil, err
		}
	}
	logger := deps.Logger
	if logger == nil {
		logger = log.New(log.Writer(), "[ORCH] ", log.LstdFlags)
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &Orchestrator{
		cfg:       cfg,
		stages:    cfg.StageNames,
		reasoning: deps.Reasoning,
		search:    deps.Search,
		sessions:  deps.Sessions,
		archive:   deps.Archive,
		telemetry: deps.Telemetry,
		prompts:   prompts,
		logger:    logger,
		now:       now,
		queue:     newSessionQueue(),
	}, nil
}

// Sessions exposes the store the orchestrator commits to.
func (o *Orchestrator) Sessions() session.Store { return o.sessions }

// Location is the default place used in prompts.
func (o *Orchestrator) Location() string { return o.cfg.Location }

// StageNames returns the configured stage identifiers in execution order.
func (o *Orchestrator) StageNames() []string { return o.stages.All() }

// TurnHandle is returned by RunTurn. Events must be drained by at most one
// consumer; Wait may be called any number of times.
type TurnHandle struct {
	SessionID string
	TurnID    string

	progress *ProgressChannel
	done     chan struct{}
	result   TurnResult
}

// Events yields the turn's progress. The channel is closed after the terminal event.
func (h *TurnHandle) Events() <-chan ProgressEvent { return h.progress.Events() }

// Wait blocks until the turn has finished.
func (h *TurnHandle) Wait() TurnResult {
	<-h.done
	return h.result
}

// Done is closed when the turn has finished.
func (h *TurnHandle) Done() <-chan struct{} { return h.done }

// RunTurn starts a turn on its own goroutine and returns immediately. Turns on
// one session run one at a time in the order RunTurn accepted them. Caller
// cancellation stops nothing already accepted: every stage runs under its own
// deadline on a context detached from ctx.
func (o *Orchestrator) RunTurn(ctx context.Context, req TurnRequest) *TurnHandle {
	req.SessionID = strings.TrimSpace(req.SessionID)
	if req.SessionID == "" {
		req.SessionID = uuid.New().String()
	}
	h := &TurnHandle{
		SessionID: req.SessionID,
		TurnID:    uuid.New().String(),
		progress:  NewProgressChannel(len(o.stages.All()), o.now),
		done:      make(chan struct{}),
	}
	turnCtx := context.WithoutCancel(ctx)
	wait, release := o.queue.enqueue(req.SessionID)
	go func() {
		defer close(h.done)
		defer release()
		<-wait
		h.result = o.runTurn(turnCtx, req, h.TurnID, h.progress)
		if n := h.progress.Dropped(); n > 0 {
			o.logger.Printf("turn %s: %d progress events dropped", h.TurnID, n)
		}
	}()
	return h
}

// Run executes a turn synchronously, discarding progress events.
func (o *Orchestrator) Run(ctx context.Context, req TurnRequest) TurnResult {
	return o.RunTurn(ctx, req).Wait()
}

// turnState is the data flowing between stages of one turn.
type turnState struct {
	req      TurnRequest
	turnID   string
	started  time.Time
	progress *ProgressChannel

	session models.Session
	history []models.Turn
	ordinal int

	decision       provider.StrategyDecision
	decisionSource string

	queries      []string
	searched     bool
	searchCalls  int
	candidates   []models.Resource
	merged       []models.Resource
	newResources []models.Resource

	reply          string
	responseSource string
	timings        models.StageTimings
}

// stageError aborts the turn.
type stageError struct {
	kind string
	err  error
}

func (e *stageError) Error() string { return e.err.Error() }
func (e *stageError) Unwrap() error { return e.err }

func abortWith(err error) error {
	return &stageError{kind: upstream.Kind(err), err: err}
}

func (o *Orchestrator) runTurn(ctx context.Context, req TurnRequest, turnID string, progress *ProgressChannel) TurnResult {
	ctx, span := orchestratorTracer.Start(ctx, "agent.run_turn",
		trace.WithAttributes(
			attribute.String("session.id", req.SessionID),
			attribute.String("turn.id", turnID),
		))
	defer span.End()

	st := &turnState{req: req, turnID: turnID, started: o.now(), progress: progress}
	o.logger.Printf("turn %s started for session %s", turnID, req.SessionID)

	steps := []struct {
		name    string
		message func() string
		skip    func() bool
		run     func(context.Context, *turnState) error
	}{
		{o.stages.Initialize, func() string { return "Initializing civic resource system..." }, nil, o.initializeContext},
		{o.stages.Decide, func() string { return "Analyzing your request and deciding how best to help..." }, nil, o.decideStrategy},
		{o.stages.Search, func() string { return "Searching for relevant civic resources..." }, func() bool { return !st.decision.RequiresSearch() }, o.searchResources},
		{o.stages.Merge, func() string { return "Organizing the resources found so far..." }, nil, o.mergeResources},
		{o.stages.Generate, func() string { return "Preparing your response..." }, nil, o.generateResponse},
	}
	for _, step := range steps {
		if step.skip != nil && step.skip() {
			continue
		}
		if err := o.runStage(ctx, st, step.name, step.message(), step.run); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return o.abort(st, err)
		}
	}

	res, err := o.commit(ctx, st)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return o.abort(st, &stageError{kind: "internal", err: err})
	}
	span.SetAttributes(
		attribute.String("turn.need_category", res.NeedCategory),
		attribute.Int("turn.new_resources", len(res.NewResources)),
		attribute.Bool("turn.search_performed", res.SearchPerformed),
		attribute.String("turn.decision_source", st.decisionSource),
		attribute.Int("turn.search_calls", st.searchCalls),
	)
	span.SetStatus(codes.Ok, "completed")
	outcome := telemetry.OutcomeCompleted
	if res.ResponseSource == SourceTemplate || res.ResponseSource == SourceFallback {
		outcome = telemetry.OutcomeFallback
	}
	o.telemetry.RecordTurn(outcome, len(res.NewResources))
	o.logger.Printf("turn %s completed in %v (category=%s, resources=%d)", turnID, o.now().Sub(st.started), res.NeedCategory, len(res.NewResources))
	progress.turnCompleted(res)
	return res
}

// runStage brackets fn with stage events, a span, a deadline and panic recovery.
func (o *Orchestrator) runStage(ctx context.Context, st *turnState, name, message string, fn func(context.Context, *turnState) error) (err error) {
	st.progress.stageStarted(name, message)
	stageCtx, cancel := context.WithTimeout(ctx, o.cfg.StageTimeout)
	stageCtx, span := orchestratorTracer.Start(stageCtx, "agent.stage."+name)
	start := o.now()
	defer func() {
		if r := recover(); r != nil {
			err = &stageError{kind: "internal", err: fmt.Errorf("stage %s panicked: %v", name, r)}
		}
		d := o.now().Sub(start)
		st.timings = append(st.timings, models.StageTiming{Stage: name, Duration: d})
		o.telemetry.ObserveStage(name, d)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
		cancel()
		st.progress.stageCompleted(name, d)
	}()
	return fn(stageCtx, st)
}

func (o *Orchestrator) abort(st *turnState, err error) TurnResult {
	kind := "internal"
	var se *stageError
	if errors.As(err, &se) && se.kind != "" {
		kind = se.kind
	}
	o.logger.Printf("turn %s aborted (%s): %v", st.turnID, kind, err)
	o.telemetry.RecordTurn(telemetry.OutcomeAborted, 0)
	res := TurnResult{
		TurnID:         st.turnID,
		SessionID:      st.req.SessionID,
		ReplyText:      FallbackReply,
		Resources:      []models.Resource{},
		NewResources:   []models.Resource{},
		NeedCategory:   st.decision.NeedCategory,
		UrgencyLevel:   st.decision.UrgencyLevel,
		StageTimings:   append(models.StageTimings(nil), st.timings...),
		ResponseSource: SourceFallback,
		Error:          &TurnError{Kind: kind, Message: userMessageFor(kind)},
	}
	st.progress.fail(kind, res.Error.Message, res)
	return res
}

func userMessageFor(kind string) string {
	if kind == "invalid_credentials" {
		return "The configured API key was rejected. Please check your API keys and try again."
	}
	return "Something went wrong while processing your message."
}

// commit appends the finalized turn. The merge is re-run inside the store's
// critical section so concurrent turns on one session never drop resources.
func (o *Orchestrator) commit(ctx context.Context, st *turnState) (TurnResult, error) {
	turn := models.Turn{
		ID:              st.turnID,
		Message:         st.req.Message,
		NeedCategory:    st.decision.NeedCategory,
		Urgency:         st.decision.UrgencyLevel,
		Reply:           st.reply,
		Resources:       append([]models.Resource{}, st.newResources...),
		Timings:         append(models.StageTimings(nil), st.timings...),
		SearchPerformed: st.searched,
		ResponseSource:  st.responseSource,
		CreatedAt:       o.now().UTC(),
	}
	candidates := st.candidates
	sess, err := o.sessions.AppendTurn(ctx, st.req.SessionID, turn, func(existing []models.Resource) []models.Resource {
		return resources.Merge(existing, candidates)
	})
	if err != nil {
		return TurnResult{}, fmt.Errorf("append turn: %w", err)
	}
	o.telemetry.SetSessions(o.sessions.Len())
	if len(sess.Resources) != len(st.merged) {
		o.logger.Printf("turn %s: session %s changed during the turn, committed %d resources instead of %d", st.turnID, st.req.SessionID, len(sess.Resources), len(st.merged))
	}

	if o.archive != nil {
		archiveCtx, cancel := context.WithTimeout(ctx, o.cfg.StageTimeout)
		if err := o.archive.SaveTurn(archiveCtx, st.req.SessionID, turn, strings.Join(st.queries, " | ")); err != nil {
			o.logger.Printf("turn %s: archive write failed: %v", st.turnID, err)
		}
		cancel()
	}

	return TurnResult{
		TurnID:          st.turnID,
		SessionID:       st.req.SessionID,
		ReplyText:       st.reply,
		Resources:       sess.Resources,
		NewResources:    turn.Resources,
		NeedCategory:    turn.NeedCategory,
		UrgencyLevel:    turn.Urgency,
		StageTimings:    turn.Timings,
		SearchPerformed: turn.SearchPerformed,
		ResponseSource:  turn.ResponseSource,
	}, nil
}

// VerifyReasoningKey sends a minimal prompt with key as the credential. It
// returns nil when the reasoning service accepts the key.
func (o *Orchestrator) VerifyReasoningKey(ctx context.Context, key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return &upstream.InvalidCredentialsError{Service: "reasoning"}
	}
	ctx, cancel := context.WithTimeout(ctx, o.cfg.StageTimeout)
	defer cancel()
	ctx, span := orchestratorTracer.Start(ctx, "agent.verify_key")
	defer span.End()
	_, err := o.reasoning.Call(ctx, provider.Request{Prompt: "Say 'test'", Credential: key, MaxTokens: 10})
	if err != nil {
		kind := upstream.Kind(err)
		o.telemetry.RecordUpstreamError("reasoning", kind)
		span.SetStatus(codes.Error, kind)
		return err
	}
	return nil
}
