package core

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mohammad-safakhou/civicnav/internal/resources"
	"github.com/mohammad-safakhou/civicnav/internal/upstream"
	"github.com/mohammad-safakhou/civicnav/models"
	"github.com/mohammad-safakhou/civicnav/provider"
	"github.com/mohammad-safakhou/civicnav/tools/web_search"
)

// initializeContext loads the session and the condensed history. It never fails.
func (o *Orchestrator) initializeContext(ctx context.Context, st *turnState) error {
	sess, err := o.sessions.Get(ctx, st.req.SessionID)
	if err != nil {
		o.logger.Printf("turn %s: session load failed, starting empty: %v", st.turnID, err)
		sess = models.Session{ID: st.req.SessionID}
	}
	st.session = sess
	st.history = lastTurns(sess.Turns, o.cfg.HistoryTurns)
	prior := len(sess.Turns)

	if prior == 0 && o.archive != nil {
		archived, err := o.archive.RecentTurns(ctx, st.req.SessionID, o.cfg.HistoryTurns)
		if err != nil {
			o.logger.Printf("turn %s: archive history unavailable: %v", st.turnID, err)
		} else if len(archived) > 0 {
			st.history = archived
			prior = len(archived)
		}
	}
	st.ordinal = prior + 1
	return nil
}

func lastTurns(turns []models.Turn, n int) []models.Turn {
	if n <= 0 || len(turns) == 0 {
		return nil
	}
	if len(turns) > n {
		turns = turns[len(turns)-n:]
	}
	return append([]models.Turn(nil), turns...)
}

// decideStrategy classifies the message. Unusable answers fall back to the
// keyword classifier; rejected credentials abort the turn.
func (o *Orchestrator) decideStrategy(ctx context.Context, st *turnState) error {
	now := o.now()
	data := strategyData{
		Date:     now.Format("Monday, January 2, 2006"),
		Time:     now.Format("3:04 PM"),
		Location: o.cfg.Location,
		Ordinal:  ordinal(st.ordinal),
		Message:  st.req.Message,
		History:  st.history,
	}
	system, err := render(o.prompts.strategySystem, data)
	if err != nil {
		return err
	}
	prompt, err := render(o.prompts.strategy, data)
	if err != nil {
		return err
	}

	resp, err := o.reasoning.Call(ctx, provider.Request{
		System:      system,
		Prompt:      prompt,
		Credential:  st.req.Credentials.Reasoning,
		Temperature: 0.1,
	})
	if err != nil {
		kind := upstream.Kind(err)
		o.telemetry.RecordUpstreamError("reasoning", kind)
		if upstream.IsInvalidCredentials(err) {
			return abortWith(err)
		}
		o.logger.Printf("turn %s: strategy call failed (%s), using keyword fallback: %v", st.turnID, kind, err)
		st.decision, st.decisionSource = classifyByKeywords(st.req.Message), "keywords"
		return nil
	}

	decision, err := provider.DecodeStrategy(resp.Text)
	if err != nil {
		o.telemetry.RecordUpstreamError("reasoning", upstream.Kind(err))
		o.logger.Printf("turn %s: strategy answer unusable, using keyword fallback: %v", st.turnID, err)
		st.decision, st.decisionSource = classifyByKeywords(st.req.Message), "keywords"
		return nil
	}
	st.decision, st.decisionSource = decision, "reasoning"
	return nil
}

// searchResources gathers candidates under the per-turn call cap. Without a
// usable search client the built-in directory stands in for search.
func (o *Orchestrator) searchResources(ctx context.Context, st *turnState) error {
	category := st.decision.NeedCategory
	if o.search == nil {
		st.candidates = resources.CleanURLs(resources.Directory(category))
		return nil
	}

	st.queries = buildQueries(category, st.decision.UrgencyLevel, o.cfg.SearchArea, o.now(), o.cfg.MaxSearchCalls)
	var items []web_search.Item
	for _, q := range st.queries {
		if st.searchCalls >= o.cfg.MaxSearchCalls {
			break
		}
		st.searchCalls++
		res, err := o.search.Search(ctx, web_search.Query{
			Text:       q,
			Location:   o.cfg.Location,
			Credential: st.req.Credentials.Search,
		})
		if err != nil {
			if errors.Is(err, web_search.ErrNoCredential) {
				st.searchCalls--
				st.queries = nil
				st.candidates = resources.CleanURLs(resources.Directory(category))
				return nil
			}
			kind := upstream.Kind(err)
			o.telemetry.RecordSearchCall(kind)
			o.telemetry.RecordUpstreamError("search", kind)
			if upstream.IsInvalidCredentials(err) {
				return abortWith(err)
			}
			o.logger.Printf("turn %s: search %q failed (%s), keeping %d results: %v", st.turnID, q, kind, len(items), err)
			break
		}
		o.telemetry.RecordSearchCall("")
		st.searched = true
		items = append(items, res.Items...)
	}

	extracted, dropped := resources.Extract(items, category, o.cfg.MaxResourcesPerTurn)
	if dropped > 0 {
		o.logger.Printf("turn %s: dropped %d unparseable search results", st.turnID, dropped)
	}
	st.candidates = resources.CleanURLs(extracted)
	return nil
}

// mergeResources folds this turn's candidates into the session's set. The
// result is what the session will hold once the turn commits.
func (o *Orchestrator) mergeResources(_ context.Context, st *turnState) error {
	st.newResources = resources.Dedupe(st.candidates)
	st.merged = resources.Merge(st.session.Resources, st.newResources)
	return nil
}

// generateResponse asks the reasoning service for the reply. On upstream
// failure the reply is templated from this turn's resources.
func (o *Orchestrator) generateResponse(ctx context.Context, st *turnState) error {
	var (
		system, prompt string
		err            error
	)
	conversational := !st.decision.RequiresSearch()
	if conversational {
		data := responseData{Message: st.req.Message, Fallback: FallbackReply}
		if system, err = render(o.prompts.responseSystem, o.locationData()); err != nil {
			return err
		}
		if prompt, err = render(o.prompts.conversation, data); err != nil {
			return err
		}
	} else {
		data := responseData{
			Message:         st.req.Message,
			CategoryLabel:   resources.CategoryLabel(st.decision.NeedCategory),
			Urgency:         st.decision.UrgencyLevel,
			UrgencyGuidance: o.prompts.guidance[string(st.decision.UrgencyLevel)],
			Resources:       st.newResources,
			Clarify:         o.prompts.clarifyFor(st.decision.NeedCategory, st.req.Message),
			Fallback:        FallbackReply,
		}
		if system, err = render(o.prompts.responseSystem, o.locationData()); err != nil {
			return err
		}
		if prompt, err = render(o.prompts.response, data); err != nil {
			return err
		}
	}

	resp, err := o.reasoning.Call(ctx, provider.Request{
		System:     system,
		Prompt:     prompt,
		Credential: st.req.Credentials.Reasoning,
	})
	if err == nil && strings.TrimSpace(resp.Text) != "" {
		st.reply = strings.TrimSpace(resp.Text)
		st.responseSource = SourceReasoning
		if conversational {
			st.responseSource = SourceConversation
		}
		return nil
	}
	if err != nil {
		kind := upstream.Kind(err)
		o.telemetry.RecordUpstreamError("reasoning", kind)
		if upstream.IsInvalidCredentials(err) {
			return abortWith(err)
		}
		o.logger.Printf("turn %s: response call failed (%s), using template: %v", st.turnID, kind, err)
	}

	if conversational {
		reply, rerr := render(o.prompts.greetingReply, o.locationData())
		if rerr != nil {
			return rerr
		}
		st.reply, st.responseSource = reply, SourceTemplate
		return nil
	}
	st.reply, st.responseSource = templatedReply(st.decision.UrgencyLevel, st.newResources)
	return nil
}

func (o *Orchestrator) locationData() map[string]string {
	return map[string]string{"Location": o.cfg.Location}
}

// templatedReply writes an urgency-toned reply listing resources with their
// contacts inline, or the fixed fallback when there are none.
func templatedReply(urgency models.Urgency, rs []models.Resource) (string, string) {
	if len(rs) == 0 {
		return FallbackReply, SourceFallback
	}
	var b strings.Builder
	switch urgency {
	case models.UrgencyHigh:
		fmt.Fprintf(&b, "Found %d options. Start with the first one - they can help quickly.", len(rs))
	case models.UrgencyLow:
		fmt.Fprintf(&b, "Here are %d options to explore.", len(rs))
	default:
		fmt.Fprintf(&b, "Found %d resources that can help. Take a look.", len(rs))
	}
	b.WriteString("\n")
	for i, r := range rs {
		fmt.Fprintf(&b, "\n%d. %s", i+1, r.Name)
		var contact []string
		if r.Contact != "" {
			contact = append(contact, r.Contact)
		}
		if r.URL != "" && !strings.HasPrefix(r.URL, "tel:") {
			contact = append(contact, r.URL)
		}
		if len(contact) > 0 {
			fmt.Fprintf(&b, " (%s)", strings.Join(contact, ", "))
		}
		if r.NextStep != "" {
			fmt.Fprintf(&b, ": %s", r.NextStep)
		}
	}
	b.WriteString("\n\nIf none of these fit, call 211 any time for a referral.")
	return b.String(), SourceTemplate
}
