package provider

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	_ "embed"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/mohammad-safakhou/civicnav/internal/helpers"
	"github.com/mohammad-safakhou/civicnav/internal/upstream"
	"github.com/mohammad-safakhou/civicnav/models"
)

//go:embed strategy_schema.json
var strategySchemaJSON string

const (
	ConversationGreeting  = "GREETING"
	ConversationCivicNeed = "CIVIC_NEED"
	ConversationFollowUp  = "FOLLOW_UP"

	SearchNeeded     = "SEARCH_NEEDED"
	ConversationOnly = "CONVERSATION_ONLY"
)

// StrategyDecision is the typed classification returned by the decide step.
type StrategyDecision struct {
	ConversationType string         `json:"conversation_type"`
	NeedCategory     string         `json:"need_category"`
	UrgencyLevel     models.Urgency `json:"urgency_level"`
	SearchDecision   string         `json:"search_decision"`
	Reasoning        string         `json:"reasoning,omitempty"`
}

// RequiresSearch reports whether the turn should look up external resources.
// Greetings never do.
func (d StrategyDecision) RequiresSearch() bool {
	return d.SearchDecision == SearchNeeded && d.ConversationType != ConversationGreeting
}

var (
	compileOnce    sync.Once
	strategySchema *jsonschema.Schema
	compileErr     error
)

// StrategySchema returns the compiled JSON Schema for strategy decisions.
func StrategySchema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("strategy_schema.json", strings.NewReader(strategySchemaJSON)); err != nil {
			compileErr = fmt.Errorf("add schema resource: %w", err)
			return
		}
		schema, err := compiler.Compile("strategy_schema.json")
		if err != nil {
			compileErr = fmt.Errorf("compile strategy schema: %w", err)
			return
		}
		strategySchema = schema
	})
	return strategySchema, compileErr
}

// DecodeStrategy locates the JSON object in a model reply, validates it and
// returns the decision. Every failure is a *upstream.ParseError.
func DecodeStrategy(text string) (StrategyDecision, error) {
	raw, err := helpers.ExtractJSON(text)
	if err != nil {
		return StrategyDecision{}, &upstream.ParseError{What: "strategy", Reason: "no json object", Err: err}
	}
	var doc map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return StrategyDecision{}, &upstream.ParseError{What: "strategy", Reason: "invalid json", Err: err}
	}
	normalizeEnum(doc, "conversation_type", strings.ToUpper)
	normalizeEnum(doc, "search_decision", strings.ToUpper)
	normalizeEnum(doc, "urgency_level", strings.ToLower)
	if v, ok := doc["need_category"].(string); ok {
		doc["need_category"] = strings.ToLower(strings.TrimSpace(v))
	}

	schema, err := StrategySchema()
	if err != nil {
		return StrategyDecision{}, err
	}
	if err := schema.Validate(doc); err != nil {
		return StrategyDecision{}, &upstream.ParseError{What: "strategy", Reason: "schema mismatch", Err: err}
	}

	normalized, err := json.Marshal(doc)
	if err != nil {
		return StrategyDecision{}, &upstream.ParseError{What: "strategy", Reason: "re-encode", Err: err}
	}
	var d StrategyDecision
	if err := json.Unmarshal(normalized, &d); err != nil {
		return StrategyDecision{}, &upstream.ParseError{What: "strategy", Reason: "decode", Err: err}
	}
	if d.UrgencyLevel == "" {
		d.UrgencyLevel = models.UrgencyMedium
	}
	if d.ConversationType == ConversationGreeting {
		d.NeedCategory = models.CategoryGreeting
	}
	if d.NeedCategory == "" {
		d.NeedCategory = models.CategoryGeneral
	}
	return d, nil
}

func normalizeEnum(doc map[string]interface{}, key string, fold func(string) string) {
	v, ok := doc[key].(string)
	if !ok {
		return
	}
	v = strings.TrimSpace(v)
	if v == "" {
		delete(doc, key)
		return
	}
	doc[key] = fold(strings.ReplaceAll(v, " ", "_"))
}
