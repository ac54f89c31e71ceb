package provider

import (
	"errors"
	"testing"

	"github.com/mohammad-safakhou/civicnav/internal/upstream"
	"github.com/mohammad-safakhou/civicnav/models"
)

func TestDecodeStrategy(t *testing.T) {
	reply := "Here is my analysis:\n```json\n" + `{
  "conversation_type": "civic_need",
  "need_category": "Food_Security",
  "urgency_level": "HIGH",
  "search_decision": "SEARCH_NEEDED",
  "reasoning": "asks for food"
}` + "\n```"
	d, err := DecodeStrategy(reply)
	if err != nil {
		t.Fatalf("DecodeStrategy: %v", err)
	}
	if d.NeedCategory != "food_security" || d.UrgencyLevel != models.UrgencyHigh {
		t.Fatalf("unexpected decision %+v", d)
	}
	if !d.RequiresSearch() {
		t.Fatalf("expected search")
	}
}

func TestDecodeStrategyGreeting(t *testing.T) {
	d, err := DecodeStrategy(`{"conversation_type":"GREETING","search_decision":"SEARCH_NEEDED"}`)
	if err != nil {
		t.Fatalf("DecodeStrategy: %v", err)
	}
	if d.RequiresSearch() {
		t.Fatalf("greetings never search")
	}
	if d.NeedCategory != models.CategoryGreeting || d.UrgencyLevel != models.UrgencyMedium {
		t.Fatalf("unexpected defaults %+v", d)
	}
}

func TestDecodeStrategyErrors(t *testing.T) {
	cases := map[string]string{
		"no json":        "I think they need food.",
		"bad enum":       `{"search_decision":"MAYBE"}`,
		"missing field":  `{"need_category":"food"}`,
		"wrong type":     `{"search_decision":"SEARCH_NEEDED","urgency_level":3}`,
		"array not json": `["SEARCH_NEEDED"]`,
	}
	for name, in := range cases {
		_, err := DecodeStrategy(in)
		var pe *upstream.ParseError
		if !errors.As(err, &pe) {
			t.Fatalf("%s: expected ParseError, got %v", name, err)
		}
	}
}
