package provider

import (
	"errors"
	"testing"
)

func TestNewReasoningClient(t *testing.T) {
	for _, c := range []Client{OpenAI, Anthropic} {
		if _, err := NewReasoningClient(c, Options{APIKey: "k"}); err != nil {
			t.Fatalf("%s: %v", c, err)
		}
	}
	if _, err := NewReasoningClient("gemini", Options{}); !errors.Is(err, ErrUnsupportedProvider) {
		t.Fatalf("expected ErrUnsupportedProvider, got %v", err)
	}
}
