package helpers

import "testing"

func TestExtractJSON(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"bare object", `{"a":1}`, `{"a":1}`},
		{"prose around", "Here is my analysis:\n{\"need_category\":\"food\"}\nThanks!", `{"need_category":"food"}`},
		{"fenced", "```json\n{\"x\":\"}\"}\n```", `{"x":"}"}`},
		{"nested", `noise {"a":{"b":[1,2]}} tail {"c":3}`, `{"a":{"b":[1,2]}}`},
		{"skips broken opener", `{"a": ] {"ok":true}`, `{"ok":true}`},
		{"leading byte order mark", "\uFEFF{\"a\":1}", `{"a":1}`},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractJSON(tt.in)
			if err != nil {
				t.Fatalf("ExtractJSON() error = %v", err)
			}
			if got != tt.want {
				t.Fatalf("ExtractJSON() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExtractJSONNone(t *testing.T) {
	if _, err := ExtractJSON("I can help with housing."); err == nil {
		t.Fatalf("expected error when no JSON present")
	}
	if _, err := ExtractJSON(`{"unterminated": true`); err == nil {
		t.Fatalf("expected error for unbalanced input")
	}
}
