package helpers

import "testing"

func TestPlainText(t *testing.T) {
	t.Parallel()
	cases := map[string]string{
		"":                                        "",
		"  Food   pantry\nhours ":                  "Food pantry hours",
		"<b>Peoria</b> Food Bank &amp; Pantry":     "Peoria Food Bank & Pantry",
		"Shelter<script>alert(1)</script> tonight": "Shelter tonight",
	}
	for in, want := range cases {
		if got := PlainText(in); got != want {
			t.Fatalf("PlainText(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestTruncate(t *testing.T) {
	if got := Truncate("short", 10); got != "short" {
		t.Fatalf("unexpected %q", got)
	}
	if got := Truncate("emergency shelter beds", 12); got != "emergency..." {
		t.Fatalf("unexpected %q", got)
	}
	if got := Truncate("abcdef", 2); got != "ab" {
		t.Fatalf("unexpected %q", got)
	}
}
