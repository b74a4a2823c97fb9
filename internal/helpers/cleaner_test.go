package helpers

import (
	"testing"
	"unicode/utf8"
)

func TestStripCodeFence(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "  42 \n", "42"},
		{"fenced", "```\n42\n```", "42"},
		{"fenced with lang", "```text\nParis\n```\n", "Paris"},
		{"tilde", "~~~\nbar chart\n~~~", "bar chart"},
		{"inline", "```7```", "7"},
		{"bom", "\uFEFF99", "99"},
		{"unterminated", "```\n42", "```\n42"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			if got := StripCodeFence(tt.in); got != tt.want {
				t.Fatalf("StripCodeFence(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{"object", `{"a":1}`, `{"a":1}`, false},
		{"jsonp", `cb({"a":[1,2]});`, `{"a":[1,2]}`, false},
		{"braces in strings", `x {"s":"}{","n":1} y`, `{"s":"}{","n":1}`, false},
		{"fenced array", "```json\n[1,2]\n```", `[1,2]`, false},
		{"mismatched", `{"a":[1}`, "", true},
		{"none", `plain text`, "", true},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractJSON(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %q", got)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Fatalf("ExtractJSON(%q) = %q, %v; want %q", tt.in, got, err, tt.want)
			}
		})
	}
}

func TestTruncateKeepsRunesWhole(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"héllo", 2, "h"},
		{"héllo", 3, "hé"},
		{"日本語", 4, "日"},
		{"日本語", 0, "日本語"},
		{"abc", 10, "abc"},
	}
	for _, tt := range tests {
		got := Truncate(tt.in, tt.n)
		if got != tt.want || !utf8.ValidString(got) {
			t.Fatalf("Truncate(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
		}
	}
}
