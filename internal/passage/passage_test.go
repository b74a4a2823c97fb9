package passage

import (
	"strings"
	"testing"
)

func TestSelectReturnsShortTextUnchanged(t *testing.T) {
	got, err := Select("short text", "anything", 100)
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if got != "short text" {
		t.Fatalf("got %q", got)
	}
}

func TestSelectPrefersRelevantPassage(t *testing.T) {
	filler := strings.Repeat("The committee discussed scheduling and catering for the annual meeting. ", 20)
	target := "The reactor output in March was 4200 megawatts according to the operator log."
	text := filler + "\n\n" + filler + "\n\n" + target + "\n\n" + filler

	got, err := Select(text, "What was the reactor output in March?", 1500)
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if !strings.Contains(got, "4200 megawatts") {
		t.Fatalf("relevant passage missing from selection: %q", got)
	}
	if len(got) > 1500 {
		t.Fatalf("selection exceeds budget: %d", len(got))
	}
}

func TestChunk(t *testing.T) {
	tests := []struct {
		name string
		text string
		size int
		want int
	}{
		{"empty", "", 10, 0},
		{"merges small paragraphs", "a\n\nb\n\nc", 100, 1},
		{"splits at size", "aaaa bbbb\n\ncccc dddd", 10, 2},
		{"cuts long paragraph on space", "one two three four five six", 10, 4},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			got := Chunk(tt.text, tt.size)
			if len(got) != tt.want {
				t.Fatalf("Chunk(%q) = %q, want %d chunks", tt.text, got, tt.want)
			}
			for _, c := range got {
				if len(c) > tt.size {
					t.Fatalf("chunk %q longer than %d", c, tt.size)
				}
			}
		})
	}
}
