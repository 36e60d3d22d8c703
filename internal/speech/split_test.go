package speech

import (
	"strings"
	"testing"
)

func TestSplitText(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		input  string
		maxLen int
		want   []string
	}{
		{
			name:   "Empty",
			input:  "",
			maxLen: 10,
			want:   nil,
		},
		{
			name:   "Fits in one chunk",
			input:  "short text",
			maxLen: 20,
			want:   []string{"short text"},
		},
		{
			name:   "Splits on word boundary",
			input:  "one two three four",
			maxLen: 9,
			want:   []string{"one two", "three", "four"},
		},
		{
			name:   "Oversized word gets its own chunk",
			input:  "hi extraordinarily hi",
			maxLen: 5,
			want:   []string{"hi", "extraordinarily", "hi"},
		},
		{
			name:   "Collapses whitespace",
			input:  "  a   b  ",
			maxLen: 10,
			want:   []string{"a b"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := splitText(tt.input, tt.maxLen)
			if len(got) != len(tt.want) {
				t.Fatalf("splitText(%q, %d) = %v, want %v", tt.input, tt.maxLen, got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("chunk %d = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestSplitText_NeverExceedsLimitForNormalWords(t *testing.T) {
	t.Parallel()

	text := strings.Repeat("monthly instalment amount ", 50)
	for _, chunk := range splitText(text, 400) {
		if len(chunk) > 400 {
			t.Errorf("chunk length %d exceeds limit: %q", len(chunk), chunk[:40])
		}
	}
}
