package chat_test

import (
	"strings"
	"testing"

	"github.com/fintalk-ai/fintalk/internal/chat"
)

func TestEstimateTokens(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  int
	}{
		{name: "Empty", input: "", want: 0},
		{name: "Single ASCII char", input: "a", want: 1},
		{name: "Four ASCII chars", input: "loan", want: 1},
		{name: "Five ASCII chars", input: "loans", want: 2},
		{name: "ASCII sentence", input: strings.Repeat("a", 40), want: 10},
		{name: "Single Devanagari char", input: "ऋ", want: 1},
		{name: "Hindi word", input: "ऋण", want: 2},
		{name: "Mixed scripts", input: "EMI ऋण", want: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := chat.EstimateTokens(tt.input); got != tt.want {
				t.Errorf("EstimateTokens(%q) = %d, want %d", tt.input, got, tt.want)
			}
		})
	}
}

func TestEstimateTokens_NonASCIIWeighsHeavier(t *testing.T) {
	t.Parallel()

	ascii := chat.EstimateTokens(strings.Repeat("a", 20))
	devanagari := chat.EstimateTokens(strings.Repeat("ऋ", 20))
	if devanagari <= ascii {
		t.Errorf("non-ASCII estimate %d should exceed ASCII estimate %d for equal rune counts", devanagari, ascii)
	}
}
