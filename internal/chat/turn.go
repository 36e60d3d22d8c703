// Package chat implements the multilingual conversational session core:
// conversation history, prompt composition, and the per-chat session state
// machine that mediates between the model client and the speech bridge.
package chat

import "time"

// Role identifies the author of a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one exchange unit in a conversation: a user message or an
// assistant reply, tagged with the locale it was produced in.
type Turn struct {
	Role       Role      `json:"role"`
	Text       string    `json:"text"`
	Language   string    `json:"language"` // BCP-47 locale
	TokenCount int       `json:"token_count"`
	Timestamp  time.Time `json:"timestamp"`
}

// newTurn builds a turn with its token estimate filled in.
func newTurn(role Role, text, locale string) Turn {
	return Turn{
		Role:       role,
		Text:       text,
		Language:   locale,
		TokenCount: EstimateTokens(text),
		Timestamp:  time.Now().UTC(),
	}
}

// EstimateTokens estimates the token count for a text using a
// Unicode-aware heuristic: ASCII runs at roughly four characters per token
// while non-ASCII scripts (Devanagari, Tamil, Bengali and the other Indic
// scripts this service handles) are weighted conservatively at one
// character per token.
func EstimateTokens(text string) int {
	weight := 0
	for _, r := range text {
		if r <= 127 {
			weight++
		} else {
			weight += 4
		}
	}
	return (weight + 3) / 4
}

// historyTokens sums the token estimates of all turns.
func historyTokens(turns []Turn) int {
	total := 0
	for _, t := range turns {
		total += t.TokenCount
	}
	return total
}
