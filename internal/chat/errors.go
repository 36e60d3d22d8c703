package chat

import "errors"

var (
	// ErrModel wraps a failed generation call. The failed user turn is not
	// appended to history, so the caller can retry without duplicating
	// context.
	ErrModel = errors.New("model generation failed")

	// ErrPayloadTooLarge is returned by Compose when the composed payload
	// exceeds the configured context budget. The session truncates history
	// oldest-first and recomposes; the composer itself never truncates.
	ErrPayloadTooLarge = errors.New("composed prompt exceeds context budget")

	// ErrBusy is returned when a turn is submitted while another turn is
	// still in flight. A session processes one turn fully before accepting
	// the next.
	ErrBusy = errors.New("session is processing another turn")
)
