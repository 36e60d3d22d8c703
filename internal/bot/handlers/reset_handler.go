package handlers

import (
	"context"
	"errors"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/fintalk-ai/fintalk/internal/chat"
)

// NewResetHandler creates a handler for the /reset command that clears
// the chat's conversation history. The financial profile and language
// choice survive a reset.
func NewResetHandler(deps HandlerDeps) bot.HandlerFunc {
	return resetHandler{deps}.Handle
}

type resetHandler struct {
	deps HandlerDeps
}

func (h resetHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "reset")

	if update.Message == nil || update.Message.From == nil {
		log.ErrorContext(ctx, "Reset handler called with nil Message or From", "update_id", update.ID)
		return
	}

	chatID := update.Message.Chat.ID
	session := h.deps.Sessions.Session(ctx, chatID)

	if err := session.Reset(ctx); err != nil {
		if errors.Is(err, chat.ErrBusy) {
			sendText(ctx, b, chatID, "I'm still working on your previous message. Try /reset again in a moment.", log)
			return
		}
		log.ErrorContext(ctx, "Failed to reset session", "error", err, "chat_id", chatID)
		sendText(ctx, b, chatID, "I couldn't reset the conversation. Please try again.", log)
		return
	}

	log.InfoContext(ctx, "Session reset by user", "chat_id", chatID)
	sendText(ctx, b, chatID, "Fresh start! Your conversation history is cleared. Your FinCard and language are kept.", log)
}
