package handlers

import (
	"context"
	"log/slog"

	"github.com/go-telegram/bot"
)

// sendText sends a plain text message and logs delivery failures.
func sendText(ctx context.Context, b *bot.Bot, chatID int64, text string, log *slog.Logger) {
	if _, err := b.SendMessage(ctx, &bot.SendMessageParams{ChatID: chatID, Text: text}); err != nil {
		log.ErrorContext(ctx, "Failed to send message", "error", err, "chat_id", chatID)
	}
}
