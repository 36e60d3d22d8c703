package handlers

import (
	"context"
	"fmt"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// NewStatsHandler creates an admin-only handler for the /stats command
// reporting resident sessions and profile store health.
func NewStatsHandler(deps HandlerDeps) bot.HandlerFunc {
	return statsHandler{deps}.Handle
}

type statsHandler struct {
	deps HandlerDeps
}

func (h statsHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "stats")

	if update.Message == nil || update.Message.From == nil {
		log.ErrorContext(ctx, "Stats handler called with nil Message or From", "update_id", update.ID)
		return
	}

	chatID := update.Message.Chat.ID

	storeHealth := "ok"
	if err := h.deps.Store.Ping(ctx); err != nil {
		storeHealth = fmt.Sprintf("unhealthy: %v", err)
	}

	text := fmt.Sprintf("Resident sessions: %d\nProfile store: %s", h.deps.Sessions.Len(), storeHealth)
	sendText(ctx, b, chatID, text, log)
}
