package handlers

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/fintalk-ai/fintalk/internal/language"
)

const welcomeTemplate = `Namaste! I am %s, your loan advisor.

Ask me anything about loans, credit, EMIs, or saving money. You can type or send a voice note.

Commands:
/language <name> - switch the conversation language
/fincard - view your financial profile
/fincard_set <field> <value> - update your profile
/reset - start a fresh conversation

I speak: %s`

// NewStartHandler returns a handler for the /start command.
func NewStartHandler(deps HandlerDeps) bot.HandlerFunc {
	return startHandler{deps}.Handle
}

type startHandler struct {
	deps HandlerDeps
}

func (h startHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "start")

	if update.Message == nil || update.Message.From == nil {
		log.WarnContext(ctx, "Start handler received update with nil message or sender", "update_id", update.ID)
		return
	}

	log.InfoContext(ctx, "Handling /start command", "chat_id", update.Message.Chat.ID, "user_id", update.Message.From.ID)

	name := h.deps.Config.Telegram.BotInfo.FirstName
	if name == "" {
		name = "FinTalk"
	}
	welcome := fmt.Sprintf(welcomeTemplate, name, strings.Join(language.Supported(), ", "))

	_, err := b.SendMessage(ctx, &bot.SendMessageParams{ChatID: update.Message.Chat.ID, Text: welcome})
	if err != nil {
		log.ErrorContext(ctx, "Failed to send welcome message", "error", err, "chat_id", update.Message.Chat.ID)
	}
}
