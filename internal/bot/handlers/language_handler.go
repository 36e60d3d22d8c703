package handlers

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/fintalk-ai/fintalk/internal/language"
)

// NewLanguageHandler returns a handler for the /language command. With no
// argument it lists the supported languages; with an argument it switches
// the session to that language.
func NewLanguageHandler(deps HandlerDeps) bot.HandlerFunc {
	return languageHandler{deps}.Handle
}

type languageHandler struct {
	deps HandlerDeps
}

func (h languageHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "language")

	if update.Message == nil || update.Message.From == nil {
		log.WarnContext(ctx, "Language handler received update with nil message or sender", "update_id", update.ID)
		return
	}

	chatID := update.Message.Chat.ID
	session := h.deps.Sessions.Session(ctx, chatID)

	arg := strings.TrimSpace(strings.TrimPrefix(update.Message.Text, "/language"))
	if i := strings.Index(arg, "@"); i == 0 {
		// Strip the "@botname" suffix form of the command.
		if j := strings.IndexByte(arg, ' '); j >= 0 {
			arg = strings.TrimSpace(arg[j:])
		} else {
			arg = ""
		}
	}

	if arg == "" {
		text := fmt.Sprintf("Current language: %s\n\nSupported: %s\n\nUse /language <name> to switch.",
			session.Language().Name, strings.Join(language.Supported(), ", "))
		sendText(ctx, b, chatID, text, log)
		return
	}

	entry, err := session.SetLanguage(arg)
	if err != nil {
		if errors.Is(err, language.ErrUnsupportedLanguage) {
			text := fmt.Sprintf("I don't speak %q yet. Supported languages: %s",
				arg, strings.Join(language.Supported(), ", "))
			sendText(ctx, b, chatID, text, log)
			return
		}
		log.ErrorContext(ctx, "Failed to set language", "error", err, "chat_id", chatID)
		sendText(ctx, b, chatID, "Something went wrong switching languages. Please try again.", log)
		return
	}

	log.InfoContext(ctx, "Language switched", "chat_id", chatID, "language", entry.Name)
	sendText(ctx, b, chatID, fmt.Sprintf("Done. I will reply in %s from now on.", entry.Name), log)
}
