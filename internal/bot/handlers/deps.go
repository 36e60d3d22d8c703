package handlers

import (
	"log/slog"

	"github.com/fintalk-ai/fintalk/internal/chat"
	"github.com/fintalk-ai/fintalk/internal/config"
	"github.com/fintalk-ai/fintalk/internal/database"
)

// HandlerDeps provides dependencies for Telegram command handlers.
type HandlerDeps struct {
	Logger   *slog.Logger
	Config   *config.Config
	Store    database.Store
	Sessions *chat.Manager
}
