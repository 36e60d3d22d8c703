// Package tasks implements the scheduled background tasks of the FinTalk
// service: session expiry and profile store maintenance.
package tasks

import (
	"log/slog"

	"github.com/fintalk-ai/fintalk/internal/chat"
	"github.com/fintalk-ai/fintalk/internal/config"
	"github.com/fintalk-ai/fintalk/internal/database"
	"github.com/fintalk-ai/fintalk/internal/sessionstore"
)

// TaskDeps contains all dependencies required by scheduled tasks.
type TaskDeps struct {
	Logger    *slog.Logger
	Config    *config.Config
	Store     database.Store
	Sessions  *chat.Manager
	Snapshots sessionstore.Store
}
