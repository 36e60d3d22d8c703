// Package bot implements the lifecycle management and component
// orchestration for the FinTalk service.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	tgbot "github.com/go-telegram/bot"
	"golang.org/x/sync/errgroup"

	"github.com/fintalk-ai/fintalk/internal/chat"
	"github.com/fintalk-ai/fintalk/internal/config"
	"github.com/fintalk-ai/fintalk/internal/database"
	"github.com/fintalk-ai/fintalk/internal/sessionstore"
)

// Bot represents the main application and manages its components'
// lifecycle.
type Bot struct {
	logger    *slog.Logger
	cfg       *config.Config
	store     database.Store
	sessions  *chat.Manager
	snapshots sessionstore.Store
	tgBot     *tgbot.Bot
	scheduler *Scheduler
}

// NewBot creates the application with all required dependencies wired.
func NewBot(
	logger *slog.Logger,
	cfg *config.Config,
	store database.Store,
	sessions *chat.Manager,
	snapshots sessionstore.Store,
	tgBot *tgbot.Bot,
	scheduler *Scheduler,
) *Bot {
	return &Bot{
		logger:    logger.With("component", "bot_orchestrator"),
		cfg:       cfg,
		store:     store,
		sessions:  sessions,
		snapshots: snapshots,
		tgBot:     tgBot,
		scheduler: scheduler,
	}
}

// Run starts the Telegram listener and the scheduler, blocking until the
// context is cancelled or a component fails. Shutdown is graceful: the
// scheduler waits for running tasks and the snapshot store is closed
// last so in-flight turns can still persist.
func (b *Bot) Run(ctx context.Context) error {
	b.logger.Info("Starting bot orchestrator...")

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		b.logger.Info("Starting Telegram bot listener...")

		b.tgBot.Start(gCtx)
		b.logger.Info("Telegram bot listener stopped.")

		if gCtx.Err() == nil {
			b.logger.Warn("Telegram bot listener stopped unexpectedly without context cancellation.")
			return fmt.Errorf("telegram listener stopped unexpectedly")
		}
		return nil
	})

	g.Go(func() error {
		b.logger.Info("Starting scheduler...")
		if err := b.scheduler.Start(); err != nil {
			b.logger.Error("Failed to start scheduler", "error", err)
			return fmt.Errorf("failed to start scheduler: %w", err)
		}

		<-gCtx.Done()
		b.logger.Info("Shutdown signal received, stopping scheduler...")

		if err := b.scheduler.Stop(); err != nil {
			b.logger.Error("Error stopping scheduler", "error", err)
		}
		return nil
	})

	b.logger.Info("Bot orchestrator running. Waiting for shutdown signal or error...")
	err := g.Wait()

	if cerr := b.snapshots.Close(); cerr != nil {
		b.logger.Error("Error closing snapshot store", "error", cerr)
	}

	if err != nil && !errors.Is(err, context.Canceled) {
		b.logger.Error("Bot orchestrator stopped due to error", "error", err)
		return err
	}

	b.logger.Info("Bot orchestrator stopped gracefully.")
	return nil
}
