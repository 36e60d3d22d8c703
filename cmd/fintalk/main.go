// Package main contains the entrypoint for the FinTalk loan advisory
// service.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbot "github.com/go-telegram/bot"
	"github.com/redis/go-redis/v9"

	"github.com/fintalk-ai/fintalk/internal/bot"
	"github.com/fintalk-ai/fintalk/internal/bot/handlers"
	"github.com/fintalk-ai/fintalk/internal/bot/tasks"
	"github.com/fintalk-ai/fintalk/internal/chat"
	"github.com/fintalk-ai/fintalk/internal/config"
	"github.com/fintalk-ai/fintalk/internal/database"
	"github.com/fintalk-ai/fintalk/internal/gemini"
	"github.com/fintalk-ai/fintalk/internal/language"
	"github.com/fintalk-ai/fintalk/internal/logger"
	"github.com/fintalk-ai/fintalk/internal/sessionstore"
	"github.com/fintalk-ai/fintalk/internal/speech"
	"github.com/fintalk-ai/fintalk/internal/telegram"

	_ "modernc.org/sqlite"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	exitCode := run(ctx)
	stop()
	os.Exit(exitCode)
}

// run initializes and starts all application components (config, logger,
// profile store, model and speech clients, session manager, bot,
// scheduler), handles graceful shutdown, and returns an exit code.
func run(ctx context.Context) int {
	configPath := flag.String("config", "./config.yaml", "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load configuration", "path", *configPath, "error", err)
		return 1
	}

	log := logger.NewLogger(cfg.Logger.Level, cfg.Logger.JSON)
	slog.SetDefault(log)
	log.Info("Logger initialized", "level", cfg.Logger.Level, "json", cfg.Logger.JSON)

	store, cleanup, err := newProfileStore(cfg, log)
	if err != nil {
		log.Error("Failed to initialize profile store", "driver", cfg.Profile.Driver, "error", err)
		return 1
	}
	defer cleanup()

	defaultLang, err := language.Resolve(cfg.Chat.DefaultLanguage)
	if err != nil {
		log.Error("Unsupported default language", "language", cfg.Chat.DefaultLanguage, "error", err)
		return 1
	}

	gemClient, err := gemini.NewClient(ctx, cfg.Gemini, log)
	if err != nil {
		log.Error("Failed to initialize Gemini client", "error", err)
		return 1
	}

	var speechClient chat.SpeechClient
	if cfg.Sarvam.Enabled {
		sc, err := speech.NewClient(speech.Config{
			APIKey:         cfg.Sarvam.APIKey,
			BaseURL:        cfg.Sarvam.BaseURL,
			Timeout:        cfg.Sarvam.Timeout,
			STTModel:       cfg.Sarvam.STTModel,
			TTSModel:       cfg.Sarvam.TTSModel,
			TranslateModel: cfg.Sarvam.TranslateModel,
		}, log)
		if err != nil {
			log.Error("Failed to initialize Sarvam client", "error", err)
			return 1
		}
		speechClient = sc
	} else {
		log.Warn("Speech disabled, running text-only")
	}

	snapshots, err := newSnapshotStore(ctx, cfg, log)
	if err != nil {
		log.Error("Failed to initialize session snapshot store", "driver", cfg.Session.Driver, "error", err)
		return 1
	}

	sessions := chat.NewManager(defaultLang, gemClient, speechClient, store, snapshots, chat.Options{
		MaxContextTokens: cfg.Gemini.MaxContextTokens,
		MaxHistoryTurns:  cfg.Chat.MaxHistoryTurns,
		TranslateReplies: cfg.Chat.TranslateReplies,
	}, log)

	hDeps := handlers.HandlerDeps{
		Logger:   log,
		Config:   cfg,
		Store:    store,
		Sessions: sessions,
	}
	tDeps := tasks.TaskDeps{
		Logger:    log,
		Config:    cfg,
		Store:     store,
		Sessions:  sessions,
		Snapshots: snapshots,
	}

	botOpts := []tgbot.Option{
		tgbot.WithMiddlewares(logger.Middleware(log)),
		tgbot.WithDefaultHandler(handlers.NewChatHandler(hDeps)),
	}
	tg, err := telegram.NewTelegramBot(cfg.Telegram.Token, log, botOpts...)
	if err != nil {
		log.Error("Failed to create Telegram bot", "error", err)
		return 1
	}

	cfg.Telegram.BotInfo, err = telegram.GetBotInfo(ctx, tg)
	if err != nil {
		log.Error("Failed to get bot info", "error", err)
		return 1
	}
	log.Info("Retrieved bot info", "bot_id", cfg.Telegram.BotInfo.ID, "bot_username", cfg.Telegram.BotInfo.Username)

	cmdHandlers := handlers.RegisterAllCommands(hDeps)
	if err := telegram.RegisterHandlers(tg, log, cmdHandlers); err != nil {
		log.Error("Failed to register Telegram handlers", "error", err)
		return 1
	}

	sched, err := bot.NewScheduler(log, &cfg.Scheduler, tasks.RegisterAllTasks(tDeps))
	if err != nil {
		log.Error("Failed to create scheduler", "error", err)
		return 1
	}
	app := bot.NewBot(log, cfg, store, sessions, snapshots, tg, sched)

	log.Info("Starting FinTalk...", "default_language", defaultLang.Name, "speech_enabled", cfg.Sarvam.Enabled)
	runErr := app.Run(ctx)
	log.Info("Run loop finished. Initiating shutdown...")

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		log.Error("Service stopped due to error", "error", runErr)
		time.Sleep(time.Second)
		return 1
	}

	log.Info("Service stopped gracefully.")
	time.Sleep(time.Second)
	return 0
}

// newProfileStore builds the configured profile store driver and a
// cleanup function for shutdown.
func newProfileStore(cfg *config.Config, log *slog.Logger) (database.Store, func(), error) {
	switch cfg.Profile.Driver {
	case "sqlite":
		db, err := database.NewDB(cfg.Profile.Path)
		if err != nil {
			return nil, nil, err
		}
		store := database.NewStore(db, log)
		return store, func() {
			if err := db.Close(); err != nil {
				log.Error("Failed to close database", "error", err)
			}
		}, nil
	default:
		store := database.NewFileStore(cfg.Profile.Path, log)
		return store, func() {}, nil
	}
}

// newSnapshotStore builds the configured session snapshot store.
func newSnapshotStore(ctx context.Context, cfg *config.Config, log *slog.Logger) (sessionstore.Store, error) {
	switch cfg.Session.Driver {
	case "redis":
		client := redis.NewClient(&redis.Options{Addr: cfg.Session.RedisAddr})
		if err := client.Ping(ctx).Err(); err != nil {
			return nil, err
		}
		log.Info("Connected to Redis", "addr", cfg.Session.RedisAddr)
		return sessionstore.NewRedisStore(client, cfg.Session.TTL), nil
	default:
		return sessionstore.NewMemoryStore(cfg.Session.TTL), nil
	}
}
