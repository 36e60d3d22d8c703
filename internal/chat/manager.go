package chat

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/fintalk-ai/fintalk/internal/database"
	"github.com/fintalk-ai/fintalk/internal/language"
	"github.com/fintalk-ai/fintalk/internal/sessionstore"
)

// Manager owns the per-chat sessions. Sessions are created lazily on
// first contact and restored from the snapshot store when a prior run
// left one behind.
type Manager struct {
	mu       sync.Mutex
	sessions map[int64]*Session

	defaultLang language.Entry
	model       ModelClient
	speech      SpeechClient
	profiles    database.Store
	snaps       sessionstore.Store
	opts        Options
	log         *slog.Logger
}

// NewManager creates a session manager. The speech client and snapshot
// store may be nil; sessions inherit that absence.
func NewManager(defaultLang language.Entry, model ModelClient, speechClient SpeechClient, profiles database.Store, snaps sessionstore.Store, opts Options, log *slog.Logger) *Manager {
	return &Manager{
		sessions:    make(map[int64]*Session),
		defaultLang: defaultLang,
		model:       model,
		speech:      speechClient,
		profiles:    profiles,
		snaps:       snaps,
		opts:        opts,
		log:         log,
	}
}

// Session returns the session for a chat, creating and restoring it if
// needed. The preferred language stored in the chat's profile, then a
// persisted snapshot, override the service default.
func (m *Manager) Session(ctx context.Context, chatID int64) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.sessions[chatID]; ok {
		return s
	}

	lang := m.defaultLang
	if p, err := m.profiles.GetProfile(ctx, chatID); err == nil && p != nil {
		if entry, rerr := language.Resolve(p.PreferredLanguage); rerr == nil {
			lang = entry
		}
	}

	s := NewSession(chatID, lang, m.model, m.speech, m.profiles, m.snaps, m.opts, m.log)

	if m.snaps != nil {
		snap, err := m.snaps.Get(ctx, strconv.FormatInt(chatID, 10))
		if err != nil {
			m.log.Warn("Failed to load session snapshot", "chat_id", chatID, "error", err)
		} else if snap != nil {
			s.restore(snap)
			m.log.Info("Session restored from snapshot",
				"chat_id", chatID, "turns", len(snap.History), "language", s.Language().Name)
		}
	}

	m.sessions[chatID] = s
	return s
}

// ExpireIdle drops in-memory sessions that have been inactive longer
// than maxIdle and returns how many were dropped. Their snapshots stay
// in the snapshot store until its own expiry removes them, so an expired
// chat resumes with full context on its next message.
func (m *Manager) ExpireIdle(maxIdle time.Duration) int {
	if maxIdle <= 0 {
		return 0
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := time.Now().Add(-maxIdle)
	removed := 0
	for id, s := range m.sessions {
		if s.State() == StateIdle && s.LastActive().Before(cutoff) {
			delete(m.sessions, id)
			removed++
		}
	}
	return removed
}

// Len reports how many sessions are currently resident.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
