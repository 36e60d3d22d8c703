package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/fintalk-ai/fintalk/internal/database"
	"github.com/fintalk-ai/fintalk/internal/language"
	"github.com/fintalk-ai/fintalk/internal/sessionstore"
	"github.com/fintalk-ai/fintalk/internal/speech"
)

// State describes what a session is currently doing. Exactly one
// submission is processed at a time; concurrent submissions are rejected
// with ErrBusy instead of queueing.
type State string

const (
	StateIdle                  State = "idle"
	StateAwaitingTranscription State = "awaiting_transcription"
	StateAwaitingModelResponse State = "awaiting_model_response"
)

// ModelClient generates an assistant reply for a composed payload.
type ModelClient interface {
	Generate(ctx context.Context, payload PromptPayload) (string, error)
}

// SpeechClient is the voice and translation bridge. It is optional: a
// session with a nil SpeechClient handles text submissions only.
type SpeechClient interface {
	Transcribe(ctx context.Context, audio []byte, sourceLocale string) (speech.Transcript, error)
	Synthesize(ctx context.Context, text string, entry language.Entry) ([]byte, error)
	Translate(ctx context.Context, text, fromLocale, toLocale string) (string, error)
}

// Options configures a Session beyond its collaborators.
type Options struct {
	// MaxContextTokens is the model payload budget enforced by the
	// composer.
	MaxContextTokens int
	// MaxHistoryTurns caps retained history length; older turns are
	// dropped first.
	MaxHistoryTurns int
	// TranslateReplies post-translates model replies into the active
	// language as a safety net for models that drift into English.
	TranslateReplies bool
}

// Session is the per-chat conversation state machine. All operations are
// safe for concurrent use; submissions are serialized and a submission
// arriving while another is in flight fails fast with ErrBusy.
type Session struct {
	chatID   int64
	model    ModelClient
	speech   SpeechClient
	profiles database.Store
	snaps    sessionstore.Store
	composer Composer
	opts     Options
	log      *slog.Logger

	// submitMu serializes submissions. It is held for the full duration
	// of a model round trip, so state inspection uses stateMu instead.
	submitMu sync.Mutex

	stateMu    sync.RWMutex
	state      State
	lang       language.Entry
	history    []Turn
	version    int64
	lastActive time.Time
}

// NewSession creates an idle session for one chat. The speech client and
// snapshot store may be nil.
func NewSession(chatID int64, lang language.Entry, model ModelClient, speechClient SpeechClient, profiles database.Store, snaps sessionstore.Store, opts Options, log *slog.Logger) *Session {
	return &Session{
		chatID:   chatID,
		model:    model,
		speech:   speechClient,
		profiles: profiles,
		snaps:    snaps,
		composer: Composer{MaxContextTokens: opts.MaxContextTokens},
		opts:     opts,
		log:      log.With("component", "chat_session", "chat_id", chatID),
		state:    StateIdle,
		lang:     lang,

		lastActive: time.Now().UTC(),
	}
}

// State reports the session's current processing state.
func (s *Session) State() State {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.state
}

// Language reports the active conversation language.
func (s *Session) Language() language.Entry {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.lang
}

// History returns a copy of the retained conversation turns.
func (s *Session) History() []Turn {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return slices.Clone(s.history)
}

// LastActive reports when the session last processed an operation.
func (s *Session) LastActive() time.Time {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.lastActive
}

func (s *Session) setState(st State) {
	s.stateMu.Lock()
	s.state = st
	s.lastActive = time.Now().UTC()
	s.stateMu.Unlock()
}

// SetLanguage switches the conversation language. An unrecognized name
// leaves the session unchanged and returns ErrUnsupportedLanguage.
// History is preserved across switches; only future replies change
// language.
func (s *Session) SetLanguage(name string) (language.Entry, error) {
	entry, err := language.Resolve(name)
	if err != nil {
		return language.Entry{}, err
	}
	s.stateMu.Lock()
	s.lang = entry
	s.lastActive = time.Now().UTC()
	s.stateMu.Unlock()
	s.log.Info("Conversation language changed", "language", entry.Name, "locale", entry.Locale)
	return entry, nil
}

// Profile loads the chat's financial profile. A missing profile yields a
// default profile rather than an error; a corrupt one is reported via
// database.ErrProfileCorrupt.
func (s *Session) Profile(ctx context.Context) (*database.Profile, error) {
	p, err := s.profiles.GetProfile(ctx, s.chatID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return database.DefaultProfile(s.chatID, s.Language().Name), nil
	}
	return p, nil
}

// SetProfile overwrites the chat's financial profile.
func (s *Session) SetProfile(ctx context.Context, p *database.Profile) error {
	p.ChatID = s.chatID
	return s.profiles.SaveProfile(ctx, p)
}

// SubmitText runs one text turn through the advisory pipeline and returns
// the assistant reply. If another submission is in flight it returns
// ErrBusy immediately. On any failure the conversation history is left
// exactly as it was before the call.
func (s *Session) SubmitText(ctx context.Context, text string) (string, error) {
	if !s.submitMu.TryLock() {
		return "", fmt.Errorf("%w: a submission is already in flight", ErrBusy)
	}
	defer s.submitMu.Unlock()

	s.setState(StateAwaitingModelResponse)
	defer s.setState(StateIdle)

	return s.process(ctx, text, s.Language().Locale)
}

// SubmitAudio transcribes a voice note, then runs the text through the
// same pipeline as SubmitText. The user turn is tagged with the locale
// the transcription service detected when it is one this service
// supports, falling back to the session language otherwise.
func (s *Session) SubmitAudio(ctx context.Context, audio []byte) (string, error) {
	if s.speech == nil {
		return "", fmt.Errorf("%w: no speech client configured", speech.ErrTranscription)
	}
	if !s.submitMu.TryLock() {
		return "", fmt.Errorf("%w: a submission is already in flight", ErrBusy)
	}
	defer s.submitMu.Unlock()

	s.setState(StateAwaitingTranscription)
	defer s.setState(StateIdle)

	// No language hint: the vendor detects the spoken language, which may
	// differ from the session language and is what tags the turn below.
	transcript, err := s.speech.Transcribe(ctx, audio, "")
	if err != nil {
		return "", err
	}

	turnLocale := s.Language().Locale
	if entry, ok := language.ByLocale(transcript.DetectedLanguage); ok {
		turnLocale = entry.Locale
	}
	s.log.Debug("Voice note transcribed",
		"detected_language", transcript.DetectedLanguage,
		"turn_locale", turnLocale,
		"chars", len(transcript.Text))

	s.setState(StateAwaitingModelResponse)
	return s.process(ctx, transcript.Text, turnLocale)
}

// process is the shared text pipeline: compose, truncate on overflow,
// generate, optionally translate, then commit both turns atomically.
func (s *Session) process(ctx context.Context, userText, userLocale string) (string, error) {
	active := s.Language()

	profile, err := s.profiles.GetProfile(ctx, s.chatID)
	if err != nil {
		if !errors.Is(err, database.ErrProfileCorrupt) {
			return "", err
		}
		s.log.Warn("Profile unreadable, advising without personalization", "error", err)
		profile = nil
	}

	// Work on a copy so a failed round trip never mutates history.
	hist := s.History()

	payload, err := s.composer.Compose(hist, profile, active, userText)
	for errors.Is(err, ErrPayloadTooLarge) && len(hist) > 0 {
		// Drop the oldest turn and try again. Recent context matters
		// more than old context for advisory continuity.
		hist = hist[1:]
		payload, err = s.composer.Compose(hist, profile, active, userText)
	}
	if err != nil {
		return "", err
	}

	reply, err := s.model.Generate(ctx, payload)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return "", err
		}
		return "", fmt.Errorf("%w: %w", ErrModel, err)
	}

	if s.opts.TranslateReplies && s.speech != nil && active.Locale != "en-IN" {
		translated, terr := s.speech.Translate(ctx, reply, "en-IN", active.Locale)
		if terr != nil {
			// Keep the untranslated reply rather than failing the turn.
			s.log.Warn("Reply translation failed, using model output as-is", "error", terr)
		} else {
			reply = translated
		}
	}

	userTurn := newTurn(RoleUser, userText, userLocale)
	assistantTurn := newTurn(RoleAssistant, reply, active.Locale)

	s.stateMu.Lock()
	s.history = append(s.history, userTurn, assistantTurn)
	if s.opts.MaxHistoryTurns > 0 && len(s.history) > s.opts.MaxHistoryTurns {
		s.history = slices.Clone(s.history[len(s.history)-s.opts.MaxHistoryTurns:])
	}
	s.lastActive = time.Now().UTC()
	s.stateMu.Unlock()

	s.persistSnapshot(ctx)
	return reply, nil
}

// SpeakReply synthesizes the most recent assistant reply as audio in the
// language that reply was produced in.
func (s *Session) SpeakReply(ctx context.Context) ([]byte, error) {
	if s.speech == nil {
		return nil, fmt.Errorf("%w: no speech client configured", speech.ErrSynthesis)
	}

	var last *Turn
	s.stateMu.RLock()
	for i := len(s.history) - 1; i >= 0; i-- {
		if s.history[i].Role == RoleAssistant {
			t := s.history[i]
			last = &t
			break
		}
	}
	s.stateMu.RUnlock()

	if last == nil {
		return nil, fmt.Errorf("%w: no assistant reply to speak", speech.ErrSynthesis)
	}

	entry, ok := language.ByLocale(last.Language)
	if !ok {
		entry = s.Language()
	}
	return s.speech.Synthesize(ctx, last.Text, entry)
}

// Reset clears the conversation history and any persisted snapshot. The
// active language and the stored profile survive a reset.
func (s *Session) Reset(ctx context.Context) error {
	if !s.submitMu.TryLock() {
		return fmt.Errorf("%w: a submission is already in flight", ErrBusy)
	}
	defer s.submitMu.Unlock()

	s.stateMu.Lock()
	s.history = nil
	s.version = 0
	s.lastActive = time.Now().UTC()
	s.stateMu.Unlock()

	if s.snaps != nil {
		if err := s.snaps.Delete(ctx, s.snapshotID()); err != nil {
			return err
		}
	}
	s.log.Info("Session reset")
	return nil
}

func (s *Session) snapshotID() string {
	return strconv.FormatInt(s.chatID, 10)
}

// persistSnapshot saves the current history best-effort. Persistence
// failures are logged, not surfaced: the in-memory session remains the
// source of truth for the running process.
func (s *Session) persistSnapshot(ctx context.Context) {
	if s.snaps == nil {
		return
	}

	s.stateMu.RLock()
	snap := &sessionstore.Snapshot{
		ID:       s.snapshotID(),
		Version:  s.version,
		Language: s.lang.Name,
		History:  turnsToMessages(s.history),
	}
	s.stateMu.RUnlock()

	var err error
	if snap.Version == 0 {
		err = s.snaps.Create(ctx, snap)
		if errors.Is(err, sessionstore.ErrAlreadyExists) {
			// A stale snapshot from an earlier run. Replace it.
			if old, gerr := s.snaps.Get(ctx, snap.ID); gerr == nil && old != nil {
				snap.Version = old.Version
				err = s.snaps.Update(ctx, snap)
			}
		}
	} else {
		err = s.snaps.Update(ctx, snap)
	}
	if err != nil {
		s.log.Warn("Failed to persist session snapshot", "error", err)
		return
	}

	s.stateMu.Lock()
	s.version = snap.Version
	s.stateMu.Unlock()
}

// restore seeds the session from a persisted snapshot.
func (s *Session) restore(snap *sessionstore.Snapshot) {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()

	if entry, err := language.Resolve(snap.Language); err == nil {
		s.lang = entry
	}
	s.history = messagesToTurns(snap.History)
	if s.opts.MaxHistoryTurns > 0 && len(s.history) > s.opts.MaxHistoryTurns {
		s.history = s.history[len(s.history)-s.opts.MaxHistoryTurns:]
	}
	s.version = snap.Version
	s.lastActive = snap.UpdatedAt
}

func turnsToMessages(turns []Turn) []sessionstore.Message {
	msgs := make([]sessionstore.Message, len(turns))
	for i, t := range turns {
		msgs[i] = sessionstore.Message{
			Role:       string(t.Role),
			Content:    t.Text,
			Language:   t.Language,
			TokenCount: t.TokenCount,
			Timestamp:  t.Timestamp,
		}
	}
	return msgs
}

func messagesToTurns(msgs []sessionstore.Message) []Turn {
	turns := make([]Turn, len(msgs))
	for i, m := range msgs {
		turns[i] = Turn{
			Role:       Role(m.Role),
			Text:       m.Content,
			Language:   m.Language,
			TokenCount: m.TokenCount,
			Timestamp:  m.Timestamp,
		}
	}
	return turns
}
