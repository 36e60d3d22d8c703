package chat_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/fintalk-ai/fintalk/internal/chat"
	"github.com/fintalk-ai/fintalk/internal/database"
	"github.com/fintalk-ai/fintalk/internal/language"
	"github.com/fintalk-ai/fintalk/internal/sessionstore"
	"github.com/fintalk-ai/fintalk/internal/speech"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeModel returns canned replies and records the payloads it saw.
type fakeModel struct {
	mu       sync.Mutex
	payloads []chat.PromptPayload
	reply    string
	err      error
	block    chan struct{} // when set, Generate waits until closed
}

func (m *fakeModel) Generate(ctx context.Context, payload chat.PromptPayload) (string, error) {
	if m.block != nil {
		select {
		case <-m.block:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	m.mu.Lock()
	m.payloads = append(m.payloads, payload)
	m.mu.Unlock()
	if m.err != nil {
		return "", m.err
	}
	return m.reply, nil
}

func (m *fakeModel) lastPayload(t *testing.T) chat.PromptPayload {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.payloads) == 0 {
		t.Fatal("model was never called")
	}
	return m.payloads[len(m.payloads)-1]
}

// fakeSpeech implements the speech bridge with canned results.
type fakeSpeech struct {
	transcript    speech.Transcript
	transcribeErr error
	audio         []byte
	synthesizeErr error
	translated    string
	translateErr  error
	synthesized   []string
	hints         []string
}

func (s *fakeSpeech) Transcribe(ctx context.Context, audio []byte, sourceLocale string) (speech.Transcript, error) {
	s.hints = append(s.hints, sourceLocale)
	if s.transcribeErr != nil {
		return speech.Transcript{}, s.transcribeErr
	}
	return s.transcript, nil
}

func (s *fakeSpeech) Synthesize(ctx context.Context, text string, entry language.Entry) ([]byte, error) {
	if s.synthesizeErr != nil {
		return nil, s.synthesizeErr
	}
	s.synthesized = append(s.synthesized, text)
	return s.audio, nil
}

func (s *fakeSpeech) Translate(ctx context.Context, text, fromLocale, toLocale string) (string, error) {
	if s.translateErr != nil {
		return "", s.translateErr
	}
	if s.translated == "" {
		return text, nil
	}
	return s.translated, nil
}

// fakeProfiles is an in-memory profile store.
type fakeProfiles struct {
	mu       sync.Mutex
	profiles map[int64]*database.Profile
	getErr   error
}

func newFakeProfiles() *fakeProfiles {
	return &fakeProfiles{profiles: make(map[int64]*database.Profile)}
}

func (f *fakeProfiles) GetProfile(ctx context.Context, chatID int64) (*database.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.profiles[chatID], nil
}

func (f *fakeProfiles) SaveProfile(ctx context.Context, p *database.Profile) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.profiles[p.ChatID] = p
	return nil
}

func (f *fakeProfiles) Ping(ctx context.Context) error           { return nil }
func (f *fakeProfiles) RunMaintenance(ctx context.Context) error { return nil }
func (f *fakeProfiles) Close() error                             { return nil }

func newTestSession(t *testing.T, model chat.ModelClient, sp chat.SpeechClient, snaps sessionstore.Store, opts chat.Options) *chat.Session {
	t.Helper()
	english, err := language.Resolve("English")
	if err != nil {
		t.Fatalf("Resolve(English) failed: %v", err)
	}
	if opts.MaxContextTokens == 0 {
		opts.MaxContextTokens = 16000
	}
	if opts.MaxHistoryTurns == 0 {
		opts.MaxHistoryTurns = 100
	}
	return chat.NewSession(42, english, model, sp, newFakeProfiles(), snaps, opts, discardLogger())
}

func TestSubmitText_AppendsBothTurns(t *testing.T) {
	t.Parallel()

	model := &fakeModel{reply: "You may qualify for a personal loan."}
	session := newTestSession(t, model, nil, nil, chat.Options{})

	reply, err := session.SubmitText(context.Background(), "Can I get a loan?")
	if err != nil {
		t.Fatalf("SubmitText failed: %v", err)
	}
	if reply != "You may qualify for a personal loan." {
		t.Errorf("reply = %q", reply)
	}

	history := session.History()
	if len(history) != 2 {
		t.Fatalf("history length = %d, want 2", len(history))
	}
	if history[0].Role != chat.RoleUser || history[0].Text != "Can I get a loan?" {
		t.Errorf("first turn = %+v, want the user turn", history[0])
	}
	if history[1].Role != chat.RoleAssistant || history[1].Text != reply {
		t.Errorf("second turn = %+v, want the assistant turn", history[1])
	}
	if session.State() != chat.StateIdle {
		t.Errorf("state = %q, want idle after completion", session.State())
	}
}

func TestSubmitText_ModelFailureLeavesHistoryUnchanged(t *testing.T) {
	t.Parallel()

	model := &fakeModel{reply: "ok"}
	session := newTestSession(t, model, nil, nil, chat.Options{})

	if _, err := session.SubmitText(context.Background(), "first"); err != nil {
		t.Fatalf("SubmitText failed: %v", err)
	}
	before := session.History()

	model.err = fmt.Errorf("backend exploded")
	_, err := session.SubmitText(context.Background(), "second")
	if !errors.Is(err, chat.ErrModel) {
		t.Fatalf("SubmitText error = %v, want ErrModel", err)
	}

	after := session.History()
	if len(after) != len(before) {
		t.Errorf("history length changed on failure: %d -> %d", len(before), len(after))
	}
	if session.State() != chat.StateIdle {
		t.Errorf("state = %q, want idle after failure", session.State())
	}
}

func TestSubmitText_BusyRejectsConcurrentSubmission(t *testing.T) {
	t.Parallel()

	block := make(chan struct{})
	model := &fakeModel{reply: "ok", block: block}
	session := newTestSession(t, model, nil, nil, chat.Options{})

	done := make(chan error, 1)
	go func() {
		_, err := session.SubmitText(context.Background(), "slow question")
		done <- err
	}()

	// Wait for the first submission to reach the model.
	deadline := time.After(2 * time.Second)
	for session.State() != chat.StateAwaitingModelResponse {
		select {
		case <-deadline:
			t.Fatal("first submission never reached the model")
		case <-time.After(time.Millisecond):
		}
	}

	_, err := session.SubmitText(context.Background(), "impatient question")
	if !errors.Is(err, chat.ErrBusy) {
		t.Fatalf("concurrent SubmitText error = %v, want ErrBusy", err)
	}

	close(block)
	if err := <-done; err != nil {
		t.Fatalf("first submission failed: %v", err)
	}
	if got := len(session.History()); got != 2 {
		t.Errorf("history length = %d, want 2 (only the first submission)", got)
	}
}

func TestSubmitText_TruncatesOldestOnOverflow(t *testing.T) {
	t.Parallel()

	model := &fakeModel{reply: "short"}
	// Budget large enough for the system instruction and a couple of
	// turns, but not the whole history.
	session := newTestSession(t, model, nil, nil, chat.Options{MaxContextTokens: 300})

	for i := 0; i < 10; i++ {
		if _, err := session.SubmitText(context.Background(), fmt.Sprintf("question %d padding padding padding padding padding padding padding padding", i)); err != nil {
			t.Fatalf("SubmitText %d failed: %v", i, err)
		}
	}

	payload := model.lastPayload(t)
	if payload.EstimatedTokens > 300 {
		t.Errorf("payload estimate %d exceeds budget after truncation", payload.EstimatedTokens)
	}
	// The newest user turn always survives truncation.
	last := payload.Turns[len(payload.Turns)-1]
	if last.Role != chat.RoleUser || last.Text == "" {
		t.Errorf("last payload turn = %+v, want the new user turn", last)
	}
	// Committed history still holds every exchange.
	if got := len(session.History()); got != 20 {
		t.Errorf("history length = %d, want 20", got)
	}
}

func TestSubmitAudio_TagsDetectedLanguage(t *testing.T) {
	t.Parallel()

	model := &fakeModel{reply: "जरूर, बताइए"}
	sp := &fakeSpeech{transcript: speech.Transcript{Text: "मुझे लोन चाहिए", DetectedLanguage: "hi-IN"}}
	session := newTestSession(t, model, sp, nil, chat.Options{})

	if _, err := session.SubmitAudio(context.Background(), []byte("fake-ogg")); err != nil {
		t.Fatalf("SubmitAudio failed: %v", err)
	}

	history := session.History()
	if len(history) != 2 {
		t.Fatalf("history length = %d, want 2", len(history))
	}
	if history[0].Language != "hi-IN" {
		t.Errorf("user turn language = %q, want detected hi-IN", history[0].Language)
	}
	// The assistant turn is tagged with the active session language.
	if history[1].Language != "en-IN" {
		t.Errorf("assistant turn language = %q, want en-IN", history[1].Language)
	}
}

func TestSubmitAudio_DoesNotPinTranscriptionLanguage(t *testing.T) {
	t.Parallel()

	model := &fakeModel{reply: "Sure, tell me more."}
	sp := &fakeSpeech{transcript: speech.Transcript{Text: "loan please", DetectedLanguage: "ta-IN"}}
	session := newTestSession(t, model, sp, nil, chat.Options{})

	if _, err := session.SubmitAudio(context.Background(), []byte("fake-ogg")); err != nil {
		t.Fatalf("SubmitAudio failed: %v", err)
	}

	// The session language must not be sent as a hint, or the vendor
	// would stop detecting what the user actually spoke.
	if len(sp.hints) != 1 || sp.hints[0] != "" {
		t.Errorf("transcription hints = %q, want a single empty hint", sp.hints)
	}
	if got := session.History()[0].Language; got != "ta-IN" {
		t.Errorf("user turn language = %q, want ta-IN", got)
	}
}

func TestSubmitAudio_TranscriptionFailure(t *testing.T) {
	t.Parallel()

	model := &fakeModel{reply: "unused"}
	sp := &fakeSpeech{transcribeErr: fmt.Errorf("%w: garbled audio", speech.ErrTranscription)}
	session := newTestSession(t, model, sp, nil, chat.Options{})

	_, err := session.SubmitAudio(context.Background(), []byte("noise"))
	if !errors.Is(err, speech.ErrTranscription) {
		t.Fatalf("SubmitAudio error = %v, want ErrTranscription", err)
	}
	if got := len(session.History()); got != 0 {
		t.Errorf("history length = %d, want 0 after failed transcription", got)
	}
}

func TestSetLanguage(t *testing.T) {
	t.Parallel()

	model := &fakeModel{reply: "ok"}
	session := newTestSession(t, model, nil, nil, chat.Options{})

	if _, err := session.SubmitText(context.Background(), "hello"); err != nil {
		t.Fatalf("SubmitText failed: %v", err)
	}

	entry, err := session.SetLanguage("Hindi")
	if err != nil {
		t.Fatalf("SetLanguage(Hindi) failed: %v", err)
	}
	if entry.Locale != "hi-IN" {
		t.Errorf("locale = %q, want hi-IN", entry.Locale)
	}
	// History survives a language switch.
	if got := len(session.History()); got != 2 {
		t.Errorf("history length = %d after switch, want 2", got)
	}

	// An unknown language leaves the session untouched.
	if _, err := session.SetLanguage("Klingon"); !errors.Is(err, language.ErrUnsupportedLanguage) {
		t.Fatalf("SetLanguage(Klingon) error = %v, want ErrUnsupportedLanguage", err)
	}
	if got := session.Language().Name; got != "Hindi" {
		t.Errorf("language after failed switch = %q, want Hindi", got)
	}

	// The next payload targets the new language.
	if _, err := session.SubmitText(context.Background(), "नमस्ते"); err != nil {
		t.Fatalf("SubmitText after switch failed: %v", err)
	}
	payload := model.lastPayload(t)
	if payload.TargetLanguage.Name != "Hindi" {
		t.Errorf("payload target = %q, want Hindi", payload.TargetLanguage.Name)
	}
}

func TestSpeakReply(t *testing.T) {
	t.Parallel()

	model := &fakeModel{reply: "Here is your EMI breakdown."}
	sp := &fakeSpeech{audio: []byte("RIFFwav")}
	session := newTestSession(t, model, sp, nil, chat.Options{})

	// Nothing to speak before the first reply.
	if _, err := session.SpeakReply(context.Background()); !errors.Is(err, speech.ErrSynthesis) {
		t.Fatalf("SpeakReply on empty session error = %v, want ErrSynthesis", err)
	}

	if _, err := session.SubmitText(context.Background(), "EMI please"); err != nil {
		t.Fatalf("SubmitText failed: %v", err)
	}

	audio, err := session.SpeakReply(context.Background())
	if err != nil {
		t.Fatalf("SpeakReply failed: %v", err)
	}
	if string(audio) != "RIFFwav" {
		t.Errorf("audio = %q", audio)
	}
	if len(sp.synthesized) != 1 || sp.synthesized[0] != "Here is your EMI breakdown." {
		t.Errorf("synthesized texts = %v, want the last assistant reply", sp.synthesized)
	}
}

func TestReset(t *testing.T) {
	t.Parallel()

	model := &fakeModel{reply: "ok"}
	snaps := sessionstore.NewMemoryStore(time.Hour)
	session := newTestSession(t, model, nil, snaps, chat.Options{})

	if _, err := session.SubmitText(context.Background(), "hello"); err != nil {
		t.Fatalf("SubmitText failed: %v", err)
	}
	if snap, _ := snaps.Get(context.Background(), "42"); snap == nil {
		t.Fatal("snapshot was not persisted after a successful turn")
	}

	if err := session.Reset(context.Background()); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}
	if got := len(session.History()); got != 0 {
		t.Errorf("history length = %d after reset, want 0", got)
	}
	if snap, _ := snaps.Get(context.Background(), "42"); snap != nil {
		t.Error("snapshot still present after reset")
	}
}

func TestManager_RestoresSnapshot(t *testing.T) {
	t.Parallel()

	english, _ := language.Resolve("English")
	snaps := sessionstore.NewMemoryStore(time.Hour)
	err := snaps.Create(context.Background(), &sessionstore.Snapshot{
		ID:       "42",
		Language: "Hindi",
		History: []sessionstore.Message{
			{Role: "user", Content: "लोन चाहिए", Language: "hi-IN", TokenCount: 4},
			{Role: "assistant", Content: "जरूर", Language: "hi-IN", TokenCount: 2},
		},
	})
	if err != nil {
		t.Fatalf("seeding snapshot failed: %v", err)
	}

	manager := chat.NewManager(english, &fakeModel{reply: "ok"}, nil, newFakeProfiles(), snaps, chat.Options{
		MaxContextTokens: 16000,
		MaxHistoryTurns:  100,
	}, discardLogger())

	session := manager.Session(context.Background(), 42)
	if got := session.Language().Name; got != "Hindi" {
		t.Errorf("restored language = %q, want Hindi", got)
	}
	if got := len(session.History()); got != 2 {
		t.Errorf("restored history length = %d, want 2", got)
	}

	// The same session instance is returned on subsequent lookups.
	if again := manager.Session(context.Background(), 42); again != session {
		t.Error("manager did not reuse the resident session")
	}
}

func TestManager_ExpireIdle(t *testing.T) {
	t.Parallel()

	english, _ := language.Resolve("English")
	manager := chat.NewManager(english, &fakeModel{reply: "ok"}, nil, newFakeProfiles(), nil, chat.Options{
		MaxContextTokens: 16000,
		MaxHistoryTurns:  100,
	}, discardLogger())

	manager.Session(context.Background(), 1)
	manager.Session(context.Background(), 2)
	if got := manager.Len(); got != 2 {
		t.Fatalf("Len = %d, want 2", got)
	}

	// A generous idle window keeps fresh sessions resident.
	if removed := manager.ExpireIdle(time.Hour); removed != 0 {
		t.Errorf("ExpireIdle(1h) removed %d fresh sessions", removed)
	}

	time.Sleep(10 * time.Millisecond)
	if removed := manager.ExpireIdle(time.Millisecond); removed != 2 {
		t.Errorf("ExpireIdle(1ms) removed %d, want 2", removed)
	}
	if got := manager.Len(); got != 0 {
		t.Errorf("Len = %d after expiry, want 0", got)
	}
}
