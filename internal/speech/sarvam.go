// Package speech implements the bridge to the Sarvam AI speech API:
// speech-to-text, text-to-speech, and translation. Each operation is a
// single request/response call; errors propagate to the caller with no
// retry logic.
package speech

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/fintalk-ai/fintalk/internal/language"
)

var (
	// ErrTranscription indicates a vendor failure or unintelligible audio.
	// It is reported to the caller, never silently defaulted to empty text.
	ErrTranscription = errors.New("transcription failed")

	// ErrSynthesis indicates a vendor failure during text-to-speech. The
	// caller decides the fallback (typically showing text only).
	ErrSynthesis = errors.New("speech synthesis failed")

	// ErrTranslation indicates a vendor failure during translation.
	ErrTranslation = errors.New("translation failed")
)

// Transcript is the result of a transcription call.
type Transcript struct {
	Text             string
	DetectedLanguage string // BCP-47 locale reported by the vendor; may be empty
}

// Config holds the vendor parameters for the client.
type Config struct {
	APIKey         string
	BaseURL        string
	Timeout        time.Duration
	STTModel       string
	TTSModel       string
	TranslateModel string
}

// Client is a Sarvam API client.
type Client struct {
	cfg    Config
	http   *http.Client
	logger *slog.Logger
}

// TTS input is split into chunks of at most this many characters; longer
// inputs get one synthesis call per chunk and the audio is concatenated.
const ttsChunkSize = 400

// NewClient creates a Sarvam client. The API key is required.
func NewClient(cfg Config, logger *slog.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("sarvam API key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.sarvam.ai"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = time.Minute
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		logger: logger.With("component", "sarvam_client"),
	}, nil
}

// Transcribe converts audio bytes to text. sourceLocale is an optional
// hint; when empty the vendor auto-detects the language. An empty
// transcript from the vendor is treated as a failure.
func (c *Client) Transcribe(ctx context.Context, audio []byte, sourceLocale string) (Transcript, error) {
	if len(audio) == 0 {
		return Transcript{}, fmt.Errorf("%w: empty audio input", ErrTranscription)
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	part, err := mw.CreateFormFile("file", "audio.wav")
	if err != nil {
		return Transcript{}, fmt.Errorf("%w: %v", ErrTranscription, err)
	}
	if _, err := part.Write(audio); err != nil {
		return Transcript{}, fmt.Errorf("%w: %v", ErrTranscription, err)
	}

	langCode := sourceLocale
	if langCode == "" {
		langCode = "unknown"
	}
	fields := map[string]string{
		"model":         c.cfg.STTModel,
		"language_code": langCode,
	}
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			return Transcript{}, fmt.Errorf("%w: %v", ErrTranscription, err)
		}
	}
	if err := mw.Close(); err != nil {
		return Transcript{}, fmt.Errorf("%w: %v", ErrTranscription, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/speech-to-text", &body)
	if err != nil {
		return Transcript{}, fmt.Errorf("%w: %v", ErrTranscription, err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Accept", "application/json")
	req.Header.Set("API-Subscription-Key", c.cfg.APIKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return Transcript{}, fmt.Errorf("%w: %v", ErrTranscription, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Transcript{}, fmt.Errorf("%w: reading response: %v", ErrTranscription, err)
	}
	if resp.StatusCode != http.StatusOK {
		c.logger.ErrorContext(ctx, "STT request failed", "status", resp.StatusCode, "body", truncate(string(payload), 200))
		return Transcript{}, fmt.Errorf("%w: vendor returned status %d", ErrTranscription, resp.StatusCode)
	}

	var decoded struct {
		Transcript   string `json:"transcript"`
		Text         string `json:"text"`
		LanguageCode string `json:"language_code"`
	}
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return Transcript{}, fmt.Errorf("%w: invalid response JSON: %v", ErrTranscription, err)
	}

	text := strings.TrimSpace(decoded.Transcript)
	if text == "" {
		text = strings.TrimSpace(decoded.Text)
	}
	if text == "" {
		return Transcript{}, fmt.Errorf("%w: vendor returned empty transcript", ErrTranscription)
	}

	c.logger.DebugContext(ctx, "Transcription complete", "detected_language", decoded.LanguageCode, "chars", len(text))
	return Transcript{Text: text, DetectedLanguage: decoded.LanguageCode}, nil
}

// Synthesize converts text to audio in the given language, using the
// entry's speaker voice. Long texts are split on word boundaries and
// synthesized chunk by chunk.
func (c *Client) Synthesize(ctx context.Context, text string, entry language.Entry) ([]byte, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: empty input text", ErrSynthesis)
	}

	var out bytes.Buffer
	for i, chunk := range splitText(text, ttsChunkSize) {
		audio, err := c.synthesizeChunk(ctx, chunk, entry)
		if err != nil {
			return nil, fmt.Errorf("chunk %d: %w", i, err)
		}
		out.Write(audio)
	}
	return out.Bytes(), nil
}

func (c *Client) synthesizeChunk(ctx context.Context, chunk string, entry language.Entry) ([]byte, error) {
	reqBody, err := json.Marshal(map[string]any{
		"input":         chunk,
		"language_code": entry.Locale,
		"speaker":       entry.Speaker,
		"format":        "wav",
		"model":         c.cfg.TTSModel,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSynthesis, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/text-to-speech", bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSynthesis, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/wav")
	req.Header.Set("API-Subscription-Key", c.cfg.APIKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSynthesis, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: reading response: %v", ErrSynthesis, err)
	}
	if resp.StatusCode != http.StatusOK {
		c.logger.ErrorContext(ctx, "TTS request failed", "status", resp.StatusCode, "body", truncate(string(payload), 200))
		return nil, fmt.Errorf("%w: vendor returned status %d", ErrSynthesis, resp.StatusCode)
	}

	// The vendor answers either with raw audio or with base64 audio inside
	// a JSON envelope, depending on the Accept negotiation.
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "audio") {
		return payload, nil
	}

	var decoded struct {
		Audios []string `json:"audios"`
		Audio  string   `json:"audio"`
	}
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return nil, fmt.Errorf("%w: invalid response JSON: %v", ErrSynthesis, err)
	}
	encoded := decoded.Audio
	if encoded == "" && len(decoded.Audios) > 0 {
		encoded = decoded.Audios[0]
	}
	if encoded == "" {
		return nil, fmt.Errorf("%w: response contained no audio", ErrSynthesis)
	}

	audio, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid base64 audio: %v", ErrSynthesis, err)
	}
	return audio, nil
}

// Translate converts text between two supported locales. Identity
// translations short-circuit without a vendor call.
func (c *Client) Translate(ctx context.Context, text, fromLocale, toLocale string) (string, error) {
	if strings.TrimSpace(text) == "" || fromLocale == toLocale {
		return text, nil
	}

	reqBody, err := json.Marshal(map[string]any{
		"input":                text,
		"source_language_code": fromLocale,
		"target_language_code": toLocale,
		"model":                c.cfg.TranslateModel,
		"mode":                 "formal",
		"enable_preprocessing": true,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTranslation, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/translate", bytes.NewReader(reqBody))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTranslation, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("API-Subscription-Key", c.cfg.APIKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTranslation, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("%w: reading response: %v", ErrTranslation, err)
	}
	if resp.StatusCode != http.StatusOK {
		c.logger.ErrorContext(ctx, "Translate request failed", "status", resp.StatusCode, "body", truncate(string(payload), 200))
		return "", fmt.Errorf("%w: vendor returned status %d", ErrTranslation, resp.StatusCode)
	}

	var decoded struct {
		TranslatedText string `json:"translated_text"`
		Output         string `json:"output"`
	}
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return "", fmt.Errorf("%w: invalid response JSON: %v", ErrTranslation, err)
	}
	out := decoded.TranslatedText
	if out == "" {
		out = decoded.Output
	}
	if out == "" {
		return "", fmt.Errorf("%w: response contained no translation", ErrTranslation)
	}
	return out, nil
}

// splitText splits text into chunks of at most maxLen characters on word
// boundaries. Words longer than maxLen become their own chunk.
func splitText(text string, maxLen int) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}

	var chunks []string
	current := ""
	for _, word := range words {
		switch {
		case current == "":
			current = word
		case len(current)+len(word)+1 <= maxLen:
			current += " " + word
		default:
			chunks = append(chunks, current)
			current = word
		}
	}
	if current != "" {
		chunks = append(chunks, current)
	}
	return chunks
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
