package handlers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/fintalk-ai/fintalk/internal/chat"
	"github.com/fintalk-ai/fintalk/internal/database"
	"github.com/fintalk-ai/fintalk/internal/speech"
)

const (
	voiceDownloadTimeout = 30 * time.Second
	advisoryTimeout      = 2 * time.Minute
	maxVoiceBytes        = 20 << 20 // Telegram bot API file download cap
)

type chatHandler struct {
	deps HandlerDeps
}

// NewChatHandler creates the default handler that runs every non-command
// text message and voice note through the advisory pipeline.
func NewChatHandler(deps HandlerDeps) bot.HandlerFunc {
	return chatHandler{deps}.Handle
}

func (h chatHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	deps := h.deps
	log := deps.Logger.With("handler", "chat")

	msg := update.Message
	if msg == nil || msg.From == nil {
		log.DebugContext(ctx, "Ignoring update with nil message or sender", "update_id", update.ID)
		return
	}

	voice := voiceFileID(msg)
	if msg.Text == "" && voice == "" {
		log.DebugContext(ctx, "Ignoring message with no text or voice content", "chat_id", msg.Chat.ID)
		return
	}
	if strings.HasPrefix(msg.Text, "/") {
		// Unrecognized commands fall through to the default handler.
		return
	}

	chatID := msg.Chat.ID
	session := deps.Sessions.Session(ctx, chatID)

	_, _ = b.SendChatAction(ctx, &bot.SendChatActionParams{ChatID: chatID, Action: models.ChatActionTyping})

	advisoryCtx, cancel := context.WithTimeout(ctx, advisoryTimeout)
	defer cancel()

	var reply string
	var err error
	if voice != "" {
		var audio []byte
		audio, err = h.downloadVoice(advisoryCtx, b, voice)
		if err != nil {
			log.ErrorContext(ctx, "Failed to download voice note", "error", err, "chat_id", chatID)
			sendText(ctx, b, chatID, "I couldn't fetch your voice note. Please try again.", log)
			return
		}
		reply, err = session.SubmitAudio(advisoryCtx, audio)
	} else {
		reply, err = session.SubmitText(advisoryCtx, msg.Text)
	}

	if err != nil {
		log.ErrorContext(ctx, "Advisory turn failed", "error", err, "chat_id", chatID, "voice", voice != "")
		sendText(ctx, b, chatID, userFacingError(err), log)
		return
	}

	sendText(ctx, b, chatID, reply, log)

	// Voice in, voice out. The text reply above stays as the readable
	// transcript even when synthesis fails.
	if voice != "" && deps.Config.Sarvam.Enabled {
		h.sendSpokenReply(ctx, b, chatID, session, log)
	}
}

// voiceFileID returns the Telegram file id of a voice or audio
// attachment, or "".
func voiceFileID(msg *models.Message) string {
	if msg.Voice != nil {
		return msg.Voice.FileID
	}
	if msg.Audio != nil {
		return msg.Audio.FileID
	}
	return ""
}

func (h chatHandler) downloadVoice(ctx context.Context, b *bot.Bot, fileID string) ([]byte, error) {
	downloadCtx, cancel := context.WithTimeout(ctx, voiceDownloadTimeout)
	defer cancel()

	fileObj, err := b.GetFile(downloadCtx, &bot.GetFileParams{FileID: fileID})
	if err != nil {
		return nil, fmt.Errorf("failed to get file info from Telegram: %w", err)
	}
	if fileObj.FilePath == "" {
		return nil, fmt.Errorf("empty file path returned from Telegram for file ID %s", fileID)
	}

	url := fmt.Sprintf("https://api.telegram.org/file/bot%s/%s", h.deps.Config.Telegram.Token, fileObj.FilePath)
	req, err := http.NewRequestWithContext(downloadCtx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create download request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download voice note: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code %d downloading voice note", resp.StatusCode)
	}

	audio, err := io.ReadAll(io.LimitReader(resp.Body, maxVoiceBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read voice note body: %w", err)
	}
	return audio, nil
}

func (h chatHandler) sendSpokenReply(ctx context.Context, b *bot.Bot, chatID int64, session *chat.Session, log *slog.Logger) {
	_, _ = b.SendChatAction(ctx, &bot.SendChatActionParams{ChatID: chatID, Action: models.ChatActionRecordVoice})

	audio, err := session.SpeakReply(ctx)
	if err != nil {
		log.WarnContext(ctx, "Failed to synthesize spoken reply", "error", err, "chat_id", chatID)
		return
	}

	_, err = b.SendVoice(ctx, &bot.SendVoiceParams{
		ChatID: chatID,
		Voice: &models.InputFileUpload{
			Filename: "reply.wav",
			Data:     bytes.NewReader(audio),
		},
	})
	if err != nil {
		log.ErrorContext(ctx, "Failed to send voice reply", "error", err, "chat_id", chatID)
	}
}

// userFacingError maps pipeline failures to short, friendly replies.
func userFacingError(err error) string {
	switch {
	case errors.Is(err, chat.ErrBusy):
		return "I'm still working on your previous message. One moment please."
	case errors.Is(err, chat.ErrPayloadTooLarge):
		return "That message is too long for me to process. Could you shorten it?"
	case errors.Is(err, speech.ErrTranscription):
		return "I couldn't understand that voice note. Could you try again, or type your question?"
	case errors.Is(err, database.ErrProfileCorrupt):
		return "Your stored profile is unreadable. Use /fincard_set to rebuild it."
	case errors.Is(err, context.DeadlineExceeded):
		return "That took too long on my side. Please try again."
	case errors.Is(err, chat.ErrModel):
		return "My advisory engine had a hiccup. Please try again in a moment."
	default:
		return "Something went wrong. Please try again."
	}
}
