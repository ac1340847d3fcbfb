// Package bot is the Telegram front end: it long-polls updates, adapts text
// messages and button presses into DownloadRequest values and guards the
// pipeline with the last-line error boundary.
package bot

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/Jorge5452/Melodify-Deezer/core/resolver"
	"github.com/Jorge5452/Melodify-Deezer/logger"
	"github.com/Jorge5452/Melodify-Deezer/model"
	"github.com/Jorge5452/Melodify-Deezer/transport"
)

const welcomeText = "🎵 Send a Deezer link (track, album or playlist) and I'll fetch the audio for you."

// API is the slice of the Telegram client the update loop needs.
type API interface {
	GetUpdates(ctx context.Context, offset int64, timeoutSeconds int) ([]transport.Update, error)
	SendMessage(ctx context.Context, chatID int64, text string) error
	AnswerCallbackQuery(ctx context.Context, callbackID string) error
}

// Handler runs one download request end to end.
type Handler interface {
	HandleRequest(ctx context.Context, req model.DownloadRequest) error
}

// Bot wires the update loop to the pipeline.
type Bot struct {
	api         API
	handler     Handler
	bitrate     int
	pollTimeout int
}

// New creates a bot polling with the given default bitrate.
func New(api API, handler Handler, bitrate int) *Bot {
	return &Bot{
		api:         api,
		handler:     handler,
		bitrate:     bitrate,
		pollTimeout: 30,
	}
}

// Run long-polls updates until the context is canceled. Each update is
// handled on its own goroutine so a slow download never blocks other chats.
func (b *Bot) Run(ctx context.Context) error {
	var offset int64

	logger.Info("bot update loop started", logger.Int("bitrate", b.bitrate))
	for {
		updates, err := b.api.GetUpdates(ctx, offset, b.pollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logger.Error("getUpdates failed", logger.ErrorField(err))
			if err := sleep(ctx, 3*time.Second); err != nil {
				return err
			}
			continue
		}

		for _, update := range updates {
			if update.UpdateID >= offset {
				offset = update.UpdateID + 1
			}
			go b.handleUpdate(ctx, update)
		}
	}
}

// handleUpdate is the request boundary: everything below it may fail, the
// requester always gets one short status message, and the process never
// dies for a single update.
func (b *Bot) handleUpdate(ctx context.Context, update transport.Update) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("panic while handling update",
				logger.Int64("updateId", update.UpdateID),
				logger.Any("panic", r))
			if chatID := updateChatID(update); chatID != 0 {
				_ = b.api.SendMessage(ctx, chatID, "⚠️ Something went wrong processing your request.")
			}
		}
	}()

	switch {
	case update.Message != nil:
		b.handleMessage(ctx, update.Message)
	case update.CallbackQuery != nil:
		b.handleCallback(ctx, update.CallbackQuery)
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *transport.Message) {
	text := strings.TrimSpace(msg.Text)
	if text == "" {
		return
	}

	if text == "/start" || text == "/help" {
		_ = b.api.SendMessage(ctx, msg.Chat.ID, welcomeText)
		return
	}

	desc, ok := resolver.Resolve(text)
	if !ok {
		_ = b.api.SendMessage(ctx, msg.Chat.ID, "🔗 Send a valid Deezer link")
		return
	}

	b.dispatch(ctx, model.DownloadRequest{
		ChatID:     msg.Chat.ID,
		Reference:  text,
		Descriptor: desc,
		Bitrate:    b.bitrate,
	})
}

func (b *Bot) handleCallback(ctx context.Context, cb *transport.CallbackQuery) {
	// Ack first so the client stops spinning even when the work is long.
	if err := b.api.AnswerCallbackQuery(ctx, cb.ID); err != nil {
		logger.Warn("answering callback failed",
			logger.String("callbackId", cb.ID),
			logger.ErrorField(err))
	}
	if cb.Message == nil {
		return
	}

	desc, ok := ParseCallbackData(cb.Data)
	if !ok {
		logger.Warn("unrecognized callback data", logger.String("data", cb.Data))
		return
	}

	// Button presses funnel into the same request value as text messages.
	b.dispatch(ctx, model.DownloadRequest{
		ChatID:     cb.Message.Chat.ID,
		Reference:  desc.URL(),
		Descriptor: desc,
		Bitrate:    b.bitrate,
	})
}

// dispatch runs the pipeline and converts any request-level failure into one
// user-visible status line. Internal identifiers never leak to the chat.
func (b *Bot) dispatch(ctx context.Context, req model.DownloadRequest) {
	if err := b.handler.HandleRequest(ctx, req); err != nil {
		logger.Error("request failed",
			logger.String("reference", req.Reference),
			logger.String("fingerprint", req.Fingerprint()),
			logger.Int64("chatId", req.ChatID),
			logger.ErrorField(err))
		_ = b.api.SendMessage(ctx, req.ChatID, userMessage(err))
	}
}

// userMessage maps the error taxonomy to a short requester-facing line.
func userMessage(err error) string {
	switch {
	case errors.Is(err, model.ErrInvalidReference):
		return "🔗 Send a valid Deezer link"
	case errors.Is(err, model.ErrNoArtifactProduced), errors.Is(err, model.ErrFetchFailed):
		return "⚠️ Could not download that content. Try again later."
	case errors.Is(err, model.ErrPublishFailed):
		return "⚠️ Downloaded, but delivery failed. Try again later."
	default:
		return "⚠️ Something went wrong processing your request."
	}
}

// ParseCallbackData decodes a download button payload of the form
// "download:<kind>:<id>".
func ParseCallbackData(data string) (model.ContentDescriptor, bool) {
	parts := strings.Split(data, ":")
	if len(parts) != 3 || parts[0] != "download" {
		return model.ContentDescriptor{}, false
	}

	kind := model.ContentKind(parts[1])
	switch kind {
	case model.KindTrack, model.KindAlbum, model.KindPlaylist:
	default:
		return model.ContentDescriptor{}, false
	}

	id := parts[2]
	if id == "" {
		return model.ContentDescriptor{}, false
	}
	for _, r := range id {
		if r < '0' || r > '9' {
			return model.ContentDescriptor{}, false
		}
	}
	return model.ContentDescriptor{Kind: kind, ID: id}, true
}

func updateChatID(update transport.Update) int64 {
	if update.Message != nil {
		return update.Message.Chat.ID
	}
	if update.CallbackQuery != nil && update.CallbackQuery.Message != nil {
		return update.CallbackQuery.Message.Chat.ID
	}
	return 0
}

func sleep(ctx context.Context, d time.Duration) error {
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
