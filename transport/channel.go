package transport

import (
	"context"
	"fmt"

	"github.com/Jorge5452/Melodify-Deezer/core/fetch"
	"github.com/Jorge5452/Melodify-Deezer/logger"
	"github.com/Jorge5452/Melodify-Deezer/model"
)

// VaultChannel is the durable broadcast channel: audio published into the
// vault chat gets a stable file_id that can be re-delivered to any requester
// without re-uploading the bytes.
type VaultChannel struct {
	client      *Client
	vaultChatID int64
}

// NewVaultChannel creates the channel over the given vault chat.
func NewVaultChannel(client *Client, vaultChatID int64) *VaultChannel {
	return &VaultChannel{client: client, vaultChatID: vaultChatID}
}

// Publish uploads the payload into the vault chat and returns its file_id.
func (v *VaultChannel) Publish(ctx context.Context, file fetch.AudioFile, meta *model.TrackMetadata) (string, error) {
	caption := file.Name
	if meta != nil && meta.Title != "" {
		if meta.Artist != "" {
			caption = fmt.Sprintf("%s - %s", meta.Artist, meta.Title)
		} else {
			caption = meta.Title
		}
	}

	fileID, err := v.client.SendAudioFile(ctx, v.vaultChatID, file.Path, meta, caption)
	if err != nil {
		return "", fmt.Errorf("publishing to vault chat: %w", err)
	}

	logger.Info("audio stored in vault chat",
		logger.String("caption", caption),
		logger.String("fileId", fileID))
	return fileID, nil
}

// Relay re-delivers a published artifact to a chat by file_id.
func (v *VaultChannel) Relay(ctx context.Context, ref string, chatID int64) error {
	return v.client.SendAudioByID(ctx, chatID, ref)
}

// Messenger is the requester-facing transport. Sends are fire-and-forget:
// failures are logged here and never surface to the pipeline.
type Messenger struct {
	client *Client
}

// NewMessenger creates a messenger over the bot client.
func NewMessenger(client *Client) *Messenger {
	return &Messenger{client: client}
}

// SendProgress sends a short status line to the requester.
func (m *Messenger) SendProgress(ctx context.Context, chatID int64, text string) {
	if err := m.client.SendMessage(ctx, chatID, text); err != nil {
		logger.Warn("progress message delivery failed",
			logger.Int64("chatId", chatID),
			logger.ErrorField(err))
	}
}

// SendImage sends an image by URL with a caption.
func (m *Messenger) SendImage(ctx context.Context, chatID int64, imageURL, caption string) {
	if err := m.client.SendPhotoURL(ctx, chatID, imageURL, caption); err != nil {
		logger.Warn("image delivery failed",
			logger.Int64("chatId", chatID),
			logger.ErrorField(err))
	}
}
