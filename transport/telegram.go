// Package transport talks to the Telegram Bot API. It implements both sides
// the core needs: the requester-facing messenger and the durable broadcast
// channel backed by the vault chat.
package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/Jorge5452/Melodify-Deezer/model"
)

// DefaultBaseURL is the Bot API endpoint.
const DefaultBaseURL = "https://api.telegram.org"

// Client is a Telegram Bot API client.
type Client struct {
	token      string
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client for the given bot token.
func NewClient(token string) *Client {
	return &Client{
		token:   token,
		baseURL: DefaultBaseURL,
		httpClient: &http.Client{
			// Long polling and audio uploads both need generous room.
			Timeout: time.Second * 90,
		},
	}
}

// SetBaseURL overrides the API base URL, mainly for tests.
func (c *Client) SetBaseURL(url string) {
	c.baseURL = url
}

func (c *Client) methodURL(method string) string {
	return fmt.Sprintf("%s/bot%s/%s", c.baseURL, c.token, method)
}

// apiResponse is the Bot API envelope.
type apiResponse struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result"`
	Description string          `json:"description"`
	ErrorCode   int             `json:"error_code"`
}

// User is the bot's own identity, from getMe.
type User struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}

// Chat identifies a conversation.
type Chat struct {
	ID int64 `json:"id"`
}

// Audio is a published audio payload.
type Audio struct {
	FileID string `json:"file_id"`
}

// Message is the subset of the Bot API message the bot consumes.
type Message struct {
	MessageID int64  `json:"message_id"`
	Chat      Chat   `json:"chat"`
	Text      string `json:"text"`
	Audio     *Audio `json:"audio"`
}

// CallbackQuery is a button press.
type CallbackQuery struct {
	ID      string   `json:"id"`
	Data    string   `json:"data"`
	Message *Message `json:"message"`
}

// Update is one long-poll result.
type Update struct {
	UpdateID      int64          `json:"update_id"`
	Message       *Message       `json:"message"`
	CallbackQuery *CallbackQuery `json:"callback_query"`
}

// call posts form values to a Bot API method and decodes the result into out
// when out is non-nil.
func (c *Client) call(ctx context.Context, method string, form url.Values, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.methodURL(method), nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.URL.RawQuery = form.Encode()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s request failed: %w", method, err)
	}
	defer resp.Body.Close()

	return decodeAPIResponse(resp.Body, method, out)
}

func decodeAPIResponse(r io.Reader, method string, out interface{}) error {
	body, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("reading %s response: %w", method, err)
	}

	var envelope apiResponse
	if err := json.Unmarshal(body, &envelope); err != nil {
		return fmt.Errorf("decoding %s response: %w", method, err)
	}
	if !envelope.OK {
		return fmt.Errorf("%s rejected: %s (code %d)", method, envelope.Description, envelope.ErrorCode)
	}
	if out != nil {
		if err := json.Unmarshal(envelope.Result, out); err != nil {
			return fmt.Errorf("decoding %s result: %w", method, err)
		}
	}
	return nil
}

// GetMe validates the bot token at startup.
func (c *Client) GetMe(ctx context.Context) (*User, error) {
	var user User
	if err := c.call(ctx, "getMe", url.Values{}, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// GetUpdates long-polls for updates after offset.
func (c *Client) GetUpdates(ctx context.Context, offset int64, timeoutSeconds int) ([]Update, error) {
	form := url.Values{}
	form.Set("offset", strconv.FormatInt(offset, 10))
	form.Set("timeout", strconv.Itoa(timeoutSeconds))
	form.Set("allowed_updates", `["message","callback_query"]`)

	var updates []Update
	if err := c.call(ctx, "getUpdates", form, &updates); err != nil {
		return nil, err
	}
	return updates, nil
}

// SendMessage sends a plain text message.
func (c *Client) SendMessage(ctx context.Context, chatID int64, text string) error {
	form := url.Values{}
	form.Set("chat_id", strconv.FormatInt(chatID, 10))
	form.Set("text", text)
	return c.call(ctx, "sendMessage", form, nil)
}

// SendPhotoURL sends a photo by URL with a caption.
func (c *Client) SendPhotoURL(ctx context.Context, chatID int64, photoURL, caption string) error {
	form := url.Values{}
	form.Set("chat_id", strconv.FormatInt(chatID, 10))
	form.Set("photo", photoURL)
	form.Set("caption", caption)
	return c.call(ctx, "sendPhoto", form, nil)
}

// AnswerCallbackQuery acknowledges a button press so the client stops
// showing a spinner.
func (c *Client) AnswerCallbackQuery(ctx context.Context, callbackID string) error {
	form := url.Values{}
	form.Set("callback_query_id", callbackID)
	return c.call(ctx, "answerCallbackQuery", form, nil)
}

// SendAudioByID re-delivers an already-uploaded audio by its file_id,
// without moving any bytes.
func (c *Client) SendAudioByID(ctx context.Context, chatID int64, fileID string) error {
	form := url.Values{}
	form.Set("chat_id", strconv.FormatInt(chatID, 10))
	form.Set("audio", fileID)
	return c.call(ctx, "sendAudio", form, nil)
}

// SendAudioFile uploads a local audio file with display metadata and returns
// the stable file_id Telegram assigns to it.
func (c *Client) SendAudioFile(ctx context.Context, chatID int64, path string, meta *model.TrackMetadata, caption string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening audio file: %w", err)
	}
	defer f.Close()

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		defer pw.Close()
		writeField := func(name, value string) {
			if value != "" {
				_ = mw.WriteField(name, value)
			}
		}
		writeField("chat_id", strconv.FormatInt(chatID, 10))
		writeField("caption", caption)
		if meta != nil {
			writeField("title", meta.Title)
			writeField("performer", meta.Artist)
			if meta.Duration > 0 {
				writeField("duration", strconv.Itoa(meta.Duration))
			}
			// No thumbnail field: the Bot API only accepts uploaded
			// attachments there, not URLs.
		}

		part, err := mw.CreateFormFile("audio", filepath.Base(path))
		if err != nil {
			pw.CloseWithError(err)
			return
		}
		if _, err := io.Copy(part, f); err != nil {
			pw.CloseWithError(err)
			return
		}
		pw.CloseWithError(mw.Close())
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.methodURL("sendAudio"), pr)
	if err != nil {
		return "", fmt.Errorf("creating upload request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("sendAudio upload failed: %w", err)
	}
	defer resp.Body.Close()

	var msg Message
	if err := decodeAPIResponse(resp.Body, "sendAudio", &msg); err != nil {
		return "", err
	}
	if msg.Audio == nil || msg.Audio.FileID == "" {
		return "", fmt.Errorf("sendAudio response carried no audio file_id")
	}
	return msg.Audio.FileID, nil
}
