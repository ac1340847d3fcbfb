package deezer

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/Jorge5452/Melodify-Deezer/logger"
	"github.com/Jorge5452/Melodify-Deezer/model"
)

// apiError is the error envelope the Deezer API returns with HTTP 200.
type apiError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

func (e *apiError) Error() string {
	return fmt.Sprintf("deezer API error: %s (%s, code %d)", e.Message, e.Type, e.Code)
}

// getJSON performs a GET and decodes the response into out, surfacing the
// API error envelope when present.
func (c *Client) getJSON(ctx context.Context, path string, out interface{}) error {
	url := c.baseURL + path

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("API returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	// The API reports failures inside a 200 body.
	var envelope struct {
		Error *apiError `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error != nil {
		return envelope.Error
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// GetTrack fetches display metadata for one track. An unknown or invalid id
// returns an error, never a panic.
func (c *Client) GetTrack(ctx context.Context, id string) (*model.TrackMetadata, error) {
	logger.Debug("fetching track metadata", logger.String("trackId", id))

	var result struct {
		ID       int64  `json:"id"`
		Title    string `json:"title"`
		Duration int    `json:"duration"`
		Artist   struct {
			Name string `json:"name"`
		} `json:"artist"`
		Album struct {
			Title    string `json:"title"`
			CoverBig string `json:"cover_big"`
		} `json:"album"`
	}
	if err := c.getJSON(ctx, "/track/"+id, &result); err != nil {
		return nil, fmt.Errorf("getting track %s: %w", id, err)
	}
	if result.ID == 0 {
		return nil, fmt.Errorf("getting track %s: empty response", id)
	}

	return &model.TrackMetadata{
		ID:       result.ID,
		Title:    result.Title,
		Artist:   result.Artist.Name,
		Album:    result.Album.Title,
		Duration: result.Duration,
		CoverURL: result.Album.CoverBig,
	}, nil
}
