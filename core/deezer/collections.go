package deezer

import (
	"context"
	"fmt"

	"github.com/Jorge5452/Melodify-Deezer/logger"
	"github.com/Jorge5452/Melodify-Deezer/model"
)

// trackListItem is the reduced track shape embedded in album and playlist
// responses.
type trackListItem struct {
	ID       int64  `json:"id"`
	Title    string `json:"title"`
	Duration int    `json:"duration"`
	Artist   struct {
		Name string `json:"name"`
	} `json:"artist"`
}

func toTrackMetadata(items []trackListItem, album, coverURL string) []model.TrackMetadata {
	tracks := make([]model.TrackMetadata, 0, len(items))
	for _, it := range items {
		tracks = append(tracks, model.TrackMetadata{
			ID:       it.ID,
			Title:    it.Title,
			Artist:   it.Artist.Name,
			Album:    album,
			Duration: it.Duration,
			CoverURL: coverURL,
		})
	}
	return tracks
}

// GetAlbum fetches album metadata including its ordered track list.
func (c *Client) GetAlbum(ctx context.Context, id string) (*model.CollectionMetadata, error) {
	logger.Debug("fetching album metadata", logger.String("albumId", id))

	var result struct {
		ID     int64  `json:"id"`
		Title  string `json:"title"`
		Artist struct {
			Name string `json:"name"`
		} `json:"artist"`
		CoverBig string `json:"cover_big"`
		Tracks   struct {
			Data []trackListItem `json:"data"`
		} `json:"tracks"`
	}
	if err := c.getJSON(ctx, "/album/"+id, &result); err != nil {
		return nil, fmt.Errorf("getting album %s: %w", id, err)
	}
	if result.ID == 0 {
		return nil, fmt.Errorf("getting album %s: empty response", id)
	}

	return &model.CollectionMetadata{
		ID:       result.ID,
		Kind:     model.KindAlbum,
		Title:    result.Title,
		Owner:    result.Artist.Name,
		CoverURL: result.CoverBig,
		Tracks:   toTrackMetadata(result.Tracks.Data, result.Title, result.CoverBig),
	}, nil
}

// GetPlaylist fetches playlist metadata including its ordered track list.
func (c *Client) GetPlaylist(ctx context.Context, id string) (*model.CollectionMetadata, error) {
	logger.Debug("fetching playlist metadata", logger.String("playlistId", id))

	var result struct {
		ID      int64  `json:"id"`
		Title   string `json:"title"`
		Creator struct {
			Name string `json:"name"`
		} `json:"creator"`
		PictureBig string `json:"picture_big"`
		Tracks     struct {
			Data []trackListItem `json:"data"`
		} `json:"tracks"`
	}
	if err := c.getJSON(ctx, "/playlist/"+id, &result); err != nil {
		return nil, fmt.Errorf("getting playlist %s: %w", id, err)
	}
	if result.ID == 0 {
		return nil, fmt.Errorf("getting playlist %s: empty response", id)
	}

	return &model.CollectionMetadata{
		ID:       result.ID,
		Kind:     model.KindPlaylist,
		Title:    result.Title,
		Owner:    result.Creator.Name,
		CoverURL: result.PictureBig,
		Tracks:   toTrackMetadata(result.Tracks.Data, "", result.PictureBig),
	}, nil
}
