package model

import "time"

// TrackMetadata is display metadata for a single catalog track, used to
// enrich published audio. All fields are best-effort.
type TrackMetadata struct {
	ID       int64  `json:"id"`
	Title    string `json:"title"`
	Artist   string `json:"artist"`
	Album    string `json:"album,omitempty"`
	Duration int    `json:"duration"` // seconds
	CoverURL string `json:"coverUrl,omitempty"`
}

// CollectionMetadata describes an album or playlist and its ordered tracks.
type CollectionMetadata struct {
	ID       int64           `json:"id"`
	Kind     ContentKind     `json:"kind"`
	Title    string          `json:"title"`
	Owner    string          `json:"owner,omitempty"` // artist or playlist creator
	CoverURL string          `json:"coverUrl,omitempty"`
	Tracks   []TrackMetadata `json:"tracks"`
}

// PublishedTrack records a track that has been published to the vault
// channel, persisted for bookkeeping when MySQL is configured.
type PublishedTrack struct {
	ID          int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	DeezerID    int64     `json:"deezerId" gorm:"index:idx_deezer_bitrate,unique"`
	Bitrate     int       `json:"bitrate" gorm:"index:idx_deezer_bitrate,unique"`
	Fingerprint string    `json:"fingerprint" gorm:"size:64;index"`
	ArtifactRef string    `json:"artifactRef" gorm:"size:255"`
	Title       string    `json:"title" gorm:"size:255"`
	Artist      string    `json:"artist" gorm:"size:255"`
	Duration    int       `json:"duration"`
	PublishedAt time.Time `json:"publishedAt" gorm:"autoCreateTime"`
}

// TableName sets the gorm table name.
func (PublishedTrack) TableName() string {
	return "published_tracks"
}
