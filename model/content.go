package model

import "fmt"

// ContentKind identifies what a Deezer reference points at.
type ContentKind string

const (
	KindTrack    ContentKind = "track"
	KindAlbum    ContentKind = "album"
	KindPlaylist ContentKind = "playlist"
)

// ContentDescriptor is an immutable (kind, id) pair parsed from an inbound
// reference. Two descriptors with the same fingerprint name the same cache
// slot regardless of how the original URL was spelled.
type ContentDescriptor struct {
	Kind ContentKind
	ID   string // numeric catalog identifier
}

// Fingerprint derives the vault key for this descriptor. Tracks are cached
// per bitrate; albums and playlists are cached per collection.
func (d ContentDescriptor) Fingerprint(bitrate int) string {
	if d.Kind == KindTrack {
		return fmt.Sprintf("%s_%d", d.ID, bitrate)
	}
	return fmt.Sprintf("%s_%s", d.Kind, d.ID)
}

// IsCollection reports whether the descriptor names an album or playlist.
func (d ContentDescriptor) IsCollection() bool {
	return d.Kind == KindAlbum || d.Kind == KindPlaylist
}

// TrackURL rebuilds a canonical track URL for a catalog track id, used when
// fetching individual tracks of a collection.
func TrackURL(id int64) string {
	return fmt.Sprintf("https://www.deezer.com/track/%d", id)
}

// URL rebuilds the canonical URL for the descriptor.
func (d ContentDescriptor) URL() string {
	return fmt.Sprintf("https://www.deezer.com/%s/%s", d.Kind, d.ID)
}
