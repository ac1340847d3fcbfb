package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/Jorge5452/Melodify-Deezer/core/fetch"
	"github.com/Jorge5452/Melodify-Deezer/logger"
	"github.com/Jorge5452/Melodify-Deezer/model"
	"github.com/Jorge5452/Melodify-Deezer/vault"
)

// processTrack serves a single-track request: vault hit relays the cached
// reference, a miss runs fetch → publish → cache under the fingerprint lock.
func (p *Pipeline) processTrack(ctx context.Context, req model.DownloadRequest) error {
	fingerprint := req.Fingerprint()

	if v, ok := p.vault.Get(fingerprint); ok {
		logger.Info("vault hit",
			logger.String("fingerprint", fingerprint))
		if p.relayAll(ctx, v.AsList(), req.ChatID) == 0 {
			return fmt.Errorf("relaying cached artifact for %s", fingerprint)
		}
		return nil
	}

	// Serialize concurrent requests for the same fingerprint; the loser of
	// the race finds the entry cached when it re-checks.
	unlock := p.vault.Lock(fingerprint)
	defer unlock()

	if v, ok := p.vault.Get(fingerprint); ok {
		logger.Info("vault hit after lock",
			logger.String("fingerprint", fingerprint))
		if p.relayAll(ctx, v.AsList(), req.ChatID) == 0 {
			return fmt.Errorf("relaying cached artifact for %s", fingerprint)
		}
		return nil
	}

	files, err := p.fetcher.Fetch(ctx, req.Descriptor, req.Bitrate)
	if err != nil {
		return fmt.Errorf("fetching %s: %w", req.Descriptor.URL(), err)
	}

	trackID, _ := strconv.ParseInt(req.Descriptor.ID, 10, 64)

	refs := make([]string, 0, len(files))
	for _, file := range files {
		meta := p.enrichTrack(ctx, trackID, file)
		ref, err := p.publishOne(ctx, req.ChatID, file, meta, fingerprint)
		if err != nil {
			return fmt.Errorf("publishing %s: %w", file.Name, err)
		}
		refs = append(refs, ref)
	}

	var value vault.Value
	if len(refs) == 1 {
		value = vault.Ref(refs[0])
	} else {
		value = vault.Refs(refs)
	}
	if err := p.vault.Put(fingerprint, value); err != nil {
		// The artifact already reached the requester; a failed cache write
		// only costs reuse.
		logger.Error("vault write failed",
			logger.String("fingerprint", fingerprint),
			logger.ErrorField(err))
	}
	return nil
}

// publishOne publishes a fetched payload to the durable channel, relays the
// resulting reference to the requester and deletes the local file once a
// publish has been attempted, success or not.
func (p *Pipeline) publishOne(ctx context.Context, chatID int64, file fetch.AudioFile, meta *model.TrackMetadata, fingerprint string) (string, error) {
	ref, pubErr := p.channel.Publish(ctx, file, meta)

	// Archive the payload while the staged file still exists; it is deleted
	// right below regardless of the publish outcome.
	if pubErr == nil && p.archiver != nil {
		if err := p.archiver.ArchiveAudio(ctx, file.Path, fingerprint); err != nil {
			logger.Warn("audio archive failed",
				logger.String("fingerprint", fingerprint),
				logger.String("path", file.Path),
				logger.ErrorField(err))
		}
	}

	if err := os.Remove(file.Path); err != nil && !os.IsNotExist(err) {
		logger.Warn("failed to delete local audio file",
			logger.String("path", file.Path),
			logger.ErrorField(err))
	}

	if pubErr != nil {
		return "", fmt.Errorf("%w: %v", model.ErrPublishFailed, pubErr)
	}

	logger.Info("artifact published",
		logger.String("fingerprint", fingerprint),
		logger.String("ref", ref),
		logger.String("title", meta.Title))

	if err := p.channel.Relay(ctx, ref, chatID); err != nil {
		logger.Error("relay to requester failed",
			logger.String("ref", ref),
			logger.Int64("chatId", chatID),
			logger.ErrorField(err))
	}

	p.archiveAndRecord(ctx, meta, fingerprint, ref)
	return ref, nil
}

// archiveAndRecord runs the optional best-effort side channels: cover
// archive and the bookkeeping row. The audio payload itself is archived in
// publishOne, while the staged file still exists.
func (p *Pipeline) archiveAndRecord(ctx context.Context, meta *model.TrackMetadata, fingerprint, ref string) {
	if p.archiver != nil && meta.CoverURL != "" && meta.ID != 0 {
		if err := p.archiver.ArchiveCover(ctx, meta.CoverURL, meta.ID); err != nil {
			logger.Warn("cover archive failed",
				logger.Int64("trackId", meta.ID),
				logger.ErrorField(err))
		}
	}

	if p.recorder != nil {
		bitrate := bitrateFromFingerprint(fingerprint)
		record := model.PublishedTrack{
			DeezerID:    meta.ID,
			Bitrate:     bitrate,
			Fingerprint: fingerprint,
			ArtifactRef: ref,
			Title:       meta.Title,
			Artist:      meta.Artist,
			Duration:    meta.Duration,
		}
		if err := p.recorder.Record(ctx, record); err != nil {
			logger.Warn("published-track record failed",
				logger.String("fingerprint", fingerprint),
				logger.ErrorField(err))
		}
	}
}

// enrichTrack builds display metadata for a payload: catalog lookup when a
// numeric track id is available, then "Artist - Title" parsed from the
// filename, then the bare filename. Never fails.
func (p *Pipeline) enrichTrack(ctx context.Context, trackID int64, file fetch.AudioFile) *model.TrackMetadata {
	if trackID > 0 {
		meta, err := p.catalog.GetTrack(ctx, strconv.FormatInt(trackID, 10))
		if err == nil {
			return meta
		}
		logger.Warn("metadata lookup failed, falling back to filename",
			logger.Int64("trackId", trackID),
			logger.ErrorField(err))
	}
	return metadataFromFilename(file.Name, trackID)
}

// metadataFromFilename parses "Artist - Title.ext" out of a file name,
// degrading to the bare name as title.
func metadataFromFilename(name string, trackID int64) *model.TrackMetadata {
	base := strings.TrimSuffix(name, filepath.Ext(name))
	meta := &model.TrackMetadata{ID: trackID, Title: base}
	if artist, title, found := strings.Cut(base, " - "); found && artist != "" && title != "" {
		meta.Artist = strings.TrimSpace(artist)
		meta.Title = strings.TrimSpace(title)
	}
	return meta
}

// bitrateFromFingerprint recovers the bitrate from a track fingerprint of
// the form "<id>_<bitrate>". Collection fingerprints yield 0.
func bitrateFromFingerprint(fingerprint string) int {
	idx := strings.LastIndex(fingerprint, "_")
	if idx < 0 {
		return 0
	}
	bitrate, err := strconv.Atoi(fingerprint[idx+1:])
	if err != nil {
		return 0
	}
	return bitrate
}
