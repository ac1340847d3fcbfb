package pipeline

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/Jorge5452/Melodify-Deezer/logger"
	"github.com/Jorge5452/Melodify-Deezer/model"
	"github.com/Jorge5452/Melodify-Deezer/vault"
)

// processCollection serves an album or playlist request. The aggregate vault
// entry is written only after every constituent track has been attempted,
// and only when at least one of them succeeded.
func (p *Pipeline) processCollection(ctx context.Context, req model.DownloadRequest) error {
	fingerprint := req.Fingerprint()

	if v, ok := p.vault.Get(fingerprint); ok {
		logger.Info("vault hit for collection",
			logger.String("fingerprint", fingerprint),
			logger.Int("tracks", len(v.AsList())))
		delivered := p.relayAll(ctx, v.AsList(), req.ChatID)
		p.messenger.SendProgress(ctx, req.ChatID,
			fmt.Sprintf("✅ %d/%d tracks delivered from cache", delivered, len(v.AsList())))
		return nil
	}

	unlock := p.vault.Lock(fingerprint)
	defer unlock()

	if v, ok := p.vault.Get(fingerprint); ok {
		delivered := p.relayAll(ctx, v.AsList(), req.ChatID)
		p.messenger.SendProgress(ctx, req.ChatID,
			fmt.Sprintf("✅ %d/%d tracks delivered from cache", delivered, len(v.AsList())))
		return nil
	}

	meta, err := p.collectionMetadata(ctx, req.Descriptor)
	if err != nil {
		return fmt.Errorf("resolving %s %s: %w", req.Descriptor.Kind, req.Descriptor.ID, err)
	}
	if len(meta.Tracks) == 0 {
		p.messenger.SendProgress(ctx, req.ChatID, "⚠️ This collection has no tracks")
		return nil
	}

	if meta.CoverURL != "" {
		caption := fmt.Sprintf("%s — %s (%d tracks)", meta.Title, meta.Owner, len(meta.Tracks))
		p.messenger.SendImage(ctx, req.ChatID, meta.CoverURL, caption)
	}
	p.messenger.SendProgress(ctx, req.ChatID,
		fmt.Sprintf("⬇️ Downloading %s: %d tracks", meta.Title, len(meta.Tracks)))

	refs, succeeded, err := p.runBatches(ctx, req, meta.Tracks)
	if err != nil {
		// Canceled before every track was attempted; the aggregate entry
		// must not pretend the collection is complete.
		return err
	}

	total := len(meta.Tracks)
	if succeeded == 0 {
		p.messenger.SendProgress(ctx, req.ChatID,
			fmt.Sprintf("⚠️ Could not deliver any track from %s", meta.Title))
		return nil
	}

	if err := p.vault.Put(fingerprint, vault.Refs(refs)); err != nil {
		logger.Error("aggregate vault write failed",
			logger.String("fingerprint", fingerprint),
			logger.ErrorField(err))
	}
	p.messenger.SendProgress(ctx, req.ChatID,
		fmt.Sprintf("✅ %d/%d tracks delivered", succeeded, total))
	return nil
}

func (p *Pipeline) collectionMetadata(ctx context.Context, desc model.ContentDescriptor) (*model.CollectionMetadata, error) {
	switch desc.Kind {
	case model.KindAlbum:
		return p.catalog.GetAlbum(ctx, desc.ID)
	case model.KindPlaylist:
		return p.catalog.GetPlaylist(ctx, desc.ID)
	default:
		return nil, fmt.Errorf("%w: %q is not a collection", model.ErrInvalidReference, desc.Kind)
	}
}

// runBatches publishes the ordered track list in fixed-size groups with
// pacing pauses. Per-item failures are reported and skipped; the returned
// reference list preserves catalog order for the tracks that succeeded. A
// non-nil error means the context was canceled before all tracks were
// attempted.
func (p *Pipeline) runBatches(ctx context.Context, req model.DownloadRequest, tracks []model.TrackMetadata) ([]string, int, error) {
	batchSize := p.pacing.BatchSize
	batchCount := (len(tracks) + batchSize - 1) / batchSize

	var refs []string
	succeeded := 0

	for bi := 0; bi < batchCount; bi++ {
		if bi > 0 {
			if err := sleep(ctx, p.pacing.BatchPause); err != nil {
				return refs, succeeded, err
			}
		}
		if batchCount > 1 {
			p.messenger.SendProgress(ctx, req.ChatID,
				fmt.Sprintf("📦 Batch %d/%d", bi+1, batchCount))
		}

		start := bi * batchSize
		end := start + batchSize
		if end > len(tracks) {
			end = len(tracks)
		}

		for ti, track := range tracks[start:end] {
			if ti > 0 {
				if err := sleep(ctx, p.pacing.ItemPause); err != nil {
					return refs, succeeded, err
				}
			}

			ref, err := p.processCollectionItem(ctx, req, track)
			if err != nil {
				logger.Error("collection item failed",
					logger.Int64("trackId", track.ID),
					logger.String("title", track.Title),
					logger.ErrorField(err))
				p.messenger.SendProgress(ctx, req.ChatID,
					fmt.Sprintf("⚠️ Could not deliver: %s", track.Title))
				continue
			}
			refs = append(refs, ref)
			succeeded++
		}
	}
	return refs, succeeded, nil
}

// processCollectionItem delivers one collection track, serving it from the
// track-level cache when possible. A hit counts as a success without any
// fetch or publish.
func (p *Pipeline) processCollectionItem(ctx context.Context, req model.DownloadRequest, track model.TrackMetadata) (string, error) {
	trackFingerprint := fmt.Sprintf("%d_%d", track.ID, req.Bitrate)

	if v, ok := p.vault.Get(trackFingerprint); ok {
		ref := v.AsList()[0]
		if err := p.channel.Relay(ctx, ref, req.ChatID); err != nil {
			return "", fmt.Errorf("relaying cached track %d: %w", track.ID, err)
		}
		logger.Info("collection item served from cache",
			logger.String("fingerprint", trackFingerprint))
		return ref, nil
	}

	unlock := p.vault.Lock(trackFingerprint)
	defer unlock()

	if v, ok := p.vault.Get(trackFingerprint); ok {
		ref := v.AsList()[0]
		if err := p.channel.Relay(ctx, ref, req.ChatID); err != nil {
			return "", fmt.Errorf("relaying cached track %d: %w", track.ID, err)
		}
		return ref, nil
	}

	desc := model.ContentDescriptor{Kind: model.KindTrack, ID: strconv.FormatInt(track.ID, 10)}
	files, err := p.fetcher.Fetch(ctx, desc, req.Bitrate)
	if err != nil {
		return "", err
	}

	// A single-track fetch should yield one payload; anything extra is
	// removed so nothing lingers in the staging area.
	for _, extra := range files[1:] {
		if err := os.Remove(extra.Path); err != nil && !os.IsNotExist(err) {
			logger.Warn("failed to delete extra fetched file",
				logger.String("path", extra.Path),
				logger.ErrorField(err))
		}
	}

	// The collection listing already carries display metadata; no second
	// catalog lookup per track.
	meta := track
	ref, err := p.publishOne(ctx, req.ChatID, files[0], &meta, trackFingerprint)
	if err != nil {
		return "", err
	}

	// Track-level sub-entry: independently valid for future single-track
	// requests.
	if err := p.vault.Put(trackFingerprint, vault.Ref(ref)); err != nil {
		logger.Error("track sub-entry write failed",
			logger.String("fingerprint", trackFingerprint),
			logger.ErrorField(err))
	}
	return ref, nil
}
