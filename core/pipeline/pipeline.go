// Package pipeline implements the publish & cache core: vault lookups, fetch
// orchestration, durable publishing and the batch-paced collection flow. All
// external collaborators enter through the interfaces below.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/Jorge5452/Melodify-Deezer/core/fetch"
	"github.com/Jorge5452/Melodify-Deezer/logger"
	"github.com/Jorge5452/Melodify-Deezer/model"
	"github.com/Jorge5452/Melodify-Deezer/vault"
)

// Channel is the durable broadcast channel the vault points into. Publish
// uploads a local payload and returns a stable artifact reference; Relay
// re-delivers an already-published artifact without re-uploading.
type Channel interface {
	Publish(ctx context.Context, file fetch.AudioFile, meta *model.TrackMetadata) (string, error)
	Relay(ctx context.Context, ref string, chatID int64) error
}

// Messenger is the requester-facing transport. All sends are fire-and-forget
// from the core's perspective; implementations log their own failures.
type Messenger interface {
	SendProgress(ctx context.Context, chatID int64, text string)
	SendImage(ctx context.Context, chatID int64, imageURL, caption string)
}

// Catalog provides display metadata for tracks and collections.
type Catalog interface {
	GetTrack(ctx context.Context, id string) (*model.TrackMetadata, error)
	GetAlbum(ctx context.Context, id string) (*model.CollectionMetadata, error)
	GetPlaylist(ctx context.Context, id string) (*model.CollectionMetadata, error)
}

// Fetcher materializes audio payloads for a descriptor.
type Fetcher interface {
	Fetch(ctx context.Context, desc model.ContentDescriptor, bitrate int) ([]fetch.AudioFile, error)
}

// Archiver mirrors published payloads into object storage. Optional and
/// best-effort: errors never affect the user-visible outcome.
type Archiver interface {
	ArchiveAudio(ctx context.Context, localPath, fingerprint string) error
	ArchiveCover(ctx context.Context, coverURL string, trackID int64) error
}

// Recorder persists bookkeeping rows for published tracks. Optional and
// best-effort.
type Recorder interface {
	Record(ctx context.Context, track model.PublishedTrack) error
}

// Pacing controls how collection publishing is rate-limited.
type Pacing struct {
	BatchSize  int
	ItemPause  time.Duration
	BatchPause time.Duration
}

// DefaultPacing matches the courtesy limits the downstream transport and
// catalog tolerate.
var DefaultPacing = Pacing{
	BatchSize:  5,
	ItemPause:  1500 * time.Millisecond,
	BatchPause: 8 * time.Second,
}

// Pipeline wires the vault, the fetcher and the publish collaborators into
// the request-resolution core.
type Pipeline struct {
	vault     *vault.Store
	fetcher   Fetcher
	catalog   Catalog
	channel   Channel
	messenger Messenger
	archiver  Archiver // may be nil
	recorder  Recorder // may be nil
	pacing    Pacing

	processors map[model.ContentKind]func(ctx context.Context, req model.DownloadRequest) error
}

// New creates a pipeline. Archiver and recorder may be nil.
func New(store *vault.Store, fetcher Fetcher, catalog Catalog, channel Channel, messenger Messenger) *Pipeline {
	p := &Pipeline{
		vault:     store,
		fetcher:   fetcher,
		catalog:   catalog,
		channel:   channel,
		messenger: messenger,
		pacing:    DefaultPacing,
	}
	// One strategy per content kind; adding a kind without a processor is a
	// programming error caught by HandleRequest.
	p.processors = map[model.ContentKind]func(ctx context.Context, req model.DownloadRequest) error{
		model.KindTrack:    p.processTrack,
		model.KindAlbum:    p.processCollection,
		model.KindPlaylist: p.processCollection,
	}
	return p
}

// WithArchiver enables the object-storage archive.
func (p *Pipeline) WithArchiver(a Archiver) *Pipeline {
	p.archiver = a
	return p
}

// WithRecorder enables published-track persistence.
func (p *Pipeline) WithRecorder(r Recorder) *Pipeline {
	p.recorder = r
	return p
}

// WithPacing overrides the batch pacing.
func (p *Pipeline) WithPacing(pacing Pacing) *Pipeline {
	if pacing.BatchSize > 0 {
		p.pacing = pacing
	}
	return p
}

// HandleRequest runs one download request end to end. It returns an error
// only for request-level failures; per-item failures inside collections are
// reported to the requester and swallowed.
func (p *Pipeline) HandleRequest(ctx context.Context, req model.DownloadRequest) error {
	proc, ok := p.processors[req.Descriptor.Kind]
	if !ok {
		return fmt.Errorf("%w: unknown kind %q", model.ErrInvalidReference, req.Descriptor.Kind)
	}

	logger.Info("handling download request",
		logger.String("kind", string(req.Descriptor.Kind)),
		logger.String("id", req.Descriptor.ID),
		logger.String("fingerprint", req.Fingerprint()),
		logger.Int64("chatId", req.ChatID))

	return proc(ctx, req)
}

// relayAll re-delivers cached references in order. Returns how many relays
// succeeded.
func (p *Pipeline) relayAll(ctx context.Context, refs []string, chatID int64) int {
	delivered := 0
	for _, ref := range refs {
		if err := p.channel.Relay(ctx, ref, chatID); err != nil {
			logger.Error("relay of cached artifact failed",
				logger.String("ref", ref),
				logger.Int64("chatId", chatID),
				logger.ErrorField(err))
			continue
		}
		delivered++
	}
	return delivered
}

// sleep pauses for d unless the context is canceled first.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
