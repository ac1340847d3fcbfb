package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Jorge5452/Melodify-Deezer/core/fetch"
	"github.com/Jorge5452/Melodify-Deezer/model"
	"github.com/Jorge5452/Melodify-Deezer/vault"
)

// fakeFetcher writes one real staging file per call so the pipeline's
// delete-after-publish contract can be observed.
type fakeFetcher struct {
	dir     string
	calls   int
	fetched []string        // descriptor IDs in call order
	failIDs map[string]bool // descriptor IDs that fail fetch
}

func (f *fakeFetcher) Fetch(ctx context.Context, desc model.ContentDescriptor, bitrate int) ([]fetch.AudioFile, error) {
	f.calls++
	f.fetched = append(f.fetched, desc.ID)
	if f.failIDs[desc.ID] {
		return nil, fmt.Errorf("%w: simulated downloader failure", model.ErrFetchFailed)
	}
	name := "track-" + desc.ID + ".mp3"
	path := filepath.Join(f.dir, name)
	if err := os.WriteFile(path, []byte("audio"), 0644); err != nil {
		return nil, err
	}
	return []fetch.AudioFile{{Path: path, Name: name}}, nil
}

type fakeChannel struct {
	publishes   []string // published file names
	relays      []string // relayed refs
	failPublish bool
}

func (c *fakeChannel) Publish(ctx context.Context, file fetch.AudioFile, meta *model.TrackMetadata) (string, error) {
	if c.failPublish {
		return "", errors.New("simulated channel failure")
	}
	c.publishes = append(c.publishes, file.Name)
	if meta.ID != 0 {
		return fmt.Sprintf("ref-%d", meta.ID), nil
	}
	return "ref-" + file.Name, nil
}

func (c *fakeChannel) Relay(ctx context.Context, ref string, chatID int64) error {
	c.relays = append(c.relays, ref)
	return nil
}

type fakeMessenger struct {
	progress []string
	images   []string
}

func (m *fakeMessenger) SendProgress(ctx context.Context, chatID int64, text string) {
	m.progress = append(m.progress, text)
}

func (m *fakeMessenger) SendImage(ctx context.Context, chatID int64, imageURL, caption string) {
	m.images = append(m.images, imageURL)
}

type fakeCatalog struct {
	track      *model.TrackMetadata
	collection *model.CollectionMetadata
	trackErr   error
	trackCalls int
}

func (c *fakeCatalog) GetTrack(ctx context.Context, id string) (*model.TrackMetadata, error) {
	c.trackCalls++
	if c.trackErr != nil {
		return nil, c.trackErr
	}
	return c.track, nil
}

func (c *fakeCatalog) GetAlbum(ctx context.Context, id string) (*model.CollectionMetadata, error) {
	return c.collection, nil
}

func (c *fakeCatalog) GetPlaylist(ctx context.Context, id string) (*model.CollectionMetadata, error) {
	return c.collection, nil
}

// fakeArchiver records archive calls and whether the staged file was still
// on disk when the audio reached it.
type fakeArchiver struct {
	audio       []string // "fingerprint:path"
	audioOnDisk []bool
	covers      []int64
	failAudio   bool
}

func (a *fakeArchiver) ArchiveAudio(ctx context.Context, localPath, fingerprint string) error {
	_, statErr := os.Stat(localPath)
	a.audioOnDisk = append(a.audioOnDisk, statErr == nil)
	a.audio = append(a.audio, fingerprint+":"+localPath)
	if a.failAudio {
		return errors.New("simulated archive failure")
	}
	return nil
}

func (a *fakeArchiver) ArchiveCover(ctx context.Context, coverURL string, trackID int64) error {
	a.covers = append(a.covers, trackID)
	return nil
}

type env struct {
	pipeline  *Pipeline
	vault     *vault.Store
	fetcher   *fakeFetcher
	channel   *fakeChannel
	messenger *fakeMessenger
	catalog   *fakeCatalog
}

func newEnv(t *testing.T) *env {
	t.Helper()
	dir := t.TempDir()
	store := vault.New(filepath.Join(dir, "vault.json"), filepath.Join(dir, "vault.backup.json"))
	fetcher := &fakeFetcher{dir: dir, failIDs: map[string]bool{}}
	channel := &fakeChannel{}
	messenger := &fakeMessenger{}
	catalog := &fakeCatalog{
		track: &model.TrackMetadata{
			ID: 3135556, Title: "Harder, Better, Faster, Stronger",
			Artist: "Daft Punk", Duration: 224,
		},
	}
	p := New(store, fetcher, catalog, channel, messenger).
		WithPacing(Pacing{BatchSize: 5, ItemPause: 0, BatchPause: 0})
	return &env{pipeline: p, vault: store, fetcher: fetcher, channel: channel, messenger: messenger, catalog: catalog}
}

func trackRequest() model.DownloadRequest {
	return model.DownloadRequest{
		ChatID:     42,
		Reference:  "https://www.deezer.com/track/3135556",
		Descriptor: model.ContentDescriptor{Kind: model.KindTrack, ID: "3135556"},
		Bitrate:    3,
	}
}

func TestTrackRequestFetchPublishCache(t *testing.T) {
	e := newEnv(t)

	if err := e.pipeline.HandleRequest(context.Background(), trackRequest()); err != nil {
		t.Fatalf("HandleRequest failed: %v", err)
	}

	if e.fetcher.calls != 1 {
		t.Errorf("expected 1 fetch, got %d", e.fetcher.calls)
	}
	if len(e.channel.publishes) != 1 {
		t.Fatalf("expected 1 publish, got %d", len(e.channel.publishes))
	}

	v, ok := e.vault.Get("3135556_3")
	if !ok {
		t.Fatal("vault entry missing after publish")
	}
	if v.Single != "ref-3135556" {
		t.Errorf("vault ref: got %q", v.Single)
	}
	if len(e.channel.relays) != 1 || e.channel.relays[0] != "ref-3135556" {
		t.Errorf("artifact not relayed to requester: %v", e.channel.relays)
	}

	// The staged file must be gone after the publish attempt.
	if _, err := os.Stat(filepath.Join(e.fetcher.dir, "track-3135556.mp3")); !errors.Is(err, os.ErrNotExist) {
		t.Error("local audio file not deleted after publish")
	}
}

func TestTrackRequestIdempotent(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	if err := e.pipeline.HandleRequest(ctx, trackRequest()); err != nil {
		t.Fatal(err)
	}
	if err := e.pipeline.HandleRequest(ctx, trackRequest()); err != nil {
		t.Fatal(err)
	}

	if e.fetcher.calls != 1 {
		t.Errorf("second identical request must not fetch again: %d fetches", e.fetcher.calls)
	}
	if len(e.channel.publishes) != 1 {
		t.Errorf("second identical request must not publish again: %d publishes", len(e.channel.publishes))
	}
	// Both requests delivered the same reference.
	if len(e.channel.relays) != 2 || e.channel.relays[0] != e.channel.relays[1] {
		t.Errorf("expected the same ref relayed twice, got %v", e.channel.relays)
	}
}

func TestTrackFetchFailure(t *testing.T) {
	e := newEnv(t)
	e.fetcher.failIDs["3135556"] = true

	err := e.pipeline.HandleRequest(context.Background(), trackRequest())
	if !errors.Is(err, model.ErrFetchFailed) {
		t.Fatalf("expected ErrFetchFailed, got %v", err)
	}
	if _, ok := e.vault.Get("3135556_3"); ok {
		t.Error("vault entry written despite fetch failure")
	}
}

func TestPublishFailureDeletesFileAndSkipsCache(t *testing.T) {
	e := newEnv(t)
	e.channel.failPublish = true

	err := e.pipeline.HandleRequest(context.Background(), trackRequest())
	if !errors.Is(err, model.ErrPublishFailed) {
		t.Fatalf("expected ErrPublishFailed, got %v", err)
	}
	if _, ok := e.vault.Get("3135556_3"); ok {
		t.Error("vault entry written despite publish failure")
	}
	// The local file is deleted even when the publish fails.
	if _, err := os.Stat(filepath.Join(e.fetcher.dir, "track-3135556.mp3")); !errors.Is(err, os.ErrNotExist) {
		t.Error("local audio file survived a failed publish")
	}
}

func TestEnrichmentFallsBackToFilename(t *testing.T) {
	e := newEnv(t)
	e.catalog.trackErr = errors.New("catalog down")

	if err := e.pipeline.HandleRequest(context.Background(), trackRequest()); err != nil {
		t.Fatalf("enrichment failure must not abort publish: %v", err)
	}
	if len(e.channel.publishes) != 1 {
		t.Fatalf("expected 1 publish, got %d", len(e.channel.publishes))
	}
}

func TestMetadataFromFilename(t *testing.T) {
	cases := []struct {
		name          string
		file          string
		artist, title string
	}{
		{"artist dash title", "Daft Punk - One More Time.mp3", "Daft Punk", "One More Time"},
		{"no separator", "One More Time.mp3", "", "One More Time"},
		{"multiple dashes", "Daft Punk - Harder - Better.flac", "Daft Punk", "Harder - Better"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			meta := metadataFromFilename(tc.file, 0)
			if meta.Artist != tc.artist {
				t.Errorf("artist: got %q, want %q", meta.Artist, tc.artist)
			}
			if meta.Title != tc.title {
				t.Errorf("title: got %q, want %q", meta.Title, tc.title)
			}
		})
	}
}

func playlistRequest() model.DownloadRequest {
	return model.DownloadRequest{
		ChatID:     42,
		Reference:  "https://www.deezer.com/playlist/908622995",
		Descriptor: model.ContentDescriptor{Kind: model.KindPlaylist, ID: "908622995"},
		Bitrate:    3,
	}
}

func sevenTrackPlaylist() *model.CollectionMetadata {
	coll := &model.CollectionMetadata{
		ID: 908622995, Kind: model.KindPlaylist, Title: "Electro Hits",
		Owner: "someone", CoverURL: "https://cdn.example/pl.jpg",
	}
	for i := int64(1); i <= 7; i++ {
		coll.Tracks = append(coll.Tracks, model.TrackMetadata{
			ID: 100 + i, Title: fmt.Sprintf("Song %d", i), Artist: "X", Duration: 100,
		})
	}
	return coll
}

func TestCollectionPartialFailure(t *testing.T) {
	e := newEnv(t)
	e.catalog.collection = sevenTrackPlaylist()
	e.fetcher.failIDs["103"] = true // track 3 fails fetch

	if err := e.pipeline.HandleRequest(context.Background(), playlistRequest()); err != nil {
		t.Fatalf("per-item failure must not abort the collection: %v", err)
	}

	v, ok := e.vault.Get("playlist_908622995")
	if !ok {
		t.Fatal("aggregate vault entry missing")
	}
	if !v.IsList {
		t.Fatal("aggregate entry must be a list")
	}
	want := []string{"ref-101", "ref-102", "ref-104", "ref-105", "ref-106", "ref-107"}
	if len(v.List) != len(want) {
		t.Fatalf("expected %d refs, got %d: %v", len(want), len(v.List), v.List)
	}
	for i, ref := range want {
		if v.List[i] != ref {
			t.Errorf("ref %d: got %q, want %q", i, v.List[i], ref)
		}
	}

	// The requester gets a per-item warning and a 6/7 summary.
	var sawWarning, sawSummary bool
	for _, msg := range e.messenger.progress {
		if strings.Contains(msg, "Song 3") {
			sawWarning = true
		}
		if strings.Contains(msg, "6/7") {
			sawSummary = true
		}
	}
	if !sawWarning {
		t.Errorf("no per-item warning for the failed track: %v", e.messenger.progress)
	}
	if !sawSummary {
		t.Errorf("no 6/7 completion summary: %v", e.messenger.progress)
	}

	// Tracks also got their individual sub-entries.
	if _, ok := e.vault.Get("101_3"); !ok {
		t.Error("track sub-entry missing")
	}
	if _, ok := e.vault.Get("103_3"); ok {
		t.Error("failed track must not have a sub-entry")
	}
}

func TestCollectionAllFailSkipsAggregateWrite(t *testing.T) {
	e := newEnv(t)
	e.catalog.collection = sevenTrackPlaylist()
	for i := int64(1); i <= 7; i++ {
		e.fetcher.failIDs[fmt.Sprintf("%d", 100+i)] = true
	}

	if err := e.pipeline.HandleRequest(context.Background(), playlistRequest()); err != nil {
		t.Fatalf("all-fail collection must not error at request level: %v", err)
	}
	if _, ok := e.vault.Get("playlist_908622995"); ok {
		t.Error("aggregate entry written although no track succeeded")
	}
}

func TestCollectionTrackCacheHitSkipsFetch(t *testing.T) {
	e := newEnv(t)
	e.catalog.collection = sevenTrackPlaylist()

	// Track 2 was published earlier by a single-track request.
	if err := e.vault.Put("102_3", vault.Ref("ref-cached-102")); err != nil {
		t.Fatal(err)
	}

	if err := e.pipeline.HandleRequest(context.Background(), playlistRequest()); err != nil {
		t.Fatal(err)
	}

	for _, id := range e.fetcher.fetched {
		if id == "102" {
			t.Error("cached collection track was fetched anyway")
		}
	}
	if e.fetcher.calls != 6 {
		t.Errorf("expected 6 fetches, got %d", e.fetcher.calls)
	}

	v, _ := e.vault.Get("playlist_908622995")
	if v.List[1] != "ref-cached-102" {
		t.Errorf("aggregate must reuse the cached ref in position: %v", v.List)
	}

	var sawSummary bool
	for _, msg := range e.messenger.progress {
		if strings.Contains(msg, "7/7") {
			sawSummary = true
		}
	}
	if !sawSummary {
		t.Errorf("cache hit must count as success: %v", e.messenger.progress)
	}
}

func TestCollectionAggregateCacheHit(t *testing.T) {
	e := newEnv(t)
	refs := []string{"ref-a", "ref-b", "ref-c"}
	if err := e.vault.Put("playlist_908622995", vault.Refs(refs)); err != nil {
		t.Fatal(err)
	}

	if err := e.pipeline.HandleRequest(context.Background(), playlistRequest()); err != nil {
		t.Fatal(err)
	}
	if e.fetcher.calls != 0 {
		t.Errorf("aggregate cache hit must not fetch: %d calls", e.fetcher.calls)
	}
	if len(e.channel.relays) != 3 {
		t.Errorf("expected 3 relays, got %d", len(e.channel.relays))
	}
}

func TestCollectionBatchProgress(t *testing.T) {
	e := newEnv(t)
	e.catalog.collection = sevenTrackPlaylist()

	if err := e.pipeline.HandleRequest(context.Background(), playlistRequest()); err != nil {
		t.Fatal(err)
	}

	// Seven tracks with batch size five means two batches.
	var batches []string
	for _, msg := range e.messenger.progress {
		if strings.Contains(msg, "Batch") {
			batches = append(batches, msg)
		}
	}
	if len(batches) != 2 {
		t.Fatalf("expected 2 batch announcements, got %v", batches)
	}
	if !strings.Contains(batches[0], "1/2") || !strings.Contains(batches[1], "2/2") {
		t.Errorf("unexpected batch numbering: %v", batches)
	}

	if len(e.messenger.images) != 1 {
		t.Errorf("expected the collection cover to be sent once, got %d", len(e.messenger.images))
	}
}

func TestUnknownKindRejected(t *testing.T) {
	e := newEnv(t)
	req := model.DownloadRequest{
		ChatID:     42,
		Descriptor: model.ContentDescriptor{Kind: "podcast", ID: "1"},
		Bitrate:    3,
	}
	err := e.pipeline.HandleRequest(context.Background(), req)
	if !errors.Is(err, model.ErrInvalidReference) {
		t.Fatalf("expected ErrInvalidReference, got %v", err)
	}
}

func TestArchiverReceivesAudioBeforeDeletion(t *testing.T) {
	e := newEnv(t)
	archiver := &fakeArchiver{}
	e.pipeline.WithArchiver(archiver)

	if err := e.pipeline.HandleRequest(context.Background(), trackRequest()); err != nil {
		t.Fatalf("HandleRequest failed: %v", err)
	}

	if len(archiver.audio) != 1 {
		t.Fatalf("expected 1 audio archive call, got %d", len(archiver.audio))
	}
	if !strings.HasPrefix(archiver.audio[0], "3135556_3:") {
		t.Errorf("archived under wrong fingerprint: %s", archiver.audio[0])
	}
	if !archiver.audioOnDisk[0] {
		t.Error("staged file was already deleted when the archiver saw it")
	}
}

func TestArchiveFailureDoesNotFailRequest(t *testing.T) {
	e := newEnv(t)
	archiver := &fakeArchiver{failAudio: true}
	e.pipeline.WithArchiver(archiver)

	if err := e.pipeline.HandleRequest(context.Background(), trackRequest()); err != nil {
		t.Fatalf("HandleRequest failed: %v", err)
	}

	if len(e.channel.relays) != 1 {
		t.Errorf("expected the artifact to reach the requester, got %d relays", len(e.channel.relays))
	}
	if _, ok := e.vault.Get("3135556_3"); !ok {
		t.Error("vault entry missing after archive failure")
	}

	// The staged file must still be cleaned up.
	entries, err := os.ReadDir(e.fetcher.dir)
	if err != nil {
		t.Fatalf("reading staging dir: %v", err)
	}
	for _, entry := range entries {
		if strings.HasSuffix(entry.Name(), ".mp3") {
			t.Errorf("staged file %s left behind", entry.Name())
		}
	}
}
