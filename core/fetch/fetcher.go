// Package fetch orchestrates audio materialization. The external downloader
// is a black box behind the Materializer interface; this package owns the
// temporary working directories, the move into the shared staging area and
// the cleanup contract.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Jorge5452/Melodify-Deezer/logger"
	"github.com/Jorge5452/Melodify-Deezer/model"
)

// AudioFile is one fetched audio payload in the shared staging area. It is
// transient: the publish pipeline deletes it once a publish has been
// attempted.
type AudioFile struct {
	Path string
	Name string
}

// Materializer is the external downloader collaborator: it writes one or
// many audio files for a reference into destDir. Implementations may create
// nested directories inside destDir.
type Materializer interface {
	Materialize(ctx context.Context, reference string, bitrate int, destDir string) error
}

// audioExtensions are the payload types the orchestrator recognizes when
// collecting the materializer's output.
var audioExtensions = map[string]bool{
	".mp3":  true,
	".flac": true,
	".m4a":  true,
	".ogg":  true,
	".opus": true,
	".wav":  true,
}

// Orchestrator fetches audio through a Materializer with a timeout and a
// small bounded retry, isolating every invocation in its own temp directory.
type Orchestrator struct {
	mat         Materializer
	downloadDir string
	timeout     time.Duration
	retries     int
	retryPause  time.Duration
}

// NewOrchestrator creates an orchestrator staging files under downloadDir.
func NewOrchestrator(mat Materializer, downloadDir string, timeout time.Duration, retries int) *Orchestrator {
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	if retries < 0 {
		retries = 0
	}
	return &Orchestrator{
		mat:         mat,
		downloadDir: downloadDir,
		timeout:     timeout,
		retries:     retries,
		retryPause:  5 * time.Second,
	}
}

// SetRetryPause overrides the pause between attempts, mainly for tests.
func (o *Orchestrator) SetRetryPause(d time.Duration) {
	o.retryPause = d
}

// Fetch materializes the descriptor's audio and returns the staged files in
// name order. The per-invocation temp directory is removed on every exit
// path, including timeout and cancellation.
func (o *Orchestrator) Fetch(ctx context.Context, desc model.ContentDescriptor, bitrate int) ([]AudioFile, error) {
	if err := os.MkdirAll(o.downloadDir, 0755); err != nil {
		return nil, fmt.Errorf("creating download directory: %w", err)
	}

	// Unique working directory per invocation so concurrent requests never
	// see each other's files.
	tempDir := filepath.Join(o.downloadDir, "tmp-"+uuid.NewString())
	if err := os.MkdirAll(tempDir, 0755); err != nil {
		return nil, fmt.Errorf("creating temp directory: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(tempDir); err != nil {
			logger.Warn("failed to remove temp directory",
				logger.String("dir", tempDir),
				logger.ErrorField(err))
		}
	}()

	if err := o.materializeWithRetry(ctx, desc.URL(), bitrate, tempDir); err != nil {
		return nil, err
	}

	produced, err := collectAudioFiles(tempDir)
	if err != nil {
		return nil, fmt.Errorf("collecting fetched files: %w", err)
	}
	if len(produced) == 0 {
		return nil, fmt.Errorf("%w: %s", model.ErrNoArtifactProduced, desc.URL())
	}

	staged := make([]AudioFile, 0, len(produced))
	for _, src := range produced {
		dst, err := stageFile(src, o.downloadDir)
		if err != nil {
			return nil, fmt.Errorf("staging %s: %w", filepath.Base(src), err)
		}
		staged = append(staged, AudioFile{Path: dst, Name: filepath.Base(dst)})
	}

	logger.Info("fetch completed",
		logger.String("reference", desc.URL()),
		logger.Int("files", len(staged)))
	return staged, nil
}

// materializeWithRetry runs the materializer under the fetch timeout,
// retrying once more after a pause when the failure was not a caller
// cancellation.
func (o *Orchestrator) materializeWithRetry(ctx context.Context, reference string, bitrate int, destDir string) error {
	var lastErr error
	for attempt := 0; attempt <= o.retries; attempt++ {
		if attempt > 0 {
			logger.Warn("retrying fetch",
				logger.String("reference", reference),
				logger.Int("attempt", attempt+1),
				logger.ErrorField(lastErr))
			select {
			case <-time.After(o.retryPause):
			case <-ctx.Done():
				return fmt.Errorf("%w: %v", model.ErrFetchFailed, ctx.Err())
			}
		}

		attemptCtx, cancel := context.WithTimeout(ctx, o.timeout)
		err := o.mat.Materialize(attemptCtx, reference, bitrate, destDir)
		cancel()
		if err == nil {
			return nil
		}
		lastErr = err

		// The caller went away; retrying would be wasted work.
		if ctx.Err() != nil {
			break
		}
	}
	return fmt.Errorf("%w: %v", model.ErrFetchFailed, lastErr)
}

// collectAudioFiles walks dir recursively and returns the audio payloads in
// sorted path order.
func collectAudioFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		if audioExtensions[strings.ToLower(filepath.Ext(path))] {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

// stageFile moves src into destDir, resolving name collisions by appending a
// numeric suffix before the extension rather than overwriting.
func stageFile(src, destDir string) (string, error) {
	name := filepath.Base(src)
	target := filepath.Join(destDir, name)

	if _, err := os.Stat(target); err == nil {
		ext := filepath.Ext(name)
		base := strings.TrimSuffix(name, ext)
		for i := 1; ; i++ {
			candidate := filepath.Join(destDir, fmt.Sprintf("%s_%d%s", base, i, ext))
			if _, err := os.Stat(candidate); errors.Is(err, os.ErrNotExist) {
				target = candidate
				break
			}
		}
	}

	if err := os.Rename(src, target); err != nil {
		return "", err
	}
	return target, nil
}
