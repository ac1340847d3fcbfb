package fetch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Jorge5452/Melodify-Deezer/model"
)

// fakeMaterializer writes the configured file names into destDir, failing
// for the first failCount calls.
type fakeMaterializer struct {
	files     []string
	failCount int
	calls     int
	lastDir   string
}

func (f *fakeMaterializer) Materialize(ctx context.Context, reference string, bitrate int, destDir string) error {
	f.calls++
	f.lastDir = destDir
	if f.calls <= f.failCount {
		return errors.New("simulated downloader failure")
	}
	for _, name := range f.files {
		path := filepath.Join(destDir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return err
		}
		if err := os.WriteFile(path, []byte("audio"), 0644); err != nil {
			return err
		}
	}
	return nil
}

var testDesc = model.ContentDescriptor{Kind: model.KindTrack, ID: "3135556"}

func newTestOrchestrator(t *testing.T, mat Materializer) (*Orchestrator, string) {
	t.Helper()
	dir := t.TempDir()
	o := NewOrchestrator(mat, dir, time.Minute, 1)
	o.SetRetryPause(time.Millisecond)
	return o, dir
}

func TestFetchSingleFile(t *testing.T) {
	mat := &fakeMaterializer{files: []string{"Daft Punk - One More Time.mp3"}}
	o, dir := newTestOrchestrator(t, mat)

	files, err := o.Fetch(context.Background(), testDesc, 3)
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if len(files) != 1 {
		t.Fatalf("expected 1 file, got %d", len(files))
	}
	if files[0].Name != "Daft Punk - One More Time.mp3" {
		t.Errorf("name: got %q", files[0].Name)
	}
	if filepath.Dir(files[0].Path) != dir {
		t.Errorf("file not staged into download dir: %s", files[0].Path)
	}
	if _, err := os.Stat(files[0].Path); err != nil {
		t.Errorf("staged file missing: %v", err)
	}
}

func TestFetchNormalizesNestedOutput(t *testing.T) {
	// The downloader may create artist/album subdirectories.
	mat := &fakeMaterializer{files: []string{
		filepath.Join("Daft Punk", "Discovery", "01 - One More Time.mp3"),
		filepath.Join("Daft Punk", "Discovery", "02 - Aerodynamic.mp3"),
		filepath.Join("Daft Punk", "Discovery", "cover.jpg"), // not audio
	}}
	o, _ := newTestOrchestrator(t, mat)

	files, err := o.Fetch(context.Background(), testDesc, 3)
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("expected 2 audio files, got %d", len(files))
	}
	if files[0].Name != "01 - One More Time.mp3" || files[1].Name != "02 - Aerodynamic.mp3" {
		t.Errorf("unexpected order: %q, %q", files[0].Name, files[1].Name)
	}
}

func TestFetchCollisionSuffix(t *testing.T) {
	mat := &fakeMaterializer{files: []string{"song.mp3"}}
	o, dir := newTestOrchestrator(t, mat)

	// Pre-existing file with the same name in the staging area.
	if err := os.WriteFile(filepath.Join(dir, "song.mp3"), []byte("old"), 0644); err != nil {
		t.Fatal(err)
	}

	files, err := o.Fetch(context.Background(), testDesc, 3)
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if files[0].Name != "song_1.mp3" {
		t.Errorf("expected suffixed name, got %q", files[0].Name)
	}

	// The original must be untouched.
	old, err := os.ReadFile(filepath.Join(dir, "song.mp3"))
	if err != nil || string(old) != "old" {
		t.Errorf("pre-existing file was clobbered: %q, %v", old, err)
	}
}

func TestFetchNoArtifactProduced(t *testing.T) {
	mat := &fakeMaterializer{files: nil} // completes without writing audio
	o, _ := newTestOrchestrator(t, mat)

	_, err := o.Fetch(context.Background(), testDesc, 3)
	if !errors.Is(err, model.ErrNoArtifactProduced) {
		t.Fatalf("expected ErrNoArtifactProduced, got %v", err)
	}
}

func TestFetchRetriesOnce(t *testing.T) {
	mat := &fakeMaterializer{files: []string{"song.mp3"}, failCount: 1}
	o, _ := newTestOrchestrator(t, mat)

	files, err := o.Fetch(context.Background(), testDesc, 3)
	if err != nil {
		t.Fatalf("Fetch failed despite retry: %v", err)
	}
	if mat.calls != 2 {
		t.Errorf("expected 2 attempts, got %d", mat.calls)
	}
	if len(files) != 1 {
		t.Errorf("expected 1 file, got %d", len(files))
	}
}

func TestFetchFailsAfterRetriesExhausted(t *testing.T) {
	mat := &fakeMaterializer{failCount: 10}
	o, _ := newTestOrchestrator(t, mat)

	_, err := o.Fetch(context.Background(), testDesc, 3)
	if !errors.Is(err, model.ErrFetchFailed) {
		t.Fatalf("expected ErrFetchFailed, got %v", err)
	}
	if mat.calls != 2 {
		t.Errorf("expected 2 attempts, got %d", mat.calls)
	}
}

func TestFetchCleansTempDirOnAllPaths(t *testing.T) {
	cases := []struct {
		name string
		mat  *fakeMaterializer
	}{
		{"success", &fakeMaterializer{files: []string{"song.mp3"}}},
		{"failure", &fakeMaterializer{failCount: 10}},
		{"empty result", &fakeMaterializer{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			o, dir := newTestOrchestrator(t, tc.mat)
			o.Fetch(context.Background(), testDesc, 3)

			if tc.mat.lastDir == "" {
				t.Fatal("materializer never called")
			}
			if _, err := os.Stat(tc.mat.lastDir); !errors.Is(err, os.ErrNotExist) {
				t.Errorf("temp dir not cleaned up: %s", tc.mat.lastDir)
			}

			// No stray tmp-* directories either.
			entries, err := os.ReadDir(dir)
			if err != nil {
				t.Fatal(err)
			}
			for _, e := range entries {
				if e.IsDir() && strings.HasPrefix(e.Name(), "tmp-") {
					t.Errorf("residual temp directory %s", e.Name())
				}
			}
		})
	}
}

func TestFetchCanceledContext(t *testing.T) {
	mat := &fakeMaterializer{failCount: 10}
	o, _ := newTestOrchestrator(t, mat)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := o.Fetch(ctx, testDesc, 3)
	if !errors.Is(err, model.ErrFetchFailed) {
		t.Fatalf("expected ErrFetchFailed, got %v", err)
	}
	// No retry after the caller went away.
	if mat.calls != 1 {
		t.Errorf("expected 1 attempt under canceled context, got %d", mat.calls)
	}
}
