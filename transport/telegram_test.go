package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Jorge5452/Melodify-Deezer/core/fetch"
	"github.com/Jorge5452/Melodify-Deezer/model"
)

func newTestClient(handler http.HandlerFunc) (*Client, *httptest.Server) {
	srv := httptest.NewServer(handler)
	c := NewClient("TESTTOKEN")
	c.SetBaseURL(srv.URL)
	return c, srv
}

func TestSendAudioFilePublishReturnsFileID(t *testing.T) {
	dir := t.TempDir()
	audioPath := filepath.Join(dir, "Daft Punk - One More Time.mp3")
	if err := os.WriteFile(audioPath, []byte("audio-bytes"), 0644); err != nil {
		t.Fatal(err)
	}

	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/botTESTTOKEN/sendAudio") {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("parsing multipart form: %v", err)
		}
		if got := r.FormValue("chat_id"); got != "-100123" {
			t.Errorf("chat_id: got %q", got)
		}
		if got := r.FormValue("performer"); got != "Daft Punk" {
			t.Errorf("performer: got %q", got)
		}
		if got := r.FormValue("duration"); got != "320" {
			t.Errorf("duration: got %q", got)
		}
		// A cover URL must not leak into the form; the API only accepts
		// uploaded attachments for thumbnails.
		if _, ok := r.MultipartForm.Value["thumbnail"]; ok {
			t.Error("thumbnail field sent as URL")
		}
		file, _, err := r.FormFile("audio")
		if err != nil {
			t.Fatalf("audio part missing: %v", err)
		}
		file.Close()

		w.Write([]byte(`{"ok": true, "result": {"message_id": 7, "chat": {"id": -100123}, "audio": {"file_id": "CQACAgEAAx"}}}`))
	})
	defer srv.Close()

	channel := NewVaultChannel(c, -100123)
	meta := &model.TrackMetadata{
		ID: 1, Title: "One More Time", Artist: "Daft Punk", Duration: 320,
		CoverURL: "https://cdn.example/cover.jpg",
	}
	ref, err := channel.Publish(context.Background(), fetch.AudioFile{Path: audioPath, Name: filepath.Base(audioPath)}, meta)
	if err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	if ref != "CQACAgEAAx" {
		t.Errorf("ref: got %q", ref)
	}
}

func TestRelaySendsFileIDWithoutUpload(t *testing.T) {
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("audio"); got != "CQACAgEAAx" {
			t.Errorf("audio: got %q", got)
		}
		if got := r.URL.Query().Get("chat_id"); got != "42" {
			t.Errorf("chat_id: got %q", got)
		}
		w.Write([]byte(`{"ok": true, "result": {"message_id": 8, "chat": {"id": 42}}}`))
	})
	defer srv.Close()

	channel := NewVaultChannel(c, -100123)
	if err := channel.Relay(context.Background(), "CQACAgEAAx", 42); err != nil {
		t.Fatalf("Relay failed: %v", err)
	}
}

func TestAPIErrorSurfaced(t *testing.T) {
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"ok": false, "description": "Bad Request: chat not found", "error_code": 400}`))
	})
	defer srv.Close()

	err := c.SendMessage(context.Background(), 42, "hola")
	if err == nil {
		t.Fatal("expected error for ok=false response")
	}
	if !strings.Contains(err.Error(), "chat not found") {
		t.Errorf("error lacks API description: %v", err)
	}
}

func TestGetUpdatesDecodes(t *testing.T) {
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("offset"); got != "100" {
			t.Errorf("offset: got %q", got)
		}
		w.Write([]byte(`{"ok": true, "result": [
			{"update_id": 100, "message": {"message_id": 1, "chat": {"id": 42}, "text": "https://deezer.com/track/1"}},
			{"update_id": 101, "callback_query": {"id": "cb1", "data": "download:track:2", "message": {"message_id": 2, "chat": {"id": 42}}}}
		]}`))
	})
	defer srv.Close()

	updates, err := c.GetUpdates(context.Background(), 100, 30)
	if err != nil {
		t.Fatalf("GetUpdates failed: %v", err)
	}
	if len(updates) != 2 {
		t.Fatalf("expected 2 updates, got %d", len(updates))
	}
	if updates[0].Message == nil || updates[0].Message.Text != "https://deezer.com/track/1" {
		t.Errorf("message update mismatch: %+v", updates[0])
	}
	if updates[1].CallbackQuery == nil || updates[1].CallbackQuery.Data != "download:track:2" {
		t.Errorf("callback update mismatch: %+v", updates[1])
	}
}
