package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/Jorge5452/Melodify-Deezer/config"
	"github.com/Jorge5452/Melodify-Deezer/vault"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	dir := t.TempDir()
	store := vault.New(filepath.Join(dir, "vault.json"), filepath.Join(dir, "vault.backup.json"))
	if err := store.Put("3135556_3", vault.Value{Single: "ref-1"}); err != nil {
		t.Fatalf("seed vault: %v", err)
	}
	return New(&config.Config{Port: 0}, store)
}

func TestPingRespondsPong(t *testing.T) {
	s := newTestServer(t)

	rec := httptest.NewRecorder()
	s.handlePing(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got := rec.Body.String(); got != "pong" {
		t.Fatalf("body = %q, want \"pong\"", got)
	}
}

func TestStatusReportsVaultSize(t *testing.T) {
	s := newTestServer(t)

	rec := httptest.NewRecorder()
	s.handleStatus(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode status body: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("status field = %v, want ok", body["status"])
	}
	if n, ok := body["vaultEntries"].(float64); !ok || n != 1 {
		t.Errorf("vaultEntries = %v, want 1", body["vaultEntries"])
	}
}
