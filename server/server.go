package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/Jorge5452/Melodify-Deezer/config"
	"github.com/Jorge5452/Melodify-Deezer/logger"
	"github.com/Jorge5452/Melodify-Deezer/vault"
)

// Server is the HTTP liveness endpoint. It exists so that container
// orchestrators have something to probe; the bot itself talks to Telegram
// over long polling and needs no inbound port.
type Server struct {
	httpServer *http.Server
	store      *vault.Store
	startedAt  time.Time
}

// New builds the liveness server on the configured port.
func New(cfg *config.Config, store *vault.Store) *Server {
	s := &Server{
		store:     store,
		startedAt: time.Now(),
	}

	router := mux.NewRouter()
	router.HandleFunc("/", s.handleStatus).Methods(http.MethodGet)
	router.HandleFunc("/ping", s.handlePing).Methods(http.MethodGet)

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	return s
}

// Start runs the server in a goroutine.
func (s *Server) Start() {
	go func() {
		logger.Info("Liveness server starting", logger.String("addr", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Liveness server failed", logger.ErrorField(err))
		}
	}()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := map[string]interface{}{
		"status": "ok",
		"uptime": time.Since(s.startedAt).Round(time.Second).String(),
	}
	if s.store != nil {
		status["vaultEntries"] = s.store.Len()
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(status); err != nil {
		logger.Error("Failed to encode status response", logger.ErrorField(err))
	}
}

func (s *Server) handlePing(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	fmt.Fprint(w, "pong")
}
