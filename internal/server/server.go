// Package server exposes the player over HTTP: a REST control API and a
// websocket feed of lifecycle events.
package server

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"github.com/rs/zerolog"

	"github.com/marinapotashenkova/SCPlayer/internal/catalog"
	"github.com/marinapotashenkova/SCPlayer/internal/player"
)

// Player is the part of the coordinator the server drives
type Player interface {
	Select(index int) error
	Toggle() error
	Advance() error
	Retreat() error
	Stop()
	State() player.State
	CurrentTrack() (catalog.Track, bool)
	CurrentProgress() float64
	CurrentDuration() time.Duration
	IsPlaying() bool
	RegisterObserver(ref player.ObserverRef)
	UnregisterObserver(ref player.ObserverRef)
}

// Server owns the HTTP router and the live websocket sessions
type Server struct {
	player  Player
	catalog *catalog.Catalog
	logger  zerolog.Logger

	mu       sync.Mutex
	sessions map[string]*Session
}

// New creates a server over p and cat
func New(p Player, cat *catalog.Catalog, logger zerolog.Logger) *Server {
	return &Server{
		player:   p,
		catalog:  cat,
		logger:   logger.With().Str("component", "server").Logger(),
		sessions: make(map[string]*Session),
	}
}

// Handler returns the CORS-wrapped router
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter().StrictSlash(true)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/status", s.getStatus).Methods(http.MethodGet)
	api.HandleFunc("/tracks", s.getTracks).Methods(http.MethodGet)
	api.HandleFunc("/select/{index:-?[0-9]+}", s.postSelect).Methods(http.MethodPost)
	api.HandleFunc("/toggle", s.command(s.player.Toggle)).Methods(http.MethodPost)
	api.HandleFunc("/next", s.command(s.player.Advance)).Methods(http.MethodPost)
	api.HandleFunc("/prev", s.command(s.player.Retreat)).Methods(http.MethodPost)
	api.HandleFunc("/stop", s.command(func() error {
		s.player.Stop()
		return nil
	})).Methods(http.MethodPost)

	r.HandleFunc("/ws", s.serveWS)
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		RespondWithError("not found", http.StatusNotFound, w)
	})

	return cors.Default().Handler(r)
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully and closes every session
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", addr).Msg("Control server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.CloseSessions()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	s.logger.Info().Msg("Control server stopped")
	return nil
}

// BroadcastProgress sends the playback position to every session
func (s *Server) BroadcastProgress(progress float64, duration time.Duration) {
	msg, err := NewMessage(MessageTypeProgress, ProgressMessage{
		Progress: progress,
		Duration: duration.Seconds(),
	})
	if err != nil {
		return
	}
	for _, sess := range s.snapshotSessions() {
		sess.SendMessage(msg)
	}
}

// SessionCount returns the number of connected websocket clients
func (s *Server) SessionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// CloseSessions disconnects every websocket client
func (s *Server) CloseSessions() {
	for _, sess := range s.snapshotSessions() {
		sess.Close()
	}
}

func (s *Server) snapshotSessions() []*Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, sess)
	}
	return out
}

// join keeps sess alive and subscribes it to player notifications
func (s *Server) join(sess *Session) {
	s.player.RegisterObserver(player.Weak(sess))
	s.mu.Lock()
	s.sessions[sess.ID] = sess
	s.mu.Unlock()
	s.logger.Info().Str("session", sess.ID).Str("remote", sess.RemoteAddr()).Msg("Session joined")
}

// leave unsubscribes sess and drops the server's reference to it
func (s *Server) leave(sess *Session) {
	s.player.UnregisterObserver(player.Weak(sess))
	s.mu.Lock()
	delete(s.sessions, sess.ID)
	s.mu.Unlock()
	s.logger.Info().Str("session", sess.ID).Msg("Session left")
}
