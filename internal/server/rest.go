package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/marinapotashenkova/SCPlayer/internal/player"
)

// RespondWithJSON writes m as the response body
func RespondWithJSON(m any, statusCode int, w http.ResponseWriter) {
	payload, err := json.Marshal(m)
	if err != nil {
		statusCode = http.StatusInternalServerError
		payload = []byte(`{"reason":"failed to encode response"}`)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_, _ = w.Write(payload)
}

// RespondWithError writes an ErrorMessage
func RespondWithError(reason string, statusCode int, w http.ResponseWriter) {
	RespondWithJSON(ErrorMessage{Reason: reason}, statusCode, w)
}

func (s *Server) getStatus(w http.ResponseWriter, r *http.Request) {
	RespondWithJSON(statusOf(s.player), http.StatusOK, w)
}

func (s *Server) getTracks(w http.ResponseWriter, r *http.Request) {
	RespondWithJSON(TracksMessage{Tracks: s.catalog.Tracks()}, http.StatusOK, w)
}

func (s *Server) postSelect(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(mux.Vars(r)["index"])
	if err != nil {
		RespondWithError("invalid index", http.StatusBadRequest, w)
		return
	}
	s.respondToCommand(w, s.player.Select(index))
}

// command adapts a transport operation into a handler
func (s *Server) command(fn func() error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.respondToCommand(w, fn())
	}
}

func (s *Server) respondToCommand(w http.ResponseWriter, err error) {
	if err != nil {
		s.logger.Debug().Err(err).Msg("Command rejected")
		RespondWithError(err.Error(), statusForError(err), w)
		return
	}
	RespondWithJSON(statusOf(s.player), http.StatusOK, w)
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, player.ErrIndexOutOfRange):
		return http.StatusNotFound
	case errors.Is(err, player.ErrNoTrack):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
