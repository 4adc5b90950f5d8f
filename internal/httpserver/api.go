package httpserver

import (
	"errors"
	"net/http"
	"time"

	"github.com/phoenix-visual-support/signal-relay/internal/metrics"
	"github.com/phoenix-visual-support/signal-relay/internal/session"
)

type createSessionResponse struct {
	SessionID string `json:"sessionId"`
	Link      string `json:"link"`
}

type sessionResponse struct {
	SessionID         string    `json:"sessionId"`
	CreatedAt         time.Time `json:"createdAt"`
	LastActive        time.Time `json:"lastActive"`
	TechnicianPresent bool      `json:"technicianPresent"`
	CustomerPresent   bool      `json:"customerPresent"`
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	id, err := s.deps.Registry.CreateSession()
	if err != nil {
		s.deps.Metrics.Inc(metrics.SessionsRejected)
		if errors.Is(err, session.ErrTooManySessions) {
			s.log.Warn("session creation rejected", "reason", "too_many_sessions", "active", s.deps.Registry.Len())
			writeJSONError(w, http.StatusServiceUnavailable, "too_many_sessions", "too many active sessions")
			return
		}
		s.log.Error("session creation failed", "err", err)
		writeJSONError(w, http.StatusInternalServerError, "internal_error", "failed to create session")
		return
	}

	s.deps.Metrics.Inc(metrics.SessionsCreated)
	s.log.Info("session created", "session_id", id)
	WriteJSON(w, http.StatusOK, createSessionResponse{SessionID: id, Link: "/join/" + id})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.deps.Registry.Get(r.PathValue("sessionId"))
	if !ok {
		writeJSONError(w, http.StatusNotFound, "not_found", "session not found or expired")
		return
	}
	WriteJSON(w, http.StatusOK, sessionResponse{
		SessionID:         sess.ID,
		CreatedAt:         sess.CreatedAt.UTC(),
		LastActive:        sess.LastActive.UTC(),
		TechnicianPresent: sess.TechnicianPresent,
		CustomerPresent:   sess.CustomerPresent,
	})
}
