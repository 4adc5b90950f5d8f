package httpserver

import (
	"net/http"

	"github.com/pion/webrtc/v4"

	"github.com/phoenix-visual-support/signal-relay/internal/session"
	"github.com/phoenix-visual-support/signal-relay/internal/turnrest"
)

type iceResponse struct {
	ICEServers []webrtc.ICEServer `json:"iceServers"`
}

// handleICE returns the ICE servers browsers should use. With TURN REST
// enabled each response carries fresh credentials, bound to the session id
// when the caller passes a valid one.
func (s *Server) handleICE(w http.ResponseWriter, r *http.Request) {
	if err := s.cfg.ICEConfigError(); err != nil {
		WriteJSON(w, http.StatusServiceUnavailable, map[string]any{"error": err.Error()})
		return
	}

	servers := s.cfg.ICEServers
	if servers == nil {
		servers = []webrtc.ICEServer{}
	}

	if s.deps.TURN != nil {
		label := r.URL.Query().Get("sessionId")
		if !session.ValidID(label) {
			label = ""
		}
		creds, err := s.deps.TURN.Generate(label)
		if err != nil {
			s.log.Error("turn rest credential generation failed", "err", err)
			WriteJSON(w, http.StatusInternalServerError, map[string]any{"error": "failed to generate TURN credentials"})
			return
		}
		servers = turnrest.Apply(servers, creds)
	}

	w.Header().Set("Cache-Control", "no-store")
	WriteJSON(w, http.StatusOK, iceResponse{ICEServers: servers})
}
