package httpserver

import (
	"net/http"
	"path/filepath"
)

const (
	technicianPage = "technician.html"
	customerPage   = "customer.html"
)

const sessionNotFoundMessage = "Session not found or expired."

func (s *Server) registerStaticRoutes() {
	s.mux.HandleFunc("OPTIONS /api/", s.withOriginPolicy(s.preflight))
	s.mux.HandleFunc("OPTIONS /webrtc/ice", s.withOriginPolicy(s.preflight))

	s.mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.StaticDir == "" {
			WriteJSON(w, http.StatusOK, map[string]any{"service": "phoenix-signal-relay", "commit": s.build.Commit})
			return
		}
		http.ServeFile(w, r, filepath.Join(s.cfg.StaticDir, technicianPage))
	})

	if s.cfg.StaticDir != "" {
		s.mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(http.Dir(s.cfg.StaticDir))))
	}
}

// handleJoinPage serves the customer page for a live session. Looking up a
// session here never creates or touches it.
func (s *Server) handleJoinPage(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("sessionId")
	if !s.deps.Registry.Exists(id) {
		http.Error(w, sessionNotFoundMessage, http.StatusNotFound)
		return
	}
	if s.cfg.StaticDir == "" {
		WriteJSON(w, http.StatusOK, map[string]any{"sessionId": id})
		return
	}
	http.ServeFile(w, r, filepath.Join(s.cfg.StaticDir, customerPage))
}
