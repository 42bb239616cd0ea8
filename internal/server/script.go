package server

import (
	"bytes"
	"net/http"
	"time"
)

func (s *Server) handleScript(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		s.notFound(w, r)
		return
	}

	w.Header().Set("Content-Type", "application/javascript")
	w.Header().Set("Cache-Control", "public, max-age=86400")
	// Loaded from the Bitrix24 portal's origin.
	w.Header().Set("Cross-Origin-Resource-Policy", "cross-origin")
	http.ServeContent(w, r, "render.js", s.started.Truncate(time.Second), bytes.NewReader(s.script))
}
