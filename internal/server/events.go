package server

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Pusher91/fieldbutton/internal/domain"
)

const eventsHeartbeat = 15 * time.Second

// handleEvents streams registration events as SSE. ?domain= narrows the
// stream to one portal.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.notFound(w, r)
		return
	}

	only := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("domain")))
	if only != "" && !domain.IsValidDomain(only) {
		writeText(w, http.StatusBadRequest, "domain must be a hostname")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeText(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")

	ch := s.broker.subscribe()
	defer s.broker.unsubscribe(ch)

	fmt.Fprint(w, "retry: 2000\n\n")
	fmt.Fprint(w, "event: ready\ndata: {}\n\n")
	flusher.Flush()

	heartbeat := time.NewTicker(eventsHeartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return

		case <-heartbeat.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()

		case msg, open := <-ch:
			if !open {
				return
			}
			if only != "" && msg.Domain != only {
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", msg.Event, msg.Data)
			flusher.Flush()
		}
	}
}
