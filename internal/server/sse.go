package server

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/Masterofowls/Player/internal/session"
)

// handleEvents streams session events and playback directives to the browser
// over SSE. Session events carry their event type; directives arrive under
// the "directive" type and are meant for the audio element.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	clientID := uuid.NewString()
	events, dispose := s.session.Events().Subscribe()
	directives := s.remote.subscribe(clientID)
	defer dispose()
	defer s.remote.unsubscribe(clientID)

	s.log.WithField("client", clientID).Info("Event stream client connected")

	// Prime the client with the current state so late joiners render
	// correctly without waiting for the next change.
	state := s.session.State()
	writeSSE(w, string(session.EventPlaybackStateChanged), session.Event{
		Type:  session.EventPlaybackStateChanged,
		State: &state,
	})
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			s.log.WithField("client", clientID).Debug("Event stream client disconnected")
			return

		case ev, ok := <-events:
			if !ok {
				return
			}
			writeSSE(w, string(ev.Type), ev)
			flusher.Flush()

		case d, ok := <-directives:
			if !ok {
				return
			}
			writeSSE(w, "directive", d)
			flusher.Flush()
		}
	}
}

func writeSSE(w http.ResponseWriter, event string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		logrus.WithError(err).Error("Failed to encode SSE payload")
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
}
