package server

import (
	"net/http"
	"path/filepath"
	"strings"

	"github.com/Masterofowls/Player/pkg/models"
)

// handleHome serves the player SPA from the configured static dir.
func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	http.ServeFile(w, r, filepath.Join(s.config.Server.StaticDir, "index.html"))
}

// handleSongsDocument serves the catalog document the player core loads at
// startup: an ordered JSON array of tracks exported from the library store.
func (s *Server) handleSongsDocument(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := s.store.WriteDocument(w); err != nil {
		s.respondWithError(w, r, http.StatusInternalServerError, "Error exporting catalog", err)
	}
}

// handleGetTracks returns the live queue, optionally filtered by an immediate
// (non-debounced) search match on title and artist.
func (s *Server) handleGetTracks(w http.ResponseWriter, r *http.Request) {
	query := sanitizeInput(r.URL.Query().Get("search"))
	if verr := validateSearchQuery(query); verr != nil {
		s.respondWithValidationError(w, r, []ValidationError{*verr})
		return
	}

	queue := s.session.Queue()
	if query == "" {
		s.respondJSON(w, queue.Tracks())
		return
	}

	term := strings.ToLower(query)
	s.respondJSON(w, queue.Filter(func(t models.Track) bool {
		return strings.Contains(strings.ToLower(t.Title), term) ||
			strings.Contains(strings.ToLower(t.Artist), term)
	}))
}

// handleGetTrackCount responds with a JSON count of all queued tracks.
func (s *Server) handleGetTrackCount(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, map[string]int{"count": s.session.Queue().Len()})
}
