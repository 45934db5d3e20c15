package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/Masterofowls/Player/internal/session"
)

// handlePlayerState returns a snapshot of the playback session.
func (s *Server) handlePlayerState(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, s.session.State())
}

type indexRequest struct {
	Index *int `json:"index"`
}

func (s *Server) decodeIndex(w http.ResponseWriter, r *http.Request) (int, bool) {
	var req indexRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Index == nil {
		s.respondWithValidationError(w, r, []ValidationError{{
			Field:   "index",
			Message: "A queue index is required",
			Code:    "MISSING_INDEX",
		}})
		return 0, false
	}
	return *req.Index, true
}

// respondCommand maps session errors to HTTP responses and otherwise returns
// the fresh state snapshot.
func (s *Server) respondCommand(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case err == nil:
		s.respondJSON(w, s.session.State())
	case errors.Is(err, session.ErrIndexOutOfRange):
		s.respondWithError(w, r, http.StatusBadRequest, "Track index out of range", err)
	case errors.Is(err, session.ErrBusyLoading):
		s.respondWithError(w, r, http.StatusConflict, "A track load is in flight", err)
	case errors.Is(err, session.ErrNoTrack):
		s.respondWithError(w, r, http.StatusConflict, "No track loaded", err)
	case errors.Is(err, session.ErrEmptyQueue):
		s.respondWithError(w, r, http.StatusConflict, "The queue is empty", err)
	default:
		// Playback rejections already surfaced on the event stream; the
		// command itself did not fail the session.
		s.respondJSON(w, s.session.State())
	}
}

// handleLoad binds the session to a queue index without starting playback.
func (s *Server) handleLoad(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	index, ok := s.decodeIndex(w, r)
	if !ok {
		return
	}
	s.respondCommand(w, r, s.session.LoadTrack(index))
}

// handlePlay starts playback. With an index in the body it loads that track
// and plays it once ready; without one it resumes the current track.
func (s *Server) handlePlay(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req indexRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}
	if req.Index != nil {
		s.respondCommand(w, r, s.session.PlayFromQueue(*req.Index))
		return
	}
	s.respondCommand(w, r, s.session.Play())
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.session.Pause()
	s.respondJSON(w, s.session.State())
}

func (s *Server) handleToggle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.respondCommand(w, r, s.session.TogglePlay())
}

func (s *Server) handleNext(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.respondCommand(w, r, s.session.Next())
}

func (s *Server) handlePrevious(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.respondCommand(w, r, s.session.Previous())
}

func (s *Server) handleShuffle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	shuffled := s.session.ToggleShuffle()
	s.respondJSON(w, map[string]bool{"isShuffled": shuffled})
}

func (s *Server) handleRepeat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	mode := s.session.ToggleRepeat()
	s.respondJSON(w, map[string]session.RepeatMode{"repeatMode": mode})
}

func (s *Server) handleVolume(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		Volume *int `json:"volume"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Volume == nil {
		s.respondWithValidationError(w, r, []ValidationError{{
			Field:   "volume",
			Message: "A volume level (0-100) is required",
			Code:    "MISSING_VOLUME",
		}})
		return
	}
	s.session.SetVolume(*req.Volume)
	s.respondJSON(w, s.session.State())
}

func (s *Server) handleSeek(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		Position *float64 `json:"position"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Position == nil {
		s.respondWithValidationError(w, r, []ValidationError{{
			Field:   "position",
			Message: "A position in seconds is required",
			Code:    "MISSING_POSITION",
		}})
		return
	}
	s.session.Seek(*req.Position)
	s.respondJSON(w, s.session.State())
}

// handleSearch sets the overlay query on POST and returns the current result
// set on GET.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var req struct {
			Query string `json:"query"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.respondWithError(w, r, http.StatusBadRequest, "Invalid JSON", err)
			return
		}
		if verr := validateSearchQuery(req.Query); verr != nil {
			s.respondWithValidationError(w, r, []ValidationError{*verr})
			return
		}
		s.overlay.SetQuery(req.Query)
		s.respondJSON(w, map[string]bool{"success": true})

	case http.MethodGet:
		s.respondJSON(w, map[string]interface{}{
			"results": s.overlay.Results(),
			"visible": s.overlay.Visible(),
		})

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// handlePromote plays a search result, resolving it into the queue.
func (s *Server) handlePromote(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		Result *int `json:"result"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Result == nil {
		s.respondWithValidationError(w, r, []ValidationError{{
			Field:   "result",
			Message: "A search result index is required",
			Code:    "MISSING_RESULT_INDEX",
		}})
		return
	}
	if err := s.overlay.Promote(*req.Result); err != nil {
		s.respondWithError(w, r, http.StatusBadRequest, "Could not promote search result", err)
		return
	}
	s.respondJSON(w, s.session.State())
}

// Audio element callbacks. Each carries the generation of the load it belongs
// to; the session discards anything stale.

type callbackRequest struct {
	Generation uint64  `json:"generation"`
	Duration   float64 `json:"duration,omitempty"`
	Position   float64 `json:"position,omitempty"`
	Message    string  `json:"message,omitempty"`
}

func (s *Server) decodeCallback(w http.ResponseWriter, r *http.Request) (callbackRequest, bool) {
	var req callbackRequest
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return req, false
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondWithError(w, r, http.StatusBadRequest, "Invalid JSON", err)
		return req, false
	}
	return req, true
}

func (s *Server) handleCallbackLoaded(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeCallback(w, r)
	if !ok {
		return
	}
	s.session.HandleLoaded(req.Generation, req.Duration)
	s.respondJSON(w, map[string]bool{"success": true})
}

func (s *Server) handleCallbackError(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeCallback(w, r)
	if !ok {
		return
	}
	s.session.HandleLoadError(req.Generation, req.Message)
	s.respondJSON(w, map[string]bool{"success": true})
}

func (s *Server) handleCallbackEnded(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeCallback(w, r)
	if !ok {
		return
	}
	s.session.HandleEnded(req.Generation)
	s.respondJSON(w, map[string]bool{"success": true})
}

func (s *Server) handleCallbackProgress(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeCallback(w, r)
	if !ok {
		return
	}
	s.session.HandleProgress(req.Generation, req.Position)
	s.respondJSON(w, map[string]bool{"success": true})
}

func (s *Server) handleCallbackRejected(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeCallback(w, r)
	if !ok {
		return
	}
	s.session.HandleRejected(req.Generation, req.Message)
	s.respondJSON(w, map[string]bool{"success": true})
}
