package server

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
)

// handleStreamTrack serves the audio file behind a track src with Range
// support for seeking. The src under /media/ is resolved through the library
// store, never mapped onto the filesystem directly.
func (s *Server) handleStreamTrack(w http.ResponseWriter, r *http.Request) {
	src := r.URL.Path
	if !strings.HasPrefix(src, "/media/") {
		http.Error(w, "Invalid media path", http.StatusBadRequest)
		return
	}

	filePath, err := s.store.PathForSrc(src)
	if err != nil {
		http.Error(w, "Track not found", http.StatusNotFound)
		return
	}

	if verr := s.validateMediaPath(filePath); verr != nil {
		s.respondWithValidationError(w, r, []ValidationError{*verr})
		return
	}

	file, err := os.Open(filePath)
	if err != nil {
		s.respondWithError(w, r, http.StatusInternalServerError, "Error opening audio file", err)
		return
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		s.respondWithError(w, r, http.StatusInternalServerError, "Error reading file info", err)
		return
	}

	w.Header().Set("Content-Type", s.extractor.ContentType(filePath))
	w.Header().Set("Accept-Ranges", "bytes")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.Header().Set("ETag", fmt.Sprintf(`"%d-%d"`, stat.ModTime().Unix(), stat.Size()))

	if rangeHeader := r.Header.Get("Range"); rangeHeader != "" {
		s.handleRangeRequest(w, file, stat.Size(), rangeHeader)
		return
	}

	w.Header().Set("Content-Length", strconv.FormatInt(stat.Size(), 10))

	s.log.WithFields(logrus.Fields{
		"src":  src,
		"size": stat.Size(),
	}).Debug("Streaming track")

	if _, err := io.Copy(w, file); err != nil {
		s.log.WithError(err).Debug("Stream interrupted")
	}
}

// handleRangeRequest implements simple single-range byte serving for seeking.
func (s *Server) handleRangeRequest(w http.ResponseWriter, file *os.File, fileSize int64, rangeHeader string) {
	// Parse range header (e.g. "bytes=0-1023").
	ranges := strings.TrimPrefix(rangeHeader, "bytes=")
	rangeParts := strings.Split(ranges, "-")

	start, err := strconv.ParseInt(rangeParts[0], 10, 64)
	if err != nil {
		start = 0
	}

	var end int64
	if len(rangeParts) > 1 && rangeParts[1] != "" {
		end, err = strconv.ParseInt(rangeParts[1], 10, 64)
		if err != nil {
			end = fileSize - 1
		}
	} else {
		end = fileSize - 1
	}

	if start < 0 || end >= fileSize || start > end {
		w.Header().Set("Content-Range", fmt.Sprintf("bytes */%d", fileSize))
		http.Error(w, "Range Not Satisfiable", http.StatusRequestedRangeNotSatisfiable)
		return
	}

	contentLength := end - start + 1
	w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, end, fileSize))
	w.Header().Set("Content-Length", strconv.FormatInt(contentLength, 10))
	w.WriteHeader(http.StatusPartialContent)

	file.Seek(start, io.SeekStart)
	io.CopyN(w, file, contentLength)
}
