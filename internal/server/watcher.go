package server

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// startFileWatcher initializes fsnotify for recursive media dir monitoring.
func (s *Server) startFileWatcher() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	s.watcher = watcher

	go s.watchFiles()

	if err := s.addDirectoryToWatcher(s.config.Library.MediaPath); err != nil {
		return err
	}

	s.log.WithField("media_path", s.config.Library.MediaPath).Info("File watcher started")
	return nil
}

// addDirectoryToWatcher recursively walks and adds subdirectories to watcher.
func (s *Server) addDirectoryToWatcher(dir string) error {
	return filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return s.watcher.Add(path)
		}
		return nil
	})
}

// watchFiles selects on watcher channels and dispatches events.
func (s *Server) watchFiles() {
	defer s.watcher.Close()

	for {
		select {
		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			s.handleFileEvent(event)

		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			s.log.WithError(err).Error("File watcher error")
		}
	}
}

// handleFileEvent applies filtering & delegates creation/removal actions.
func (s *Server) handleFileEvent(event fsnotify.Event) {
	// Ignore temporary files and hidden files.
	fileName := filepath.Base(event.Name)
	if strings.HasPrefix(fileName, ".") || strings.HasSuffix(fileName, ".tmp") {
		return
	}

	isAudioFile := s.extractor.IsAudioFile(event.Name)

	switch {
	case event.Has(fsnotify.Create) && isAudioFile:
		go func(name string) {
			time.Sleep(500 * time.Millisecond) // Ensure file is fully written
			s.handleNewFile(name)
		}(event.Name)

	case event.Has(fsnotify.Remove) && isAudioFile:
		go s.handleRemovedFile(event.Name)

	case event.Has(fsnotify.Create):
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			s.watcher.Add(event.Name)
			s.log.WithField("directory", event.Name).Info("Watching new directory")
		}
	}
}

// handleNewFile ingests files that appeared after the startup scan.
func (s *Server) handleNewFile(filePath string) {
	s.log.WithField("file_path", filePath).Info("New audio file detected")

	exists, err := s.store.ExistsByPath(filePath)
	if err != nil {
		s.log.WithError(err).WithField("file_path", filePath).Error("Error checking if track exists")
		return
	}
	if exists {
		s.log.WithField("file_path", filePath).Debug("Track already in library")
		return
	}

	if err := s.scanner.Ingest(filePath); err != nil {
		s.log.WithError(err).WithField("file_path", filePath).Error("Error ingesting new track")
		return
	}

	s.log.WithField("file_path", filePath).Info("Added new track")
}

// handleRemovedFile removes track rows referencing deleted audio files.
func (s *Server) handleRemovedFile(filePath string) {
	s.log.WithField("file_path", filePath).Info("Audio file removed")

	if err := s.store.RemoveByPath(filePath); err != nil {
		s.log.WithError(err).WithField("file_path", filePath).Error("Error removing track from library")
		return
	}

	s.log.WithField("file_path", filePath).Info("Removed track from library")
}

// stopFileWatcher closes the watcher (idempotent).
func (s *Server) stopFileWatcher() {
	if s.watcher != nil {
		s.watcher.Close()
	}
}
