package library

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

// SrcPrefix is the URL prefix under which library files are served. A
// track's src is this prefix plus its path relative to the media directory,
// which keeps the catalog document portable across rescans.
const SrcPrefix = "/media/"

// Scanner walks the media directory and ingests every supported audio file
// into the store.
type Scanner struct {
	store     *Store
	extractor *Extractor
	mediaDir  string
	log       *logrus.Logger
}

// NewScanner creates a scanner over mediaDir.
func NewScanner(store *Store, extractor *Extractor, mediaDir string, logger *logrus.Logger) *Scanner {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Scanner{store: store, extractor: extractor, mediaDir: mediaDir, log: logger}
}

// SrcFor maps an audio file path inside the media directory to its serving
// src. Returns an error for paths outside the media root.
func (s *Scanner) SrcFor(filePath string) (string, error) {
	rel, err := filepath.Rel(s.mediaDir, filePath)
	if err != nil || rel == ".." || filepath.IsAbs(rel) || len(rel) >= 3 && rel[:3] == ".."+string(filepath.Separator) {
		return "", fmt.Errorf("file %q is outside the media directory", filePath)
	}
	return SrcPrefix + filepath.ToSlash(rel), nil
}

// Scan walks the media tree with a worker pool and upserts every audio file
// it can extract. Returns the number of tracks ingested.
func (s *Scanner) Scan() (int, error) {
	s.log.WithField("media_dir", s.mediaDir).Info("Scanning music library")

	var wg sync.WaitGroup
	var trackCount int64
	var ordinal int64
	jobs := make(chan string, 100)

	numWorkers := runtime.NumCPU()
	for i := 0; i < numWorkers; i++ {
		go func() {
			for path := range jobs {
				if err := s.ingest(path, int(atomic.AddInt64(&ordinal, 1))); err != nil {
					s.log.WithError(err).WithField("file_path", path).Error("Failed to ingest track")
				} else {
					atomic.AddInt64(&trackCount, 1)
				}
				wg.Done()
			}
		}()
	}

	walkErr := filepath.Walk(s.mediaDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && s.extractor.IsAudioFile(path) {
			wg.Add(1)
			jobs <- path
		}
		return nil
	})

	close(jobs)
	wg.Wait()

	s.log.WithField("tracks", trackCount).Info("Library scan complete")
	return int(trackCount), walkErr
}

// Ingest extracts one file and upserts it into the store. Used by the file
// watcher for files that appear after the startup scan.
func (s *Scanner) Ingest(filePath string) error {
	count, err := s.store.Count()
	if err != nil {
		return err
	}
	return s.ingest(filePath, count+1)
}

func (s *Scanner) ingest(filePath string, ordinal int) error {
	src, err := s.SrcFor(filePath)
	if err != nil {
		return err
	}
	scanned, err := s.extractor.ExtractFromFile(filePath, src, ordinal)
	if err != nil {
		return err
	}
	if err := s.store.Upsert(scanned); err != nil {
		return err
	}
	s.log.WithFields(logrus.Fields{
		"artist": scanned.Track.Artist,
		"title":  scanned.Track.Title,
	}).Debug("Ingested track")
	return nil
}
