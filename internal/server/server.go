package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"

	"github.com/Masterofowls/Player/internal/catalog"
	"github.com/Masterofowls/Player/internal/config"
	"github.com/Masterofowls/Player/internal/library"
	"github.com/Masterofowls/Player/internal/search"
	"github.com/Masterofowls/Player/internal/session"
)

// Server hosts the player: it serves the catalog and audio files, owns the
// playback session, and bridges it to the browser. Commands come in over
// HTTP, state changes and playback directives go out over SSE, and the
// browser's audio element reports its completions back through callback
// endpoints.
type Server struct {
	config    *config.Config
	log       *logrus.Logger
	store     *library.Store
	scanner   *library.Scanner
	extractor *library.Extractor
	session   *session.Session
	overlay   *search.Overlay
	remote    *remoteResource
	watcher   *fsnotify.Watcher

	httpServer *http.Server
}

// NewServer wires a server over an already-opened library store. The playback
// queue is built from the store's current contents.
func NewServer(cfg *config.Config, store *library.Store, logger *logrus.Logger) (*Server, error) {
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	extractor := library.NewExtractor(cfg.Library.SupportedFormats, logger)
	scanner := library.NewScanner(store, extractor, cfg.Library.MediaPath, logger)

	tracks, err := store.Tracks()
	if err != nil {
		return nil, fmt.Errorf("loading catalog from store: %w", err)
	}
	queue := catalog.FromTracks(tracks)

	remote := newRemoteResource(logger)
	sess := session.New(queue, remote, session.Options{
		LoadTimeout:   time.Duration(cfg.Player.LoadTimeoutSeconds) * time.Second,
		InitialVolume: cfg.Player.DefaultVolume,
		Logger:        logger,
	})
	overlay := search.New(sess, search.Options{
		Debounce: time.Duration(cfg.Player.SearchDebounceMs) * time.Millisecond,
		Logger:   logger,
	})

	return &Server{
		config:    cfg,
		log:       logger,
		store:     store,
		scanner:   scanner,
		extractor: extractor,
		session:   sess,
		overlay:   overlay,
		remote:    remote,
	}, nil
}

// Session exposes the playback session, mostly for the command handlers and
// tests.
func (s *Server) Session() *session.Session { return s.session }

// Start runs the HTTP server until the context is canceled, then shuts down
// gracefully.
func (s *Server) Start(ctx context.Context) error {
	if s.config.Library.WatchForChanges {
		if err := s.startFileWatcher(); err != nil {
			s.log.WithError(err).Warn("Could not start file watcher")
		} else {
			defer s.stopFileWatcher()
		}
	}

	count, err := s.store.Count()
	if err != nil {
		s.log.WithError(err).Warn("Could not count library tracks")
	}

	s.log.WithFields(logrus.Fields{
		"address": s.config.GetAddress(),
		"tracks":  count,
	}).Info("Player server starting")

	s.httpServer = &http.Server{
		Addr:        s.config.GetAddress(),
		Handler:     s.Handler(),
		ReadTimeout: time.Duration(s.config.Server.ReadTimeout) * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
		return s.Shutdown()
	}
}

// Handler builds the full route table wrapped in the middleware chain.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/", s.handleHome)
	mux.Handle("/static/", http.StripPrefix("/static/",
		http.FileServer(http.Dir(s.config.Server.StaticDir))))
	mux.HandleFunc("/songs.json", s.handleSongsDocument)
	mux.HandleFunc("/health", s.handleHealthCheck)

	mux.HandleFunc("/api/tracks", s.handleGetTracks)
	mux.HandleFunc("/api/tracks/count", s.handleGetTrackCount)
	mux.HandleFunc("/media/", s.handleStreamTrack)

	// Playback commands.
	mux.HandleFunc("/api/player/state", s.handlePlayerState)
	mux.HandleFunc("/api/player/load", s.handleLoad)
	mux.HandleFunc("/api/player/play", s.handlePlay)
	mux.HandleFunc("/api/player/pause", s.handlePause)
	mux.HandleFunc("/api/player/toggle", s.handleToggle)
	mux.HandleFunc("/api/player/next", s.handleNext)
	mux.HandleFunc("/api/player/previous", s.handlePrevious)
	mux.HandleFunc("/api/player/shuffle", s.handleShuffle)
	mux.HandleFunc("/api/player/repeat", s.handleRepeat)
	mux.HandleFunc("/api/player/volume", s.handleVolume)
	mux.HandleFunc("/api/player/seek", s.handleSeek)

	// Search overlay.
	mux.HandleFunc("/api/search", s.handleSearch)
	mux.HandleFunc("/api/search/promote", s.handlePromote)

	// Audio element callbacks and the event stream.
	mux.HandleFunc("/api/player/events", s.handleEvents)
	mux.HandleFunc("/api/player/callback/loaded", s.handleCallbackLoaded)
	mux.HandleFunc("/api/player/callback/error", s.handleCallbackError)
	mux.HandleFunc("/api/player/callback/ended", s.handleCallbackEnded)
	mux.HandleFunc("/api/player/callback/progress", s.handleCallbackProgress)
	mux.HandleFunc("/api/player/callback/rejected", s.handleCallbackRejected)

	var handler http.Handler = mux
	handler = s.corsMiddleware(handler)
	handler = s.requestLoggingMiddleware(handler)
	handler = s.panicRecoveryMiddleware(handler)
	return handler
}

// Shutdown gracefully stops the HTTP server and the file watcher.
func (s *Server) Shutdown() error {
	s.log.Info("Shutting down player server")
	s.stopFileWatcher()

	if s.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(ctx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
	}

	s.log.Info("Player server shutdown complete")
	return nil
}
