package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/Masterofowls/Player/internal/artists"
	"github.com/Masterofowls/Player/internal/catalog"
	"github.com/Masterofowls/Player/internal/config"
	"github.com/Masterofowls/Player/internal/library"
	"github.com/Masterofowls/Player/internal/server"
	"github.com/Masterofowls/Player/internal/tunnel"
)

func main() {
	configPath := flag.String("config", "./config.toml", "path to the configuration file")
	flag.Parse()

	// Initialize basic logger for startup
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	// Load .env if present (tunnel auth token and friends).
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			logger.WithError(err).Warn("Could not load .env file")
		}
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		logger.WithError(err).Fatal("Error loading configuration")
	}

	configureLogger(logger, &cfg.Logging)

	if _, err := os.Stat(cfg.Library.MediaPath); os.IsNotExist(err) {
		logger.WithField("media_path", cfg.Library.MediaPath).Fatal("Media directory does not exist. Please create it and add your music files.")
	}

	store, err := library.OpenStore(cfg.Library.DatabasePath, logger)
	if err != nil {
		logger.WithError(err).Fatal("Error opening library store")
	}
	defer store.Close()

	if cfg.Library.ScanOnStartup {
		extractor := library.NewExtractor(cfg.Library.SupportedFormats, logger)
		scanner := library.NewScanner(store, extractor, cfg.Library.MediaPath, logger)
		count, err := scanner.Scan()
		if err != nil {
			logger.WithError(err).Fatal("Error scanning music library")
		}
		if count == 0 {
			logger.WithField("supported_formats", cfg.Library.SupportedFormats).Warn("No supported audio files found in media directory")
		}
	}

	if cfg.Artists.Enabled {
		generateArtistPages(cfg, store, logger)
	}

	srv, err := server.NewServer(cfg, store, logger)
	if err != nil {
		logger.WithError(err).Fatal("Error creating player server")
	}

	tun, err := tunnel.NewService(&cfg.Tunnel, logger)
	if err != nil {
		logger.WithError(err).Warn("Tunnel service not available")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if tun != nil {
		if err := tun.Start(ctx, "http://"+cfg.GetAddress()); err != nil {
			logger.WithError(err).Warn("Could not start tunnel")
		} else {
			defer tun.Stop()
		}
	}

	if err := srv.Start(ctx); err != nil {
		logger.WithError(err).Fatal("Server failed")
	}
}

func configureLogger(logger *logrus.Logger, cfg *config.LoggingConfig) {
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if cfg.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}

	if cfg.File != "" {
		f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			logger.WithError(err).Warn("Could not open log file, logging to stderr")
		} else {
			logger.SetOutput(f)
		}
	}
}

func generateArtistPages(cfg *config.Config, store *library.Store, logger *logrus.Logger) {
	tracks, err := store.Tracks()
	if err != nil {
		logger.WithError(err).Warn("Could not load tracks for artist pages")
		return
	}
	gen := artists.NewGenerator(cfg.Artists.OutputDir, cfg.Artists.InfoPath, logger)
	if err := gen.Generate(catalog.FromTracks(tracks)); err != nil {
		logger.WithError(err).Warn("Could not generate artist pages")
	}
}
