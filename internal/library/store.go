package library

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"

	"github.com/Masterofowls/Player/pkg/models"
)

// ScannedTrack is a catalog track plus the ingestion-only fields the library
// keeps for serving and stats but never exposes in the catalog document.
type ScannedTrack struct {
	Track    models.Track
	Duration int // seconds
	FilePath string
	FileSize int64
}

// Store persists the scanned library in SQLite, keyed by the track's src
// identity. The catalog document served to the player is exported from here,
// in insertion order. Safe for concurrent use; *sql.DB serializes access.
type Store struct {
	conn *sql.DB
	log  *logrus.Logger

	upsertStmt *sql.Stmt
	removeStmt *sql.Stmt
	existsStmt *sql.Stmt
}

// OpenStore opens (or creates) the library database at path and ensures the
// schema exists. Caller should Close it when finished.
func OpenStore(path string, logger *logrus.Logger) (*Store, error) {
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	conn, err := sql.Open("sqlite3", path+"?cache=shared&mode=rwc")
	if err != nil {
		return nil, fmt.Errorf("failed to open library database: %w", err)
	}

	conn.SetMaxOpenConns(5)
	conn.SetMaxIdleConns(2)
	conn.SetConnMaxLifetime(15 * time.Minute)

	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA temp_store=memory;",
	}
	for _, pragma := range pragmas {
		if _, err := conn.Exec(pragma); err != nil {
			logger.WithError(err).WithField("pragma", pragma).Warn("Failed to set pragma")
		}
	}

	s := &Store{conn: conn, log: logger}
	if err := s.createSchema(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	if err := s.prepareStatements(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to prepare statements: %w", err)
	}

	logger.WithField("db_path", path).Info("Library store initialized")
	return s, nil
}

func (s *Store) createSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS tracks (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		title TEXT NOT NULL,
		artist TEXT NOT NULL,
		src TEXT NOT NULL UNIQUE,
		album_art TEXT,
		duration INTEGER DEFAULT 0,
		file_path TEXT NOT NULL,
		file_size INTEGER NOT NULL DEFAULT 0,
		added_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);`
	if _, err := s.conn.Exec(schema); err != nil {
		return err
	}

	indices := []string{
		"CREATE INDEX IF NOT EXISTS idx_tracks_artist ON tracks(artist);",
		"CREATE INDEX IF NOT EXISTS idx_tracks_search ON tracks(title, artist);",
		"CREATE INDEX IF NOT EXISTS idx_tracks_file_path ON tracks(file_path);",
	}
	for _, idx := range indices {
		if _, err := s.conn.Exec(idx); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) prepareStatements() error {
	var err error

	s.upsertStmt, err = s.conn.Prepare(`
		INSERT INTO tracks (title, artist, src, album_art, duration, file_path, file_size)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(src) DO UPDATE SET
			title = excluded.title,
			artist = excluded.artist,
			album_art = excluded.album_art,
			duration = excluded.duration,
			file_path = excluded.file_path,
			file_size = excluded.file_size`)
	if err != nil {
		return err
	}

	s.removeStmt, err = s.conn.Prepare("DELETE FROM tracks WHERE file_path = ?")
	if err != nil {
		return err
	}

	s.existsStmt, err = s.conn.Prepare("SELECT COUNT(*) FROM tracks WHERE file_path = ?")
	return err
}

// Upsert inserts a scanned track or refreshes the row with the same src.
func (s *Store) Upsert(t ScannedTrack) error {
	_, err := s.upsertStmt.Exec(
		t.Track.Title, t.Track.Artist, t.Track.Src, t.Track.AlbumArt,
		t.Duration, t.FilePath, t.FileSize,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert track %q: %w", t.Track.Src, err)
	}
	return nil
}

// RemoveByPath deletes the track backed by the given audio file.
func (s *Store) RemoveByPath(filePath string) error {
	if _, err := s.removeStmt.Exec(filePath); err != nil {
		return fmt.Errorf("failed to remove track for %q: %w", filePath, err)
	}
	return nil
}

// ExistsByPath reports whether a track backed by the given file is stored.
func (s *Store) ExistsByPath(filePath string) (bool, error) {
	var count int
	if err := s.existsStmt.QueryRow(filePath).Scan(&count); err != nil {
		return false, fmt.Errorf("failed to check track existence: %w", err)
	}
	return count > 0, nil
}

// Tracks returns the catalog tracks in insertion order; this is the order
// the catalog document carries.
func (s *Store) Tracks() ([]models.Track, error) {
	rows, err := s.conn.Query(
		"SELECT title, artist, src, COALESCE(album_art, '') FROM tracks ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to query tracks: %w", err)
	}
	defer rows.Close()

	var tracks []models.Track
	for rows.Next() {
		var t models.Track
		if err := rows.Scan(&t.Title, &t.Artist, &t.Src, &t.AlbumArt); err != nil {
			return nil, fmt.Errorf("failed to scan track row: %w", err)
		}
		tracks = append(tracks, t)
	}
	return tracks, rows.Err()
}

// PathForSrc resolves a track's src identity to the audio file backing it.
func (s *Store) PathForSrc(src string) (string, error) {
	var path string
	err := s.conn.QueryRow("SELECT file_path FROM tracks WHERE src = ?", src).Scan(&path)
	if err == sql.ErrNoRows {
		return "", fmt.Errorf("no track with src %q", src)
	}
	if err != nil {
		return "", fmt.Errorf("failed to resolve src %q: %w", src, err)
	}
	return path, nil
}

// Count returns the number of stored tracks.
func (s *Store) Count() (int, error) {
	var count int
	if err := s.conn.QueryRow("SELECT COUNT(*) FROM tracks").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count tracks: %w", err)
	}
	return count, nil
}

// WriteDocument exports the catalog document (ordered JSON array of tracks)
// to w. This is the contract the playback core loads at session startup.
func (s *Store) WriteDocument(w io.Writer) error {
	tracks, err := s.Tracks()
	if err != nil {
		return err
	}
	if tracks == nil {
		tracks = []models.Track{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(tracks)
}

// Close releases prepared statements and the connection.
func (s *Store) Close() error {
	for _, stmt := range []*sql.Stmt{s.upsertStmt, s.removeStmt, s.existsStmt} {
		if stmt != nil {
			stmt.Close()
		}
	}
	return s.conn.Close()
}
