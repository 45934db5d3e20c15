package library

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dhowden/tag"
	"github.com/go-audio/wav"
	"github.com/mewkiz/flac"
	"github.com/sirupsen/logrus"
	"github.com/tcolgate/mp3"
)

// Extractor reads metadata from audio files and turns them into catalog
// tracks: title and artist from the tags, album art embedded as a data URI,
// duration decoded per format.
type Extractor struct {
	supportedFormats []string
	log              *logrus.Logger
}

// NewExtractor creates an extractor for the given formats (extensions with
// leading dot, e.g. ".mp3").
func NewExtractor(supportedFormats []string, logger *logrus.Logger) *Extractor {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Extractor{supportedFormats: supportedFormats, log: logger}
}

// ExtractFromFile builds a scanned track from an audio file. src is the
// track's serving URI and identity; ordinal (1-based) feeds the "Track {n}"
// title fallback for untagged files.
func (e *Extractor) ExtractFromFile(filePath, src string, ordinal int) (ScannedTrack, error) {
	startTime := time.Now()

	file, err := os.Open(filePath)
	if err != nil {
		return ScannedTrack{}, fmt.Errorf("failed to open audio file: %w", err)
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return ScannedTrack{}, fmt.Errorf("failed to stat audio file: %w", err)
	}

	duration, err := e.duration(filePath)
	if err != nil {
		e.log.WithError(err).WithField("file_path", filePath).Warn("Failed to calculate duration, setting to 0")
		duration = 0
	}

	scanned := ScannedTrack{
		Duration: duration,
		FilePath: filePath,
		FileSize: stat.Size(),
	}
	scanned.Track.Src = src
	scanned.Track.Title = fmt.Sprintf("Track %d", ordinal)
	scanned.Track.Artist = "Unknown Artist"

	meta, err := tag.ReadFrom(file)
	if err != nil {
		e.log.WithError(err).WithField("file_path", filePath).Warn("Failed to read tags, using fallbacks")
		return scanned, nil
	}

	if title := strings.TrimSpace(meta.Title()); title != "" {
		scanned.Track.Title = title
	}
	if artist := strings.TrimSpace(meta.Artist()); artist != "" {
		scanned.Track.Artist = artist
	}
	scanned.Track.AlbumArt = albumArtDataURI(meta)

	e.log.WithFields(logrus.Fields{
		"file_path":       filePath,
		"title":           scanned.Track.Title,
		"artist":          scanned.Track.Artist,
		"duration":        duration,
		"has_album_art":   scanned.Track.AlbumArt != "",
		"processing_time": time.Since(startTime),
	}).Debug("Extracted track metadata")

	return scanned, nil
}

// albumArtDataURI encodes embedded artwork as a data URI so the catalog
// document is self-contained. Empty when the file carries no picture.
func albumArtDataURI(meta tag.Metadata) string {
	pic := meta.Picture()
	if pic == nil || len(pic.Data) == 0 {
		return ""
	}
	mime := pic.MIMEType
	if mime == "" {
		mime = "image/jpeg"
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(pic.Data)
}

// duration decodes just enough of the file to compute its length in seconds.
func (e *Extractor) duration(filePath string) (int, error) {
	switch strings.ToLower(filepath.Ext(filePath)) {
	case ".mp3":
		return durationMP3(filePath)
	case ".flac":
		return durationFLAC(filePath)
	case ".wav":
		return durationWAV(filePath)
	default:
		return 0, fmt.Errorf("unsupported format: %s", filepath.Ext(filePath))
	}
}

// MP3 duration by summing frame durations; a partial decode uses what it got.
func durationMP3(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	dec := mp3.NewDecoder(f)
	var total time.Duration
	var skipped int
	frames := 0
	for {
		var fr mp3.Frame
		if err := dec.Decode(&fr, &skipped); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			if frames == 0 {
				return 0, fmt.Errorf("could not decode any mp3 frame: %w", err)
			}
			break
		}
		total += fr.Duration()
		frames++
	}
	return int(total.Seconds()), nil
}

// FLAC duration via the STREAMINFO metadata block.
func durationFLAC(path string) (int, error) {
	stream, err := flac.ParseFile(path)
	if err != nil {
		return 0, err
	}
	si := stream.Info
	if si.NSamples > 0 && si.SampleRate > 0 {
		secs := float64(si.NSamples) / float64(si.SampleRate)
		return int(secs + 0.5), nil
	}
	return 0, fmt.Errorf("flac stream missing sample info")
}

// WAV duration from the header, approximating sample count from file size.
func durationWAV(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return 0, fmt.Errorf("invalid wav file")
	}
	if dec.SampleRate == 0 || dec.BitDepth == 0 || dec.NumChans == 0 {
		return 0, fmt.Errorf("invalid wav header")
	}

	st, err := f.Stat()
	if err != nil {
		return 0, err
	}
	pcmBytes := st.Size() - 44 // standard header size
	if pcmBytes < 0 {
		pcmBytes = 0
	}
	bytesPerFrame := int64(dec.BitDepth/8) * int64(dec.NumChans)
	if bytesPerFrame <= 0 {
		return 0, fmt.Errorf("invalid sample frame size")
	}
	secs := float64(pcmBytes/bytesPerFrame) / float64(dec.SampleRate)
	return int(secs + 0.5), nil
}

// IsAudioFile checks if a file has a supported audio extension.
func (e *Extractor) IsAudioFile(filePath string) bool {
	ext := strings.ToLower(filepath.Ext(filePath))
	for _, format := range e.supportedFormats {
		if ext == format {
			return true
		}
	}
	return false
}

// ContentType returns the MIME type for an audio file by extension.
func (e *Extractor) ContentType(filePath string) string {
	switch strings.ToLower(filepath.Ext(filePath)) {
	case ".mp3":
		return "audio/mpeg"
	case ".flac":
		return "audio/flac"
	case ".wav":
		return "audio/wav"
	default:
		return "application/octet-stream"
	}
}
