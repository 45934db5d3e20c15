package catalog

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/Masterofowls/Player/pkg/models"
)

// LoadError reports a catalog document that could not be loaded: missing,
// unparsable, or not a sequence of valid track shapes. It is fatal to session
// initialization.
type LoadError struct {
	Reason string
	Err    error
}

func (e *LoadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("catalog load: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("catalog load: %s", e.Reason)
}

func (e *LoadError) Unwrap() error { return e.Err }

// Entry pairs a track with its original catalog index, preserved through
// filtering so results can be mapped back to the queue.
type Entry struct {
	Index int
	Track models.Track
}

// Catalog is the ordered list of all known tracks for a session. Indices are
// stable for the session's lifetime; the only permitted mutation is appending
// a search-promoted track, which the owning playback session performs.
type Catalog struct {
	mu     sync.RWMutex
	tracks []models.Track
}

// Load reads a catalog document (an ordered JSON array of track objects) and
// normalizes it. Missing titles fall back to "Track {ordinal}" and missing
// artists to "Unknown Artist", applied once here so no caller ever needs a
// fallback. A track without a src has no identity and fails the load.
func Load(r io.Reader) (*Catalog, error) {
	var tracks []models.Track
	if err := json.NewDecoder(r).Decode(&tracks); err != nil {
		return nil, &LoadError{Reason: "unparsable document", Err: err}
	}

	for i := range tracks {
		if strings.TrimSpace(tracks[i].Src) == "" {
			return nil, &LoadError{Reason: fmt.Sprintf("track %d has no src", i)}
		}
		if strings.TrimSpace(tracks[i].Title) == "" {
			tracks[i].Title = fmt.Sprintf("Track %d", i+1)
		}
		if strings.TrimSpace(tracks[i].Artist) == "" {
			tracks[i].Artist = "Unknown Artist"
		}
	}

	return &Catalog{tracks: tracks}, nil
}

// FromTracks builds a catalog from an already-normalized track list. Used by
// the server when the document comes straight from the library store.
func FromTracks(tracks []models.Track) *Catalog {
	return &Catalog{tracks: append([]models.Track(nil), tracks...)}
}

// Len returns the number of tracks in the catalog.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.tracks)
}

// Track returns the track at the given index.
func (c *Catalog) Track(i int) (models.Track, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if i < 0 || i >= len(c.tracks) {
		return models.Track{}, false
	}
	return c.tracks[i], true
}

// Tracks returns a copy of the full track list in catalog order.
func (c *Catalog) Tracks() []models.Track {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]models.Track(nil), c.tracks...)
}

// Filter returns the tracks matching pred, in catalog order, each paired with
// its original index.
func (c *Catalog) Filter(pred func(models.Track) bool) []Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var out []Entry
	for i, t := range c.tracks {
		if pred(t) {
			out = append(out, Entry{Index: i, Track: t})
		}
	}
	return out
}

// IndexOfSrc locates a track by its src identity. Returns -1 when absent.
func (c *Catalog) IndexOfSrc(src string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for i, t := range c.tracks {
		if t.Src == src {
			return i
		}
	}
	return -1
}

// Append adds a track to the end of the catalog and returns its new index.
// Only the playback session calls this, when promoting a search result whose
// src is not already in the queue.
func (c *Catalog) Append(t models.Track) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tracks = append(c.tracks, t)
	return len(c.tracks) - 1
}

// PrimaryArtist reduces a (possibly multi-artist) credit to its display and
// grouping key: the text before the first "/" separator, trimmed.
func PrimaryArtist(artist string) string {
	name, _, _ := strings.Cut(artist, "/")
	return strings.TrimSpace(name)
}

// GroupByArtist maps primary artist name to that artist's tracks in catalog
// order. Consumed by the artist-page generator; playback never uses it.
func (c *Catalog) GroupByArtist() map[string][]models.Track {
	c.mu.RLock()
	defer c.mu.RUnlock()

	groups := make(map[string][]models.Track)
	for _, t := range c.tracks {
		key := PrimaryArtist(t.Artist)
		groups[key] = append(groups[key], t)
	}
	return groups
}

// ArtistNames returns the sorted primary artist names present in the catalog.
func (c *Catalog) ArtistNames() []string {
	groups := c.GroupByArtist()
	names := make([]string, 0, len(groups))
	for name := range groups {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
