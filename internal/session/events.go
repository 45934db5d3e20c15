package session

import (
	"sync"

	"github.com/Masterofowls/Player/internal/catalog"
	"github.com/Masterofowls/Player/pkg/models"
)

// EventType identifies a state-change notification.
type EventType string

const (
	EventTrackLoaded          EventType = "trackLoaded"
	EventPlaybackStateChanged EventType = "playbackStateChanged"
	EventProgressUpdated      EventType = "progressUpdated"
	EventSearchResultsChanged EventType = "searchResultsChanged"
	EventError                EventType = "error"
)

// Event is a state-change notification emitted to the presentation adapter.
// Only the fields relevant to the event type are populated.
type Event struct {
	Type EventType `json:"event"`

	// TrackLoaded, PlaybackStateChanged
	State *State        `json:"state,omitempty"`
	Track *models.Track `json:"track,omitempty"`

	// ProgressUpdated
	Position float64 `json:"position,omitempty"`
	Duration float64 `json:"duration,omitempty"`

	// SearchResultsChanged
	Results []catalog.Entry `json:"results,omitempty"`
	Visible bool            `json:"visible,omitempty"`

	// Error
	Err *Error `json:"error,omitempty"`
}

// Bus fans events out to subscribers over buffered channels. A subscriber
// that stops draining is dropped rather than blocking the session.
type Bus struct {
	mu          sync.Mutex
	subscribers []chan Event
}

// NewBus creates an event bus.
func NewBus() *Bus {
	return &Bus{}
}

// Subscribe registers a listener and returns its channel plus a disposer.
// Call the disposer when done to release the channel.
func (b *Bus) Subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Event, 16)
	b.subscribers = append(b.subscribers, ch)

	return ch, func() { b.unsubscribe(ch) }
}

func (b *Bus) unsubscribe(ch chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, sub := range b.subscribers {
		if sub == ch {
			close(sub)
			b.subscribers = append(b.subscribers[:i], b.subscribers[i+1:]...)
			return
		}
	}
}

// Publish delivers an event to every subscriber without blocking. Subscribers
// with a full channel are closed and removed.
func (b *Bus) Publish(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	kept := b.subscribers[:0]
	for _, sub := range b.subscribers {
		select {
		case sub <- ev:
			kept = append(kept, sub)
		default:
			close(sub)
		}
	}
	b.subscribers = kept
}
