package session

import "errors"

// ErrorKind classifies player errors for the presentation adapter.
type ErrorKind string

const (
	KindIndexOutOfRange  ErrorKind = "indexOutOfRange"
	KindLoadError        ErrorKind = "loadError"
	KindLoadTimeout      ErrorKind = "loadTimeout"
	KindPlaybackRejected ErrorKind = "playbackRejected"
	KindShuffleDesync    ErrorKind = "shuffleDesync"
)

// Error is the typed form in which async resource failures surface. None of
// them propagate as faults; they are caught at the session boundary and
// published as error events.
type Error struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}

func (e *Error) Error() string {
	return string(e.Kind) + ": " + e.Message
}

// Sentinel errors returned by transport operations. These are command-level
// rejections, logged and ignored rather than surfaced to the user.
var (
	// ErrIndexOutOfRange is returned by LoadTrack for an index outside the
	// queue. No state changes.
	ErrIndexOutOfRange = errors.New("track index out of range")

	// ErrBusyLoading is returned by Play while a track load is in flight.
	// The command is dropped, not queued.
	ErrBusyLoading = errors.New("player is loading a track")

	// ErrNoTrack is returned by transport commands when no track is loaded.
	ErrNoTrack = errors.New("no track loaded")

	// ErrEmptyQueue is returned by Next/Previous on an empty queue.
	ErrEmptyQueue = errors.New("queue is empty")
)
