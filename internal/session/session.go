package session

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Masterofowls/Player/internal/catalog"
	"github.com/Masterofowls/Player/pkg/models"
)

// RepeatMode selects the track-end behavior.
type RepeatMode string

const (
	RepeatOff RepeatMode = "off"
	RepeatOne RepeatMode = "one"
	RepeatAll RepeatMode = "all"
)

// Status is the session's lifecycle state.
type Status string

const (
	// StatusEmpty means no catalog has been loaded; no playback is possible.
	StatusEmpty Status = "empty"
	// StatusIdle means a catalog is loaded but no track is ready.
	StatusIdle Status = "idle"
	// StatusLoading means a track load is in flight.
	StatusLoading Status = "loading"
	// StatusReady means the current track is decoded and seekable.
	StatusReady Status = "ready"
)

// State is a snapshot of the session, safe to hand to the presentation
// adapter.
type State struct {
	Status     Status        `json:"status"`
	Track      *models.Track `json:"track,omitempty"`
	Index      int           `json:"index"` // -1 before the first load
	Playing    bool          `json:"isPlaying"`
	Repeat     RepeatMode    `json:"repeatMode"`
	Shuffled   bool          `json:"isShuffled"`
	Volume     int           `json:"volume"` // 0 to 100
	Position   float64       `json:"position"`
	Duration   float64       `json:"duration"`
	Generation uint64        `json:"generation"`
	QueueSize  int           `json:"queueSize"`
}

// Options configures a session.
type Options struct {
	// LoadTimeout bounds how long a track load may stay in flight before a
	// loadTimeout error is reported. Zero disables the bound.
	LoadTimeout time.Duration
	// InitialVolume is the starting volume, 0 to 100.
	InitialVolume int
	// Rand is the randomness source for shuffle orders. Defaults to a
	// time-seeded source.
	Rand *rand.Rand
	// Logger defaults to the standard logrus logger.
	Logger *logrus.Logger
}

// Session owns the audio resource and the transport state: current index,
// play/pause, repeat and shuffle modes. Every mutation happens under one
// mutex, so commands and resource completions are serialized no matter which
// goroutine delivers them.
//
// Each load stamps a monotonically increasing generation; completions carry
// the generation of the load that issued them, and anything stale is
// discarded. This is what keeps a superseded load from clobbering the track
// the user actually asked for.
type Session struct {
	mu       sync.Mutex
	log      *logrus.Logger
	bus      *Bus
	resource MediaResource
	queue    *catalog.Catalog
	rng      *rand.Rand

	status   Status
	current  int
	playing  bool
	repeat   RepeatMode
	shuffled bool
	order    []int

	generation uint64
	autoplay   bool // play as soon as the in-flight load is ready

	volume   int
	position float64
	duration float64

	loadTimeout time.Duration
	timeout     *time.Timer
}

// New creates a session over the given queue and audio resource. The session
// starts Empty when the queue has no tracks, Idle otherwise.
func New(queue *catalog.Catalog, resource MediaResource, opts Options) *Session {
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if opts.InitialVolume < 0 || opts.InitialVolume > 100 {
		opts.InitialVolume = 100
	}

	status := StatusIdle
	if queue == nil || queue.Len() == 0 {
		status = StatusEmpty
	}

	return &Session{
		log:         opts.Logger,
		bus:         NewBus(),
		resource:    resource,
		queue:       queue,
		rng:         opts.Rand,
		status:      status,
		current:     -1,
		repeat:      RepeatOff,
		volume:      opts.InitialVolume,
		loadTimeout: opts.LoadTimeout,
	}
}

// Events returns the session's event bus.
func (s *Session) Events() *Bus { return s.bus }

// Queue returns the working queue. The session is the only component allowed
// to grow it (search promotion).
func (s *Session) Queue() *catalog.Catalog { return s.queue }

// State returns a snapshot of the current session state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked()
}

func (s *Session) stateLocked() State {
	st := State{
		Status:     s.status,
		Index:      s.current,
		Playing:    s.playing,
		Repeat:     s.repeat,
		Shuffled:   s.shuffled,
		Volume:     s.volume,
		Position:   s.position,
		Duration:   s.duration,
		Generation: s.generation,
		QueueSize:  s.queue.Len(),
	}
	if t, ok := s.queue.Track(s.current); ok {
		st.Track = &t
	}
	return st
}

// LoadTrack binds the resource to the track at index and transitions to
// Loading. The track comes up paused; call Play (or use PlayFromQueue) for
// playback. An out-of-range index is logged and ignored.
func (s *Session) LoadTrack(index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadTrackLocked(index, false)
}

// PlayFromQueue loads the track at index and starts playback as soon as the
// load completes. This is the semantics behind track-card clicks, next,
// previous and search promotion.
func (s *Session) PlayFromQueue(index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadTrackLocked(index, true)
}

func (s *Session) loadTrackLocked(index int, autoplay bool) error {
	track, ok := s.queue.Track(index)
	if !ok {
		s.log.WithFields(logrus.Fields{
			"index":      index,
			"queue_size": s.queue.Len(),
		}).Warn("Ignoring load for out-of-range track index")
		return ErrIndexOutOfRange
	}

	// Pause before switching so a superseded track never keeps sounding.
	if s.playing {
		s.resource.Pause()
		s.playing = false
	}

	s.generation++
	s.stopTimeoutLocked()
	s.current = index
	s.status = StatusLoading
	s.position = 0
	s.duration = 0
	s.autoplay = autoplay

	s.resource.Load(s.generation, track.Src)

	if s.loadTimeout > 0 {
		gen := s.generation
		s.timeout = time.AfterFunc(s.loadTimeout, func() { s.loadTimedOut(gen) })
	}

	s.log.WithFields(logrus.Fields{
		"index":      index,
		"title":      track.Title,
		"generation": s.generation,
	}).Debug("Track load issued")
	return nil
}

// Play starts playback of the ready track. While a load is in flight the
// command is dropped and logged, never queued. A resource rejection (autoplay
// policy) is published as a playbackRejected error and leaves the transport
// state untouched.
func (s *Session) Play() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.status {
	case StatusLoading:
		s.log.Warn("Ignoring play command while a track load is in flight")
		return ErrBusyLoading
	case StatusReady:
		return s.playLocked()
	default:
		s.log.Warn("Ignoring play command with no track loaded")
		return ErrNoTrack
	}
}

func (s *Session) playLocked() error {
	if err := s.resource.Play(); err != nil {
		s.log.WithError(err).Warn("Resource rejected playback")
		s.bus.Publish(Event{Type: EventError, Err: &Error{
			Kind:    KindPlaybackRejected,
			Message: err.Error(),
		}})
		return err
	}
	s.playing = true
	s.publishStateLocked()
	return nil
}

// Pause pauses playback. A no-op unless a track is playing.
func (s *Session) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != StatusReady || !s.playing {
		return
	}
	s.resource.Pause()
	s.playing = false
	s.publishStateLocked()
}

// TogglePlay flips between play and pause.
func (s *Session) TogglePlay() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status == StatusLoading {
		s.log.Warn("Ignoring toggle-play command while a track load is in flight")
		return ErrBusyLoading
	}
	if s.status != StatusReady {
		return ErrNoTrack
	}
	if s.playing {
		s.resource.Pause()
		s.playing = false
		s.publishStateLocked()
		return nil
	}
	return s.playLocked()
}

// Next advances to the following track in play order (catalog order, or the
// shuffle order when shuffle is on) and plays it. Wraps at the end. Issued
// while a load is in flight it supersedes that load: latest intent wins.
func (s *Session) Next() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.advanceLocked(+1)
}

// Previous steps back one track in play order and plays it. Wraps at the
// start.
func (s *Session) Previous() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.advanceLocked(-1)
}

func (s *Session) advanceLocked(dir int) error {
	target, err := s.stepLocked(dir)
	if err != nil {
		return err
	}
	return s.loadTrackLocked(target, true)
}

// stepLocked computes the neighbor of the current index in play order.
func (s *Session) stepLocked(dir int) (int, error) {
	n := s.queue.Len()
	if n == 0 {
		return 0, ErrEmptyQueue
	}

	// Before the first load there is no current index; start at either end
	// of the play order.
	if s.current < 0 {
		if s.shuffled && len(s.order) > 0 {
			if dir > 0 {
				return s.order[0], nil
			}
			return s.order[len(s.order)-1], nil
		}
		if dir > 0 {
			return 0, nil
		}
		return n - 1, nil
	}

	if s.shuffled {
		pos := -1
		for i, idx := range s.order {
			if idx == s.current {
				pos = i
				break
			}
		}
		if pos >= 0 {
			return s.order[(pos+dir+len(s.order))%len(s.order)], nil
		}
		// The current index is not in the shuffle order (it was appended
		// after the order was generated, or the order is stale). Fall back
		// to deterministic catalog stepping and report the inconsistency.
		s.log.WithFields(logrus.Fields{
			"index":      s.current,
			"order_size": len(s.order),
		}).Warn("Current track missing from shuffle order, falling back to catalog order")
		s.bus.Publish(Event{Type: EventError, Err: &Error{
			Kind:    KindShuffleDesync,
			Message: fmt.Sprintf("track %d missing from shuffle order", s.current),
		}})
	}

	return (s.current + dir + n) % n, nil
}

// HandleLoaded is called by the resource transport when the in-flight load
// has decoded enough metadata to play. Stale generations are discarded.
func (s *Session) HandleLoaded(generation uint64, duration float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.currentGenerationLocked(generation, "loaded") || s.status != StatusLoading {
		return
	}
	s.stopTimeoutLocked()
	s.status = StatusReady
	s.duration = duration

	state := s.stateLocked()
	s.bus.Publish(Event{Type: EventTrackLoaded, State: &state, Track: state.Track})

	if s.autoplay {
		s.autoplay = false
		// Best effort: a rejection here is reported, not retried.
		_ = s.playLocked()
	}
}

// HandleLoadError is called when the in-flight load failed. The failure is
// reported once and not retried; the session stays usable.
func (s *Session) HandleLoadError(generation uint64, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.currentGenerationLocked(generation, "load error") || s.status != StatusLoading {
		return
	}
	s.failLoadLocked(KindLoadError, message)
}

// loadTimedOut fires when a load stayed in flight past the configured bound.
func (s *Session) loadTimedOut(generation uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if generation != s.generation || s.status != StatusLoading {
		return
	}
	s.failLoadLocked(KindLoadTimeout,
		fmt.Sprintf("track load exceeded %s", s.loadTimeout))
}

func (s *Session) failLoadLocked(kind ErrorKind, message string) {
	s.stopTimeoutLocked()
	s.status = StatusIdle
	s.playing = false
	s.autoplay = false

	s.log.WithFields(logrus.Fields{
		"index": s.current,
		"kind":  kind,
	}).Error(message)
	s.bus.Publish(Event{Type: EventError, Err: &Error{Kind: kind, Message: message}})
}

// HandleEnded is called when the resource reached end of media. Dispatch is
// purely on repeat mode: "one" replays in place, "all" always advances, and
// "off" advances until the last track of the queue, where playback stops.
// Shuffle behaves like "all" for continuation, matching the original player.
func (s *Session) HandleEnded(generation uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.currentGenerationLocked(generation, "ended") {
		return
	}

	switch {
	case s.repeat == RepeatOne:
		s.resource.Seek(0)
		s.position = 0
		_ = s.playLocked()
	case s.repeat == RepeatAll || s.shuffled:
		_ = s.advanceLocked(+1)
	case s.current < s.queue.Len()-1:
		_ = s.advanceLocked(+1)
	default:
		// End of queue.
		s.playing = false
		s.publishStateLocked()
	}
}

// HandleProgress updates the playback position from the resource.
func (s *Session) HandleProgress(generation uint64, position float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if generation != s.generation || s.status != StatusReady {
		return
	}
	s.position = position
	s.bus.Publish(Event{
		Type:     EventProgressUpdated,
		Position: s.position,
		Duration: s.duration,
	})
}

// HandleRejected is called when the resource reported an asynchronous
// playback rejection (e.g. an autoplay policy that only surfaces after the
// play call). The transport state is reverted; the user must gesture again.
func (s *Session) HandleRejected(generation uint64, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.currentGenerationLocked(generation, "rejected") {
		return
	}
	if s.playing {
		s.playing = false
		s.publishStateLocked()
	}
	s.log.WithField("reason", message).Warn("Playback rejected by resource")
	s.bus.Publish(Event{Type: EventError, Err: &Error{
		Kind:    KindPlaybackRejected,
		Message: message,
	}})
}

// ToggleShuffle flips shuffle mode. Enabling generates a fresh permutation
// over the current queue size, including any promote-appended tracks;
// disabling just discards it.
func (s *Session) ToggleShuffle() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.shuffled = !s.shuffled
	if s.shuffled {
		s.order = Permutation(s.queue.Len(), s.rng)
	} else {
		s.order = nil
	}
	s.publishStateLocked()
	return s.shuffled
}

// ToggleRepeat cycles off -> one -> all -> off.
func (s *Session) ToggleRepeat() RepeatMode {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.repeat {
	case RepeatOff:
		s.repeat = RepeatOne
	case RepeatOne:
		s.repeat = RepeatAll
	default:
		s.repeat = RepeatOff
	}
	s.publishStateLocked()
	return s.repeat
}

// SetVolume sets the volume on a 0-100 scale. Out-of-range values are
// clamped, not rejected.
func (s *Session) SetVolume(volume int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if volume < 0 {
		volume = 0
	} else if volume > 100 {
		volume = 100
	}
	s.volume = volume
	s.resource.SetVolume(float64(volume) / 100)
	s.publishStateLocked()
}

// Seek moves the playhead to the given position in seconds, clamped to the
// track bounds.
func (s *Session) Seek(seconds float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != StatusReady {
		return
	}
	if seconds < 0 {
		seconds = 0
	}
	if s.duration > 0 && seconds > s.duration {
		seconds = s.duration
	}
	s.resource.Seek(seconds)
	s.position = seconds
	s.bus.Publish(Event{
		Type:     EventProgressUpdated,
		Position: s.position,
		Duration: s.duration,
	})
}

// ResolveOrAppend maps a track to its queue index by src identity, appending
// it to the queue when absent. Used by search promotion; the appended track
// joins the shuffle order the next time shuffle is enabled.
func (s *Session) ResolveOrAppend(track models.Track) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if idx := s.queue.IndexOfSrc(track.Src); idx >= 0 {
		return idx
	}
	idx := s.queue.Append(track)
	s.log.WithFields(logrus.Fields{
		"src":   track.Src,
		"index": idx,
	}).Info("Appended promoted track to queue")
	return idx
}

func (s *Session) currentGenerationLocked(generation uint64, what string) bool {
	if generation != s.generation {
		s.log.WithFields(logrus.Fields{
			"completion": what,
			"stale":      generation,
			"current":    s.generation,
		}).Debug("Discarding stale resource completion")
		return false
	}
	return true
}

func (s *Session) publishStateLocked() {
	state := s.stateLocked()
	s.bus.Publish(Event{Type: EventPlaybackStateChanged, State: &state})
}

func (s *Session) stopTimeoutLocked() {
	if s.timeout != nil {
		s.timeout.Stop()
		s.timeout = nil
	}
}
