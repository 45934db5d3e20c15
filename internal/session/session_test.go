package session

import (
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Masterofowls/Player/internal/catalog"
	"github.com/Masterofowls/Player/pkg/models"
)

type loadCall struct {
	generation uint64
	src        string
}

// fakeResource records every command the session issues. Completions are
// delivered explicitly by the tests, mirroring the asynchronous contract.
type fakeResource struct {
	mu      sync.Mutex
	loads   []loadCall
	playErr error
	plays   int
	pauses  int
	seeks   []float64
	volume  float64
}

func (f *fakeResource) Load(generation uint64, src string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loads = append(f.loads, loadCall{generation: generation, src: src})
}

func (f *fakeResource) Play() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.playErr != nil {
		return f.playErr
	}
	f.plays++
	return nil
}

func (f *fakeResource) Pause() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pauses++
}

func (f *fakeResource) Seek(seconds float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seeks = append(f.seeks, seconds)
}

func (f *fakeResource) SetVolume(level float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.volume = level
}

func (f *fakeResource) lastLoad() loadCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.loads) == 0 {
		return loadCall{}
	}
	return f.loads[len(f.loads)-1]
}

func (f *fakeResource) loadCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.loads)
}

func testTracks(n int) []models.Track {
	tracks := make([]models.Track, n)
	for i := range tracks {
		tracks[i] = models.Track{
			Title:  fmt.Sprintf("Song%d", i+1),
			Artist: fmt.Sprintf("Artist%d", i+1),
			Src:    fmt.Sprintf("/media/%d.mp3", i),
		}
	}
	return tracks
}

func newTestSession(n int) (*Session, *fakeResource) {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	res := &fakeResource{}
	s := New(catalog.FromTracks(testTracks(n)), res, Options{
		Rand:   rand.New(rand.NewSource(7)),
		Logger: logger,
	})
	return s, res
}

// completeLoad acknowledges the most recent load issued to the resource.
func completeLoad(s *Session, res *fakeResource) {
	s.HandleLoaded(res.lastLoad().generation, 180)
}

func TestLoadTrackOutOfRange(t *testing.T) {
	s, res := newTestSession(3)

	if err := s.LoadTrack(5); !errors.Is(err, ErrIndexOutOfRange) {
		t.Fatalf("LoadTrack(5) error = %v, want ErrIndexOutOfRange", err)
	}
	if err := s.LoadTrack(-1); !errors.Is(err, ErrIndexOutOfRange) {
		t.Fatalf("LoadTrack(-1) error = %v, want ErrIndexOutOfRange", err)
	}

	state := s.State()
	if state.Status != StatusIdle || state.Index != -1 {
		t.Errorf("state after rejected load = %s/%d, want idle/-1", state.Status, state.Index)
	}
	if res.loadCount() != 0 {
		t.Errorf("resource received %d loads, want 0", res.loadCount())
	}
}

func TestLoadTrackComesUpPaused(t *testing.T) {
	s, res := newTestSession(3)

	if err := s.LoadTrack(0); err != nil {
		t.Fatalf("LoadTrack(0) error: %v", err)
	}
	if got := s.State().Status; got != StatusLoading {
		t.Fatalf("status = %s, want loading", got)
	}

	completeLoad(s, res)

	state := s.State()
	if state.Status != StatusReady {
		t.Errorf("status = %s, want ready", state.Status)
	}
	if state.Playing {
		t.Error("track should come up paused")
	}
	if state.Index != 0 {
		t.Errorf("index = %d, want 0", state.Index)
	}
	if state.Duration != 180 {
		t.Errorf("duration = %v, want 180", state.Duration)
	}
}

func TestPlayWhileLoadingIsDropped(t *testing.T) {
	s, res := newTestSession(3)

	if err := s.LoadTrack(0); err != nil {
		t.Fatal(err)
	}
	if err := s.Play(); !errors.Is(err, ErrBusyLoading) {
		t.Fatalf("Play() during load = %v, want ErrBusyLoading", err)
	}
	if res.plays != 0 {
		t.Errorf("resource received %d plays, want 0", res.plays)
	}
}

func TestStaleCompletionIsDiscarded(t *testing.T) {
	s, res := newTestSession(3)

	if err := s.LoadTrack(0); err != nil {
		t.Fatal(err)
	}
	stale := res.lastLoad().generation

	// Supersede the first load before it completes.
	if err := s.LoadTrack(1); err != nil {
		t.Fatal(err)
	}

	s.HandleLoaded(stale, 90)
	if got := s.State().Status; got != StatusLoading {
		t.Errorf("stale completion changed status to %s", got)
	}

	completeLoad(s, res)
	state := s.State()
	if state.Status != StatusReady || state.Index != 1 {
		t.Errorf("state = %s/%d, want ready/1", state.Status, state.Index)
	}
}

func TestNextThenPreviousReturnsToOriginalIndex(t *testing.T) {
	s, res := newTestSession(3)

	if err := s.PlayFromQueue(1); err != nil {
		t.Fatal(err)
	}
	completeLoad(s, res)

	if err := s.Next(); err != nil {
		t.Fatal(err)
	}
	completeLoad(s, res)
	if got := s.State().Index; got != 2 {
		t.Fatalf("index after next = %d, want 2", got)
	}

	if err := s.Previous(); err != nil {
		t.Fatal(err)
	}
	completeLoad(s, res)
	if got := s.State().Index; got != 1 {
		t.Errorf("index after next+previous = %d, want 1", got)
	}
}

func TestNextAutoplaysAndWraps(t *testing.T) {
	s, res := newTestSession(2)

	if err := s.LoadTrack(0); err != nil {
		t.Fatal(err)
	}
	completeLoad(s, res)

	if err := s.Next(); err != nil {
		t.Fatal(err)
	}
	completeLoad(s, res)
	state := s.State()
	if state.Index != 1 || !state.Playing {
		t.Fatalf("after next: index=%d playing=%v, want 1/true", state.Index, state.Playing)
	}

	// Repeat is off; an explicit next still wraps.
	if err := s.Next(); err != nil {
		t.Fatal(err)
	}
	completeLoad(s, res)
	state = s.State()
	if state.Index != 0 || !state.Playing {
		t.Errorf("after wrap: index=%d playing=%v, want 0/true", state.Index, state.Playing)
	}
}

func TestRepeatAllAdvancesFromLastTrack(t *testing.T) {
	s, res := newTestSession(2)

	if got := s.ToggleRepeat(); got != RepeatOne {
		t.Fatalf("first toggle = %s, want one", got)
	}
	if got := s.ToggleRepeat(); got != RepeatAll {
		t.Fatalf("second toggle = %s, want all", got)
	}

	if err := s.PlayFromQueue(1); err != nil {
		t.Fatal(err)
	}
	completeLoad(s, res)

	s.HandleEnded(res.lastLoad().generation)
	completeLoad(s, res)

	state := s.State()
	if state.Index != 0 || !state.Playing {
		t.Errorf("after ended with repeat all: index=%d playing=%v, want 0/true", state.Index, state.Playing)
	}
}

func TestRepeatOneReplaysSameIndex(t *testing.T) {
	s, res := newTestSession(3)
	s.ToggleRepeat() // one

	if err := s.PlayFromQueue(1); err != nil {
		t.Fatal(err)
	}
	completeLoad(s, res)

	loadsBefore := res.loadCount()
	s.HandleEnded(res.lastLoad().generation)

	state := s.State()
	if state.Index != 1 {
		t.Errorf("repeat one changed index to %d", state.Index)
	}
	if !state.Playing {
		t.Error("repeat one should keep playing")
	}
	if res.loadCount() != loadsBefore {
		t.Error("repeat one should not issue a new load")
	}
	if len(res.seeks) == 0 || res.seeks[len(res.seeks)-1] != 0 {
		t.Errorf("repeat one should seek to 0, seeks=%v", res.seeks)
	}
}

func TestRepeatOffStopsAtEndOfQueue(t *testing.T) {
	s, res := newTestSession(3)

	if err := s.PlayFromQueue(2); err != nil {
		t.Fatal(err)
	}
	completeLoad(s, res)

	loadsBefore := res.loadCount()
	s.HandleEnded(res.lastLoad().generation)

	state := s.State()
	if state.Playing {
		t.Error("playback should stop at end of queue with repeat off")
	}
	if state.Index != 2 {
		t.Errorf("index changed to %d at end of queue", state.Index)
	}
	if res.loadCount() != loadsBefore {
		t.Error("end of queue should not issue a new load")
	}
}

func TestRepeatOffAdvancesMidQueue(t *testing.T) {
	s, res := newTestSession(3)

	if err := s.PlayFromQueue(0); err != nil {
		t.Fatal(err)
	}
	completeLoad(s, res)

	s.HandleEnded(res.lastLoad().generation)
	completeLoad(s, res)

	if got := s.State().Index; got != 1 {
		t.Errorf("index after mid-queue ended = %d, want 1", got)
	}
}

func TestShuffleBehavesLikeRepeatAllOnEnded(t *testing.T) {
	s, res := newTestSession(3)

	if err := s.PlayFromQueue(0); err != nil {
		t.Fatal(err)
	}
	completeLoad(s, res)
	s.ToggleShuffle()

	// Repeat is off, but shuffle keeps the queue rolling forever.
	for i := 0; i < 6; i++ {
		s.HandleEnded(res.lastLoad().generation)
		completeLoad(s, res)
		if !s.State().Playing {
			t.Fatalf("playback stopped on shuffle continuation step %d", i)
		}
	}
}

func TestShuffleCycleVisitsEveryTrackOnce(t *testing.T) {
	const n = 8
	s, res := newTestSession(n)

	if err := s.PlayFromQueue(0); err != nil {
		t.Fatal(err)
	}
	completeLoad(s, res)
	s.ToggleShuffle()

	visited := make(map[int]int)
	for i := 0; i < n; i++ {
		if err := s.Next(); err != nil {
			t.Fatal(err)
		}
		completeLoad(s, res)
		visited[s.State().Index]++
	}

	if len(visited) != n {
		t.Fatalf("n calls to next visited %d distinct tracks, want %d", len(visited), n)
	}
	for idx, count := range visited {
		if count != 1 {
			t.Errorf("track %d visited %d times in one cycle", idx, count)
		}
	}
	// The cycle closes on the starting track.
	if got := s.State().Index; got != 0 {
		t.Errorf("cycle ended on index %d, want 0", got)
	}
}

func TestShuffleDesyncFallsBackToCatalogOrder(t *testing.T) {
	s, res := newTestSession(3)
	events, dispose := s.Events().Subscribe()
	defer dispose()

	s.ToggleShuffle() // order generated over 3 tracks

	// Appending after the order exists leaves the new track outside it.
	idx := s.ResolveOrAppend(models.Track{Title: "Extra", Artist: "ArtistX", Src: "/media/extra.mp3"})
	if idx != 3 {
		t.Fatalf("appended index = %d, want 3", idx)
	}
	if err := s.PlayFromQueue(idx); err != nil {
		t.Fatal(err)
	}
	completeLoad(s, res)

	if err := s.Next(); err != nil {
		t.Fatal(err)
	}
	// Catalog-order fallback from the appended last index wraps to 0.
	completeLoad(s, res)
	if got := s.State().Index; got != 0 {
		t.Errorf("fallback step landed on %d, want 0", got)
	}

	if !drainForErrorKind(t, events, KindShuffleDesync) {
		t.Error("expected a shuffleDesync error event")
	}
}

func TestPlaybackRejectionLeavesStateUntouched(t *testing.T) {
	s, res := newTestSession(2)
	events, dispose := s.Events().Subscribe()
	defer dispose()

	if err := s.LoadTrack(0); err != nil {
		t.Fatal(err)
	}
	completeLoad(s, res)

	res.playErr = errors.New("user gesture required")
	if err := s.Play(); err == nil {
		t.Fatal("Play() should surface the resource rejection")
	}

	if s.State().Playing {
		t.Error("rejected play must not set isPlaying")
	}
	if !drainForErrorKind(t, events, KindPlaybackRejected) {
		t.Error("expected a playbackRejected error event")
	}
}

func TestAsyncRejectionRevertsPlaying(t *testing.T) {
	s, res := newTestSession(2)

	if err := s.PlayFromQueue(0); err != nil {
		t.Fatal(err)
	}
	completeLoad(s, res)
	if !s.State().Playing {
		t.Fatal("expected playing after autoplay")
	}

	s.HandleRejected(res.lastLoad().generation, "autoplay blocked")
	if s.State().Playing {
		t.Error("async rejection must revert isPlaying")
	}
}

func TestLoadErrorKeepsSessionUsable(t *testing.T) {
	s, res := newTestSession(2)
	events, dispose := s.Events().Subscribe()
	defer dispose()

	if err := s.LoadTrack(0); err != nil {
		t.Fatal(err)
	}
	s.HandleLoadError(res.lastLoad().generation, "decode failed")

	state := s.State()
	if state.Status != StatusIdle || state.Playing {
		t.Errorf("state after load error = %s/playing=%v, want idle/false", state.Status, state.Playing)
	}
	if !drainForErrorKind(t, events, KindLoadError) {
		t.Error("expected a loadError event")
	}

	// Picking another track still works.
	if err := s.LoadTrack(1); err != nil {
		t.Fatal(err)
	}
	completeLoad(s, res)
	if got := s.State().Status; got != StatusReady {
		t.Errorf("status after recovery load = %s, want ready", got)
	}
}

func TestLoadTimeoutSurfaces(t *testing.T) {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	res := &fakeResource{}
	s := New(catalog.FromTracks(testTracks(2)), res, Options{
		LoadTimeout: 20 * time.Millisecond,
		Logger:      logger,
	})
	events, dispose := s.Events().Subscribe()
	defer dispose()

	if err := s.LoadTrack(0); err != nil {
		t.Fatal(err)
	}

	deadline := time.After(time.Second)
	for {
		select {
		case ev := <-events:
			if ev.Type == EventError && ev.Err != nil && ev.Err.Kind == KindLoadTimeout {
				if got := s.State().Status; got != StatusIdle {
					t.Errorf("status after timeout = %s, want idle", got)
				}
				return
			}
		case <-deadline:
			t.Fatal("timed out waiting for loadTimeout event")
		}
	}
}

func TestSetVolumeClamps(t *testing.T) {
	s, res := newTestSession(1)

	s.SetVolume(150)
	if got := s.State().Volume; got != 100 {
		t.Errorf("volume = %d, want 100", got)
	}
	if res.volume != 1.0 {
		t.Errorf("resource volume = %v, want 1.0", res.volume)
	}

	s.SetVolume(-10)
	if got := s.State().Volume; got != 0 {
		t.Errorf("volume = %d, want 0", got)
	}
	if res.volume != 0 {
		t.Errorf("resource volume = %v, want 0", res.volume)
	}
}

func TestSeekClampsToTrackBounds(t *testing.T) {
	s, res := newTestSession(1)

	if err := s.LoadTrack(0); err != nil {
		t.Fatal(err)
	}
	completeLoad(s, res) // duration 180

	s.Seek(500)
	if got := s.State().Position; got != 180 {
		t.Errorf("position after over-seek = %v, want 180", got)
	}

	s.Seek(-3)
	if got := s.State().Position; got != 0 {
		t.Errorf("position after negative seek = %v, want 0", got)
	}
}

func TestResolveOrAppend(t *testing.T) {
	s, _ := newTestSession(3)

	existing := testTracks(3)[1]
	if idx := s.ResolveOrAppend(existing); idx != 1 {
		t.Errorf("ResolveOrAppend(existing) = %d, want 1", idx)
	}
	if got := s.Queue().Len(); got != 3 {
		t.Errorf("queue grew to %d for an existing src", got)
	}

	idx := s.ResolveOrAppend(models.Track{Title: "Outside", Artist: "ArtistX", Src: "/media/outside.mp3"})
	if idx != 3 {
		t.Errorf("ResolveOrAppend(new) = %d, want 3", idx)
	}
	if got := s.Queue().Len(); got != 4 {
		t.Errorf("queue size = %d, want 4", got)
	}
}

func TestSupersededNextCollapsesToLatestIntent(t *testing.T) {
	s, res := newTestSession(4)

	if err := s.PlayFromQueue(0); err != nil {
		t.Fatal(err)
	}
	completeLoad(s, res)

	// Two rapid skips before anything finishes loading: only the latest
	// target may complete and play.
	if err := s.Next(); err != nil {
		t.Fatal(err)
	}
	first := res.lastLoad().generation
	if err := s.Next(); err != nil {
		t.Fatal(err)
	}

	s.HandleLoaded(first, 120)
	if got := s.State().Status; got != StatusLoading {
		t.Fatalf("superseded load completed, status = %s", got)
	}

	completeLoad(s, res)
	state := s.State()
	if state.Index != 2 || !state.Playing {
		t.Errorf("state = index %d playing %v, want 2/true", state.Index, state.Playing)
	}
}

// drainForErrorKind scans buffered events for an error of the given kind.
func drainForErrorKind(t *testing.T, events <-chan Event, kind ErrorKind) bool {
	t.Helper()
	for {
		select {
		case ev := <-events:
			if ev.Type == EventError && ev.Err != nil && ev.Err.Kind == kind {
				return true
			}
		default:
			return false
		}
	}
}
