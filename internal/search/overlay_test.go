package search

import (
	"math/rand"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Masterofowls/Player/internal/catalog"
	"github.com/Masterofowls/Player/internal/session"
	"github.com/Masterofowls/Player/pkg/models"
)

type nullResource struct{}

func (nullResource) Load(uint64, string) {}
func (nullResource) Play() error         { return nil }
func (nullResource) Pause()              {}
func (nullResource) Seek(float64)        {}
func (nullResource) SetVolume(float64)   {}

// immediateScheduler runs the recomputation synchronously, collapsing the
// debounce for tests.
func immediateScheduler(_ time.Duration, fn func()) func() {
	fn()
	return func() {}
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func newTestOverlay(tracks []models.Track) (*Overlay, *session.Session) {
	sess := session.New(catalog.FromTracks(tracks), nullResource{}, session.Options{
		Rand:   rand.New(rand.NewSource(3)),
		Logger: quietLogger(),
	})
	return New(sess, Options{
		Scheduler: immediateScheduler,
		Logger:    quietLogger(),
	}), sess
}

func sampleTracks() []models.Track {
	return []models.Track{
		{Title: "Song1", Artist: "Artist1", Src: "/media/a.mp3"},
		{Title: "Song2", Artist: "Artist2", Src: "/media/b.mp3"},
		{Title: "Ballad", Artist: "Artist1 / Artist3", Src: "/media/c.mp3"},
	}
}

func TestEmptyQueryHidesOverlay(t *testing.T) {
	o, _ := newTestOverlay(sampleTracks())

	o.SetQuery("artist1")
	if !o.Visible() {
		t.Fatal("overlay should be visible after a matching query")
	}

	o.SetQuery("")
	if o.Visible() {
		t.Error("empty query must hide the overlay")
	}
	if got := len(o.Results()); got != 0 {
		t.Errorf("empty query left %d results", got)
	}

	o.SetQuery("   ")
	if o.Visible() {
		t.Error("whitespace-only query must hide the overlay")
	}
}

func TestQueryMatchesTitleAndArtistCaseInsensitive(t *testing.T) {
	o, _ := newTestOverlay(sampleTracks())

	tests := []struct {
		query string
		want  []int // expected original indices, catalog order
	}{
		{"ARTIST1", []int{0, 2}},
		{"song", []int{0, 1}},
		{"ballad", []int{2}},
		{"artist3", []int{2}},
		{"nomatch", nil},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			o.SetQuery(tt.query)
			results := o.Results()
			if len(results) != len(tt.want) {
				t.Fatalf("query %q returned %d results, want %d", tt.query, len(results), len(tt.want))
			}
			for i, entry := range results {
				if entry.Index != tt.want[i] {
					t.Errorf("result %d has index %d, want %d", i, entry.Index, tt.want[i])
				}
			}
		})
	}
}

func TestSetQueryIsIdempotent(t *testing.T) {
	o, _ := newTestOverlay(sampleTracks())

	o.SetQuery("artist1")
	first := o.Results()
	o.SetQuery("artist1")
	second := o.Results()

	if len(first) != len(second) {
		t.Fatalf("result counts differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i].Index != second[i].Index || first[i].Track.Src != second[i].Track.Src {
			t.Errorf("result %d differs between identical queries", i)
		}
	}
}

func TestDebounceCancelsPendingRecompute(t *testing.T) {
	var pending []func()
	deferredScheduler := func(_ time.Duration, fn func()) func() {
		i := len(pending)
		pending = append(pending, fn)
		return func() { pending[i] = nil }
	}

	sess := session.New(catalog.FromTracks(sampleTracks()), nullResource{}, session.Options{
		Logger: quietLogger(),
	})
	o := New(sess, Options{Scheduler: deferredScheduler, Logger: quietLogger()})

	o.SetQuery("song1")
	o.SetQuery("song2")

	// Only the latest recomputation survives.
	fired := 0
	for _, fn := range pending {
		if fn != nil {
			fn()
			fired++
		}
	}
	if fired != 1 {
		t.Fatalf("%d recomputations fired, want 1", fired)
	}

	results := o.Results()
	if len(results) != 1 || results[0].Track.Title != "Song2" {
		t.Errorf("results = %+v, want only Song2", results)
	}
}

func TestPromoteResolvesBySrc(t *testing.T) {
	o, sess := newTestOverlay(sampleTracks())

	o.SetQuery("artist1")
	if err := o.Promote(0); err != nil {
		t.Fatalf("Promote(0) error: %v", err)
	}

	if got := sess.State().Index; got != 0 {
		t.Errorf("session index after promote = %d, want 0", got)
	}
	if o.Visible() {
		t.Error("overlay must hide after promote")
	}
	if sess.Queue().Len() != 3 {
		t.Errorf("queue size changed to %d promoting an existing track", sess.Queue().Len())
	}
}

func TestPromoteAppendsUnknownSrc(t *testing.T) {
	// A result set sourced from a broader superset than the live queue.
	o, _ := newTestOverlay(sampleTracks())
	o.SetQuery("song1")

	results := o.Results()
	if len(results) != 1 {
		t.Fatalf("unexpected result set: %+v", results)
	}

	// Simulate divergence: the queue no longer carries this src.
	o2, sess2 := newTestOverlay(sampleTracks()[1:])
	o2.mu.Lock()
	o2.results = results
	o2.visible = true
	o2.mu.Unlock()

	oldSize := sess2.Queue().Len()
	if err := o2.Promote(0); err != nil {
		t.Fatalf("Promote error: %v", err)
	}

	if got := sess2.Queue().Len(); got != oldSize+1 {
		t.Errorf("queue size = %d, want %d", got, oldSize+1)
	}
	if got := sess2.State().Index; got != oldSize {
		t.Errorf("promoted index = %d, want %d (appended at old size)", got, oldSize)
	}
}

func TestPromoteOutOfRange(t *testing.T) {
	o, _ := newTestOverlay(sampleTracks())
	o.SetQuery("song")

	if err := o.Promote(10); err == nil {
		t.Error("Promote(10) should fail for an out-of-range result index")
	}
}
