package search

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Masterofowls/Player/internal/catalog"
	"github.com/Masterofowls/Player/internal/session"
	"github.com/Masterofowls/Player/pkg/models"
)

// Scheduler defers fn by d and returns a cancel func. Injectable so tests can
// run recomputations synchronously.
type Scheduler func(d time.Duration, fn func()) (cancel func())

func timerScheduler(d time.Duration, fn func()) func() {
	t := time.AfterFunc(d, fn)
	return func() { t.Stop() }
}

// Overlay derives a filtered view of the catalog from a query string. Query
// changes recompute after a debounce delay; a newer query cancels the pending
// recomputation, so at most one timer is ever outstanding. The overlay owns
// only its result set and never mutates the catalog; promotion goes through
// the session.
type Overlay struct {
	mu       sync.Mutex
	log      *logrus.Logger
	sess     *session.Session
	delay    time.Duration
	schedule Scheduler
	cancel   func()

	query   string
	results []catalog.Entry
	visible bool
}

// Options configures an overlay.
type Options struct {
	// Debounce is the recomputation delay after the last query change.
	// Defaults to 300ms.
	Debounce time.Duration
	// Scheduler defaults to a time.AfterFunc-backed timer.
	Scheduler Scheduler
	// Logger defaults to the standard logrus logger.
	Logger *logrus.Logger
}

// New creates a search overlay bound to a playback session.
func New(sess *session.Session, opts Options) *Overlay {
	if opts.Debounce <= 0 {
		opts.Debounce = 300 * time.Millisecond
	}
	if opts.Scheduler == nil {
		opts.Scheduler = timerScheduler
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	return &Overlay{
		log:      opts.Logger,
		sess:     sess,
		delay:    opts.Debounce,
		schedule: opts.Scheduler,
	}
}

// SetQuery stores the raw query text and schedules a debounced
// recomputation, cancelling any pending one.
func (o *Overlay) SetQuery(text string) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.query = text
	if o.cancel != nil {
		o.cancel()
	}
	o.cancel = o.schedule(o.delay, o.Recompute)
}

// Recompute rebuilds the result set from the current query. An empty or
// whitespace-only query clears the results and hides the overlay; anything
// else matches case-insensitively against title and artist, preserving
// catalog order.
func (o *Overlay) Recompute() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.recomputeLocked()
}

func (o *Overlay) recomputeLocked() {
	term := strings.ToLower(strings.TrimSpace(o.query))
	if term == "" {
		o.results = nil
		o.visible = false
	} else {
		o.results = o.sess.Queue().Filter(func(t models.Track) bool {
			return strings.Contains(strings.ToLower(t.Title), term) ||
				strings.Contains(strings.ToLower(t.Artist), term)
		})
		o.visible = true
		o.log.WithFields(logrus.Fields{
			"query":   term,
			"matches": len(o.results),
		}).Debug("Search recomputed")
	}

	o.sess.Events().Publish(session.Event{
		Type:    session.EventSearchResultsChanged,
		Results: o.results,
		Visible: o.visible,
	})
}

// Results returns the current result set in catalog order.
func (o *Overlay) Results() []catalog.Entry {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]catalog.Entry(nil), o.results...)
}

// Visible reports whether the overlay should be shown.
func (o *Overlay) Visible() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.visible
}

// Promote moves the selected result into the active queue and plays it. The
// track is resolved by src identity against the live queue; a track the
// queue has never seen is appended. The overlay is hidden and the query
// cleared either way.
func (o *Overlay) Promote(resultIndex int) error {
	o.mu.Lock()

	if resultIndex < 0 || resultIndex >= len(o.results) {
		o.mu.Unlock()
		o.log.WithField("index", resultIndex).Warn("Ignoring promote for out-of-range result index")
		return fmt.Errorf("search result index %d out of range", resultIndex)
	}
	track := o.results[resultIndex].Track

	o.query = ""
	if o.cancel != nil {
		o.cancel()
		o.cancel = nil
	}
	o.recomputeLocked() // clears results and publishes the hide signal
	o.mu.Unlock()

	target := o.sess.ResolveOrAppend(track)
	return o.sess.PlayFromQueue(target)
}
