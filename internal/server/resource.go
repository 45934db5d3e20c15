package server

import (
	"sync"

	"github.com/sirupsen/logrus"
)

// Directive is a playback instruction for the browser's audio element,
// delivered over the SSE stream. The generation ties the element's eventual
// completion callbacks back to the load that caused them.
type Directive struct {
	Action     string  `json:"action"` // load, play, pause, seek, volume
	Generation uint64  `json:"generation,omitempty"`
	Src        string  `json:"src,omitempty"`
	Seconds    float64 `json:"seconds,omitempty"`
	Level      float64 `json:"level,omitempty"`
}

// remoteResource adapts the browser's audio element to the session's resource
// contract. Commands become directives fanned out to connected clients; the
// element's lifecycle events come back asynchronously through the callback
// endpoints, so Play never fails synchronously here. Rejections surface via
// HandleRejected.
type remoteResource struct {
	mu          sync.Mutex
	log         *logrus.Logger
	subscribers map[string]chan Directive
}

func newRemoteResource(logger *logrus.Logger) *remoteResource {
	return &remoteResource{
		log:         logger,
		subscribers: make(map[string]chan Directive),
	}
}

// subscribe registers an SSE client under id and returns its directive feed.
func (r *remoteResource) subscribe(id string) <-chan Directive {
	r.mu.Lock()
	defer r.mu.Unlock()

	ch := make(chan Directive, 16)
	r.subscribers[id] = ch
	return ch
}

func (r *remoteResource) unsubscribe(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if ch, ok := r.subscribers[id]; ok {
		close(ch)
		delete(r.subscribers, id)
	}
}

// publish fans a directive out without blocking; clients that stopped
// draining are dropped.
func (r *remoteResource) publish(d Directive) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, ch := range r.subscribers {
		select {
		case ch <- d:
		default:
			close(ch)
			delete(r.subscribers, id)
			r.log.WithField("subscriber", id).Warn("Dropped stalled directive subscriber")
		}
	}
}

func (r *remoteResource) Load(generation uint64, src string) {
	r.publish(Directive{Action: "load", Generation: generation, Src: src})
}

func (r *remoteResource) Play() error {
	r.publish(Directive{Action: "play"})
	return nil
}

func (r *remoteResource) Pause() {
	r.publish(Directive{Action: "pause"})
}

func (r *remoteResource) Seek(seconds float64) {
	r.publish(Directive{Action: "seek", Seconds: seconds})
}

func (r *remoteResource) SetVolume(level float64) {
	r.publish(Directive{Action: "volume", Level: level})
}
