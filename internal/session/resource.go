package session

// MediaResource abstracts the single audio element the session drives. The
// session is its exclusive owner; no other component touches it.
//
// Load is asynchronous: the transport behind the resource delivers the
// outcome later by calling the session's Handle* methods, echoing the
// generation the load was issued with. Completions must be delivered after
// Load returns, never from inside it. Play may reject synchronously (an
// implementation that only learns of rejection later returns nil and reports
// through HandleRejected instead).
type MediaResource interface {
	Load(generation uint64, src string)
	Play() error
	Pause()
	Seek(seconds float64)
	SetVolume(level float64) // 0.0 to 1.0
}
