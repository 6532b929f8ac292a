package frontier

import (
	"sync"

	"github.com/sirupsen/logrus"
)

// Frontier is the thread-safe discovery state of a crawl: a FIFO queue of
// pending URLs plus the set of every URL ever admitted (queued or visited).
// Both live under one lock so the seen-check and the enqueue are a single
// atomic step, which is what guarantees each distinct URL is queued at most
// once over the crawl's lifetime
type Frontier struct {
	mu     sync.Mutex
	cond   *sync.Cond // Condition variable to wait for items
	queue  []string   // FIFO of pending URLs (breadth-first-like discovery order)
	seen   map[string]struct{}
	closed bool
	log    *logrus.Logger
}

// New creates an empty open frontier
func New(logger *logrus.Logger) *Frontier {
	f := &Frontier{
		seen: make(map[string]struct{}),
		log:  logger,
	}
	f.cond = sync.NewCond(&f.mu)
	return f
}

// Offer atomically checks membership and enqueues the URL if it has never
// been seen. Returns true only when the URL was newly admitted; a repeat
// offer or an offer after Close is a no-op returning false.
// Callers must pass normalized URLs so equivalent links collapse
func (f *Frontier) Offer(url string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		f.log.Warnf("Offer on closed frontier ignored: %s", url)
		return false
	}
	if _, dup := f.seen[url]; dup {
		return false
	}

	f.seen[url] = struct{}{}
	f.queue = append(f.queue, url)
	f.cond.Signal() // Wake one waiting worker
	return true
}

// MarkSeen inserts a URL into the seen set without queueing it.
// Used at resume time to seed previously visited URLs so they are never
// refetched. Returns true if the URL was newly added
func (f *Frontier) MarkSeen(url string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, dup := f.seen[url]; dup {
		return false
	}
	f.seen[url] = struct{}{}
	return true
}

// Take removes and returns the oldest pending URL.
// It blocks while the frontier is empty and open; once the frontier is
// closed and drained it returns ("", false), the permanent empty signal
func (f *Frontier) Take() (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for len(f.queue) == 0 {
		if f.closed {
			return "", false
		}
		// Wait releases the lock and reacquires it upon waking
		f.cond.Wait()
	}

	url := f.queue[0]
	f.queue = f.queue[1:]
	return url, true
}

// Close marks the frontier permanently closed and wakes every blocked
// worker. Entries still queued remain takeable; Take returns false only
// once the queue is drained. Idempotent
func (f *Frontier) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed {
		f.closed = true
		f.cond.Broadcast()
	}
}

// DrainPending removes and returns every queued URL, oldest first.
// Used after shutdown to snapshot undone work; the seen set is untouched
func (f *Frontier) DrainPending() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	pending := f.queue
	f.queue = nil
	return pending
}

// Len returns the current number of pending URLs
func (f *Frontier) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.queue)
}

// SeenCount returns the size of the seen set
func (f *Frontier) SeenCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.seen)
}
