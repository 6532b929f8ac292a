package models

import "time"

// TimestampLayout is the persisted timestamp format: ISO-8601 / RFC3339,
// UTC, second precision
const TimestampLayout = time.RFC3339

// CrawlRecord is the persisted outcome of a single fetch attempt.
// Exactly one record is created per fetch attempt (not per discovery);
// records are append-only and never mutated
type CrawlRecord struct {
	URL       string
	Timestamp time.Time
	Status    RecordStatus
}

// NewCrawlRecord builds a record stamped at fetch completion
func NewCrawlRecord(url string, status RecordStatus) CrawlRecord {
	return CrawlRecord{
		URL:       url,
		Timestamp: time.Now().UTC().Truncate(time.Second),
		Status:    status,
	}
}

// TimestampString renders the timestamp in the persisted layout
func (r CrawlRecord) TimestampString() string {
	return r.Timestamp.UTC().Format(TimestampLayout)
}

// Progress is a point-in-time snapshot of the crawl counters.
// Queued counts accepted frontier offers over the crawl's lifetime;
// Pending is the current frontier length; Visited counts completed fetch
// attempts; ActiveWorkers counts workers between dequeue and record
type Progress struct {
	Queued        int64
	Pending       int64
	Visited       int64
	ActiveWorkers int64
}

// EventType identifies a crawl event for the presentation layer
type EventType string

const (
	// EventFetched: a fetch produced an HTTP response (any status code)
	EventFetched EventType = "fetched"
	// EventFailed: a fetch ended in a transport failure (recorded as ERROR)
	EventFailed EventType = "failed"
	// EventStopped: the worker pool has fully drained or was stopped
	EventStopped EventType = "stopped"
)

// Event is one entry of the per-fetch outcome stream consumed by the
// (external) presentation layer. The crawl engine never calls into
// presentation code; it only publishes these
type Event struct {
	Type     EventType
	URL      string
	Status   RecordStatus
	Category string // Error category on failure, "None" otherwise
	Links    int    // Admissible new links queued from this page
	Time     time.Time
}
