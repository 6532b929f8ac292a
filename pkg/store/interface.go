package store

import "spiderbot/pkg/models"

// RecordStore is the persistence contract of the crawl engine: an
// append-only log of fetch outcomes, read back only at start (resume) and
// emptied only by an explicit clear
type RecordStore interface {
	// Append writes one record. Appends from concurrent workers are
	// serialized; records are never mutated or deleted afterwards
	Append(rec models.CrawlRecord) error

	// LoadRecords reads all previously persisted records.
	// Malformed lines are skipped with a warning, never fatal to resume
	LoadRecords() ([]models.CrawlRecord, error)

	// SavePending atomically replaces the frontier snapshot with the given
	// URLs. An empty slice removes the snapshot
	SavePending(urls []string) error

	// LoadPending reads the frontier snapshot left by an interrupted crawl
	LoadPending() ([]string, error)

	// Clear empties the record log and removes the frontier snapshot
	Clear() error

	// Close releases the underlying file handles
	Close() error
}
