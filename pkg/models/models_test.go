package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewCrawlRecord(t *testing.T) {
	before := time.Now().UTC().Truncate(time.Second)
	rec := NewCrawlRecord("https://example.com/", StatusFromCode(200))
	after := time.Now().UTC()

	assert.Equal(t, "https://example.com/", rec.URL)
	assert.Equal(t, RecordStatus("200"), rec.Status)
	assert.False(t, rec.Timestamp.Before(before), "timestamp before record creation")
	assert.False(t, rec.Timestamp.After(after), "timestamp after record creation")
	assert.Zero(t, rec.Timestamp.Nanosecond(), "timestamp must be second precision")
	assert.Equal(t, time.UTC, rec.Timestamp.Location())
}

func TestCrawlRecord_TimestampString(t *testing.T) {
	rec := CrawlRecord{
		URL:       "https://example.com/",
		Timestamp: time.Date(2026, 8, 25, 14, 5, 9, 0, time.UTC),
		Status:    StatusError,
	}
	assert.Equal(t, "2026-08-25T14:05:09Z", rec.TimestampString())
}

func TestCrawlRecord_TimestampStringConvertsToUTC(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*3600)
	rec := CrawlRecord{
		Timestamp: time.Date(2026, 8, 25, 16, 0, 0, 0, loc),
	}
	assert.Equal(t, "2026-08-25T14:00:00Z", rec.TimestampString())
}
