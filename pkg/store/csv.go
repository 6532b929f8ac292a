package store

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"spiderbot/pkg/models"
	"spiderbot/pkg/utils"
)

// csv columns, in order
var header = []string{"url", "timestamp", "status"}

// CSVStore persists crawl records to a CSV file, one record per line with a
// header row, and keeps the frontier snapshot in a sibling "<path>.pending"
// file. All writes go through one mutex so concurrent workers never
// interleave partial lines
type CSVStore struct {
	path        string
	pendingPath string

	mu     sync.Mutex
	file   *os.File
	writer *csv.Writer

	log *logrus.Logger
}

var _ RecordStore = (*CSVStore)(nil)

// NewCSVStore opens (or creates) the record log at path.
// A fresh or empty file gets the header row immediately
func NewCSVStore(path string, log *logrus.Logger) (*CSVStore, error) {
	s := &CSVStore{
		path:        path,
		pendingPath: path + ".pending",
		log:         log,
	}
	if err := s.open(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *CSVStore) open() error {
	file, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("%w: opening record log '%s': %w", utils.ErrPersistence, s.path, err)
	}
	s.file = file
	s.writer = csv.NewWriter(file)

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return fmt.Errorf("%w: stat record log '%s': %w", utils.ErrPersistence, s.path, err)
	}
	if info.Size() == 0 {
		if err := s.writeRow(header); err != nil {
			file.Close()
			return err
		}
	}
	return nil
}

func (s *CSVStore) writeRow(row []string) error {
	if err := s.writer.Write(row); err != nil {
		return fmt.Errorf("%w: writing record: %w", utils.ErrPersistence, err)
	}
	s.writer.Flush()
	if err := s.writer.Error(); err != nil {
		return fmt.Errorf("%w: flushing record: %w", utils.ErrPersistence, err)
	}
	return nil
}

// Append writes one crawl record and flushes it to disk
func (s *CSVStore) Append(rec models.CrawlRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writer == nil {
		return fmt.Errorf("%w: store is closed", utils.ErrPersistence)
	}
	return s.writeRow([]string{rec.URL, rec.TimestampString(), string(rec.Status)})
}

// LoadRecords reads every valid record from the log.
// A missing file is an empty history, not an error. Malformed lines
// (wrong field count, bad timestamp, unknown status) are skipped with a
// warning so a partially corrupted log never blocks a resume
func (s *CSVStore) LoadRecords() ([]models.CrawlRecord, error) {
	file, err := os.Open(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: opening record log '%s': %w", utils.ErrPersistence, s.path, err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1 // field count validated per row below

	var records []models.CrawlRecord
	line := 0
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			s.log.Warnf("Skipping malformed line %d in '%s': %v", line, s.path, err)
			continue
		}
		if line == 1 && len(row) > 0 && strings.EqualFold(row[0], header[0]) {
			continue // header row
		}
		if len(row) != 3 {
			s.log.Warnf("Skipping line %d in '%s': want 3 fields, got %d", line, s.path, len(row))
			continue
		}

		ts, tsErr := time.Parse(models.TimestampLayout, row[1])
		if tsErr != nil {
			s.log.Warnf("Skipping line %d in '%s': bad timestamp %q", line, s.path, row[1])
			continue
		}
		status, stErr := models.ParseStatus(row[2])
		if stErr != nil {
			s.log.Warnf("Skipping line %d in '%s': %v", line, s.path, stErr)
			continue
		}
		records = append(records, models.CrawlRecord{URL: row[0], Timestamp: ts, Status: status})
	}
	return records, nil
}

// SavePending writes the frontier snapshot via a temp file and rename so an
// interrupted write never corrupts an existing snapshot. An empty slice
// removes the snapshot
func (s *CSVStore) SavePending(urls []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(urls) == 0 {
		if err := os.Remove(s.pendingPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: removing frontier snapshot '%s': %w", utils.ErrPersistence, s.pendingPath, err)
		}
		return nil
	}

	tmpPath := s.pendingPath + ".tmp"
	tmp, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("%w: creating frontier snapshot '%s': %w", utils.ErrPersistence, tmpPath, err)
	}
	w := bufio.NewWriter(tmp)
	for _, u := range urls {
		if _, err := w.WriteString(u + "\n"); err != nil {
			tmp.Close()
			os.Remove(tmpPath)
			return fmt.Errorf("%w: writing frontier snapshot: %w", utils.ErrPersistence, err)
		}
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("%w: flushing frontier snapshot: %w", utils.ErrPersistence, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("%w: closing frontier snapshot: %w", utils.ErrPersistence, err)
	}
	if err := os.Rename(tmpPath, s.pendingPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("%w: publishing frontier snapshot: %w", utils.ErrPersistence, err)
	}
	return nil
}

// LoadPending reads the frontier snapshot, one URL per line.
// A missing snapshot means a cleanly drained prior crawl
func (s *CSVStore) LoadPending() ([]string, error) {
	file, err := os.Open(s.pendingPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: opening frontier snapshot '%s': %w", utils.ErrPersistence, s.pendingPath, err)
	}
	defer file.Close()

	var urls []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		u := strings.TrimSpace(scanner.Text())
		if u != "" {
			urls = append(urls, u)
		}
	}
	if err := scanner.Err(); err != nil {
		return urls, fmt.Errorf("%w: reading frontier snapshot '%s': %w", utils.ErrPersistence, s.pendingPath, err)
	}
	return urls, nil
}

// Clear empties the record log (keeping a fresh header) and removes the
// frontier snapshot
func (s *CSVStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file != nil {
		s.writer.Flush()
		s.file.Close()
		s.file = nil
		s.writer = nil
	}
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: removing record log '%s': %w", utils.ErrPersistence, s.path, err)
	}
	if err := os.Remove(s.pendingPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: removing frontier snapshot '%s': %w", utils.ErrPersistence, s.pendingPath, err)
	}
	return s.open()
}

// Close flushes and closes the record log
func (s *CSVStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return nil
	}
	s.writer.Flush()
	flushErr := s.writer.Error()
	closeErr := s.file.Close()
	s.file = nil
	s.writer = nil
	if flushErr != nil {
		return fmt.Errorf("%w: flushing record log: %w", utils.ErrPersistence, flushErr)
	}
	if closeErr != nil {
		return fmt.Errorf("%w: closing record log: %w", utils.ErrPersistence, closeErr)
	}
	return nil
}
