package models

import (
	"fmt"
	"strconv"
)

// RecordStatus is the outcome column of a crawl record: either a decimal HTTP
// status code or the failure sentinel StatusError
type RecordStatus string

// StatusError marks a fetch that produced no HTTP response (connection error,
// timeout, malformed or oversized body)
const StatusError RecordStatus = "ERROR"

// StatusFromCode converts an HTTP status code to a RecordStatus
func StatusFromCode(code int) RecordStatus {
	return RecordStatus(strconv.Itoa(code))
}

// ParseStatus validates a raw status string read back from storage
// Accepts the ERROR sentinel or a plausible HTTP status code (100-599)
func ParseStatus(raw string) (RecordStatus, error) {
	if raw == string(StatusError) {
		return StatusError, nil
	}
	code, err := strconv.Atoi(raw)
	if err != nil {
		return "", fmt.Errorf("status %q is neither a code nor %s", raw, StatusError)
	}
	if code < 100 || code > 599 {
		return "", fmt.Errorf("status code %d out of range", code)
	}
	return RecordStatus(raw), nil
}

// IsError reports whether the status is the transport failure sentinel
func (s RecordStatus) IsError() bool {
	return s == StatusError
}

// Code returns the numeric HTTP status code, or 0 for the ERROR sentinel
func (s RecordStatus) Code() int {
	if s.IsError() {
		return 0
	}
	code, err := strconv.Atoi(string(s))
	if err != nil {
		return 0
	}
	return code
}

// IsSuccess reports whether the status is a 2xx HTTP code
func (s RecordStatus) IsSuccess() bool {
	code := s.Code()
	return code >= 200 && code < 300
}

// String implements fmt.Stringer for logging
func (s RecordStatus) String() string {
	return string(s)
}
