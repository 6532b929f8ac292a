package utils

import (
	"context"
	"errors"
	"net"
	"strings"
)

// --- Sentinel Errors for Categorization ---
var (
	ErrInvalidConfiguration = errors.New("invalid configuration")
	ErrRetryFailed          = errors.New("request failed after all retries") // Wraps the last underlying error
	ErrTransportFailure     = errors.New("transport failure")                // No usable HTTP response was obtained
	ErrResponseBodyRead     = errors.New("failed to read response body")
	ErrRequestCreation      = errors.New("failed to create HTTP request")
	ErrParsing              = errors.New("parsing error") // Wraps specific parsing error (HTML, URL, CSV)
	ErrPersistence          = errors.New("persistence error")
	ErrCrawlerRunning       = errors.New("crawler is already running")
	ErrCrawlerNotStopped    = errors.New("operation requires a stopped crawler")
)

// CategorizeError maps an error to a predefined category string for logging/events.
func CategorizeError(err error) string {
	if err == nil {
		return "None"
	}

	switch {
	case errors.Is(err, ErrInvalidConfiguration):
		return "Config_Validation"
	case errors.Is(err, ErrRetryFailed):
		if cat := categorizeNetworkError(err); cat != "" {
			return "RetryFailed_" + cat
		}
		return "RetryFailed_Unknown"
	case errors.Is(err, ErrResponseBodyRead):
		return "Network_BodyRead"
	case errors.Is(err, ErrTransportFailure):
		if cat := categorizeNetworkError(err); cat != "" {
			return "Network_" + cat
		}
		return "Network_Other"
	case errors.Is(err, ErrRequestCreation):
		return "Internal_RequestCreation"
	case errors.Is(err, ErrParsing):
		return "Content_Parsing"
	case errors.Is(err, ErrPersistence):
		return "Persistence_Write"
	case errors.Is(err, ErrCrawlerRunning), errors.Is(err, ErrCrawlerNotStopped):
		return "Lifecycle"
	}

	// Context errors
	if errors.Is(err, context.Canceled) {
		return "System_ContextCanceled"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "System_ContextDeadlineExceeded"
	}

	if cat := categorizeNetworkError(err); cat != "" {
		return "Network_" + cat
	}

	return "Unknown"
}

// categorizeNetworkError inspects an error for common network failure shapes.
// Returns "" when the error does not look network related.
func categorizeNetworkError(err error) string {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "Timeout"
	}

	lowerMsg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(lowerMsg, "timeout"), strings.Contains(lowerMsg, "deadline exceeded"):
		return "Timeout"
	case strings.Contains(lowerMsg, "connection refused"):
		return "ConnectionRefused"
	case strings.Contains(lowerMsg, "no such host"):
		return "DNSLookup"
	case strings.Contains(lowerMsg, "tls"), strings.Contains(lowerMsg, "certificate"):
		return "TLS"
	case strings.Contains(lowerMsg, "reset by peer"):
		return "ConnectionReset"
	case strings.Contains(lowerMsg, "broken pipe"):
		return "BrokenPipe"
	}
	return ""
}
