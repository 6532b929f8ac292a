package fetch

import (
	"context"
	"math/rand"
	"time"

	"github.com/sirupsen/logrus"
)

// Limiter enforces the politeness delay: a mandatory per-worker pause before
// each request. With w workers and delay d the aggregate request rate is
// bounded by roughly w/d
type Limiter struct {
	delay time.Duration
	log   *logrus.Logger
}

// NewLimiter creates a Limiter; a zero or negative delay disables waiting
func NewLimiter(delay time.Duration, log *logrus.Logger) *Limiter {
	return &Limiter{delay: delay, log: log}
}

// Wait sleeps the configured delay with +/-10% jitter to desynchronize
// workers. Returns early with the context error on cancellation
func (l *Limiter) Wait(ctx context.Context) error {
	if l.delay <= 0 {
		return nil
	}

	var jitter time.Duration
	if jitterRange := int64(l.delay) / 5; jitterRange > 0 { // 20% range width for +/-10%
		jitter = time.Duration(rand.Int63n(jitterRange)) - (l.delay / 10)
	}
	sleep := l.delay + jitter
	if sleep <= 0 {
		return nil
	}

	l.log.WithField("sleep", sleep).Debug("Politeness delay")
	timer := time.NewTimer(sleep)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
