// Package retry reruns optimistic units of work that lost a version race.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

type Policy struct {
	Attempts int
	Backoff  time.Duration
	Logger   *zap.Logger
}

// Do calls fn until it returns an error that is not one of retryable, or the attempts run out.
// The wait grows linearly with the attempt number.
func (p Policy) Do(ctx context.Context, fn func() error, retryable ...error) error {
	attempts := max(p.Attempts, 1)
	logger := p.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = fn(); !matches(err, retryable) {
			return err
		}
		if attempt == attempts {
			break
		}
		logger.Debug("retrying after conflict", zap.Int("attempt", attempt), zap.Error(err))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.Backoff * time.Duration(attempt)):
		}
	}
	return fmt.Errorf("giving up after %d attempts: %w", attempts, err)
}

func matches(err error, targets []error) bool {
	if err == nil {
		return false
	}
	for _, t := range targets {
		if errors.Is(err, t) {
			return true
		}
	}
	return false
}
