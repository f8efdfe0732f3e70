/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package browser

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Navigator loads a page with a bounded number of attempts.
type Navigator struct {
	Attempts       int
	AttemptTimeout time.Duration
	Backoff        time.Duration
	Logger         *zap.Logger
}

func NewNavigator(logger *zap.Logger) *Navigator {
	return &Navigator{
		Attempts:       3,
		AttemptTimeout: 60 * time.Second,
		Backoff:        time.Second,
		Logger:         logger,
	}
}

// Navigate drives page to reference, retrying transport errors and
// network-idle timeouts. It never closes the page.
func (n *Navigator) Navigate(ctx context.Context, page Page, reference string) error {
	attempts := max(n.Attempts, 1)
	logger := n.logger()

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 && n.Backoff > 0 {
			if err := sleep(ctx, n.Backoff); err != nil {
				return err
			}
		}

		lastErr = n.attempt(ctx, page, reference)
		if lastErr == nil {
			logger.Debug("navigation succeeded",
				zap.String("reference", reference),
				zap.Int("attempt", attempt))
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		logger.Warn("navigation attempt failed",
			zap.String("reference", reference),
			zap.Int("attempt", attempt),
			zap.Int("of", attempts),
			zap.Error(lastErr))
	}

	return fmt.Errorf("%w after %d attempts: %w", ErrNavigationExhausted, attempts, lastErr)
}

func (n *Navigator) attempt(ctx context.Context, page Page, reference string) error {
	if n.AttemptTimeout <= 0 {
		return page.Navigate(ctx, reference)
	}

	attemptCtx, cancel := context.WithTimeout(ctx, n.AttemptTimeout)
	defer cancel()

	return page.Navigate(attemptCtx, reference)
}

func (n *Navigator) logger() *zap.Logger {
	if n.Logger == nil {
		return zap.NewNop()
	}
	return n.Logger
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
