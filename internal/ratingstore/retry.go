// selectrank - pairwise image rating and convergence engine
// SPDX-License-Identifier: AGPL-3.0-or-later

package ratingstore

import (
	"context"
	"strings"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/lensloop/selectrank/internal/coreerr"
	"github.com/lensloop/selectrank/internal/logging"
	"github.com/lensloop/selectrank/internal/metrics"
)

// isTransactionConflict reports whether err is DuckDB's way of saying two
// writers raced for the same row. Matched by message because the driver
// does not expose a typed sentinel for it.
func isTransactionConflict(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "Transaction conflict") ||
		strings.Contains(msg, "Conflict on update") ||
		strings.Contains(msg, "cannot update a table that has been altered")
}

// newBreaker builds the circuit breaker guarding the commit path: it
// opens after five consecutive failed commits (of any cause) so a
// wedged database doesn't let every caller retry forever, and recovers on
// its own once DuckDB stops contending.
func newBreaker() *gobreaker.CircuitBreaker[any] {
	return gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        "ratingstore-commit",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     10 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).
				Msg("ratingstore circuit breaker state transition")
		},
	})
}

// withRetry runs fn, retrying up to retries times with exponential
// backoff (baseDelay, 2*baseDelay, 4*baseDelay, ...) whenever fn fails
// with a transient transaction conflict. Any other error, or exhausting
// the retry budget, surfaces immediately. retries <= 0 means "try once,
// no retries".
func withRetry(ctx context.Context, retries int, baseDelay time.Duration, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt <= retries; attempt++ {
		if attempt > 0 {
			delay := baseDelay << (attempt - 1)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		err := fn()
		if err == nil {
			if attempt > 0 {
				metrics.RecordCommitRetry(true)
			}
			return nil
		}
		if !isTransactionConflict(err) {
			return err
		}
		lastErr = err
	}
	if retries > 0 {
		metrics.RecordCommitRetry(false)
	}
	return coreerr.Wrap(coreerr.CodeConflict, "transaction conflict persisted past retry budget", lastErr)
}
