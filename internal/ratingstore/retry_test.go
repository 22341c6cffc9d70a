// selectrank - pairwise image rating and convergence engine
// SPDX-License-Identifier: AGPL-3.0-or-later

package ratingstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/lensloop/selectrank/internal/coreerr"
)

func TestWithRetry_SucceedsAfterTransientConflicts(t *testing.T) {
	t.Parallel()

	attempts := 0
	err := withRetry(context.Background(), 3, time.Millisecond, func() error {
		attempts++
		if attempts < 3 {
			return &fakeErr{msg: "Transaction conflict: retry me"}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("withRetry() error: %v", err)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
}

func TestWithRetry_GivesUpAfterBudgetExhausted(t *testing.T) {
	t.Parallel()

	attempts := 0
	err := withRetry(context.Background(), 2, time.Millisecond, func() error {
		attempts++
		return &fakeErr{msg: "Transaction conflict: never resolves"}
	})
	if err == nil {
		t.Fatal("expected an error after exhausting the retry budget")
	}
	if attempts != 3 { // initial attempt + 2 retries
		t.Errorf("attempts = %d, want 3", attempts)
	}
	code, ok := coreerr.CodeOf(err)
	if !ok || code != coreerr.CodeConflict {
		t.Errorf("CodeOf(err) = %v, %v, want CodeConflict", code, ok)
	}
}

func TestWithRetry_NonConflictErrorFailsImmediately(t *testing.T) {
	t.Parallel()

	attempts := 0
	wantErr := errors.New("syntax error")
	err := withRetry(context.Background(), 5, time.Millisecond, func() error {
		attempts++
		return wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Errorf("err = %v, want %v", err, wantErr)
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1 (no retry for non-conflict errors)", attempts)
	}
}

func TestWithRetry_ZeroRetriesTriesOnce(t *testing.T) {
	t.Parallel()

	attempts := 0
	_ = withRetry(context.Background(), 0, time.Millisecond, func() error {
		attempts++
		return &fakeErr{msg: "Transaction conflict"}
	})
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1", attempts)
	}
}
