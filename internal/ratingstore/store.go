// selectrank - pairwise image rating and convergence engine
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ratingstore is the DuckDB-backed system of record for image
// posteriors, the append-only choice log, and the coordinator's
// persisted working state. Every write that must be atomic — a choice
// plus both images' posteriors plus the round counter — commits inside
// one transaction, retried with backoff if DuckDB reports a transient
// write conflict.
package ratingstore

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"
	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/lensloop/selectrank/internal/config"
	"github.com/lensloop/selectrank/internal/coreerr"
	"github.com/lensloop/selectrank/internal/logging"
	"github.com/lensloop/selectrank/internal/models"
	"github.com/lensloop/selectrank/internal/ratingengine"
)

// Store is the database handle for images, choices, and app_state.
type Store struct {
	conn    *sql.DB
	breaker *gobreaker.CircuitBreaker[any]
	retries int
	delay   time.Duration
}

// Open connects to (creating if absent) the DuckDB file at cfg.Path and
// ensures the schema exists.
func Open(cfg config.DatabaseConfig) (*Store, error) {
	if dir := filepath.Dir(cfg.Path); dir != "" && dir != "." && cfg.Path != ":memory:" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, coreerr.Wrap(coreerr.CodeStorageUnavailable, "create database directory", err)
		}
	}

	threads := cfg.Threads
	if threads <= 0 {
		threads = runtime.NumCPU()
	}
	maxMemory := cfg.MaxMemory
	if maxMemory == "" {
		maxMemory = "2GB"
	}

	connStr := fmt.Sprintf("%s?access_mode=read_write&threads=%d&max_memory=%s", cfg.Path, threads, maxMemory)
	conn, err := sql.Open("duckdb", connStr)
	if err != nil {
		return nil, coreerr.Wrap(coreerr.CodeStorageUnavailable, "open database", err)
	}
	conn.SetMaxOpenConns(runtime.NumCPU())
	conn.SetMaxIdleConns(2)
	conn.SetConnMaxLifetime(time.Hour)

	if _, err := conn.Exec(schema); err != nil {
		logging.CloseQuietly(conn)
		return nil, coreerr.Wrap(coreerr.CodeStorageUnavailable, "apply schema", err)
	}

	retries := cfg.TxRetries
	if retries < 0 {
		retries = 0
	}
	delay := cfg.TxRetryBaseDelay
	if delay <= 0 {
		delay = 50 * time.Millisecond
	}

	return &Store{conn: conn, breaker: newBreaker(), retries: retries, delay: delay}, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	return s.conn.Close()
}

// EnsureImage inserts a fresh (mu, sigma) record for digest if one
// doesn't already exist. It is a no-op for a digest the store already
// knows about, so a rescan can call it unconditionally for every digest
// the catalog reports as newly observed.
func (s *Store) EnsureImage(ctx context.Context, digest models.Digest, mu, sigma float64) error {
	_, err := s.conn.ExecContext(ctx, `
		INSERT INTO images (digest, mu, sigma)
		VALUES (?, ?, ?)
		ON CONFLICT (digest) DO NOTHING
	`, string(digest), mu, sigma)
	if err != nil {
		return coreerr.Wrap(coreerr.CodeStorageUnavailable, "ensure image record", err)
	}
	return nil
}

// GetImage returns the current posterior for digest.
func (s *Store) GetImage(ctx context.Context, digest models.Digest) (models.ImageRecord, bool, error) {
	row := s.conn.QueryRowContext(ctx, `
		SELECT digest, mu, sigma, exposures, likes, unlikes, skips, last_seen_round, next_eligible_round, created_at
		FROM images WHERE digest = ?
	`, string(digest))

	rec, err := scanImageRow(row.Scan)
	if err == sql.ErrNoRows {
		return models.ImageRecord{}, false, nil
	}
	if err != nil {
		return models.ImageRecord{}, false, coreerr.Wrap(coreerr.CodeStorageUnavailable, "get image", err)
	}
	return rec, true, nil
}

// AllImages returns every image record, used by the pairing and
// convergence packages to classify pools and compute rankings.
func (s *Store) AllImages(ctx context.Context) ([]models.ImageRecord, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT digest, mu, sigma, exposures, likes, unlikes, skips, last_seen_round, next_eligible_round, created_at
		FROM images
	`)
	if err != nil {
		return nil, coreerr.Wrap(coreerr.CodeStorageUnavailable, "list images", err)
	}
	defer rows.Close()

	var out []models.ImageRecord
	for rows.Next() {
		rec, err := scanImageRow(rows.Scan)
		if err != nil {
			return nil, coreerr.Wrap(coreerr.CodeStorageUnavailable, "scan image row", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, coreerr.Wrap(coreerr.CodeStorageUnavailable, "iterate images", err)
	}
	return out, nil
}

func scanImageRow(scan func(dest ...any) error) (models.ImageRecord, error) {
	var rec models.ImageRecord
	var digest string
	err := scan(&digest, &rec.Mu, &rec.Sigma, &rec.Exposures, &rec.Likes, &rec.Unlikes, &rec.Skips,
		&rec.LastSeenRound, &rec.NextEligibleRound, &rec.CreatedAt)
	rec.Digest = models.Digest(digest)
	return rec, err
}

// CommitInput is everything CommitChoice needs to apply one comparison
// atomically: the round the choice was shown and decided at, the round
// app_state advances to once it commits, the pair and outcome, and each
// image's posterior before and after ratingengine's update.
type CommitInput struct {
	// Round is "current round" as spec.md §4.2/§4.5 uses the term: the
	// round the choice was made at. It is the choices.round PK and the
	// value both images' last_seen_round is stamped with — never
	// NextRound, which belongs to app_state alone.
	Round int
	// NextRound is Round+1, the value app_state.round advances to once
	// this transaction commits.
	NextRound   int
	Left, Right models.Digest
	Outcome     models.Outcome

	LeftBefore, LeftAfter   ratingengine.Posterior
	RightBefore, RightAfter ratingengine.Posterior

	LeftNextEligibleRound  int
	RightNextEligibleRound int
}

// CommitChoice commits one choice and both images' posterior updates in
// a single transaction, retrying on transient DuckDB conflicts. On
// failure the round counter in app_state is left untouched — partial
// application of a choice is forbidden.
func (s *Store) CommitChoice(ctx context.Context, in CommitInput) error {
	_, err := s.breaker.Execute(func() (any, error) {
		return nil, withRetry(ctx, s.retries, s.delay, func() error {
			return s.commitChoiceOnce(ctx, in)
		})
	})
	if err != nil {
		var coreErr *coreerr.CoreError
		if ce, ok := err.(*coreerr.CoreError); ok {
			coreErr = ce
		}
		if coreErr != nil {
			return coreErr
		}
		return coreerr.Wrap(coreerr.CodeConflict, "commit choice", err)
	}
	return nil
}

func (s *Store) commitChoiceOnce(ctx context.Context, in CommitInput) error {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin commit tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op once committed

	leftLikes, leftUnlikes, leftSkips := 0, 0, 0
	rightLikes, rightUnlikes, rightSkips := 0, 0, 0
	switch in.Outcome {
	case models.OutcomeLeft:
		leftLikes, rightUnlikes = 1, 1
	case models.OutcomeRight:
		rightLikes, leftUnlikes = 1, 1
	case models.OutcomeSkip:
		leftSkips, rightSkips = 1, 1
	}

	if err := applyImageUpdate(ctx, tx, in.Left, in.LeftAfter, leftLikes, leftUnlikes, leftSkips,
		in.Round, in.LeftNextEligibleRound); err != nil {
		return err
	}
	if err := applyImageUpdate(ctx, tx, in.Right, in.RightAfter, rightLikes, rightUnlikes, rightSkips,
		in.Round, in.RightNextEligibleRound); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO choices (round, left_digest, right_digest, outcome,
			left_mu_before, left_mu_after, right_mu_before, right_mu_after,
			left_sigma_before, left_sigma_after, right_sigma_before, right_sigma_after)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, in.Round, string(in.Left), string(in.Right), string(in.Outcome),
		in.LeftBefore.Mu, in.LeftAfter.Mu, in.RightBefore.Mu, in.RightAfter.Mu,
		in.LeftBefore.Sigma, in.LeftAfter.Sigma, in.RightBefore.Sigma, in.RightAfter.Sigma,
	); err != nil {
		return fmt.Errorf("insert choice: %w", err)
	}

	if err := bumpRound(ctx, tx, in.NextRound); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func applyImageUpdate(ctx context.Context, tx *sql.Tx, digest models.Digest, after ratingengine.Posterior,
	likesDelta, unlikesDelta, skipsDelta, round, nextEligibleRound int) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE images SET
			mu = ?, sigma = ?,
			exposures = exposures + 1,
			likes = likes + ?, unlikes = unlikes + ?, skips = skips + ?,
			last_seen_round = ?, next_eligible_round = ?
		WHERE digest = ?
	`, after.Mu, after.Sigma, likesDelta, unlikesDelta, skipsDelta, round, nextEligibleRound, string(digest))
	if err != nil {
		return fmt.Errorf("update image %s: %w", digest, err)
	}
	return nil
}

// bumpRound advances app_state's round counter to round, creating the
// single app_state row on first use.
func bumpRound(ctx context.Context, tx *sql.Tx, round int) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO app_state (id, round, snapshot) VALUES (?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET round = excluded.round
	`, appStateRowID, round, []byte("{}"))
	if err != nil {
		return fmt.Errorf("bump round: %w", err)
	}
	return nil
}

// Reset atomically clears every image posterior, the choice log, and
// app_state. Callers are responsible for re-seeding images afterward
// (typically via a fresh Catalog scan's NewDigests).
func (s *Store) Reset(ctx context.Context) error {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return coreerr.Wrap(coreerr.CodeStorageUnavailable, "begin reset tx", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op once committed

	for _, stmt := range []string{
		`DELETE FROM choices`,
		`DELETE FROM images`,
		`DELETE FROM app_state`,
	} {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return coreerr.Wrap(coreerr.CodeStorageUnavailable, "reset store", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return coreerr.Wrap(coreerr.CodeStorageUnavailable, "commit reset", err)
	}
	return nil
}

// CurrentRound returns the round counter, or 0 if no choice has ever
// been committed.
func (s *Store) CurrentRound(ctx context.Context) (int, error) {
	var round int
	err := s.conn.QueryRowContext(ctx, `SELECT round FROM app_state WHERE id = ?`, appStateRowID).Scan(&round)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, coreerr.Wrap(coreerr.CodeStorageUnavailable, "read current round", err)
	}
	return round, nil
}

// SaveAppState persists state's ring-buffer snapshot alongside the
// current round.
func (s *Store) SaveAppState(ctx context.Context, round int, snapshot json.Marshaler) error {
	data, err := snapshot.MarshalJSON()
	if err != nil {
		return coreerr.Wrap(coreerr.CodeInputInvalid, "marshal app state", err)
	}

	_, err = s.conn.ExecContext(ctx, `
		INSERT INTO app_state (id, round, snapshot) VALUES (?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET round = excluded.round, snapshot = excluded.snapshot
	`, appStateRowID, round, data)
	if err != nil {
		return coreerr.Wrap(coreerr.CodeStorageUnavailable, "save app state", err)
	}
	return nil
}

// LoadAppState returns the persisted snapshot bytes and round, or
// (nil, 0, false, nil) if nothing has been saved yet.
func (s *Store) LoadAppState(ctx context.Context) (snapshot []byte, round int, found bool, err error) {
	row := s.conn.QueryRowContext(ctx, `SELECT round, snapshot FROM app_state WHERE id = ?`, appStateRowID)
	if scanErr := row.Scan(&round, &snapshot); scanErr != nil {
		if scanErr == sql.ErrNoRows {
			return nil, 0, false, nil
		}
		return nil, 0, false, coreerr.Wrap(coreerr.CodeStorageUnavailable, "load app state", scanErr)
	}
	return snapshot, round, true, nil
}
