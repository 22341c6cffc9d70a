// selectrank - pairwise image rating and convergence engine
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"time"

	"github.com/lensloop/selectrank/internal/validation"
)

// Config is the top-level, validated configuration for the rating, pairing,
// and convergence engine. Every tunable that affects scheduling or scoring
// behavior lives under one of its nested sections; there are no untyped
// escape hatches.
type Config struct {
	Catalog     CatalogConfig     `koanf:"catalog"`
	Rating      RatingConfig      `koanf:"rating"`
	Pairing     PairingConfig     `koanf:"pairing"`
	Convergence ConvergenceConfig `koanf:"convergence"`
	Database    DatabaseConfig    `koanf:"database"`
	Session     SessionConfig     `koanf:"session"`
	Logging     LoggingConfig     `koanf:"logging"`
}

// CatalogConfig governs directory scanning and content hashing.
type CatalogConfig struct {
	// Root is the directory scanned for candidate images. Empty means no
	// directory has been configured yet (NoDirectorySet).
	Root string `koanf:"root"`
	// MaxFiles bounds how many files a single scan will accept before
	// failing with TooManyFiles.
	MaxFiles int `koanf:"max_files" validate:"required,gt=0"`
	// MaxFileBytes bounds the size of a single accepted file.
	MaxFileBytes int64 `koanf:"max_file_bytes" validate:"required,gt=0"`
	// HashWorkers bounds the concurrent hashing worker pool.
	HashWorkers int `koanf:"hash_workers" validate:"required,gt=0"`
	// ChunkBytes is the read buffer size used while hashing, and the
	// cancellation-check granularity.
	ChunkBytes int `koanf:"chunk_bytes" validate:"required,gt=0"`
	// CachePath is the Badger directory backing the persisted
	// path -> {digest,size,mtime} cache.
	CachePath string `koanf:"cache_path" validate:"required"`
	// ScanRateLimit caps scan I/O in files/sec; 0 disables pacing.
	ScanRateLimit float64 `koanf:"scan_rate_limit" validate:"gte=0"`
}

// RatingConfig governs the Bayesian posterior update math.
type RatingConfig struct {
	SigmaInitial float64 `koanf:"sigma_initial" validate:"required,gt=0"`
	SigmaMin     float64 `koanf:"sigma_min" validate:"required,gt=0"`
	SigmaDecay   float64 `koanf:"sigma_decay" validate:"required,gt=0,lt=1"`
	KMin         float64 `koanf:"k_min" validate:"required,gt=0"`
	KMax         float64 `koanf:"k_max" validate:"required,gtfield=KMin"`
	// SkipCooldownMin/Max bound the uniform range added to NextEligibleRound
	// on a SKIP outcome.
	SkipCooldownMin int `koanf:"skip_cooldown_min" validate:"required,gte=0"`
	SkipCooldownMax int `koanf:"skip_cooldown_max" validate:"required,gtfield=SkipCooldownMin"`
}

// PairingConfig governs the pairing engine's selection policy.
type PairingConfig struct {
	EpsilonGreedy         float64 `koanf:"epsilon_greedy" validate:"gte=0,lte=1"`
	SkipInjectProbability float64 `koanf:"skip_inject_probability" validate:"gte=0,lte=1"`
	RecentImagesWindow    int     `koanf:"recent_images_window" validate:"required,gt=0"`
	RecentPairsWindow     int     `koanf:"recent_pairs_window" validate:"required,gt=0"`
	ShortlistK            int     `koanf:"shortlist_k" validate:"required,gt=0"`
	// PartnerScoreAlpha weights the |mu_b - mu_a| penalty in the
	// information-theoretic shortlist score sigma_b - alpha*|mu_b-mu_a|.
	PartnerScoreAlpha float64 `koanf:"partner_score_alpha" validate:"required,gt=0"`
}

// ConvergenceConfig governs the convergence detector's metrics and
// portfolio-readiness predicate.
type ConvergenceConfig struct {
	TargetTopK           int     `koanf:"target_top_k" validate:"required,gt=0"`
	MinExposuresPerImage int     `koanf:"min_exposures_per_image" validate:"required,gt=0"`
	SigmaConfidentMax    float64 `koanf:"sigma_confident_max" validate:"required,gt=0"`
	StabilityWindow      int     `koanf:"stability_window" validate:"required,gt=0"`
	TopKHistoryWindow    int     `koanf:"top_k_history_window" validate:"required,gt=0"`
}

// DatabaseConfig governs the DuckDB-backed rating store.
type DatabaseConfig struct {
	Path      string `koanf:"path" validate:"required"`
	Threads   int    `koanf:"threads" validate:"gte=0"`
	MaxMemory string `koanf:"max_memory" validate:"required"`
	// TxRetries is the number of times a transient transaction conflict is
	// retried, guarded by the circuit breaker, before surfacing Conflict.
	TxRetries        int           `koanf:"tx_retries" validate:"required,gte=0"`
	TxRetryBaseDelay time.Duration `koanf:"tx_retry_base_delay" validate:"required,gt=0"`
}

// SessionConfig governs the coordinator's orchestration behavior.
type SessionConfig struct {
	// StrictPairMatch, when true, rejects RecordChoice calls whose pair
	// does not contain the two digests returned by the most recent
	// NextPair call for that round; their left/right order is not checked.
	StrictPairMatch     bool          `koanf:"strict_pair_match"`
	RecordChoiceTimeout time.Duration `koanf:"record_choice_timeout" validate:"required,gt=0"`
}

// LoggingConfig governs the zerolog-based logger.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"required,oneof=trace debug info warn error disabled"`
	Format string `koanf:"format" validate:"required,oneof=json console"`
	Caller bool   `koanf:"caller"`
}

// Validate runs struct-tag validation over every section of c.
func (c *Config) Validate() error {
	if verr := validation.ValidateStruct(c); verr != nil {
		return verr.ToCoreError()
	}
	return nil
}
