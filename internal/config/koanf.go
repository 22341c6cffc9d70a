// selectrank - pairwise image rating and convergence engine
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths searched for a config file, in order
// of priority. The first file found is used.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/selectrank/config.yaml",
}

// ConfigPathEnvVar overrides the config file search with an explicit path.
const ConfigPathEnvVar = "SELECTRANK_CONFIG_PATH"

// defaultConfig returns sane defaults for every tunable. These are applied
// first, then overridden by the config file, then by environment variables.
func defaultConfig() *Config {
	return &Config{
		Catalog: CatalogConfig{
			Root:          "",
			MaxFiles:      200_000,
			MaxFileBytes:  250 << 20, // 250 MiB
			HashWorkers:   4,
			ChunkBytes:    1 << 20, // 1 MiB
			CachePath:     "/data/selectrank/catalog-cache",
			ScanRateLimit: 0,
		},
		Rating: RatingConfig{
			SigmaInitial:    350,
			SigmaMin:        60,
			SigmaDecay:      0.97,
			KMin:            8,
			KMax:            48,
			SkipCooldownMin: 11,
			SkipCooldownMax: 49,
		},
		Pairing: PairingConfig{
			EpsilonGreedy:         0.10,
			SkipInjectProbability: 0.30,
			RecentImagesWindow:    64,
			RecentPairsWindow:     128,
			ShortlistK:            64,
			PartnerScoreAlpha:     0.01,
		},
		Convergence: ConvergenceConfig{
			TargetTopK:           40,
			MinExposuresPerImage: 5,
			SigmaConfidentMax:    90,
			StabilityWindow:      120,
			TopKHistoryWindow:    120,
		},
		Database: DatabaseConfig{
			Path:             "/data/selectrank/ratings.duckdb",
			Threads:          0, // 0 = runtime.NumCPU()
			MaxMemory:        "1GB",
			TxRetries:        3,
			TxRetryBaseDelay: 50 * time.Millisecond,
		},
		Session: SessionConfig{
			StrictPairMatch:     false,
			RecordChoiceTimeout: 5 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// LoadWithKoanf loads configuration from three layered sources, in order of
// increasing precedence: built-in defaults, an optional YAML config file,
// then environment variables. The result is validated before being
// returned.
func LoadWithKoanf() (*Config, error) {
	k := koanf.New(".")

	defaults := defaultConfig()
	if err := k.Load(structs.Provider(defaults, "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	envProvider := env.Provider("SELECTRANK_", ".", envTransformFunc)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile searches for a config file, honoring ConfigPathEnvVar
// first and falling back to DefaultConfigPaths.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// envTransformFunc maps SELECTRANK_-prefixed environment variable names to
// koanf config paths, e.g. SELECTRANK_CATALOG_ROOT -> catalog.root.
//
// Unmapped keys return "" and are skipped, so unrelated environment
// variables never leak into the configuration tree.
func envTransformFunc(key string) string {
	key = strings.ToLower(strings.TrimPrefix(key, "SELECTRANK_"))

	envMappings := map[string]string{
		"catalog_root":            "catalog.root",
		"catalog_max_files":       "catalog.max_files",
		"catalog_max_file_bytes":  "catalog.max_file_bytes",
		"catalog_hash_workers":    "catalog.hash_workers",
		"catalog_chunk_bytes":     "catalog.chunk_bytes",
		"catalog_cache_path":      "catalog.cache_path",
		"catalog_scan_rate_limit": "catalog.scan_rate_limit",

		"rating_sigma_initial":     "rating.sigma_initial",
		"rating_sigma_min":         "rating.sigma_min",
		"rating_sigma_decay":       "rating.sigma_decay",
		"rating_k_min":             "rating.k_min",
		"rating_k_max":             "rating.k_max",
		"rating_skip_cooldown_min": "rating.skip_cooldown_min",
		"rating_skip_cooldown_max": "rating.skip_cooldown_max",

		"pairing_epsilon_greedy":           "pairing.epsilon_greedy",
		"pairing_skip_inject_probability":  "pairing.skip_inject_probability",
		"pairing_recent_images_window":     "pairing.recent_images_window",
		"pairing_recent_pairs_window":      "pairing.recent_pairs_window",
		"pairing_shortlist_k":              "pairing.shortlist_k",
		"pairing_partner_score_alpha":      "pairing.partner_score_alpha",

		"convergence_target_top_k":             "convergence.target_top_k",
		"convergence_min_exposures_per_image":   "convergence.min_exposures_per_image",
		"convergence_sigma_confident_max":       "convergence.sigma_confident_max",
		"convergence_stability_window":          "convergence.stability_window",
		"convergence_top_k_history_window":      "convergence.top_k_history_window",

		"database_path":                "database.path",
		"database_threads":            "database.threads",
		"database_max_memory":         "database.max_memory",
		"database_tx_retries":         "database.tx_retries",
		"database_tx_retry_base_delay": "database.tx_retry_base_delay",

		"session_strict_pair_match":      "session.strict_pair_match",
		"session_record_choice_timeout":  "session.record_choice_timeout",

		"logging_level":  "logging.level",
		"logging_format": "logging.format",
		"logging_caller": "logging.caller",
	}

	if mapped, ok := envMappings[key]; ok {
		return mapped
	}
	return ""
}
