// selectrank - pairwise image rating and convergence engine
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package config provides layered configuration loading and validation for
the rating, pairing, and convergence engine.

# Configuration sources

Three layers are merged in order of increasing precedence:

  - Built-in defaults (defaultConfig)
  - An optional YAML file, searched at DefaultConfigPaths or at the path
    named by SELECTRANK_CONFIG_PATH
  - Environment variables prefixed SELECTRANK_, e.g.
    SELECTRANK_CATALOG_ROOT, SELECTRANK_RATING_SIGMA_INITIAL

# Usage

	cfg, err := config.LoadWithKoanf()
	if err != nil {
	    log.Fatalf("failed to load config: %v", err)
	}

# Validation

Config.Validate runs go-playground/validator struct tags over every
section and converts the result into this module's tagged error type via
internal/validation. Cross-field invariants (k_max > k_min,
skip_cooldown_max > skip_cooldown_min) are expressed with gtfield.

# Thread safety

A *Config returned by LoadWithKoanf is not mutated after load and is safe
to share across goroutines without synchronization.
*/
package config
