// selectrank - pairwise image rating and convergence engine
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package logging provides the zerolog-based structured logging layer used
// throughout the rating, pairing, and convergence engine.
//
// # Overview
//
//   - Zero-allocation structured logging via zerolog
//   - JSON output for production, console output for local development
//   - Context-aware logging with correlation-id propagation (one id per
//     scan or coordinator operation)
//   - slog adapter so slog-only dependencies log through the same zerolog
//     backend
//
// # Quick Start
//
//	logging.Init(logging.Config{Level: "info", Format: "json"})
//	logging.Info().Int("round", round).Msg("pair selected")
//	logging.Ctx(ctx).Info().Msg("scan started")
//
// # Structured logging
//
// Always terminate a chain with .Msg() or .Send(); a chain left hanging
// never emits:
//
//	logging.Info().Str("digest", string(d)).Msg("image accepted")  // correct
//	logging.Info().Str("digest", string(d))                        // no-op
//
// # Filesystem paths
//
// User-visible log output never includes filesystem paths, only digests
// and catalog-relative identifiers, per this module's error model.
package logging
