// selectrank - pairwise image rating and convergence engine
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package main is the command-line entry point for the rating engine.

The binary wires together the catalog scanner, the DuckDB-backed rating
store, and the session coordinator, then dispatches a single subcommand per
invocation:

	selectrank scan <directory>       rescan a directory and seed new images
	selectrank next-pair              print the next pair to compare
	selectrank record-choice <round> <left> <right> <LEFT|RIGHT|SKIP>
	selectrank progress                print the current convergence report
	selectrank reset                   clear all posteriors and the round counter

There is no network listener: every operation runs against the configured
DuckDB path, prints a JSON result to stdout, and exits. Configuration is
loaded the same way across every subcommand (see internal/config), so a
caller can script repeated invocations without holding a long-lived
process — the coordinator's lock only needs to serialize operations within
a single run.

# Configuration

	SELECTRANK_CONFIG_PATH=/etc/selectrank/config.yaml
	SELECTRANK_CATALOG_ROOT=/photos/portfolio
	SELECTRANK_DATABASE_PATH=/data/selectrank/ratings.duckdb
	SELECTRANK_LOGGING_LEVEL=info

See internal/config for the full set of environment variables and their
config-file equivalents.
*/
package main
