// selectrank - pairwise image rating and convergence engine
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/lensloop/selectrank/internal/catalog"
	"github.com/lensloop/selectrank/internal/config"
	"github.com/lensloop/selectrank/internal/logging"
	"github.com/lensloop/selectrank/internal/models"
	"github.com/lensloop/selectrank/internal/ratingstore"
	"github.com/lensloop/selectrank/internal/session"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		logging.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: selectrank <scan|next-pair|record-choice|progress|reset> [args...]")
	}

	cfg, err := config.LoadWithKoanf()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cat, err := catalog.New(catalog.Config{
		MaxFiles:      cfg.Catalog.MaxFiles,
		MaxFileBytes:  cfg.Catalog.MaxFileBytes,
		HashWorkers:   cfg.Catalog.HashWorkers,
		ChunkBytes:    cfg.Catalog.ChunkBytes,
		CachePath:     cfg.Catalog.CachePath,
		ScanRateLimit: cfg.Catalog.ScanRateLimit,
	})
	if err != nil {
		return fmt.Errorf("initialize catalog: %w", err)
	}
	defer logging.CloseWithLog(cat, "catalog")

	store, err := ratingstore.Open(cfg.Database)
	if err != nil {
		return fmt.Errorf("open rating store: %w", err)
	}
	defer logging.CloseWithLog(store, "rating_store")

	coord, err := session.New(ctx, *cfg, cat, store, nil)
	if err != nil {
		return fmt.Errorf("initialize session coordinator: %w", err)
	}

	switch args[0] {
	case "scan":
		root := cfg.Catalog.Root
		if len(args) > 1 {
			root = args[1]
		}
		return runScan(ctx, coord, root)
	case "next-pair":
		return runNextPair(ctx, coord)
	case "record-choice":
		return runRecordChoice(ctx, coord, args[1:])
	case "progress":
		return runProgress(ctx, coord)
	case "reset":
		return coord.Reset(ctx)
	default:
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func runScan(ctx context.Context, coord *session.Coordinator, root string) error {
	if root == "" {
		return fmt.Errorf("no directory given and catalog.root is unset")
	}
	count, err := coord.SetRoot(ctx, root)
	if err != nil {
		return err
	}
	return printJSON(map[string]any{"images_present": count})
}

func runNextPair(ctx context.Context, coord *session.Coordinator) error {
	pair, err := coord.NextPair(ctx)
	if err != nil {
		return err
	}
	return printJSON(pair)
}

func runRecordChoice(ctx context.Context, coord *session.Coordinator, args []string) error {
	if len(args) != 4 {
		return fmt.Errorf("usage: record-choice <round> <left-digest> <right-digest> <LEFT|RIGHT|SKIP>")
	}
	round, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid round %q: %w", args[0], err)
	}
	result, err := coord.RecordChoice(ctx, round, models.Digest(args[1]), models.Digest(args[2]), models.Outcome(args[3]))
	if err != nil {
		return err
	}
	return printJSON(result)
}

func runProgress(ctx context.Context, coord *session.Coordinator) error {
	report, err := coord.Progress(ctx)
	if err != nil {
		return err
	}
	return printJSON(report)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
