// selectrank - pairwise image rating and convergence engine
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package catalog turns a root directory into a stable set of
// digest-identified images. The BLAKE2b-256 content digest is the sole
// cross-component identifier; filesystem paths never leave this package.
package catalog

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/lensloop/selectrank/internal/coreerr"
	"github.com/lensloop/selectrank/internal/models"
)

// Config controls a Catalog's scan behavior.
type Config struct {
	MaxFiles      int
	MaxFileBytes  int64
	HashWorkers   int
	ChunkBytes    int
	CachePath     string
	ScanRateLimit float64 // files/sec; 0 disables pacing
}

// Catalog is the content-addressed view of a directory tree: a
// digest→entry map built by Scan and queried by Lookup. It owns a
// persisted cache so repeated scans of an unchanged tree skip rehashing
// every file.
type Catalog struct {
	cfg   Config
	cache *cache

	mu      sync.RWMutex
	entries map[models.Digest]models.CatalogEntry
	stats   Stats
}

// Stats holds the counts from the most recent completed scan.
type Stats struct {
	FilesAccepted int
	FilesSkipped  int
	FilesRejected int
	FilesCached   int
	FilesHashed   int
	BytesHashed   int64
	LastError     string
}

// New opens a Catalog backed by a persisted cache at cfg.CachePath.
func New(cfg Config) (*Catalog, error) {
	if cfg.HashWorkers <= 0 {
		cfg.HashWorkers = 4
	}
	if cfg.ChunkBytes <= 0 {
		cfg.ChunkBytes = defaultChunkBytes
	}
	if cfg.MaxFiles <= 0 {
		cfg.MaxFiles = 200_000
	}
	if cfg.MaxFileBytes <= 0 {
		cfg.MaxFileBytes = 250 << 20
	}

	c, err := openCache(cfg.CachePath)
	if err != nil {
		return nil, coreerr.Wrap(coreerr.CodeStorageUnavailable, "open catalog cache", err)
	}

	return &Catalog{
		cfg:     cfg,
		cache:   c,
		entries: make(map[models.Digest]models.CatalogEntry),
	}, nil
}

// Close releases the underlying cache handle.
func (c *Catalog) Close() error {
	return c.cache.close()
}

// candidate is a file discovered during the walk phase, before hashing.
type candidate struct {
	path  string
	size  int64
	mtime int64
}

// Scan walks root recursively, accepts supported image files, and
// computes or reuses their content digests. It returns a deterministic
// result: given identical inputs, present digests and their entries are
// always the same regardless of filesystem iteration order or worker
// scheduling.
//
// Aborting when the discovered file count exceeds MaxFiles leaves the
// Catalog's existing entries untouched: a rejected scan must not leak
// partial state.
func (c *Catalog) Scan(ctx context.Context, root string) (models.ScanResult, error) {
	started := time.Now()

	candidates, stats, err := c.walk(ctx, root)
	if err != nil {
		return models.ScanResult{}, err
	}

	var limiter *rate.Limiter
	if c.cfg.ScanRateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(c.cfg.ScanRateLimit), 1)
	}

	type hashed struct {
		digest models.Digest
		entry  models.CatalogEntry
	}
	results := make([]hashed, len(candidates))

	group, gctx := errgroup.WithContext(ctx)
	sem := semaphore.NewWeighted(int64(c.cfg.HashWorkers))

	var mu sync.Mutex // guards stats.FilesCached / FilesHashed / BytesHashed

	for i, cand := range candidates {
		i, cand := i, cand
		if err := sem.Acquire(gctx, 1); err != nil {
			break
		}
		group.Go(func() error {
			defer sem.Release(1)

			if limiter != nil {
				if err := limiter.Wait(gctx); err != nil {
					return err
				}
			}

			digest, fromCache, err := c.digestOf(gctx, cand)
			if err != nil {
				return err
			}

			mu.Lock()
			if fromCache {
				stats.FilesCached++
			} else {
				stats.FilesHashed++
				stats.BytesHashed += cand.size
			}
			mu.Unlock()

			results[i] = hashed{
				digest: digest,
				entry: models.CatalogEntry{
					Digest: digest,
					Path:   cand.path,
					Size:   cand.size,
					MTime:  time.Unix(0, cand.mtime),
				},
			}
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return models.ScanResult{}, coreerr.Wrap(coreerr.CodeCatalogScanFailed, "scan aborted", err)
	}
	// A cancellation that stopped the dispatch loop before every candidate
	// was handed to a worker leaves unfilled slots in results.
	if err := ctx.Err(); err != nil {
		return models.ScanResult{}, coreerr.Wrap(coreerr.CodeCatalogScanFailed, "scan aborted", err)
	}

	// Merge in digest order so identical inputs yield identical output
	// regardless of walk or worker scheduling order.
	sort.Slice(results, func(i, j int) bool { return results[i].digest < results[j].digest })

	newEntries := make(map[models.Digest]models.CatalogEntry, len(results))
	var newDigests []models.Digest
	c.mu.RLock()
	for _, r := range results {
		if _, existed := c.entries[r.digest]; !existed {
			newDigests = append(newDigests, r.digest)
		}
		newEntries[r.digest] = r.entry
	}
	c.mu.RUnlock()

	c.mu.Lock()
	for digest, entry := range newEntries {
		c.entries[digest] = entry
	}
	c.stats = stats
	present := make([]models.Digest, 0, len(c.entries))
	for digest := range c.entries {
		present = append(present, digest)
	}
	c.mu.Unlock()

	sort.Slice(present, func(i, j int) bool { return present[i] < present[j] })

	return models.ScanResult{
		Accepted:       stats.FilesAccepted,
		Skipped:        stats.FilesSkipped,
		Rejected:       stats.FilesRejected,
		Reused:         stats.FilesCached,
		Duration:       time.Since(started),
		PresentDigests: present,
		NewDigests:     newDigests,
	}, nil
}

// digestOf resolves cand's digest, either from the cache (when the
// (size, mtime) fingerprint still matches) or by rehashing.
func (c *Catalog) digestOf(ctx context.Context, cand candidate) (digest models.Digest, fromCache bool, err error) {
	if d, ok := c.cache.lookup(cand.path, cand.size, cand.mtime); ok {
		return d, true, nil
	}

	d, err := hashFile(ctx, cand.path, c.cfg.ChunkBytes)
	if err != nil {
		return "", false, err
	}
	if err := c.cache.store(cand.path, d, cand.size, cand.mtime); err != nil {
		return "", false, err
	}
	return d, false, nil
}

// walk traverses root, classifying every regular file by extension and
// magic bytes. It enforces MaxFiles before any hashing begins so an
// oversized tree fails fast without doing partial work.
func (c *Catalog) walk(ctx context.Context, root string) ([]candidate, Stats, error) {
	var candidates []candidate
	var stats Stats
	discovered := 0

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		if _, extOK := extensionFormat(path); !extOK {
			return nil
		}

		discovered++
		if discovered > c.cfg.MaxFiles {
			return coreerr.New(coreerr.CodeTooManyFiles, fmt.Sprintf("scan exceeds max_files (%d)", c.cfg.MaxFiles))
		}

		info, err := d.Info()
		if err != nil {
			stats.FilesSkipped++
			return nil
		}
		if info.Size() > c.cfg.MaxFileBytes {
			stats.FilesSkipped++
			return nil
		}

		header, err := readHeader(path)
		if err != nil {
			stats.FilesSkipped++
			return nil
		}
		if !accept(path, header) {
			stats.FilesRejected++
			return nil
		}

		candidates = append(candidates, candidate{
			path:  path,
			size:  info.Size(),
			mtime: info.ModTime().UnixNano(),
		})
		stats.FilesAccepted++
		return nil
	})
	if err != nil {
		if _, ok := coreerr.CodeOf(err); ok {
			return nil, Stats{}, err // already a CoreError (e.g. CodeTooManyFiles); preserve its code
		}
		return nil, Stats{}, coreerr.Wrap(coreerr.CodeCatalogScanFailed, "walk root", err)
	}

	return candidates, stats, nil
}

// readHeader reads up to magicHeaderLen bytes from path for format
// sniffing.
func readHeader(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	buf := make([]byte, magicHeaderLen)
	n, err := f.Read(buf)
	if err != nil && n == 0 {
		return nil, err
	}
	return buf[:n], nil
}

// Lookup returns the filesystem path for digest, if the catalog has seen
// it in a scan.
func (c *Catalog) Lookup(digest models.Digest) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.entries[digest]
	if !ok {
		return "", false
	}
	return entry.Path, true
}

// PresentDigests returns every digest currently known to the catalog.
func (c *Catalog) PresentDigests() []models.Digest {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]models.Digest, 0, len(c.entries))
	for d := range c.entries {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Stats returns counters from the most recently completed scan.
func (c *Catalog) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stats
}
