// selectrank - pairwise image rating and convergence engine
// SPDX-License-Identifier: AGPL-3.0-or-later

package catalog

import (
	"errors"
	"fmt"
	"sync"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/lensloop/selectrank/internal/logging"
	"github.com/lensloop/selectrank/internal/models"
)

// cacheEntry is what the cache remembers about a file the last time it was
// hashed: its digest plus the (size, mtime) fingerprint used to decide
// whether a rescan can skip rehashing.
type cacheEntry struct {
	Digest models.Digest `json:"digest"`
	Size   int64         `json:"size"`
	MTime  int64         `json:"mtime_unix_nano"`
}

// cache is the content-addressed path→digest memo that lets a rescan skip
// rehashing files that haven't changed. A BadgerDB instance backs it for
// durability across restarts; an in-memory map guarded by an RWMutex
// serves the hot path so a warm rescan never touches disk for reads.
// Small ValueLogFileSize, sync writes off since this is a rebuildable
// cache rather than a durability-critical ledger, goccy/go-json for the
// value encoding.
type cache struct {
	db *badger.DB

	mu  sync.RWMutex
	hot map[string]cacheEntry
}

// openCache opens (creating if absent) the BadgerDB cache at path and
// warms the in-memory map from it.
func openCache(path string) (*cache, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil
	opts.ValueLogFileSize = 16 << 20
	opts.SyncWrites = false

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open catalog cache: %w", err)
	}

	c := &cache{db: db, hot: make(map[string]cacheEntry)}
	if err := c.warm(); err != nil {
		logging.CloseQuietly(db)
		return nil, fmt.Errorf("warm catalog cache: %w", err)
	}
	return c, nil
}

func (c *cache) warm() error {
	return c.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			key := string(item.KeyCopy(nil))
			err := item.Value(func(val []byte) error {
				var entry cacheEntry
				if err := json.Unmarshal(val, &entry); err != nil {
					return err
				}
				c.hot[key] = entry
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// lookup returns the cached entry for path if its fingerprint matches
// (size, mtimeUnixNano); a mismatch or miss means the file must be
// rehashed.
func (c *cache) lookup(path string, size, mtimeUnixNano int64) (models.Digest, bool) {
	c.mu.RLock()
	entry, ok := c.hot[path]
	c.mu.RUnlock()
	if !ok || entry.Size != size || entry.MTime != mtimeUnixNano {
		return "", false
	}
	return entry.Digest, true
}

// store records the digest for path under its current fingerprint, both
// in memory and durably in BadgerDB.
func (c *cache) store(path string, digest models.Digest, size, mtimeUnixNano int64) error {
	entry := cacheEntry{Digest: digest, Size: size, MTime: mtimeUnixNano}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal cache entry: %w", err)
	}

	if err := c.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(path), data)
	}); err != nil {
		return fmt.Errorf("persist cache entry: %w", err)
	}

	c.mu.Lock()
	c.hot[path] = entry
	c.mu.Unlock()
	return nil
}

// close releases the BadgerDB handle.
func (c *cache) close() error {
	if err := c.db.Close(); err != nil && !errors.Is(err, badger.ErrDBClosed) {
		return err
	}
	return nil
}
