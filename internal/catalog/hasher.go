// selectrank - pairwise image rating and convergence engine
// SPDX-License-Identifier: AGPL-3.0-or-later

package catalog

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"golang.org/x/crypto/blake2b"

	"github.com/lensloop/selectrank/internal/models"
)

// hashFile streams path through a BLAKE2b-256 hash in fixed-size chunks,
// checking ctx between chunks so a cancelled scan stops mid-file instead
// of finishing a large one the caller no longer wants. chunkBytes of zero
// or less falls back to defaultChunkBytes.
func hashFile(ctx context.Context, path string, chunkBytes int) (models.Digest, error) {
	if chunkBytes <= 0 {
		chunkBytes = defaultChunkBytes
	}

	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	h, err := blake2b.New256(nil)
	if err != nil {
		return "", fmt.Errorf("init hasher: %w", err)
	}

	buf := make([]byte, chunkBytes)
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		n, readErr := f.Read(buf)
		if n > 0 {
			if _, werr := h.Write(buf[:n]); werr != nil {
				return "", fmt.Errorf("hash %s: %w", path, werr)
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return "", fmt.Errorf("read %s: %w", path, readErr)
		}
	}

	return models.Digest(hex.EncodeToString(h.Sum(nil))), nil
}

// defaultChunkBytes is the fixed chunk size used when a scan's
// configuration doesn't specify one.
const defaultChunkBytes = 1 << 20
