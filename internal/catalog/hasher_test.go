// selectrank - pairwise image rating and convergence engine
// SPDX-License-Identifier: AGPL-3.0-or-later

package catalog

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func writeTempFile(t *testing.T, content []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sample.bin")
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatalf("WriteFile() error: %v", err)
	}
	return path
}

func TestHashFile_DeterministicForIdenticalContent(t *testing.T) {
	t.Parallel()

	content := []byte("the quick brown fox jumps over the lazy dog")
	pathA := writeTempFile(t, content)
	pathB := writeTempFile(t, content)

	digestA, err := hashFile(context.Background(), pathA, 4)
	if err != nil {
		t.Fatalf("hashFile() error: %v", err)
	}
	digestB, err := hashFile(context.Background(), pathB, 4)
	if err != nil {
		t.Fatalf("hashFile() error: %v", err)
	}

	if digestA != digestB {
		t.Errorf("digestA = %q, digestB = %q, want equal", digestA, digestB)
	}
	if len(digestA) != 64 {
		t.Errorf("len(digest) = %d, want 64 (256 bits hex-encoded)", len(digestA))
	}
}

func TestHashFile_ChunkSizeDoesNotAffectDigest(t *testing.T) {
	t.Parallel()

	content := make([]byte, 10_000)
	for i := range content {
		content[i] = byte(i % 251)
	}
	path := writeTempFile(t, content)

	small, err := hashFile(context.Background(), path, 7)
	if err != nil {
		t.Fatalf("hashFile(chunk=7) error: %v", err)
	}
	large, err := hashFile(context.Background(), path, 1<<20)
	if err != nil {
		t.Fatalf("hashFile(chunk=1MiB) error: %v", err)
	}

	if small != large {
		t.Errorf("digest depends on chunk size: %q != %q", small, large)
	}
}

func TestHashFile_DifferentContentDifferentDigest(t *testing.T) {
	t.Parallel()

	pathA := writeTempFile(t, []byte("alpha"))
	pathB := writeTempFile(t, []byte("beta"))

	digestA, err := hashFile(context.Background(), pathA, 0)
	if err != nil {
		t.Fatalf("hashFile() error: %v", err)
	}
	digestB, err := hashFile(context.Background(), pathB, 0)
	if err != nil {
		t.Fatalf("hashFile() error: %v", err)
	}

	if digestA == digestB {
		t.Error("expected different content to produce different digests")
	}
}

func TestHashFile_CancelledContextStopsEarly(t *testing.T) {
	t.Parallel()

	content := make([]byte, 1<<20)
	path := writeTempFile(t, content)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := hashFile(ctx, path, 64); err == nil {
		t.Error("expected hashFile to return an error for a cancelled context")
	}
}

func TestHashFile_MissingFile(t *testing.T) {
	t.Parallel()

	if _, err := hashFile(context.Background(), filepath.Join(t.TempDir(), "nope.bin"), 0); err == nil {
		t.Error("expected an error for a missing file")
	}
}
