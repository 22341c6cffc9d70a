// selectrank - pairwise image rating and convergence engine
// SPDX-License-Identifier: AGPL-3.0-or-later

package catalog

import (
	"bytes"
	"path/filepath"
	"strings"
)

// supportedExtensions are the file extensions the catalog will consider.
// An extension match alone is not enough to accept a file; its magic
// bytes must also match the corresponding format (see sniffFormat).
var supportedExtensions = map[string]string{
	".jpg":  "jpeg",
	".jpeg": "jpeg",
	".png":  "png",
	".webp": "webp",
	".gif":  "gif",
}

// magicHeaderLen is the number of leading bytes sniffFormat needs to see
// to decide a file's format; WebP's RIFF/WEBP signature spans 12 bytes.
const magicHeaderLen = 12

// extensionFormat reports the format implied by path's extension, and
// whether the extension is one the catalog accepts at all.
func extensionFormat(path string) (format string, ok bool) {
	ext := strings.ToLower(filepath.Ext(path))
	format, ok = supportedExtensions[ext]
	return format, ok
}

// sniffFormat inspects a file's leading bytes and reports which
// supported format, if any, they match. header should contain at least
// magicHeaderLen bytes when available; shorter headers simply fail every
// check they're too short for.
func sniffFormat(header []byte) (format string, ok bool) {
	switch {
	case len(header) >= 3 && header[0] == 0xFF && header[1] == 0xD8 && header[2] == 0xFF:
		return "jpeg", true
	case len(header) >= 8 && bytes.Equal(header[:8], []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A}):
		return "png", true
	case len(header) >= 6 && (bytes.Equal(header[:6], []byte("GIF87a")) || bytes.Equal(header[:6], []byte("GIF89a"))):
		return "gif", true
	case len(header) >= 12 && bytes.Equal(header[:4], []byte("RIFF")) && bytes.Equal(header[8:12], []byte("WEBP")):
		return "webp", true
	default:
		return "", false
	}
}

// accept reports whether a file should be cataloged: its extension must
// be one of the supported ones, and its magic bytes must agree with what
// that extension claims. This rejects a renamed file masquerading under
// a supported extension.
func accept(path string, header []byte) bool {
	wantFormat, extOK := extensionFormat(path)
	if !extOK {
		return false
	}
	gotFormat, sniffOK := sniffFormat(header)
	return sniffOK && gotFormat == wantFormat
}
