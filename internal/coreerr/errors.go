// selectrank - pairwise image rating and convergence engine
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package coreerr defines the tagged-variant error taxonomy used across the
// rating, pairing, and convergence engine.
package coreerr

import (
	"errors"
	"fmt"
)

// Kind is the abstract error category. Only Fatal may propagate as a panic;
// every other Kind surfaces to the caller with a stable Code.
type Kind string

const (
	KindInputInvalid  Kind = "InputInvalid"
	KindNotReady      Kind = "NotReady"
	KindConflict      Kind = "Conflict"
	KindResourceLimit Kind = "ResourceLimit"
	KindTransient     Kind = "Transient"
	KindFatal         Kind = "Fatal"
)

// Code is a stable, machine-readable tag naming the specific failure.
type Code string

const (
	CodeStaleRound         Code = "StaleRound"
	CodeUnknownDigest      Code = "UnknownDigest"
	CodeNotEnoughImages    Code = "NotEnoughImages"
	CodeDirectoryNotFound  Code = "DirectoryNotFound"
	CodeTooManyFiles       Code = "TooManyFiles"
	CodeInvalidOutcome     Code = "InvalidOutcome"
	CodeDigestMismatch     Code = "DigestMismatch"
	CodeNoDirectorySet     Code = "NoDirectorySet"
	CodeFileMissing        Code = "FileMissing"
	CodeFileTooLarge       Code = "FileTooLarge"
	CodeInvariantViolation Code = "InvariantViolation"
	// CodeInputInvalid tags generic struct-tag validation failures (config
	// fields, request fields) that don't have a more specific Code.
	CodeInputInvalid Code = "InputInvalid"
	// CodeStorageUnavailable tags failures opening or reaching a persisted
	// store (BadgerDB cache, DuckDB database) — usually retryable once the
	// underlying resource (disk, lock) frees up.
	CodeStorageUnavailable Code = "StorageUnavailable"
	// CodeCatalogScanFailed tags a scan that aborted for a reason other
	// than exceeding max_files (walk error, cancellation, hashing failure).
	CodeCatalogScanFailed Code = "CatalogScanFailed"
	// CodeConflict tags a transactional write that lost a retry race
	// against a concurrent writer.
	CodeConflict Code = "Conflict"
)

// CoreError is the explicit result-type error value for every operation
// in this module; call sites are expected to branch on Code rather than
// on error string content.
type CoreError struct {
	Kind Code
	Tier Kind
	Msg  string
	Err  error
}

func (e *CoreError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Tier, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Tier, e.Msg)
}

func (e *CoreError) Unwrap() error { return e.Err }

// Is allows errors.Is(err, coreerr.New(CodeStaleRound, "")) to match purely
// on Code, ignoring message and wrapped cause.
func (e *CoreError) Is(target error) bool {
	t, ok := target.(*CoreError)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// New builds a CoreError, inferring Tier from Code.
func New(code Code, msg string) *CoreError {
	return &CoreError{Kind: code, Tier: tierOf(code), Msg: msg}
}

// Wrap builds a CoreError around an underlying cause.
func Wrap(code Code, msg string, cause error) *CoreError {
	return &CoreError{Kind: code, Tier: tierOf(code), Msg: msg, Err: cause}
}

func tierOf(code Code) Kind {
	switch code {
	case CodeStaleRound, CodeUnknownDigest, CodeDigestMismatch, CodeConflict:
		return KindConflict
	case CodeNotEnoughImages, CodeNoDirectorySet:
		return KindNotReady
	case CodeDirectoryNotFound, CodeInvalidOutcome, CodeInputInvalid:
		return KindInputInvalid
	case CodeTooManyFiles, CodeFileTooLarge:
		return KindResourceLimit
	case CodeFileMissing, CodeStorageUnavailable:
		return KindTransient
	case CodeInvariantViolation, CodeCatalogScanFailed:
		return KindFatal
	default:
		return KindFatal
	}
}

// CodeOf extracts the Code from err if it is (or wraps) a *CoreError.
func CodeOf(err error) (Code, bool) {
	var ce *CoreError
	if errors.As(err, &ce) {
		return ce.Kind, true
	}
	return "", false
}

// Sentinel comparison values for errors.Is call sites that only care about
// the failure category, not the message.
var (
	ErrStaleRound        = New(CodeStaleRound, "round has advanced")
	ErrUnknownDigest     = New(CodeUnknownDigest, "digest not present in catalog")
	ErrNotEnoughImages   = New(CodeNotEnoughImages, "fewer than two eligible images")
	ErrDirectoryNotFound = New(CodeDirectoryNotFound, "root directory not found")
	ErrTooManyFiles      = New(CodeTooManyFiles, "catalog scan exceeded max file count")
	ErrInvalidOutcome    = New(CodeInvalidOutcome, "outcome must be LEFT, RIGHT, or SKIP")
	ErrDigestMismatch    = New(CodeDigestMismatch, "pair does not match last next_pair result")
	ErrNoDirectorySet    = New(CodeNoDirectorySet, "no catalog root configured")
	ErrFileMissing       = New(CodeFileMissing, "file missing from disk")
	ErrConflict          = New(CodeConflict, "transaction lost a retry race against a concurrent writer")
)
