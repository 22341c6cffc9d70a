// selectrank - pairwise image rating and convergence engine
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package validation wraps go-playground/validator v10 behind a thread-safe
// singleton with human-readable error messages, used to validate both the
// loaded configuration and inbound session requests.
//
// # Quick Start
//
//	type RecordChoiceRequest struct {
//	    Round   int    `validate:"gte=0"`
//	    Left    string `validate:"required,len=64,hexadecimal"`
//	    Right   string `validate:"required,len=64,hexadecimal"`
//	    Outcome string `validate:"required,oneof=LEFT RIGHT SKIP"`
//	}
//
//	if verr := validation.ValidateStruct(&req); verr != nil {
//	    return nil, verr.ToCoreError()
//	}
//
// # Common validation tags
//
//   - required, omitempty
//   - min=n, max=n (length for strings, bounds for numbers)
//   - gte=n, lte=n, gt=n, lt=n
//   - oneof=a b c
//   - hexadecimal, len=n (used for content digests)
//
// # Thread safety
//
// GetValidator and ValidateStruct are safe for concurrent use; the
// validator instance is built once and its struct-reflection cache is
// shared across callers.
package validation
