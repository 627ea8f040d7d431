// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package classerr defines the semantic error kinds shared across the
// classification pipeline. Kinds are discoverable with errors.As, never
// by matching on an error's message text.
package classerr

import (
	"errors"
	"fmt"
)

// Kind names a semantic failure category. The zero value is never used.
type Kind string

const (
	// KindTransientProvider is a network or 5xx-equivalent failure from
	// a provider; retryable with backoff up to a configured count.
	KindTransientProvider Kind = "transient_provider"

	// KindRateLimited means a provider signaled throttling. Reported to
	// the rate-limit governor; the caller awaits a grant.
	KindRateLimited Kind = "rate_limited"

	// KindQuotaExhausted means a provider signaled a hard quota. The
	// provider is marked unusable for the session and failover is
	// triggered.
	KindQuotaExhausted Kind = "quota_exhausted"

	// KindMalformedResponse means the structured-output contract was
	// violated. Non-retryable on the same provider.
	KindMalformedResponse Kind = "malformed_response"

	// KindLeadValidation means a required field was absent or invalid
	// on a single lead. Recorded per-lead; never aborts the batch.
	KindLeadValidation Kind = "lead_validation"

	// KindDuplicateRunningJob means another job is already running
	// against the same input path.
	KindDuplicateRunningJob Kind = "duplicate_running_job"

	// KindSourceChanged means a resumable job's input fingerprint no
	// longer matches the source file.
	KindSourceChanged Kind = "source_changed"

	// KindLockContention means another holder owns the job lock for
	// this path.
	KindLockContention Kind = "lock_contention"

	// KindStoreError means a persistent-store write failed.
	KindStoreError Kind = "store_error"
)

// Error is a typed classification-pipeline error carrying a semantic
// Kind alongside the usual message and wrapped cause.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New builds an Error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap builds an Error of the given kind wrapping a cause.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// Is reports whether err carries the given Kind.
func Is(err error, kind Kind) bool {
	if err == nil {
		return false
	}
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind == kind
	}
	return false
}

// KindOf extracts the Kind from err, returning ("", false) if err is not
// a classification-pipeline error.
func KindOf(err error) (Kind, bool) {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind, true
	}
	return "", false
}
