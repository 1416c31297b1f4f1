// Copyright 2025 UMH Systems GmbH
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

package backoff

import (
	"errors"
	"syscall"
)

// ErrorCategory tells the retry loop how to treat the error returned by an attempt.
type ErrorCategory int

const (
	// CategoryIgnored marks an error that is expected and benign in the current
	// context; it counts as a failed attempt but is logged at debug level only.
	CategoryIgnored ErrorCategory = iota

	// CategoryTransient marks an expected, usually self-resolving condition
	// (resource busy, file temporarily missing). The loop keeps retrying.
	CategoryTransient

	// CategoryPermanent marks an unexpected error. The loop aborts at once,
	// skips the fallback and reports Failed.
	CategoryPermanent
)

func (c ErrorCategory) String() string {
	switch c {
	case CategoryIgnored:
		return "ignored"
	case CategoryTransient:
		return "transient"
	case CategoryPermanent:
		return "permanent"
	default:
		return "unknown"
	}
}

// CategorizedError is a wrapper that includes the underlying error plus a Category.
type CategorizedError struct {
	Err      error
	Category ErrorCategory
}

// Error returns the original error message.
func (ce *CategorizedError) Error() string {
	return ce.Err.Error()
}

// Unwrap returns the underlying wrapped error.
func (ce *CategorizedError) Unwrap() error {
	return ce.Err
}

// IsCategory checks if the CategorizedError has the specified category.
func (ce *CategorizedError) IsCategory(category ErrorCategory) bool {
	return ce.Category == category
}

// NewIgnoredError wraps err as CategoryIgnored.
func NewIgnoredError(err error) error {
	return &CategorizedError{Err: err, Category: CategoryIgnored}
}

// NewTransientError wraps err as CategoryTransient.
func NewTransientError(err error) error {
	return &CategorizedError{Err: err, Category: CategoryTransient}
}

// NewPermanentError wraps err as CategoryPermanent.
func NewPermanentError(err error) error {
	return &CategorizedError{Err: err, Category: CategoryPermanent}
}

// CategorizeError ensures that every error is at least Transient if not already a CategorizedError.
func CategorizeError(err error) error {
	if err == nil {
		return nil
	}
	var ce *CategorizedError
	if errors.As(err, &ce) {
		return err
	}

	return NewTransientError(err)
}

// CategoryOf returns the category of err; uncategorized errors are Transient.
func CategoryOf(err error) ErrorCategory {
	var ce *CategorizedError
	if errors.As(err, &ce) {
		return ce.Category
	}

	return CategoryTransient
}

// IsIgnoredError is a convenience checker for CategoryIgnored.
func IsIgnoredError(err error) bool {
	var ce *CategorizedError
	return errors.As(err, &ce) && ce.IsCategory(CategoryIgnored)
}

// IsTransientError is a convenience checker for CategoryTransient.
func IsTransientError(err error) bool {
	var ce *CategorizedError
	return errors.As(err, &ce) && ce.IsCategory(CategoryTransient)
}

// IsPermanentError is a convenience checker for CategoryPermanent.
func IsPermanentError(err error) bool {
	var ce *CategorizedError
	return errors.As(err, &ce) && ce.IsCategory(CategoryPermanent)
}

// ErrnoOf returns the numeric errno carried anywhere in err's chain, or 0.
func ErrnoOf(err error) int {
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return int(errno)
	}

	return 0
}

// ExtractOriginalError unwraps err down to its root cause.
func ExtractOriginalError(err error) error {
	if err == nil {
		return nil
	}

	unwrapped := err
	for {
		next := errors.Unwrap(unwrapped)
		if next == nil {
			return unwrapped
		}
		unwrapped = next
	}
}
