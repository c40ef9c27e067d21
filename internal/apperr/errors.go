// Package apperr defines the error taxonomy surfaced by the simulators.
package apperr

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Reason tokens carried by DataNotFoundError.
const (
	ReasonSnapshotMissing      = "snapshot_missing"
	ReasonSnapshotTickMissing  = "snapshot_tick_missing"
	ReasonNonPositiveDelta     = "non_positive_time_delta"
	ReasonTickSnapshotsMissing = "tick_snapshots_missing"
	ReasonBackfillCapExceeded  = "backfill_cap_exceeded"
	ReasonBlockPinUnsupported  = "block_pin_unsupported"
	ReasonNegativeFeeDelta     = "negative_fee_delta"
	ReasonNoTicksInRange       = "no_ticks_in_range"
)

// Kind classifies an error for callers that map it onto a response status.
type Kind string

const (
	KindInput         Kind = "input"
	KindNotFound      Kind = "not_found"
	KindUnprocessable Kind = "unprocessable"
	KindExternal      Kind = "external"
	KindInternal      Kind = "internal"
)

// InputError is a malformed or out-of-domain request.
type InputError struct {
	Field   string
	Message string
}

func (e *InputError) Error() string {
	if e.Field == "" {
		return "invalid input: " + e.Message
	}
	return fmt.Sprintf("invalid input: %s: %s", e.Field, e.Message)
}

// Input builds an InputError.
func Input(field, format string, args ...any) error {
	return &InputError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// NotFoundError means the referenced pool or window does not exist at all.
type NotFoundError struct {
	Resource string
	Key      string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.Key)
}

// NotFound builds a NotFoundError.
func NotFound(resource, key string) error {
	return &NotFoundError{Resource: resource, Key: key}
}

// DataNotFoundError means reference data exists but a specific historical
// reconstruction cannot be completed.
type DataNotFoundError struct {
	Reason  string
	Message string
	Context map[string]any
	Err     error
}

func (e *DataNotFoundError) Error() string {
	var b strings.Builder
	b.WriteString(e.Reason)
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if len(e.Context) > 0 {
		keys := make([]string, 0, len(e.Context))
		for k := range e.Context {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteString(" (")
		for i, k := range keys {
			if i > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "%s=%v", k, e.Context[k])
		}
		b.WriteString(")")
	}
	return b.String()
}

func (e *DataNotFoundError) Unwrap() error {
	return e.Err
}

// DataNotFound builds a DataNotFoundError.
func DataNotFound(reason, message string, ctx map[string]any) *DataNotFoundError {
	return &DataNotFoundError{Reason: reason, Message: message, Context: ctx}
}

// ExternalFetchError is an indexer transport or GraphQL failure.
type ExternalFetchError struct {
	Op  string
	Err error
}

func (e *ExternalFetchError) Error() string {
	return fmt.Sprintf("external fetch %s: %v", e.Op, e.Err)
}

func (e *ExternalFetchError) Unwrap() error {
	return e.Err
}

// KindOf classifies err. Unknown errors are internal.
func KindOf(err error) Kind {
	var inputErr *InputError
	var notFoundErr *NotFoundError
	var dataErr *DataNotFoundError
	var fetchErr *ExternalFetchError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &inputErr):
		return KindInput
	case errors.As(err, &notFoundErr):
		return KindNotFound
	case errors.As(err, &dataErr):
		return KindUnprocessable
	case errors.As(err, &fetchErr):
		return KindExternal
	default:
		return KindInternal
	}
}

// ReasonOf returns the reason token of a DataNotFoundError in err's chain.
func ReasonOf(err error) string {
	var dataErr *DataNotFoundError
	if errors.As(err, &dataErr) {
		return dataErr.Reason
	}
	return ""
}
