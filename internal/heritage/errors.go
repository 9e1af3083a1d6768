package heritage

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Code identifies a resolution failure class. Codes are stable strings and
// form the wire contract for error responses.
type Code string

const (
	// CodeInvalidCoordinate: malformed or non-finite input. Caller bug, not retryable.
	CodeInvalidCoordinate Code = "InvalidCoordinate"
	// CodeOutOfCoverageArea: coordinate outside the configured coverage bounds.
	CodeOutOfCoverageArea Code = "OutOfCoverageArea"
	// CodeStoreNotReady: no dataset snapshot loaded yet. Retryable after backoff.
	CodeStoreNotReady Code = "StoreNotReady"
	// CodeMatcherTimeout: a matcher exceeded its time budget. Retryable.
	CodeMatcherTimeout Code = "MatcherTimeout"
	// CodeInternal: invariant violation inside the resolver. Programming error.
	CodeInternal Code = "InternalResolutionError"
)

// Error is a typed resolution failure. It serializes to a stable JSON shape
// independent of transport.
type Error struct {
	Code      Code   `json:"errorCode"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("heritage: %s: %s", e.Code, e.Message)
}

// MarshalJSON keeps the wire shape explicit even if the struct grows.
func (e *Error) MarshalJSON() ([]byte, error) {
	type wire Error
	return json.Marshal((*wire)(e))
}

func newError(code Code, retryable bool, format string, args ...any) *Error {
	return &Error{
		Code:      code,
		Message:   fmt.Sprintf(format, args...),
		Retryable: retryable,
	}
}

// ErrInvalidCoordinate reports a malformed or non-finite coordinate.
func ErrInvalidCoordinate(lat, lng float64) *Error {
	return newError(CodeInvalidCoordinate, false, "coordinate (%v, %v) is not a finite lat/lng pair", lat, lng)
}

// ErrOutOfCoverage reports a coordinate outside the coverage bounds.
func ErrOutOfCoverage(lat, lng float64) *Error {
	return newError(CodeOutOfCoverageArea, false, "coordinate (%.5f, %.5f) is outside the coverage area", lat, lng)
}

// ErrStoreNotReady reports that no snapshot has been loaded.
func ErrStoreNotReady() *Error {
	return newError(CodeStoreNotReady, true, "no dataset snapshot loaded")
}

// ErrMatcherTimeout reports a matcher exceeding its time budget.
func ErrMatcherTimeout(matcher string) *Error {
	return newError(CodeMatcherTimeout, true, "%s matcher exceeded its time budget", matcher)
}

// ErrInternal reports an invariant violation. Never downgraded to GREEN.
func ErrInternal(format string, args ...any) *Error {
	return newError(CodeInternal, false, format, args...)
}

// CodeOf extracts the failure code from an error chain, or "" if the error
// is not a heritage error.
func CodeOf(err error) Code {
	var he *Error
	if errors.As(err, &he) {
		return he.Code
	}
	return ""
}

// IsRetryable reports whether the error is a retryable heritage failure.
func IsRetryable(err error) bool {
	var he *Error
	return errors.As(err, &he) && he.Retryable
}
