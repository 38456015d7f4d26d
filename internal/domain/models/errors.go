package models

import (
	"errors"
	"fmt"
)

// ErrorKind tags a pipeline failure so callers can branch on expected versus
// unexpected conditions without string matching.
type ErrorKind string

const (
	KindDataUnavailable   ErrorKind = "data_unavailable"
	KindMalformedSnapshot ErrorKind = "malformed_snapshot"
	KindFeatureContract   ErrorKind = "feature_contract_violation"
	KindModelNotLoaded    ErrorKind = "model_not_loaded"
)

// Reasons refine KindDataUnavailable.
const (
	ReasonMarketClosed = "market_closed"
	ReasonNetwork      = "network"
	ReasonRateLimited  = "rate_limited"
)

// Error is a tagged pipeline error.
type Error struct {
	Kind   ErrorKind
	Reason string
	Msg    string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// MarketClosed reports that the exchange is closed; expected and not
// retryable within the call.
func MarketClosed(msg string) *Error {
	return &Error{Kind: KindDataUnavailable, Reason: ReasonMarketClosed, Msg: msg}
}

// NetworkUnavailable reports a transient upstream failure; the caller may
// retry with backoff.
func NetworkUnavailable(msg string, err error) *Error {
	return &Error{Kind: KindDataUnavailable, Reason: ReasonNetwork, Msg: msg, Err: err}
}

// RateLimited reports upstream throttling.
func RateLimited(msg string) *Error {
	return &Error{Kind: KindDataUnavailable, Reason: ReasonRateLimited, Msg: msg}
}

// MalformedSnapshot reports a snapshot with too few strikes or fields.
func MalformedSnapshot(msg string) *Error {
	return &Error{Kind: KindMalformedSnapshot, Msg: msg}
}

// FeatureContractViolation reports an aggregator/manifest mismatch; a
// deployment defect, never retried.
func FeatureContractViolation(msg string) *Error {
	return &Error{Kind: KindFeatureContract, Msg: msg}
}

// ModelNotLoaded reports that the model artifact failed to initialize.
func ModelNotLoaded(msg string, err error) *Error {
	return &Error{Kind: KindModelNotLoaded, Msg: msg, Err: err}
}

// KindOf extracts the kind tag, or "" for untagged errors.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// ReasonOf extracts the reason subtag, or "" when absent.
func ReasonOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Reason
	}
	return ""
}

// IsRetryable reports whether the caller may retry with backoff. Only
// transient network failures qualify; market-closed and deployment defects
// never do.
func IsRetryable(err error) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind == KindDataUnavailable && e.Reason == ReasonNetwork
}
