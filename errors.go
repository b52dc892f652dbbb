package council

import (
	"errors"
	"fmt"
)

// Sentinel errors for run and roster failures. All fatal run errors wrap
// one of these, so callers can branch with errors.Is while the message
// carries the per-member detail.
var (
	// ErrInsufficientResponses means fewer than MinResponses members
	// answered in stage 1. The wrapped message names every member that
	// failed and why.
	ErrInsufficientResponses = errors.New("insufficient responses to deliberate")

	// ErrTooManyResponses means a review would need more anonymous
	// labels than the alphabet provides. NewRoster rejects such rosters
	// up front, so a running council never hits this mid-flight.
	ErrTooManyResponses = errors.New("response set exceeds label alphabet")

	// ErrSynthesisFailed means the aggregator's stage 3 call failed.
	// Synthesis has no fallback: without it there is no final answer.
	ErrSynthesisFailed = errors.New("synthesis failed")

	// ErrUnparsableReview means a review reply contained no usable
	// ranking. The review is discarded; the run continues.
	ErrUnparsableReview = errors.New("no ranking found in review")

	// ErrNoGateway is returned by New when no gateway is supplied.
	ErrNoGateway = errors.New("no gateway configured")

	// Roster validation errors.
	ErrEmptyRoster     = errors.New("roster has no participants")
	ErrNoAggregator    = errors.New("roster has no aggregator")
	ErrDuplicateMember = errors.New("duplicate member in roster")
	ErrEmptyQuestion   = errors.New("question is empty")
)

// BackendErrorKind classifies why a backend call failed.
type BackendErrorKind int

const (
	// BackendUnavailable covers connection failures, 5xx responses, and
	// anything else with no more specific classification.
	BackendUnavailable BackendErrorKind = iota

	// BackendTimeout means the per-call deadline elapsed and the call
	// was canceled.
	BackendTimeout

	// BackendRateLimited means the backend rejected the call with a
	// rate limit (HTTP 429).
	BackendRateLimited

	// BackendMalformed means the backend answered but the reply was
	// empty or undecodable.
	BackendMalformed
)

// String returns the kind as a short lowercase token.
func (k BackendErrorKind) String() string {
	switch k {
	case BackendTimeout:
		return "timeout"
	case BackendRateLimited:
		return "rate_limited"
	case BackendMalformed:
		return "malformed"
	default:
		return "unavailable"
	}
}

// BackendError reports a failed call to a single member's backend.
// It carries which member failed, a kind for classification, and the
// underlying cause.
type BackendError struct {
	Member string
	Kind   BackendErrorKind
	Err    error
}

// Error implements the error interface.
func (e *BackendError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("backend %s: %s", e.Member, e.Kind)
	}
	return fmt.Sprintf("backend %s: %s: %v", e.Member, e.Kind, e.Err)
}

// Unwrap returns the underlying cause.
func (e *BackendError) Unwrap() error {
	return e.Err
}
