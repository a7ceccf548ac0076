package types

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a failed completion attempt for retry decisions.
type ErrorKind int

const (
	// KindRateLimited - provider returned 429; retry with jittered backoff.
	KindRateLimited ErrorKind = iota
	// KindTransientService - provider-side failure (5xx); retry with backoff.
	KindTransientService
	// KindUnknownTransient - unclassified failure (network, timeout); retried
	// conservatively.
	KindUnknownTransient
	// KindFatal - malformed request, auth failure; never retried.
	KindFatal
)

func (k ErrorKind) String() string {
	switch k {
	case KindRateLimited:
		return "rate_limited"
	case KindTransientService:
		return "transient_service_error"
	case KindUnknownTransient:
		return "unknown_transient"
	case KindFatal:
		return "fatal"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

// ErrEmptyCompletion signals that the service answered but produced no
// content. It is a soft terminal outcome: the dispatcher leaves history
// untouched and the caller shows a fallback notice.
var ErrEmptyCompletion = errors.New("completion service returned no content")

// ExhaustedError is the terminal outcome after the retry budget ran out.
// It wraps the error from the final attempt.
type ExhaustedError struct {
	Attempts int
	Last     error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("retries exhausted after %d attempts: %v", e.Attempts, e.Last)
}

func (e *ExhaustedError) Unwrap() error { return e.Last }
