// Package llm talks to hosted completion services. It provides provider
// clients (OpenAI-compatible HTTP, Gemini), error classification for the
// backoff policy, and the retrying wrapper used by the dispatcher.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"relaybot/internal/types"
)

// Request is one outbound completion call: the model, the full ordered turn
// list (system + history + new turn), and fixed generation parameters.
type Request struct {
	Model       string
	Turns       []types.Turn
	MaxTokens   int
	Temperature float64
}

// Response is the completion outcome. Content is empty when the service
// answered with zero choices; that is a soft failure the dispatcher decides
// how to surface, not an error.
type Response struct {
	Content string
}

// Client performs a single completion attempt. Implementations do not retry;
// retry policy lives in Retrier.
type Client interface {
	Complete(ctx context.Context, req Request) (Response, error)
}

// APIError is a non-2xx response from a completion provider.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("completion API error: status %d: %s", e.Status, e.Message)
}

// Classify maps an attempt error to the retry taxonomy. Rate limits back off
// with jitter, provider-side failures and timeouts are transient, and
// request/auth problems are fatal.
func Classify(err error) types.ErrorKind {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Status == http.StatusTooManyRequests:
			return types.KindRateLimited
		case apiErr.Status >= http.StatusInternalServerError:
			return types.KindTransientService
		default:
			// 4xx other than 429: the request itself is wrong.
			return types.KindFatal
		}
	}

	// Per-attempt timeouts count as transient, not fatal.
	if errors.Is(err, context.DeadlineExceeded) {
		return types.KindUnknownTransient
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return types.KindUnknownTransient
	}

	return types.KindUnknownTransient
}
