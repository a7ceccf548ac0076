package llm

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"relaybot/internal/backoff"
	"relaybot/internal/types"
)

// scriptedClient returns the queued errors in order, then succeeds.
type scriptedClient struct {
	errs     []error
	response Response
	calls    int
}

func (c *scriptedClient) Complete(ctx context.Context, req Request) (Response, error) {
	c.calls++
	if len(c.errs) > 0 {
		err := c.errs[0]
		c.errs = c.errs[1:]
		return Response{}, err
	}
	return c.response, nil
}

// newTestRetrier swaps the sleeper for one that records delays and returns
// instantly.
func newTestRetrier(client Client, policy backoff.Policy) (*Retrier, *[]time.Duration) {
	r := NewRetrier(client, policy, 0, nil)
	delays := &[]time.Duration{}
	r.sleep = func(ctx context.Context, d time.Duration) error {
		*delays = append(*delays, d)
		return nil
	}
	return r, delays
}

func TestCall_SucceedsFirstTry(t *testing.T) {
	client := &scriptedClient{response: Response{Content: "hi"}}
	r, delays := newTestRetrier(client, backoff.New(3, 2*time.Second))

	resp, err := r.Call(context.Background(), Request{Model: "m"})
	require.NoError(t, err)
	assert.Equal(t, "hi", resp.Content)
	assert.Equal(t, 1, client.calls)
	assert.Empty(t, *delays)
}

// TestCall_TwoTransientFailuresThenSuccess reproduces the canonical scenario:
// base delay 2, two transient failures, success on the third attempt with
// observed delays of 2s and 4s.
func TestCall_TwoTransientFailuresThenSuccess(t *testing.T) {
	client := &scriptedClient{
		errs: []error{
			&APIError{Status: http.StatusServiceUnavailable, Message: "down"},
			&APIError{Status: http.StatusServiceUnavailable, Message: "still down"},
		},
		response: Response{Content: "recovered"},
	}
	r, delays := newTestRetrier(client, backoff.New(3, 2*time.Second))

	resp, err := r.Call(context.Background(), Request{Model: "m"})
	require.NoError(t, err)
	assert.Equal(t, "recovered", resp.Content)
	assert.Equal(t, 3, client.calls)
	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second}, *delays)
}

func TestCall_ExhaustsRetryBudget(t *testing.T) {
	down := &APIError{Status: http.StatusInternalServerError, Message: "boom"}
	client := &scriptedClient{errs: []error{down, down, down, down}}
	r, _ := newTestRetrier(client, backoff.New(3, time.Second))

	_, err := r.Call(context.Background(), Request{Model: "m"})
	var exhausted *types.ExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, 3, exhausted.Attempts, "exactly max_attempts tries")
	assert.Equal(t, 3, client.calls)
	assert.ErrorIs(t, err, down)
}

func TestCall_FatalShortCircuits(t *testing.T) {
	fatal := &APIError{Status: http.StatusUnauthorized, Message: "bad key"}
	client := &scriptedClient{errs: []error{fatal}}
	r, delays := newTestRetrier(client, backoff.New(3, time.Second))

	_, err := r.Call(context.Background(), Request{Model: "m"})
	require.ErrorIs(t, err, fatal)

	var exhausted *types.ExhaustedError
	assert.False(t, errors.As(err, &exhausted), "fatal must not be wrapped as exhaustion")
	assert.Equal(t, 1, client.calls, "fatal errors get exactly one attempt")
	assert.Empty(t, *delays)
}

func TestCall_EmptyChoicesIsSoftSuccess(t *testing.T) {
	client := &scriptedClient{response: Response{}}
	r, _ := newTestRetrier(client, backoff.New(3, time.Second))

	resp, err := r.Call(context.Background(), Request{Model: "m"})
	require.NoError(t, err)
	assert.Empty(t, resp.Content)
	assert.Equal(t, 1, client.calls, "empty completion is not retried")
}

func TestCall_ContextCancelAbortsBackoffSleep(t *testing.T) {
	down := &APIError{Status: http.StatusServiceUnavailable}
	client := &scriptedClient{errs: []error{down, down, down}}
	r := NewRetrier(client, backoff.New(3, time.Hour), 0, nil)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	_, err := r.Call(ctx, Request{Model: "m"})
	require.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), time.Second, "cancel must interrupt the backoff sleep")
}

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want types.ErrorKind
	}{
		{"rate limited", &APIError{Status: 429}, types.KindRateLimited},
		{"server error", &APIError{Status: 500}, types.KindTransientService},
		{"bad gateway", &APIError{Status: 502}, types.KindTransientService},
		{"bad request", &APIError{Status: 400}, types.KindFatal},
		{"unauthorized", &APIError{Status: 401}, types.KindFatal},
		{"deadline", context.DeadlineExceeded, types.KindUnknownTransient},
		{"wrapped deadline", errors.Join(errors.New("request failed"), context.DeadlineExceeded), types.KindUnknownTransient},
		{"plain error", errors.New("connection reset"), types.KindUnknownTransient},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Classify(tc.err))
		})
	}
}
