// Package relay orchestrates one turn submission end to end: admission
// control, liveness signaling, the retried completion call, history
// bookkeeping, and reply chunking.
package relay

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"relaybot/internal/chunk"
	"relaybot/internal/gate"
	"relaybot/internal/history"
	"relaybot/internal/liveness"
	"relaybot/internal/llm"
	"relaybot/internal/types"
)

// Caller abstracts the retrying completion client for tests.
type Caller interface {
	Call(ctx context.Context, req llm.Request) (llm.Response, error)
}

// Options configures a Dispatcher.
type Options struct {
	Model           string
	MaxOutputTokens int
	Temperature     float64
	ChunkLimit      int
	TypingInterval  time.Duration

	// ReplayReferencedReply controls whether the assistant text a user
	// replied to is replayed into the outbound request as an extra
	// assistant turn.
	ReplayReferencedReply bool
}

// SubmitOptions carries per-submission inputs beyond the content parts.
type SubmitOptions struct {
	// SystemPromptOverride replaces the configured system turn for this
	// request only; the stored history keeps its own system turn.
	SystemPromptOverride string

	// ReferencedReply is the assistant text the user replied to, if any.
	ReferencedReply string

	// Notify pings the output channel while the call is in flight (e.g. a
	// typing indicator). Nil disables liveness signaling.
	Notify liveness.NotifyFunc
}

// Dispatcher composes the admission gate, conversation store, retrying
// client, liveness signaler, and chunker into the submit-a-turn operation.
type Dispatcher struct {
	gate   *gate.Gate
	store  *history.Store
	caller Caller
	opts   Options
	logger *zap.Logger
}

// New builds a dispatcher. All collaborators are required except logger.
func New(g *gate.Gate, store *history.Store, caller Caller, opts Options, logger *zap.Logger) *Dispatcher {
	if opts.ChunkLimit <= 0 {
		opts.ChunkLimit = chunk.DefaultLimit
	}
	if opts.TypingInterval <= 0 {
		opts.TypingInterval = liveness.DefaultInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		gate:   g,
		store:  store,
		caller: caller,
		opts:   opts,
		logger: logger,
	}
}

// Submit relays one user turn for key and returns the reply in
// transmission-sized chunks. On any terminal failure the conversation
// history is left untouched and the error carries the typed outcome
// (*types.ExhaustedError, types.ErrEmptyCompletion, or the fatal error).
// The liveness signaler is always stopped and awaited before Submit returns.
func (d *Dispatcher) Submit(ctx context.Context, key types.ConversationKey, parts []types.ContentPart, opts SubmitOptions) ([]string, error) {
	logger := d.logger.With(
		zap.String("request_id", uuid.NewString()),
		zap.Stringer("key", key))

	if err := d.gate.Acquire(ctx); err != nil {
		logger.Warn("admission cancelled", zap.Error(err))
		return nil, err
	}
	defer d.gate.Release()

	if opts.Notify != nil {
		sig := liveness.Start(ctx, opts.Notify, d.opts.TypingInterval, logger)
		defer sig.Stop()
	}

	userTurn := types.UserTurn(parts...)
	req := llm.Request{
		Model:       d.opts.Model,
		Turns:       d.buildTurns(key, userTurn, opts),
		MaxTokens:   d.opts.MaxOutputTokens,
		Temperature: d.opts.Temperature,
	}

	logger.Debug("submitting turn", zap.Int("context_turns", len(req.Turns)))
	start := time.Now()
	resp, err := d.caller.Call(ctx, req)
	if err != nil {
		return nil, err
	}
	if resp.Content == "" {
		logger.Warn("completion service produced no content")
		return nil, types.ErrEmptyCompletion
	}

	d.store.Append(key, userTurn, types.AssistantTurn(resp.Content))

	chunks := chunk.Split(resp.Content, d.opts.ChunkLimit)
	logger.Info("turn relayed",
		zap.Duration("elapsed", time.Since(start)),
		zap.Int("reply_len", len(resp.Content)),
		zap.Int("chunks", len(chunks)))
	return chunks, nil
}

// buildTurns assembles system + history + optional replayed assistant reply +
// the new user turn from a snapshot, so a concurrent append on the same key
// never tears the request.
func (d *Dispatcher) buildTurns(key types.ConversationKey, userTurn types.Turn, opts SubmitOptions) []types.Turn {
	turns := d.store.Snapshot(key)
	if opts.SystemPromptOverride != "" && len(turns) > 0 && turns[0].Role == types.RoleSystem {
		turns[0] = types.SystemTurn(opts.SystemPromptOverride)
	}
	if d.opts.ReplayReferencedReply && opts.ReferencedReply != "" {
		turns = append(turns, types.AssistantTurn(opts.ReferencedReply))
	}
	return append(turns, userTurn)
}

// Reset clears one conversation history.
func (d *Dispatcher) Reset(key types.ConversationKey) {
	d.store.Reset(key)
}

// ResetAll clears every conversation history.
func (d *Dispatcher) ResetAll() {
	d.store.ResetAll()
}
