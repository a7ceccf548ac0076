// Package history implements the per-conversation bounded turn store.
//
// Each ConversationKey owns an ordered history of at most Capacity
// user/assistant turns plus an optional pinned system turn at index 0. The
// system turn is inserted lazily the first time a history is read and is
// never evicted by capacity pressure. Histories are never persisted.
package history

import (
	"sync"

	"go.uber.org/zap"

	"relaybot/internal/types"
)

// DefaultCapacity bounds the number of non-system turns kept per key.
const DefaultCapacity = 10

type conversation struct {
	mu    sync.Mutex
	turns []types.Turn
}

// Store maps conversation keys to bounded histories. Appends on different
// keys proceed independently; appends on the same key serialize.
type Store struct {
	mu            sync.Mutex
	conversations map[types.ConversationKey]*conversation

	capacity int
	logger   *zap.Logger

	promptMu     sync.RWMutex
	systemPrompt string
}

// New builds a store with the given per-key capacity and default system
// prompt. Non-positive capacity falls back to DefaultCapacity.
func New(capacity int, systemPrompt string, logger *zap.Logger) *Store {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		conversations: make(map[types.ConversationKey]*conversation),
		capacity:      capacity,
		logger:        logger,
		systemPrompt:  systemPrompt,
	}
}

// SetSystemPrompt replaces the prompt used for lazily inserted system turns.
// Histories that already carry a system turn keep it; the new prompt applies
// to fresh or reset conversations. Safe for concurrent use (config reload).
func (s *Store) SetSystemPrompt(prompt string) {
	s.promptMu.Lock()
	s.systemPrompt = prompt
	s.promptMu.Unlock()
}

func (s *Store) currentPrompt() string {
	s.promptMu.RLock()
	defer s.promptMu.RUnlock()
	return s.systemPrompt
}

func (s *Store) conversationFor(key types.ConversationKey) *conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.conversations[key]
	if !ok {
		c = &conversation{}
		s.conversations[key] = c
	}
	return c
}

// Snapshot returns a copy of the history for key, creating it if absent.
// Reading inserts the system turn at index 0 if the history has none, so the
// returned slice always starts with a system turn. The copy is safe to use
// while concurrent appends mutate the same key.
func (s *Store) Snapshot(key types.ConversationKey) []types.Turn {
	c := s.conversationFor(key)
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.turns) == 0 || c.turns[0].Role != types.RoleSystem {
		c.turns = append([]types.Turn{types.SystemTurn(s.currentPrompt())}, c.turns...)
	}

	out := make([]types.Turn, len(c.turns))
	copy(out, c.turns)
	return out
}

// Append adds turns to the history for key, evicting the oldest non-system
// turns once the capacity is exceeded. The whole append is atomic with
// respect to other appends and snapshots on the same key.
func (s *Store) Append(key types.ConversationKey, turns ...types.Turn) {
	if len(turns) == 0 {
		return
	}
	c := s.conversationFor(key)
	c.mu.Lock()
	defer c.mu.Unlock()

	c.turns = append(c.turns, turns...)

	evicted := 0
	for s.nonSystemLen(c) > s.capacity {
		i := 0
		if len(c.turns) > 0 && c.turns[0].Role == types.RoleSystem {
			i = 1
		}
		c.turns = append(c.turns[:i], c.turns[i+1:]...)
		evicted++
	}
	if evicted > 0 {
		s.logger.Debug("evicted oldest turns",
			zap.Stringer("key", key),
			zap.Int("evicted", evicted))
	}
}

func (s *Store) nonSystemLen(c *conversation) int {
	n := len(c.turns)
	if n > 0 && c.turns[0].Role == types.RoleSystem {
		n--
	}
	return n
}

// Len returns the number of non-system turns currently stored for key
// without creating the history.
func (s *Store) Len(key types.ConversationKey) int {
	s.mu.Lock()
	c, ok := s.conversations[key]
	s.mu.Unlock()
	if !ok {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return s.nonSystemLen(c)
}

// Reset clears the history for one key.
func (s *Store) Reset(key types.ConversationKey) {
	s.mu.Lock()
	delete(s.conversations, key)
	s.mu.Unlock()
	s.logger.Info("conversation history reset", zap.Stringer("key", key))
}

// ResetAll clears every conversation.
func (s *Store) ResetAll() {
	s.mu.Lock()
	n := len(s.conversations)
	s.conversations = make(map[types.ConversationKey]*conversation)
	s.mu.Unlock()
	s.logger.Info("all conversation histories reset", zap.Int("cleared", n))
}
