package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "relaybot.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, ProviderOpenAI, cfg.LLM.Provider)
	assert.Equal(t, "gpt-4o-mini", cfg.LLM.Model)
	assert.Equal(t, 3, cfg.Relay.GateSize)
	assert.Equal(t, 10, cfg.Relay.HistoryCapacity)
	assert.Equal(t, 2000, cfg.Relay.ChunkLimit)
	assert.True(t, cfg.ReplayReferencedReply())

	timeout, err := cfg.AttemptTimeout()
	require.NoError(t, err)
	assert.Equal(t, 10*time.Second, timeout)

	base, err := cfg.RetryBaseDelay()
	require.NoError(t, err)
	assert.Equal(t, 2*time.Second, base)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
llm:
  model: gpt-4o
  temperature: 0.2
relay:
  gate_size: 5
  system_prompt: "terse answers only"
  replay_referenced_reply: false
retry:
  max_attempts: 5
  base_delay: 500ms
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "gpt-4o", cfg.LLM.Model)
	assert.Equal(t, 0.2, cfg.LLM.Temperature)
	assert.Equal(t, 5, cfg.Relay.GateSize)
	assert.Equal(t, "terse answers only", cfg.Relay.SystemPrompt)
	assert.False(t, cfg.ReplayReferencedReply())
	assert.Equal(t, 5, cfg.Retry.MaxAttempts)

	base, err := cfg.RetryBaseDelay()
	require.NoError(t, err)
	assert.Equal(t, 500*time.Millisecond, base)
}

func TestLoad_EnvWinsOverFile(t *testing.T) {
	path := writeConfig(t, `
llm:
  api_key: file-key
  model: file-model
`)
	t.Setenv("RELAYBOT_API_KEY", "env-key")
	t.Setenv("RELAYBOT_MODEL", "env-model")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "env-key", cfg.LLM.APIKey)
	assert.Equal(t, "env-model", cfg.LLM.Model)
}

func TestLoad_RejectsUnknownProvider(t *testing.T) {
	path := writeConfig(t, "llm:\n  provider: hallucinated\n")
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown provider")
}

func TestLoad_RejectsBadDuration(t *testing.T) {
	path := writeConfig(t, "llm:\n  timeout: soon\n")
	_, err := Load(path)
	require.Error(t, err)
}

func TestWatcher_ReloadsOnWrite(t *testing.T) {
	path := writeConfig(t, "relay:\n  system_prompt: first\n")

	reloaded := make(chan *Config, 4)
	w, err := NewWatcher(path, func(c *Config) { reloaded <- c }, nil)
	require.NoError(t, err)
	require.NoError(t, w.Start())
	defer w.Stop()

	require.NoError(t, os.WriteFile(path, []byte("relay:\n  system_prompt: second\n"), 0o644))

	select {
	case cfg := <-reloaded:
		assert.Equal(t, "second", cfg.Relay.SystemPrompt)
	case <-time.After(3 * time.Second):
		t.Fatal("config change not observed")
	}
}

func TestWatcher_KeepsPreviousConfigOnParseError(t *testing.T) {
	path := writeConfig(t, "relay:\n  system_prompt: good\n")

	reloaded := make(chan *Config, 4)
	w, err := NewWatcher(path, func(c *Config) { reloaded <- c }, nil)
	require.NoError(t, err)
	require.NoError(t, w.Start())
	defer w.Stop()

	require.NoError(t, os.WriteFile(path, []byte(":: not yaml ::"), 0o644))

	select {
	case cfg := <-reloaded:
		t.Fatalf("broken config delivered: %+v", cfg)
	case <-time.After(1 * time.Second):
	}
}
