package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"relaybot/internal/backoff"
	"relaybot/internal/config"
	"relaybot/internal/gate"
	"relaybot/internal/gateway"
	"relaybot/internal/history"
	"relaybot/internal/llm"
	"relaybot/internal/media"
	"relaybot/internal/relay"
	"relaybot/internal/types"
)

// consoleSender prints chunks to stdout. Typing pings are dropped; the
// console has no typing indicator.
type consoleSender struct{}

func (consoleSender) SendReply(_ context.Context, text string) error {
	fmt.Printf("> %s\n", text)
	return nil
}

func (consoleSender) Send(_ context.Context, text string) error {
	fmt.Println(text)
	return nil
}

func (consoleSender) Typing(_ context.Context) error { return nil }

// runConsole wires the full relay behind a line-based console front end.
// Each line is one user turn; "/reset" clears all histories.
func runConsole(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if cfg.LLM.APIKey == "" {
		return fmt.Errorf("no API key configured; set RELAYBOT_API_KEY")
	}
	applyLogLevel(cfg)

	handler, store, err := buildHandler(ctx, cfg, logger)
	if err != nil {
		return err
	}

	// Hot-reload the system prompt and log level; everything else needs a
	// restart to re-wire collaborators.
	watcher, err := config.NewWatcher(configPath, func(next *config.Config) {
		applyReload(store, next)
	}, logger)
	if err != nil {
		logger.Warn("config hot reload unavailable", zap.Error(err))
	} else if err := watcher.Start(); err != nil {
		logger.Warn("config watcher not started", zap.Error(err))
	} else {
		defer watcher.Stop()
	}

	key := types.ConversationKey{ChannelID: "console", UserID: "local"}
	sender := consoleSender{}

	logger.Info("relaybot ready",
		zap.String("provider", cfg.LLM.Provider),
		zap.String("model", cfg.LLM.Model))
	fmt.Println("relaybot console - type a message, /reset to clear history, ctrl-d to exit")

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if ctx.Err() != nil {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "/reset" {
			handler.HandleReset(types.ConversationKey{})
			fmt.Println("All conversation histories have been reset.")
			continue
		}

		ev := gateway.Event{Key: key, Text: line}
		if err := handler.HandleMessage(ctx, ev, sender); err != nil {
			if ctx.Err() != nil {
				break
			}
			logger.Error("failed to handle message", zap.Error(err))
		}
	}

	logger.Info("shutting down")
	return scanner.Err()
}

// applyLogLevel points the shared atomic level at the configured one.
// --verbose always wins so a debug session cannot be demoted mid-run.
func applyLogLevel(cfg *config.Config) {
	if verbose {
		return
	}
	lvl, err := zapcore.ParseLevel(cfg.Logging.Level)
	if err != nil {
		if logger != nil {
			logger.Warn("ignoring invalid log level", zap.String("level", cfg.Logging.Level))
		}
		return
	}
	logLevel.SetLevel(lvl)
}

// applyReload carries a freshly loaded config into the running relay.
func applyReload(store *history.Store, next *config.Config) {
	store.SetSystemPrompt(next.Relay.SystemPrompt)
	applyLogLevel(next)
}

// buildHandler constructs the relay object graph from config.
func buildHandler(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*gateway.Handler, *history.Store, error) {
	attemptTimeout, _ := cfg.AttemptTimeout()
	baseDelay, _ := cfg.RetryBaseDelay()
	typingInterval, _ := cfg.TypingInterval()

	client, err := llm.NewClient(ctx, cfg.LLM)
	if err != nil {
		return nil, nil, err
	}

	policy := backoff.New(cfg.Retry.MaxAttempts, baseDelay)
	retrier := llm.NewRetrier(client, policy, attemptTimeout, logger)

	store := history.New(cfg.Relay.HistoryCapacity, cfg.Relay.SystemPrompt, logger)
	dispatcher := relay.New(
		gate.New(cfg.Relay.GateSize, logger),
		store,
		retrier,
		relay.Options{
			Model:                 cfg.LLM.Model,
			MaxOutputTokens:       cfg.LLM.MaxOutputTokens,
			Temperature:           cfg.LLM.Temperature,
			ChunkLimit:            cfg.Relay.ChunkLimit,
			TypingInterval:        typingInterval,
			ReplayReferencedReply: cfg.ReplayReferencedReply(),
		},
		logger,
	)

	resolver := media.NewResolver(policy, logger)
	return gateway.NewHandler(dispatcher, resolver, "", "", logger), store, nil
}
