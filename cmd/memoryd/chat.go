package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/becomeliminal/nim-memory/config"
	"github.com/becomeliminal/nim-memory/engine"
	"github.com/becomeliminal/nim-memory/memory"
	"github.com/becomeliminal/nim-memory/tools"
)

// runChat reads user lines from in and prints Claude's replies to out,
// carrying the conversation between lines.
func runChat(ctx context.Context, cfg config.AgentConfig, manager *memory.Manager, in io.Reader, out io.Writer, logger *slog.Logger, opts ...option.RequestOption) error {
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if apiKey == "" {
		return errors.New("chat needs agent.api_key or ANTHROPIC_API_KEY")
	}

	client := anthropic.NewClient(append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)...)
	registry := tools.NewRegistry(tools.MemoryTools(tools.NewMemoryExecutor(manager))...)
	e := engine.NewEngine(&client, registry, engine.WithMemory(manager), engine.WithLogger(logger))

	var history []anthropic.MessageParam
	scanner := bufio.NewScanner(in)
	fmt.Fprint(out, "> ")
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			fmt.Fprint(out, "> ")
			continue
		}

		res, err := e.Run(ctx, &engine.Input{
			UserMessage: line,
			UserID:      "local",
			History:     history,
			Model:       cfg.Model,
			MaxTokens:   cfg.MaxTokens,
			MaxTurns:    cfg.MaxTurns,
		})
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			fmt.Fprintf(out, "error: %v\n> ", err)
			continue
		}
		history = res.Messages
		fmt.Fprintf(out, "%s\n> ", res.Text)
	}
	return scanner.Err()
}
