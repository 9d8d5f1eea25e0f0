// Package engine runs a Claude conversation with long-term memory: relevant
// memories are recalled into the system prompt before the first turn, and
// the model can memorize, recall and forget through tools.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/becomeliminal/nim-memory/memory"
	"github.com/becomeliminal/nim-memory/tools"
)

// DefaultSystemPrompt is used when Input.SystemPrompt is empty.
const DefaultSystemPrompt = `You are a helpful assistant with long-term memory.
Use the memorize tool to store durable facts and preferences the user shares.
Use the recall tool when earlier knowledge about the user could help.
Only use forget when the user explicitly asks you to erase everything.`

// ErrMaxTurns is returned when the model keeps calling tools past the turn limit.
var ErrMaxTurns = errors.New("exceeded maximum turns")

// Engine is the conversation runner.
type Engine struct {
	client     *anthropic.Client
	registry   *tools.Registry
	memory     *memory.Manager
	recallOpts []memory.RecallOption
	logger     *slog.Logger
}

// Option configures the engine.
type Option func(*Engine)

// WithMemory enables prompt enrichment from m before each run.
func WithMemory(m *memory.Manager, opts ...memory.RecallOption) Option {
	return func(e *Engine) {
		e.memory = m
		e.recallOpts = opts
	}
}

// WithLogger sets the logger. Default: slog.Default()
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// NewEngine creates an engine calling client with the tools in registry.
func NewEngine(client *anthropic.Client, registry *tools.Registry, opts ...Option) *Engine {
	e := &Engine{
		client:   client,
		registry: registry,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With("component", "engine")
	return e
}

// Input is one user turn.
type Input struct {
	UserMessage string
	UserID      string

	// History holds the earlier conversation, oldest first.
	History []anthropic.MessageParam

	SystemPrompt string

	// Model defaults to claude-sonnet-4-20250514.
	Model string

	// MaxTokens defaults to 4096.
	MaxTokens int64

	// MaxTurns bounds model calls in this run. Default: 10
	MaxTurns int

	// StreamCallback receives text deltas when set.
	StreamCallback func(chunk string, done bool)
}

// Output is the result of a run.
type Output struct {
	Text string

	// Messages is History plus everything added by this run.
	Messages []anthropic.MessageParam

	ToolsUsed  []string
	TokensUsed TokenUsage
	Turns      int
}

// TokenUsage totals API token consumption across turns.
type TokenUsage struct {
	InputTokens  int64 `json:"input_tokens"`
	OutputTokens int64 `json:"output_tokens"`
}

// Run executes model turns until the model stops calling tools.
func (e *Engine) Run(ctx context.Context, input *Input) (*Output, error) {
	model := input.Model
	if model == "" {
		model = "claude-sonnet-4-20250514"
	}
	maxTokens := input.MaxTokens
	if maxTokens == 0 {
		maxTokens = 4096
	}
	maxTurns := input.MaxTurns
	if maxTurns == 0 {
		maxTurns = 10
	}
	systemPrompt := input.SystemPrompt
	if systemPrompt == "" {
		systemPrompt = DefaultSystemPrompt
	}

	if enrichment := e.recall(ctx, input.UserMessage); enrichment != "" {
		systemPrompt += "\n\n" + enrichment
	}

	messages := append([]anthropic.MessageParam(nil), input.History...)
	if input.UserMessage != "" {
		messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(input.UserMessage)))
	}

	out := &Output{}
	apiTools := e.registry.ToAPITools()

	for {
		if err := ctx.Err(); err != nil {
			out.Messages = messages
			return out, fmt.Errorf("run cancelled: %w", err)
		}
		if out.Turns >= maxTurns {
			out.Messages = messages
			return out, fmt.Errorf("%w (%d)", ErrMaxTurns, maxTurns)
		}
		out.Turns++

		params := anthropic.MessageNewParams{
			Model:     anthropic.Model(model),
			MaxTokens: maxTokens,
			Messages:  messages,
			System:    []anthropic.TextBlockParam{{Text: systemPrompt}},
		}
		if len(apiTools) > 0 {
			params.Tools = apiTools
		}

		var resp *anthropic.Message
		var err error
		if input.StreamCallback != nil {
			resp, err = e.createMessageStreaming(ctx, params, input.StreamCallback)
		} else {
			resp, err = e.client.Messages.New(ctx, params)
		}
		if err != nil {
			out.Messages = messages
			return out, fmt.Errorf("claude API error: %w", err)
		}

		out.TokensUsed.InputTokens += resp.Usage.InputTokens
		out.TokensUsed.OutputTokens += resp.Usage.OutputTokens

		var text strings.Builder
		for _, block := range resp.Content {
			switch block.Type {
			case "text":
				text.WriteString(block.Text)
			case "tool_use":
				out.ToolsUsed = append(out.ToolsUsed, block.Name)
			}
		}
		messages = append(messages, resp.ToParam())

		toolResults := e.registry.ExecuteToolUses(ctx, input.UserID, resp)
		if len(toolResults) == 0 {
			if input.StreamCallback != nil {
				input.StreamCallback("", true)
			}
			out.Text = text.String()
			out.Messages = messages
			return out, nil
		}
		messages = append(messages, anthropic.NewUserMessage(toolResults...))
	}
}

// recall formats memories relevant to query. Failures only cost enrichment.
func (e *Engine) recall(ctx context.Context, query string) string {
	if e.memory == nil || strings.TrimSpace(query) == "" {
		return ""
	}
	res := e.memory.Recall(ctx, query, e.recallOpts...)
	if !res.Success {
		e.logger.Warn("memory retrieval failed", "error", res.Error)
		return ""
	}
	if len(res.Memories) == 0 {
		return ""
	}
	e.logger.Debug("retrieved memories", "count", len(res.Memories))

	var b strings.Builder
	b.WriteString("Relevant memories about the user:")
	for _, m := range res.Memories {
		fmt.Fprintf(&b, "\n- [%s] %s", m.Category, m.Content)
	}
	return b.String()
}

func (e *Engine) createMessageStreaming(ctx context.Context, params anthropic.MessageNewParams, callback func(string, bool)) (*anthropic.Message, error) {
	stream := e.client.Messages.NewStreaming(ctx, params)
	defer stream.Close()

	message := anthropic.Message{}
	for stream.Next() {
		event := stream.Current()
		if err := message.Accumulate(event); err != nil {
			return nil, fmt.Errorf("accumulate stream: %w", err)
		}
		if evt, ok := event.AsAny().(anthropic.ContentBlockDeltaEvent); ok {
			if delta, ok := evt.Delta.AsAny().(anthropic.TextDelta); ok {
				callback(delta.Text, false)
			}
		}
	}
	if err := stream.Err(); err != nil {
		return nil, err
	}
	return &message, nil
}
