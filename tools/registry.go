package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/shared/constant"

	"github.com/becomeliminal/nim-memory/core"
)

// Registry holds tools by name in registration order.
type Registry struct {
	tools  map[string]core.Tool
	order  []string
	logger *slog.Logger
}

// NewRegistry creates a registry holding tools.
func NewRegistry(tools ...core.Tool) *Registry {
	r := &Registry{
		tools:  make(map[string]core.Tool),
		logger: slog.Default().With("component", "tools"),
	}
	for _, t := range tools {
		r.Register(t)
	}
	return r
}

// Register adds or replaces a tool.
func (r *Registry) Register(t core.Tool) {
	if _, exists := r.tools[t.Name()]; !exists {
		r.order = append(r.order, t.Name())
	}
	r.tools[t.Name()] = t
}

// Get returns the tool registered under name.
func (r *Registry) Get(name string) (core.Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// Names returns tool names in registration order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.order...)
}

// ToAPITools converts every tool to the Anthropic Messages API format.
func (r *Registry) ToAPITools() []anthropic.ToolUnionParam {
	out := make([]anthropic.ToolUnionParam, 0, len(r.order))
	for _, name := range r.order {
		t := r.tools[name]
		schema := t.Schema()

		inputSchema := anthropic.ToolInputSchemaParam{
			Type:       constant.Object("object"),
			Properties: schema["properties"],
		}
		if required, ok := schema["required"].([]string); ok {
			inputSchema.Required = required
		}

		tool := anthropic.ToolUnionParamOfTool(inputSchema, name)
		tool.OfTool.Description = anthropic.String(t.Description())
		out = append(out, tool)
	}
	return out
}

// ExecuteToolUse runs one tool_use block and returns its tool_result block.
// Every failure becomes an error result the model can read.
func (r *Registry) ExecuteToolUse(ctx context.Context, userID, blockID, name string, input json.RawMessage) anthropic.ContentBlockParamUnion {
	var base core.BaseInput
	if len(input) > 0 {
		if err := json.Unmarshal(input, &base); err != nil {
			return anthropic.NewToolResultBlock(blockID, fmt.Sprintf("invalid tool input JSON: %s", err.Error()), true)
		}
	}

	tool, ok := r.Get(name)
	if !ok {
		return anthropic.NewToolResultBlock(blockID, fmt.Sprintf("unknown tool: %s", name), true)
	}

	summary := tool.GetSummary(input)
	if tool.RequiresConfirmation() && strings.TrimSpace(base.Thought) == "" {
		return anthropic.NewToolResultBlock(blockID,
			fmt.Sprintf(`Error: refusing to %s. Missing or empty "thought" field. Destructive operations require explicit reasoning: explain why the user wants this.`,
				lowerFirst(summary)),
			true)
	}

	result, err := tool.Execute(ctx, &core.ToolParams{
		UserID:    userID,
		Input:     input,
		RequestID: blockID,
	})
	switch {
	case err != nil:
		r.logger.Warn("tool failed", "tool", name, "error", err)
		return anthropic.NewToolResultBlock(blockID, err.Error(), true)
	case result == nil:
		return anthropic.NewToolResultBlock(blockID, "tool returned no result", true)
	case !result.Success:
		return anthropic.NewToolResultBlock(blockID, result.Error, true)
	}

	resultBytes, err := json.Marshal(result.Data)
	if err != nil {
		return anthropic.NewToolResultBlock(blockID, fmt.Sprintf("encode result: %s", err.Error()), true)
	}
	r.logger.Debug("tool executed", "tool", name, "summary", summary, "thought", base.Thought)
	return anthropic.NewToolResultBlock(blockID, string(resultBytes), false)
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}

// ExecuteToolUses runs every tool_use block in a model response, in order.
func (r *Registry) ExecuteToolUses(ctx context.Context, userID string, msg *anthropic.Message) []anthropic.ContentBlockParamUnion {
	var results []anthropic.ContentBlockParamUnion
	for _, block := range msg.Content {
		if block.Type != "tool_use" {
			continue
		}
		results = append(results, r.ExecuteToolUse(ctx, userID, block.ID, block.Name, block.Input))
	}
	return results
}
