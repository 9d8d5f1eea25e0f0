// Package core defines the tool contract shared by the memory tools and the
// agent-facing transports.
package core

import (
	"context"
	"encoding/json"
	"strings"
	"text/template"
)

// ToolDefinition describes a tool to a model.
type ToolDefinition struct {
	ToolName        string
	ToolDescription string
	InputSchema     map[string]interface{}

	// RequiresUserConfirmation marks destructive tools. Their input must
	// carry a non-empty thought.
	RequiresUserConfirmation bool

	// SummaryTemplate is a text/template rendered with the decoded tool
	// input to describe the action in one line. Empty falls back to the
	// tool name.
	SummaryTemplate string
}

// ToolParams carries a single tool invocation.
type ToolParams struct {
	UserID    string
	Input     json.RawMessage
	RequestID string
}

// ToolResult is what a tool hands back to the model.
type ToolResult struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// ToolExecutor runs tools by name.
type ToolExecutor interface {
	Execute(ctx context.Context, toolName string, params *ToolParams) (*ToolResult, error)
}

// Tool is a named, described, executable capability.
type Tool interface {
	Name() string
	Description() string
	Schema() map[string]interface{}
	RequiresConfirmation() bool
	GetSummary(input json.RawMessage) string
	Execute(ctx context.Context, params *ToolParams) (*ToolResult, error)
}

type executorTool struct {
	def      ToolDefinition
	executor ToolExecutor
}

// NewExecutorTool binds a definition to an executor that dispatches on the
// tool name.
func NewExecutorTool(def ToolDefinition, executor ToolExecutor) Tool {
	return &executorTool{def: def, executor: executor}
}

func (t *executorTool) Name() string                   { return t.def.ToolName }
func (t *executorTool) Description() string            { return t.def.ToolDescription }
func (t *executorTool) Schema() map[string]interface{} { return t.def.InputSchema }
func (t *executorTool) RequiresConfirmation() bool     { return t.def.RequiresUserConfirmation }

// GetSummary renders SummaryTemplate with input. Optional fields belong in
// {{with}} blocks. Undecodable input or a broken template yields the tool
// name.
func (t *executorTool) GetSummary(input json.RawMessage) string {
	if t.def.SummaryTemplate == "" {
		return t.def.ToolName
	}
	tmpl, err := template.New(t.def.ToolName).Parse(t.def.SummaryTemplate)
	if err != nil {
		return t.def.ToolName
	}

	data := map[string]interface{}{}
	if len(input) > 0 {
		if err := json.Unmarshal(input, &data); err != nil {
			return t.def.ToolName
		}
	}

	var b strings.Builder
	if err := tmpl.Execute(&b, data); err != nil {
		return t.def.ToolName
	}
	return b.String()
}

func (t *executorTool) Execute(ctx context.Context, params *ToolParams) (*ToolResult, error) {
	return t.executor.Execute(ctx, t.def.ToolName, params)
}
