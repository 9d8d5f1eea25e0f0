package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/becomeliminal/nim-memory/core"
	"github.com/becomeliminal/nim-memory/memory"
)

// MemoryExecutor runs the memory tools against a Manager.
type MemoryExecutor struct {
	manager *memory.Manager
}

// NewMemoryExecutor creates an executor for manager.
func NewMemoryExecutor(manager *memory.Manager) *MemoryExecutor {
	return &MemoryExecutor{manager: manager}
}

type memorizeInput struct {
	core.BaseInput
	Content  string          `json:"content"`
	Category string          `json:"category,omitempty"`
	Metadata memory.Metadata `json:"metadata,omitempty"`
}

type recallInput struct {
	core.BaseInput
	Query     string   `json:"query"`
	Category  string   `json:"category,omitempty"`
	Limit     *int     `json:"limit,omitempty"`
	Threshold *float64 `json:"threshold,omitempty"`
}

// Execute dispatches on toolName. Input errors come back as failed results
// so the model can correct itself; the returned error is reserved for
// unknown tools.
func (e *MemoryExecutor) Execute(ctx context.Context, toolName string, params *core.ToolParams) (*core.ToolResult, error) {
	switch toolName {
	case MemorizeTool:
		var in memorizeInput
		if err := json.Unmarshal(params.Input, &in); err != nil {
			return invalidInput(err), nil
		}
		if in.Content == "" {
			return &core.ToolResult{Success: false, Error: "content is required"}, nil
		}
		opts := []memory.MemorizeOption{memory.WithMetadata(in.Metadata)}
		if in.Category != "" {
			opts = append(opts, memory.WithCategory(in.Category))
		}
		res := e.manager.Memorize(ctx, in.Content, opts...)
		return &core.ToolResult{Success: res.Success, Data: res, Error: res.Error}, nil

	case RecallTool:
		var in recallInput
		if err := json.Unmarshal(params.Input, &in); err != nil {
			return invalidInput(err), nil
		}
		if in.Query == "" {
			return &core.ToolResult{Success: false, Error: "query is required"}, nil
		}
		var opts []memory.RecallOption
		if in.Category != "" {
			opts = append(opts, memory.WithFilter(memory.Filter{memory.KeyCategory: in.Category}))
		}
		if in.Limit != nil {
			opts = append(opts, memory.WithK(*in.Limit))
		}
		if in.Threshold != nil {
			opts = append(opts, memory.WithThreshold(*in.Threshold))
		}
		res := e.manager.Recall(ctx, in.Query, opts...)
		return &core.ToolResult{Success: res.Success, Data: res, Error: res.Error}, nil

	case ForgetTool:
		res := e.manager.Forget(ctx)
		return &core.ToolResult{Success: res.Success, Data: res, Error: res.Error}, nil
	}
	return nil, fmt.Errorf("unknown tool: %s", toolName)
}

func invalidInput(err error) *core.ToolResult {
	return &core.ToolResult{Success: false, Error: fmt.Sprintf("invalid tool input JSON: %s", err.Error())}
}
