package tools_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/becomeliminal/nim-memory/core"
	"github.com/becomeliminal/nim-memory/memory"
	"github.com/becomeliminal/nim-memory/memory/embedder/mock"
	"github.com/becomeliminal/nim-memory/memory/store"
	"github.com/becomeliminal/nim-memory/memory/store/inmem"
	"github.com/becomeliminal/nim-memory/tools"
)

func newRegistry(t *testing.T) *tools.Registry {
	t.Helper()
	s, err := store.Open(context.Background(), inmem.New(), store.Config{Dimensionality: 32})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	manager, err := memory.NewManager(s, mock.New(32), nil)
	require.NoError(t, err)
	return tools.NewRegistry(tools.MemoryTools(tools.NewMemoryExecutor(manager))...)
}

func resultText(t *testing.T, block anthropic.ContentBlockParamUnion) (string, bool) {
	t.Helper()
	require.NotNil(t, block.OfToolResult)
	require.NotEmpty(t, block.OfToolResult.Content)
	require.NotNil(t, block.OfToolResult.Content[0].OfText)
	return block.OfToolResult.Content[0].OfText.Text, block.OfToolResult.IsError.Value
}

func TestMemoryToolDefinitions(t *testing.T) {
	defs := tools.MemoryToolDefinitions()
	require.Len(t, defs, 3)

	for _, def := range defs {
		props := def.InputSchema["properties"].(map[string]interface{})
		assert.Contains(t, props, "thought", def.ToolName)
	}
	assert.Equal(t, []string{"content"}, defs[0].InputSchema["required"])
	assert.Equal(t, []string{"query"}, defs[1].InputSchema["required"])
	assert.True(t, defs[2].RequiresUserConfirmation)
	assert.Equal(t, []string{"thought"}, defs[2].InputSchema["required"])
}

func TestToAPITools(t *testing.T) {
	api := newRegistry(t).ToAPITools()
	require.Len(t, api, 3)

	recall := api[1].OfTool
	require.NotNil(t, recall)
	assert.Equal(t, tools.RecallTool, recall.Name)
	assert.Equal(t, []string{"query"}, recall.InputSchema.Required)
	assert.NotEmpty(t, recall.Description.Value)
}

func TestMemorizeThenRecall(t *testing.T) {
	ctx := context.Background()
	r := newRegistry(t)

	text, isErr := resultText(t, r.ExecuteToolUse(ctx, "user1", "toolu_1", tools.MemorizeTool,
		json.RawMessage(`{"content":"User prefers dark mode","category":"preferences","thought":"worth keeping"}`)))
	require.False(t, isErr, text)

	var stored memory.MemorizeResult
	require.NoError(t, json.Unmarshal([]byte(text), &stored))
	assert.True(t, stored.Success)
	assert.Positive(t, stored.ID)

	// The mock embedder only matches identical text
	text, isErr = resultText(t, r.ExecuteToolUse(ctx, "user1", "toolu_2", tools.RecallTool,
		json.RawMessage(`{"query":"User prefers dark mode","category":"preferences","limit":5}`)))
	require.False(t, isErr, text)

	var recalled memory.RecallResult
	require.NoError(t, json.Unmarshal([]byte(text), &recalled))
	require.Len(t, recalled.Memories, 1)
	assert.Equal(t, "User prefers dark mode", recalled.Memories[0].Content)
	assert.Equal(t, "preferences", recalled.Memories[0].Category)
	assert.InDelta(t, 1.0, recalled.Memories[0].Similarity, 1e-5)
}

func TestToolUseErrors(t *testing.T) {
	ctx := context.Background()
	r := newRegistry(t)

	tests := []struct {
		name  string
		tool  string
		input string
		want  string
	}{
		{"unknown tool", "teleport", `{}`, "unknown tool: teleport"},
		{"bad json", tools.RecallTool, `{"query":`, "invalid tool input JSON"},
		{"missing content", tools.MemorizeTool, `{"category":"x"}`, "content is required"},
		{"missing query", tools.RecallTool, `{}`, "query is required"},
		{"forget without thought", tools.ForgetTool, `{}`, `"thought"`},
		{"forget names the action", tools.ForgetTool, `{}`, "refusing to forget all stored memories."},
		{"non-scalar metadata", tools.MemorizeTool, `{"content":"x","metadata":{"tags":["a"]}}`, "metadata.tags"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text, isErr := resultText(t, r.ExecuteToolUse(ctx, "user1", "toolu_x", tt.tool, json.RawMessage(tt.input)))
			assert.True(t, isErr)
			assert.Contains(t, text, tt.want)
		})
	}
}

func TestForgetWithThought(t *testing.T) {
	ctx := context.Background()
	r := newRegistry(t)

	r.ExecuteToolUse(ctx, "user1", "toolu_1", tools.MemorizeTool, json.RawMessage(`{"content":"temp"}`))
	text, isErr := resultText(t, r.ExecuteToolUse(ctx, "user1", "toolu_2", tools.ForgetTool,
		json.RawMessage(`{"thought":"User asked me to forget everything"}`)))
	require.False(t, isErr, text)

	text, _ = resultText(t, r.ExecuteToolUse(ctx, "user1", "toolu_3", tools.RecallTool,
		json.RawMessage(`{"query":"temp","threshold":-1}`)))
	var recalled memory.RecallResult
	require.NoError(t, json.Unmarshal([]byte(text), &recalled))
	assert.Empty(t, recalled.Memories)
}

func TestExecutorUnknownTool(t *testing.T) {
	e := tools.NewMemoryExecutor(nil)
	_, err := e.Execute(context.Background(), "nope", &core.ToolParams{Input: json.RawMessage(`{}`)})
	assert.Error(t, err)
}

func TestToolSummaries(t *testing.T) {
	registry := newRegistry(t)

	tests := []struct {
		tool  string
		input string
		want  string
	}{
		{tools.MemorizeTool, `{"content":"likes tea","category":"preferences"}`, `Remember "likes tea" under preferences`},
		{tools.MemorizeTool, `{"content":"likes tea"}`, `Remember "likes tea"`},
		{tools.RecallTool, `{"query":"drinks"}`, `Search memories for "drinks"`},
		{tools.ForgetTool, `{"thought":"user asked"}`, "Forget all stored memories (user asked)"},
		{tools.ForgetTool, `{}`, "Forget all stored memories"},
		{tools.RecallTool, `not json`, tools.RecallTool},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			tool, ok := registry.Get(tt.tool)
			require.True(t, ok)
			assert.Equal(t, tt.want, tool.GetSummary(json.RawMessage(tt.input)))
		})
	}
}
