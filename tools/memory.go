package tools

import (
	"github.com/becomeliminal/nim-memory/core"
)

// Tool names exposed to agents.
const (
	MemorizeTool = "memorize"
	RecallTool   = "recall"
	ForgetTool   = "forget"
)

// MemoryToolDefinitions returns the definitions for the memory tools.
func MemoryToolDefinitions() []core.ToolDefinition {
	return []core.ToolDefinition{
		{
			ToolName:        MemorizeTool,
			ToolDescription: "Store a piece of information in long-term memory so it can be recalled in later conversations. Use for user preferences, facts about the user, and decisions worth remembering.",
			InputSchema: BuildSchemaWithThought(map[string]interface{}{
				"content":  StringProperty("The information to remember, as a self-contained sentence"),
				"category": StringProperty("Optional: category tag such as 'preferences', 'work' or 'personal' (default: 'general')"),
				"metadata": ObjectProperty("Optional: extra string, number or boolean fields stored with the memory"),
			}, false, "content"),
			SummaryTemplate: `Remember "{{.content}}"{{with .category}} under {{.}}{{end}}`,
		},
		{
			ToolName:        RecallTool,
			ToolDescription: "Search long-term memory for information related to a query. Returns the most similar memories with their similarity scores, most relevant first.",
			InputSchema: BuildSchemaWithThought(map[string]interface{}{
				"query":     StringProperty("What to look for, phrased like the information you expect to find"),
				"category":  StringProperty("Optional: only return memories with this category"),
				"limit":     IntegerProperty("Maximum number of memories to return (default: 3)"),
				"threshold": NumberProperty("Minimum similarity between -1 and 1 (default: 0.7)"),
			}, false, "query"),
			SummaryTemplate: `Search memories for "{{.query}}"`,
		},

		// Destructive (thought required)
		{
			ToolName:                 ForgetTool,
			ToolDescription:          "Erase every stored memory. Only use when the user explicitly asks to forget everything. Requires confirmation.",
			RequiresUserConfirmation: true,
			SummaryTemplate:          "Forget all stored memories{{with .thought}} ({{.}}){{end}}",
			InputSchema:              BuildSchemaWithThought(map[string]interface{}{}, true),
		},
	}
}

// MemoryTools creates Tool instances for all memory tools using the given executor.
func MemoryTools(executor core.ToolExecutor) []core.Tool {
	definitions := MemoryToolDefinitions()
	tools := make([]core.Tool, len(definitions))
	for i, def := range definitions {
		tools[i] = core.NewExecutorTool(def, executor)
	}
	return tools
}
