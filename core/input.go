package core

// BaseInput provides common fields for all tool inputs.
// Tool inputs embed this struct to carry the agent's reasoning.
type BaseInput struct {
	// Thought contains the agent's reasoning about why it's using this tool.
	// Optional for memorize and recall, required for destructive tools.
	Thought string `json:"thought,omitempty"`
}
