package types

// CognitiveBias is one detected bias with model confidence 0-100.
type CognitiveBias struct {
	Name        string  `json:"name"`
	Confidence  float64 `json:"confidence"`
	Description string  `json:"description"`
}

// ThinkingPattern is one detected thinking style; percentages across a
// batch nominally sum toward 100.
type ThinkingPattern struct {
	Name       string  `json:"name"`
	Percentage float64 `json:"percentage"`
}

// EmotionalState is the model's read of the user's current emotion.
type EmotionalState struct {
	Primary   string `json:"primary"`
	Secondary string `json:"secondary,omitempty"`
	Intensity string `json:"intensity"` // low | moderate | high
}

// AnalysisData is the structured analysis a model turn may return. It is
// carried as a pointer everywhere: nil means the model returned no
// analysis and the conversation snapshot is left untouched for that turn.
type AnalysisData struct {
	EmotionalState *EmotionalState   `json:"emotionalState,omitempty"`
	Biases         []CognitiveBias   `json:"biases,omitempty"`
	Patterns       []ThinkingPattern `json:"patterns,omitempty"`
	Insights       []string          `json:"insights,omitempty"`
}

// TokenUsage echoes the provider's token accounting for a generation call.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}
