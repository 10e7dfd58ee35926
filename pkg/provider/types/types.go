package types

// Result is the normalized model-service response.
type Result struct {
	// Text is the raw output text. Callers trim it.
	Text     string
	Metadata Metadata
}

// Metadata carries provider/model identity and optional usage accounting.
type Metadata struct {
	Provider string
	Model    string
	Usage    *TokenUsage
}

// TokenUsage captures token accounting across providers.
type TokenUsage struct {
	InputTokens  int64
	OutputTokens int64
	TotalTokens  int64
}

// IsZero reports whether all token counters are unset/zero.
func (u TokenUsage) IsZero() bool {
	return u.InputTokens == 0 && u.OutputTokens == 0 && u.TotalTokens == 0
}

// Request is one stateless model call: a fixed instruction plus the input
// prompt, answered by Model.
type Request struct {
	Model        string
	Instructions string
	Input        string
}
