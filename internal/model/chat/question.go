package chat

import "github.com/google/uuid"

// Question is a new user message plus its generation parameters. Model,
// temperature and max tokens may be unset; the handler resolves fallbacks
// before the question reaches a generator.
type Question struct {
	Question    string     `json:"question"`
	Model       string     `json:"model,omitempty"`
	Temperature *float32   `json:"temperature,omitempty"`
	MaxTokens   *int       `json:"max_tokens,omitempty"`
	PromptID    *uuid.UUID `json:"prompt_id,omitempty"`
}

// QuestionAndAnswer carries a client-provided turn persisted verbatim,
// bypassing generation.
type QuestionAndAnswer struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}
