package brain

import (
	"time"

	"github.com/google/uuid"
)

// Status values for brain visibility.
const (
	StatusPrivate = "private"
	StatusPublic  = "public"
)

// Brain bundles a model configuration, an optional prompt and a document
// corpus used for grounded answers.
type Brain struct {
	ID           uuid.UUID  `json:"id"`
	Name         string     `json:"name"`
	Description  string     `json:"description,omitempty"`
	Status       string     `json:"status"`
	Model        string     `json:"model,omitempty"`
	Temperature  *float32   `json:"temperature,omitempty"`
	MaxTokens    *int       `json:"max_tokens,omitempty"`
	PromptID     *uuid.UUID `json:"prompt_id,omitempty"`
	SecretNames  []string   `json:"secret_names,omitempty"`
	CreationTime time.Time  `json:"creation_time"`
}

// CreateProperties is the payload accepted when creating a brain.
type CreateProperties struct {
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	Status      string     `json:"status,omitempty"`
	Model       string     `json:"model,omitempty"`
	Temperature *float32   `json:"temperature,omitempty"`
	MaxTokens   *int       `json:"max_tokens,omitempty"`
	PromptID    *uuid.UUID `json:"prompt_id,omitempty"`
	SecretNames []string   `json:"secret_names,omitempty"`
}

// UpdatableProperties lists brain attributes callers may change.
type UpdatableProperties struct {
	Name        *string    `json:"name,omitempty"`
	Description *string    `json:"description,omitempty"`
	Status      *string    `json:"status,omitempty"`
	Model       *string    `json:"model,omitempty"`
	Temperature *float32   `json:"temperature,omitempty"`
	MaxTokens   *int       `json:"max_tokens,omitempty"`
	PromptID    *uuid.UUID `json:"prompt_id,omitempty"`
}

// Knowledge is one document attached to a brain, searched when building
// question context.
type Knowledge struct {
	ID       uuid.UUID `json:"id"`
	BrainID  uuid.UUID `json:"brain_id"`
	FileName string    `json:"file_name"`
	Content  string    `json:"content"`
}
