package prompt

import "github.com/google/uuid"

// Status values for prompt visibility.
const (
	StatusPrivate = "private"
	StatusPublic  = "public"
)

// Prompt is reusable system-message text with a title and visibility status.
type Prompt struct {
	ID      uuid.UUID `json:"id"`
	Title   string    `json:"title"`
	Content string    `json:"content"`
	Status  string    `json:"status"`
	UserID  uuid.UUID `json:"user_id"`
}

// CreateProperties is the payload accepted when creating a prompt.
type CreateProperties struct {
	Title   string `json:"title"`
	Content string `json:"content"`
	Status  string `json:"status,omitempty"`
}

// UpdatableProperties lists prompt attributes callers may change.
type UpdatableProperties struct {
	Title   *string `json:"title,omitempty"`
	Content *string `json:"content,omitempty"`
	Status  *string `json:"status,omitempty"`
}
