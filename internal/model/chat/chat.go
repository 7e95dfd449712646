package chat

import (
	"time"

	"github.com/google/uuid"
)

// Chat groups the history of one conversation for a user.
type Chat struct {
	ID           uuid.UUID `json:"chat_id"`
	UserID       uuid.UUID `json:"user_id"`
	Name         string    `json:"chat_name"`
	CreationTime time.Time `json:"creation_time"`
}

// CreateProperties is the payload accepted when opening a new chat.
type CreateProperties struct {
	Name string `json:"name"`
}

// UpdatableProperties lists the chat attributes callers may change.
type UpdatableProperties struct {
	Name *string `json:"chat_name"`
}
