package chat

import (
	"time"

	"github.com/google/uuid"
)

// CreateHistory is the write model for one turn. Assistant stays empty in the
// streaming path until the answer is finalized.
type CreateHistory struct {
	ChatID      uuid.UUID  `json:"chat_id"`
	UserMessage string     `json:"user_message"`
	Assistant   string     `json:"assistant"`
	PromptID    *uuid.UUID `json:"prompt_id,omitempty"`
	BrainID     *uuid.UUID `json:"brain_id,omitempty"`
}

// HistoryEntry is one persisted turn enriched with display metadata. It is
// also the JSON payload of every SSE frame in the streaming path.
type HistoryEntry struct {
	ChatID      uuid.UUID  `json:"chat_id"`
	MessageID   uuid.UUID  `json:"message_id"`
	UserMessage string     `json:"user_message"`
	Assistant   string     `json:"assistant"`
	MessageTime time.Time  `json:"message_time"`
	PromptID    *uuid.UUID `json:"prompt_id,omitempty"`
	PromptTitle string     `json:"prompt_title,omitempty"`
	BrainID     *uuid.UUID `json:"brain_id,omitempty"`
	BrainName   string     `json:"brain_name,omitempty"`
}

// Notification is an out-of-band message attached to a chat, e.g. document
// processing status.
type Notification struct {
	ID           uuid.UUID `json:"id"`
	ChatID       uuid.UUID `json:"chat_id"`
	Message      string    `json:"message"`
	Status       string    `json:"status"`
	CreationTime time.Time `json:"creation_time"`
}

// ChatItem types distinguish history turns from notifications in the merged
// chat history feed.
const (
	ItemTypeMessage      = "MESSAGE"
	ItemTypeNotification = "NOTIFICATION"
)

// ChatItem is one element of the merged, chronologically ordered history feed.
type ChatItem struct {
	ItemType     string        `json:"item_type"`
	Message      *HistoryEntry `json:"message,omitempty"`
	Notification *Notification `json:"notification,omitempty"`
}

// Time returns the moment the item entered the chat, used for merging.
func (c ChatItem) Time() time.Time {
	if c.Message != nil {
		return c.Message.MessageTime
	}
	if c.Notification != nil {
		return c.Notification.CreationTime
	}
	return time.Time{}
}
