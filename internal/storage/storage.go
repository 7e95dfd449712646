// Package storage defines the persistence contracts shared by the in-memory
// and Redis backends.
package storage

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/leduyhoang1994/quivr/internal/model/brain"
	"github.com/leduyhoang1994/quivr/internal/model/chat"
	"github.com/leduyhoang1994/quivr/internal/model/prompt"
)

var (
	ErrChatNotFound      = errors.New("chat not found")
	ErrMessageNotFound   = errors.New("message not found")
	ErrBrainNotFound     = errors.New("brain not found")
	ErrBrainUserNotFound = errors.New("brain user not found")
	ErrPromptNotFound    = errors.New("prompt not found")
)

// ChatStore persists chats, their history and attached notifications.
type ChatStore interface {
	CreateChat(ctx context.Context, c chat.Chat) (chat.Chat, error)
	GetChat(ctx context.Context, chatID uuid.UUID) (chat.Chat, error)
	GetUserChats(ctx context.Context, userID uuid.UUID) ([]chat.Chat, error)
	UpdateChat(ctx context.Context, chatID uuid.UUID, updates chat.UpdatableProperties) (chat.Chat, error)
	DeleteChat(ctx context.Context, chatID uuid.UUID) error

	// AddHistory creates exactly one entry per question; the assistant text may
	// be empty while streaming is in progress.
	AddHistory(ctx context.Context, entry chat.CreateHistory) (chat.HistoryEntry, error)
	GetHistory(ctx context.Context, chatID uuid.UUID) ([]chat.HistoryEntry, error)
	UpdateMessageByID(ctx context.Context, messageID uuid.UUID, userMessage, assistant string) (chat.HistoryEntry, error)
	DeleteChatHistory(ctx context.Context, chatID uuid.UUID) error

	AddNotification(ctx context.Context, n chat.Notification) (chat.Notification, error)
	GetNotifications(ctx context.Context, chatID uuid.UUID) ([]chat.Notification, error)
	RemoveChatNotifications(ctx context.Context, chatID uuid.UUID) error
}

// BrainStore persists brains, per-user rights, secrets and knowledge.
type BrainStore interface {
	CreateBrain(ctx context.Context, b brain.Brain) (brain.Brain, error)
	GetBrain(ctx context.Context, brainID uuid.UUID) (brain.Brain, error)
	UpdateBrain(ctx context.Context, brainID uuid.UUID, updates brain.UpdatableProperties) (brain.Brain, error)
	DeleteBrain(ctx context.Context, brainID uuid.UUID) error
	GetPublicBrains(ctx context.Context) ([]brain.Brain, error)

	CreateBrainUser(ctx context.Context, bu brain.BrainUser) error
	GetBrainUser(ctx context.Context, userID, brainID uuid.UUID) (brain.BrainUser, error)
	GetUserBrainUsers(ctx context.Context, userID uuid.UUID) ([]brain.BrainUser, error)

	// DeleteBrainUsers removes rights records for the brain. keepOwners leaves
	// Owner records in place (a public brain going private keeps its owner);
	// brain deletion must pass false so no dangling rights survive.
	DeleteBrainUsers(ctx context.Context, brainID uuid.UUID, keepOwners bool) error
	SetDefaultBrain(ctx context.Context, userID, brainID uuid.UUID) error

	UpdateSecretValue(ctx context.Context, userID, brainID uuid.UUID, name, value string) error
	GetSecretValue(ctx context.Context, userID, brainID uuid.UUID, name string) (string, error)

	AddKnowledge(ctx context.Context, k brain.Knowledge) (brain.Knowledge, error)
	GetBrainKnowledge(ctx context.Context, brainID uuid.UUID) ([]brain.Knowledge, error)
}

// PromptStore persists reusable prompts.
type PromptStore interface {
	CreatePrompt(ctx context.Context, p prompt.Prompt) (prompt.Prompt, error)
	GetPrompt(ctx context.Context, promptID uuid.UUID) (prompt.Prompt, error)
	UpdatePrompt(ctx context.Context, promptID uuid.UUID, updates prompt.UpdatableProperties) (prompt.Prompt, error)
	DeletePrompt(ctx context.Context, promptID uuid.UUID) error
	GetPublicPrompts(ctx context.Context) ([]prompt.Prompt, error)
}

// UsageStore tracks per-user daily request counts for quota enforcement.
type UsageStore interface {
	IncrementDailyRequestCount(ctx context.Context, userID uuid.UUID, day string) (int64, error)
}

// Store aggregates every persistence contract a backend must satisfy.
type Store interface {
	ChatStore
	BrainStore
	PromptStore
	UsageStore
}
