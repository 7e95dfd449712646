// Package chat manages chats, their history and the merged history feed.
package chat

import (
	"context"
	"errors"
	"log"
	"sort"

	"github.com/google/uuid"

	chatModel "github.com/leduyhoang1994/quivr/internal/model/chat"
	"github.com/leduyhoang1994/quivr/internal/storage"
)

var ErrNotChatOwner = errors.New("you should be the owner of the chat to update it")

// Service exposes chat persistence passthroughs over a ChatStore.
type Service struct {
	store storage.ChatStore
}

// NewService builds the chat service.
func NewService(store storage.ChatStore) *Service {
	return &Service{store: store}
}

// CreateChat opens a new chat for the user.
func (s *Service) CreateChat(ctx context.Context, userID uuid.UUID, props chatModel.CreateProperties) (chatModel.Chat, error) {
	name := props.Name
	if name == "" {
		name = "New chat"
	}
	return s.store.CreateChat(ctx, chatModel.Chat{
		UserID: userID,
		Name:   name,
	})
}

// GetChat fetches one chat by id.
func (s *Service) GetChat(ctx context.Context, chatID uuid.UUID) (chatModel.Chat, error) {
	return s.store.GetChat(ctx, chatID)
}

// GetUserChats lists the user's chats in creation order.
func (s *Service) GetUserChats(ctx context.Context, userID uuid.UUID) ([]chatModel.Chat, error) {
	return s.store.GetUserChats(ctx, userID)
}

// UpdateChatMetadata renames a chat the user owns.
func (s *Service) UpdateChatMetadata(ctx context.Context, userID, chatID uuid.UUID, updates chatModel.UpdatableProperties) (chatModel.Chat, error) {
	existing, err := s.store.GetChat(ctx, chatID)
	if err != nil {
		return chatModel.Chat{}, err
	}
	if existing.UserID != userID {
		return chatModel.Chat{}, ErrNotChatOwner
	}
	return s.store.UpdateChat(ctx, chatID, updates)
}

// DeleteChat removes a chat, its history and notifications. Partial cleanup
// failures are logged, not fatal: the chat record itself must go.
func (s *Service) DeleteChat(ctx context.Context, chatID uuid.UUID) error {
	if err := s.store.RemoveChatNotifications(ctx, chatID); err != nil {
		log.Printf("[chat] failed to remove notifications for %s: %v", chatID, err)
	}
	if err := s.store.DeleteChatHistory(ctx, chatID); err != nil {
		log.Printf("[chat] failed to delete history for %s: %v", chatID, err)
	}
	return s.store.DeleteChat(ctx, chatID)
}

// GetHistory returns the ordered turns of a chat.
func (s *Service) GetHistory(ctx context.Context, chatID uuid.UUID) ([]chatModel.HistoryEntry, error) {
	return s.store.GetHistory(ctx, chatID)
}

// GetChatItems merges history turns and notifications chronologically.
func (s *Service) GetChatItems(ctx context.Context, chatID uuid.UUID) ([]chatModel.ChatItem, error) {
	history, err := s.store.GetHistory(ctx, chatID)
	if err != nil {
		return nil, err
	}
	notifications, err := s.store.GetNotifications(ctx, chatID)
	if err != nil {
		return nil, err
	}

	items := make([]chatModel.ChatItem, 0, len(history)+len(notifications))
	for i := range history {
		items = append(items, chatModel.ChatItem{ItemType: chatModel.ItemTypeMessage, Message: &history[i]})
	}
	for i := range notifications {
		items = append(items, chatModel.ChatItem{ItemType: chatModel.ItemTypeNotification, Notification: &notifications[i]})
	}
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Time().Before(items[j].Time())
	})
	return items, nil
}

// AddQuestionAndAnswer persists a client-provided turn verbatim.
func (s *Service) AddQuestionAndAnswer(ctx context.Context, chatID uuid.UUID, qa chatModel.QuestionAndAnswer) (chatModel.HistoryEntry, error) {
	return s.store.AddHistory(ctx, chatModel.CreateHistory{
		ChatID:      chatID,
		UserMessage: qa.Question,
		Assistant:   qa.Answer,
	})
}

// AddNotification attaches an out-of-band notification to a chat.
func (s *Service) AddNotification(ctx context.Context, n chatModel.Notification) (chatModel.Notification, error) {
	return s.store.AddNotification(ctx, n)
}
