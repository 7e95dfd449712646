// Package redis implements storage.Store on top of a Redis instance. Records
// are stored as JSON values under namespaced keys.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/leduyhoang1994/quivr/internal/model/brain"
	"github.com/leduyhoang1994/quivr/internal/model/chat"
	"github.com/leduyhoang1994/quivr/internal/model/prompt"
	"github.com/leduyhoang1994/quivr/internal/storage"
)

const usageTTL = 48 * time.Hour

// Store persists all records in Redis.
type Store struct {
	rdb *redis.Client
}

// NewStore wraps an existing Redis client.
func NewStore(rdb *redis.Client) *Store {
	return &Store{rdb: rdb}
}

var _ storage.Store = (*Store)(nil)

func chatKey(id uuid.UUID) string          { return "chat:" + id.String() }
func userChatsKey(id uuid.UUID) string     { return "user_chats:" + id.String() }
func historyKey(id uuid.UUID) string       { return "chat_history:" + id.String() }
func messageChatKey(id uuid.UUID) string   { return "message_chat:" + id.String() }
func notificationsKey(id uuid.UUID) string { return "chat_notifications:" + id.String() }
func brainKey(id uuid.UUID) string         { return "brain:" + id.String() }
func brainUsersKey(id uuid.UUID) string    { return "brain_users:" + id.String() }
func knowledgeKey(id uuid.UUID) string     { return "brain_knowledge:" + id.String() }
func promptKey(id uuid.UUID) string        { return "prompt:" + id.String() }

func secretValueKey(userID, brainID uuid.UUID, name string) string {
	return fmt.Sprintf("brain_secret:%s:%s:%s", userID, brainID, name)
}

func usageKey(userID uuid.UUID, day string) string {
	return fmt.Sprintf("user_usage:%s:%s", userID, day)
}

const (
	brainIndexKey  = "brain_ids"
	promptIndexKey = "prompt_ids"
)

func (s *Store) setJSON(ctx context.Context, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", key, err)
	}
	if err := s.rdb.Set(ctx, key, data, 0).Err(); err != nil {
		return fmt.Errorf("failed to set %s: %w", key, err)
	}
	return nil
}

func (s *Store) getJSON(ctx context.Context, key string, out any) error {
	data, err := s.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return redis.Nil
		}
		return fmt.Errorf("failed to get %s: %w", key, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to unmarshal %s: %w", key, err)
	}
	return nil
}

func (s *Store) appendIndex(ctx context.Context, key string, id uuid.UUID) error {
	var ids []uuid.UUID
	if err := s.getJSON(ctx, key, &ids); err != nil && !errors.Is(err, redis.Nil) {
		return err
	}
	return s.setJSON(ctx, key, append(ids, id))
}

func (s *Store) removeIndex(ctx context.Context, key string, id uuid.UUID) error {
	var ids []uuid.UUID
	if err := s.getJSON(ctx, key, &ids); err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return err
	}
	kept := ids[:0]
	for _, existing := range ids {
		if existing != id {
			kept = append(kept, existing)
		}
	}
	return s.setJSON(ctx, key, kept)
}

func (s *Store) CreateChat(ctx context.Context, c chat.Chat) (chat.Chat, error) {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if c.CreationTime.IsZero() {
		c.CreationTime = time.Now().UTC()
	}
	if err := s.setJSON(ctx, chatKey(c.ID), c); err != nil {
		return chat.Chat{}, err
	}
	if err := s.appendIndex(ctx, userChatsKey(c.UserID), c.ID); err != nil {
		return chat.Chat{}, err
	}
	return c, nil
}

func (s *Store) GetChat(ctx context.Context, chatID uuid.UUID) (chat.Chat, error) {
	var c chat.Chat
	if err := s.getJSON(ctx, chatKey(chatID), &c); err != nil {
		if errors.Is(err, redis.Nil) {
			return chat.Chat{}, storage.ErrChatNotFound
		}
		return chat.Chat{}, err
	}
	return c, nil
}

func (s *Store) GetUserChats(ctx context.Context, userID uuid.UUID) ([]chat.Chat, error) {
	var ids []uuid.UUID
	if err := s.getJSON(ctx, userChatsKey(userID), &ids); err != nil {
		if errors.Is(err, redis.Nil) {
			return []chat.Chat{}, nil
		}
		return nil, err
	}
	chats := make([]chat.Chat, 0, len(ids))
	for _, id := range ids {
		c, err := s.GetChat(ctx, id)
		if err != nil {
			if errors.Is(err, storage.ErrChatNotFound) {
				continue
			}
			return nil, err
		}
		chats = append(chats, c)
	}
	return chats, nil
}

func (s *Store) UpdateChat(ctx context.Context, chatID uuid.UUID, updates chat.UpdatableProperties) (chat.Chat, error) {
	c, err := s.GetChat(ctx, chatID)
	if err != nil {
		return chat.Chat{}, err
	}
	if updates.Name != nil {
		c.Name = *updates.Name
	}
	if err := s.setJSON(ctx, chatKey(chatID), c); err != nil {
		return chat.Chat{}, err
	}
	return c, nil
}

func (s *Store) DeleteChat(ctx context.Context, chatID uuid.UUID) error {
	c, err := s.GetChat(ctx, chatID)
	if err != nil {
		return err
	}
	if err := s.removeIndex(ctx, userChatsKey(c.UserID), chatID); err != nil {
		return err
	}
	if err := s.rdb.Del(ctx, chatKey(chatID)).Err(); err != nil {
		return fmt.Errorf("failed to delete chat %s: %w", chatID, err)
	}
	return nil
}

func (s *Store) AddHistory(ctx context.Context, entry chat.CreateHistory) (chat.HistoryEntry, error) {
	stored := chat.HistoryEntry{
		ChatID:      entry.ChatID,
		MessageID:   uuid.New(),
		UserMessage: entry.UserMessage,
		Assistant:   entry.Assistant,
		MessageTime: time.Now().UTC(),
		PromptID:    entry.PromptID,
		BrainID:     entry.BrainID,
	}

	entries, err := s.GetHistory(ctx, entry.ChatID)
	if err != nil {
		return chat.HistoryEntry{}, err
	}
	if err := s.setJSON(ctx, historyKey(entry.ChatID), append(entries, stored)); err != nil {
		return chat.HistoryEntry{}, err
	}
	if err := s.rdb.Set(ctx, messageChatKey(stored.MessageID), entry.ChatID.String(), 0).Err(); err != nil {
		return chat.HistoryEntry{}, fmt.Errorf("failed to index message %s: %w", stored.MessageID, err)
	}
	return stored, nil
}

func (s *Store) GetHistory(ctx context.Context, chatID uuid.UUID) ([]chat.HistoryEntry, error) {
	var entries []chat.HistoryEntry
	if err := s.getJSON(ctx, historyKey(chatID), &entries); err != nil {
		if errors.Is(err, redis.Nil) {
			return []chat.HistoryEntry{}, nil
		}
		return nil, err
	}
	return entries, nil
}

func (s *Store) UpdateMessageByID(ctx context.Context, messageID uuid.UUID, userMessage, assistant string) (chat.HistoryEntry, error) {
	raw, err := s.rdb.Get(ctx, messageChatKey(messageID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return chat.HistoryEntry{}, storage.ErrMessageNotFound
		}
		return chat.HistoryEntry{}, fmt.Errorf("failed to resolve message %s: %w", messageID, err)
	}
	chatID, err := uuid.Parse(raw)
	if err != nil {
		return chat.HistoryEntry{}, fmt.Errorf("failed to parse chat id %q: %w", raw, err)
	}

	entries, err := s.GetHistory(ctx, chatID)
	if err != nil {
		return chat.HistoryEntry{}, err
	}
	for i := range entries {
		if entries[i].MessageID == messageID {
			if userMessage != "" {
				entries[i].UserMessage = userMessage
			}
			entries[i].Assistant = assistant
			if err := s.setJSON(ctx, historyKey(chatID), entries); err != nil {
				return chat.HistoryEntry{}, err
			}
			return entries[i], nil
		}
	}
	return chat.HistoryEntry{}, storage.ErrMessageNotFound
}

func (s *Store) DeleteChatHistory(ctx context.Context, chatID uuid.UUID) error {
	entries, err := s.GetHistory(ctx, chatID)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if err := s.rdb.Del(ctx, messageChatKey(entry.MessageID)).Err(); err != nil {
			return fmt.Errorf("failed to drop message index %s: %w", entry.MessageID, err)
		}
	}
	if err := s.rdb.Del(ctx, historyKey(chatID)).Err(); err != nil {
		return fmt.Errorf("failed to delete history for chat %s: %w", chatID, err)
	}
	return nil
}

func (s *Store) AddNotification(ctx context.Context, n chat.Notification) (chat.Notification, error) {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	if n.CreationTime.IsZero() {
		n.CreationTime = time.Now().UTC()
	}
	notifications, err := s.GetNotifications(ctx, n.ChatID)
	if err != nil {
		return chat.Notification{}, err
	}
	if err := s.setJSON(ctx, notificationsKey(n.ChatID), append(notifications, n)); err != nil {
		return chat.Notification{}, err
	}
	return n, nil
}

func (s *Store) GetNotifications(ctx context.Context, chatID uuid.UUID) ([]chat.Notification, error) {
	var notifications []chat.Notification
	if err := s.getJSON(ctx, notificationsKey(chatID), &notifications); err != nil {
		if errors.Is(err, redis.Nil) {
			return []chat.Notification{}, nil
		}
		return nil, err
	}
	return notifications, nil
}

func (s *Store) RemoveChatNotifications(ctx context.Context, chatID uuid.UUID) error {
	if err := s.rdb.Del(ctx, notificationsKey(chatID)).Err(); err != nil {
		return fmt.Errorf("failed to delete notifications for chat %s: %w", chatID, err)
	}
	return nil
}

func (s *Store) CreateBrain(ctx context.Context, b brain.Brain) (brain.Brain, error) {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	if b.CreationTime.IsZero() {
		b.CreationTime = time.Now().UTC()
	}
	if b.Status == "" {
		b.Status = brain.StatusPrivate
	}
	if err := s.setJSON(ctx, brainKey(b.ID), b); err != nil {
		return brain.Brain{}, err
	}
	if err := s.appendIndex(ctx, brainIndexKey, b.ID); err != nil {
		return brain.Brain{}, err
	}
	return b, nil
}

func (s *Store) GetBrain(ctx context.Context, brainID uuid.UUID) (brain.Brain, error) {
	var b brain.Brain
	if err := s.getJSON(ctx, brainKey(brainID), &b); err != nil {
		if errors.Is(err, redis.Nil) {
			return brain.Brain{}, storage.ErrBrainNotFound
		}
		return brain.Brain{}, err
	}
	return b, nil
}

func (s *Store) UpdateBrain(ctx context.Context, brainID uuid.UUID, updates brain.UpdatableProperties) (brain.Brain, error) {
	b, err := s.GetBrain(ctx, brainID)
	if err != nil {
		return brain.Brain{}, err
	}
	if updates.Name != nil {
		b.Name = *updates.Name
	}
	if updates.Description != nil {
		b.Description = *updates.Description
	}
	if updates.Status != nil {
		b.Status = *updates.Status
	}
	if updates.Model != nil {
		b.Model = *updates.Model
	}
	if updates.Temperature != nil {
		b.Temperature = updates.Temperature
	}
	if updates.MaxTokens != nil {
		b.MaxTokens = updates.MaxTokens
	}
	if updates.PromptID != nil {
		b.PromptID = updates.PromptID
	}
	if err := s.setJSON(ctx, brainKey(brainID), b); err != nil {
		return brain.Brain{}, err
	}
	return b, nil
}

func (s *Store) DeleteBrain(ctx context.Context, brainID uuid.UUID) error {
	if _, err := s.GetBrain(ctx, brainID); err != nil {
		return err
	}
	if err := s.removeIndex(ctx, brainIndexKey, brainID); err != nil {
		return err
	}
	if err := s.rdb.Del(ctx, brainKey(brainID), knowledgeKey(brainID)).Err(); err != nil {
		return fmt.Errorf("failed to delete brain %s: %w", brainID, err)
	}
	return nil
}

func (s *Store) GetPublicBrains(ctx context.Context) ([]brain.Brain, error) {
	var ids []uuid.UUID
	if err := s.getJSON(ctx, brainIndexKey, &ids); err != nil {
		if errors.Is(err, redis.Nil) {
			return []brain.Brain{}, nil
		}
		return nil, err
	}
	brains := make([]brain.Brain, 0)
	for _, id := range ids {
		b, err := s.GetBrain(ctx, id)
		if err != nil {
			if errors.Is(err, storage.ErrBrainNotFound) {
				continue
			}
			return nil, err
		}
		if b.Status == brain.StatusPublic {
			brains = append(brains, b)
		}
	}
	return brains, nil
}

func (s *Store) CreateBrainUser(ctx context.Context, bu brain.BrainUser) error {
	users, err := s.GetUserBrainUsers(ctx, bu.UserID)
	if err != nil {
		return err
	}
	replaced := false
	for i := range users {
		if users[i].BrainID == bu.BrainID {
			users[i] = bu
			replaced = true
			break
		}
	}
	if !replaced {
		users = append(users, bu)
	}
	return s.setJSON(ctx, brainUsersKey(bu.UserID), users)
}

func (s *Store) GetBrainUser(ctx context.Context, userID, brainID uuid.UUID) (brain.BrainUser, error) {
	users, err := s.GetUserBrainUsers(ctx, userID)
	if err != nil {
		return brain.BrainUser{}, err
	}
	for _, bu := range users {
		if bu.BrainID == brainID {
			return bu, nil
		}
	}
	return brain.BrainUser{}, storage.ErrBrainUserNotFound
}

func (s *Store) GetUserBrainUsers(ctx context.Context, userID uuid.UUID) ([]brain.BrainUser, error) {
	var users []brain.BrainUser
	if err := s.getJSON(ctx, brainUsersKey(userID), &users); err != nil {
		if errors.Is(err, redis.Nil) {
			return []brain.BrainUser{}, nil
		}
		return nil, err
	}
	return users, nil
}

// DeleteBrainUsers removes rights for the brain across every user. Rights are
// keyed per user, so this scans the brain_users keyspace.
func (s *Store) DeleteBrainUsers(ctx context.Context, brainID uuid.UUID, keepOwners bool) error {
	iter := s.rdb.Scan(ctx, 0, "brain_users:*", 0).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		var users []brain.BrainUser
		if err := s.getJSON(ctx, key, &users); err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			return err
		}
		kept := users[:0]
		changed := false
		for _, bu := range users {
			if bu.BrainID == brainID && (!keepOwners || bu.Rights != brain.RoleOwner) {
				changed = true
				continue
			}
			kept = append(kept, bu)
		}
		if changed {
			if err := s.setJSON(ctx, key, kept); err != nil {
				return err
			}
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to scan brain users: %w", err)
	}
	return nil
}

func (s *Store) SetDefaultBrain(ctx context.Context, userID, brainID uuid.UUID) error {
	users, err := s.GetUserBrainUsers(ctx, userID)
	if err != nil {
		return err
	}
	found := false
	for i := range users {
		users[i].IsDefault = users[i].BrainID == brainID
		if users[i].BrainID == brainID {
			found = true
		}
	}
	if !found {
		return storage.ErrBrainUserNotFound
	}
	return s.setJSON(ctx, brainUsersKey(userID), users)
}

func (s *Store) UpdateSecretValue(ctx context.Context, userID, brainID uuid.UUID, name, value string) error {
	if err := s.rdb.Set(ctx, secretValueKey(userID, brainID, name), value, 0).Err(); err != nil {
		return fmt.Errorf("failed to set secret %s: %w", name, err)
	}
	return nil
}

func (s *Store) GetSecretValue(ctx context.Context, userID, brainID uuid.UUID, name string) (string, error) {
	value, err := s.rdb.Get(ctx, secretValueKey(userID, brainID, name)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", nil
		}
		return "", fmt.Errorf("failed to get secret %s: %w", name, err)
	}
	return value, nil
}

func (s *Store) AddKnowledge(ctx context.Context, k brain.Knowledge) (brain.Knowledge, error) {
	if _, err := s.GetBrain(ctx, k.BrainID); err != nil {
		return brain.Knowledge{}, err
	}
	if k.ID == uuid.Nil {
		k.ID = uuid.New()
	}
	knowledge, err := s.GetBrainKnowledge(ctx, k.BrainID)
	if err != nil {
		return brain.Knowledge{}, err
	}
	if err := s.setJSON(ctx, knowledgeKey(k.BrainID), append(knowledge, k)); err != nil {
		return brain.Knowledge{}, err
	}
	return k, nil
}

func (s *Store) GetBrainKnowledge(ctx context.Context, brainID uuid.UUID) ([]brain.Knowledge, error) {
	var knowledge []brain.Knowledge
	if err := s.getJSON(ctx, knowledgeKey(brainID), &knowledge); err != nil {
		if errors.Is(err, redis.Nil) {
			return []brain.Knowledge{}, nil
		}
		return nil, err
	}
	return knowledge, nil
}

func (s *Store) CreatePrompt(ctx context.Context, p prompt.Prompt) (prompt.Prompt, error) {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.Status == "" {
		p.Status = prompt.StatusPrivate
	}
	if err := s.setJSON(ctx, promptKey(p.ID), p); err != nil {
		return prompt.Prompt{}, err
	}
	if err := s.appendIndex(ctx, promptIndexKey, p.ID); err != nil {
		return prompt.Prompt{}, err
	}
	return p, nil
}

func (s *Store) GetPrompt(ctx context.Context, promptID uuid.UUID) (prompt.Prompt, error) {
	var p prompt.Prompt
	if err := s.getJSON(ctx, promptKey(promptID), &p); err != nil {
		if errors.Is(err, redis.Nil) {
			return prompt.Prompt{}, storage.ErrPromptNotFound
		}
		return prompt.Prompt{}, err
	}
	return p, nil
}

func (s *Store) UpdatePrompt(ctx context.Context, promptID uuid.UUID, updates prompt.UpdatableProperties) (prompt.Prompt, error) {
	p, err := s.GetPrompt(ctx, promptID)
	if err != nil {
		return prompt.Prompt{}, err
	}
	if updates.Title != nil {
		p.Title = *updates.Title
	}
	if updates.Content != nil {
		p.Content = *updates.Content
	}
	if updates.Status != nil {
		p.Status = *updates.Status
	}
	if err := s.setJSON(ctx, promptKey(promptID), p); err != nil {
		return prompt.Prompt{}, err
	}
	return p, nil
}

func (s *Store) DeletePrompt(ctx context.Context, promptID uuid.UUID) error {
	if _, err := s.GetPrompt(ctx, promptID); err != nil {
		return err
	}
	if err := s.removeIndex(ctx, promptIndexKey, promptID); err != nil {
		return err
	}
	if err := s.rdb.Del(ctx, promptKey(promptID)).Err(); err != nil {
		return fmt.Errorf("failed to delete prompt %s: %w", promptID, err)
	}
	return nil
}

func (s *Store) GetPublicPrompts(ctx context.Context) ([]prompt.Prompt, error) {
	var ids []uuid.UUID
	if err := s.getJSON(ctx, promptIndexKey, &ids); err != nil {
		if errors.Is(err, redis.Nil) {
			return []prompt.Prompt{}, nil
		}
		return nil, err
	}
	prompts := make([]prompt.Prompt, 0)
	for _, id := range ids {
		p, err := s.GetPrompt(ctx, id)
		if err != nil {
			if errors.Is(err, storage.ErrPromptNotFound) {
				continue
			}
			return nil, err
		}
		if p.Status == prompt.StatusPublic {
			prompts = append(prompts, p)
		}
	}
	return prompts, nil
}

func (s *Store) IncrementDailyRequestCount(ctx context.Context, userID uuid.UUID, day string) (int64, error) {
	key := usageKey(userID, day)
	count, err := s.rdb.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to increment usage %s: %w", key, err)
	}
	if count == 1 {
		if err := s.rdb.Expire(ctx, key, usageTTL).Err(); err != nil {
			return 0, fmt.Errorf("failed to expire usage %s: %w", key, err)
		}
	}
	return count, nil
}
