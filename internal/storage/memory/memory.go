// Package memory implements storage.Store with mutex-guarded maps. It backs
// tests and deployments without a Redis instance.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/leduyhoang1994/quivr/internal/model/brain"
	"github.com/leduyhoang1994/quivr/internal/model/chat"
	"github.com/leduyhoang1994/quivr/internal/model/prompt"
	"github.com/leduyhoang1994/quivr/internal/storage"
)

type secretKey struct {
	userID  uuid.UUID
	brainID uuid.UUID
	name    string
}

// Store keeps all records in process memory.
type Store struct {
	mu            sync.RWMutex
	chats         map[uuid.UUID]chat.Chat
	history       map[uuid.UUID][]chat.HistoryEntry
	messageChat   map[uuid.UUID]uuid.UUID
	notifications map[uuid.UUID][]chat.Notification
	brains        map[uuid.UUID]brain.Brain
	brainUsers    map[uuid.UUID][]brain.BrainUser
	secrets       map[secretKey]string
	knowledge     map[uuid.UUID][]brain.Knowledge
	prompts       map[uuid.UUID]prompt.Prompt
	usage         map[string]int64
}

// NewStore returns an empty in-memory store.
func NewStore() *Store {
	return &Store{
		chats:         make(map[uuid.UUID]chat.Chat),
		history:       make(map[uuid.UUID][]chat.HistoryEntry),
		messageChat:   make(map[uuid.UUID]uuid.UUID),
		notifications: make(map[uuid.UUID][]chat.Notification),
		brains:        make(map[uuid.UUID]brain.Brain),
		brainUsers:    make(map[uuid.UUID][]brain.BrainUser),
		secrets:       make(map[secretKey]string),
		knowledge:     make(map[uuid.UUID][]brain.Knowledge),
		prompts:       make(map[uuid.UUID]prompt.Prompt),
		usage:         make(map[string]int64),
	}
}

var _ storage.Store = (*Store)(nil)

func (s *Store) CreateChat(_ context.Context, c chat.Chat) (chat.Chat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if c.CreationTime.IsZero() {
		c.CreationTime = time.Now().UTC()
	}
	s.chats[c.ID] = c
	return c, nil
}

func (s *Store) GetChat(_ context.Context, chatID uuid.UUID) (chat.Chat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.chats[chatID]
	if !ok {
		return chat.Chat{}, storage.ErrChatNotFound
	}
	return c, nil
}

func (s *Store) GetUserChats(_ context.Context, userID uuid.UUID) ([]chat.Chat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	chats := make([]chat.Chat, 0)
	for _, c := range s.chats {
		if c.UserID == userID {
			chats = append(chats, c)
		}
	}
	sort.Slice(chats, func(i, j int) bool {
		return chats[i].CreationTime.Before(chats[j].CreationTime)
	})
	return chats, nil
}

func (s *Store) UpdateChat(_ context.Context, chatID uuid.UUID, updates chat.UpdatableProperties) (chat.Chat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.chats[chatID]
	if !ok {
		return chat.Chat{}, storage.ErrChatNotFound
	}
	if updates.Name != nil {
		c.Name = *updates.Name
	}
	s.chats[chatID] = c
	return c, nil
}

func (s *Store) DeleteChat(_ context.Context, chatID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.chats[chatID]; !ok {
		return storage.ErrChatNotFound
	}
	delete(s.chats, chatID)
	return nil
}

func (s *Store) AddHistory(_ context.Context, entry chat.CreateHistory) (chat.HistoryEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := chat.HistoryEntry{
		ChatID:      entry.ChatID,
		MessageID:   uuid.New(),
		UserMessage: entry.UserMessage,
		Assistant:   entry.Assistant,
		MessageTime: time.Now().UTC(),
		PromptID:    entry.PromptID,
		BrainID:     entry.BrainID,
	}
	s.history[entry.ChatID] = append(s.history[entry.ChatID], stored)
	s.messageChat[stored.MessageID] = entry.ChatID
	return stored, nil
}

func (s *Store) GetHistory(_ context.Context, chatID uuid.UUID) ([]chat.HistoryEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := s.history[chatID]
	copied := make([]chat.HistoryEntry, len(entries))
	copy(copied, entries)
	return copied, nil
}

func (s *Store) UpdateMessageByID(_ context.Context, messageID uuid.UUID, userMessage, assistant string) (chat.HistoryEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	chatID, ok := s.messageChat[messageID]
	if !ok {
		return chat.HistoryEntry{}, storage.ErrMessageNotFound
	}
	entries := s.history[chatID]
	for i := range entries {
		if entries[i].MessageID == messageID {
			if userMessage != "" {
				entries[i].UserMessage = userMessage
			}
			entries[i].Assistant = assistant
			return entries[i], nil
		}
	}
	return chat.HistoryEntry{}, storage.ErrMessageNotFound
}

func (s *Store) DeleteChatHistory(_ context.Context, chatID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, entry := range s.history[chatID] {
		delete(s.messageChat, entry.MessageID)
	}
	delete(s.history, chatID)
	return nil
}

func (s *Store) AddNotification(_ context.Context, n chat.Notification) (chat.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	if n.CreationTime.IsZero() {
		n.CreationTime = time.Now().UTC()
	}
	s.notifications[n.ChatID] = append(s.notifications[n.ChatID], n)
	return n, nil
}

func (s *Store) GetNotifications(_ context.Context, chatID uuid.UUID) ([]chat.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	notifications := s.notifications[chatID]
	copied := make([]chat.Notification, len(notifications))
	copy(copied, notifications)
	return copied, nil
}

func (s *Store) RemoveChatNotifications(_ context.Context, chatID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.notifications, chatID)
	return nil
}

func (s *Store) CreateBrain(_ context.Context, b brain.Brain) (brain.Brain, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	if b.CreationTime.IsZero() {
		b.CreationTime = time.Now().UTC()
	}
	if b.Status == "" {
		b.Status = brain.StatusPrivate
	}
	s.brains[b.ID] = b
	return b, nil
}

func (s *Store) GetBrain(_ context.Context, brainID uuid.UUID) (brain.Brain, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.brains[brainID]
	if !ok {
		return brain.Brain{}, storage.ErrBrainNotFound
	}
	return b, nil
}

func (s *Store) UpdateBrain(_ context.Context, brainID uuid.UUID, updates brain.UpdatableProperties) (brain.Brain, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.brains[brainID]
	if !ok {
		return brain.Brain{}, storage.ErrBrainNotFound
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
	s.brains[brainID] = b
	return b, nil
}

func (s *Store) DeleteBrain(_ context.Context, brainID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.brains[brainID]; !ok {
		return storage.ErrBrainNotFound
	}
	delete(s.brains, brainID)
	delete(s.knowledge, brainID)
	return nil
}

func (s *Store) GetPublicBrains(_ context.Context) ([]brain.Brain, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	brains := make([]brain.Brain, 0)
	for _, b := range s.brains {
		if b.Status == brain.StatusPublic {
			brains = append(brains, b)
		}
	}
	sort.Slice(brains, func(i, j int) bool {
		return brains[i].CreationTime.Before(brains[j].CreationTime)
	})
	return brains, nil
}

func (s *Store) CreateBrainUser(_ context.Context, bu brain.BrainUser) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	users := s.brainUsers[bu.UserID]
	for i := range users {
		if users[i].BrainID == bu.BrainID {
			users[i] = bu
			return nil
		}
	}
	s.brainUsers[bu.UserID] = append(users, bu)
	return nil
}

func (s *Store) GetBrainUser(_ context.Context, userID, brainID uuid.UUID) (brain.BrainUser, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, bu := range s.brainUsers[userID] {
		if bu.BrainID == brainID {
			return bu, nil
		}
	}
	return brain.BrainUser{}, storage.ErrBrainUserNotFound
}

func (s *Store) GetUserBrainUsers(_ context.Context, userID uuid.UUID) ([]brain.BrainUser, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := s.brainUsers[userID]
	copied := make([]brain.BrainUser, len(users))
	copy(copied, users)
	return copied, nil
}

func (s *Store) DeleteBrainUsers(_ context.Context, brainID uuid.UUID, keepOwners bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for userID, users := range s.brainUsers {
		kept := users[:0]
		for _, bu := range users {
			if bu.BrainID == brainID && (!keepOwners || bu.Rights != brain.RoleOwner) {
				continue
			}
			kept = append(kept, bu)
		}
		s.brainUsers[userID] = kept
	}
	return nil
}

func (s *Store) SetDefaultBrain(_ context.Context, userID, brainID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	users := s.brainUsers[userID]
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
	return nil
}

func (s *Store) UpdateSecretValue(_ context.Context, userID, brainID uuid.UUID, name, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.secrets[secretKey{userID: userID, brainID: brainID, name: name}] = value
	return nil
}

func (s *Store) GetSecretValue(_ context.Context, userID, brainID uuid.UUID, name string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.secrets[secretKey{userID: userID, brainID: brainID, name: name}], nil
}

func (s *Store) AddKnowledge(_ context.Context, k brain.Knowledge) (brain.Knowledge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.brains[k.BrainID]; !ok {
		return brain.Knowledge{}, storage.ErrBrainNotFound
	}
	if k.ID == uuid.Nil {
		k.ID = uuid.New()
	}
	s.knowledge[k.BrainID] = append(s.knowledge[k.BrainID], k)
	return k, nil
}

func (s *Store) GetBrainKnowledge(_ context.Context, brainID uuid.UUID) ([]brain.Knowledge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	knowledge := s.knowledge[brainID]
	copied := make([]brain.Knowledge, len(knowledge))
	copy(copied, knowledge)
	return copied, nil
}

func (s *Store) CreatePrompt(_ context.Context, p prompt.Prompt) (prompt.Prompt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.Status == "" {
		p.Status = prompt.StatusPrivate
	}
	s.prompts[p.ID] = p
	return p, nil
}

func (s *Store) GetPrompt(_ context.Context, promptID uuid.UUID) (prompt.Prompt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.prompts[promptID]
	if !ok {
		return prompt.Prompt{}, storage.ErrPromptNotFound
	}
	return p, nil
}

func (s *Store) UpdatePrompt(_ context.Context, promptID uuid.UUID, updates prompt.UpdatableProperties) (prompt.Prompt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.prompts[promptID]
	if !ok {
		return prompt.Prompt{}, storage.ErrPromptNotFound
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
	s.prompts[promptID] = p
	return p, nil
}

func (s *Store) DeletePrompt(_ context.Context, promptID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.prompts[promptID]; !ok {
		return storage.ErrPromptNotFound
	}
	delete(s.prompts, promptID)
	return nil
}

func (s *Store) GetPublicPrompts(_ context.Context) ([]prompt.Prompt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	prompts := make([]prompt.Prompt, 0)
	for _, p := range s.prompts {
		if p.Status == prompt.StatusPublic {
			prompts = append(prompts, p)
		}
	}
	return prompts, nil
}

func (s *Store) IncrementDailyRequestCount(_ context.Context, userID uuid.UUID, day string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := userID.String() + ":" + day
	s.usage[key]++
	return s.usage[key], nil
}
