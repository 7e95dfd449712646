// Package prompt resolves and manages reusable system prompts.
package prompt

import (
	"context"
	"errors"
	"log"

	"github.com/google/uuid"

	promptModel "github.com/leduyhoang1994/quivr/internal/model/prompt"
	"github.com/leduyhoang1994/quivr/internal/storage"
)

var (
	ErrTitleRequired   = errors.New("prompt title is required")
	ErrContentRequired = errors.New("prompt content is required")
	ErrNotPromptOwner  = errors.New("you should be the owner of the prompt to update it")
)

// Service resolves prompt content for generators and backs the prompt routes.
type Service struct {
	store         storage.PromptStore
	systemMessage string
}

// NewService builds the prompt service. systemMessage is the fallback applied
// when a question has no prompt.
func NewService(store storage.PromptStore, systemMessage string) *Service {
	return &Service{store: store, systemMessage: systemMessage}
}

// Resolved is the outcome of prompt resolution for one generation request.
type Resolved struct {
	Content string
	Title   string
	ID      *uuid.UUID
}

// Resolve returns the stored prompt for the given id, or the default system
// message when the id is nil or the prompt is gone.
func (s *Service) Resolve(ctx context.Context, promptID *uuid.UUID) Resolved {
	if promptID == nil {
		return Resolved{Content: s.systemMessage}
	}

	p, err := s.store.GetPrompt(ctx, *promptID)
	if err != nil {
		log.Printf("[prompt] falling back to default system message for %s: %v", promptID, err)
		return Resolved{Content: s.systemMessage}
	}

	return Resolved{Content: p.Content, Title: p.Title, ID: &p.ID}
}

// CreatePrompt stores a new prompt owned by the user.
func (s *Service) CreatePrompt(ctx context.Context, userID uuid.UUID, props promptModel.CreateProperties) (promptModel.Prompt, error) {
	if props.Title == "" {
		return promptModel.Prompt{}, ErrTitleRequired
	}
	if props.Content == "" {
		return promptModel.Prompt{}, ErrContentRequired
	}
	status := props.Status
	if status == "" {
		status = promptModel.StatusPrivate
	}
	return s.store.CreatePrompt(ctx, promptModel.Prompt{
		Title:   props.Title,
		Content: props.Content,
		Status:  status,
		UserID:  userID,
	})
}

// GetPrompt fetches one prompt by id.
func (s *Service) GetPrompt(ctx context.Context, promptID uuid.UUID) (promptModel.Prompt, error) {
	return s.store.GetPrompt(ctx, promptID)
}

// UpdatePrompt applies updates to a prompt the user owns.
func (s *Service) UpdatePrompt(ctx context.Context, userID, promptID uuid.UUID, updates promptModel.UpdatableProperties) (promptModel.Prompt, error) {
	existing, err := s.store.GetPrompt(ctx, promptID)
	if err != nil {
		return promptModel.Prompt{}, err
	}
	if existing.UserID != userID {
		return promptModel.Prompt{}, ErrNotPromptOwner
	}
	return s.store.UpdatePrompt(ctx, promptID, updates)
}

// DeletePrivatePrompt removes a prompt if it is private. Public prompts are
// shared and survive brain updates.
func (s *Service) DeletePrivatePrompt(ctx context.Context, promptID uuid.UUID) error {
	p, err := s.store.GetPrompt(ctx, promptID)
	if err != nil {
		return err
	}
	if p.Status != promptModel.StatusPrivate {
		return nil
	}
	return s.store.DeletePrompt(ctx, promptID)
}

// GetPublicPrompts lists prompts visible to everyone.
func (s *Service) GetPublicPrompts(ctx context.Context) ([]promptModel.Prompt, error) {
	return s.store.GetPublicPrompts(ctx)
}
