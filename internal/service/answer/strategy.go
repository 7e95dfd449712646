package answer

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	brainModel "github.com/leduyhoang1994/quivr/internal/model/brain"
	brainService "github.com/leduyhoang1994/quivr/internal/service/brain"
	promptService "github.com/leduyhoang1994/quivr/internal/service/prompt"
	"github.com/leduyhoang1994/quivr/internal/storage"
)

// Strategy selects and authorizes a generator for one request. Two variants
// exist: headless (no brain, default prompt/model only) and brain-backed
// (grounded context plus role checks).
type Strategy interface {
	ValidateAuthorization(ctx context.Context, userID uuid.UUID) error
	AnswerGenerator(ctx context.Context, opts Options) (Generator, error)
}

// Factory wires the dependencies shared by both strategies.
type Factory struct {
	store   storage.ChatStore
	prompts *promptService.Service
	brains  *brainService.Service
	models  ModelFactory
}

// NewFactory builds the strategy factory.
func NewFactory(store storage.ChatStore, prompts *promptService.Service, brains *brainService.Service, models ModelFactory) *Factory {
	return &Factory{store: store, prompts: prompts, brains: brains, models: models}
}

// Select picks the strategy for the optional brain id.
func (f *Factory) Select(brainID *uuid.UUID) Strategy {
	if brainID == nil || *brainID == uuid.Nil {
		return headlessStrategy{factory: f}
	}
	return brainStrategy{factory: f, brainID: *brainID}
}

type headlessStrategy struct {
	factory *Factory
}

// ValidateAuthorization is a no-op: headless chats only need authentication.
func (s headlessStrategy) ValidateAuthorization(context.Context, uuid.UUID) error {
	return nil
}

func (s headlessStrategy) AnswerGenerator(ctx context.Context, opts Options) (Generator, error) {
	return newGenerator(ctx, s.factory.store, s.factory.prompts, s.factory.models, opts, "", nil)
}

type brainStrategy struct {
	factory *Factory
	brainID uuid.UUID
}

func (s brainStrategy) ValidateAuthorization(ctx context.Context, userID uuid.UUID) error {
	return s.factory.brains.ValidateAuthorization(ctx, userID, s.brainID, brainModel.RoleViewer)
}

func (s brainStrategy) AnswerGenerator(ctx context.Context, opts Options) (Generator, error) {
	b, err := s.factory.brains.GetBrain(ctx, s.brainID)
	if err != nil {
		return nil, fmt.Errorf("failed to load brain %s: %w", s.brainID, err)
	}

	brainID := b.ID
	opts.BrainID = &brainID
	if opts.PromptID == nil && b.PromptID != nil {
		opts.PromptID = b.PromptID
	}

	retriever := func(ctx context.Context, question string) (string, error) {
		return s.factory.brains.GetQuestionContext(ctx, brainID, question)
	}
	return newGenerator(ctx, s.factory.store, s.factory.prompts, s.factory.models, opts, b.Name, retriever)
}
