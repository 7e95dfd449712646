// Package brain manages brains, per-user rights and question context.
package brain

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	brainModel "github.com/leduyhoang1994/quivr/internal/model/brain"
	"github.com/leduyhoang1994/quivr/internal/storage"
)

var (
	ErrNameRequired     = errors.New("brain name is required")
	ErrNotAuthorized    = errors.New("you don't have the rights for this brain")
	ErrMaxBrainsReached = errors.New("maximum number of brains reached")
	ErrNoSecrets        = errors.New("this brain does not support secrets")
	ErrUnknownSecret    = errors.New("secret is not defined for this brain")
)

// UserBrain is a brain enriched with the caller's rights on it.
type UserBrain struct {
	brainModel.Brain
	Rights    brainModel.Role `json:"rights"`
	IsDefault bool            `json:"default_brain"`
}

// Service exposes brain management on top of a BrainStore.
type Service struct {
	store     storage.BrainStore
	maxBrains int
}

// NewService builds the brain service.
func NewService(store storage.BrainStore, maxBrains int) *Service {
	return &Service{store: store, maxBrains: maxBrains}
}

// CreateBrain stores a new brain owned by the user. The first brain a user
// creates becomes their default.
func (s *Service) CreateBrain(ctx context.Context, userID uuid.UUID, props brainModel.CreateProperties) (brainModel.Brain, error) {
	if props.Name == "" {
		return brainModel.Brain{}, ErrNameRequired
	}

	existing, err := s.store.GetUserBrainUsers(ctx, userID)
	if err != nil {
		return brainModel.Brain{}, err
	}
	if s.maxBrains > 0 && len(existing) >= s.maxBrains {
		return brainModel.Brain{}, fmt.Errorf("%w (%d)", ErrMaxBrainsReached, s.maxBrains)
	}

	created, err := s.store.CreateBrain(ctx, brainModel.Brain{
		Name:        props.Name,
		Description: props.Description,
		Status:      props.Status,
		Model:       props.Model,
		Temperature: props.Temperature,
		MaxTokens:   props.MaxTokens,
		PromptID:    props.PromptID,
		SecretNames: props.SecretNames,
	})
	if err != nil {
		return brainModel.Brain{}, err
	}

	isDefault := true
	for _, bu := range existing {
		if bu.IsDefault {
			isDefault = false
			break
		}
	}
	if err := s.store.CreateBrainUser(ctx, brainModel.BrainUser{
		UserID:    userID,
		BrainID:   created.ID,
		Rights:    brainModel.RoleOwner,
		IsDefault: isDefault,
	}); err != nil {
		return brainModel.Brain{}, err
	}

	return created, nil
}

// GetBrain fetches one brain by id.
func (s *Service) GetBrain(ctx context.Context, brainID uuid.UUID) (brainModel.Brain, error) {
	return s.store.GetBrain(ctx, brainID)
}

// GetUserBrains lists every brain the user has rights on.
func (s *Service) GetUserBrains(ctx context.Context, userID uuid.UUID) ([]UserBrain, error) {
	brainUsers, err := s.store.GetUserBrainUsers(ctx, userID)
	if err != nil {
		return nil, err
	}

	brains := make([]UserBrain, 0, len(brainUsers))
	for _, bu := range brainUsers {
		b, err := s.store.GetBrain(ctx, bu.BrainID)
		if err != nil {
			if errors.Is(err, storage.ErrBrainNotFound) {
				continue
			}
			return nil, err
		}
		brains = append(brains, UserBrain{Brain: b, Rights: bu.Rights, IsDefault: bu.IsDefault})
	}
	sort.Slice(brains, func(i, j int) bool {
		return brains[i].CreationTime.Before(brains[j].CreationTime)
	})
	return brains, nil
}

// GetPublicBrains lists brains visible to everyone.
func (s *Service) GetPublicBrains(ctx context.Context) ([]brainModel.Brain, error) {
	return s.store.GetPublicBrains(ctx)
}

// GetOrCreateDefaultBrain returns the user's default brain, creating one when
// the user has none yet.
func (s *Service) GetOrCreateDefaultBrain(ctx context.Context, userID uuid.UUID) (UserBrain, error) {
	brainUsers, err := s.store.GetUserBrainUsers(ctx, userID)
	if err != nil {
		return UserBrain{}, err
	}
	for _, bu := range brainUsers {
		if !bu.IsDefault {
			continue
		}
		b, err := s.store.GetBrain(ctx, bu.BrainID)
		if err != nil {
			// A stale default record must not block creating a fresh one.
			if errors.Is(err, storage.ErrBrainNotFound) {
				continue
			}
			return UserBrain{}, err
		}
		return UserBrain{Brain: b, Rights: bu.Rights, IsDefault: true}, nil
	}

	created, err := s.CreateBrain(ctx, userID, brainModel.CreateProperties{Name: "Default brain"})
	if err != nil {
		return UserBrain{}, err
	}
	if err := s.store.SetDefaultBrain(ctx, userID, created.ID); err != nil {
		return UserBrain{}, err
	}
	return UserBrain{Brain: created, Rights: brainModel.RoleOwner, IsDefault: true}, nil
}

// SetDefaultBrain marks the brain as the user's default.
func (s *Service) SetDefaultBrain(ctx context.Context, userID, brainID uuid.UUID) error {
	if err := s.ValidateAuthorization(ctx, userID, brainID, brainModel.RoleViewer); err != nil {
		return err
	}
	if err := s.store.SetDefaultBrain(ctx, userID, brainID); err != nil {
		if errors.Is(err, storage.ErrBrainUserNotFound) {
			// Viewer via public brain: grant explicit viewer rights first.
			if err := s.store.CreateBrainUser(ctx, brainModel.BrainUser{
				UserID:    userID,
				BrainID:   brainID,
				Rights:    brainModel.RoleViewer,
				IsDefault: false,
			}); err != nil {
				return err
			}
			return s.store.SetDefaultBrain(ctx, userID, brainID)
		}
		return err
	}
	return nil
}

// ValidateAuthorization fails with ErrNotAuthorized unless the user holds at
// least the required role on the brain. Public brains grant Viewer to anyone.
func (s *Service) ValidateAuthorization(ctx context.Context, userID, brainID uuid.UUID, required brainModel.Role) error {
	b, err := s.store.GetBrain(ctx, brainID)
	if err != nil {
		return err
	}

	bu, err := s.store.GetBrainUser(ctx, userID, brainID)
	if err != nil {
		if errors.Is(err, storage.ErrBrainUserNotFound) {
			if b.Status == brainModel.StatusPublic && brainModel.RoleViewer.AtLeast(required) {
				return nil
			}
			return ErrNotAuthorized
		}
		return err
	}
	if !bu.Rights.AtLeast(required) {
		return ErrNotAuthorized
	}
	return nil
}

// UpdateBrain applies updates; requires Editor rights. Flipping a public brain
// to private strips non-owner rights.
func (s *Service) UpdateBrain(ctx context.Context, userID, brainID uuid.UUID, updates brainModel.UpdatableProperties) (brainModel.Brain, error) {
	if err := s.ValidateAuthorization(ctx, userID, brainID, brainModel.RoleEditor); err != nil {
		return brainModel.Brain{}, err
	}

	existing, err := s.store.GetBrain(ctx, brainID)
	if err != nil {
		return brainModel.Brain{}, err
	}

	updated, err := s.store.UpdateBrain(ctx, brainID, updates)
	if err != nil {
		return brainModel.Brain{}, err
	}

	if updates.Status != nil && *updates.Status == brainModel.StatusPrivate && existing.Status == brainModel.StatusPublic {
		if err := s.store.DeleteBrainUsers(ctx, brainID, true); err != nil {
			return brainModel.Brain{}, err
		}
	}
	return updated, nil
}

// DeleteBrain removes a brain and every rights record on it; requires Owner.
// Owner records go too, so the deleted brain neither blocks the default-brain
// lookup nor counts toward the max-brains limit.
func (s *Service) DeleteBrain(ctx context.Context, userID, brainID uuid.UUID) error {
	if err := s.ValidateAuthorization(ctx, userID, brainID, brainModel.RoleOwner); err != nil {
		return err
	}
	if err := s.store.DeleteBrainUsers(ctx, brainID, false); err != nil {
		return err
	}
	return s.store.DeleteBrain(ctx, brainID)
}

// UpdateSecrets validates and stores secret values for a brain the user has
// rights on. Every key must be declared in the brain's secret names.
func (s *Service) UpdateSecrets(ctx context.Context, userID, brainID uuid.UUID, secrets map[string]string) error {
	b, err := s.store.GetBrain(ctx, brainID)
	if err != nil {
		return err
	}
	if len(b.SecretNames) == 0 {
		return ErrNoSecrets
	}
	if _, err := s.store.GetBrainUser(ctx, userID, brainID); err != nil {
		if errors.Is(err, storage.ErrBrainUserNotFound) {
			return ErrNotAuthorized
		}
		return err
	}

	defined := make(map[string]bool, len(b.SecretNames))
	for _, name := range b.SecretNames {
		defined[name] = true
	}
	for name := range secrets {
		if !defined[name] {
			return fmt.Errorf("%w: %s", ErrUnknownSecret, name)
		}
	}
	for name, value := range secrets {
		if value == "" {
			continue
		}
		if err := s.store.UpdateSecretValue(ctx, userID, brainID, name, value); err != nil {
			return err
		}
	}
	return nil
}

// AddKnowledge attaches a document to the brain; requires Editor rights.
func (s *Service) AddKnowledge(ctx context.Context, userID, brainID uuid.UUID, fileName, content string) (brainModel.Knowledge, error) {
	if err := s.ValidateAuthorization(ctx, userID, brainID, brainModel.RoleEditor); err != nil {
		return brainModel.Knowledge{}, err
	}
	return s.store.AddKnowledge(ctx, brainModel.Knowledge{
		BrainID:  brainID,
		FileName: fileName,
		Content:  content,
	})
}

// GetKnowledge lists the documents attached to a brain.
func (s *Service) GetKnowledge(ctx context.Context, brainID uuid.UUID) ([]brainModel.Knowledge, error) {
	return s.store.GetBrainKnowledge(ctx, brainID)
}

// GetQuestionContext scores the brain's documents against the question by
// keyword overlap and returns the best matching passages.
func (s *Service) GetQuestionContext(ctx context.Context, brainID uuid.UUID, question string) (string, error) {
	knowledge, err := s.store.GetBrainKnowledge(ctx, brainID)
	if err != nil {
		return "", err
	}
	if len(knowledge) == 0 {
		return "", nil
	}

	terms := tokenize(question)
	type scored struct {
		content string
		score   int
	}
	matches := make([]scored, 0, len(knowledge))
	for _, k := range knowledge {
		docTerms := make(map[string]bool)
		for _, t := range tokenize(k.Content) {
			docTerms[t] = true
		}
		score := 0
		for _, t := range terms {
			if docTerms[t] {
				score++
			}
		}
		if score > 0 {
			matches = append(matches, scored{content: k.Content, score: score})
		}
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].score > matches[j].score })

	const maxPassages = 3
	if len(matches) > maxPassages {
		matches = matches[:maxPassages]
	}
	parts := make([]string, 0, len(matches))
	for _, m := range matches {
		parts = append(parts, m.content)
	}
	return strings.Join(parts, "\n\n"), nil
}

func tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !('a' <= r && r <= 'z') && !('0' <= r && r <= '9')
	})
	terms := make([]string, 0, len(fields))
	for _, f := range fields {
		if len(f) > 2 {
			terms = append(terms, f)
		}
	}
	return terms
}
