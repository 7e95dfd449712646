// Package chat exposes the chat and question HTTP endpoints.
package chat

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/leduyhoang1994/quivr/internal/config"
	chatModel "github.com/leduyhoang1994/quivr/internal/model/chat"
	"github.com/leduyhoang1994/quivr/internal/model/user"
	"github.com/leduyhoang1994/quivr/internal/service/answer"
	brainService "github.com/leduyhoang1994/quivr/internal/service/brain"
	chatService "github.com/leduyhoang1994/quivr/internal/service/chat"
	usageService "github.com/leduyhoang1994/quivr/internal/service/usage"
	"github.com/leduyhoang1994/quivr/internal/storage"
	"github.com/leduyhoang1994/quivr/pkg/utils"
)

// Handler routes chat CRUD and question endpoints to the services.
type Handler struct {
	chatSvc  *chatService.Service
	brainSvc *brainService.Service
	usageSvc *usageService.Service
	factory  *answer.Factory
	ai       config.AIConfig
}

// New creates the chat handler.
func New(chatSvc *chatService.Service, brainSvc *brainService.Service, usageSvc *usageService.Service, factory *answer.Factory, ai config.AIConfig) *Handler {
	return &Handler{
		chatSvc:  chatSvc,
		brainSvc: brainSvc,
		usageSvc: usageSvc,
		factory:  factory,
		ai:       ai,
	}
}

// RegisterRoutes registers the authenticated chat routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/chat", h.handleGetChats)
	r.Post("/chat", h.handleCreateChat)
	r.Delete("/chat/{chatID}", h.handleDeleteChat)
	r.Put("/chat/{chatID}/metadata", h.handleUpdateChatMetadata)
	r.Post("/chat/{chatID}/question", h.handleQuestion)
	r.Post("/chat/{chatID}/question/stream", h.handleQuestionStream)
	r.Post("/chat/{chatID}/question/answer", h.handleAddQuestionAndAnswer)
	r.Get("/chat/{chatID}/history", h.handleGetHistory)
}

func (h *Handler) handleGetChats(w http.ResponseWriter, r *http.Request) {
	identity, ok := user.FromContext(r.Context())
	if !ok {
		utils.RespondError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	chats, err := h.chatSvc.GetUserChats(r.Context(), identity.ID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]any{"chats": chats})
}

func (h *Handler) handleCreateChat(w http.ResponseWriter, r *http.Request) {
	identity, ok := user.FromContext(r.Context())
	if !ok {
		utils.RespondError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var props chatModel.CreateProperties
	if err := json.NewDecoder(r.Body).Decode(&props); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	created, err := h.chatSvc.CreateChat(r.Context(), identity.ID, props)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, created)
}

func (h *Handler) handleDeleteChat(w http.ResponseWriter, r *http.Request) {
	chatID, ok := parseChatID(w, r)
	if !ok {
		return
	}

	if err := h.chatSvc.DeleteChat(r.Context(), chatID); err != nil {
		respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]string{"message": chatID.String() + " has been deleted."})
}

func (h *Handler) handleUpdateChatMetadata(w http.ResponseWriter, r *http.Request) {
	identity, ok := user.FromContext(r.Context())
	if !ok {
		utils.RespondError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	chatID, ok := parseChatID(w, r)
	if !ok {
		return
	}

	var updates chatModel.UpdatableProperties
	if err := json.NewDecoder(r.Body).Decode(&updates); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	updated, err := h.chatSvc.UpdateChatMetadata(r.Context(), identity.ID, chatID, updates)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, updated)
}

func (h *Handler) handleQuestion(w http.ResponseWriter, r *http.Request) {
	identity, chatID, question, strategy, ok := h.prepareQuestion(w, r, false)
	if !ok {
		return
	}

	gen, err := strategy.AnswerGenerator(r.Context(), answer.Options{
		ChatID:      chatID,
		UserID:      identity.ID,
		Model:       question.Model,
		Temperature: question.Temperature,
		MaxTokens:   question.MaxTokens,
		Streaming:   false,
		PromptID:    question.PromptID,
	})
	if err != nil {
		respondServiceError(w, err)
		return
	}

	entry, err := gen.GenerateAnswer(r.Context(), chatID, question)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, entry)
}

func (h *Handler) handleQuestionStream(w http.ResponseWriter, r *http.Request) {
	flusher, canFlush := w.(http.Flusher)
	if !canFlush {
		utils.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	identity, chatID, question, strategy, ok := h.prepareQuestion(w, r, true)
	if !ok {
		return
	}

	gen, err := strategy.AnswerGenerator(r.Context(), answer.Options{
		ChatID:      chatID,
		UserID:      identity.ID,
		Model:       question.Model,
		Temperature: question.Temperature,
		MaxTokens:   question.MaxTokens,
		Streaming:   true,
		PromptID:    question.PromptID,
	})
	if err != nil {
		respondServiceError(w, err)
		return
	}

	frames, err := gen.GenerateStream(r.Context(), chatID, question)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	utils.SetupSSEHeaders(w)
	w.WriteHeader(http.StatusOK)
	for entry := range frames {
		utils.SendSSEChunk(w, flusher, entry)
	}
}

// prepareQuestion runs the shared pre-generation pipeline: identity, path and
// body parsing, strategy selection, authorization, quota and parameter
// fallbacks.
func (h *Handler) prepareQuestion(w http.ResponseWriter, r *http.Request, streaming bool) (user.Identity, uuid.UUID, chatModel.Question, answer.Strategy, bool) {
	var question chatModel.Question

	identity, ok := user.FromContext(r.Context())
	if !ok {
		utils.RespondError(w, http.StatusUnauthorized, "authentication required")
		return identity, uuid.Nil, question, nil, false
	}

	chatID, ok := parseChatID(w, r)
	if !ok {
		return identity, uuid.Nil, question, nil, false
	}

	if err := json.NewDecoder(r.Body).Decode(&question); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return identity, uuid.Nil, question, nil, false
	}
	if question.Question == "" {
		utils.RespondError(w, http.StatusBadRequest, "question is required")
		return identity, uuid.Nil, question, nil, false
	}

	brainID := parseBrainID(r)
	strategy := h.factory.Select(brainID)
	if err := strategy.ValidateAuthorization(r.Context(), identity.ID); err != nil {
		respondServiceError(w, err)
		return identity, uuid.Nil, question, nil, false
	}

	if err := h.usageSvc.CheckAndIncrement(r.Context(), identity.ID); err != nil {
		respondServiceError(w, err)
		return identity, uuid.Nil, question, nil, false
	}

	h.applyQuestionFallbacks(r, &question, brainID, streaming)
	return identity, chatID, question, strategy, true
}

// applyQuestionFallbacks fills unset generation parameters from the brain
// configuration, then from the service defaults, and pins unsupported models
// to the default model.
func (h *Handler) applyQuestionFallbacks(r *http.Request, q *chatModel.Question, brainID *uuid.UUID, streaming bool) {
	fallbackModel := h.ai.DefaultModel
	fallbackTemperature := h.ai.FallbackTemperature
	fallbackMaxTokens := h.ai.FallbackMaxTokens
	if streaming {
		fallbackTemperature = h.ai.StreamFallbackTemperature
		fallbackMaxTokens = h.ai.StreamFallbackMaxTokens
	}

	if brainID != nil {
		if b, err := h.brainSvc.GetBrain(r.Context(), *brainID); err == nil {
			if b.Model != "" {
				fallbackModel = b.Model
			}
			if b.Temperature != nil {
				fallbackTemperature = *b.Temperature
			}
			if b.MaxTokens != nil {
				fallbackMaxTokens = *b.MaxTokens
			}
		}
	}

	if q.Model == "" {
		q.Model = fallbackModel
	}
	if q.Temperature == nil {
		q.Temperature = &fallbackTemperature
	}
	if q.MaxTokens == nil {
		q.MaxTokens = &fallbackMaxTokens
	}
	if !h.ai.ModelSupported(q.Model) {
		q.Model = h.ai.DefaultModel
	}
}

func (h *Handler) handleAddQuestionAndAnswer(w http.ResponseWriter, r *http.Request) {
	chatID, ok := parseChatID(w, r)
	if !ok {
		return
	}

	var qa chatModel.QuestionAndAnswer
	if err := json.NewDecoder(r.Body).Decode(&qa); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if qa.Question == "" {
		utils.RespondError(w, http.StatusBadRequest, "question is required")
		return
	}

	entry, err := h.chatSvc.AddQuestionAndAnswer(r.Context(), chatID, qa)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, entry)
}

func (h *Handler) handleGetHistory(w http.ResponseWriter, r *http.Request) {
	chatID, ok := parseChatID(w, r)
	if !ok {
		return
	}

	items, err := h.chatSvc.GetChatItems(r.Context(), chatID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, items)
}

// HandleHealthz reports liveness; mounted outside the auth group.
func HandleHealthz(w http.ResponseWriter, _ *http.Request) {
	utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func parseChatID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	chatID, err := uuid.Parse(chi.URLParam(r, "chatID"))
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid chat id")
		return uuid.Nil, false
	}
	return chatID, true
}

// parseBrainID reads the optional brain_id query parameter. Empty or
// malformed values select the headless strategy.
func parseBrainID(r *http.Request) *uuid.UUID {
	raw := r.URL.Query().Get("brain_id")
	if raw == "" {
		return nil
	}
	brainID, err := uuid.Parse(raw)
	if err != nil {
		return nil
	}
	return &brainID
}

func respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, storage.ErrChatNotFound),
		errors.Is(err, storage.ErrBrainNotFound),
		errors.Is(err, storage.ErrMessageNotFound):
		utils.RespondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, chatService.ErrNotChatOwner),
		errors.Is(err, brainService.ErrNotAuthorized):
		utils.RespondError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, usageService.ErrDailyLimitReached):
		utils.RespondError(w, http.StatusTooManyRequests, err.Error())
	default:
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
	}
}
