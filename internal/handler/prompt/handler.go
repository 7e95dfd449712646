// Package prompt exposes the prompt HTTP endpoints.
package prompt

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	promptModel "github.com/leduyhoang1994/quivr/internal/model/prompt"
	"github.com/leduyhoang1994/quivr/internal/model/user"
	promptService "github.com/leduyhoang1994/quivr/internal/service/prompt"
	"github.com/leduyhoang1994/quivr/internal/storage"
	"github.com/leduyhoang1994/quivr/pkg/utils"
)

// Handler routes prompt endpoints to the prompt service.
type Handler struct {
	svc *promptService.Service
}

// New creates the prompt handler.
func New(svc *promptService.Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes registers the authenticated prompt routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/prompts", h.handleGetPublicPrompts)
	r.Post("/prompts", h.handleCreatePrompt)
	r.Get("/prompts/{promptID}", h.handleGetPrompt)
	r.Put("/prompts/{promptID}", h.handleUpdatePrompt)
}

func (h *Handler) handleGetPublicPrompts(w http.ResponseWriter, r *http.Request) {
	prompts, err := h.svc.GetPublicPrompts(r.Context())
	if err != nil {
		respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]any{"prompts": prompts})
}

func (h *Handler) handleCreatePrompt(w http.ResponseWriter, r *http.Request) {
	identity, ok := user.FromContext(r.Context())
	if !ok {
		utils.RespondError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var props promptModel.CreateProperties
	if err := json.NewDecoder(r.Body).Decode(&props); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	created, err := h.svc.CreatePrompt(r.Context(), identity.ID, props)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, created)
}

func (h *Handler) handleGetPrompt(w http.ResponseWriter, r *http.Request) {
	promptID, ok := parsePromptID(w, r)
	if !ok {
		return
	}

	p, err := h.svc.GetPrompt(r.Context(), promptID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, p)
}

func (h *Handler) handleUpdatePrompt(w http.ResponseWriter, r *http.Request) {
	identity, ok := user.FromContext(r.Context())
	if !ok {
		utils.RespondError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	promptID, ok := parsePromptID(w, r)
	if !ok {
		return
	}

	var updates promptModel.UpdatableProperties
	if err := json.NewDecoder(r.Body).Decode(&updates); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	updated, err := h.svc.UpdatePrompt(r.Context(), identity.ID, promptID, updates)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, updated)
}

func parsePromptID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	promptID, err := uuid.Parse(chi.URLParam(r, "promptID"))
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid prompt id")
		return uuid.Nil, false
	}
	return promptID, true
}

func respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, storage.ErrPromptNotFound):
		utils.RespondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, promptService.ErrNotPromptOwner):
		utils.RespondError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, promptService.ErrTitleRequired),
		errors.Is(err, promptService.ErrContentRequired):
		utils.RespondError(w, http.StatusBadRequest, err.Error())
	default:
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
	}
}
