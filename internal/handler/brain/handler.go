// Package brain exposes the brain management HTTP endpoints.
package brain

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	brainModel "github.com/leduyhoang1994/quivr/internal/model/brain"
	"github.com/leduyhoang1994/quivr/internal/model/user"
	brainService "github.com/leduyhoang1994/quivr/internal/service/brain"
	"github.com/leduyhoang1994/quivr/internal/storage"
	"github.com/leduyhoang1994/quivr/pkg/utils"
)

// Handler routes brain endpoints to the brain service.
type Handler struct {
	svc *brainService.Service
}

// New creates the brain handler.
func New(svc *brainService.Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes registers the authenticated brain routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/brains", h.handleGetUserBrains)
	r.Get("/brains/public", h.handleGetPublicBrains)
	r.Get("/brains/default", h.handleGetDefaultBrain)
	r.Post("/brains", h.handleCreateBrain)
	r.Get("/brains/{brainID}", h.handleGetBrain)
	r.Put("/brains/{brainID}", h.handleUpdateBrain)
	r.Delete("/brains/{brainID}", h.handleDeleteBrain)
	r.Post("/brains/{brainID}/default", h.handleSetDefaultBrain)
	r.Put("/brains/{brainID}/secrets-values", h.handleUpdateSecrets)
	r.Post("/brains/{brainID}/question_context", h.handleQuestionContext)
	r.Post("/brains/{brainID}/knowledge", h.handleAddKnowledge)
	r.Get("/brains/{brainID}/knowledge", h.handleGetKnowledge)
}

func (h *Handler) handleGetUserBrains(w http.ResponseWriter, r *http.Request) {
	identity, ok := user.FromContext(r.Context())
	if !ok {
		utils.RespondError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	brains, err := h.svc.GetUserBrains(r.Context(), identity.ID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]any{"brains": brains})
}

func (h *Handler) handleGetPublicBrains(w http.ResponseWriter, r *http.Request) {
	brains, err := h.svc.GetPublicBrains(r.Context())
	if err != nil {
		respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]any{"brains": brains})
}

func (h *Handler) handleGetDefaultBrain(w http.ResponseWriter, r *http.Request) {
	identity, ok := user.FromContext(r.Context())
	if !ok {
		utils.RespondError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	defaultBrain, err := h.svc.GetOrCreateDefaultBrain(r.Context(), identity.ID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, defaultBrain)
}

func (h *Handler) handleCreateBrain(w http.ResponseWriter, r *http.Request) {
	identity, ok := user.FromContext(r.Context())
	if !ok {
		utils.RespondError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var props brainModel.CreateProperties
	if err := json.NewDecoder(r.Body).Decode(&props); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	created, err := h.svc.CreateBrain(r.Context(), identity.ID, props)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, created)
}

func (h *Handler) handleGetBrain(w http.ResponseWriter, r *http.Request) {
	identity, ok := user.FromContext(r.Context())
	if !ok {
		utils.RespondError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	brainID, ok := parseBrainID(w, r)
	if !ok {
		return
	}

	if err := h.svc.ValidateAuthorization(r.Context(), identity.ID, brainID, brainModel.RoleViewer); err != nil {
		respondServiceError(w, err)
		return
	}
	b, err := h.svc.GetBrain(r.Context(), brainID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, b)
}

func (h *Handler) handleUpdateBrain(w http.ResponseWriter, r *http.Request) {
	identity, ok := user.FromContext(r.Context())
	if !ok {
		utils.RespondError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	brainID, ok := parseBrainID(w, r)
	if !ok {
		return
	}

	var updates brainModel.UpdatableProperties
	if err := json.NewDecoder(r.Body).Decode(&updates); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	updated, err := h.svc.UpdateBrain(r.Context(), identity.ID, brainID, updates)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, updated)
}

func (h *Handler) handleDeleteBrain(w http.ResponseWriter, r *http.Request) {
	identity, ok := user.FromContext(r.Context())
	if !ok {
		utils.RespondError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	brainID, ok := parseBrainID(w, r)
	if !ok {
		return
	}

	if err := h.svc.DeleteBrain(r.Context(), identity.ID, brainID); err != nil {
		respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]string{"message": "Brain deleted."})
}

func (h *Handler) handleSetDefaultBrain(w http.ResponseWriter, r *http.Request) {
	identity, ok := user.FromContext(r.Context())
	if !ok {
		utils.RespondError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	brainID, ok := parseBrainID(w, r)
	if !ok {
		return
	}

	if err := h.svc.SetDefaultBrain(r.Context(), identity.ID, brainID); err != nil {
		respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]string{"message": "Default brain updated."})
}

func (h *Handler) handleUpdateSecrets(w http.ResponseWriter, r *http.Request) {
	identity, ok := user.FromContext(r.Context())
	if !ok {
		utils.RespondError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	brainID, ok := parseBrainID(w, r)
	if !ok {
		return
	}

	var secrets map[string]string
	if err := json.NewDecoder(r.Body).Decode(&secrets); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.svc.UpdateSecrets(r.Context(), identity.ID, brainID, secrets); err != nil {
		respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]string{"message": "Secrets updated."})
}

func (h *Handler) handleQuestionContext(w http.ResponseWriter, r *http.Request) {
	identity, ok := user.FromContext(r.Context())
	if !ok {
		utils.RespondError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	brainID, ok := parseBrainID(w, r)
	if !ok {
		return
	}

	var body struct {
		Question string `json:"question"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if body.Question == "" {
		utils.RespondError(w, http.StatusBadRequest, "question is required")
		return
	}

	if err := h.svc.ValidateAuthorization(r.Context(), identity.ID, brainID, brainModel.RoleViewer); err != nil {
		respondServiceError(w, err)
		return
	}
	docs, err := h.svc.GetQuestionContext(r.Context(), brainID, body.Question)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]string{"docs": docs})
}

func (h *Handler) handleAddKnowledge(w http.ResponseWriter, r *http.Request) {
	identity, ok := user.FromContext(r.Context())
	if !ok {
		utils.RespondError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	brainID, ok := parseBrainID(w, r)
	if !ok {
		return
	}

	var body struct {
		FileName string `json:"file_name"`
		Content  string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if body.Content == "" {
		utils.RespondError(w, http.StatusBadRequest, "content is required")
		return
	}

	k, err := h.svc.AddKnowledge(r.Context(), identity.ID, brainID, body.FileName, body.Content)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, k)
}

func (h *Handler) handleGetKnowledge(w http.ResponseWriter, r *http.Request) {
	identity, ok := user.FromContext(r.Context())
	if !ok {
		utils.RespondError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	brainID, ok := parseBrainID(w, r)
	if !ok {
		return
	}

	if err := h.svc.ValidateAuthorization(r.Context(), identity.ID, brainID, brainModel.RoleViewer); err != nil {
		respondServiceError(w, err)
		return
	}
	knowledge, err := h.svc.GetKnowledge(r.Context(), brainID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]any{"knowledge": knowledge})
}

func parseBrainID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	brainID, err := uuid.Parse(chi.URLParam(r, "brainID"))
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid brain id")
		return uuid.Nil, false
	}
	return brainID, true
}

func respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, storage.ErrBrainNotFound):
		utils.RespondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, brainService.ErrNotAuthorized):
		utils.RespondError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, brainService.ErrMaxBrainsReached):
		utils.RespondError(w, http.StatusTooManyRequests, err.Error())
	case errors.Is(err, brainService.ErrNameRequired),
		errors.Is(err, brainService.ErrNoSecrets),
		errors.Is(err, brainService.ErrUnknownSecret):
		utils.RespondError(w, http.StatusBadRequest, err.Error())
	default:
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
	}
}
