package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/leduyhoang1994/quivr/internal/config"
	brainHandler "github.com/leduyhoang1994/quivr/internal/handler/brain"
	chatHandler "github.com/leduyhoang1994/quivr/internal/handler/chat"
	promptHandler "github.com/leduyhoang1994/quivr/internal/handler/prompt"
	middlewarePkg "github.com/leduyhoang1994/quivr/internal/middleware"
	"github.com/leduyhoang1994/quivr/internal/service/answer"
	brainService "github.com/leduyhoang1994/quivr/internal/service/brain"
	chatService "github.com/leduyhoang1994/quivr/internal/service/chat"
	promptService "github.com/leduyhoang1994/quivr/internal/service/prompt"
	usageService "github.com/leduyhoang1994/quivr/internal/service/usage"
)

// NewRouter wires HTTP routes to core services.
func NewRouter(cfg *config.Config, chatSvc *chatService.Service, brainSvc *brainService.Service, promptSvc *promptService.Service, usageSvc *usageService.Service, factory *answer.Factory) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	r.Get("/chat/healthz", chatHandler.HandleHealthz)

	r.Group(func(authed chi.Router) {
		authed.Use(middlewarePkg.Auth(cfg.Auth.APIKeys))

		chatHandler.New(chatSvc, brainSvc, usageSvc, factory, cfg.AI).RegisterRoutes(authed)
		brainHandler.New(brainSvc).RegisterRoutes(authed)
		promptHandler.New(promptSvc).RegisterRoutes(authed)
	})

	return r
}
