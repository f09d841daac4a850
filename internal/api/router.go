package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/skillvault/internal/skillservice"
)

// RouterConfig controls authentication of the API routes.
type RouterConfig struct {
	// AuthEnabled enforces the bearer token on every route.
	AuthEnabled bool
	Token       string
	// UserHeader names the trusted header carrying the acting user id.
	UserHeader string
}

// NewRouter creates a chi router with all API routes mounted.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *skillservice.Service, cfg RouterConfig, sseHandler http.Handler, logger *slog.Logger) chi.Router {
	h := NewHandler(svc, logger)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(cfg.AuthEnabled, cfg.Token))
	r.Use(UserMiddleware(cfg.UserHeader))

	r.Route("/skills", func(r chi.Router) {
		r.Get("/", h.ListSkills)
		r.Post("/", h.CreateSkill)
		r.Route("/{id}", func(r chi.Router) {
			r.Use(requireSkillID)
			r.Get("/", h.GetSkill)
			r.Put("/markdown", h.UpdateSkillMarkdown)
			r.Get("/links", h.Links)
			r.Get("/preview", h.Preview)
		})
	})

	r.Get("/mentions/resolve", h.ResolveMention)
	r.Post("/mentions/validate", h.ValidateMentions)

	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
