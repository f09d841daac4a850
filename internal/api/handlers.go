package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/skillvault/internal/render"
	"github.com/starford/skillvault/internal/skillservice"
)

const maxBody = 10 << 20

// Handler holds API route handlers.
type Handler struct {
	svc    *skillservice.Service
	logger *slog.Logger
}

// NewHandler creates a new Handler.
func NewHandler(svc *skillservice.Service, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{svc: svc, logger: logger}
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBody)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return false
	}
	return true
}

// ListSkills handles GET /api/skills.
//
//	@Summary		List skills visible to the caller
//	@Tags			skills
//	@Produce		json
//	@Param			limit	query		int		false	"Page size"
//	@Success		200		{object}	SkillListResponse
//	@Security		BearerAuth
//	@Router			/skills [get]
func (h *Handler) ListSkills(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	items, err := h.svc.ListSkills(r.Context(), viewer(r), limit)
	if err != nil {
		writeError(w, h.logger, "list skills", err)
		return
	}
	writeJSON(w, http.StatusOK, SkillListResponse{Skills: items, Total: len(items)})
}

// CreateSkill handles POST /api/skills.
//
//	@Summary		Create a skill owned by the caller
//	@Tags			skills
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CreateSkillRequest	true	"Skill to create"
//	@Success		201		{object}	SkillDetail
//	@Failure		400		{object}	errResponse
//	@Failure		403		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/skills [post]
func (h *Handler) CreateSkill(w http.ResponseWriter, r *http.Request) {
	actor := userID(r)
	if actor == "" {
		writeJSON(w, http.StatusUnauthorized, errorBody("user id is required"))
		return
	}
	var req CreateSkillRequest
	if !decode(w, r, &req) {
		return
	}
	sk, err := h.svc.CreateSkill(r.Context(), actor, req)
	if err != nil {
		writeError(w, h.logger, "create skill", err)
		return
	}
	writeJSON(w, http.StatusCreated, sk)
}

// GetSkill handles GET /api/skills/{id}.
//
//	@Summary		Get a skill with rendered mentions
//	@Tags			skills
//	@Produce		json
//	@Param			id				path		string	true	"Skill id"
//	@Param			linkMentions	query		bool	false	"Render mentions as links"
//	@Param			contextSkillId	query		string	false	"Skill that shortens resource labels"
//	@Success		200				{object}	SkillDetail
//	@Failure		404				{object}	errResponse
//	@Security		BearerAuth
//	@Router			/skills/{id} [get]
func (h *Handler) GetSkill(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	opts := render.Options{CurrentSkillID: q.Get("contextSkillId")}
	if linked, _ := strconv.ParseBool(q.Get("linkMentions")); linked {
		opts.Mode = render.ModeLinked
	}
	sk, err := h.svc.GetSkill(r.Context(), viewer(r), chi.URLParam(r, "id"), opts)
	if err != nil {
		writeError(w, h.logger, "get skill", err)
		return
	}
	writeJSON(w, http.StatusOK, sk)
}

// UpdateSkillMarkdown handles PUT /api/skills/{id}/markdown.
//
//	@Summary		Replace skill markdown and rebuild its mention links
//	@Tags			skills
//	@Accept			json
//	@Produce		json
//	@Param			id			path		string					true	"Skill id"
//	@Param			If-Match	header		string					false	"SHA-256 checksum for optimistic concurrency"
//	@Param			body		body		UpdateMarkdownRequest	true	"New markdown"
//	@Success		200			{object}	SkillDetail
//	@Failure		400			{object}	errResponse
//	@Failure		403			{object}	errResponse
//	@Failure		404			{object}	errResponse
//	@Failure		409			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/skills/{id}/markdown [put]
func (h *Handler) UpdateSkillMarkdown(w http.ResponseWriter, r *http.Request) {
	actor := userID(r)
	if actor == "" {
		writeJSON(w, http.StatusUnauthorized, errorBody("user id is required"))
		return
	}
	var req UpdateMarkdownRequest
	if !decode(w, r, &req) {
		return
	}
	ifMatch := strings.Trim(r.Header.Get("If-Match"), `"`)

	sk, err := h.svc.UpdateSkillMarkdown(r.Context(), actor, chi.URLParam(r, "id"), req.Markdown, ifMatch)
	if err != nil {
		writeError(w, h.logger, "update skill markdown", err)
		return
	}
	w.Header().Set("ETag", `"`+sk.Checksum+`"`)
	writeJSON(w, http.StatusOK, sk)
}

// Links handles GET /api/skills/{id}/links.
func (h *Handler) Links(w http.ResponseWriter, r *http.Request) {
	out, in, err := h.svc.Links(r.Context(), viewer(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.logger, "skill links", err)
		return
	}
	writeJSON(w, http.StatusOK, LinksResponse{Outgoing: out, Incoming: in})
}

// Preview handles GET /api/skills/{id}/preview and returns HTML.
func (h *Handler) Preview(w http.ResponseWriter, r *http.Request) {
	html, err := h.svc.Preview(r.Context(), viewer(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.logger, "preview skill", err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(html))
}

// ResolveMention handles GET /api/mentions/resolve?mention=skill:<id>.
//
//	@Summary		Resolve a viewer mention query to its target
//	@Tags			mentions
//	@Produce		json
//	@Param			mention	query		string	true	"type:id"
//	@Success		200		{object}	MentionTarget
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/mentions/resolve [get]
func (h *Handler) ResolveMention(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("mention")
	if q == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'mention' is required"))
		return
	}
	target, err := h.svc.ResolveMention(r.Context(), viewer(r), q)
	if err != nil {
		writeError(w, h.logger, "resolve mention", err)
		return
	}
	writeJSON(w, http.StatusOK, target)
}

// ValidateMentions handles POST /api/mentions/validate.
func (h *Handler) ValidateMentions(w http.ResponseWriter, r *http.Request) {
	var req ValidateMentionsRequest
	if !decode(w, r, &req) {
		return
	}
	writeJSON(w, http.StatusOK, h.svc.ValidateMarkdown(req.Markdown))
}
