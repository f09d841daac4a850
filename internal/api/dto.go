package api

import (
	"github.com/starford/skillvault/internal/models"
	"github.com/starford/skillvault/internal/skillservice"
)

// CreateSkillRequest is the request body for creating a skill.
type CreateSkillRequest = skillservice.CreateInput

// UpdateMarkdownRequest is the request body for replacing skill markdown.
type UpdateMarkdownRequest struct {
	Markdown string `json:"skillMarkdown" example:"See [[skill:0b6c...]]" validate:"required"`
}

// ValidateMentionsRequest is the request body for mention validation.
type ValidateMentionsRequest struct {
	Markdown string `json:"skillMarkdown" validate:"required"`
}

// SkillDetail is the full skill response type (aliased from the domain layer).
type SkillDetail = skillservice.SkillDetail

// SkillListResponse wraps skill listings.
type SkillListResponse struct {
	Skills []models.Skill `json:"skills" validate:"required"`
	Total  int            `json:"total" example:"42" validate:"required"`
}

// LinksResponse holds the edges around one skill.
type LinksResponse struct {
	Outgoing []models.Link `json:"outgoing" validate:"required"`
	Incoming []models.Link `json:"incoming" validate:"required"`
}

// MentionTarget is the resolved target of a mention query.
type MentionTarget = skillservice.MentionTarget

// ValidationResponse is the outcome of mention validation.
type ValidationResponse = skillservice.Validation
