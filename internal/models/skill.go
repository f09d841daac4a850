// Package models defines the domain types for skillvault.
package models

import "time"

// Visibility values for a skill.
const (
	VisibilityPublic  = "public"
	VisibilityPrivate = "private"
)

// Resource kinds.
const (
	ResourceKindReference = "reference"
	ResourceKindScript    = "script"
	ResourceKindAsset     = "asset"
	ResourceKindOther     = "other"
)

// Skill is an identified markdown document. OwnerUserID is nil for global skills.
type Skill struct {
	ID          string    `db:"id" json:"id"`
	OwnerUserID *string   `db:"owner_user_id" json:"ownerUserId"`
	Visibility  string    `db:"visibility" json:"visibility"`
	Slug        string    `db:"slug" json:"slug"`
	Name        string    `db:"name" json:"name"`
	Description string    `db:"description" json:"description"`
	Markdown    string    `db:"skill_markdown" json:"skillMarkdown"`
	Metadata    Metadata  `db:"metadata" json:"metadata"`
	CreatedAt   time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time `db:"updated_at" json:"updatedAt"`
}

// Resource is a named sub-document owned by exactly one skill.
type Resource struct {
	ID        string    `db:"id" json:"id"`
	SkillID   string    `db:"skill_id" json:"skillId"`
	Path      string    `db:"path" json:"path"`
	Kind      string    `db:"kind" json:"kind"`
	Content   string    `db:"content" json:"content"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// SameOwner reports whether two nullable owner ids denote the same owner.
// Two ownerless entities share an owner.
func SameOwner(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
