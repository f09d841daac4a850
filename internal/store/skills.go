package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/starford/skillvault/internal/apperr"
	"github.com/starford/skillvault/internal/models"
)

const skillColumns = `id, owner_user_id, visibility, slug, name, description, skill_markdown, metadata, created_at, updated_at`

// SkillOwner is the ownership of one skill.
type SkillOwner struct {
	ID          string  `db:"id"`
	OwnerUserID *string `db:"owner_user_id"`
}

// SkillName is the display name of one skill.
type SkillName struct {
	ID   string `db:"id"`
	Name string `db:"name"`
}

// ListFilter narrows ListSkills. A nil Viewer lists every skill.
type ListFilter struct {
	Viewer *string
	Limit  int
}

// CreateSkill inserts s. It returns apperr.ErrAlreadyExists when the owner
// already has a skill with the same slug.
func (q queries) CreateSkill(ctx context.Context, s *models.Skill) error {
	_, err := sqlx.NamedExecContext(ctx, q.ext, `
		INSERT INTO skill (`+skillColumns+`)
		VALUES (:id, :owner_user_id, :visibility, :slug, :name, :description, :skill_markdown, :metadata, :created_at, :updated_at)
	`, s)
	if isUniqueViolation(err) {
		return fmt.Errorf("store: create skill %q: %w", s.Slug, apperr.ErrAlreadyExists)
	}
	if err != nil {
		return fmt.Errorf("store: create skill: %w", err)
	}
	return nil
}

// GetSkill returns the skill with id or apperr.ErrNotFound.
func (q queries) GetSkill(ctx context.Context, id string) (*models.Skill, error) {
	var s models.Skill
	err := sqlx.GetContext(ctx, q.ext, &s, q.rebind(`SELECT `+skillColumns+` FROM skill WHERE id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("store: skill %s: %w", id, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("store: get skill: %w", err)
	}
	return &s, nil
}

// SkillBySlug returns the skill owned by owner (nil for global) with slug.
func (q queries) SkillBySlug(ctx context.Context, owner *string, slug string) (*models.Skill, error) {
	query := `SELECT ` + skillColumns + ` FROM skill WHERE owner_user_id IS NULL AND slug = ?`
	args := []any{slug}
	if owner != nil {
		query = `SELECT ` + skillColumns + ` FROM skill WHERE owner_user_id = ? AND slug = ?`
		args = []any{*owner, slug}
	}

	var s models.Skill
	err := sqlx.GetContext(ctx, q.ext, &s, q.rebind(query), args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("store: skill slug %q: %w", slug, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("store: skill by slug: %w", err)
	}
	return &s, nil
}

// ListSkills returns skills ordered by name. With a viewer set, only global
// skills, public skills and the viewer's own skills are returned.
func (q queries) ListSkills(ctx context.Context, f ListFilter) ([]models.Skill, error) {
	query := `SELECT ` + skillColumns + ` FROM skill`
	var args []any
	if f.Viewer != nil {
		query += ` WHERE owner_user_id IS NULL OR owner_user_id = ? OR visibility = ?`
		args = append(args, *f.Viewer, models.VisibilityPublic)
	}
	query += ` ORDER BY name, id`
	if f.Limit > 0 {
		query += fmt.Sprintf(` LIMIT %d`, f.Limit)
	}

	var out []models.Skill
	if err := sqlx.SelectContext(ctx, q.ext, &out, q.rebind(query), args...); err != nil {
		return nil, fmt.Errorf("store: list skills: %w", err)
	}
	return out, nil
}

// UpdateSkillMarkdown replaces the markdown of one skill.
func (q queries) UpdateSkillMarkdown(ctx context.Context, id, markdown string, now time.Time) error {
	res, err := q.ext.ExecContext(ctx,
		q.rebind(`UPDATE skill SET skill_markdown = ?, updated_at = ? WHERE id = ?`),
		markdown, now, id)
	if err != nil {
		return fmt.Errorf("store: update skill markdown: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("store: skill %s: %w", id, apperr.ErrNotFound)
	}
	return nil
}

// SkillOwners returns the owner of each existing skill in ids in a single
// query. Missing ids are absent from the result.
func (q queries) SkillOwners(ctx context.Context, ids []string) ([]SkillOwner, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In(`SELECT id, owner_user_id FROM skill WHERE id IN (?)`, ids)
	if err != nil {
		return nil, fmt.Errorf("store: skill owners: %w", err)
	}
	var out []SkillOwner
	if err := sqlx.SelectContext(ctx, q.ext, &out, q.rebind(query), args...); err != nil {
		return nil, fmt.Errorf("store: skill owners: %w", err)
	}
	return out, nil
}

// SkillNames returns the name of each existing skill in ids in a single query.
func (q queries) SkillNames(ctx context.Context, ids []string) ([]SkillName, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In(`SELECT id, name FROM skill WHERE id IN (?)`, ids)
	if err != nil {
		return nil, fmt.Errorf("store: skill names: %w", err)
	}
	var out []SkillName
	if err := sqlx.SelectContext(ctx, q.ext, &out, q.rebind(query), args...); err != nil {
		return nil, fmt.Errorf("store: skill names: %w", err)
	}
	return out, nil
}

// SkillsBySlug returns every skill with slug across all owners.
func (q queries) SkillsBySlug(ctx context.Context, slug string) ([]models.Skill, error) {
	var out []models.Skill
	err := sqlx.SelectContext(ctx, q.ext, &out, q.rebind(`SELECT `+skillColumns+` FROM skill WHERE slug = ? ORDER BY created_at, id`), slug)
	if err != nil {
		return nil, fmt.Errorf("store: skills by slug: %w", err)
	}
	return out, nil
}

// UpdateSkillContent replaces name, description, markdown and metadata of s.
func (q queries) UpdateSkillContent(ctx context.Context, s *models.Skill) error {
	res, err := sqlx.NamedExecContext(ctx, q.ext, `
		UPDATE skill SET
			name           = :name,
			description    = :description,
			skill_markdown = :skill_markdown,
			metadata       = :metadata,
			updated_at     = :updated_at
		WHERE id = :id
	`, s)
	if err != nil {
		return fmt.Errorf("store: update skill content: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("store: skill %s: %w", s.ID, apperr.ErrNotFound)
	}
	return nil
}
