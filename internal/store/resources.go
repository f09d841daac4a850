package store

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/starford/skillvault/internal/apperr"
	"github.com/starford/skillvault/internal/models"
)

// ResourceOwner is a resource with the owner of its parent skill.
type ResourceOwner struct {
	ID          string  `db:"id"`
	SkillID     string  `db:"skill_id"`
	OwnerUserID *string `db:"owner_user_id"`
}

// ResourceInfo is a resource with the name of its parent skill.
type ResourceInfo struct {
	ID        string `db:"id"`
	SkillID   string `db:"skill_id"`
	Path      string `db:"path"`
	SkillName string `db:"skill_name"`
}

// CreateResources bulk-inserts resources.
func (q queries) CreateResources(ctx context.Context, resources []models.Resource) error {
	if len(resources) == 0 {
		return nil
	}
	_, err := sqlx.NamedExecContext(ctx, q.ext, `
		INSERT INTO skill_resource (id, skill_id, path, kind, content, created_at)
		VALUES (:id, :skill_id, :path, :kind, :content, :created_at)
	`, resources)
	if isUniqueViolation(err) {
		return fmt.Errorf("store: create resources: %w", apperr.ErrAlreadyExists)
	}
	if err != nil {
		return fmt.Errorf("store: create resources: %w", err)
	}
	return nil
}

// ListResources returns the resources of one skill ordered by path.
func (q queries) ListResources(ctx context.Context, skillID string) ([]models.Resource, error) {
	var out []models.Resource
	err := sqlx.SelectContext(ctx, q.ext, &out, q.rebind(`
		SELECT id, skill_id, path, kind, content, created_at
		FROM skill_resource WHERE skill_id = ? ORDER BY path
	`), skillID)
	if err != nil {
		return nil, fmt.Errorf("store: list resources: %w", err)
	}
	return out, nil
}

// ResourceOwners resolves each existing resource in ids to its parent skill
// and owner in a single query.
func (q queries) ResourceOwners(ctx context.Context, ids []string) ([]ResourceOwner, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In(`
		SELECT r.id, r.skill_id, s.owner_user_id
		FROM skill_resource r JOIN skill s ON s.id = r.skill_id
		WHERE r.id IN (?)
	`, ids)
	if err != nil {
		return nil, fmt.Errorf("store: resource owners: %w", err)
	}
	var out []ResourceOwner
	if err := sqlx.SelectContext(ctx, q.ext, &out, q.rebind(query), args...); err != nil {
		return nil, fmt.Errorf("store: resource owners: %w", err)
	}
	return out, nil
}

// ResourceInfos returns path and parent skill name for each existing resource
// in ids in a single query.
func (q queries) ResourceInfos(ctx context.Context, ids []string) ([]ResourceInfo, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In(`
		SELECT r.id, r.skill_id, r.path, s.name AS skill_name
		FROM skill_resource r JOIN skill s ON s.id = r.skill_id
		WHERE r.id IN (?)
	`, ids)
	if err != nil {
		return nil, fmt.Errorf("store: resource infos: %w", err)
	}
	var out []ResourceInfo
	if err := sqlx.SelectContext(ctx, q.ext, &out, q.rebind(query), args...); err != nil {
		return nil, fmt.Errorf("store: resource infos: %w", err)
	}
	return out, nil
}

// UpdateResource replaces path, kind and content of an existing resource.
func (q queries) UpdateResource(ctx context.Context, r models.Resource) error {
	_, err := sqlx.NamedExecContext(ctx, q.ext, `
		UPDATE skill_resource SET path = :path, kind = :kind, content = :content
		WHERE id = :id
	`, r)
	if err != nil {
		return fmt.Errorf("store: update resource: %w", err)
	}
	return nil
}

// DeleteResources removes resources by id. Edges pointing at them cascade.
func (q queries) DeleteResources(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	query, args, err := sqlx.In(`DELETE FROM skill_resource WHERE id IN (?)`, ids)
	if err != nil {
		return fmt.Errorf("store: delete resources: %w", err)
	}
	if _, err := q.ext.ExecContext(ctx, q.rebind(query), args...); err != nil {
		return fmt.Errorf("store: delete resources: %w", err)
	}
	return nil
}
