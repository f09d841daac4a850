package store

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/starford/skillvault/internal/models"
)

const linkColumns = `id, source_skill_id, source_resource_id, target_skill_id, target_resource_id, kind, metadata, created_by_user_id, created_at`

// InsertLinks bulk-inserts edges.
func (q queries) InsertLinks(ctx context.Context, links []models.Link) error {
	if len(links) == 0 {
		return nil
	}
	for _, l := range links {
		if err := l.Validate(); err != nil {
			return fmt.Errorf("store: insert links: %w", err)
		}
	}
	_, err := sqlx.NamedExecContext(ctx, q.ext, `
		INSERT INTO skill_link (`+linkColumns+`)
		VALUES (:id, :source_skill_id, :source_resource_id, :target_skill_id, :target_resource_id, :kind, :metadata, :created_by_user_id, :created_at)
	`, links)
	if err != nil {
		return fmt.Errorf("store: insert links: %w", err)
	}
	return nil
}

// DeleteAutoLinks removes every markdown-derived edge whose source is the
// skill. Manual edges are kept.
func (q queries) DeleteAutoLinks(ctx context.Context, sourceSkillID string) error {
	_, err := q.ext.ExecContext(ctx, q.rebind(`
		DELETE FROM skill_link
		WHERE source_skill_id = ? AND `+q.dialect.originExpr+` = ?
	`), sourceSkillID, models.OriginMarkdownAuto)
	if err != nil {
		return fmt.Errorf("store: delete auto links: %w", err)
	}
	return nil
}

// LinksFromSkill returns every outgoing edge of the skill, oldest first.
func (q queries) LinksFromSkill(ctx context.Context, sourceSkillID string) ([]models.Link, error) {
	var out []models.Link
	err := sqlx.SelectContext(ctx, q.ext, &out, q.rebind(`
		SELECT `+linkColumns+` FROM skill_link
		WHERE source_skill_id = ? ORDER BY created_at, id
	`), sourceSkillID)
	if err != nil {
		return nil, fmt.Errorf("store: links from skill: %w", err)
	}
	return out, nil
}

// LinksToSkill returns edges pointing at the skill or at any of its resources.
func (q queries) LinksToSkill(ctx context.Context, skillID string) ([]models.Link, error) {
	var out []models.Link
	err := sqlx.SelectContext(ctx, q.ext, &out, q.rebind(`
		SELECT `+linkColumns+` FROM skill_link
		WHERE target_skill_id = ?
		   OR target_resource_id IN (SELECT id FROM skill_resource WHERE skill_id = ?)
		ORDER BY created_at, id
	`), skillID, skillID)
	if err != nil {
		return nil, fmt.Errorf("store: links to skill: %w", err)
	}
	return out, nil
}

func (q queries) replaceAutoLinks(ctx context.Context, sourceSkillID string, links []models.Link) error {
	if err := q.DeleteAutoLinks(ctx, sourceSkillID); err != nil {
		return err
	}
	return q.InsertLinks(ctx, links)
}

// ReplaceAutoLinks deletes the skill's auto edges and inserts links within the
// current transaction.
func (tx *Tx) ReplaceAutoLinks(ctx context.Context, sourceSkillID string, links []models.Link) error {
	return tx.replaceAutoLinks(ctx, sourceSkillID, links)
}

// ReplaceAutoLinks deletes the skill's auto edges and inserts links in one
// transaction. Readers never observe a partial edge set.
func (db *DB) ReplaceAutoLinks(ctx context.Context, sourceSkillID string, links []models.Link) error {
	return db.InTx(ctx, func(tx *Tx) error {
		return tx.ReplaceAutoLinks(ctx, sourceSkillID, links)
	})
}
