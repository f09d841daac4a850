package seeding

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/starford/skillvault/internal/apperr"
	"github.com/starford/skillvault/internal/keylock"
	"github.com/starford/skillvault/internal/linkgraph"
	"github.com/starford/skillvault/internal/mention"
	"github.com/starford/skillvault/internal/models"
	"github.com/starford/skillvault/internal/storage"
	"github.com/starford/skillvault/internal/store"
)

// Result counts the outcome of SeedForUser.
type Result struct {
	Created int `json:"created"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

// SyncResult counts the outcome of SyncAll.
type SyncResult struct {
	Templates int `json:"templates"`
	Matched   int `json:"matched"`
	Updated   int `json:"updated"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
}

// Seeder seeds and refreshes default skills.
type Seeder struct {
	db        *store.DB
	links     *linkgraph.Synchronizer
	templates storage.Provider
	logger    *slog.Logger
	locks     *keylock.Locker
	now       func() time.Time
}

// Option configures a Seeder.
type Option func(*Seeder)

// WithLocker makes template refreshes take the same per-skill lock as other
// writers of skill markdown.
func WithLocker(l *keylock.Locker) Option {
	return func(s *Seeder) { s.locks = l }
}

// New returns a Seeder reading templates from the given provider.
func New(db *store.DB, links *linkgraph.Synchronizer, templates storage.Provider, logger *slog.Logger, opts ...Option) *Seeder {
	s := &Seeder{
		db:        db,
		links:     links,
		templates: templates,
		logger:    logger,
		locks:     keylock.New(),
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// SeedForUser creates a private copy of every template the user does not
// have yet. Each template is seeded in its own transaction; a failing
// template is logged and counted and the rest continue.
func (s *Seeder) SeedForUser(ctx context.Context, userID string) (Result, error) {
	var res Result
	tpls, err := LoadTemplates(s.templates)
	if err != nil {
		return res, err
	}

	for _, tpl := range tpls {
		created, err := s.seedOne(ctx, tpl, userID)
		switch {
		case err != nil:
			res.Failed++
			s.logger.Error("seeding: template failed",
				slog.String("template", tpl.Slug),
				slog.String("user_id", userID),
				slog.String("error", err.Error()))
		case created:
			res.Created++
		default:
			res.Skipped++
		}
	}

	s.logger.Info("seeding: done",
		slog.String("user_id", userID),
		slog.Int("created", res.Created),
		slog.Int("skipped", res.Skipped),
		slog.Int("failed", res.Failed))
	return res, nil
}

func (s *Seeder) seedOne(ctx context.Context, tpl Template, userID string) (bool, error) {
	owner := &userID
	_, err := s.db.SkillBySlug(ctx, owner, tpl.Slug)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, apperr.ErrNotFound) {
		return false, err
	}
	if missing := tpl.MissingPlaceholderPaths(); len(missing) > 0 {
		return false, fmt.Errorf("seeding: %s references missing resources %s: %w",
			tpl.Slug, strings.Join(missing, ", "), apperr.ErrUnresolvedPlaceholder)
	}

	now := s.now()
	sk := models.Skill{
		ID:          uuid.NewString(),
		OwnerUserID: owner,
		Visibility:  models.VisibilityPrivate,
		Slug:        tpl.Slug,
		Name:        tpl.Name,
		Description: tpl.Description,
		Markdown:    tpl.Markdown,
		Metadata:    models.Metadata{VersionKey: tpl.Version()},
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err = s.db.InTx(ctx, func(tx *store.Tx) error {
		if err := tx.CreateSkill(ctx, &sk); err != nil {
			return err
		}
		resources := make([]models.Resource, 0, len(tpl.Resources))
		idByPath := make(map[string]string, len(tpl.Resources))
		for _, r := range tpl.Resources {
			row := models.Resource{
				ID:        uuid.NewString(),
				SkillID:   sk.ID,
				Path:      r.Path,
				Kind:      r.Kind,
				Content:   r.Content,
				CreatedAt: now,
			}
			resources = append(resources, row)
			idByPath[mention.NormalizeResourcePath(r.Path)] = row.ID
		}
		if err := tx.CreateResources(ctx, resources); err != nil {
			return err
		}
		return s.finish(ctx, tx, &sk, idByPath, owner)
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

// finish resolves placeholders in sk.Markdown, stores the result and
// rebuilds the skill's auto edges, all inside tx.
func (s *Seeder) finish(ctx context.Context, tx *store.Tx, sk *models.Skill, idByPath map[string]string, actor *string) error {
	resolved, missing := mention.ResolveNewResourceMentions(sk.Markdown, idByPath)
	if len(missing) > 0 {
		return fmt.Errorf("seeding: %s could not resolve %s: %w",
			sk.Slug, strings.Join(missing, ", "), apperr.ErrUnresolvedPlaceholder)
	}
	if resolved != sk.Markdown {
		sk.Markdown = resolved
		if err := tx.UpdateSkillMarkdown(ctx, sk.ID, resolved, s.now()); err != nil {
			return err
		}
	}

	plan, err := s.links.Plan(ctx, tx, linkgraph.Source{SkillID: sk.ID, OwnerUserID: sk.OwnerUserID}, resolved, actor)
	if err != nil {
		return err
	}
	return tx.ReplaceAutoLinks(ctx, sk.ID, plan.Links)
}

// SyncAll brings every previously seeded skill up to date with its template.
// Skills whose stored version matches are skipped.
func (s *Seeder) SyncAll(ctx context.Context) (SyncResult, error) {
	var res SyncResult
	tpls, err := LoadTemplates(s.templates)
	if err != nil {
		return res, err
	}
	res.Templates = len(tpls)

	for _, tpl := range tpls {
		if missing := tpl.MissingPlaceholderPaths(); len(missing) > 0 {
			res.Failed++
			s.logger.Error("seeding: template invalid",
				slog.String("template", tpl.Slug),
				slog.String("missing", strings.Join(missing, ", ")))
			continue
		}
		existing, err := s.db.SkillsBySlug(ctx, tpl.Slug)
		if err != nil {
			return res, err
		}
		version := tpl.Version()
		for _, candidate := range existing {
			if _, seeded := candidate.Metadata[VersionKey].(string); !seeded {
				continue
			}
			res.Matched++
			updated, err := s.syncSkill(ctx, tpl, version, candidate.ID)
			switch {
			case err != nil:
				res.Failed++
				owner := "null"
				if candidate.OwnerUserID != nil {
					owner = *candidate.OwnerUserID
				}
				s.logger.Error("seeding: refresh failed",
					slog.String("template", tpl.Slug),
					slog.String("skill_id", candidate.ID),
					slog.String("user_id", owner),
					slog.String("error", err.Error()))
			case updated:
				res.Updated++
			default:
				res.Skipped++
			}
		}
	}
	return res, nil
}

// syncSkill refreshes one seeded skill under its write lock. The skill is
// re-read after locking so a concurrent edit or refresh is seen. It reports
// false when the skill is gone, no longer seeded or already current.
func (s *Seeder) syncSkill(ctx context.Context, tpl Template, version, id string) (bool, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	sk, err := s.db.GetSkill(ctx, id)
	if errors.Is(err, apperr.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if stored, seeded := sk.Metadata[VersionKey].(string); !seeded || stored == version {
		return false, nil
	}
	if err := s.refresh(ctx, tpl, version, sk); err != nil {
		return false, err
	}
	return true, nil
}

func (s *Seeder) refresh(ctx context.Context, tpl Template, version string, sk *models.Skill) error {
	return s.db.InTx(ctx, func(tx *store.Tx) error {
		current, err := tx.ListResources(ctx, sk.ID)
		if err != nil {
			return err
		}
		currentByPath := make(map[string]models.Resource, len(current))
		for _, r := range current {
			currentByPath[mention.NormalizeResourcePath(r.Path)] = r
		}

		wanted := make(map[string]Resource, len(tpl.Resources))
		for _, r := range tpl.Resources {
			p := mention.NormalizeResourcePath(r.Path)
			if _, dup := wanted[p]; dup {
				return fmt.Errorf("seeding: %s has duplicate resource path %q", tpl.Slug, p)
			}
			wanted[p] = r
		}

		var stale []string
		for p, r := range currentByPath {
			if _, keep := wanted[p]; !keep {
				stale = append(stale, r.ID)
			}
		}
		if err := tx.DeleteResources(ctx, stale); err != nil {
			return err
		}

		now := s.now()
		idByPath := make(map[string]string, len(wanted))
		var fresh []models.Resource
		for p, r := range wanted {
			if cur, ok := currentByPath[p]; ok {
				cur.Path, cur.Kind, cur.Content = r.Path, r.Kind, r.Content
				if err := tx.UpdateResource(ctx, cur); err != nil {
					return err
				}
				idByPath[p] = cur.ID
				continue
			}
			row := models.Resource{ID: uuid.NewString(), SkillID: sk.ID, Path: r.Path, Kind: r.Kind, Content: r.Content, CreatedAt: now}
			fresh = append(fresh, row)
			idByPath[p] = row.ID
		}
		if err := tx.CreateResources(ctx, fresh); err != nil {
			return err
		}

		resolved, missing := mention.ResolveNewResourceMentions(tpl.Markdown, idByPath)
		if len(missing) > 0 {
			return fmt.Errorf("seeding: %s could not resolve %s: %w",
				tpl.Slug, strings.Join(missing, ", "), apperr.ErrUnresolvedPlaceholder)
		}

		meta := models.Metadata{}
		for k, v := range sk.Metadata {
			meta[k] = v
		}
		meta[VersionKey] = version
		sk.Name, sk.Description, sk.Markdown, sk.Metadata, sk.UpdatedAt = tpl.Name, tpl.Description, resolved, meta, now
		if err := tx.UpdateSkillContent(ctx, sk); err != nil {
			return err
		}

		plan, err := s.links.Plan(ctx, tx, linkgraph.Source{SkillID: sk.ID, OwnerUserID: sk.OwnerUserID}, resolved, sk.OwnerUserID)
		if err != nil {
			return err
		}
		return tx.ReplaceAutoLinks(ctx, sk.ID, plan.Links)
	})
}
