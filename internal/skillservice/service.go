// Package skillservice is the calling layer around the mention core: it
// validates skill writes, applies them together with the derived link graph
// in one transaction, and renders skills for readers.
//
// Writes to the same skill are serialized here, which is the one-write-per-
// document guarantee the synchronizer relies on.
package skillservice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gosimple/slug"

	"github.com/starford/skillvault/internal/apperr"
	"github.com/starford/skillvault/internal/checksum"
	"github.com/starford/skillvault/internal/keylock"
	"github.com/starford/skillvault/internal/linkgraph"
	"github.com/starford/skillvault/internal/mention"
	"github.com/starford/skillvault/internal/models"
	"github.com/starford/skillvault/internal/render"
	"github.com/starford/skillvault/internal/store"
)

// Event kinds announced through the Publisher.
const (
	EventSkillCreated = "skill.created"
	EventSkillUpdated = "skill.updated"
)

// Publisher receives change notifications.
type Publisher interface {
	PublishSkillEvent(kind, skillID string)
	PublishLinkSync(skillID string, written int)
}

type nopPublisher struct{}

func (nopPublisher) PublishSkillEvent(string, string) {}
func (nopPublisher) PublishLinkSync(string, int)      {}

// SkillDetail is the full representation of a skill.
type SkillDetail struct {
	models.Skill
	RenderedMarkdown string            `json:"renderedMarkdown"`
	Checksum         string            `json:"checksum"`
	Resources        []models.Resource `json:"resources"`
}

// Service coordinates store, synchronizer and renderer.
type Service struct {
	db       *store.DB
	links    *linkgraph.Synchronizer
	renderer *render.Renderer
	events   Publisher
	logger   *slog.Logger
	locks    *keylock.Locker
	now      func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithPublisher sets the change notification sink.
func WithPublisher(p Publisher) Option {
	return func(s *Service) { s.events = p }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithLocker shares the per-skill write lock with other writers, such as the
// template seeder.
func WithLocker(l *keylock.Locker) Option {
	return func(s *Service) { s.locks = l }
}

// New creates a skill service.
func New(db *store.DB, links *linkgraph.Synchronizer, renderer *render.Renderer, opts ...Option) *Service {
	s := &Service{
		db:       db,
		links:    links,
		renderer: renderer,
		events:   nopPublisher{},
		logger:   slog.Default(),
		locks:    keylock.New(),
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Renderer returns the renderer used for reads.
func (s *Service) Renderer() *render.Renderer { return s.renderer }

// CreateSkill creates a skill owned by actor with its resources and auto
// edges in one transaction. Placeholders of the form [[resource:new:path]]
// resolve against the supplied resources.
func (s *Service) CreateSkill(ctx context.Context, actor string, in CreateInput) (*SkillDetail, error) {
	if err := in.Validate(); err != nil {
		return nil, invalidInput(err)
	}
	if in.Slug == "" {
		in.Slug = slug.Make(in.Name)
	}
	if in.Visibility == "" {
		in.Visibility = models.VisibilityPrivate
	}

	now := s.now()
	owner := &actor
	sk := models.Skill{
		ID:          uuid.NewString(),
		OwnerUserID: owner,
		Visibility:  in.Visibility,
		Slug:        in.Slug,
		Name:        in.Name,
		Description: in.Description,
		Metadata:    models.Metadata{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	resources := make([]models.Resource, 0, len(in.Resources))
	idByPath := make(map[string]string, len(in.Resources))
	for _, r := range in.Resources {
		kind := r.Kind
		if kind == "" {
			kind = models.ResourceKindOther
		}
		row := models.Resource{
			ID:        uuid.NewString(),
			SkillID:   sk.ID,
			Path:      mention.NormalizeResourcePath(r.Path),
			Kind:      kind,
			Content:   r.Content,
			CreatedAt: now,
		}
		resources = append(resources, row)
		idByPath[row.Path] = row.ID
	}

	md, err := resolvePlaceholders(in.Markdown, idByPath)
	if err != nil {
		return nil, err
	}
	sk.Markdown = md

	var plan *linkgraph.Plan
	err = s.db.InTx(ctx, func(tx *store.Tx) error {
		if err := tx.CreateSkill(ctx, &sk); err != nil {
			return err
		}
		if err := tx.CreateResources(ctx, resources); err != nil {
			return err
		}
		var err error
		plan, err = s.links.Plan(ctx, tx, linkgraph.Source{SkillID: sk.ID, OwnerUserID: owner}, sk.Markdown, owner)
		if err != nil {
			return err
		}
		return tx.ReplaceAutoLinks(ctx, sk.ID, plan.Links)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("skill created", slog.String("skill_id", sk.ID), slog.String("user_id", actor), slog.Int("links", len(plan.Links)))
	s.events.PublishSkillEvent(EventSkillCreated, sk.ID)
	s.events.PublishLinkSync(sk.ID, len(plan.Links))
	return s.detail(ctx, &sk, resources, render.Options{CurrentSkillID: sk.ID})
}

// UpdateSkillMarkdown replaces the markdown of a skill owned by actor and
// rebuilds its auto edges in the same transaction. A non-empty ifMatch must
// equal the checksum of the current markdown.
func (s *Service) UpdateSkillMarkdown(ctx context.Context, actor, id, markdown, ifMatch string) (*SkillDetail, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	sk, err := s.db.GetSkill(ctx, id)
	if err != nil {
		return nil, err
	}
	if sk.OwnerUserID == nil || *sk.OwnerUserID != actor {
		return nil, fmt.Errorf("skill %s: %w", id, apperr.ErrForbidden)
	}
	if ifMatch != "" && ifMatch != checksum.Sum([]byte(sk.Markdown)) {
		return nil, fmt.Errorf("skill %s changed: %w", id, apperr.ErrConflict)
	}

	resources, err := s.db.ListResources(ctx, id)
	if err != nil {
		return nil, err
	}
	idByPath := make(map[string]string, len(resources))
	for _, r := range resources {
		idByPath[mention.NormalizeResourcePath(r.Path)] = r.ID
	}
	if markdown, err = resolvePlaceholders(markdown, idByPath); err != nil {
		return nil, err
	}

	now := s.now()
	var plan *linkgraph.Plan
	err = s.db.InTx(ctx, func(tx *store.Tx) error {
		if err := tx.UpdateSkillMarkdown(ctx, id, markdown, now); err != nil {
			return err
		}
		var err error
		plan, err = s.links.Plan(ctx, tx, linkgraph.Source{SkillID: id, OwnerUserID: sk.OwnerUserID}, markdown, &actor)
		if err != nil {
			return err
		}
		return tx.ReplaceAutoLinks(ctx, id, plan.Links)
	})
	if err != nil {
		return nil, err
	}

	sk.Markdown, sk.UpdatedAt = markdown, now
	s.logger.Info("skill updated", slog.String("skill_id", id), slog.String("user_id", actor), slog.Int("links", len(plan.Links)))
	s.events.PublishSkillEvent(EventSkillUpdated, id)
	s.events.PublishLinkSync(id, len(plan.Links))
	return s.detail(ctx, sk, resources, render.Options{CurrentSkillID: id})
}

// GetSkill returns a skill visible to viewer with its markdown rendered.
// Private skills of other owners are reported as not found. A nil viewer
// sees every skill.
func (s *Service) GetSkill(ctx context.Context, viewer *string, id string, opts render.Options) (*SkillDetail, error) {
	sk, err := s.visibleSkill(ctx, viewer, id)
	if err != nil {
		return nil, err
	}
	resources, err := s.db.ListResources(ctx, id)
	if err != nil {
		return nil, err
	}
	if opts.CurrentSkillID == "" {
		opts.CurrentSkillID = id
	}
	return s.detail(ctx, sk, resources, opts)
}

// ListSkills returns skills visible to viewer.
func (s *Service) ListSkills(ctx context.Context, viewer *string, limit int) ([]models.Skill, error) {
	items, err := s.db.ListSkills(ctx, store.ListFilter{Viewer: viewer, Limit: limit})
	if err != nil {
		return nil, err
	}
	return nonNilSlice(items), nil
}

// Links returns the outgoing and incoming edges of a visible skill.
func (s *Service) Links(ctx context.Context, viewer *string, id string) (outgoing, incoming []models.Link, err error) {
	if _, err := s.visibleSkill(ctx, viewer, id); err != nil {
		return nil, nil, err
	}
	if outgoing, err = s.db.LinksFromSkill(ctx, id); err != nil {
		return nil, nil, err
	}
	if incoming, err = s.db.LinksToSkill(ctx, id); err != nil {
		return nil, nil, err
	}
	return nonNilSlice(outgoing), nonNilSlice(incoming), nil
}

// Preview renders a visible skill to HTML with linked mentions.
func (s *Service) Preview(ctx context.Context, viewer *string, id string) (string, error) {
	sk, err := s.visibleSkill(ctx, viewer, id)
	if err != nil {
		return "", err
	}
	return s.renderer.Preview(ctx, sk.Markdown, id)
}

func (s *Service) visibleSkill(ctx context.Context, viewer *string, id string) (*models.Skill, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("skill %s: %w", id, apperr.ErrNotFound)
	}
	sk, err := s.db.GetSkill(ctx, id)
	if err != nil {
		return nil, err
	}
	if viewer != nil && sk.OwnerUserID != nil && *sk.OwnerUserID != *viewer && sk.Visibility != models.VisibilityPublic {
		return nil, fmt.Errorf("skill %s: %w", id, apperr.ErrNotFound)
	}
	return sk, nil
}

func (s *Service) detail(ctx context.Context, sk *models.Skill, resources []models.Resource, opts render.Options) (*SkillDetail, error) {
	rendered, err := s.renderer.Render(ctx, sk.Markdown, opts)
	if err != nil {
		return nil, err
	}
	return &SkillDetail{
		Skill:            *sk,
		RenderedMarkdown: rendered,
		Checksum:         checksum.Sum([]byte(sk.Markdown)),
		Resources:        nonNilSlice(resources),
	}, nil
}

// resolvePlaceholders swaps [[resource:new:path]] tokens for resource ids and
// rejects the result if any placeholder or invalid token remains.
func resolvePlaceholders(markdown string, idByPath map[string]string) (string, error) {
	resolved, missing := mention.ResolveNewResourceMentions(markdown, idByPath)
	if len(missing) > 0 {
		return "", fmt.Errorf("no resource for %s: %w", strings.Join(missing, ", "), apperr.ErrUnresolvedPlaceholder)
	}
	if err := checkMentions(resolved); err != nil {
		return "", err
	}
	return resolved, nil
}

// MentionTarget describes where a "type:id" mention points.
type MentionTarget struct {
	Type      mention.Type `json:"type"`
	TargetID  string       `json:"targetId"`
	SkillID   string       `json:"skillId"`
	SkillName string       `json:"skillName"`
	Path      string       `json:"path,omitempty"`
	Href      string       `json:"href"`
}

// ResolveMention resolves a viewer query value such as "skill:<id>". Targets
// that do not exist or are not visible to viewer are reported as not found.
func (s *Service) ResolveMention(ctx context.Context, viewer *string, query string) (*MentionTarget, error) {
	m, ok := mention.ParseQuery(query)
	if !ok {
		return nil, fmt.Errorf("mention %q: %w", query, apperr.ErrInvalidMention)
	}
	prefix := s.renderer.SkillsPrefix()

	if m.Type == mention.TypeSkill {
		sk, err := s.visibleSkill(ctx, viewer, m.TargetID)
		if err != nil {
			return nil, err
		}
		return &MentionTarget{
			Type:      m.Type,
			TargetID:  m.TargetID,
			SkillID:   sk.ID,
			SkillName: sk.Name,
			Href:      render.SkillHref(prefix, sk.ID),
		}, nil
	}

	infos, err := s.db.ResourceInfos(ctx, []string{m.TargetID})
	if err != nil {
		return nil, err
	}
	if len(infos) == 0 {
		return nil, fmt.Errorf("resource %s: %w", m.TargetID, apperr.ErrNotFound)
	}
	info := infos[0]
	if _, err := s.visibleSkill(ctx, viewer, info.SkillID); err != nil {
		return nil, err
	}
	return &MentionTarget{
		Type:      m.Type,
		TargetID:  m.TargetID,
		SkillID:   info.SkillID,
		SkillName: info.SkillName,
		Path:      info.Path,
		Href:      render.ResourceHref(prefix, info.SkillID, info.Path, info.ID),
	}, nil
}

// Validation is the outcome of ValidateMarkdown.
type Validation struct {
	Valid        bool                   `json:"valid"`
	Mentions     []mention.Mention      `json:"mentions"`
	Invalid      []mention.InvalidToken `json:"invalid"`
	Placeholders []string               `json:"placeholders"`
}

// ValidateMarkdown reports the live mentions, invalid tokens and pending
// placeholders of markdown without touching storage.
func (s *Service) ValidateMarkdown(markdown string) Validation {
	v := Validation{
		Mentions:     nonNilSlice(mention.Parse(markdown)),
		Invalid:      nonNilSlice(mention.FindInvalid(markdown)),
		Placeholders: nonNilSlice(mention.CollectNewResourcePaths(markdown)),
	}
	v.Valid = len(v.Invalid) == 0 && len(v.Placeholders) == 0
	return v
}

// RelinkReport summarises RelinkAll.
type RelinkReport struct {
	Skills  int `json:"skills"`
	Links   int `json:"links"`
	Unknown int `json:"unknown"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

// RelinkAll rebuilds the auto edges of every skill as its owner. With dryRun
// set, edges are computed but nothing is written. Ownership failures are
// counted and do not stop the run.
func (s *Service) RelinkAll(ctx context.Context, dryRun bool) (RelinkReport, error) {
	var rep RelinkReport
	skills, err := s.db.ListSkills(ctx, store.ListFilter{})
	if err != nil {
		return rep, err
	}

	for _, sk := range skills {
		res, found, syncErr := s.relinkOne(ctx, sk.ID, dryRun)
		if !found && syncErr == nil {
			continue
		}
		rep.Skills++
		if syncErr != nil {
			if !errors.Is(syncErr, apperr.ErrForbidden) {
				return rep, syncErr
			}
			rep.Failed++
			s.logger.Warn("relink: ownership violation", slog.String("skill_id", sk.ID), slog.String("error", syncErr.Error()))
			continue
		}
		rep.Links += res.Written
		rep.Unknown += len(res.Unknown)
		rep.Skipped += len(res.Skipped)
		if !dryRun {
			s.events.PublishLinkSync(sk.ID, res.Written)
		}
	}

	s.logger.Info("relink: done",
		slog.Bool("dry_run", dryRun),
		slog.Int("skills", rep.Skills),
		slog.Int("links", rep.Links),
		slog.Int("failed", rep.Failed))
	return rep, nil
}

// relinkOne re-reads the skill under its write lock so edges follow the
// markdown stored now, not the listing RelinkAll started from. found is false
// when the skill was deleted in the meantime.
func (s *Service) relinkOne(ctx context.Context, id string, dryRun bool) (linkgraph.Result, bool, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	sk, err := s.db.GetSkill(ctx, id)
	if errors.Is(err, apperr.ErrNotFound) {
		return linkgraph.Result{}, false, nil
	}
	if err != nil {
		return linkgraph.Result{}, true, err
	}
	if !dryRun {
		res, err := s.links.Sync(ctx, sk.ID, sk.Markdown, sk.OwnerUserID)
		return res, true, err
	}
	plan, err := s.links.Plan(ctx, s.db, linkgraph.Source{SkillID: sk.ID, OwnerUserID: sk.OwnerUserID}, sk.Markdown, sk.OwnerUserID)
	if err != nil {
		return linkgraph.Result{}, true, err
	}
	return plan.Result(), true, nil
}

func nonNilSlice[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
