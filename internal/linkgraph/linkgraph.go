// Package linkgraph keeps a skill's auto-derived graph edges in step with the
// mentions in its markdown.
//
// Each sync deletes every auto edge of the source and re-inserts one edge per
// known, same-owner mention inside a single transaction. Manual edges are
// never read or written here. Callers must admit at most one concurrent sync
// per source skill.
package linkgraph

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/starford/skillvault/internal/apperr"
	"github.com/starford/skillvault/internal/mention"
	"github.com/starford/skillvault/internal/models"
	"github.com/starford/skillvault/internal/store"
)

// Policy decides what happens to a known mention whose target has a
// different owner than the source.
type Policy string

const (
	// PolicyAbort fails the whole sync on the first cross-owner mention.
	PolicyAbort Policy = "abort"
	// PolicySkip drops cross-owner mentions and writes the rest.
	PolicySkip Policy = "skip"
)

// Resolver batch-resolves mention targets to their owners.
type Resolver interface {
	SkillOwners(ctx context.Context, ids []string) ([]store.SkillOwner, error)
	ResourceOwners(ctx context.Context, ids []string) ([]store.ResourceOwner, error)
}

// Store is the persistence Sync needs.
type Store interface {
	Resolver
	ReplaceAutoLinks(ctx context.Context, sourceSkillID string, links []models.Link) error
}

// Source identifies the skill whose markdown is being synced.
type Source struct {
	SkillID     string
	OwnerUserID *string
}

// Plan is the edge set computed for one source before it is written.
type Plan struct {
	Source  Source
	Links   []models.Link
	Unknown []mention.Mention
	Skipped []mention.Mention
}

// Result summarises one sync call.
type Result struct {
	Written int
	Unknown []mention.Mention
	Skipped []mention.Mention
}

// OwnershipError reports a mention whose target belongs to another owner.
type OwnershipError struct {
	Mention     mention.Mention
	SourceOwner *string
	TargetOwner *string
}

func (e *OwnershipError) Error() string {
	return fmt.Sprintf("linkgraph: mention %s targets a different owner than its source", e.Mention.Key())
}

func (e *OwnershipError) Unwrap() error { return apperr.ErrForbidden }

// Synchronizer rebuilds auto edges from markdown.
type Synchronizer struct {
	store  Store
	policy Policy
	logger *slog.Logger
	now    func() time.Time
}

// Option configures a Synchronizer.
type Option func(*Synchronizer)

// WithPolicy sets the ownership policy. The default is PolicyAbort.
func WithPolicy(p Policy) Option {
	return func(s *Synchronizer) { s.policy = p }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Synchronizer) { s.logger = l }
}

// WithClock overrides the timestamp source for created edges.
func WithClock(now func() time.Time) Option {
	return func(s *Synchronizer) { s.now = now }
}

// New returns a Synchronizer writing to st.
func New(st Store, opts ...Option) *Synchronizer {
	s := &Synchronizer{
		store:  st,
		policy: PolicyAbort,
		logger: slog.Default(),
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Policy returns the configured ownership policy.
func (s *Synchronizer) Policy() Policy { return s.policy }

// Sync rebuilds the auto edges of sourceSkillID from markdown. A missing
// source is a silent no-op. Under PolicyAbort a cross-owner mention returns
// an *OwnershipError and leaves existing edges untouched.
func (s *Synchronizer) Sync(ctx context.Context, sourceSkillID, markdown string, actor *string) (Result, error) {
	owners, err := s.store.SkillOwners(ctx, []string{sourceSkillID})
	if err != nil {
		return Result{}, fmt.Errorf("linkgraph: source owner: %w", err)
	}
	if len(owners) == 0 {
		s.logger.Debug("link sync skipped, source missing", slog.String("skill_id", sourceSkillID))
		return Result{}, nil
	}

	plan, err := s.Plan(ctx, s.store, Source{SkillID: sourceSkillID, OwnerUserID: owners[0].OwnerUserID}, markdown, actor)
	if err != nil {
		return Result{}, err
	}
	if err := s.store.ReplaceAutoLinks(ctx, sourceSkillID, plan.Links); err != nil {
		return Result{}, fmt.Errorf("linkgraph: replace links: %w", err)
	}
	return plan.Result(), nil
}

// Plan resolves the mentions in markdown through r and builds the auto edge
// set for src without writing it. Unknown targets are dropped. Resolution
// costs at most one skill lookup and one resource lookup.
func (s *Synchronizer) Plan(ctx context.Context, r Resolver, src Source, markdown string, actor *string) (*Plan, error) {
	mentions := mention.Parse(markdown)

	var skillIDs, resourceIDs []string
	for _, m := range mentions {
		switch m.Type {
		case mention.TypeSkill:
			skillIDs = append(skillIDs, m.TargetID)
		case mention.TypeResource:
			resourceIDs = append(resourceIDs, m.TargetID)
		}
	}

	skillOwners := make(map[string]*string, len(skillIDs))
	if len(skillIDs) > 0 {
		rows, err := r.SkillOwners(ctx, skillIDs)
		if err != nil {
			return nil, fmt.Errorf("linkgraph: resolve skills: %w", err)
		}
		for _, row := range rows {
			skillOwners[row.ID] = row.OwnerUserID
		}
	}
	resourceOwners := make(map[string]*string, len(resourceIDs))
	if len(resourceIDs) > 0 {
		rows, err := r.ResourceOwners(ctx, resourceIDs)
		if err != nil {
			return nil, fmt.Errorf("linkgraph: resolve resources: %w", err)
		}
		for _, row := range rows {
			resourceOwners[row.ID] = row.OwnerUserID
		}
	}

	plan := &Plan{Source: src}
	now := s.now()
	for _, m := range mentions {
		owners := skillOwners
		if m.Type == mention.TypeResource {
			owners = resourceOwners
		}
		owner, known := owners[m.TargetID]
		if !known {
			plan.Unknown = append(plan.Unknown, m)
			continue
		}
		if !models.SameOwner(owner, src.OwnerUserID) {
			if s.policy != PolicySkip {
				return nil, &OwnershipError{Mention: m, SourceOwner: src.OwnerUserID, TargetOwner: owner}
			}
			plan.Skipped = append(plan.Skipped, m)
			continue
		}
		plan.Links = append(plan.Links, autoLink(src.SkillID, m, actor, now))
	}

	s.logger.Debug("link plan built",
		slog.String("skill_id", src.SkillID),
		slog.Int("written", len(plan.Links)),
		slog.Int("unknown", len(plan.Unknown)),
		slog.Int("skipped", len(plan.Skipped)),
	)
	return plan, nil
}

// Result reports the outcome of writing the plan.
func (p *Plan) Result() Result {
	return Result{Written: len(p.Links), Unknown: p.Unknown, Skipped: p.Skipped}
}

func autoLink(sourceSkillID string, m mention.Mention, actor *string, now time.Time) models.Link {
	target := m.TargetID
	l := models.Link{
		ID:              uuid.NewString(),
		SourceSkillID:   &sourceSkillID,
		Kind:            models.LinkKindMention,
		Metadata:        models.Metadata{models.MetadataOrigin: models.OriginMarkdownAuto},
		CreatedByUserID: actor,
		CreatedAt:       now,
	}
	if m.Type == mention.TypeResource {
		l.TargetResourceID = &target
	} else {
		l.TargetSkillID = &target
	}
	return l
}
