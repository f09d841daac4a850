// Package render turns stored skill markdown into display text by replacing
// live mention tokens with names, paths or viewer links.
package render

import (
	"context"
	"fmt"
	"strings"

	"github.com/starford/skillvault/internal/mention"
	"github.com/starford/skillvault/internal/store"
)

// Mode selects the output shape of a rendered mention.
type Mode int

const (
	// ModePlain renders backtick-quoted names and paths.
	ModePlain Mode = iota
	// ModeLinked wraps the plain label in a markdown link to the viewer.
	ModeLinked
	// ModeInstructions renders agent-facing sentences.
	ModeInstructions
)

const (
	skillFallback    = "`(unknown skill)`"
	resourceFallback = "`(unknown resource)`"

	unknownSkillName    = "(unknown skill)"
	unknownResourceName = "(unknown resource)"
)

// Lookup batch-fetches the display data for mentioned targets.
type Lookup interface {
	SkillNames(ctx context.Context, ids []string) ([]store.SkillName, error)
	ResourceInfos(ctx context.Context, ids []string) ([]store.ResourceInfo, error)
}

// Options controls one render call.
type Options struct {
	Mode Mode
	// CurrentSkillID shortens resource labels that belong to this skill.
	CurrentSkillID string
}

// Renderer renders mentions using a Lookup.
type Renderer struct {
	lookup       Lookup
	skillsPrefix string
}

// New returns a Renderer. An empty skillsPrefix uses DefaultSkillsPrefix.
func New(lookup Lookup, skillsPrefix string) *Renderer {
	return &Renderer{lookup: lookup, skillsPrefix: normalizePrefix(skillsPrefix)}
}

// SkillsPrefix is the normalized base path used for linked mentions.
func (r *Renderer) SkillsPrefix() string { return r.skillsPrefix }

// targets holds the resolved display data for one document.
type targets struct {
	skills    map[string]string
	resources map[string]store.ResourceInfo
}

// Render replaces every live mention in markdown. Documents without live
// mentions cost no lookups. Dangling targets render as fallback text;
// escaped tokens render literally without their backslash.
func (r *Renderer) Render(ctx context.Context, markdown string, opts Options) (string, error) {
	mentions := mention.Parse(markdown)
	if len(mentions) == 0 {
		return mention.StripEscapes(markdown), nil
	}

	t, err := r.resolve(ctx, mentions)
	if err != nil {
		return "", err
	}

	return mention.Rewrite(markdown, func(m mention.Mention) string {
		if m.Type == mention.TypeSkill {
			return r.skill(t, m.TargetID, opts)
		}
		return r.resource(t, m.TargetID, opts)
	}), nil
}

func (r *Renderer) resolve(ctx context.Context, mentions []mention.Mention) (*targets, error) {
	var skillIDs, resourceIDs []string
	for _, m := range mentions {
		if m.Type == mention.TypeSkill {
			skillIDs = append(skillIDs, m.TargetID)
		} else {
			resourceIDs = append(resourceIDs, m.TargetID)
		}
	}

	t := &targets{
		skills:    make(map[string]string, len(skillIDs)),
		resources: make(map[string]store.ResourceInfo, len(resourceIDs)),
	}
	if len(skillIDs) > 0 {
		rows, err := r.lookup.SkillNames(ctx, skillIDs)
		if err != nil {
			return nil, fmt.Errorf("render: skill names: %w", err)
		}
		for _, row := range rows {
			t.skills[strings.ToLower(row.ID)] = row.Name
		}
	}
	if len(resourceIDs) > 0 {
		rows, err := r.lookup.ResourceInfos(ctx, resourceIDs)
		if err != nil {
			return nil, fmt.Errorf("render: resource infos: %w", err)
		}
		for _, row := range rows {
			t.resources[strings.ToLower(row.ID)] = row
		}
	}
	return t, nil
}

func (r *Renderer) skill(t *targets, id string, opts Options) string {
	name, ok := t.skills[id]
	switch opts.Mode {
	case ModeInstructions:
		if !ok {
			name = unknownSkillName
		}
		return fmt.Sprintf("Fetch the skill %q to get details.", name)
	case ModeLinked:
		if !ok {
			return skillFallback
		}
		return "[`" + name + "`](" + SkillHref(r.skillsPrefix, id) + ")"
	default:
		if !ok {
			return skillFallback
		}
		return "`" + name + "`"
	}
}

func (r *Renderer) resource(t *targets, id string, opts Options) string {
	info, ok := t.resources[id]
	self := ok && opts.CurrentSkillID != "" && strings.EqualFold(info.SkillID, opts.CurrentSkillID)

	switch opts.Mode {
	case ModeInstructions:
		if !ok {
			return fmt.Sprintf("See reference %q.", unknownResourceName)
		}
		if self {
			return fmt.Sprintf("See reference %q.", info.Path)
		}
		return fmt.Sprintf("Fetch the skill %q and get reference %q.", info.SkillName, info.Path)
	case ModeLinked:
		if !ok {
			return resourceFallback
		}
		return "[" + resourceLabel(info, self) + "](" + ResourceHref(r.skillsPrefix, info.SkillID, info.Path, id) + ")"
	default:
		if !ok {
			return resourceFallback
		}
		return resourceLabel(info, self)
	}
}

func resourceLabel(info store.ResourceInfo, self bool) string {
	if self {
		return "`" + info.Path + "`"
	}
	return "`" + info.Path + " for " + info.SkillName + "`"
}
