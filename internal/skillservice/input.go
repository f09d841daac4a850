package skillservice

import (
	"fmt"
	"regexp"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/skillvault/internal/apperr"
	"github.com/starford/skillvault/internal/mention"
	"github.com/starford/skillvault/internal/models"
)

var slugRe = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

// ResourceInput is a resource supplied with a new skill.
type ResourceInput struct {
	Path    string `json:"path"`
	Kind    string `json:"kind"`
	Content string `json:"content"`
}

// Validate checks a resource input.
func (r ResourceInput) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Path, validation.Required, validation.Length(1, 512),
			validation.By(func(any) error {
				p := mention.NormalizeResourcePath(r.Path)
				if p == "" || strings.Contains(p, "..") {
					return fmt.Errorf("must be a relative path inside the skill")
				}
				return nil
			})),
		validation.Field(&r.Kind, validation.In(
			models.ResourceKindReference, models.ResourceKindScript,
			models.ResourceKindAsset, models.ResourceKindOther)),
	)
}

// CreateInput is the payload for CreateSkill.
type CreateInput struct {
	Slug        string          `json:"slug"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Visibility  string          `json:"visibility"`
	Markdown    string          `json:"skillMarkdown"`
	Resources   []ResourceInput `json:"resources"`
}

// Validate checks the create payload.
func (in CreateInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Name, validation.Required, validation.Length(1, 200)),
		validation.Field(&in.Slug, validation.Length(0, 200), validation.Match(slugRe)),
		validation.Field(&in.Visibility, validation.In(models.VisibilityPublic, models.VisibilityPrivate)),
		validation.Field(&in.Resources, validation.By(uniqueResourcePaths)),
	)
}

// uniqueResourcePaths rejects two resources that normalize to the same path.
func uniqueResourcePaths(value any) error {
	resources, _ := value.([]ResourceInput)
	seen := make(map[string]struct{}, len(resources))
	for _, r := range resources {
		p := mention.NormalizeResourcePath(r.Path)
		if _, dup := seen[p]; dup {
			return fmt.Errorf("duplicate path %q", p)
		}
		seen[p] = struct{}{}
	}
	return nil
}

// InvalidMentionsError lists mention tokens whose target is not a UUID.
type InvalidMentionsError struct {
	Tokens []mention.InvalidToken
}

func (e *InvalidMentionsError) Error() string {
	parts := make([]string, len(e.Tokens))
	for i, t := range e.Tokens {
		parts[i] = "[[" + string(t.Type) + ":" + t.Target + "]]"
	}
	return "invalid mention tokens: " + strings.Join(parts, ", ")
}

func (e *InvalidMentionsError) Unwrap() error { return apperr.ErrInvalidMention }

// checkMentions rejects markdown that still carries invalid tokens.
func checkMentions(markdown string) error {
	if bad := mention.FindInvalid(markdown); len(bad) > 0 {
		return &InvalidMentionsError{Tokens: bad}
	}
	return nil
}

func invalidInput(err error) error {
	return fmt.Errorf("%w: %s", apperr.ErrInvalidInput, err.Error())
}
