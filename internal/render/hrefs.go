package render

import (
	"net/url"
	"strings"

	"github.com/starford/skillvault/internal/mention"
)

// DefaultSkillsPrefix is the viewer route linked-mode hrefs point at.
const DefaultSkillsPrefix = "/vault/skills"

func normalizePrefix(prefix string) string {
	p := strings.TrimSpace(prefix)
	if p == "" {
		return DefaultSkillsPrefix
	}
	return strings.TrimSuffix(p, "/")
}

// MentionQuery returns the "?mention=type%3Aid" suffix carried by viewer links.
func MentionQuery(t mention.Type, targetID string) string {
	return "?" + url.Values{"mention": {mention.FormatQuery(t, targetID)}}.Encode()
}

// SkillHref builds the viewer URL for a skill mention.
func SkillHref(prefix, skillID string) string {
	id := strings.ToLower(skillID)
	return normalizePrefix(prefix) + "/" + url.PathEscape(id) + MentionQuery(mention.TypeSkill, id)
}

// ResourceHref builds the viewer URL for a resource mention. Each path
// segment is escaped separately and empty segments are dropped.
func ResourceHref(prefix, skillID, resourcePath, resourceID string) string {
	var parts []string
	for _, seg := range strings.Split(resourcePath, "/") {
		if seg != "" {
			parts = append(parts, url.PathEscape(seg))
		}
	}
	return normalizePrefix(prefix) + "/" + url.PathEscape(strings.ToLower(skillID)) +
		"/resources/" + strings.Join(parts, "/") +
		MentionQuery(mention.TypeResource, resourceID)
}
