package mention

import (
	"regexp"
	"strings"
)

// placeholderRe matches seeding placeholders such as
// [[resource:new:references/guide.md]]. Only resources can be new; a
// "skill:new:" token is an ordinary invalid mention.
var placeholderRe = regexp.MustCompile(`(?i)\[\[resource:new:([^\[\]\n]+)\]\]`)

// NormalizeResourcePath canonicalises a resource path written in a template:
// surrounding space, a leading "./" and leading slashes are dropped,
// backslashes become slashes, and any "#fragment" or "?query" is removed.
func NormalizeResourcePath(path string) string {
	p := strings.TrimSpace(path)
	p = strings.TrimPrefix(p, "./")
	p = strings.ReplaceAll(p, `\`, "/")
	if i := strings.IndexByte(p, '#'); i >= 0 {
		p = p[:i]
	}
	if i := strings.IndexByte(p, '?'); i >= 0 {
		p = p[:i]
	}
	return strings.TrimLeft(p, "/")
}

// CollectNewResourcePaths returns the distinct normalised paths referenced by
// placeholders, in document order.
func CollectNewResourcePaths(markdown string) []string {
	var paths []string
	seen := make(map[string]struct{})
	eachPlaceholder(markdown, func(path string) {
		if _, ok := seen[path]; ok {
			return
		}
		seen[path] = struct{}{}
		paths = append(paths, path)
	})
	return paths
}

// ResolveNewResourceMentions replaces each placeholder with a concrete
// [[resource:<id>]] token using idByPath (keyed by normalised path). Paths
// with no id are left in place and returned in missing.
func ResolveNewResourceMentions(markdown string, idByPath map[string]string) (resolved string, missing []string) {
	if !strings.Contains(markdown, "[[") {
		return markdown, nil
	}
	seenMissing := make(map[string]struct{})
	resolved = TransformProse(markdown, func(text string) string {
		var b strings.Builder
		last := 0
		for _, p := range placeholdersIn(text) {
			b.WriteString(text[last:p.start])
			if id, ok := idByPath[p.path]; ok && id != "" {
				b.WriteString("[[resource:" + strings.ToLower(id) + "]]")
			} else {
				b.WriteString(text[p.start:p.end])
				if _, dup := seenMissing[p.path]; !dup {
					seenMissing[p.path] = struct{}{}
					missing = append(missing, p.path)
				}
			}
			last = p.end
		}
		b.WriteString(text[last:])
		return b.String()
	})
	return resolved, missing
}

type placeholder struct {
	start, end int
	path       string
}

func placeholdersIn(text string) []placeholder {
	var out []placeholder
	for _, m := range placeholderRe.FindAllStringSubmatchIndex(text, -1) {
		if m[0] > 0 && text[m[0]-1] == '\\' {
			continue
		}
		out = append(out, placeholder{start: m[0], end: m[1], path: NormalizeResourcePath(text[m[2]:m[3]])})
	}
	return out
}

func eachPlaceholder(markdown string, fn func(path string)) {
	if !strings.Contains(markdown, "[[") {
		return
	}
	for _, seg := range Segments(markdown) {
		if seg.Code {
			continue
		}
		for _, p := range placeholdersIn(seg.Text) {
			fn(p.path)
		}
	}
}
