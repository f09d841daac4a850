// Package mention parses typed [[skill:<uuid>]] / [[resource:<uuid>]] tokens
// out of skill markdown.
//
// Tokens are only recognised in prose: fenced code blocks and inline code
// spans are skipped. A backslash immediately before the opening "[[" marks a
// token as escaped; escaped tokens are never live and are shown literally by
// renderers with the backslash removed.
package mention

import (
	"regexp"
	"strings"
)

// Type is the kind of entity a mention points at.
type Type string

const (
	TypeSkill    Type = "skill"
	TypeResource Type = "resource"
)

// Mention is a live reference extracted from markdown. TargetID is lowercase.
type Mention struct {
	Type     Type   `json:"type"`
	TargetID string `json:"targetId"`
}

// Key identifies a mention for deduplication.
func (m Mention) Key() string {
	return string(m.Type) + ":" + m.TargetID
}

// InvalidToken is a mention-shaped token whose target is not a UUID.
type InvalidToken struct {
	Type   Type   `json:"type"`
	Target string `json:"target"`
}

const uuidPattern = `[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}`

var (
	// tokenRe matches any [[skill:...]] or [[resource:...]] on one line. The
	// body may not contain brackets, so a malformed outer token leaves an
	// inner well-formed one matchable.
	tokenRe = regexp.MustCompile(`(?i)\[\[(skill|resource):([^\[\]\n]+)\]\]`)
	uuidRe  = regexp.MustCompile(`(?i)^` + uuidPattern + `$`)
	queryRe = regexp.MustCompile(`(?i)^(skill|resource):(` + uuidPattern + `)$`)
)

// token is one grammar match inside a prose segment.
type token struct {
	start, end int
	typ        Type
	target     string
	escaped    bool
}

// live reports whether the token is an unescaped mention with a UUID target.
func (t token) live() bool {
	return !t.escaped && uuidRe.MatchString(t.target)
}

func (t token) mention() Mention {
	return Mention{Type: t.typ, TargetID: strings.ToLower(t.target)}
}

func scanTokens(text string) []token {
	idx := tokenRe.FindAllStringSubmatchIndex(text, -1)
	if len(idx) == 0 {
		return nil
	}
	out := make([]token, 0, len(idx))
	for _, m := range idx {
		out = append(out, token{
			start:   m[0],
			end:     m[1],
			typ:     Type(strings.ToLower(text[m[2]:m[3]])),
			target:  text[m[4]:m[5]],
			escaped: m[0] > 0 && text[m[0]-1] == '\\',
		})
	}
	return out
}

// eachProseToken calls fn for every token found in the prose of markdown.
func eachProseToken(markdown string, fn func(token)) {
	if !strings.Contains(markdown, "[[") {
		return
	}
	for _, seg := range Segments(markdown) {
		if seg.Code {
			continue
		}
		for _, t := range scanTokens(seg.Text) {
			fn(t)
		}
	}
}

// Parse extracts live mentions in document order, deduplicated by type and
// target id.
func Parse(markdown string) []Mention {
	var out []Mention
	seen := make(map[string]struct{})
	eachProseToken(markdown, func(t token) {
		if !t.live() {
			return
		}
		m := t.mention()
		if _, ok := seen[m.Key()]; ok {
			return
		}
		seen[m.Key()] = struct{}{}
		out = append(out, m)
	})
	return out
}

// FindInvalid returns unescaped prose tokens whose trimmed target is not a
// UUID, deduplicated by type and case-folded target.
func FindInvalid(markdown string) []InvalidToken {
	var out []InvalidToken
	seen := make(map[string]struct{})
	eachProseToken(markdown, func(t token) {
		if t.escaped {
			return
		}
		target := strings.TrimSpace(t.target)
		if target == "" || uuidRe.MatchString(target) {
			return
		}
		key := string(t.typ) + ":" + strings.ToLower(target)
		if _, ok := seen[key]; ok {
			return
		}
		seen[key] = struct{}{}
		out = append(out, InvalidToken{Type: t.typ, Target: target})
	})
	return out
}

// Rewrite replaces every live prose mention with replace(m) and strips the
// escape backslash from escaped tokens. Code and all other text are copied
// unchanged; input without tokens is returned as is.
func Rewrite(markdown string, replace func(Mention) string) string {
	if !strings.Contains(markdown, "[[") {
		return markdown
	}
	return TransformProse(markdown, func(text string) string {
		tokens := scanTokens(text)
		if len(tokens) == 0 {
			return text
		}
		var b strings.Builder
		b.Grow(len(text))
		last := 0
		for _, t := range tokens {
			switch {
			case t.escaped:
				b.WriteString(text[last : t.start-1])
				b.WriteString(text[t.start:t.end])
			case t.live() && replace != nil:
				b.WriteString(text[last:t.start])
				b.WriteString(replace(t.mention()))
			default:
				b.WriteString(text[last:t.end])
			}
			last = t.end
		}
		b.WriteString(text[last:])
		return b.String()
	})
}

// StripEscapes removes the escape backslash from escaped tokens without
// touching live ones.
func StripEscapes(markdown string) string {
	return Rewrite(markdown, nil)
}

// FormatQuery renders a mention as the "type:id" value used in viewer URLs.
func FormatQuery(t Type, targetID string) string {
	return string(t) + ":" + strings.ToLower(targetID)
}

// ParseQuery parses a "type:id" value. It returns false for anything that is
// not a well-formed mention.
func ParseQuery(value string) (Mention, bool) {
	m := queryRe.FindStringSubmatch(strings.TrimSpace(value))
	if m == nil {
		return Mention{}, false
	}
	return Mention{Type: Type(strings.ToLower(m[1])), TargetID: strings.ToLower(m[2])}, true
}
