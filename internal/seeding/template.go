// Package seeding creates default skills from a directory of templates and
// keeps previously seeded copies in step with template changes.
//
// A template is a directory holding SKILL.md plus resource files. Template
// markdown may reference its own resources with [[resource:new:<path>]]
// placeholders, which are rewritten to concrete mention tokens once the
// resources have ids.
package seeding

import (
	"encoding/json"
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/gosimple/slug"

	"github.com/starford/skillvault/internal/checksum"
	"github.com/starford/skillvault/internal/mention"
	"github.com/starford/skillvault/internal/models"
	"github.com/starford/skillvault/internal/parser"
	"github.com/starford/skillvault/internal/storage"
)

// VersionKey is the skill metadata key holding the template version a seeded
// skill was built from.
const VersionKey = "defaultTemplateVersion"

var kindByDir = map[string]string{
	"references": models.ResourceKindReference,
	"scripts":    models.ResourceKindScript,
	"assets":     models.ResourceKindAsset,
}

var binaryExtensions = map[string]struct{}{
	".png": {}, ".jpg": {}, ".jpeg": {}, ".gif": {}, ".webp": {}, ".ico": {}, ".svg": {},
	".ttf": {}, ".otf": {}, ".woff": {}, ".woff2": {}, ".eot": {}, ".pdf": {},
	".zip": {}, ".gz": {}, ".tar": {}, ".bz2": {},
	".mp3": {}, ".mp4": {}, ".wav": {}, ".ogg": {}, ".webm": {},
	".exe": {}, ".dll": {}, ".so": {}, ".dylib": {}, ".bin": {}, ".dat": {}, ".db": {}, ".sqlite": {},
}

// Resource is one file shipped with a template.
type Resource struct {
	Path    string
	Kind    string
	Content string
}

// Template is a parsed skill template directory.
type Template struct {
	Slug        string
	Name        string
	Description string
	Markdown    string
	Frontmatter map[string]interface{}
	Resources   []Resource
}

// Version digests everything that ends up in a seeded skill.
func (t Template) Version() string {
	fm, err := json.Marshal(t.Frontmatter)
	if err != nil {
		fm = []byte(fmt.Sprint(t.Frontmatter))
	}
	parts := []string{t.Slug, t.Name, t.Description, t.Markdown, string(fm)}

	res := append([]Resource(nil), t.Resources...)
	sort.Slice(res, func(i, j int) bool {
		return mention.NormalizeResourcePath(res[i].Path) < mention.NormalizeResourcePath(res[j].Path)
	})
	for _, r := range res {
		parts = append(parts, mention.NormalizeResourcePath(r.Path), r.Kind, r.Content)
	}
	return checksum.Parts(parts...)
}

// MissingPlaceholderPaths returns placeholder paths with no matching resource.
func (t Template) MissingPlaceholderPaths() []string {
	have := make(map[string]struct{}, len(t.Resources))
	for _, r := range t.Resources {
		have[mention.NormalizeResourcePath(r.Path)] = struct{}{}
	}
	var missing []string
	for _, p := range mention.CollectNewResourcePaths(t.Markdown) {
		if _, ok := have[p]; !ok {
			missing = append(missing, p)
		}
	}
	return missing
}

// LoadTemplates reads every top-level directory containing SKILL.md. Nested
// directories with their own SKILL.md are not treated as resources, and
// binary files are skipped.
func LoadTemplates(p storage.Provider) ([]Template, error) {
	files, err := p.List("")
	if err != nil {
		return nil, fmt.Errorf("seeding: list templates: %w", err)
	}
	found, err := p.SkillRoots()
	if err != nil {
		return nil, fmt.Errorf("seeding: find templates: %w", err)
	}
	roots := make(map[string]struct{}, len(found))
	for _, r := range found {
		roots[r] = struct{}{}
	}

	byDir := make(map[string][]string)
	var dirs []string
	for _, f := range files {
		top, rest, ok := strings.Cut(f.Path, "/")
		if !ok {
			continue
		}
		if _, isRoot := roots[top]; !isRoot {
			continue
		}
		if _, seen := byDir[top]; !seen {
			dirs = append(dirs, top)
		}
		byDir[top] = append(byDir[top], rest)
	}
	sort.Strings(dirs)

	out := make([]Template, 0, len(dirs))
	for _, dir := range dirs {
		tpl, err := loadTemplate(p, dir, byDir[dir], roots)
		if err != nil {
			return nil, err
		}
		out = append(out, tpl)
	}
	return out, nil
}

func loadTemplate(p storage.Provider, dir string, rels []string, roots map[string]struct{}) (Template, error) {
	raw, err := p.Read(dir + "/" + storage.SkillFile)
	if err != nil {
		return Template{}, fmt.Errorf("seeding: read %s: %w", dir, err)
	}
	doc, err := parser.Parse(raw)
	if err != nil {
		return Template{}, fmt.Errorf("seeding: parse %s: %w", dir, err)
	}

	tpl := Template{
		Slug:        slug.Make(dir),
		Name:        doc.Name,
		Description: doc.Description,
		Markdown:    strings.TrimSpace(doc.Body),
		Frontmatter: doc.Frontmatter,
	}
	if tpl.Name == "" {
		tpl.Name = dir
	}

	for _, rel := range rels {
		if rel == storage.SkillFile || nestedInOtherRoot(dir, rel, roots) || isBinary(rel) {
			continue
		}
		content, err := p.Read(dir + "/" + rel)
		if err != nil {
			return Template{}, fmt.Errorf("seeding: read %s/%s: %w", dir, rel, err)
		}
		tpl.Resources = append(tpl.Resources, Resource{
			Path:    rel,
			Kind:    classify(rel),
			Content: string(content),
		})
	}
	return tpl, nil
}

func nestedInOtherRoot(dir, rel string, roots map[string]struct{}) bool {
	for d := path.Dir(rel); d != "."; d = path.Dir(d) {
		if _, ok := roots[dir+"/"+d]; ok {
			return true
		}
	}
	return false
}

func isBinary(p string) bool {
	_, ok := binaryExtensions[strings.ToLower(path.Ext(p))]
	return ok
}

// classify picks the resource kind from the first directory, then from the
// file extension.
func classify(p string) string {
	if top, _, ok := strings.Cut(p, "/"); ok {
		if kind, known := kindByDir[top]; known {
			return kind
		}
	}
	switch strings.ToLower(path.Ext(p)) {
	case ".ts", ".tsx", ".js", ".mjs", ".cjs", ".py", ".sh", ".bash", ".zsh", ".go":
		return models.ResourceKindScript
	case ".md", ".mdx", ".txt":
		return models.ResourceKindReference
	}
	return models.ResourceKindOther
}
