// Package export writes a stored skill back out as a skill folder: SKILL.md,
// its resource files and a .resource-ids.json index mapping paths to ids.
package export

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/starford/skillvault/internal/apperr"
	"github.com/starford/skillvault/internal/mention"
	"github.com/starford/skillvault/internal/parser"
	"github.com/starford/skillvault/internal/render"
	"github.com/starford/skillvault/internal/skillservice"
	"github.com/starford/skillvault/internal/storage"
)

// IndexFile is the name of the path-to-id index written next to SKILL.md.
const IndexFile = ".resource-ids.json"

// Options controls one export.
type Options struct {
	// Force allows writing into a directory that already has files.
	Force bool
	// Rendered writes SKILL.md with mentions rendered as plain text instead
	// of the stored tokens.
	Rendered bool
}

// Result lists what an export wrote.
type Result struct {
	SkillID string   `json:"skillId"`
	Files   []string `json:"files"`
	Skipped []string `json:"skipped"`
}

// Skill exports skill id, as seen by viewer, into dst.
func Skill(ctx context.Context, svc *skillservice.Service, viewer *string, id string, dst *storage.Folder, opts Options, logger *slog.Logger) (*Result, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if !opts.Force {
		empty, err := dst.Empty()
		if err != nil {
			return nil, err
		}
		if !empty {
			return nil, fmt.Errorf("export: %s is not empty: %w", dst.Root(), apperr.ErrAlreadyExists)
		}
	}

	sk, err := svc.GetSkill(ctx, viewer, id, render.Options{Mode: render.ModePlain})
	if err != nil {
		return nil, err
	}

	res := &Result{SkillID: sk.ID, Files: []string{}, Skipped: []string{}}
	ids := make(map[string]string, len(sk.Resources))
	for _, r := range sk.Resources {
		p := mention.NormalizeResourcePath(r.Path)
		if _, err := dst.Resolve(p); err != nil || p == "" || p == storage.SkillFile || p == IndexFile {
			logger.Warn("export: skipping resource", slog.String("skill_id", sk.ID), slog.String("path", r.Path))
			res.Skipped = append(res.Skipped, r.Path)
			continue
		}
		if err := dst.Write(p, []byte(r.Content)); err != nil {
			return nil, err
		}
		ids[p] = r.ID
		res.Files = append(res.Files, p)
	}

	body := sk.Markdown
	if opts.Rendered {
		body = sk.RenderedMarkdown
	}
	fm := map[string]interface{}{"name": sk.Name, "id": sk.ID}
	if sk.Description != "" {
		fm["description"] = sk.Description
	}
	doc, err := parser.Format(fm, body)
	if err != nil {
		return nil, err
	}
	if err := dst.Write(storage.SkillFile, doc); err != nil {
		return nil, err
	}
	res.Files = append(res.Files, storage.SkillFile)

	index, err := json.MarshalIndent(ids, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("export: encode index: %w", err)
	}
	if err := dst.Write(IndexFile, append(index, '\n')); err != nil {
		return nil, err
	}
	res.Files = append(res.Files, IndexFile)

	logger.Info("export: done",
		slog.String("skill_id", sk.ID),
		slog.String("dir", dst.Root()),
		slog.Int("files", len(res.Files)),
		slog.Int("skipped", len(res.Skipped)))
	return res, nil
}
