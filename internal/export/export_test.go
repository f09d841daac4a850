package export

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/starford/skillvault/internal/apperr"
	"github.com/starford/skillvault/internal/linkgraph"
	"github.com/starford/skillvault/internal/models"
	"github.com/starford/skillvault/internal/parser"
	"github.com/starford/skillvault/internal/render"
	"github.com/starford/skillvault/internal/skillservice"
	"github.com/starford/skillvault/internal/storage"
	"github.com/starford/skillvault/internal/testutil"
)

func readSkillFile(t *testing.T, dir string) *parser.SkillFile {
	t.Helper()
	raw, err := os.ReadFile(filepath.Join(dir, storage.SkillFile))
	if err != nil {
		t.Fatalf("read SKILL.md: %v", err)
	}
	doc, err := parser.Parse(raw)
	if err != nil {
		t.Fatalf("parse SKILL.md: %v", err)
	}
	return doc
}

func TestSkill_WritesFolder(t *testing.T) {
	ctx := context.Background()
	db := testutil.TestDB(t)
	svc := skillservice.New(db, linkgraph.New(db), render.New(db, ""))

	sk, err := svc.CreateSkill(ctx, "u1", skillservice.CreateInput{
		Name:        "Release",
		Description: "How to ship",
		Markdown:    "Follow [[resource:new:references/steps.md]].",
		Resources: []skillservice.ResourceInput{
			{Path: "references/steps.md", Kind: models.ResourceKindReference, Content: "1. tag\n"},
			{Path: "scripts/ship.sh", Kind: models.ResourceKindScript, Content: "#!/bin/sh\n"},
		},
	})
	if err != nil {
		t.Fatalf("CreateSkill: %v", err)
	}
	if err := db.CreateResources(ctx, []models.Resource{{
		ID: uuid.NewString(), SkillID: sk.ID, Path: "../evil.md", Kind: models.ResourceKindOther, CreatedAt: time.Now().UTC(),
	}}); err != nil {
		t.Fatalf("CreateResources: %v", err)
	}

	dir := t.TempDir()
	dst, err := storage.OpenFolder(dir, false)
	if err != nil {
		t.Fatalf("OpenFolder: %v", err)
	}

	res, err := Skill(ctx, svc, nil, sk.ID, dst, Options{}, nil)
	if err != nil {
		t.Fatalf("Skill: %v", err)
	}
	if !slices.Equal(res.Skipped, []string{"../evil.md"}) {
		t.Errorf("skipped = %q", res.Skipped)
	}
	files := slices.Clone(res.Files)
	slices.Sort(files)
	wantFiles := []string{IndexFile, "SKILL.md", "references/steps.md", "scripts/ship.sh"}
	if !slices.Equal(files, wantFiles) {
		t.Errorf("files = %q, want %q", files, wantFiles)
	}

	doc := readSkillFile(t, dir)
	if doc.Name != "Release" || doc.Description != "How to ship" {
		t.Errorf("frontmatter name=%q description=%q", doc.Name, doc.Description)
	}
	if doc.Body != sk.Markdown {
		t.Errorf("body = %q, want stored markdown %q", doc.Body, sk.Markdown)
	}

	steps, err := os.ReadFile(filepath.Join(dir, "references", "steps.md"))
	if err != nil {
		t.Fatalf("read resource: %v", err)
	}
	if string(steps) != "1. tag\n" {
		t.Errorf("resource content = %q", steps)
	}

	idx, err := os.ReadFile(filepath.Join(dir, IndexFile))
	if err != nil {
		t.Fatalf("read index: %v", err)
	}
	var ids map[string]string
	if err := json.Unmarshal(idx, &ids); err != nil {
		t.Fatalf("decode index: %v", err)
	}
	if len(ids) != 2 || ids["scripts/ship.sh"] == "" {
		t.Errorf("index = %v", ids)
	}

	if _, err := os.Stat(filepath.Join(filepath.Dir(dir), "evil.md")); !os.IsNotExist(err) {
		t.Errorf("resource escaped the target: %v", err)
	}

	t.Run("non-empty target", func(t *testing.T) {
		_, err := Skill(ctx, svc, nil, sk.ID, dst, Options{}, nil)
		if !errors.Is(err, apperr.ErrAlreadyExists) {
			t.Errorf("err = %v, want ErrAlreadyExists", err)
		}
	})

	t.Run("force rendered", func(t *testing.T) {
		if _, err := Skill(ctx, svc, nil, sk.ID, dst, Options{Force: true, Rendered: true}, nil); err != nil {
			t.Fatalf("Skill: %v", err)
		}
		if doc := readSkillFile(t, dir); doc.Body != "Follow `references/steps.md`." {
			t.Errorf("rendered body = %q", doc.Body)
		}
	})
}

func TestSkill_NotVisible(t *testing.T) {
	ctx := context.Background()
	db := testutil.TestDB(t)
	svc := skillservice.New(db, linkgraph.New(db), render.New(db, ""))
	sk := testutil.CreateSkill(t, db, testutil.Ptr("u1"), "Private", "")

	dst, err := storage.OpenFolder(t.TempDir(), false)
	if err != nil {
		t.Fatalf("OpenFolder: %v", err)
	}
	if _, err := Skill(ctx, svc, testutil.Ptr("u2"), sk.ID, dst, Options{}, nil); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}
