// Package testutil provides shared test helpers for setting up stores and fixtures.
package testutil

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gosimple/slug"

	"github.com/starford/skillvault/internal/models"
	"github.com/starford/skillvault/internal/store"
)

// TestDB creates a temporary SQLite store that is automatically cleaned up.
func TestDB(t *testing.T) *store.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "skillvault-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() {
		os.Remove(dbFile.Name())
		os.Remove(dbFile.Name() + "-wal")
		os.Remove(dbFile.Name() + "-shm")
	})

	db, err := store.Open(context.Background(), store.DriverSQLite, dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// Ptr returns a pointer to s.
func Ptr(s string) *string { return &s }

// CreateSkill inserts a skill owned by owner (nil for global) and returns it.
func CreateSkill(t *testing.T, db *store.DB, owner *string, name, markdown string) models.Skill {
	t.Helper()
	now := time.Now().UTC()
	s := models.Skill{
		ID:          uuid.NewString(),
		OwnerUserID: owner,
		Visibility:  models.VisibilityPrivate,
		Slug:        slug.Make(name) + "-" + uuid.NewString()[:8],
		Name:        name,
		Markdown:    markdown,
		Metadata:    models.Metadata{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := db.CreateSkill(context.Background(), &s); err != nil {
		t.Fatalf("CreateSkill %q: %v", name, err)
	}
	return s
}

// CreateResource inserts a resource under skillID and returns it.
func CreateResource(t *testing.T, db *store.DB, skillID, path string) models.Resource {
	t.Helper()
	r := models.Resource{
		ID:        uuid.NewString(),
		SkillID:   skillID,
		Path:      path,
		Kind:      models.ResourceKindReference,
		CreatedAt: time.Now().UTC(),
	}
	if err := db.CreateResources(context.Background(), []models.Resource{r}); err != nil {
		t.Fatalf("CreateResource %q: %v", path, err)
	}
	return r
}

// WriteTemplate writes a skill template directory under root with the given
// SKILL.md and resource files.
func WriteTemplate(t *testing.T, root, dir, skillMD string, files map[string]string) string {
	t.Helper()
	base := filepath.Join(root, dir)
	if err := os.MkdirAll(base, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(base, "SKILL.md"), []byte(skillMD), 0o644); err != nil {
		t.Fatal(err)
	}
	for rel, content := range files {
		p := filepath.Join(base, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return base
}
