package store

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/starford/skillvault/internal/apperr"
	"github.com/starford/skillvault/internal/models"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	f, err := os.CreateTemp("", "skillvault-store-*.db")
	if err != nil {
		t.Fatal(err)
	}
	f.Close()
	t.Cleanup(func() { os.Remove(f.Name()) })

	db, err := Open(context.Background(), DriverSQLite, f.Name())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func ptr(s string) *string { return &s }

func newSkill(t *testing.T, db *DB, owner *string, slug string) models.Skill {
	t.Helper()
	now := time.Now().UTC()
	s := models.Skill{
		ID:          uuid.NewString(),
		OwnerUserID: owner,
		Visibility:  models.VisibilityPrivate,
		Slug:        slug,
		Name:        "Skill " + slug,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := db.CreateSkill(context.Background(), &s); err != nil {
		t.Fatalf("CreateSkill: %v", err)
	}
	return s
}

func autoLink(source, target string) models.Link {
	return models.Link{
		ID:            uuid.NewString(),
		SourceSkillID: ptr(source),
		TargetSkillID: ptr(target),
		Kind:          models.LinkKindMention,
		Metadata:      models.Metadata{models.MetadataOrigin: models.OriginMarkdownAuto},
		CreatedAt:     time.Now().UTC(),
	}
}

func TestOpenUnknownDriver(t *testing.T) {
	if _, err := Open(context.Background(), "mysql", "x"); err == nil {
		t.Fatal("expected error for unsupported driver")
	}
}

func TestSchemaCreation(t *testing.T) {
	db := testDB(t)
	for _, table := range []string{"skill", "skill_resource", "skill_link"} {
		var count int
		if err := db.conn.QueryRow(`SELECT count(*) FROM ` + table).Scan(&count); err != nil {
			t.Fatalf("%s table missing: %v", table, err)
		}
	}
}

func TestCreateAndGetSkill(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	s := newSkill(t, db, ptr("u1"), "alpha")

	got, err := db.GetSkill(ctx, s.ID)
	if err != nil {
		t.Fatalf("GetSkill: %v", err)
	}
	if got.Name != s.Name || got.OwnerUserID == nil || *got.OwnerUserID != "u1" {
		t.Errorf("got %+v", got)
	}
	if got.Metadata == nil {
		t.Error("metadata should scan into an empty map")
	}

	if _, err := db.GetSkill(ctx, uuid.NewString()); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("missing skill err = %v, want ErrNotFound", err)
	}
}

func TestCreateSkillDuplicateSlug(t *testing.T) {
	db := testDB(t)
	newSkill(t, db, ptr("u1"), "dup")
	newSkill(t, db, ptr("u2"), "dup")
	newSkill(t, db, nil, "dup")

	s := models.Skill{ID: uuid.NewString(), OwnerUserID: ptr("u1"), Slug: "dup", Name: "x", Visibility: models.VisibilityPrivate}
	if err := db.CreateSkill(context.Background(), &s); !errors.Is(err, apperr.ErrAlreadyExists) {
		t.Fatalf("err = %v, want ErrAlreadyExists", err)
	}
	g := models.Skill{ID: uuid.NewString(), Slug: "dup", Name: "x", Visibility: models.VisibilityPrivate}
	if err := db.CreateSkill(context.Background(), &g); !errors.Is(err, apperr.ErrAlreadyExists) {
		t.Fatalf("global err = %v, want ErrAlreadyExists", err)
	}
}

func TestSkillBySlug(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	own := newSkill(t, db, ptr("u1"), "shared")
	global := newSkill(t, db, nil, "shared")

	got, err := db.SkillBySlug(ctx, ptr("u1"), "shared")
	if err != nil || got.ID != own.ID {
		t.Fatalf("owned: got %v, %v", got, err)
	}
	got, err = db.SkillBySlug(ctx, nil, "shared")
	if err != nil || got.ID != global.ID {
		t.Fatalf("global: got %v, %v", got, err)
	}
	if _, err := db.SkillBySlug(ctx, ptr("u2"), "shared"); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestListSkillsVisibility(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	newSkill(t, db, ptr("u1"), "mine")
	newSkill(t, db, ptr("u2"), "theirs")
	newSkill(t, db, nil, "global")

	all, err := db.ListSkills(ctx, ListFilter{})
	if err != nil {
		t.Fatalf("ListSkills: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("all = %d, want 3", len(all))
	}

	visible, err := db.ListSkills(ctx, ListFilter{Viewer: ptr("u1")})
	if err != nil {
		t.Fatalf("ListSkills viewer: %v", err)
	}
	if len(visible) != 2 {
		t.Fatalf("visible = %d, want 2", len(visible))
	}
}

func TestUpdateSkillMarkdown(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	s := newSkill(t, db, nil, "upd")

	if err := db.UpdateSkillMarkdown(ctx, s.ID, "new body", time.Now().UTC()); err != nil {
		t.Fatalf("UpdateSkillMarkdown: %v", err)
	}
	got, _ := db.GetSkill(ctx, s.ID)
	if got.Markdown != "new body" {
		t.Errorf("markdown = %q", got.Markdown)
	}
	if err := db.UpdateSkillMarkdown(ctx, uuid.NewString(), "x", time.Now()); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestBatchLookups(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	a := newSkill(t, db, ptr("u1"), "a")
	b := newSkill(t, db, nil, "b")
	res := models.Resource{ID: uuid.NewString(), SkillID: a.ID, Path: "references/x.md", Kind: models.ResourceKindReference, CreatedAt: time.Now()}
	if err := db.CreateResources(ctx, []models.Resource{res}); err != nil {
		t.Fatalf("CreateResources: %v", err)
	}

	owners, err := db.SkillOwners(ctx, []string{a.ID, b.ID, uuid.NewString()})
	if err != nil {
		t.Fatalf("SkillOwners: %v", err)
	}
	if len(owners) != 2 {
		t.Fatalf("owners = %d, want 2", len(owners))
	}

	names, err := db.SkillNames(ctx, []string{b.ID})
	if err != nil || len(names) != 1 || names[0].Name != b.Name {
		t.Fatalf("SkillNames = %v, %v", names, err)
	}

	ro, err := db.ResourceOwners(ctx, []string{res.ID, uuid.NewString()})
	if err != nil || len(ro) != 1 || ro[0].SkillID != a.ID || ro[0].OwnerUserID == nil || *ro[0].OwnerUserID != "u1" {
		t.Fatalf("ResourceOwners = %+v, %v", ro, err)
	}

	ri, err := db.ResourceInfos(ctx, []string{res.ID})
	if err != nil || len(ri) != 1 || ri[0].Path != "references/x.md" || ri[0].SkillName != a.Name {
		t.Fatalf("ResourceInfos = %+v, %v", ri, err)
	}

	empty, err := db.SkillOwners(ctx, nil)
	if err != nil || empty != nil {
		t.Fatalf("empty lookup = %v, %v", empty, err)
	}
}

func TestReplaceAutoLinksKeepsManualEdges(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	src := newSkill(t, db, nil, "src")
	t1 := newSkill(t, db, nil, "t1")
	t2 := newSkill(t, db, nil, "t2")

	manual := models.Link{
		ID:            uuid.NewString(),
		SourceSkillID: ptr(src.ID),
		TargetSkillID: ptr(t1.ID),
		Kind:          models.LinkKindRelated,
		Metadata:      models.Metadata{"note": "hand-made"},
		CreatedAt:     time.Now().UTC(),
	}
	if err := db.InsertLinks(ctx, []models.Link{manual, autoLink(src.ID, t1.ID)}); err != nil {
		t.Fatalf("InsertLinks: %v", err)
	}

	if err := db.ReplaceAutoLinks(ctx, src.ID, []models.Link{autoLink(src.ID, t2.ID)}); err != nil {
		t.Fatalf("ReplaceAutoLinks: %v", err)
	}

	links, err := db.LinksFromSkill(ctx, src.ID)
	if err != nil {
		t.Fatalf("LinksFromSkill: %v", err)
	}
	if len(links) != 2 {
		t.Fatalf("links = %d, want 2", len(links))
	}
	var sawManual, sawAuto bool
	for _, l := range links {
		switch {
		case l.ID == manual.ID:
			sawManual = !l.IsAuto() && l.Metadata["note"] == "hand-made"
		case l.IsAuto():
			sawAuto = *l.TargetSkillID == t2.ID
		}
	}
	if !sawManual || !sawAuto {
		t.Errorf("manual=%v auto=%v in %+v", sawManual, sawAuto, links)
	}

	back, err := db.LinksToSkill(ctx, t2.ID)
	if err != nil || len(back) != 1 {
		t.Fatalf("LinksToSkill = %v, %v", back, err)
	}
}

func TestInTxRollsBack(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	src := newSkill(t, db, nil, "src")
	tgt := newSkill(t, db, nil, "tgt")
	if err := db.InsertLinks(ctx, []models.Link{autoLink(src.ID, tgt.ID)}); err != nil {
		t.Fatal(err)
	}

	boom := errors.New("boom")
	err := db.InTx(ctx, func(tx *Tx) error {
		if err := tx.ReplaceAutoLinks(ctx, src.ID, nil); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}

	links, _ := db.LinksFromSkill(ctx, src.ID)
	if len(links) != 1 {
		t.Fatalf("rollback lost edges: %d", len(links))
	}
}

func TestInsertLinksRejectsInvalidEdge(t *testing.T) {
	db := testDB(t)
	bad := models.Link{ID: uuid.NewString(), Kind: models.LinkKindMention}
	if err := db.InsertLinks(context.Background(), []models.Link{bad}); err == nil {
		t.Fatal("expected validation error")
	}
}
