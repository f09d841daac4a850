package render

import (
	"context"
	"slices"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/starford/skillvault/internal/store"
	"github.com/starford/skillvault/internal/testutil"
)

const (
	skillA     = "a1b2c3d4-e5f6-7890-abcd-ef1234567890"
	skillB     = "b2c3d4e5-f6a7-8901-bcde-f12345678901"
	resourceID = "c3d4e5f6-a7b8-9012-cdef-123456789012"
)

type fakeLookup struct {
	skills          map[string]string
	resources       map[string]store.ResourceInfo
	skillCalls      int
	resourceCalls   int
	lastSkillIDs    []string
	lastResourceIDs []string
}

func newFakeLookup() *fakeLookup {
	return &fakeLookup{
		skills: map[string]string{
			skillA: "TypeScript Basics",
			skillB: "Go Testing",
		},
		resources: map[string]store.ResourceInfo{
			resourceID: {ID: resourceID, SkillID: skillA, Path: "examples/hooks.ts", SkillName: "TypeScript Basics"},
		},
	}
}

func (f *fakeLookup) SkillNames(_ context.Context, ids []string) ([]store.SkillName, error) {
	f.skillCalls++
	f.lastSkillIDs = ids
	var out []store.SkillName
	for _, id := range ids {
		if name, ok := f.skills[id]; ok {
			out = append(out, store.SkillName{ID: id, Name: name})
		}
	}
	return out, nil
}

func (f *fakeLookup) ResourceInfos(_ context.Context, ids []string) ([]store.ResourceInfo, error) {
	f.resourceCalls++
	f.lastResourceIDs = ids
	var out []store.ResourceInfo
	for _, id := range ids {
		if info, ok := f.resources[id]; ok {
			out = append(out, info)
		}
	}
	return out, nil
}

func render(t *testing.T, f *fakeLookup, md string, opts Options) string {
	t.Helper()
	out, err := New(f, "").Render(context.Background(), md, opts)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	return out
}

func expect(t *testing.T, got, want string) {
	t.Helper()
	if got != want {
		t.Errorf("got  %q\nwant %q", got, want)
	}
}

func TestRender_NoMentionsIsIdentityWithoutLookups(t *testing.T) {
	f := newFakeLookup()
	md := "# Title\n\n" + strings.Repeat("Just some text with `code` and [a link](x).\n", 2000)
	if got := render(t, f, md, Options{Mode: ModeLinked}); got != md {
		t.Error("markdown without mentions changed")
	}
	if f.skillCalls != 0 || f.resourceCalls != 0 {
		t.Errorf("lookups = %d/%d, want none", f.skillCalls, f.resourceCalls)
	}
}

func TestRender_OnlyCodeMentionsSkipLookups(t *testing.T) {
	f := newFakeLookup()
	md := "```\n[[skill:" + skillA + "]]\n```\nand `[[resource:" + resourceID + "]]`"
	expect(t, render(t, f, md, Options{}), md)
	if n := f.skillCalls + f.resourceCalls; n != 0 {
		t.Errorf("lookups = %d, want 0", n)
	}
}

func TestRender_SkillPlain(t *testing.T) {
	got := render(t, newFakeLookup(), "Check out [[skill:"+skillA+"]] for more info.", Options{})
	expect(t, got, "Check out `TypeScript Basics` for more info.")
}

func TestRender_ResourcePlainWithAndWithoutContext(t *testing.T) {
	md := "See [[resource:" + resourceID + "]] for examples."
	tests := []struct {
		name    string
		current string
		want    string
	}{
		{"no context", "", "See `examples/hooks.ts for TypeScript Basics` for examples."},
		{"own skill", strings.ToUpper(skillA), "See `examples/hooks.ts` for examples."},
		{"other skill", skillB, "See `examples/hooks.ts for TypeScript Basics` for examples."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expect(t, render(t, newFakeLookup(), md, Options{CurrentSkillID: tt.current}), tt.want)
		})
	}
}

func TestRender_UnknownTargetsFallBack(t *testing.T) {
	ghost := uuid.NewString()
	got := render(t, newFakeLookup(), "[[skill:"+ghost+"]] and [[resource:"+ghost+"]]", Options{})
	for _, want := range []string{"`(unknown skill)`", "`(unknown resource)`"} {
		if !strings.Contains(got, want) {
			t.Errorf("output %q missing %q", got, want)
		}
	}

	linked := render(t, newFakeLookup(), "[[skill:"+ghost+"]]", Options{Mode: ModeLinked})
	expect(t, linked, "`(unknown skill)`")
}

func TestRender_Linked(t *testing.T) {
	md := "Use [[skill:" + skillA + "]] and [[resource:" + resourceID + "]]"
	got := render(t, newFakeLookup(), md, Options{Mode: ModeLinked})
	expect(t, got,
		"Use [`TypeScript Basics`](/vault/skills/"+skillA+"?mention=skill%3A"+skillA+") and "+
			"[`examples/hooks.ts for TypeScript Basics`](/vault/skills/"+skillA+"/resources/examples/hooks.ts?mention=resource%3A"+resourceID+")")
}

func TestRender_LinkedCustomPrefix(t *testing.T) {
	out, err := New(newFakeLookup(), "/app/skills/").Render(context.Background(), "[[skill:"+skillA+"]]", Options{Mode: ModeLinked})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if want := "(/app/skills/" + skillA + "?mention=skill%3A" + skillA + ")"; !strings.Contains(out, want) {
		t.Errorf("output %q missing %q", out, want)
	}
}

func TestRender_EscapedTokensAreLiteral(t *testing.T) {
	f := newFakeLookup()
	md := `Use \[[skill:` + skillB + `]] and \[[resource:` + resourceID + `]]`
	expect(t, render(t, f, md, Options{}), "Use [[skill:"+skillB+"]] and [[resource:"+resourceID+"]]")
	if n := f.skillCalls + f.resourceCalls; n != 0 {
		t.Errorf("lookups = %d, want 0", n)
	}
}

func TestRender_EscapedMixedWithLive(t *testing.T) {
	f := newFakeLookup()
	md := `\[[skill:` + skillB + `]] vs [[skill:` + skillA + `]]`
	expect(t, render(t, f, md, Options{}), "[[skill:"+skillB+"]] vs `TypeScript Basics`")
	if !slices.Equal(f.lastSkillIDs, []string{skillA}) {
		t.Errorf("looked up %q, want only %s", f.lastSkillIDs, skillA)
	}
}

func TestRender_BracketEscapesUntouched(t *testing.T) {
	f := newFakeLookup()
	md := `Check \[\[skill:` + skillA + `\]\]`
	expect(t, render(t, f, md, Options{}), md)
	if f.skillCalls != 0 {
		t.Errorf("skill lookups = %d, want 0", f.skillCalls)
	}
}

func TestRender_CodeLeftVerbatim(t *testing.T) {
	md := "[[skill:" + skillA + "]]\n```\n[[skill:" + skillA + "]]\n```\n"
	expect(t, render(t, newFakeLookup(), md, Options{}), "`TypeScript Basics`\n```\n[[skill:"+skillA+"]]\n```\n")
}

func TestRender_BatchLookupBound(t *testing.T) {
	f := newFakeLookup()
	var b strings.Builder
	for i := 0; i < 50; i++ {
		b.WriteString("[[skill:" + uuid.NewString() + "]] [[resource:" + uuid.NewString() + "]] [[skill:" + skillA + "]]\n")
	}
	render(t, f, b.String(), Options{})
	if f.skillCalls != 1 || f.resourceCalls != 1 {
		t.Errorf("lookups = %d skill, %d resource; want one each", f.skillCalls, f.resourceCalls)
	}
	if len(f.lastSkillIDs) != 51 || len(f.lastResourceIDs) != 50 {
		t.Errorf("batched %d skill ids, %d resource ids; want 51 and 50", len(f.lastSkillIDs), len(f.lastResourceIDs))
	}
}

func TestRender_Instructions(t *testing.T) {
	ghost := uuid.NewString()
	md := "[[skill:" + skillA + "]]\n[[resource:" + resourceID + "]]\n[[skill:" + ghost + "]]\n[[resource:" + ghost + "]]"
	got := render(t, newFakeLookup(), md, Options{Mode: ModeInstructions})
	expect(t, got, strings.Join([]string{
		`Fetch the skill "TypeScript Basics" to get details.`,
		`Fetch the skill "TypeScript Basics" and get reference "examples/hooks.ts".`,
		`Fetch the skill "(unknown skill)" to get details.`,
		`See reference "(unknown resource)".`,
	}, "\n"))

	self := render(t, newFakeLookup(), "[[resource:"+resourceID+"]]", Options{Mode: ModeInstructions, CurrentSkillID: skillA})
	expect(t, self, `See reference "examples/hooks.ts".`)
}

func TestResourceHrefEncodesSegments(t *testing.T) {
	got := ResourceHref("", "ABC", "/refs//my file.md", "ID")
	expect(t, got, "/vault/skills/abc/resources/refs/my%20file.md?mention=resource%3Aid")
}

func TestPreview(t *testing.T) {
	out, err := New(newFakeLookup(), "").Preview(context.Background(), "# Hi\n\nSee [[skill:"+skillA+"]]", "")
	if err != nil {
		t.Fatalf("Preview: %v", err)
	}
	for _, want := range []string{
		"<h1>Hi</h1>",
		`<a href="/vault/skills/` + skillA + `?mention=skill%3A` + skillA + `"><code>TypeScript Basics</code></a>`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("preview %q missing %q", out, want)
		}
	}
}

func TestRender_AgainstStore(t *testing.T) {
	db := testutil.TestDB(t)
	parent := testutil.CreateSkill(t, db, nil, "Parent", "")
	res := testutil.CreateResource(t, db, parent.ID, "references/guide.md")

	out, err := New(db, "").Render(context.Background(), "[[skill:"+parent.ID+"]] [[resource:"+res.ID+"]]", Options{})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	expect(t, out, "`Parent` `references/guide.md for Parent`")
}
