package mention

import (
	"slices"
	"strings"
	"testing"
)

const (
	skillID    = "a1b2c3d4-e5f6-7890-abcd-ef1234567890"
	resourceID = "f0e1d2c3-b4a5-6789-0abc-def123456789"
)

func assertMentions(t *testing.T, got []Mention, want ...Mention) {
	t.Helper()
	if !slices.Equal(got, want) {
		t.Errorf("mentions = %+v, want %+v", got, want)
	}
}

func TestParse_SkillMention(t *testing.T) {
	got := Parse("Some text [[skill:" + skillID + "]] more text")
	assertMentions(t, got, Mention{Type: TypeSkill, TargetID: skillID})
}

func TestParse_ResourceMention(t *testing.T) {
	got := Parse("Check [[resource:" + resourceID + "]] here")
	assertMentions(t, got, Mention{Type: TypeResource, TargetID: resourceID})
}

func TestParse_OrderAndDedup(t *testing.T) {
	md := strings.Join([]string{
		"# My Skill",
		"A [[skill:" + skillID + "]] B [[resource:" + resourceID + "]] C",
		"Again [[skill:" + skillID + "]]",
	}, "\n")
	assertMentions(t, Parse(md),
		Mention{Type: TypeSkill, TargetID: skillID},
		Mention{Type: TypeResource, TargetID: resourceID})
}

func TestParse_CaseNormalised(t *testing.T) {
	md := "[[Skill:" + strings.ToUpper(skillID) + "]] and [[RESOURCE:" + resourceID + "]]"
	assertMentions(t, Parse(md),
		Mention{Type: TypeSkill, TargetID: skillID},
		Mention{Type: TypeResource, TargetID: resourceID})
}

func TestParse_Malformed(t *testing.T) {
	cases := map[string]string{
		"missing prefix":  "[[" + skillID + "]]",
		"wrong prefix":    "[[link:" + skillID + "]]",
		"tag prefix":      "[[tag:" + skillID + "]]",
		"not a uuid":      "[[skill:not-a-uuid]]",
		"short id":        "[[skill:12345]]",
		"unclosed":        "[[skill:" + skillID,
		"split lines":     "[[skill:\n" + skillID + "]]",
		"single brackets": "[skill:" + skillID + "]",
		"empty":           "",
		"plain":           "Just regular markdown\nwith no mentions",
	}
	for name, md := range cases {
		t.Run(name, func(t *testing.T) {
			if got := Parse(md); len(got) != 0 {
				t.Errorf("Parse(%q) = %+v, want none", md, got)
			}
		})
	}
}

func TestParse_NestedTokenYieldsInner(t *testing.T) {
	got := Parse("[[skill:[[resource:" + resourceID + "]]]]")
	assertMentions(t, got, Mention{Type: TypeResource, TargetID: resourceID})
}

func TestParse_SkipsEscaped(t *testing.T) {
	md := `Check \[[resource:` + resourceID + `]] and \[[skill:` + skillID + `]]`
	assertMentions(t, Parse(md))
}

func TestParse_BracketEscapesAreLiteralText(t *testing.T) {
	md := `Check \[\[resource:` + resourceID + `\]\] and \[\[skill:` + skillID + `\]\]`
	assertMentions(t, Parse(md))
}

func TestParse_SkipsFencedCode(t *testing.T) {
	md := strings.Join([]string{
		"```md",
		"[[skill:" + skillID + "]]",
		"```",
		"Outside [[resource:" + resourceID + "]]",
	}, "\n")
	assertMentions(t, Parse(md), Mention{Type: TypeResource, TargetID: resourceID})
}

func TestParse_SkipsTildeFenceAndQuotedFence(t *testing.T) {
	md := strings.Join([]string{
		"~~~~",
		"[[skill:" + skillID + "]]",
		"```",
		"still code [[skill:" + skillID + "]]",
		"~~~~",
		"> ```",
		"> [[resource:" + resourceID + "]]",
		"> ```",
	}, "\n")
	assertMentions(t, Parse(md))
}

func TestParse_UnclosedFenceSwallowsRest(t *testing.T) {
	assertMentions(t, Parse("```\n[[skill:"+skillID+"]]\n"))
}

func TestParse_SkipsInlineCode(t *testing.T) {
	md := strings.Join([]string{
		"Inline code: `[[skill:" + skillID + "]]`",
		"Double: ``a ` [[skill:" + skillID + "]]``",
		"Outside code: [[resource:" + resourceID + "]]",
	}, "\n")
	assertMentions(t, Parse(md), Mention{Type: TypeResource, TargetID: resourceID})
}

func TestParse_UnmatchedBacktickIsText(t *testing.T) {
	assertMentions(t, Parse("a ` stray [[skill:"+skillID+"]]"), Mention{Type: TypeSkill, TargetID: skillID})
}

func TestFindInvalid(t *testing.T) {
	md := "See [[skill:my-slug]] and [[resource:references/guide.md]] and [[skill:MY-SLUG]] and [[skill:" + skillID + "]]"
	got := FindInvalid(md)
	want := []InvalidToken{
		{Type: TypeSkill, Target: "my-slug"},
		{Type: TypeResource, Target: "references/guide.md"},
	}
	if !slices.Equal(got, want) {
		t.Errorf("FindInvalid = %+v, want %+v", got, want)
	}
}

func TestFindInvalid_IgnoresEscapedAndCode(t *testing.T) {
	md := "See \\[[skill:my-slug]] and `[[resource:x]]`\n```\n[[skill:y]]\n```"
	if got := FindInvalid(md); len(got) != 0 {
		t.Errorf("FindInvalid = %+v, want none", got)
	}
}

func TestFindInvalid_ReportsPlaceholders(t *testing.T) {
	got := FindInvalid("[[resource:new:references/a.md]]")
	want := []InvalidToken{{Type: TypeResource, Target: "new:references/a.md"}}
	if !slices.Equal(got, want) {
		t.Errorf("FindInvalid = %+v, want %+v", got, want)
	}
}

func TestRewrite_ReplacesLiveAndStripsEscapes(t *testing.T) {
	md := `A [[skill:` + skillID + `]] B \[[skill:` + skillID + `]] ` + "`[[skill:" + skillID + "]]`"
	got := Rewrite(md, func(m Mention) string { return "<" + m.Key() + ">" })
	want := "A <skill:" + skillID + "> B [[skill:" + skillID + "]] `[[skill:" + skillID + "]]`"
	if got != want {
		t.Errorf("Rewrite =\n%q\nwant\n%q", got, want)
	}
}

func TestRewrite_NoTokensIsIdentity(t *testing.T) {
	md := "# Title\n\nplain `code` and \\[not a token]\n"
	called := false
	got := Rewrite(md, func(Mention) string { called = true; return "" })
	if got != md {
		t.Errorf("Rewrite = %q, want input unchanged", got)
	}
	if called {
		t.Error("replace called without tokens")
	}
}

func TestSegments_RoundTrip(t *testing.T) {
	md := "intro `x` and ``y``\n```go\ncode\n```\n> quote\ntrailing"
	var b strings.Builder
	for _, s := range Segments(md) {
		b.WriteString(s.Text)
	}
	if b.String() != md {
		t.Fatalf("segments do not cover the input: %q", b.String())
	}
}

func TestSegments_Classification(t *testing.T) {
	got := Segments("a `b` c\n```\nd\n```\ne")
	want := []Segment{
		{Text: "a ", Code: false},
		{Text: "`b`", Code: true},
		{Text: " c\n", Code: false},
		{Text: "```\nd\n```\n", Code: true},
		{Text: "e", Code: false},
	}
	if !slices.Equal(got, want) {
		t.Errorf("segments = %+v\nwant %+v", got, want)
	}
}

func TestQueryRoundTrip(t *testing.T) {
	if q := FormatQuery(TypeSkill, strings.ToUpper(skillID)); q != "skill:"+skillID {
		t.Errorf("FormatQuery = %q", q)
	}

	m, ok := ParseQuery("RESOURCE:" + resourceID)
	if !ok {
		t.Fatal("ParseQuery rejected a valid query")
	}
	if m != (Mention{Type: TypeResource, TargetID: resourceID}) {
		t.Errorf("ParseQuery = %+v", m)
	}

	for _, bad := range []string{"skill:not-a-uuid", "bad"} {
		if _, ok := ParseQuery(bad); ok {
			t.Errorf("ParseQuery(%q) should fail", bad)
		}
	}
}
