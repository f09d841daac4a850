package mcpserver

// MentionFormatContract describes how skill markdown references other skills
// and resources.
const MentionFormatContract = `# Skill Mention Format

Skill markdown links to other skills and to resource files with typed tokens.

## Tokens

` + "```" + `markdown
[[skill:<skill-uuid>]]            # another skill
[[resource:<resource-uuid>]]      # a resource file of any skill
[[resource:new:references/x.md]]  # a resource of this skill that is being created
` + "```" + `

## Rules

1. **Ids are UUIDs.** A token whose target is not a UUID is rejected on write.
   Use the ` + "`" + `check_mentions` + "`" + ` tool before saving.
2. **Code is never parsed.** Tokens inside fenced code blocks or inline code
   spans are plain text.
3. **Escaping.** Write ` + "`" + `\[[skill:...]]` + "`" + ` to show a token literally. The
   backslash is removed when the skill is rendered.
4. **Placeholders** (` + "`" + `:new:` + "`" + `) resolve against the resources of the
   skill being written, by path. An unknown path is an error.
5. **Ownership.** A skill may only mention skills and resources with the same
   owner, or global skills when it is global itself.
6. **Links are derived.** Every save rebuilds the skill's mention links from the
   markdown; there is no separate call to add them.
`
