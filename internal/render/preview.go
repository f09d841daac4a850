package render

import (
	"bytes"
	"context"
	"fmt"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

var previewMarkdown = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
)

// Preview renders markdown in linked mode and converts the result to HTML.
func (r *Renderer) Preview(ctx context.Context, markdown, currentSkillID string) (string, error) {
	linked, err := r.Render(ctx, markdown, Options{Mode: ModeLinked, CurrentSkillID: currentSkillID})
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := previewMarkdown.Convert([]byte(linked), &buf); err != nil {
		return "", fmt.Errorf("render: preview: %w", err)
	}
	return buf.String(), nil
}
