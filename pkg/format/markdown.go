package format

import (
	"bytes"
	"fmt"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// Raw HTML in assistant text is not rendered.
var markdown = goldmark.New(goldmark.WithExtensions(extension.GFM))

// RenderMarkdown converts assistant text to HTML. Quick-option directives
// are stripped first; the labels are returned alongside.
func RenderMarkdown(content string) (html string, options []string, err error) {
	text, options := ParseOptions(content)
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(text), &buf); err != nil {
		return "", options, fmt.Errorf("render markdown: %w", err)
	}
	return buf.String(), options, nil
}
