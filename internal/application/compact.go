package application

import (
	"bytes"
	"html"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	gmhtml "github.com/yuin/goldmark/renderer/html"
)

var (
	compactRenderer goldmark.Markdown
	compactPolicy   *bluemonday.Policy
	extraBlankLines = regexp.MustCompile(`\n{3,}`)
)

func init() {
	compactRenderer = goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithRendererOptions(gmhtml.WithUnsafe()),
	)

	compactPolicy = bluemonday.StrictPolicy()
}

// CompactReadme reduces a markdown README to its readable text: markdown
// syntax, raw HTML (badges, aligned banners, images) and runs of blank lines
// are removed. Returns empty string for empty input.
func CompactReadme(src string) string {
	if src == "" {
		return ""
	}

	rendered := src
	var buf bytes.Buffer
	if err := compactRenderer.Convert([]byte(src), &buf); err == nil {
		rendered = buf.String()
	}

	text := html.UnescapeString(compactPolicy.Sanitize(rendered))

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	text = strings.Join(lines, "\n")

	return strings.TrimSpace(extraBlankLines.ReplaceAllString(text, "\n\n"))
}
