package web

import (
	"bytes"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

var (
	mdRenderer    goldmark.Markdown
	htmlSanitizer *bluemonday.Policy

	// shortcodes maps the GitHub emoji shortcodes used by test report gists
	// to their characters; goldmark does not expand them.
	shortcodes = strings.NewReplacer(
		":red_circle:", "\U0001F534",
		":green_circle:", "\U0001F7E2",
		":yellow_circle:", "\U0001F7E1",
		":white_circle:", "⚪",
		":x:", "❌",
		":white_check_mark:", "✅",
		":warning:", "⚠️",
	)
)

func init() {
	mdRenderer = goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithRendererOptions(html.WithUnsafe()),
	)

	htmlSanitizer = bluemonday.UGCPolicy()
}

// RenderMarkdown converts a gist markdown report to sanitized HTML.
// Returns empty string for empty input.
func RenderMarkdown(src string) string {
	if src == "" {
		return ""
	}

	src = shortcodes.Replace(src)

	var buf bytes.Buffer
	if err := mdRenderer.Convert([]byte(src), &buf); err != nil {
		return htmlSanitizer.Sanitize(src)
	}

	return htmlSanitizer.Sanitize(buf.String())
}
