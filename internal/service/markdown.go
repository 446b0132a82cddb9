package service

import (
	"bytes"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

var (
	markdownEngine = goldmark.New(
		goldmark.WithExtensions(extension.GFM, extension.Linkify, extension.Table),
		goldmark.WithRendererOptions(html.WithHardWraps(), html.WithXHTML()),
	)
	htmlSanitizer = bluemonday.UGCPolicy()
)

// RenderMarkdown 将 Markdown 转换为经过清洗的 HTML，空内容返回空字符串。
func RenderMarkdown(content string) (string, error) {
	if strings.TrimSpace(content) == "" {
		return "", nil
	}
	var buf bytes.Buffer
	if err := markdownEngine.Convert([]byte(content), &buf); err != nil {
		return "", err
	}
	return htmlSanitizer.Sanitize(buf.String()), nil
}

// renderMarkdownOrEscape falls back to escaped plain text if conversion fails.
func renderMarkdownOrEscape(content string) string {
	rendered, err := RenderMarkdown(content)
	if err != nil {
		return htmlSanitizer.Sanitize(content)
	}
	return rendered
}
