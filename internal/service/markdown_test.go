package service

import (
	"strings"
	"testing"
)

func TestRenderMarkdownSanitizesHTML(t *testing.T) {
	html, err := RenderMarkdown("**Isar** <script>alert(1)</script> https://munichweekly.art")
	if err != nil {
		t.Fatalf("render failed: %v", err)
	}
	if !strings.Contains(html, "<strong>Isar</strong>") {
		t.Fatalf("expected bold text, got %q", html)
	}
	if strings.Contains(html, "<script>") {
		t.Fatalf("script tag must be stripped, got %q", html)
	}
	if !strings.Contains(html, `href="https://munichweekly.art"`) {
		t.Fatalf("expected linkified url, got %q", html)
	}
}

func TestRenderMarkdownEmpty(t *testing.T) {
	html, err := RenderMarkdown("   ")
	if err != nil || html != "" {
		t.Fatalf("expected empty output, got %q, %v", html, err)
	}
}
