package markdown

import (
	"bytes"
	"context"
	"strings"
	"testing"
)

func render(md string) string {
	var buf bytes.Buffer
	RenderMarkdown(&buf, md)
	return buf.String()
}

func TestFormatInline(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"**bold**", "<strong>bold</strong>"},
		{"__bold__", "<strong>bold</strong>"},
		{"*italic*", "<em>italic</em>"},
		{"text _italic_ more", "text <em>italic</em> more"},
		{"**bold *italic* text**", "<strong>bold <em>italic</em> text</strong>"},
		{"a < b & c", "a &lt; b &amp; c"},
		{"[site](https://example.com)", `<a href="https://example.com" style="` + LinkStyle + `">site</a>`},
		{"[x](javascript:void)", "x"},
	}
	for _, tt := range tests {
		if got := FormatInline(tt.input); got != tt.expected {
			t.Errorf("FormatInline(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}

func TestFormatInlineLinkUnderscoresUntouched(t *testing.T) {
	got := FormatInline("[docs](https://example.com/some_long_path_name)")
	if !strings.Contains(got, `href="https://example.com/some_long_path_name"`) {
		t.Errorf("href was altered: %q", got)
	}
}

func TestRenderMarkdownBlocks(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"paragraph", "Hello\nworld", "<p>Hello world</p>"},
		{"two paragraphs", "One\n\nTwo", "<p>One</p><p>Two</p>"},
		{"heading", "## This week", "<h2>This week</h2>"},
		{"h3", "### Small", "<h3>Small</h3>"},
		{"list", "- a\n- b", "<ul><li>a</li><li>b</li></ul>"},
		{"ordered", "1. a\n2. b", "<ol><li>a</li><li>b</li></ol>"},
		{"quote", "> hi\n> there", "<blockquote>hi<br/>there</blockquote>"},
		{"rule", "---", "<hr/>"},
		{"para then list", "Intro\n- item", "<p>Intro</p><ul><li>item</li></ul>"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		if got := render(tt.input); got != tt.expected {
			t.Errorf("%s: got %q, want %q", tt.name, got, tt.expected)
		}
	}
}

func TestRenderMarkdownEscapesHTML(t *testing.T) {
	got := render("<script>alert(1)</script>")
	if strings.Contains(got, "<script>") {
		t.Errorf("script tag not escaped: %q", got)
	}
}

func TestMarkdownComponent(t *testing.T) {
	var buf bytes.Buffer
	if err := Markdown("**hi**").Render(context.Background(), &buf); err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if buf.String() != "<p><strong>hi</strong></p>" {
		t.Errorf("got %q", buf.String())
	}
}
