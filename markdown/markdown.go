// Package markdown formats the small subset of Markdown editors use in
// digest introductions into email-safe HTML. Styles are inlined because
// mail clients drop stylesheets.
package markdown

import (
	"bytes"
	"context"
	"html"
	"io"
	"net/url"
	"regexp"
	"strings"

	"github.com/a-h/templ"
)

// LinkStyle is applied to every rendered link.
const LinkStyle = "color:#2563eb;text-decoration:underline;"

var (
	reBold             = regexp.MustCompile(`\*\*(.+?)\*\*`)
	reBoldUnderscore   = regexp.MustCompile(`__(.+?)__`)
	reItalic           = regexp.MustCompile(`\*([^*]+)\*`)
	reItalicUnderscore = regexp.MustCompile(`_([^_]+)_`)
	reLink             = regexp.MustCompile(`\[(.*?)\]\((.*?)\)`)
	reOrderedList      = regexp.MustCompile(`^\d+\.\s`)
)

// Markdown returns a templ.Component that renders md as HTML.
func Markdown(md string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var buf bytes.Buffer
		RenderMarkdown(&buf, md)
		_, err := w.Write(buf.Bytes())
		return err
	})
}

type block int

const (
	blockNone block = iota
	blockPara
	blockList
	blockOrdered
	blockQuote
)

var closers = map[block]string{
	blockPara:    "</p>",
	blockList:    "</ul>",
	blockOrdered: "</ol>",
	blockQuote:   "</blockquote>",
}

// RenderMarkdown writes the HTML representation of md to buf. Supported:
// paragraphs, ## and ### headings, - and 1. lists, > quotes, --- rules, and
// inline bold, italic and links. Everything else is escaped text.
func RenderMarkdown(buf *bytes.Buffer, md string) {
	open := blockNone
	enter := func(b block, tag string) bool {
		if open == b {
			return false
		}
		buf.WriteString(closers[open])
		open = b
		buf.WriteString(tag)
		return true
	}
	closeOpen := func() {
		buf.WriteString(closers[open])
		open = blockNone
	}

	for _, raw := range strings.Split(md, "\n") {
		line := strings.TrimSpace(strings.TrimRight(raw, "\r"))
		switch {
		case line == "":
			closeOpen()
		case strings.HasPrefix(line, "---"):
			closeOpen()
			buf.WriteString("<hr/>")
		case strings.HasPrefix(line, "### "):
			closeOpen()
			buf.WriteString("<h3>" + FormatInline(line[4:]) + "</h3>")
		case strings.HasPrefix(line, "## "), strings.HasPrefix(line, "# "):
			closeOpen()
			buf.WriteString("<h2>" + FormatInline(strings.TrimLeft(line, "# ")) + "</h2>")
		case strings.HasPrefix(line, "- "), strings.HasPrefix(line, "* "):
			enter(blockList, "<ul>")
			buf.WriteString("<li>" + FormatInline(line[2:]) + "</li>")
		case reOrderedList.MatchString(line):
			enter(blockOrdered, "<ol>")
			buf.WriteString("<li>" + FormatInline(reOrderedList.ReplaceAllString(line, "")) + "</li>")
		case strings.HasPrefix(line, "> "):
			if !enter(blockQuote, "<blockquote>") {
				buf.WriteString("<br/>")
			}
			buf.WriteString(FormatInline(line[2:]))
		default:
			if !enter(blockPara, "<p>") {
				buf.WriteString(" ")
			}
			buf.WriteString(FormatInline(line))
		}
	}
	closeOpen()
}

// FormatInline escapes s and applies bold, italic and link formatting.
func FormatInline(s string) string {
	escaped := html.EscapeString(strings.TrimSpace(s))
	escaped = reLink.ReplaceAllStringFunc(escaped, func(m string) string {
		match := reLink.FindStringSubmatch(m)
		href := SafeURL(match[2])
		if href == "" {
			return match[1]
		}
		return `<a href="` + href + `" style="` + LinkStyle + `">` + match[1] + `</a>`
	})
	return applyOutsideTags(escaped, func(seg string) string {
		seg = reBold.ReplaceAllString(seg, "<strong>$1</strong>")
		seg = reBoldUnderscore.ReplaceAllString(seg, "<strong>$1</strong>")
		seg = reItalic.ReplaceAllString(seg, "<em>$1</em>")
		seg = reItalicUnderscore.ReplaceAllString(seg, "<em>$1</em>")
		return seg
	})
}

// applyOutsideTags applies fn only to text between HTML tags so formatting
// never touches attribute values such as hrefs.
func applyOutsideTags(s string, fn func(string) string) string {
	var b strings.Builder
	for len(s) > 0 {
		lt := strings.Index(s, "<")
		if lt < 0 {
			b.WriteString(fn(s))
			break
		}
		b.WriteString(fn(s[:lt]))
		gt := strings.Index(s[lt:], ">")
		if gt < 0 {
			b.WriteString(s[lt:])
			break
		}
		b.WriteString(s[lt : lt+gt+1])
		s = s[lt+gt+1:]
	}
	return b.String()
}

// SafeURL returns an attribute-escaped URL, or "" when the scheme is not
// one a mail client should follow.
func SafeURL(raw string) string {
	val := strings.TrimSpace(html.UnescapeString(raw))
	if val == "" {
		return ""
	}
	parsed, err := url.Parse(val)
	if err != nil || parsed.Scheme == "" {
		return ""
	}
	switch strings.ToLower(parsed.Scheme) {
	case "http", "https", "mailto":
		return html.EscapeString(val)
	}
	return ""
}
