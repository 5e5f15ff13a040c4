package circlepress

import (
	"context"
	"io"
	"strconv"

	"github.com/a-h/templ"

	"github.com/eringen/circlepress/markdown"
)

type digestView struct {
	SiteName     string
	SiteURL      string
	Subject      string
	Introduction string
	Year         int
	Cards        []digestCard
}

type digestCard struct {
	Title   string
	URL     string
	Date    string
	Author  string
	Snippet string
	Image   string
}

// Inline styles; mail clients ignore <style> blocks inconsistently.
const (
	styleBody    = "margin:0;padding:0;background:#f4f4f5;font-family:Helvetica,Arial,sans-serif;color:#18181b;"
	styleWrap    = "max-width:600px;margin:0 auto;background:#ffffff;"
	styleHeader  = "padding:32px 24px;background:#18181b;color:#ffffff;"
	styleIntro   = "padding:24px;font-size:16px;line-height:1.6;"
	styleCard    = "margin:0 24px 16px;padding:16px;border:1px solid #e4e4e7;border-radius:8px;"
	styleTitle   = "color:#18181b;text-decoration:none;font-size:18px;font-weight:bold;"
	styleMeta    = "margin:4px 0 8px;font-size:13px;color:#71717a;"
	styleSnippet = "margin:0;font-size:15px;line-height:1.5;"
	styleCTA     = "padding:24px;text-align:center;"
	styleButton  = "display:inline-block;padding:12px 24px;background:#2563eb;color:#ffffff;text-decoration:none;border-radius:6px;"
	styleFooter  = "padding:16px 24px;font-size:12px;color:#a1a1aa;text-align:center;"
)

func digestEmail(v digestView) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		e := &htmlWriter{w: w}
		e.raw(`<!DOCTYPE html><html lang="en"><head><meta charset="utf-8"/>`)
		e.raw(`<meta name="viewport" content="width=device-width, initial-scale=1"/><title>`)
		e.text(v.Subject)
		e.raw(`</title></head><body style="` + styleBody + `"><div style="` + styleWrap + `">`)

		e.raw(`<div style="` + styleHeader + `"><p style="margin:0;font-size:13px;opacity:.7;">`)
		e.text(v.SiteName)
		e.raw(`</p><h1 style="margin:8px 0 0;font-size:26px;">`)
		e.text(v.Subject)
		e.raw(`</h1></div>`)

		e.raw(`<div style="` + styleIntro + `">`)
		if e.err == nil {
			e.err = markdown.Markdown(v.Introduction).Render(ctx, w)
		}
		e.raw(`</div>`)

		for _, card := range v.Cards {
			if e.err == nil {
				e.err = digestCardComponent(card).Render(ctx, w)
			}
		}

		e.raw(`<div style="` + styleCTA + `"><p style="margin:0 0 16px;">Have a story to share? We would love to hear from you.</p>`)
		e.raw(`<a href="`)
		e.text(v.SiteURL)
		e.raw(`" style="` + styleButton + `">Visit `)
		e.text(v.SiteName)
		e.raw(`</a></div>`)

		e.raw(`<div style="` + styleFooter + `">&copy; ` + strconv.Itoa(v.Year) + ` `)
		e.text(v.SiteName)
		e.raw(`. You are receiving this because you subscribed to community updates.</div>`)
		e.raw(`</div></body></html>`)
		return e.err
	})
}

func digestCardComponent(c digestCard) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		e := &htmlWriter{w: w}
		e.raw(`<div style="` + styleCard + `">`)
		if src := markdown.SafeURL(c.Image); src != "" {
			e.raw(`<img src="` + src + `" alt="" width="552" style="width:100%;height:auto;border-radius:4px;margin-bottom:12px;"/>`)
		}
		e.raw(`<a href="`)
		e.text(c.URL)
		e.raw(`" style="` + styleTitle + `">`)
		e.text(c.Title)
		e.raw(`</a><p style="` + styleMeta + `">`)
		e.text(c.Date)
		if c.Author != "" {
			e.raw(` &middot; `)
			e.text(c.Author)
		}
		e.raw(`</p><p style="` + styleSnippet + `">`)
		e.text(c.Snippet)
		e.raw(`</p></div>`)
		return e.err
	})
}

// htmlWriter keeps the first write error so component bodies read linearly.
type htmlWriter struct {
	w   io.Writer
	err error
}

func (h *htmlWriter) raw(s string) {
	if h.err == nil {
		_, h.err = io.WriteString(h.w, s)
	}
}

func (h *htmlWriter) text(s string) {
	h.raw(templ.EscapeString(s))
}
