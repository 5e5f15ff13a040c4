package circlepress

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"
)

// Wording used when a digest request leaves subject or introduction blank.
const (
	DefaultDigestSubject      = "This Week in Our Community"
	DefaultDigestIntroduction = "Here are the latest stories from our community. Catch up on what you missed and join the conversation."
)

// SnippetLength is the default number of characters kept from a post body
// when it has no excerpt.
const SnippetLength = 200

// PublishedLister resolves a digest selection to posts.
type PublishedLister interface {
	ListPublished(ctx context.Context, sel DigestSelection) ([]Post, error)
}

// DigestComposer resolves posts and renders them into digest emails.
type DigestComposer struct {
	posts         PublishedLister
	site          SiteConfig
	subject       string
	introduction  string
	snippetLength int
}

// NewDigestComposer builds a composer. Blank wording in digest falls back
// to the package defaults.
func NewDigestComposer(posts PublishedLister, site SiteConfig, digest DigestConfig) *DigestComposer {
	c := &DigestComposer{
		posts:         posts,
		site:          site,
		subject:       strings.TrimSpace(digest.Subject),
		introduction:  strings.TrimSpace(digest.Introduction),
		snippetLength: digest.SnippetLength,
	}
	if c.subject == "" {
		c.subject = DefaultDigestSubject
	}
	if c.introduction == "" {
		c.introduction = DefaultDigestIntroduction
	}
	if c.snippetLength <= 0 {
		c.snippetLength = SnippetLength
	}
	return c
}

// Resolve returns the published, live posts a selection names, newest
// first. An explicit empty ID list resolves to no posts without a query.
func (c *DigestComposer) Resolve(ctx context.Context, sel DigestSelection) ([]Post, error) {
	if !sel.ByRange && len(FilterEmpty(sel.PostIDs)) == 0 {
		return []Post{}, nil
	}
	if !sel.ByRange {
		sel.PostIDs = FilterEmpty(sel.PostIDs)
	}
	posts, err := c.posts.ListPublished(ctx, sel)
	if err != nil {
		return nil, fmt.Errorf("resolve digest posts: %w", err)
	}
	return posts, nil
}

// Render produces one self-contained HTML document for posts.
func (c *DigestComposer) Render(ctx context.Context, posts []Post, subject, introduction string) (string, error) {
	view := c.view(posts, subject, introduction)
	var buf bytes.Buffer
	if err := digestEmail(view).Render(ctx, &buf); err != nil {
		return "", fmt.Errorf("render digest: %w", err)
	}
	return buf.String(), nil
}

// Compose resolves the selection and renders the email addressed to to.
func (c *DigestComposer) Compose(ctx context.Context, to string, sel DigestSelection, subject, introduction string) (ComposedEmail, error) {
	posts, err := c.Resolve(ctx, sel)
	if err != nil {
		return ComposedEmail{}, err
	}
	html, err := c.Render(ctx, posts, subject, introduction)
	if err != nil {
		return ComposedEmail{}, err
	}
	return ComposedEmail{
		To:           strings.TrimSpace(to),
		Subject:      c.subjectOr(subject),
		Introduction: c.introductionOr(introduction),
		HTML:         html,
		Posts:        posts,
	}, nil
}

// Latest renders the digest of posts published in the last days days,
// counted in whole calendar days of the site's zone.
func (c *DigestComposer) Latest(ctx context.Context, now time.Time, days int) (string, []Post, error) {
	if days <= 0 {
		days = 7
	}
	loc := c.location()
	_, end := DayBounds(now, loc)
	start, _ := DayBounds(now.In(loc).AddDate(0, 0, -(days - 1)), loc)
	posts, err := c.Resolve(ctx, SelectRange(start, end))
	if err != nil {
		return "", nil, err
	}
	html, err := c.Render(ctx, posts, "", "")
	if err != nil {
		return "", nil, err
	}
	return html, posts, nil
}

func (c *DigestComposer) subjectOr(s string) string {
	if s = strings.TrimSpace(s); s != "" {
		return s
	}
	return c.subject
}

func (c *DigestComposer) introductionOr(s string) string {
	if s = strings.TrimSpace(s); s != "" {
		return s
	}
	return c.introduction
}

func (c *DigestComposer) location() *time.Location {
	loc, err := LoadZone(c.site.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func (c *DigestComposer) view(posts []Post, subject, introduction string) digestView {
	v := digestView{
		SiteName:     c.site.Name,
		SiteURL:      c.site.URL,
		Subject:      c.subjectOr(subject),
		Introduction: c.introductionOr(introduction),
		Year:         time.Now().In(c.location()).Year(),
	}
	for _, p := range posts {
		v.Cards = append(v.Cards, digestCard{
			Title:   p.Title,
			URL:     BuildURL(c.site.URL, "blog", p.Slug),
			Date:    FormatDisplayDate(p.PublishedAt, c.site.Timezone),
			Author:  p.Author,
			Snippet: Snippet(p, c.snippetLength),
			Image:   p.FeaturedImage,
		})
	}
	return v
}

// Snippet is the excerpt when present, otherwise the post's text content
// truncated to limit characters.
func Snippet(p Post, limit int) string {
	if e := strings.TrimSpace(p.Excerpt); e != "" {
		return e
	}
	return Truncate(StripTags(p.Content), limit)
}
