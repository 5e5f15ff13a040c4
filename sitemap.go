package circlepress

import (
	"encoding/xml"
	"net/http"
	"net/url"
	"time"

	"github.com/labstack/echo/v4"
)

const (
	sitemapNS      = "http://www.sitemaps.org/schemas/sitemap/0.9"
	sitemapImageNS = "http://www.google.com/schemas/sitemap-image/1.1"
)

type sitemapURLSet struct {
	XMLName xml.Name     `xml:"urlset"`
	XMLNS   string       `xml:"xmlns,attr"`
	ImageNS string       `xml:"xmlns:image,attr"`
	URLs    []sitemapURL `xml:"url"`
}

type sitemapURL struct {
	Loc     string         `xml:"loc"`
	LastMod string         `xml:"lastmod,omitempty"`
	Images  []sitemapImage `xml:"image:image"`
}

type sitemapImage struct {
	Loc   string `xml:"image:loc"`
	Title string `xml:"image:title,omitempty"`
}

// buildSitemap lists the site root and every published post. The root's
// lastmod is the newest post change; featured images are attached to their
// post so uploaded artwork gets indexed with it.
func buildSitemap(site SiteConfig, posts []Post) sitemapURLSet {
	var newest time.Time
	urls := make([]sitemapURL, 0, len(posts)+1)
	urls = append(urls, sitemapURL{Loc: BuildURL(site.URL)})
	for _, p := range posts {
		if p.UpdatedAt.After(newest) {
			newest = p.UpdatedAt
		}
		u := sitemapURL{
			Loc:     BuildURL(site.URL, "blog", p.Slug),
			LastMod: InZone(p.UpdatedAt, site.Timezone).Format(DateLayout),
		}
		if isAbsoluteHTTP(p.FeaturedImage) {
			u.Images = []sitemapImage{{Loc: p.FeaturedImage, Title: p.Title}}
		}
		urls = append(urls, u)
	}
	if !newest.IsZero() {
		urls[0].LastMod = InZone(newest, site.Timezone).Format(DateLayout)
	}
	return sitemapURLSet{XMLNS: sitemapNS, ImageNS: sitemapImageNS, URLs: urls}
}

// isAbsoluteHTTP reports whether raw is an absolute http(s) URL, the only
// form sitemap consumers accept.
func isAbsoluteHTTP(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return false
	}
	return u.Scheme == "http" || u.Scheme == "https"
}

func (a *App) renderSitemap(c echo.Context, posts []Post) error {
	sitemap := buildSitemap(a.Config.Site, posts)
	c.Response().Header().Set(echo.HeaderContentType, "application/xml; charset=utf-8")
	c.Response().WriteHeader(http.StatusOK)
	c.Response().Write([]byte(xml.Header))
	return xml.NewEncoder(c.Response()).Encode(sitemap)
}
