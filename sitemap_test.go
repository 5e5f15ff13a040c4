package circlepress

import (
	"encoding/xml"
	"strings"
	"testing"
	"time"
)

func TestBuildSitemap(t *testing.T) {
	site := SiteConfig{URL: "https://circle.example.org", Timezone: "America/New_York"}
	posts := []Post{
		{
			Title:         "Garden Day",
			Slug:          "garden-day",
			FeaturedImage: "https://circle.example.org/uploads/2024/03/garden.jpg",
			UpdatedAt:     time.Date(2024, 3, 10, 2, 0, 0, 0, time.UTC),
		},
		{
			Title:         "Chess Club",
			Slug:          "chess-club",
			FeaturedImage: "/relative.jpg",
			UpdatedAt:     time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		},
	}

	sm := buildSitemap(site, posts)
	if len(sm.URLs) != 3 {
		t.Fatalf("got %d urls, want 3", len(sm.URLs))
	}
	if root := sm.URLs[0]; root.Loc != "https://circle.example.org" || root.LastMod != "2024-03-09" {
		t.Errorf("root = %+v, want newest lastmod 2024-03-09 in site zone", root)
	}
	garden := sm.URLs[1]
	if garden.Loc != "https://circle.example.org/blog/garden-day/" || garden.LastMod != "2024-03-09" {
		t.Errorf("garden = %+v", garden)
	}
	if len(garden.Images) != 1 || garden.Images[0].Title != "Garden Day" {
		t.Errorf("garden images = %+v", garden.Images)
	}
	if len(sm.URLs[2].Images) != 0 {
		t.Errorf("relative image should be skipped: %+v", sm.URLs[2].Images)
	}

	out, err := xml.Marshal(sm)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	for _, want := range []string{`xmlns:image="` + sitemapImageNS + `"`, "<image:image>", "<image:loc>https://circle.example.org/uploads/2024/03/garden.jpg</image:loc>"} {
		if !strings.Contains(string(out), want) {
			t.Errorf("sitemap missing %q:\n%s", want, out)
		}
	}
}

func TestBuildSitemapEmpty(t *testing.T) {
	sm := buildSitemap(SiteConfig{URL: "https://circle.example.org"}, nil)
	if len(sm.URLs) != 1 || sm.URLs[0].LastMod != "" {
		t.Errorf("urls = %+v, want root only without lastmod", sm.URLs)
	}
}
