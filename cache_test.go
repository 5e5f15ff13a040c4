package circlepress

import (
	"context"
	"testing"
	"time"
)

type countingLister struct {
	posts []Post
	calls int
}

func (l *countingLister) ListActive(context.Context) ([]Post, error) {
	l.calls++
	return l.posts, nil
}

func TestPostCacheFiltersAndCaches(t *testing.T) {
	day := func(d int) time.Time { return time.Date(2024, 1, d, 0, 0, 0, 0, time.UTC) }
	lister := &countingLister{posts: []Post{
		{ID: "a", Status: StatusPublished, PublishedAt: day(1), Tags: []string{"garden"}},
		{ID: "b", Status: StatusDraft, PublishedAt: day(5)},
		{ID: "c", Status: StatusPublished, PublishedAt: day(3), Tags: []string{"music"}},
		{ID: "d", Status: StatusArchived, PublishedAt: day(4)},
	}}
	cache := NewPostCache(lister, time.Minute)
	ctx := context.Background()

	posts, err := cache.ListPublished(ctx, "")
	if err != nil {
		t.Fatalf("ListPublished failed: %v", err)
	}
	if len(posts) != 2 || posts[0].ID != "c" || posts[1].ID != "a" {
		t.Errorf("posts = %+v, want [c a]", posts)
	}

	tagged, _ := cache.ListPublished(ctx, " Garden ")
	if len(tagged) != 1 || tagged[0].ID != "a" {
		t.Errorf("tagged = %+v, want [a]", tagged)
	}
	if lister.calls != 1 {
		t.Errorf("store calls = %d, want 1", lister.calls)
	}

	cache.Invalidate()
	if _, err := cache.ListPublished(ctx, ""); err != nil {
		t.Fatalf("ListPublished failed: %v", err)
	}
	if lister.calls != 2 {
		t.Errorf("store calls after invalidate = %d, want 2", lister.calls)
	}
}
