package circlepress

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// ActiveLister lists live posts.
type ActiveLister interface {
	ListActive(ctx context.Context) ([]Post, error)
}

// PostCache is an in-memory cache of published posts with TTL. It backs the
// feed and sitemap, which are read far more often than posts change.
type PostCache struct {
	mu      sync.RWMutex
	posts   []Post
	fetched time.Time
	ttl     time.Duration
	store   ActiveLister
}

// NewPostCache creates a PostCache backed by the given store.
func NewPostCache(s ActiveLister, ttl time.Duration) *PostCache {
	return &PostCache{store: s, ttl: ttl}
}

func (c *PostCache) valid() bool {
	return c.posts != nil && time.Since(c.fetched) < c.ttl
}

// Invalidate clears the cache so the next read triggers a fresh load.
func (c *PostCache) Invalidate() {
	c.mu.Lock()
	c.posts = nil
	c.mu.Unlock()
}

func (c *PostCache) load(ctx context.Context) error {
	if c.valid() {
		return nil
	}
	active, err := c.store.ListActive(ctx)
	if err != nil {
		return err
	}
	published := make([]Post, 0, len(active))
	for _, p := range active {
		if p.Status == StatusPublished {
			published = append(published, p)
		}
	}
	sortByPublished(published)
	c.posts = published
	c.fetched = time.Now()
	return nil
}

// ensureLoaded returns cached posts after ensuring the cache is fresh.
// It tries a read lock first; only takes a write lock if a reload is needed.
func (c *PostCache) ensureLoaded(ctx context.Context) ([]Post, error) {
	c.mu.RLock()
	if c.valid() {
		posts := c.posts
		c.mu.RUnlock()
		return posts, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.load(ctx); err != nil {
		return nil, err
	}
	return c.posts, nil
}

// ListPublished returns published posts newest first, optionally filtered
// by tag.
func (c *PostCache) ListPublished(ctx context.Context, tag string) ([]Post, error) {
	posts, err := c.ensureLoaded(ctx)
	if err != nil {
		return nil, err
	}
	tag = strings.ToLower(strings.TrimSpace(tag))
	if tag == "" {
		return posts, nil
	}
	var filtered []Post
	for _, p := range posts {
		for _, t := range p.Tags {
			if strings.ToLower(t) == tag {
				filtered = append(filtered, p)
				break
			}
		}
	}
	return filtered, nil
}

func sortByPublished(posts []Post) {
	sort.SliceStable(posts, func(i, j int) bool {
		return posts[i].PublishedAt.After(posts[j].PublishedAt)
	})
}
