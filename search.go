package circlepress

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"
)

// DefaultSearchLimit caps the number of hits returned by a search.
const DefaultSearchLimit = 20

type indexedPost struct {
	Title   string
	Content string
	Excerpt string
	Author  string
	Tags    []string
}

// PostIndex is an in-memory full-text index over live posts.
type PostIndex struct {
	mu    sync.RWMutex
	index bleve.Index
}

// NewPostIndex creates an empty in-memory index.
func NewPostIndex() (*PostIndex, error) {
	idx, err := bleve.NewMemOnly(buildPostMapping())
	if err != nil {
		return nil, fmt.Errorf("create search index: %w", err)
	}
	return &PostIndex{index: idx}, nil
}

func buildPostMapping() mapping.IndexMapping {
	doc := bleve.NewDocumentMapping()
	doc.AddFieldMappingsAt("Title", bleve.NewTextFieldMapping())
	doc.AddFieldMappingsAt("Content", bleve.NewTextFieldMapping())
	doc.AddFieldMappingsAt("Excerpt", bleve.NewTextFieldMapping())
	doc.AddFieldMappingsAt("Author", bleve.NewTextFieldMapping())
	doc.AddFieldMappingsAt("Tags", bleve.NewTextFieldMapping())

	m := bleve.NewIndexMapping()
	m.DefaultMapping = doc
	return m
}

// Rebuild replaces the index contents with every live post.
func (i *PostIndex) Rebuild(ctx context.Context, s *Store) error {
	posts, err := s.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("list posts for index: %w", err)
	}
	idx, err := bleve.NewMemOnly(buildPostMapping())
	if err != nil {
		return fmt.Errorf("create search index: %w", err)
	}
	batch := idx.NewBatch()
	for _, p := range posts {
		if err := batch.Index(p.ID, toIndexed(p)); err != nil {
			return fmt.Errorf("batch index %s: %w", p.ID, err)
		}
	}
	if err := idx.Batch(batch); err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}

	i.mu.Lock()
	old := i.index
	i.index = idx
	i.mu.Unlock()
	return old.Close()
}

// Upsert indexes p, or removes it when it has been deleted.
func (i *PostIndex) Upsert(p Post) error {
	if p.Deleted() {
		return i.Remove(p.ID)
	}
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.index.Index(p.ID, toIndexed(p))
}

// Remove drops a post from the index.
func (i *PostIndex) Remove(id string) error {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.index.Delete(id)
}

// Search returns matching post IDs, best match first.
func (i *PostIndex) Search(query string, limit int) ([]string, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []string{}, nil
	}
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	req := bleve.NewSearchRequestOptions(bleve.NewMatchQuery(query), limit, 0, false)

	i.mu.RLock()
	res, err := i.index.Search(req)
	i.mu.RUnlock()
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	ids := make([]string, 0, len(res.Hits))
	for _, hit := range res.Hits {
		ids = append(ids, hit.ID)
	}
	return ids, nil
}

// Close releases the index.
func (i *PostIndex) Close() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.index.Close()
}

func toIndexed(p Post) indexedPost {
	return indexedPost{
		Title:   p.Title,
		Content: StripTags(p.Content),
		Excerpt: p.Excerpt,
		Author:  p.Author,
		Tags:    p.Tags,
	}
}
