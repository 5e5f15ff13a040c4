package circlepress

import (
	"context"
	"testing"
)

func TestPostIndexSearch(t *testing.T) {
	idx, err := NewPostIndex()
	if err != nil {
		t.Fatalf("NewPostIndex failed: %v", err)
	}
	defer idx.Close()

	posts := []Post{
		{ID: "1", Title: "Garden day", Content: "<p>We planted tomatoes and basil.</p>", Author: "Ada"},
		{ID: "2", Title: "Board meeting", Content: "<p>Budget review and tomatoes for the fair.</p>", Author: "Grace"},
		{ID: "3", Title: "Choir practice", Content: "<p>Songs for the winter concert.</p>", Author: "Linus"},
	}
	for _, p := range posts {
		if err := idx.Upsert(p); err != nil {
			t.Fatalf("Upsert failed: %v", err)
		}
	}

	ids, err := idx.Search("tomatoes", 0)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("Search = %v, want 2 hits", ids)
	}

	ids, _ = idx.Search("concert", 0)
	if len(ids) != 1 || ids[0] != "3" {
		t.Errorf("Search concert = %v, want [3]", ids)
	}

	// Markup is not indexed.
	ids, _ = idx.Search("p", 0)
	if len(ids) != 0 {
		t.Errorf("Search p = %v, want none", ids)
	}

	if err := idx.Remove("3"); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	ids, _ = idx.Search("concert", 0)
	if len(ids) != 0 {
		t.Errorf("Search after remove = %v, want none", ids)
	}

	ids, err = idx.Search("   ", 0)
	if err != nil || len(ids) != 0 {
		t.Errorf("blank Search = %v, %v", ids, err)
	}
}

func TestPostIndexRebuild(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	keep, err := s.Create(ctx, newPostInput("Harvest Festival"))
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	gone, err := s.Create(ctx, newPostInput("Festival Cleanup"))
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if err := s.SoftDelete(ctx, gone.ID); err != nil {
		t.Fatalf("SoftDelete failed: %v", err)
	}

	idx, err := NewPostIndex()
	if err != nil {
		t.Fatalf("NewPostIndex failed: %v", err)
	}
	defer idx.Close()
	if err := idx.Rebuild(ctx, s); err != nil {
		t.Fatalf("Rebuild failed: %v", err)
	}
	ids, err := idx.Search("festival", 0)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(ids) != 1 || ids[0] != keep.ID {
		t.Errorf("Search = %v, want [%s]", ids, keep.ID)
	}
}
