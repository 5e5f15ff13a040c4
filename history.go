package circlepress

import (
	"encoding/json"
	"time"
)

// Tracked field names, as they appear in history entries.
const (
	FieldTitle         = "title"
	FieldSlug          = "slug"
	FieldContent       = "content"
	FieldExcerpt       = "excerpt"
	FieldFeaturedImage = "featuredImage"
	FieldAuthor        = "author"
	FieldStatus        = "status"
	FieldTags          = "tags"
)

// TrackedFields lists the post fields audited on every update.
var TrackedFields = []string{
	FieldTitle,
	FieldSlug,
	FieldContent,
	FieldExcerpt,
	FieldFeaturedImage,
	FieldAuthor,
	FieldStatus,
	FieldTags,
}

// Diff compares two snapshots of a post and returns one entry per tracked
// field whose stringified value changed. Unknown field names are ignored.
func Diff(before, after Post, fields []string, at time.Time) []HistoryEntry {
	var entries []HistoryEntry
	for _, field := range fields {
		oldVal, ok := fieldValue(before, field)
		if !ok {
			continue
		}
		newVal, _ := fieldValue(after, field)
		if sameValue(oldVal, newVal) {
			continue
		}
		entries = append(entries, HistoryEntry{
			PostID:    after.ID,
			Field:     field,
			OldValue:  oldVal,
			NewValue:  newVal,
			ChangedAt: at,
		})
	}
	return entries
}

// fieldValue returns the stringified value of a tracked field, with empty
// optional values normalized to nil.
func fieldValue(p Post, field string) (*string, bool) {
	switch field {
	case FieldTitle:
		return &p.Title, true
	case FieldSlug:
		return &p.Slug, true
	case FieldContent:
		return &p.Content, true
	case FieldExcerpt:
		return optional(p.Excerpt), true
	case FieldFeaturedImage:
		return optional(p.FeaturedImage), true
	case FieldAuthor:
		return &p.Author, true
	case FieldStatus:
		s := string(p.Status)
		return &s, true
	case FieldTags:
		s := encodeTags(p.Tags)
		return &s, true
	}
	return nil, false
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func sameValue(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// encodeTags is the single serialized form of a tag list, used both for
// storage and for history comparison.
func encodeTags(tags []string) string {
	if len(tags) == 0 {
		return "[]"
	}
	b, err := json.Marshal(tags)
	if err != nil {
		return "[]"
	}
	return string(b)
}

func decodeTags(s string) []string {
	var tags []string
	if s == "" {
		return []string{}
	}
	if err := json.Unmarshal([]byte(s), &tags); err != nil || tags == nil {
		return []string{}
	}
	return tags
}
