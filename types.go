package circlepress

import "time"

// Status is the lifecycle state of a post. Any status may move to any other.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusPublished Status = "published"
	StatusArchived  Status = "archived"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusPublished, StatusArchived:
		return true
	}
	return false
}

// Post is the core content type stored in SQLite.
type Post struct {
	ID            string     `json:"id"`
	Title         string     `json:"title"`
	Slug          string     `json:"slug"`
	Content       string     `json:"content"`
	Excerpt       string     `json:"excerpt,omitempty"`
	FeaturedImage string     `json:"featuredImage,omitempty"`
	Author        string     `json:"author"`
	Status        Status     `json:"status"`
	Tags          []string   `json:"tags"`
	PublishedAt   time.Time  `json:"publishedAt"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
	DeletedAt     *time.Time `json:"deletedAt,omitempty"`
	Version       int        `json:"version"`
}

// Deleted reports whether the post has been soft-deleted.
func (p Post) Deleted() bool {
	return p.DeletedAt != nil
}

// PostInput carries the writable fields of a post. Nil fields are left
// untouched on update. Version, when non-zero, must match the stored version.
type PostInput struct {
	Title         *string    `json:"title"`
	Slug          *string    `json:"slug"`
	Content       *string    `json:"content"`
	Excerpt       *string    `json:"excerpt"`
	FeaturedImage *string    `json:"featuredImage"`
	Author        *string    `json:"author"`
	Status        *Status    `json:"status"`
	Tags          []string   `json:"tags"`
	PublishedAt   *time.Time `json:"publishedAt"`
	Version       int        `json:"version"`
}

// HistoryEntry records one field change made by one update.
type HistoryEntry struct {
	ID        int64     `json:"id"`
	PostID    string    `json:"postId"`
	Field     string    `json:"field"`
	OldValue  *string   `json:"oldValue"`
	NewValue  *string   `json:"newValue"`
	ChangedAt time.Time `json:"changedAt"`
}

// GeneratedDraft is a structured draft produced from a transcript. It is
// never stored on its own; callers use it to pre-fill a new post.
type GeneratedDraft struct {
	Title   string   `json:"title"`
	Content string   `json:"content"`
	Excerpt string   `json:"excerpt"`
	Tags    []string `json:"tags"`
}

// DigestSelection picks posts for a digest: either explicit IDs or an
// inclusive publish-date range.
type DigestSelection struct {
	PostIDs []string
	Start   time.Time
	End     time.Time
	ByRange bool
}

// SelectIDs builds a selection of explicit post IDs.
func SelectIDs(ids ...string) DigestSelection {
	return DigestSelection{PostIDs: ids}
}

// SelectRange builds a selection of posts published within [start, end].
func SelectRange(start, end time.Time) DigestSelection {
	return DigestSelection{Start: start, End: end, ByRange: true}
}

// ComposedEmail is a rendered digest ready to be handed to the transport.
type ComposedEmail struct {
	To           string
	Subject      string
	Introduction string
	HTML         string
	Posts        []Post
}

// DispatchResult reports the outcome of a digest send.
type DispatchResult struct {
	ID           string
	Confirmation NotifyResult
}

// NotifyResult is the outcome of a best-effort side-channel email. Attempted
// is false when no confirmation address is configured.
type NotifyResult struct {
	Attempted bool
	ID        string
	Err       error
}

// OK reports whether the notification was sent or not needed.
func (r NotifyResult) OK() bool {
	return r.Err == nil
}
