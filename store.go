package circlepress

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// timeLayout is fixed-width so that text comparison in SQL orders correctly.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

const postColumns = `id, title, slug, content, excerpt, featured_image, author, status, tags,
	published_at, created_at, updated_at, deleted_at, version`

// Store wraps a SQLite database and provides the post and history operations.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// NewStore opens (or creates) the SQLite database at path, ensures the data
// directory exists, and runs schema migrations.
func NewStore(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}
	// Pragmas go in the DSN so every pooled connection gets them. WAL lets
	// readers run during a write; busy_timeout makes writers wait instead of
	// failing with SQLITE_BUSY; immediate transactions take the write lock
	// up front so read-then-write updates cannot deadlock.
	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(1)&_txlock=immediate"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(4)
	s := &Store{db: db, now: time.Now}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) ensureSchema() error {
	_, err := s.db.Exec(`
CREATE TABLE IF NOT EXISTS posts (
    id TEXT PRIMARY KEY,
    title TEXT NOT NULL,
    slug TEXT NOT NULL,
    content TEXT NOT NULL,
    excerpt TEXT NOT NULL DEFAULT '',
    featured_image TEXT NOT NULL DEFAULT '',
    author TEXT NOT NULL,
    status TEXT NOT NULL DEFAULT 'draft',
    tags TEXT NOT NULL DEFAULT '[]',
    published_at TEXT NOT NULL,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL,
    deleted_at TEXT
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_posts_live_slug ON posts(slug) WHERE deleted_at IS NULL;
CREATE INDEX IF NOT EXISTS idx_posts_published ON posts(status, published_at);

CREATE TABLE IF NOT EXISTS post_history (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    post_id TEXT NOT NULL REFERENCES posts(id),
    field TEXT NOT NULL,
    old_value TEXT,
    new_value TEXT,
    changed_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_post_history_post ON post_history(post_id, changed_at);
`)
	if err != nil {
		return err
	}
	if _, err := s.db.Exec(`ALTER TABLE posts ADD COLUMN version INTEGER NOT NULL DEFAULT 1;`); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "duplicate column") {
			return nil
		}
		return err
	}
	return nil
}

// Create inserts a new post. A missing slug is derived from the title and
// missing timestamps default to now.
func (s *Store) Create(ctx context.Context, in PostInput) (Post, error) {
	now := s.now().UTC()
	p := Post{
		ID:          uuid.NewString(),
		Status:      StatusDraft,
		Tags:        []string{},
		PublishedAt: now,
		CreatedAt:   now,
		UpdatedAt:   now,
		Version:     1,
	}
	applyInput(&p, in)
	if p.Slug == "" {
		p.Slug = Slugify(p.Title)
	}
	if err := validatePost(p); err != nil {
		return Post{}, err
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO posts (`+postColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NULL, ?)`,
		p.ID, p.Title, p.Slug, p.Content, p.Excerpt, p.FeaturedImage, p.Author, string(p.Status), encodeTags(p.Tags),
		formatTime(p.PublishedAt), formatTime(p.CreatedAt), formatTime(p.UpdatedAt), p.Version)
	if err != nil {
		if isUniqueViolation(err) {
			return Post{}, fmt.Errorf("%w: slug %q is already in use", ErrConflict, p.Slug)
		}
		return Post{}, fmt.Errorf("insert post: %w", err)
	}
	return p, nil
}

// Update applies in to the live post id and records one history entry per
// changed tracked field. The post row and its history are written in one
// transaction. An omitted slug keeps the existing one.
func (s *Store) Update(ctx context.Context, id string, in PostInput) (Post, []HistoryEntry, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Post{}, nil, fmt.Errorf("begin update: %w", err)
	}
	defer tx.Rollback()

	before, err := getPost(ctx, tx, id)
	if err != nil {
		return Post{}, nil, err
	}
	if in.Version != 0 && in.Version != before.Version {
		return Post{}, nil, fmt.Errorf("%w: post %s is at version %d, not %d", ErrConflict, id, before.Version, in.Version)
	}

	after := before
	after.Tags = slices.Clone(before.Tags)
	applyInput(&after, in)
	if err := validatePost(after); err != nil {
		return Post{}, nil, err
	}
	now := s.now().UTC()
	after.UpdatedAt = now
	after.Version = before.Version + 1

	res, err := tx.ExecContext(ctx, `UPDATE posts SET title = ?, slug = ?, content = ?, excerpt = ?, featured_image = ?,
		author = ?, status = ?, tags = ?, published_at = ?, updated_at = ?, version = ?
		WHERE id = ? AND version = ? AND deleted_at IS NULL`,
		after.Title, after.Slug, after.Content, after.Excerpt, after.FeaturedImage,
		after.Author, string(after.Status), encodeTags(after.Tags), formatTime(after.PublishedAt), formatTime(after.UpdatedAt), after.Version,
		id, before.Version)
	if err != nil {
		if isUniqueViolation(err) {
			return Post{}, nil, fmt.Errorf("%w: slug %q is already in use", ErrConflict, after.Slug)
		}
		return Post{}, nil, fmt.Errorf("update post: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return Post{}, nil, fmt.Errorf("update post: %w", err)
	} else if n == 0 {
		return Post{}, nil, fmt.Errorf("%w: post %s was modified concurrently", ErrConflict, id)
	}

	entries := Diff(before, after, TrackedFields, now)
	for i := range entries {
		res, err := tx.ExecContext(ctx, `INSERT INTO post_history (post_id, field, old_value, new_value, changed_at) VALUES (?, ?, ?, ?, ?)`,
			entries[i].PostID, entries[i].Field, nullString(entries[i].OldValue), nullString(entries[i].NewValue), formatTime(entries[i].ChangedAt))
		if err != nil {
			return Post{}, nil, fmt.Errorf("record history for %s: %w", entries[i].Field, err)
		}
		entries[i].ID, _ = res.LastInsertId()
	}

	if err := tx.Commit(); err != nil {
		return Post{}, nil, fmt.Errorf("commit update: %w", err)
	}
	return after, entries, nil
}

// SoftDelete marks a post deleted. Deleting an already-deleted post is a
// no-op; unknown ids return ErrNotFound.
func (s *Store) SoftDelete(ctx context.Context, id string) error {
	now := formatTime(s.now().UTC())
	res, err := s.db.ExecContext(ctx, `UPDATE posts SET deleted_at = ?, updated_at = ? WHERE id = ? AND deleted_at IS NULL`, now, now, id)
	if err != nil {
		return fmt.Errorf("delete post: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete post: %w", err)
	}
	if n > 0 {
		return nil
	}
	var exists int
	err = s.db.QueryRowContext(ctx, `SELECT 1 FROM posts WHERE id = ?`, id).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: post %s", ErrNotFound, id)
	}
	return err
}

// GetByID returns a live (not deleted) post.
func (s *Store) GetByID(ctx context.Context, id string) (Post, error) {
	return getPost(ctx, s.db, id)
}

// ListActive returns every live post, newest first.
func (s *Store) ListActive(ctx context.Context) ([]Post, error) {
	return s.queryPosts(ctx, `SELECT `+postColumns+` FROM posts WHERE deleted_at IS NULL ORDER BY created_at DESC`)
}

// ListAll returns every post including deleted ones, newest first.
func (s *Store) ListAll(ctx context.Context) ([]Post, error) {
	return s.queryPosts(ctx, `SELECT `+postColumns+` FROM posts ORDER BY created_at DESC`)
}

// ListPublished returns live published posts matching sel, ordered by
// publish date descending. Range bounds are inclusive.
func (s *Store) ListPublished(ctx context.Context, sel DigestSelection) ([]Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts WHERE status = ? AND deleted_at IS NULL`
	args := []any{string(StatusPublished)}
	if sel.ByRange {
		if sel.End.Before(sel.Start) {
			return nil, invalidf("end date is before start date")
		}
		query += ` AND published_at >= ? AND published_at <= ?`
		args = append(args, formatTime(sel.Start), formatTime(sel.End))
	} else {
		ids := FilterEmpty(sel.PostIDs)
		if len(ids) == 0 {
			return []Post{}, nil
		}
		query += ` AND id IN (?` + strings.Repeat(", ?", len(ids)-1) + `)`
		for _, id := range ids {
			args = append(args, id)
		}
	}
	query += ` ORDER BY published_at DESC`
	return s.queryPosts(ctx, query, args...)
}

// History returns the audit trail of a post, oldest first.
func (s *Store) History(ctx context.Context, postID string) ([]HistoryEntry, error) {
	var exists int
	if err := s.db.QueryRowContext(ctx, `SELECT 1 FROM posts WHERE id = ?`, postID).Scan(&exists); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: post %s", ErrNotFound, postID)
		}
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `SELECT id, post_id, field, old_value, new_value, changed_at
		FROM post_history WHERE post_id = ? ORDER BY changed_at, id`, postID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []HistoryEntry{}
	for rows.Next() {
		var e HistoryEntry
		var oldVal, newVal sql.NullString
		var changedAt string
		if err := rows.Scan(&e.ID, &e.PostID, &e.Field, &oldVal, &newVal, &changedAt); err != nil {
			return nil, err
		}
		if oldVal.Valid {
			e.OldValue = &oldVal.String
		}
		if newVal.Valid {
			e.NewValue = &newVal.String
		}
		if e.ChangedAt, err = parseTime(changedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *Store) queryPosts(ctx context.Context, query string, args ...any) ([]Post, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	posts := []Post{}
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		posts = append(posts, p)
	}
	return posts, rows.Err()
}

type rowQueryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getPost(ctx context.Context, q rowQueryer, id string) (Post, error) {
	p, err := scanPost(q.QueryRowContext(ctx, `SELECT `+postColumns+` FROM posts WHERE id = ? AND deleted_at IS NULL`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Post{}, fmt.Errorf("%w: post %s", ErrNotFound, id)
	}
	return p, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPost(row scanner) (Post, error) {
	var p Post
	var status, tags, publishedAt, createdAt, updatedAt string
	var deletedAt sql.NullString
	if err := row.Scan(&p.ID, &p.Title, &p.Slug, &p.Content, &p.Excerpt, &p.FeaturedImage, &p.Author,
		&status, &tags, &publishedAt, &createdAt, &updatedAt, &deletedAt, &p.Version); err != nil {
		return Post{}, err
	}
	p.Status = Status(status)
	p.Tags = decodeTags(tags)
	var err error
	if p.PublishedAt, err = parseTime(publishedAt); err != nil {
		return Post{}, err
	}
	if p.CreatedAt, err = parseTime(createdAt); err != nil {
		return Post{}, err
	}
	if p.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return Post{}, err
	}
	if deletedAt.Valid {
		t, err := parseTime(deletedAt.String)
		if err != nil {
			return Post{}, err
		}
		p.DeletedAt = &t
	}
	return p, nil
}

// applyInput copies the supplied fields of in onto p. A blank slug is
// ignored so updates keep the existing slug.
func applyInput(p *Post, in PostInput) {
	if in.Title != nil {
		p.Title = strings.TrimSpace(*in.Title)
	}
	if in.Slug != nil {
		if slug := Slugify(*in.Slug); slug != "" {
			p.Slug = slug
		}
	}
	if in.Content != nil {
		p.Content = *in.Content
	}
	if in.Excerpt != nil {
		p.Excerpt = strings.TrimSpace(*in.Excerpt)
	}
	if in.FeaturedImage != nil {
		p.FeaturedImage = strings.TrimSpace(*in.FeaturedImage)
	}
	if in.Author != nil {
		p.Author = strings.TrimSpace(*in.Author)
	}
	if in.Status != nil && *in.Status != "" {
		p.Status = Status(strings.ToLower(strings.TrimSpace(string(*in.Status))))
	}
	if in.Tags != nil {
		p.Tags = NormalizeTags(in.Tags)
	}
	if in.PublishedAt != nil && !in.PublishedAt.IsZero() {
		p.PublishedAt = in.PublishedAt.UTC()
	}
}

func validatePost(p Post) error {
	switch {
	case p.Title == "":
		return invalidf("title is required")
	case strings.TrimSpace(p.Content) == "":
		return invalidf("content is required")
	case p.Author == "":
		return invalidf("author is required")
	case p.Slug == "":
		return invalidf("slug is required; add a title with letters or digits")
	case !p.Status.Valid():
		return invalidf("status must be one of draft, published, archived")
	}
	return nil
}

func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
