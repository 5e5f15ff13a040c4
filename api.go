package circlepress

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

type postRequest struct {
	ID string `json:"id"`
	PostInput
}

type messageResponse struct {
	Message string `json:"message"`
}

func bindJSON(c echo.Context, v any) error {
	if err := c.Bind(v); err != nil {
		return invalidf("invalid request body")
	}
	return nil
}

// handleGetPosts serves one post, a search, or a listing. Anonymous callers
// only see published posts; admins also see drafts and archived posts.
func (a *App) handleGetPosts(c echo.Context) error {
	ctx := c.Request().Context()
	admin := a.authorized(c)
	if id := strings.TrimSpace(c.QueryParam("id")); id != "" {
		post, err := a.Store.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if !admin && post.Status != StatusPublished {
			return fmt.Errorf("%w: post %s", ErrNotFound, id)
		}
		return c.JSON(http.StatusOK, post)
	}
	if q := strings.TrimSpace(c.QueryParam("q")); q != "" {
		return a.searchPosts(c, q, admin)
	}
	if !admin {
		posts, err := a.Cache.ListPublished(ctx, c.QueryParam("tag"))
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, nonNil(posts))
	}
	posts, err := a.Store.ListActive(ctx)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, nonNil(posts))
}

func (a *App) searchPosts(c echo.Context, q string, admin bool) error {
	ctx := c.Request().Context()
	ids, err := a.Index.Search(q, DefaultSearchLimit)
	if err != nil {
		return err
	}
	posts := make([]Post, 0, len(ids))
	for _, id := range ids {
		p, err := a.Store.GetByID(ctx, id)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return err
		}
		if !admin && p.Status != StatusPublished {
			continue
		}
		posts = append(posts, p)
	}
	return c.JSON(http.StatusOK, posts)
}

func (a *App) handleCreatePost(c echo.Context) error {
	var req postRequest
	if err := bindJSON(c, &req); err != nil {
		return err
	}
	post, err := a.Store.Create(c.Request().Context(), req.PostInput)
	if err != nil {
		return err
	}
	a.postChanged(post)
	a.Logger.Info("post created", "id", post.ID, "slug", post.Slug, "status", post.Status)
	return c.JSON(http.StatusCreated, post)
}

func (a *App) handleUpdatePost(c echo.Context) error {
	var req postRequest
	if err := bindJSON(c, &req); err != nil {
		return err
	}
	id := strings.TrimSpace(req.ID)
	if id == "" {
		return invalidf("id is required")
	}
	post, changes, err := a.Store.Update(c.Request().Context(), id, req.PostInput)
	if err != nil {
		return err
	}
	a.postChanged(post)
	a.Logger.Info("post updated", "id", post.ID, "version", post.Version, "changes", len(changes))
	return c.JSON(http.StatusOK, post)
}

func (a *App) handleDeletePost(c echo.Context) error {
	id := strings.TrimSpace(c.QueryParam("id"))
	if id == "" {
		return invalidf("id is required")
	}
	if err := a.Store.SoftDelete(c.Request().Context(), id); err != nil {
		return err
	}
	if err := a.Index.Remove(id); err != nil {
		a.Logger.Warn("search index remove failed", "id", id, "error", err)
	}
	a.Cache.Invalidate()
	a.Logger.Info("post deleted", "id", id)
	return c.JSON(http.StatusOK, messageResponse{Message: "Post deleted"})
}

func (a *App) handlePostHistory(c echo.Context) error {
	id := strings.TrimSpace(c.QueryParam("id"))
	if id == "" {
		return invalidf("id is required")
	}
	entries, err := a.Store.History(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, nonNil(entries))
}

// postChanged refreshes the derived read models after a write. Index
// failures are logged; the store remains the source of truth.
func (a *App) postChanged(p Post) {
	if err := a.Index.Upsert(p); err != nil {
		a.Logger.Warn("search index update failed", "id", p.ID, "error", err)
	}
	a.Cache.Invalidate()
}

type generateRequest struct {
	Transcript string `json:"transcript"`
	DraftOptions
}

func (a *App) handleGenerate(c echo.Context) error {
	var req generateRequest
	if err := bindJSON(c, &req); err != nil {
		return err
	}
	draft, err := a.Drafts.Generate(c.Request().Context(), req.Transcript, req.DraftOptions)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, draft)
}

type digestSendRequest struct {
	Email        string   `json:"email"`
	PostIDs      []string `json:"postIds"`
	Subject      string   `json:"subject"`
	Introduction string   `json:"introduction"`
}

type digestSendResponse struct {
	Success      bool   `json:"success"`
	Message      string `json:"message"`
	ID           string `json:"id"`
	Confirmation string `json:"confirmation,omitempty"`
}

func (a *App) handleDigestSend(c echo.Context) error {
	var req digestSendRequest
	if err := bindJSON(c, &req); err != nil {
		return err
	}
	if err := ValidateEmail(req.Email); err != nil {
		return err
	}
	ctx := c.Request().Context()
	email, err := a.Digests.Compose(ctx, req.Email, SelectIDs(req.PostIDs...), req.Subject, req.Introduction)
	if err != nil {
		return err
	}
	res, err := a.Dispatch.Send(ctx, email)
	if err != nil {
		return err
	}
	out := digestSendResponse{
		Success: true,
		Message: "Digest sent to " + email.To,
		ID:      res.ID,
	}
	switch {
	case !res.Confirmation.Attempted:
	case res.Confirmation.OK():
		out.Confirmation = "sent"
	default:
		out.Confirmation = "failed"
	}
	return c.JSON(http.StatusOK, out)
}

type digestPreviewRequest struct {
	StartDate    string `json:"startDate"`
	EndDate      string `json:"endDate"`
	Introduction string `json:"introduction"`
}

type digestPreviewResponse struct {
	Posts     []Post `json:"posts"`
	EmailHTML string `json:"emailHtml,omitempty"`
}

func (a *App) handleDigestPreview(c echo.Context) error {
	var req digestPreviewRequest
	if err := bindJSON(c, &req); err != nil {
		return err
	}
	start, end, err := ParseDateRange(req.StartDate, req.EndDate, a.Config.Location())
	if err != nil {
		return err
	}
	posts, err := a.Digests.Resolve(c.Request().Context(), SelectRange(start, end))
	if err != nil {
		return err
	}
	a.Logger.Debug("digest preview", "range", describeRange(start, end), "posts", len(posts))
	return c.JSON(http.StatusOK, digestPreviewResponse{Posts: nonNil(posts)})
}

type digestSelectedRequest struct {
	PostIDs      []string `json:"postIds"`
	Subject      string   `json:"subject"`
	Introduction string   `json:"introduction"`
}

func (a *App) handleDigestPreviewSelected(c echo.Context) error {
	var req digestSelectedRequest
	if err := bindJSON(c, &req); err != nil {
		return err
	}
	ctx := c.Request().Context()
	posts, err := a.Digests.Resolve(ctx, SelectIDs(req.PostIDs...))
	if err != nil {
		return err
	}
	html, err := a.Digests.Render(ctx, posts, req.Subject, req.Introduction)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, digestPreviewResponse{Posts: nonNil(posts), EmailHTML: html})
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
