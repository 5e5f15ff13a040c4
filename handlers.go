package circlepress

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
)

func (a *App) handleSitemap(c echo.Context) error {
	posts, err := a.Cache.ListPublished(c.Request().Context(), "")
	if err != nil {
		return err
	}
	return a.renderSitemap(c, posts)
}

func (a *App) handleFeed(c echo.Context) error {
	posts, err := a.Cache.ListPublished(c.Request().Context(), c.QueryParam("tag"))
	if err != nil {
		return err
	}
	return a.renderRSS(c, posts)
}

// handleDigestLatest shows the digest of the last N days as a web page.
func (a *App) handleDigestLatest(c echo.Context) error {
	days := a.Config.Digest.LatestDays
	if raw := c.QueryParam("days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 90 {
			return invalidf("days must be between 1 and 90")
		}
		days = n
	}
	html, _, err := a.Digests.Latest(c.Request().Context(), a.now(), days)
	if err != nil {
		return err
	}
	return c.HTML(http.StatusOK, html)
}

type errorResponse struct {
	Error string `json:"error"`
}

func (a *App) httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	var (
		code int
		msg  string
		he   *echo.HTTPError
	)
	if errors.As(err, &he) {
		code = he.Code
		msg = fmt.Sprint(he.Message)
		if he.Internal != nil {
			err = he.Internal
		}
	} else {
		code = HTTPStatus(err)
		msg = publicMessage(err)
	}
	if code >= http.StatusInternalServerError {
		a.Logger.Error("server error", "method", c.Request().Method, "uri", c.Request().RequestURI, "error", err)
	}
	if c.Request().Method == http.MethodHead {
		_ = c.NoContent(code)
		return
	}
	_ = c.JSON(code, errorResponse{Error: msg})
}
