package circlepress

import (
	"crypto/subtle"
	"net/http"

	"github.com/labstack/echo/v4"
)

type sessionResponse struct {
	Authenticated bool   `json:"authenticated"`
	CSRFToken     string `json:"csrfToken,omitempty"`
}

// handleAdminSession reports whether the caller is logged in and, when it
// is, the CSRF token its mutating requests must send.
func (a *App) handleAdminSession(c echo.Context) error {
	if !IsAdmin(c) {
		return c.JSON(http.StatusOK, sessionResponse{})
	}
	return c.JSON(http.StatusOK, sessionResponse{Authenticated: true, CSRFToken: CsrfToken(c)})
}

type loginRequest struct {
	Password string `json:"password" form:"password"`
}

func (a *App) handleAdminLogin(c echo.Context) error {
	ip := c.RealIP()
	if !a.loginLimiter.Check(ip) {
		return echo.NewHTTPError(http.StatusTooManyRequests, "too many login attempts, try again later")
	}
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return invalidf("invalid request body")
	}
	if subtle.ConstantTimeCompare([]byte(req.Password), []byte(a.Config.Server.AdminPassword)) != 1 {
		a.loginLimiter.Record(ip)
		a.Logger.Warn("admin login failed", "ip", ip)
		return ErrUnauthorized
	}
	if err := setAdminSession(c); err != nil {
		return err
	}
	a.Logger.Info("admin login", "ip", ip)
	return c.JSON(http.StatusOK, sessionResponse{Authenticated: true})
}

func handleAdminLogout(c echo.Context) error {
	if err := clearAdminSession(c); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, sessionResponse{})
}
