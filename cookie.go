package authcore

import (
	"net/http"
	"time"
)

// RefreshCookie wraps a refresh token in the cookie handed to the browser:
// HttpOnly, SameSite=Strict, Secure in production.
func (e *Engine) RefreshCookie(token string) *http.Cookie {
	c := e.config.Cookie
	return &http.Cookie{
		Name:     c.Name,
		Value:    token,
		Path:     c.Path,
		Domain:   c.Domain,
		MaxAge:   int(c.MaxAge / time.Second),
		Expires:  e.now().Add(c.MaxAge),
		HttpOnly: true,
		Secure:   e.config.ProductionMode,
		SameSite: http.SameSiteStrictMode,
	}
}

// ClearRefreshCookie returns a cookie that deletes the refresh cookie.
func (e *Engine) ClearRefreshCookie() *http.Cookie {
	c := e.config.Cookie
	return &http.Cookie{
		Name:     c.Name,
		Value:    "",
		Path:     c.Path,
		Domain:   c.Domain,
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   e.config.ProductionMode,
		SameSite: http.SameSiteStrictMode,
	}
}

// RefreshTokenFromRequest reads the refresh cookie, or "" when absent.
func (e *Engine) RefreshTokenFromRequest(r *http.Request) string {
	c, err := r.Cookie(e.config.Cookie.Name)
	if err != nil {
		return ""
	}
	return c.Value
}
