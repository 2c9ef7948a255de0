package tokengenerator

import (
	"net/http"
	"time"
)

// CookieSetter interface defines methods for cookie operations
type CookieSetter interface {
	// SetCookie sets a cookie with the given value and expiry
	SetCookie(w http.ResponseWriter, tokenName, tokenValue string, expire time.Time) error

	// ClearCookie clears a cookie
	ClearCookie(w http.ResponseWriter, tokenName string) error
}

type baseCookieSetter struct {
	path     string
	httpOnly bool
	secure   bool
	sameSite http.SameSite
}

func (c *baseCookieSetter) SetCookie(w http.ResponseWriter, tokenName, tokenValue string, expire time.Time) error {
	http.SetCookie(w, &http.Cookie{
		Name:     tokenName,
		Path:     c.path,
		Value:    tokenValue,
		Expires:  expire,
		HttpOnly: c.httpOnly,
		Secure:   c.secure,
		SameSite: c.sameSite,
	})
	return nil
}

func (c *baseCookieSetter) ClearCookie(w http.ResponseWriter, tokenName string) error {
	http.SetCookie(w, &http.Cookie{
		Name:     tokenName,
		Path:     c.path,
		Value:    "",
		MaxAge:   -1,
		HttpOnly: c.httpOnly,
		Secure:   c.secure,
	})
	return nil
}

// NewCookieSetter creates a new cookie setter rooted at "/"
func NewCookieSetter(httpOnly, secure bool, sameSite http.SameSite) CookieSetter {
	return &baseCookieSetter{
		path:     "/",
		httpOnly: httpOnly,
		secure:   secure,
		sameSite: sameSite,
	}
}
