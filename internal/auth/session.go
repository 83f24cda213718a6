package auth

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

const DefaultCookieName = "jwt"

// CookieConfig controls the session cookie written on login.
type CookieConfig struct {
	Name   string
	Secure bool
}

func (cc CookieConfig) name() string {
	if cc.Name == "" {
		return DefaultCookieName
	}
	return cc.Name
}

func SetSessionCookie(c *gin.Context, cc CookieConfig, token string, expires time.Time) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     cc.name(),
		Value:    token,
		Path:     "/",
		Expires:  expires,
		MaxAge:   int(time.Until(expires).Seconds()),
		HttpOnly: true,
		Secure:   cc.Secure,
		SameSite: http.SameSiteStrictMode,
	})
}

func ClearSessionCookie(c *gin.Context, cc CookieConfig) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     cc.name(),
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   cc.Secure,
		SameSite: http.SameSiteStrictMode,
	})
}

// TokenFromRequest returns the session token from the cookie, falling back to
// an Authorization bearer header. It returns "" when neither is present.
func TokenFromRequest(r *http.Request, cookieName string) string {
	if cookieName == "" {
		cookieName = DefaultCookieName
	}
	if ck, err := r.Cookie(cookieName); err == nil && ck.Value != "" {
		return ck.Value
	}

	h := r.Header.Get("Authorization")
	if len(h) > len("bearer ") && strings.EqualFold(h[:len("bearer ")], "bearer ") {
		return strings.TrimSpace(h[len("bearer "):])
	}
	return ""
}
