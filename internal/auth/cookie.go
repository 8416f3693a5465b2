package auth

import (
	"net/http"
	"time"
)

// CookieName is the session cookie name.
const CookieName = "session"

// SetSessionCookie writes the signed session cookie.
func (s *Service) SetSessionCookie(w http.ResponseWriter, issued *Issued) {
	maxAge := issued.ExpiresAt.Sub(s.now())
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    issued.Token,
		Path:     "/",
		MaxAge:   int(maxAge.Seconds()),
		Expires:  issued.ExpiresAt,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   !s.isDev,
	})
}

// ClearSessionCookie expires the session cookie on the client.
func (s *Service) ClearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   !s.isDev,
	})
}

// TokenFromRequest returns the session cookie value, or "".
func TokenFromRequest(r *http.Request) string {
	c, err := r.Cookie(CookieName)
	if err != nil {
		return ""
	}
	return c.Value
}
