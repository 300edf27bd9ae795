package auth

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"townhall/internal/civic"
	"townhall/internal/logging"
)

type ctxKey struct{}

// WithUser returns a context carrying the signed-in user.
func WithUser(ctx context.Context, u *civic.User) context.Context {
	return context.WithValue(ctx, ctxKey{}, u)
}

// UserFromContext returns the signed-in user, or nil when anonymous.
func UserFromContext(ctx context.Context) *civic.User {
	u, _ := ctx.Value(ctxKey{}).(*civic.User)
	return u
}

// Middleware resolves the session cookie into a user on the request
// context. Anonymous requests pass through unchanged.
func (s *Service) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := s.Token(r)
		if token == "" {
			next.ServeHTTP(w, r)
			return
		}
		u, err := s.Authenticate(r.Context(), token)
		if err != nil {
			logging.AuthWarn("Session lookup failed: %v", err)
		}
		if u == nil {
			next.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), u)))
	})
}

// RequireUser redirects anonymous requests to the login page, carrying the
// requested path in ?next=.
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if UserFromContext(r.Context()) == nil {
			target := "/accounts/login/?next=" + url.QueryEscape(r.URL.RequestURI())
			http.Redirect(w, r, target, http.StatusFound)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Token reads the session token cookie.
func (s *Service) Token(r *http.Request) string {
	c, err := r.Cookie(s.cfg.CookieName)
	if err != nil {
		return ""
	}
	return c.Value
}

// SetCookie stores the session token on the response.
func (s *Service) SetCookie(w http.ResponseWriter, login *Login) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.cfg.CookieName,
		Value:    login.Token,
		Path:     "/",
		Expires:  login.ExpiresAt,
		HttpOnly: true,
		Secure:   s.cfg.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearCookie expires the session cookie.
func (s *Service) ClearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.cfg.CookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.cfg.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}
