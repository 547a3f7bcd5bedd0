package session

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// CookieName is the cookie carrying the session id
const CookieName = "idpay_sid"

// cookieLifetime bounds how long a browser keeps the session id
const cookieLifetime = 24 * time.Hour

type contextKey struct{}

// Middleware makes sure every request carries a session id and exposes it through
// FromContext.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sessionID := ""
		if cookie, err := r.Cookie(CookieName); err == nil {
			if _, err := uuid.Parse(cookie.Value); err == nil {
				sessionID = cookie.Value
			}
		}

		if sessionID == "" {
			sessionID = uuid.New().String()
			cookie := newCookie(CookieName, sessionID)
			cookie.Expires = time.Now().Add(cookieLifetime)
			http.SetCookie(w, cookie)
		}

		next.ServeHTTP(w, r.WithContext(WithID(r.Context(), sessionID)))
	})
}

// WithID returns a context carrying the session id
func WithID(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, contextKey{}, sessionID)
}

// FromContext returns the session id set by Middleware, or "" outside a session
func FromContext(ctx context.Context) string {
	sessionID, _ := ctx.Value(contextKey{}).(string)
	return sessionID
}

// RequestLeases returns the lease store for one request: the session first, the
// user's cookies as fallback.
func RequestLeases(backend Backend, w http.ResponseWriter, r *http.Request) *MirroredLeases {
	return NewMirroredLeases(
		NewSessionLeases(backend, FromContext(r.Context())),
		NewCookieLeases(w, r),
	)
}
