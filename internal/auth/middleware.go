package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/ashureev/interviewprep/internal/domain"
)

type contextKey int

const userKey contextKey = iota

// UserFromContext extracts the signed-in user from the request context.
func UserFromContext(ctx context.Context) *domain.User {
	if u, ok := ctx.Value(userKey).(*domain.User); ok {
		return u
	}
	return nil
}

// WithUser returns a context carrying user.
func WithUser(ctx context.Context, user *domain.User) context.Context {
	return context.WithValue(ctx, userKey, user)
}

// Middleware resolves the session cookie and injects the user into the
// request context. Requests without a valid session continue anonymously.
func Middleware(svc *Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := TokenFromRequest(r)
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}

			user, err := svc.CurrentUser(r.Context(), token)
			if err != nil {
				if !errors.Is(err, ErrInvalidSession) {
					slog.Error("Failed to resolve session", "error", err)
				}
				next.ServeHTTP(w, r)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
		})
	}
}

// RequireUser rejects requests without a signed-in user.
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if UserFromContext(r.Context()) == nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"success":false,"message":"Unauthorized"}`))
			return
		}
		next.ServeHTTP(w, r)
	})
}
