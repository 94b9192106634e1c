package server

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"strings"

	"bookshelf/internal/app"
	"bookshelf/internal/util"
	"bookshelf/pkg/domain"
)

// RateLimiter decides whether a request identified by key may proceed.
// *ratelimit.FixedWindowLimiter satisfies it.
type RateLimiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

type userContextKey struct{}

func withUser(ctx context.Context, user domain.User) context.Context {
	return context.WithValue(ctx, userContextKey{}, user)
}

func userFromContext(ctx context.Context) (domain.User, bool) {
	user, ok := ctx.Value(userContextKey{}).(domain.User)
	return user, ok
}

// authenticate resolves the bearer token to a user and stores it in the
// request context.
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			s.metrics.AuthFailure("missing_token")
			writeError(w, r, http.StatusUnauthorized, "No token, authorization denied")
			return
		}
		user, err := s.app.UserFromToken(r.Context(), token)
		switch {
		case errors.Is(err, app.ErrInvalidToken):
			s.metrics.AuthFailure("invalid_token")
			writeError(w, r, http.StatusUnauthorized, msgInvalidToken)
			return
		case errors.Is(err, app.ErrUserNotFound):
			s.metrics.AuthFailure("unknown_user")
			writeError(w, r, http.StatusNotFound, msgUserNotFound)
			return
		case err != nil:
			logServerError(r, "authenticate", err)
			writeError(w, r, http.StatusInternalServerError, msgServerError)
			return
		}
		ctx := withUser(r.Context(), user)
		ctx = util.ContextWithLogger(ctx, util.LoggerFromContext(ctx).With("user_id", user.ID))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// authorize admits callers whose role is one of roles. It must run after
// authenticate.
func (s *Server) authorize(roles ...domain.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := userFromContext(r.Context())
			if !ok {
				writeError(w, r, http.StatusUnauthorized, "No token, authorization denied")
				return
			}
			if !slices.Contains(roles, user.Role) {
				s.metrics.AuthFailure("forbidden")
				writeError(w, r, http.StatusForbidden, "Access denied. You do not have permission.")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// rateLimit throttles by client address. A nil limiter admits everything;
// a limiter error rejects the request.
func (s *Server) rateLimit(endpoint string, limiter RateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if limiter == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := endpoint + "|" + util.ClientIP(r, s.trustedProxies)
			allowed, err := limiter.Allow(r.Context(), key)
			if err != nil {
				logServerError(r, "rate limiter unavailable", err)
				writeError(w, r, http.StatusServiceUnavailable, "Service unavailable")
				return
			}
			if !allowed {
				s.metrics.RateLimited(endpoint)
				w.Header().Set("Retry-After", "60")
				writeError(w, r, http.StatusTooManyRequests, "Too many requests")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(authHeader, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", false
	}
	return token, true
}
