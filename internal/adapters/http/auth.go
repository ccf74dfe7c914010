package httpadapter

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	jwt "github.com/golang-jwt/jwt/v5"

	"github.com/kirillkom/document-analyzer/internal/core/domain"
	"github.com/kirillkom/document-analyzer/internal/observability/logging"
)

type userIDContextKey struct{}

func userIDFromContext(ctx context.Context) string {
	userID, _ := ctx.Value(userIDContextKey{}).(string)
	return userID
}

func (rt *Router) requireUser(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := rt.verifyBearer(r.Header.Get("Authorization"))
		if err != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		ctx := context.WithValue(r.Context(), userIDContextKey{}, userID)
		ctx = logging.WithAttrs(ctx, slog.String("user_id", userID))
		next(w, r.WithContext(ctx))
	}
}

func (rt *Router) rateLimited(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if rt.limiter != nil && !rt.limiter.Allow(r.Context(), "user:"+userIDFromContext(r.Context())) {
			if rt.observer != nil {
				rt.observer.RecordRateLimited(serviceName, r.URL.Path)
			}
			w.Header().Set("Retry-After", "60")
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next(w, r)
	}
}

// verifyBearer accepts HS256 tokens and reads the user from the userId claim,
// falling back to sub.
func (rt *Router) verifyBearer(header string) (string, error) {
	if len(rt.jwtSecret) == 0 {
		return "", domain.WrapError(domain.ErrUnauthorized, "verify token", errors.New("token secret is not configured"))
	}
	header = strings.TrimSpace(header)
	const bearerPrefix = "Bearer "
	if !strings.HasPrefix(header, bearerPrefix) {
		return "", domain.WrapError(domain.ErrUnauthorized, "verify token", errors.New("missing bearer token"))
	}
	raw := strings.TrimSpace(strings.TrimPrefix(header, bearerPrefix))

	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return rt.jwtSecret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", domain.WrapError(domain.ErrUnauthorized, "verify token", err)
	}

	if userID, ok := claims["userId"].(string); ok && strings.TrimSpace(userID) != "" {
		return strings.TrimSpace(userID), nil
	}
	subject, err := claims.GetSubject()
	if err != nil || strings.TrimSpace(subject) == "" {
		return "", domain.WrapError(domain.ErrUnauthorized, "verify token", errors.New("token has no user claim"))
	}
	return strings.TrimSpace(subject), nil
}
