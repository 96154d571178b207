package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"sketchroom/internal/session"
)

const (
	ErrorMissingTokenJson = "missing-token"
	ErrorExpiredTokenJson = "expired-token"
	ErrorInvalidTokenJson = "invalid-token"
)

type profileKey struct{}

// RequireBearer rejects requests without a valid "Authorization: Bearer"
// token and stores the caller's profile in the request context.
func (m *JWTManager) RequireBearer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			abort(w, ErrorMissingTokenJson)
			return
		}
		p, err := m.Verify(strings.TrimSpace(token))
		if err != nil {
			code := ErrorInvalidTokenJson
			if errors.Is(err, ErrExpiredToken) {
				code = ErrorExpiredTokenJson
			}
			abort(w, code)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), profileKey{}, p)))
	})
}

// ProfileFrom returns the profile RequireBearer stored in ctx.
func ProfileFrom(ctx context.Context) (session.Profile, bool) {
	p, ok := ctx.Value(profileKey{}).(session.Profile)
	return p, ok
}

func abort(w http.ResponseWriter, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(code)
}
