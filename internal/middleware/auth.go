package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/dukerupert/openline/internal/store"
)

type contextKey string

const userIDKey contextKey = "userID"

// UserID returns the authenticated user for the request, or an empty string
// when the request did not pass through RequireDevice.
func UserID(ctx context.Context) string {
	id, _ := ctx.Value(userIDKey).(string)
	return id
}

// WithUserID stamps the authenticated user onto the context. Exposed for
// handler tests.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// BearerToken extracts the token from an Authorization: Bearer header.
func BearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return ""
	}
	return strings.TrimSpace(token)
}

// RequireDevice validates the device token on every request and populates the
// request context with the owning user.
func RequireDevice(devices *store.DeviceStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := BearerToken(r)
			if token == "" {
				unauthorized(w)
				return
			}

			userID, err := devices.GetUserForToken(token)
			if err != nil {
				http.Error(w, "internal error", http.StatusInternalServerError)
				return
			}
			if userID == "" {
				unauthorized(w)
				return
			}

			ctx := WithUserID(r.Context(), userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	w.Write([]byte(`{"error":"unauthorized"}`))
}
