// Package middleware provides the authentication, device-binding, and
// subscription-gate HTTP middleware for the PhotoSync API, grounded on the
// teacher's pkg/api/middleware/auth.go JWTAuth pattern.
package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/photosync/backend/internal/credentials"
	"github.com/photosync/backend/internal/httpjson"
)

type contextKey string

const claimsContextKey contextKey = "claims"

// ClaimsFromContext retrieves the verified session claims stored by Auth.
// Returns nil if called outside an authenticated route.
func ClaimsFromContext(ctx context.Context) *credentials.Claims {
	claims, _ := ctx.Value(claimsContextKey).(*credentials.Claims)
	return claims
}

func extractBearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", false
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	return parts[1], true
}

// Auth validates the Bearer session token and enforces the device-binding
// invariant: X-Device-UUID must equal the token's device_uuid claim.
// A missing or malformed Bearer header fails with 401; an invalid or
// expired token fails with 403; a missing X-Device-UUID header fails with
// 400; a device mismatch fails with 403.
func Auth(tokenService *credentials.TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString, ok := extractBearerToken(r)
			if !ok {
				httpjson.Error(w, http.StatusUnauthorized, "Authorization header required", "", nil)
				return
			}

			claims, err := tokenService.Verify(tokenString)
			if err != nil {
				httpjson.Error(w, http.StatusForbidden, "Invalid or expired session token", "", nil)
				return
			}

			deviceHeader := r.Header.Get("X-Device-UUID")
			if deviceHeader == "" {
				httpjson.Error(w, http.StatusBadRequest, "X-Device-UUID header required", "", nil)
				return
			}
			if deviceHeader != claims.DeviceUUID {
				httpjson.Error(w, http.StatusForbidden, "Device mismatch", "", nil)
				return
			}

			ctx := context.WithValue(r.Context(), claimsContextKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
