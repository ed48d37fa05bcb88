package middleware

import (
	"net/http"

	"github.com/photosync/backend/internal/httpjson"
	"github.com/photosync/backend/internal/subscription"
)

// SubscriptionGate resolves the caller's subscription state and enforces
// gate against it, writing the mapped HTTP status and failure code on
// denial (spec §4.C/§7). Must run after Auth.
func SubscriptionGate(resolver *subscription.Resolver, gate subscription.Gate) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := ClaimsFromContext(r.Context())
			if claims == nil {
				httpjson.Error(w, http.StatusUnauthorized, "Authentication required", "", nil)
				return
			}

			resolved, err := resolver.Resolve(claims.UserID)
			if err != nil {
				httpjson.Error(w, http.StatusInternalServerError, "Failed to resolve subscription state", "", nil)
				return
			}

			ok, code, status := subscription.Check(resolved, gate)
			if !ok {
				httpjson.Error(w, status, "Subscription gate denied request", string(code), nil)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
