package handlers

import (
	"net/http"

	"github.com/photosync/backend/internal/httpjson"
)

// Health handles GET /health: a bare liveness probe, per spec §6.
func Health(w http.ResponseWriter, r *http.Request) {
	httpjson.JSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// Root handles GET /: unauthenticated clients get 403 by default rather than
// any service information, per spec §6.
func Root(w http.ResponseWriter, r *http.Request) {
	httpjson.Error(w, http.StatusForbidden, "Forbidden", "", nil)
}
