package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// pathParam reads a chi URL parameter by name.
func pathParam(r *http.Request, name string) string {
	return chi.URLParam(r, name)
}
