package handlers

import (
	"net/http"
	"os"

	"github.com/photosync/backend/internal/httpjson"
)

// CapacityHandler serves the worker-written capacity JSON verbatim,
// per spec §6/§4.H: /api/capacity and the two /.well-known/*-capacity.json
// aliases all read the same file.
type CapacityHandler struct {
	path string
}

// NewCapacityHandler builds a CapacityHandler reading from path.
func NewCapacityHandler(path string) *CapacityHandler {
	return &CapacityHandler{path: path}
}

// Get serves the capacity file with cache-busting headers, or 404 if the
// worker has not produced one yet.
func (h *CapacityHandler) Get(w http.ResponseWriter, r *http.Request) {
	data, err := os.ReadFile(h.path)
	if err != nil {
		httpjson.Error(w, http.StatusNotFound, "Capacity report not available", "", nil)
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Content-Type", "application/json")
	w.Write(data)
}
