package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/photosync/backend/internal/api/middleware"
	"github.com/photosync/backend/internal/classicstore"
	"github.com/photosync/backend/internal/httpjson"
)

// maxMultipartMemory bounds the in-memory portion of a parsed multipart
// form; larger parts spill to temp files via the stdlib multipart reader.
const maxMultipartMemory = 32 << 20

// ClassicHandler implements the whole-file classic object store endpoints.
type ClassicHandler struct {
	store *classicstore.Store
}

// NewClassicHandler builds a ClassicHandler.
func NewClassicHandler(store *classicstore.Store) *ClassicHandler {
	return &ClassicHandler{store: store}
}

// Upload handles multipart classic uploads (POST /api/upload).
func (h *ClassicHandler) Upload(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		httpjson.Error(w, http.StatusUnauthorized, "Authentication required", "", nil)
		return
	}

	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		httpjson.Error(w, http.StatusBadRequest, "Invalid multipart body", "", nil)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		httpjson.Error(w, http.StatusBadRequest, "Missing file field", "", nil)
		return
	}
	defer file.Close()

	result, err := h.store.Ingest(claims.UserID, claims.DeviceUUID, header.Filename, file)
	h.respondUpload(w, result, err)
}

// UploadRaw handles streaming classic uploads (POST /api/upload/raw), the
// filename carried in X-Filename since the body is the raw file bytes.
func (h *ClassicHandler) UploadRaw(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		httpjson.Error(w, http.StatusUnauthorized, "Authentication required", "", nil)
		return
	}

	filename := r.Header.Get("X-Filename")
	if filename == "" {
		httpjson.Error(w, http.StatusBadRequest, "X-Filename header is required", "", nil)
		return
	}

	result, err := h.store.Ingest(claims.UserID, claims.DeviceUUID, filename, r.Body)
	h.respondUpload(w, result, err)
}

func (h *ClassicHandler) respondUpload(w http.ResponseWriter, result *classicstore.UploadResult, err error) {
	if errors.Is(err, classicstore.ErrPathEscape) {
		httpjson.Error(w, http.StatusForbidden, "Filename escapes device directory", "", nil)
		return
	}
	if err != nil {
		httpjson.Error(w, http.StatusInternalServerError, "Failed to store upload", "", nil)
		return
	}
	httpjson.JSON(w, http.StatusOK, map[string]any{
		"duplicate": result.Duplicate,
		"filename":  result.Filename,
		"size":      result.Size,
		"mimeType":  result.MimeType,
	})
}

// List returns a paginated listing (GET /api/files).
func (h *ClassicHandler) List(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		httpjson.Error(w, http.StatusUnauthorized, "Authentication required", "", nil)
		return
	}

	offset, limit := paginationParams(r)
	entries, total, err := h.store.List(claims.DeviceUUID, offset, limit)
	if err != nil {
		httpjson.Error(w, http.StatusInternalServerError, "Failed to list files", "", nil)
		return
	}

	httpjson.JSON(w, http.StatusOK, map[string]any{
		"files": entries,
		"total": total,
	})
}

// Download serves a single stored file (GET /api/files/:name).
func (h *ClassicHandler) Download(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		httpjson.Error(w, http.StatusUnauthorized, "Authentication required", "", nil)
		return
	}

	filename := pathParam(r, "name")
	path, err := h.store.Download(claims.DeviceUUID, filename)
	if errors.Is(err, classicstore.ErrPathEscape) {
		httpjson.Error(w, http.StatusForbidden, "Filename escapes device directory", "", nil)
		return
	}
	if err != nil {
		httpjson.Error(w, http.StatusInternalServerError, "Failed to resolve file path", "", nil)
		return
	}

	http.ServeFile(w, r, path)
}

// Purge deletes all classic-mode data for the caller's device
// (POST /api/files/purge).
func (h *ClassicHandler) Purge(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		httpjson.Error(w, http.StatusUnauthorized, "Authentication required", "", nil)
		return
	}

	count, err := h.store.Purge(claims.UserID, claims.DeviceUUID)
	if err != nil {
		httpjson.Error(w, http.StatusInternalServerError, "Failed to purge files", "", nil)
		return
	}

	httpjson.JSON(w, http.StatusOK, map[string]any{"deleted": count})
}

// paginationParams reads offset/limit query params, defaulting limit to 100.
func paginationParams(r *http.Request) (offset, limit int) {
	limit = 100
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}
	return offset, limit
}
