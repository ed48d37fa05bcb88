package handlers

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/photosync/backend/internal/api/middleware"
	"github.com/photosync/backend/internal/cloudstore"
	"github.com/photosync/backend/internal/httpjson"
	"github.com/photosync/backend/internal/pathlayout"
)

// maxChunkBytes bounds a single chunk upload body; chunks are produced by
// the client in 2 MiB plaintext units, so ciphertext stays well under this.
const maxChunkBytes = 8 << 20

// CloudHandler implements the StealthCloud chunk, manifest, device-state,
// and purge endpoints.
type CloudHandler struct {
	chunks    *cloudstore.ChunkHandler
	manifests *cloudstore.ManifestStore
	devices   *cloudstore.DeviceStateStore
	planGB    func(userID uint) (int, error)
}

// NewCloudHandler builds a CloudHandler. planGB resolves the caller's plan
// size for quota reservation.
func NewCloudHandler(chunks *cloudstore.ChunkHandler, manifests *cloudstore.ManifestStore, devices *cloudstore.DeviceStateStore, planGB func(uint) (int, error)) *CloudHandler {
	return &CloudHandler{chunks: chunks, manifests: manifests, devices: devices, planGB: planGB}
}

// UploadChunk handles POST /api/cloud/chunks, dispatching on Content-Type
// per §4.G: application/octet-stream is consumed as raw ciphertext bytes;
// anything else is parsed as a multipart form with the chunk in field
// "chunk". Both paths converge on the same hash-verify-then-admit logic
// below.
func (h *CloudHandler) UploadChunk(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		httpjson.Error(w, http.StatusUnauthorized, "Authentication required", "", nil)
		return
	}

	var chunkID string
	var body []byte
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/octet-stream") {
		var ok bool
		chunkID, body, ok = h.readRawChunk(w, r)
		if !ok {
			return
		}
	} else {
		var ok bool
		chunkID, body, ok = h.readMultipartChunk(w, r)
		if !ok {
			return
		}
	}

	planGB, err := h.planGB(claims.UserID)
	if err != nil {
		httpjson.Error(w, http.StatusInternalServerError, "Failed to resolve plan", "", nil)
		return
	}

	tenantKey := pathlayout.TenantKey(claims.DeviceUUID, claims.UserUUID, claims.UserID)
	legacyKeys := pathlayout.LegacyTenantKeys(claims.DeviceUUID, claims.UserUUID, claims.UserID)
	result, release, err := h.chunks.UploadChunk(r.Context(), claims.UserID, tenantKey, legacyKeys, planGB, chunkID, body)
	if release != nil {
		defer release()
	}

	switch {
	case errors.Is(err, cloudstore.ErrChunkHashMismatch):
		httpjson.Error(w, http.StatusBadRequest, "Chunk hash mismatch", "", nil)
		return
	case errors.Is(err, cloudstore.ErrQuotaExceeded):
		httpjson.Error(w, http.StatusRequestEntityTooLarge, "Quota exceeded", "QUOTA_EXCEEDED", map[string]any{
			"quotaBytes":     result.Decision.QuotaBytes,
			"usedBytes":      result.Decision.UsedBytes,
			"remainingBytes": result.Decision.RemainingBytes,
		})
		return
	case err != nil:
		httpjson.Error(w, http.StatusInternalServerError, "Failed to store chunk", "", nil)
		return
	}

	httpjson.JSON(w, http.StatusOK, map[string]bool{"stored": result.Stored})
}

// readRawChunk reads the octet-stream body for the raw upload variant.
// The claimed id comes from X-Chunk-Id; it is verified against the body's
// hash downstream in cloudstore.ChunkHandler.UploadChunk. ok is false once
// an error response has already been written.
func (h *CloudHandler) readRawChunk(w http.ResponseWriter, r *http.Request) (chunkID string, body []byte, ok bool) {
	chunkID = r.Header.Get("X-Chunk-Id")
	if chunkID == "" {
		httpjson.Error(w, http.StatusBadRequest, "X-Chunk-Id header is required", "", nil)
		return "", nil, false
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxChunkBytes+1))
	if err != nil {
		httpjson.Error(w, http.StatusBadRequest, "Failed to read chunk body", "", nil)
		return "", nil, false
	}
	if len(body) > maxChunkBytes {
		httpjson.Error(w, http.StatusBadRequest, "Chunk exceeds maximum size", "", nil)
		return "", nil, false
	}
	return chunkID, body, true
}

// readMultipartChunk parses the "chunk" form field per §4.F's multipart
// variant. The multer-style destination is the requested id from
// X-Chunk-Id when it is a valid chunk id, otherwise a name derived from
// the body's own hash (the equivalent of multer's random temp name, since
// chunk ids are content-addressed there is nothing else to name it).
// When the requested id is valid and already stored, the uploaded part is
// dropped here and success reported immediately without going through the
// admission path at all, matching the spec's "deleted and success
// returned" short-circuit. Otherwise the resolved id and body are handed
// to the same verify-then-admit logic as the raw path.
func (h *CloudHandler) readMultipartChunk(w http.ResponseWriter, r *http.Request) (chunkID string, body []byte, ok bool) {
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		httpjson.Error(w, http.StatusBadRequest, "Invalid multipart body", "", nil)
		return "", nil, false
	}

	file, _, err := r.FormFile("chunk")
	if err != nil {
		httpjson.Error(w, http.StatusBadRequest, "Missing chunk field", "", nil)
		return "", nil, false
	}
	defer file.Close()

	requested := r.Header.Get("X-Chunk-Id")
	requestedValid := cloudstore.ChunkIDPattern.MatchString(requested)

	if requestedValid {
		claims := middleware.ClaimsFromContext(r.Context())
		tenantKey := pathlayout.TenantKey(claims.DeviceUUID, claims.UserUUID, claims.UserID)
		legacyKeys := pathlayout.LegacyTenantKeys(claims.DeviceUUID, claims.UserUUID, claims.UserID)
		if exists, err := h.chunks.ChunkExists(r.Context(), tenantKey, legacyKeys, requested); err == nil && exists {
			io.Copy(io.Discard, file)
			httpjson.JSON(w, http.StatusOK, map[string]bool{"stored": true})
			return "", nil, false
		}
	}

	body, err = io.ReadAll(io.LimitReader(file, maxChunkBytes+1))
	if err != nil {
		httpjson.Error(w, http.StatusBadRequest, "Failed to read chunk part", "", nil)
		return "", nil, false
	}
	if len(body) > maxChunkBytes {
		httpjson.Error(w, http.StatusBadRequest, "Chunk exceeds maximum size", "", nil)
		return "", nil, false
	}

	if requestedValid {
		return requested, body, true
	}

	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:]), body, true
}

// DownloadChunk handles GET /api/cloud/chunks/:id.
func (h *CloudHandler) DownloadChunk(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		httpjson.Error(w, http.StatusUnauthorized, "Authentication required", "", nil)
		return
	}

	tenantKey := pathlayout.TenantKey(claims.DeviceUUID, claims.UserUUID, claims.UserID)
	legacyKeys := pathlayout.LegacyTenantKeys(claims.DeviceUUID, claims.UserUUID, claims.UserID)
	data, err := h.chunks.DownloadChunk(r.Context(), tenantKey, legacyKeys, pathParam(r, "id"))
	if errors.Is(err, cloudstore.ErrChunkHashMismatch) {
		httpjson.Error(w, http.StatusBadRequest, "Invalid chunk id", "", nil)
		return
	}
	if err != nil {
		httpjson.Error(w, http.StatusNotFound, "Chunk not found", "", nil)
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Write(data)
}

type manifestUploadRequest struct {
	ManifestID        string `json:"manifestId"`
	EncryptedManifest string `json:"encryptedManifest"`
}

// UploadManifest handles POST /api/cloud/manifests.
func (h *CloudHandler) UploadManifest(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		httpjson.Error(w, http.StatusUnauthorized, "Authentication required", "", nil)
		return
	}

	var req manifestUploadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpjson.Error(w, http.StatusBadRequest, "Invalid request body", "", nil)
		return
	}

	id := cloudstore.SanitizeManifestID(req.ManifestID)
	if id == "" {
		httpjson.Error(w, http.StatusBadRequest, "Invalid manifest id", "", nil)
		return
	}

	tenantKey := pathlayout.TenantKey(claims.DeviceUUID, claims.UserUUID, claims.UserID)
	legacyKeys := pathlayout.LegacyTenantKeys(claims.DeviceUUID, claims.UserUUID, claims.UserID)
	if err := h.manifests.Put(tenantKey, legacyKeys, id, req.EncryptedManifest); err != nil {
		httpjson.Error(w, http.StatusInternalServerError, "Failed to store manifest", "", nil)
		return
	}

	httpjson.JSON(w, http.StatusOK, map[string]bool{"stored": true})
}

// ListManifests handles GET /api/cloud/manifests.
func (h *CloudHandler) ListManifests(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		httpjson.Error(w, http.StatusUnauthorized, "Authentication required", "", nil)
		return
	}

	offset, limit := paginationParams(r)
	tenantKey := pathlayout.TenantKey(claims.DeviceUUID, claims.UserUUID, claims.UserID)
	legacyKeys := pathlayout.LegacyTenantKeys(claims.DeviceUUID, claims.UserUUID, claims.UserID)
	ids, total, err := h.manifests.List(tenantKey, legacyKeys, offset, limit)
	if err != nil {
		httpjson.Error(w, http.StatusInternalServerError, "Failed to list manifests", "", nil)
		return
	}

	httpjson.JSON(w, http.StatusOK, map[string]any{"manifestIds": ids, "total": total})
}

// GetManifest handles GET /api/cloud/manifests/:id.
func (h *CloudHandler) GetManifest(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		httpjson.Error(w, http.StatusUnauthorized, "Authentication required", "", nil)
		return
	}

	id := cloudstore.SanitizeManifestID(pathParam(r, "id"))
	tenantKey := pathlayout.TenantKey(claims.DeviceUUID, claims.UserUUID, claims.UserID)
	legacyKeys := pathlayout.LegacyTenantKeys(claims.DeviceUUID, claims.UserUUID, claims.UserID)
	env, err := h.manifests.Get(tenantKey, legacyKeys, id)
	if err != nil {
		httpjson.Error(w, http.StatusNotFound, "Manifest not found", "", nil)
		return
	}

	httpjson.JSON(w, http.StatusOK, env)
}

// GetDeviceState handles GET /api/cloud/device-state.
func (h *CloudHandler) GetDeviceState(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		httpjson.Error(w, http.StatusUnauthorized, "Authentication required", "", nil)
		return
	}

	state, err := h.devices.Get(claims.UserID, claims.DeviceUUID)
	if err != nil {
		httpjson.Error(w, http.StatusNotFound, "No device state stored", "", nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(state))
}

// PutDeviceState handles PUT /api/cloud/device-state.
func (h *CloudHandler) PutDeviceState(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		httpjson.Error(w, http.StatusUnauthorized, "Authentication required", "", nil)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, cloudstore.MaxDeviceStateBytes+1))
	if err != nil {
		httpjson.Error(w, http.StatusBadRequest, "Failed to read request body", "", nil)
		return
	}

	if err := h.devices.Put(claims.UserID, claims.DeviceUUID, body); err != nil {
		if errors.Is(err, cloudstore.ErrDeviceStateTooLarge) {
			httpjson.Error(w, http.StatusRequestEntityTooLarge, "Device state exceeds 100 KiB", "", nil)
			return
		}
		httpjson.Error(w, http.StatusInternalServerError, "Failed to store device state", "", nil)
		return
	}

	httpjson.JSON(w, http.StatusOK, map[string]bool{"stored": true})
}

// Purge handles POST /api/cloud/purge.
func (h *CloudHandler) Purge(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		httpjson.Error(w, http.StatusUnauthorized, "Authentication required", "", nil)
		return
	}

	tenantKey := pathlayout.TenantKey(claims.DeviceUUID, claims.UserUUID, claims.UserID)
	if err := h.manifests.Purge(tenantKey); err != nil {
		httpjson.Error(w, http.StatusInternalServerError, "Failed to purge manifests", "", nil)
		return
	}
	if err := h.chunks.Purge(r.Context(), claims.UserID, tenantKey); err != nil {
		httpjson.Error(w, http.StatusInternalServerError, "Failed to purge chunks", "", nil)
		return
	}
	if err := h.devices.Purge(claims.UserID); err != nil {
		httpjson.Error(w, http.StatusInternalServerError, "Failed to purge device state", "", nil)
		return
	}

	httpjson.JSON(w, http.StatusOK, map[string]bool{"purged": true})
}
