package handlers

import (
	"net/http"
	"syscall"

	"github.com/photosync/backend/internal/api/middleware"
	"github.com/photosync/backend/internal/cloudstore"
	"github.com/photosync/backend/internal/httpjson"
	"github.com/photosync/backend/internal/subscription"
	"gorm.io/gorm"
)

// UsageHandler implements GET /api/cloud/usage.
type UsageHandler struct {
	db       *gorm.DB
	resolver *subscription.Resolver
	margin   int64
	dataRoot string
}

// NewUsageHandler builds a UsageHandler reporting free space on the
// filesystem rooted at dataRoot.
func NewUsageHandler(db *gorm.DB, resolver *subscription.Resolver, marginBytes int64, dataRoot string) *UsageHandler {
	return &UsageHandler{db: db, resolver: resolver, margin: marginBytes, dataRoot: dataRoot}
}

type usageResponse struct {
	PlanGB          int                    `json:"planGb"`
	QuotaBytes      int64                  `json:"quotaBytes"`
	UsedBytes       int64                  `json:"usedBytes"`
	RemainingBytes  int64                  `json:"remainingBytes"`
	MarginBytes     int64                  `json:"marginBytes"`
	Subscription    *subscription.Resolved `json:"subscription"`
	ServerFreeBytes int64                  `json:"serverFreeBytes"`
}

// Get resolves the caller's plan, sums committed chunk bytes, and reports
// quota headroom alongside server-wide free disk space.
func (h *UsageHandler) Get(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		httpjson.Error(w, http.StatusUnauthorized, "Authentication required", "", nil)
		return
	}

	resolved, err := h.resolver.Resolve(claims.UserID)
	if err != nil {
		httpjson.Error(w, http.StatusInternalServerError, "Failed to resolve subscription state", "", nil)
		return
	}

	used, err := cloudstore.UsedBytes(h.db, claims.UserID)
	if err != nil {
		httpjson.Error(w, http.StatusInternalServerError, "Failed to compute usage", "", nil)
		return
	}

	quota := int64(resolved.PlanGB) * 1_000_000_000
	remaining := quota - used
	if remaining < 0 {
		remaining = 0
	}

	httpjson.JSON(w, http.StatusOK, usageResponse{
		PlanGB:          resolved.PlanGB,
		QuotaBytes:      quota + h.margin,
		UsedBytes:       used,
		RemainingBytes:  remaining,
		MarginBytes:     h.margin,
		Subscription:    resolved,
		ServerFreeBytes: serverFreeBytes(h.dataRoot),
	})
}

// serverFreeBytes reports available disk space on the filesystem backing
// path, returning 0 if it cannot be statted. Grounded on pathlayout's
// filesystem-boundary conventions; stdlib syscall.Statfs has no library
// replacement in the retrieval pack for this concern (see DESIGN.md).
func serverFreeBytes(path string) int64 {
	var stat syscall.Statfs_t
	if err := syscall.Statfs(path, &stat); err != nil {
		return 0
	}
	return int64(stat.Bavail) * int64(stat.Bsize)
}
