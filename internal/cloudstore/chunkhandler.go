package cloudstore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/photosync/backend/internal/cloudstore/chunkstore"
	"github.com/photosync/backend/internal/dbmodel"
	"github.com/photosync/backend/internal/quota"
)

// ChunkIDPattern is the 64-hex SHA-256 chunk id format required by §4.F.
var ChunkIDPattern = regexp.MustCompile(`^[a-f0-9]{64}$`)

// ErrChunkHashMismatch is returned when the body's SHA-256 disagrees with
// the claimed X-Chunk-Id.
var ErrChunkHashMismatch = errors.New("cloudstore: chunk hash mismatch")

// ErrQuotaExceeded is returned when the quota manager denies the
// reservation; callers attach the Decision for the 413 response body.
var ErrQuotaExceeded = errors.New("cloudstore: quota exceeded")

// ChunkUploadResult reports the outcome of UploadChunk.
type ChunkUploadResult struct {
	Stored   bool
	Decision quota.Decision
}

// ChunkHandler wires the local filesystem chunk store, the optional S3
// mirror, and the quota reservation core behind the single admission path
// both the raw and multipart chunk upload routes converge on.
type ChunkHandler struct {
	db     *gorm.DB
	store  chunkstore.Store
	mirror chunkMirror
	quota  *quota.Manager
}

// chunkMirror is satisfied by cloudstore/chunkstore/s3.Mirror; kept as a
// narrow interface so tests can stub it out.
type chunkMirror interface {
	Enqueue(tenantKey, chunkID string, data []byte)
}

// NewChunkHandler builds a ChunkHandler. mirror may be nil when no
// off-box mirror is configured.
func NewChunkHandler(db *gorm.DB, store chunkstore.Store, mirror chunkMirror, qm *quota.Manager) *ChunkHandler {
	return &ChunkHandler{db: db, store: store, mirror: mirror, quota: qm}
}

// UploadChunk verifies the body hash against chunkID, reserves quota unless
// the chunk already exists, writes it to disk, upserts the DB index row,
// and enqueues the optional mirror copy. The returned release must be
// called by the caller's response-lifecycle cleanup hook exactly once.
func (h *ChunkHandler) UploadChunk(ctx context.Context, userID uint, tenantKey string, legacyKeys []string, planGB int, chunkID string, body []byte) (*ChunkUploadResult, quota.Release, error) {
	if !ChunkIDPattern.MatchString(chunkID) {
		return nil, nil, fmt.Errorf("%w: id does not match pattern", ErrChunkHashMismatch)
	}

	sum := sha256.Sum256(body)
	if hex.EncodeToString(sum[:]) != chunkID {
		return nil, nil, ErrChunkHashMismatch
	}

	exists, err := h.store.Exists(ctx, tenantKey, legacyKeys, chunkID)
	if err != nil {
		return nil, nil, fmt.Errorf("check existing chunk: %w", err)
	}
	if exists {
		return &ChunkUploadResult{Stored: true}, func() {}, nil
	}

	decision, release, err := h.quota.Reserve(userID, planGB, int64(len(body)))
	if err != nil {
		return nil, nil, err
	}
	if !decision.Allowed {
		return &ChunkUploadResult{Decision: decision}, nil, ErrQuotaExceeded
	}

	if _, err := h.store.Put(ctx, tenantKey, legacyKeys, chunkID, body); err != nil {
		release()
		return nil, nil, fmt.Errorf("write chunk: %w", err)
	}

	row := dbmodel.CloudChunk{UserID: userID, ChunkID: chunkID, Size: int64(len(body))}
	if err := h.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error; err != nil {
		release()
		return nil, nil, fmt.Errorf("index chunk: %w", err)
	}

	if h.mirror != nil {
		h.mirror.Enqueue(tenantKey, chunkID, body)
	}

	return &ChunkUploadResult{Stored: true, Decision: decision}, release, nil
}

// ChunkExists reports whether chunkID is already stored for tenantKey,
// letting callers short-circuit before reading an upload's body (used by
// the multipart upload variant's dedup-by-requested-id path).
func (h *ChunkHandler) ChunkExists(ctx context.Context, tenantKey string, legacyKeys []string, chunkID string) (bool, error) {
	return h.store.Exists(ctx, tenantKey, legacyKeys, chunkID)
}

// DownloadChunk validates chunkID and returns its bytes.
func (h *ChunkHandler) DownloadChunk(ctx context.Context, tenantKey string, legacyKeys []string, chunkID string) ([]byte, error) {
	if !ChunkIDPattern.MatchString(chunkID) {
		return nil, ErrChunkHashMismatch
	}
	return h.store.Get(ctx, tenantKey, legacyKeys, chunkID)
}

// Purge removes every chunk for tenantKey on disk and deletes userID's
// CloudChunk index rows.
func (h *ChunkHandler) Purge(ctx context.Context, userID uint, tenantKey string) error {
	if err := h.store.Purge(ctx, tenantKey); err != nil {
		return fmt.Errorf("purge chunk store: %w", err)
	}
	return h.db.Where("user_id = ?", userID).Delete(&dbmodel.CloudChunk{}).Error
}

// UsedBytes sums stored chunk sizes for userID, used as quota.Manager's
// UsageFunc callback.
func UsedBytes(db *gorm.DB, userID uint) (int64, error) {
	var total int64
	err := db.Model(&dbmodel.CloudChunk{}).Where("user_id = ?", userID).
		Select("COALESCE(SUM(size), 0)").Scan(&total).Error
	return total, err
}
