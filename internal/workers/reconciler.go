package workers

import (
	"fmt"
	"os"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/photosync/backend/internal/cloudstore"
	"github.com/photosync/backend/internal/dbmodel"
	"github.com/photosync/backend/internal/logger"
	"github.com/photosync/backend/internal/pathlayout"
)

// Reconciler walks cloud/users/<tenant_key>/chunks/ for every known tenant
// key and corrects drift in cloud_chunks caused by crashed uploads or
// out-of-band file operations, per spec §4.H item 3.
type Reconciler struct {
	db        *gorm.DB
	usersRoot string
}

// NewReconciler builds a Reconciler rooted at usersRoot (cloud/users).
func NewReconciler(db *gorm.DB, usersRoot string) *Reconciler {
	return &Reconciler{db: db, usersRoot: usersRoot}
}

// Run reconciles every user's chunk index against disk.
func (r *Reconciler) Run() error {
	var users []dbmodel.User
	if err := r.db.Find(&users).Error; err != nil {
		return fmt.Errorf("list users: %w", err)
	}

	for _, user := range users {
		if err := r.reconcileUser(user); err != nil {
			logger.Warn("Reconciler: failed to reconcile user", "userId", user.ID, "error", err)
		}
	}
	return nil
}

func (r *Reconciler) reconcileUser(user dbmodel.User) error {
	seen := make(map[string]int64)

	for _, tenantKey := range r.tenantKeysFor(user) {
		if err := r.scanTenant(tenantKey, seen); err != nil {
			return fmt.Errorf("scan tenant %s: %w", tenantKey, err)
		}
	}

	for chunkID, size := range seen {
		row := dbmodel.CloudChunk{UserID: user.ID, ChunkID: chunkID, Size: size}
		err := r.db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "chunk_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"size"}),
		}).Create(&row).Error
		if err != nil {
			return fmt.Errorf("upsert chunk %s: %w", chunkID, err)
		}
	}

	var stale []dbmodel.CloudChunk
	if err := r.db.Where("user_id = ?", user.ID).Find(&stale).Error; err != nil {
		return fmt.Errorf("list indexed chunks: %w", err)
	}
	for _, row := range stale {
		if _, ok := seen[row.ChunkID]; !ok {
			if err := r.db.Delete(&row).Error; err != nil {
				return fmt.Errorf("delete stale chunk %s: %w", row.ChunkID, err)
			}
		}
	}
	return nil
}

// tenantKeysFor enumerates every tenant key this user's data could be filed
// under: one per bound device, plus the user-uuid and user-id legacy keys
// EnsureTenantDir also recognizes.
func (r *Reconciler) tenantKeysFor(user dbmodel.User) []string {
	var devices []dbmodel.Device
	r.db.Where("user_id = ?", user.ID).Find(&devices)

	keys := make(map[string]struct{})
	for _, d := range devices {
		keys[pathlayout.TenantKey(d.DeviceUUID, user.UserUUID, user.ID)] = struct{}{}
	}
	for _, legacy := range pathlayout.LegacyTenantKeys("", user.UserUUID, user.ID) {
		keys[legacy] = struct{}{}
	}

	out := make([]string, 0, len(keys))
	for k := range keys {
		out = append(out, k)
	}
	return out
}

func (r *Reconciler) scanTenant(tenantKey string, seen map[string]int64) error {
	dir, err := pathlayout.SafeJoin(r.usersRoot, tenantKey, "chunks")
	if err != nil {
		return err
	}

	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read chunks directory: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !cloudstore.ChunkIDPattern.MatchString(name) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		seen[name] = info.Size()
	}
	return nil
}
