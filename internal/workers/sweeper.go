package workers

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/photosync/backend/internal/cloudstore"
	"github.com/photosync/backend/internal/dbmodel"
	"github.com/photosync/backend/internal/logger"
	"github.com/photosync/backend/internal/pathlayout"
)

// Sweeper deletes the on-disk and indexed data of tenants whose grace
// period has elapsed, per spec §4.H item 2. Each tenant is processed
// independently so one failure never blocks the rest of the run.
type Sweeper struct {
	db        *gorm.DB
	chunks    *cloudstore.ChunkHandler
	manifests *cloudstore.ManifestStore
	devices   *cloudstore.DeviceStateStore
	usersRoot string
}

// NewSweeper builds a Sweeper over db, deleting tenant data under
// usersRoot (cloud/users) via the same store types the HTTP purge
// endpoints use.
func NewSweeper(db *gorm.DB, chunks *cloudstore.ChunkHandler, manifests *cloudstore.ManifestStore, devices *cloudstore.DeviceStateStore, usersRoot string) *Sweeper {
	return &Sweeper{db: db, chunks: chunks, manifests: manifests, devices: devices, usersRoot: usersRoot}
}

// Run finds every plan in grace whose grace period has elapsed and purges
// the tenant's data, then marks the plan deleted.
func (s *Sweeper) Run(ctx context.Context) error {
	now := time.Now().UnixMilli()

	var plans []dbmodel.UserPlan
	err := s.db.Where("status = ? AND grace_until IS NOT NULL AND grace_until <= ? AND deleted_at IS NULL",
		dbmodel.StatusGrace, now).Find(&plans).Error
	if err != nil {
		return fmt.Errorf("list expired plans: %w", err)
	}

	for _, plan := range plans {
		if err := s.sweepPlan(ctx, plan, now); err != nil {
			logger.Warn("Sweeper: failed to sweep plan", "userId", plan.UserID, "error", err)
			continue
		}
		logger.Info("Sweeper: tenant deleted", "userId", plan.UserID)
	}
	return nil
}

func (s *Sweeper) sweepPlan(ctx context.Context, plan dbmodel.UserPlan, now int64) error {
	var user dbmodel.User
	if err := s.db.First(&user, plan.UserID).Error; err != nil {
		return fmt.Errorf("load user: %w", err)
	}

	var devicesRows []dbmodel.Device
	s.db.Where("user_id = ?", user.ID).Find(&devicesRows)

	tenantKeys := make(map[string]struct{})
	for _, d := range devicesRows {
		tenantKeys[pathlayout.TenantKey(d.DeviceUUID, user.UserUUID, user.ID)] = struct{}{}
	}
	for _, legacy := range pathlayout.LegacyTenantKeys("", user.UserUUID, user.ID) {
		tenantKeys[legacy] = struct{}{}
	}

	for tenantKey := range tenantKeys {
		if err := s.manifests.Purge(tenantKey); err != nil {
			logger.Warn("Sweeper: failed to purge manifests", "userId", user.ID, "tenantKey", tenantKey, "error", err)
		}
		if err := s.chunks.Purge(ctx, user.ID, tenantKey); err != nil {
			logger.Warn("Sweeper: failed to purge chunks", "userId", user.ID, "tenantKey", tenantKey, "error", err)
		}
	}
	if err := s.devices.Purge(user.ID); err != nil {
		logger.Warn("Sweeper: failed to purge device state", "userId", user.ID, "error", err)
	}

	return s.db.Model(&plan).Updates(map[string]any{
		"status":     dbmodel.StatusDeleted,
		"deleted_at": now,
	}).Error
}
