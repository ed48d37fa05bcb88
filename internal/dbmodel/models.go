// Package dbmodel holds the GORM row types backing the secondary index over
// the filesystem-authoritative storage tree, plus the reconciled plan and
// credential tables.
package dbmodel

import "time"

// User is a registered account. Deletion is logical via UserPlan.Status,
// never a row delete.
type User struct {
	ID           uint   `gorm:"primaryKey"`
	UserUUID     string `gorm:"column:user_uuid;uniqueIndex;size:36;not null"`
	Email        string `gorm:"uniqueIndex;size:320;not null"`
	PasswordHash string `gorm:"column:password_hash;not null"`
	CreatedAt    time.Time

	Devices []Device  `gorm:"foreignKey:UserID"`
	Plan    *UserPlan `gorm:"foreignKey:UserID"`
}

// Device is a client install bound to a user by a deterministic, client-side
// derived UUID. The server never reissues device_uuid.
type Device struct {
	ID         uint   `gorm:"primaryKey"`
	UserID     uint   `gorm:"column:user_id;uniqueIndex:idx_user_device;not null"`
	DeviceUUID string `gorm:"column:device_uuid;uniqueIndex:idx_user_device;size:36;not null"`
	Name       string
	CreatedAt  time.Time
}

// File is a classic-mode plaintext object. (user_id, filename) and
// (user_id, file_hash) are each unique. The usage reconciler worker does
// not touch these rows; it reconciles only cloud_chunks.
type File struct {
	ID        uint   `gorm:"primaryKey"`
	UserID    uint   `gorm:"column:user_id;uniqueIndex:idx_user_filename;uniqueIndex:idx_user_filehash;not null"`
	Filename  string `gorm:"uniqueIndex:idx_user_filename;size:512;not null"`
	FileHash  string `gorm:"column:file_hash;uniqueIndex:idx_user_filehash;size:64;not null"`
	MimeType  string `gorm:"column:mime_type;size:255"`
	Size      int64  `gorm:"not null"`
	CreatedAt time.Time
}

// CloudChunk indexes one content-addressed ciphertext chunk. Never mutated
// after insert; chunk_id equals the SHA-256 of the ciphertext.
type CloudChunk struct {
	ID        uint   `gorm:"primaryKey"`
	UserID    uint   `gorm:"column:user_id;uniqueIndex:idx_user_chunk;not null"`
	ChunkID   string `gorm:"column:chunk_id;uniqueIndex:idx_user_chunk;size:64;not null"`
	Size      int64  `gorm:"not null"`
	CreatedAt time.Time
}

// CloudDeviceState stores one opaque JSON blob per (user, device), capped at
// 100 KiB by cloudstore.DeviceStateStore, never interpreted by the server.
type CloudDeviceState struct {
	ID         uint   `gorm:"primaryKey"`
	UserID     uint   `gorm:"column:user_id;uniqueIndex:idx_user_device_state;not null"`
	DeviceUUID string `gorm:"column:device_uuid;uniqueIndex:idx_user_device_state;size:36;not null"`
	StateJSON  string `gorm:"column:state_json;type:text;not null"`
	UpdatedAt  time.Time
}

// Subscription status values. Transitions are monotone forward except for
// the active<->grace oscillation permitted by the resolver.
const (
	StatusNone         = "none"
	StatusTrial        = "trial"
	StatusTrialExpired = "trial_expired"
	StatusActive       = "active"
	StatusGrace        = "grace"
	StatusGraceExpired = "grace_expired"
	StatusDeleted      = "deleted"
)

// UserPlan is the single subscription row per user. Timestamps are
// milliseconds since epoch per the wire contract, stored as int64.
type UserPlan struct {
	ID         uint   `gorm:"primaryKey"`
	UserID     uint   `gorm:"column:user_id;uniqueIndex;not null"`
	PlanGB     *int   `gorm:"column:plan_gb"`
	Status     string `gorm:"size:32;not null;default:none"`
	TrialUntil *int64 `gorm:"column:trial_until"`
	ExpiresAt  *int64 `gorm:"column:expires_at"`
	GraceUntil *int64 `gorm:"column:grace_until"`
	DeletedAt  *int64 `gorm:"column:deleted_at"`

	// ExternalAppUserID is the RevenueCat (or equivalent) app_user_id used
	// to key inbound webhook events. Login does not set it, and nothing else
	// in this service writes it; webhook events only find plans whose row
	// already carries the id.
	ExternalAppUserID string `gorm:"column:external_app_user_id;index;size:128"`
}

// AllModels lists every row type for AutoMigrate, in dependency order.
func AllModels() []any {
	return []any{
		&User{},
		&Device{},
		&File{},
		&CloudChunk{},
		&CloudDeviceState{},
		&UserPlan{},
	}
}
