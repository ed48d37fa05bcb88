package cloudstore

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/photosync/backend/internal/dbmodel"
)

// MaxDeviceStateBytes bounds the PUT body size, per §4.F.
const MaxDeviceStateBytes = 100 * 1024

// ErrDeviceStateTooLarge is returned when a PUT body exceeds
// MaxDeviceStateBytes.
var ErrDeviceStateTooLarge = errors.New("cloudstore: device state exceeds 100 KiB")

// DeviceStateStore reads and writes the single opaque JSON blob per
// (user, device); the server never interprets its contents.
type DeviceStateStore struct {
	db *gorm.DB
}

// NewDeviceStateStore builds a DeviceStateStore backed by db.
func NewDeviceStateStore(db *gorm.DB) *DeviceStateStore {
	return &DeviceStateStore{db: db}
}

// Put replaces the stored state for (userID, deviceUUID).
func (s *DeviceStateStore) Put(userID uint, deviceUUID string, stateJSON []byte) error {
	if len(stateJSON) > MaxDeviceStateBytes {
		return ErrDeviceStateTooLarge
	}

	row := dbmodel.CloudDeviceState{
		UserID:     userID,
		DeviceUUID: deviceUUID,
		StateJSON:  string(stateJSON),
		UpdatedAt:  time.Now(),
	}

	return s.db.Where(dbmodel.CloudDeviceState{UserID: userID, DeviceUUID: deviceUUID}).
		Assign(dbmodel.CloudDeviceState{StateJSON: row.StateJSON, UpdatedAt: row.UpdatedAt}).
		FirstOrCreate(&row).Error
}

// Purge deletes every device-state row for userID.
func (s *DeviceStateStore) Purge(userID uint) error {
	return s.db.Where("user_id = ?", userID).Delete(&dbmodel.CloudDeviceState{}).Error
}

// Get reads the stored state, returning gorm.ErrRecordNotFound if absent.
func (s *DeviceStateStore) Get(userID uint, deviceUUID string) (string, error) {
	var row dbmodel.CloudDeviceState
	err := s.db.Where("user_id = ? AND device_uuid = ?", userID, deviceUUID).First(&row).Error
	if err != nil {
		return "", err
	}
	return row.StateJSON, nil
}
