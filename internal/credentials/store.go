package credentials

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/photosync/backend/internal/dbmodel"
)

// ErrEmailExists is returned by Register when the email is already taken.
var ErrEmailExists = errors.New("credentials: email already registered")

// ErrInvalidCredentials is returned by Login on a bad email/password pair.
var ErrInvalidCredentials = errors.New("credentials: invalid email or password")

// Store implements registration and login against the database (§4.B).
type Store struct {
	db           *gorm.DB
	bcryptCost   int
	trialDays    int
}

// NewStore builds a credential store bound to db, hashing new passwords at
// bcryptCost and starting trials for trialDays.
func NewStore(db *gorm.DB, bcryptCost, trialDays int) *Store {
	return &Store{db: db, bcryptCost: bcryptCost, trialDays: trialDays}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates a user and its plan row. planGB, when non-zero, starts a
// trial; otherwise the plan has no active subscription.
func (s *Store) Register(email, password string, planGB int) (*dbmodel.User, error) {
	email = normalizeEmail(email)

	var existing dbmodel.User
	err := s.db.Where("email = ?", email).First(&existing).Error
	if err == nil {
		return nil, ErrEmailExists
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("check existing email: %w", err)
	}

	hash, err := HashPassword(password, s.bcryptCost)
	if err != nil {
		return nil, err
	}

	user := &dbmodel.User{
		UserUUID:     uuid.NewString(),
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    time.Now(),
	}

	plan := &dbmodel.UserPlan{Status: dbmodel.StatusNone}
	if planGB != 0 {
		gb := planGB
		plan.PlanGB = &gb
		plan.Status = dbmodel.StatusTrial
		trialUntil := time.Now().Add(time.Duration(s.trialDays) * 24 * time.Hour).UnixMilli()
		plan.TrialUntil = &trialUntil
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(user).Error; err != nil {
			return fmt.Errorf("create user: %w", err)
		}
		plan.UserID = user.ID
		if err := tx.Create(plan).Error; err != nil {
			return fmt.Errorf("create plan: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	user.Plan = plan
	return user, nil
}

// Login verifies the password and, on success, registers the device if new.
// It returns the authenticated user and whether the device was newly
// created.
func (s *Store) Login(email, password, deviceUUID, deviceName string) (*dbmodel.User, bool, error) {
	email = normalizeEmail(email)

	var user dbmodel.User
	if err := s.db.Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, false, ErrInvalidCredentials
		}
		return nil, false, fmt.Errorf("lookup user: %w", err)
	}

	if !VerifyPassword(password, user.PasswordHash) {
		return nil, false, ErrInvalidCredentials
	}

	created, err := s.EnsureDevice(user.ID, deviceUUID, deviceName)
	if err != nil {
		return nil, false, err
	}

	return &user, created, nil
}

// EnsureDevice looks up or creates the (userID, deviceUUID) device row,
// reporting whether it was newly created. Exported so the registration
// handler can bind a device at signup the same way login does.
func (s *Store) EnsureDevice(userID uint, deviceUUID, deviceName string) (bool, error) {
	var device dbmodel.Device
	err := s.db.Where("user_id = ? AND device_uuid = ?", userID, deviceUUID).First(&device).Error
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return false, fmt.Errorf("lookup device: %w", err)
	}

	device = dbmodel.Device{
		UserID:     userID,
		DeviceUUID: deviceUUID,
		Name:       deviceName,
		CreatedAt:  time.Now(),
	}
	if err := s.db.Create(&device).Error; err != nil {
		return false, fmt.Errorf("create device: %w", err)
	}
	return true, nil
}
