package subscription

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/photosync/backend/internal/dbmodel"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := dbmodel.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	return db
}

func TestResolveTrialToExpired(t *testing.T) {
	db := newTestDB(t)

	gb := 100
	past := time.Now().Add(-time.Hour).UnixMilli()
	plan := &dbmodel.UserPlan{UserID: 1, Status: dbmodel.StatusTrial, PlanGB: &gb, TrialUntil: &past}
	require.NoError(t, db.Create(plan).Error)

	r := NewResolver(db, 3)
	resolved, err := r.Resolve(1)
	require.NoError(t, err)
	assert.Equal(t, dbmodel.StatusTrialExpired, resolved.Status)

	ok, code, status := Check(resolved, GateUpload)
	assert.False(t, ok)
	assert.Equal(t, CodeTrialExpiredSyncOnly, code)
	assert.Equal(t, 402, status)
}

func TestResolveActiveToGrace(t *testing.T) {
	db := newTestDB(t)

	gb := 100
	past := time.Now().Add(-time.Hour).UnixMilli()
	plan := &dbmodel.UserPlan{UserID: 1, Status: dbmodel.StatusActive, PlanGB: &gb, ExpiresAt: &past}
	require.NoError(t, db.Create(plan).Error)

	r := NewResolver(db, 3)
	resolved, err := r.Resolve(1)
	require.NoError(t, err)
	assert.Equal(t, dbmodel.StatusGrace, resolved.Status)
	assert.NotZero(t, resolved.GraceUntil)

	ok, _, _ := Check(resolved, GateRead)
	assert.True(t, ok)
}

func TestCheckDeletedAlwaysBlocksEvenRead(t *testing.T) {
	resolved := &Resolved{Status: dbmodel.StatusDeleted}
	ok, code, status := Check(resolved, GateRead)
	assert.False(t, ok)
	assert.Equal(t, CodeDataDeleted, code)
	assert.Equal(t, 410, status)
}

func TestCheckActiveAllowsUpload(t *testing.T) {
	resolved := &Resolved{Status: dbmodel.StatusActive}
	ok, _, _ := Check(resolved, GateUpload)
	assert.True(t, ok)
}
