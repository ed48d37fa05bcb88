package workers

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/photosync/backend/internal/credentials"
	"github.com/photosync/backend/internal/dbmodel"
	"github.com/photosync/backend/internal/pathlayout"
)

func setupReconcilerTest(t *testing.T) (*Reconciler, *dbmodel.User, string) {
	t.Helper()

	db, err := dbmodel.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)

	store := credentials.NewStore(db, 4, 14)
	user, err := store.Register("reconcile@example.com", "correct-horse", 100)
	require.NoError(t, err)

	_, err = store.EnsureDevice(user.ID, "11111111-1111-1111-1111-111111111111", "phone")
	require.NoError(t, err)

	usersRoot := t.TempDir()
	return NewReconciler(db, usersRoot), user, usersRoot
}

func TestReconcilerIndexesChunksFoundOnDisk(t *testing.T) {
	r, user, usersRoot := setupReconcilerTest(t)

	tenantKey := pathlayout.TenantKey("11111111-1111-1111-1111-111111111111", user.UserUUID, user.ID)
	chunksDir, err := pathlayout.SafeJoin(usersRoot, tenantKey, "chunks")
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(chunksDir, 0o755))

	chunkID := "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	require.NoError(t, os.WriteFile(filepath.Join(chunksDir, chunkID), []byte("ciphertext"), 0o644))

	require.NoError(t, r.Run())

	var rows []dbmodel.CloudChunk
	require.NoError(t, r.db.Where("user_id = ?", user.ID).Find(&rows).Error)
	require.Len(t, rows, 1)
	require.Equal(t, chunkID, rows[0].ChunkID)
	require.Equal(t, int64(len("ciphertext")), rows[0].Size)
}

func TestReconcilerRemovesStaleIndexEntries(t *testing.T) {
	r, user, _ := setupReconcilerTest(t)

	stale := dbmodel.CloudChunk{
		UserID:  user.ID,
		ChunkID: "bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb",
		Size:    42,
	}
	require.NoError(t, r.db.Create(&stale).Error)

	require.NoError(t, r.Run())

	var rows []dbmodel.CloudChunk
	require.NoError(t, r.db.Where("user_id = ?", user.ID).Find(&rows).Error)
	require.Empty(t, rows)
}

func TestReconcilerIgnoresNonChunkIDFilenames(t *testing.T) {
	r, user, usersRoot := setupReconcilerTest(t)

	tenantKey := pathlayout.TenantKey("11111111-1111-1111-1111-111111111111", user.UserUUID, user.ID)
	chunksDir, err := pathlayout.SafeJoin(usersRoot, tenantKey, "chunks")
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(chunksDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(chunksDir, "not-a-chunk-id.tmp"), []byte("x"), 0o644))

	require.NoError(t, r.Run())

	var rows []dbmodel.CloudChunk
	require.NoError(t, r.db.Where("user_id = ?", user.ID).Find(&rows).Error)
	require.Empty(t, rows)
}
