package pathlayout

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeTenantKey(t *testing.T) {
	assert.Equal(t, "abc-123_XYZ", SanitizeTenantKey("abc-123_XYZ"))
	assert.Equal(t, "abc123", SanitizeTenantKey("../../abc/123"))
	assert.Equal(t, "", SanitizeTenantKey("../../../"))

	long := ""
	for i := 0; i < 200; i++ {
		long += "a"
	}
	assert.Len(t, SanitizeTenantKey(long), maxTenantKeyLen)
}

func TestTenantKeyPriority(t *testing.T) {
	assert.Equal(t, "device-1", TenantKey("device-1", "user-uuid", 7))
	assert.Equal(t, "user-uuid", TenantKey("", "user-uuid", 7))
	assert.Equal(t, "7", TenantKey("", "", 7))
}

func TestSafeJoinRejectsEscape(t *testing.T) {
	dir := t.TempDir()

	_, err := SafeJoin(dir, "../../etc/passwd")
	assert.ErrorIs(t, err, ErrPathEscape)

	p, err := SafeJoin(dir, "chunks", "deadbeef")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(p, dir))
}

func TestEnsureTenantDirMigratesLegacy(t *testing.T) {
	parent := t.TempDir()
	legacy := filepath.Join(parent, "user-uuid-123")
	require.NoError(t, os.MkdirAll(legacy, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(legacy, "chunk-a"), []byte("a"), 0o644))

	dir, err := EnsureTenantDir(parent, "device-456", []string{"user-uuid-123"})
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, "chunk-a"))
	require.NoError(t, err)
	assert.Equal(t, "a", string(data))
}

func TestEnsureTenantDirConcurrentFirstTouch(t *testing.T) {
	parent := t.TempDir()
	done := make(chan error, 10)
	for i := 0; i < 10; i++ {
		go func() {
			_, err := EnsureTenantDir(parent, "device-shared", nil)
			done <- err
		}()
	}
	for i := 0; i < 10; i++ {
		require.NoError(t, <-done)
	}
}
