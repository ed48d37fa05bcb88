package pathlayout

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"
)

// ErrPathEscape is returned whenever a resolved path would fall outside its
// tenant directory; callers must map it to a 403.
var ErrPathEscape = errors.New("pathlayout: resolved path escapes tenant directory")

var tenantKeyDisallowed = regexp.MustCompile(`[^A-Za-z0-9_-]`)

const maxTenantKeyLen = 128

// SanitizeTenantKey strips anything outside [A-Za-z0-9_-] and truncates to
// 128 characters, per §4.A.
func SanitizeTenantKey(raw string) string {
	clean := tenantKeyDisallowed.ReplaceAllString(raw, "")
	if len(clean) > maxTenantKeyLen {
		clean = clean[:maxTenantKeyLen]
	}
	return clean
}

// TenantKey derives the StealthCloud tenant key for a session: the device
// uuid if present, else the user uuid, else the decimal user id.
func TenantKey(deviceUUID, userUUID string, userID uint) string {
	switch {
	case deviceUUID != "":
		return SanitizeTenantKey(deviceUUID)
	case userUUID != "":
		return SanitizeTenantKey(userUUID)
	default:
		return SanitizeTenantKey(strconv.FormatUint(uint64(userID), 10))
	}
}

// LegacyTenantKeys returns the other candidate keys a tenant's data might
// still be filed under from before a device uuid existed, in migration
// priority order.
func LegacyTenantKeys(deviceUUID, userUUID string, userID uint) []string {
	candidates := []string{
		SanitizeTenantKey(userUUID),
		SanitizeTenantKey(strconv.FormatUint(uint64(userID), 10)),
	}
	out := make([]string, 0, len(candidates))
	current := TenantKey(deviceUUID, userUUID, userID)
	for _, c := range candidates {
		if c != "" && c != current {
			out = append(out, c)
		}
	}
	return out
}

// SafeJoin joins base with elem and verifies the result has base as a
// prefix, defeating traversal via ".." or symlink escape in a
// request-supplied identifier. elem must already be sanitized by the
// caller (e.g. a regex-validated chunk id or manifest id).
func SafeJoin(base string, elem ...string) (string, error) {
	joined := filepath.Join(append([]string{base}, elem...)...)
	cleanBase := filepath.Clean(base)

	if joined != cleanBase && !strings.HasPrefix(joined, cleanBase+string(filepath.Separator)) {
		return "", ErrPathEscape
	}
	return joined, nil
}

var tenantMigrationOnce sync.Map // map[string]*sync.Once

// EnsureTenantDir creates dir if missing and, on first touch for this
// tenant key, best-effort migrates any legacy-keyed sibling directories
// into it. First touch is serialized per key so concurrent requests for a
// cold tenant cannot race the rename.
func EnsureTenantDir(parent, tenantKey string, legacyKeys []string) (string, error) {
	dir, err := SafeJoin(parent, tenantKey)
	if err != nil {
		return "", err
	}

	onceAny, _ := tenantMigrationOnce.LoadOrStore(dir, &sync.Once{})
	once := onceAny.(*sync.Once)

	var migrateErr error
	once.Do(func() {
		migrateErr = migrateLegacyDirs(parent, dir, legacyKeys)
	})
	if migrateErr != nil {
		return "", migrateErr
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create tenant directory: %w", err)
	}
	return dir, nil
}

// migrateLegacyDirs renames entries from legacy-keyed directories into dir
// without overwriting. Unreadable legacy directories and failed renames are
// skipped silently; only a failure to create dir is returned.
func migrateLegacyDirs(parent, dir string, legacyKeys []string) error {
	if _, err := os.Stat(dir); err == nil {
		return nil // already migrated or created by a previous run
	}

	for _, key := range legacyKeys {
		legacyDir, err := SafeJoin(parent, key)
		if err != nil {
			continue
		}
		entries, err := os.ReadDir(legacyDir)
		if err != nil {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create tenant directory: %w", err)
		}
		for _, entry := range entries {
			src := filepath.Join(legacyDir, entry.Name())
			dst := filepath.Join(dir, entry.Name())
			if _, err := os.Stat(dst); err == nil {
				continue // skip on destination conflict
			}
			_ = os.Rename(src, dst)
		}
	}
	return nil
}
