// Package pathlayout resolves the on-disk data root and the subdirectories
// derived from it, and sanitizes tenant-facing path components so no
// request-supplied identifier can escape its tenant directory.
package pathlayout

import (
	"fmt"
	"os"
	"path/filepath"
)

// Layout holds every resolved absolute path the rest of the service needs.
// It has no dependency on HTTP or database types so both the server and the
// CLI subcommands can resolve the same roots without booting either.
type Layout struct {
	Root             string
	UploadDir        string // classic mode, per-device subdirectories
	CloudDir         string // StealthCloud mode, per-tenant subdirectories
	CapacityDir      string
	CapacityJSONPath string
	DBPath           string
}

// ResolveOptions carries the environment overrides §4.A lists, in priority
// order: PHOTOSYNC_DATA_DIR, UPLOAD_DIR (root becomes its parent), a
// conventional /data directory when present, else the user's home.
type ResolveOptions struct {
	DataDir          string
	UploadDir        string
	DBPath           string
	CloudDir         string
	CapacityJSONPath string
}

// Resolve picks the data root from the first satisfied rule and derives
// every subpath from it, creating any missing directory.
func Resolve(opts ResolveOptions) (*Layout, error) {
	root, err := resolveRoot(opts)
	if err != nil {
		return nil, err
	}

	capacityDir := filepath.Join(root, "capacity")
	l := &Layout{
		Root:             root,
		UploadDir:        orDefault(opts.UploadDir, filepath.Join(root, "uploads")),
		CloudDir:         orDefault(opts.CloudDir, filepath.Join(root, "cloud")),
		CapacityDir:      capacityDir,
		CapacityJSONPath: orDefault(opts.CapacityJSONPath, filepath.Join(capacityDir, "capacity.json")),
		DBPath:           orDefault(opts.DBPath, filepath.Join(root, "db", "backup.db")),
	}

	for _, dir := range []string{l.UploadDir, l.CloudDir, l.CapacityDir, filepath.Dir(l.DBPath)} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create %s: %w", dir, err)
		}
	}

	return l, nil
}

func resolveRoot(opts ResolveOptions) (string, error) {
	if opts.DataDir != "" {
		return opts.DataDir, nil
	}
	if opts.UploadDir != "" {
		return filepath.Dir(opts.UploadDir), nil
	}
	if info, err := os.Stat("/data"); err == nil && info.IsDir() {
		return "/data", nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, ".photosync"), nil
}

func orDefault(v, def string) string {
	if v != "" {
		return v
	}
	return def
}

// CloudUsersDir returns the root under which every tenant's chunks and
// manifests live.
func (l *Layout) CloudUsersDir() string {
	return filepath.Join(l.CloudDir, "users")
}
