// Package chunkstore defines the storage interface for content-addressed
// StealthCloud ciphertext chunks, with a mandatory local filesystem
// implementation and an optional asynchronous off-box mirror.
package chunkstore

import "context"

// Store persists and serves content-addressed chunks under a tenant key.
// Writes are idempotent: re-writing an existing chunk id is a no-op.
//
// Every method except Purge takes legacyKeys: the other tenant keys this
// same tenant's data might still be filed under from before its current
// key existed (see pathlayout.LegacyTenantKeys). On first on-disk touch of
// a tenant directory, implementations migrate any legacy-keyed sibling
// directory into it; callers pass nil when no migration is applicable
// (e.g. the sweeper, which addresses tenants directly by already-current
// key).
type Store interface {
	// Put writes data under chunkID for tenantKey if it does not already
	// exist, reporting whether it already existed.
	Put(ctx context.Context, tenantKey string, legacyKeys []string, chunkID string, data []byte) (alreadyExisted bool, err error)

	// Get reads the chunk back, or returns os.ErrNotExist (or a wrapper of
	// it) when absent.
	Get(ctx context.Context, tenantKey string, legacyKeys []string, chunkID string) ([]byte, error)

	// Exists reports whether chunkID is already stored for tenantKey.
	Exists(ctx context.Context, tenantKey string, legacyKeys []string, chunkID string) (bool, error)

	// Purge removes every chunk under tenantKey.
	Purge(ctx context.Context, tenantKey string) error
}
