// Package keys derives and wraps the per-user master key and per-file keys
// that every StealthCloud client must compute identically for dedup
// decisions and chunk ciphertexts to agree across devices.
package keys

import (
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// MasterKeyIterations is the PBKDF2 iteration count for master_key.
	MasterKeyIterations = 30000
	// MasterKeySize is the derived master_key length in bytes.
	MasterKeySize = 32
	// FileKeySize is the per-file secret size in bytes.
	FileKeySize = 32
	// BaseNonceSize is the per-file base nonce size in bytes.
	BaseNonceSize = 16
)

// DeriveMasterKey computes master_key = PBKDF2-HMAC-SHA256(password,
// lower(email), 30000, 32), reproducible byte-for-byte across clients so
// every device wraps and unwraps file keys identically.
func DeriveMasterKey(email, password string) [MasterKeySize]byte {
	salt := []byte(strings.ToLower(strings.TrimSpace(email)))
	derived := pbkdf2.Key([]byte(password), salt, MasterKeyIterations, MasterKeySize, sha256.New)

	var key [MasterKeySize]byte
	copy(key[:], derived)
	return key
}

// NewFileSecret generates a fresh random file_key and base_nonce for one
// file's chunk encryption.
func NewFileSecret() (fileKey [FileKeySize]byte, baseNonce [BaseNonceSize]byte, err error) {
	if _, err := rand.Read(fileKey[:]); err != nil {
		return fileKey, baseNonce, fmt.Errorf("generate file key: %w", err)
	}
	if _, err := rand.Read(baseNonce[:]); err != nil {
		return fileKey, baseNonce, fmt.Errorf("generate base nonce: %w", err)
	}
	return fileKey, baseNonce, nil
}

// ChunkNonce builds the 24-byte nonce for chunk i: base_nonce (16 bytes)
// concatenated with the little-endian uint64 chunk index.
func ChunkNonce(baseNonce [BaseNonceSize]byte, index uint64) [24]byte {
	var nonce [24]byte
	copy(nonce[:BaseNonceSize], baseNonce[:])
	for i := 0; i < 8; i++ {
		nonce[BaseNonceSize+i] = byte(index >> (8 * i))
	}
	return nonce
}
