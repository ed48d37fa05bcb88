package keys

import (
	"crypto/rand"
	"errors"
	"fmt"

	"golang.org/x/crypto/nacl/secretbox"
)

// ErrUnwrapFailed is returned when a secretbox open fails authentication,
// meaning either the key is wrong or the box was tampered with.
var ErrUnwrapFailed = errors.New("stealthclient/keys: unwrap authentication failed")

// WrapFileKey seals fileKey under masterKey with a fresh 24-byte nonce,
// returning the nonce and sealed box for storage in the manifest.
func WrapFileKey(masterKey [MasterKeySize]byte, fileKey [FileKeySize]byte) (nonce [24]byte, box []byte, err error) {
	if _, err := rand.Read(nonce[:]); err != nil {
		return nonce, nil, fmt.Errorf("generate wrap nonce: %w", err)
	}
	box = secretbox.Seal(nil, fileKey[:], &nonce, &masterKey)
	return nonce, box, nil
}

// UnwrapFileKey opens a file key box sealed by WrapFileKey.
func UnwrapFileKey(masterKey [MasterKeySize]byte, nonce [24]byte, box []byte) ([FileKeySize]byte, error) {
	var fileKey [FileKeySize]byte
	plain, ok := secretbox.Open(nil, box, &nonce, &masterKey)
	if !ok {
		return fileKey, ErrUnwrapFailed
	}
	copy(fileKey[:], plain)
	return fileKey, nil
}

// SealChunk AEAD-seals a plaintext chunk with fileKey under the chunk's
// derived nonce. The ciphertext's SHA-256 becomes the chunk id.
func SealChunk(fileKey [FileKeySize]byte, nonce [24]byte, plaintext []byte) []byte {
	return secretbox.Seal(nil, plaintext, &nonce, &fileKey)
}

// OpenChunk decrypts a sealed chunk; used by clients re-downloading their
// own data, never by the server (which only ever sees ciphertext).
func OpenChunk(fileKey [FileKeySize]byte, nonce [24]byte, ciphertext []byte) ([]byte, error) {
	plain, ok := secretbox.Open(nil, ciphertext, &nonce, &fileKey)
	if !ok {
		return nil, ErrUnwrapFailed
	}
	return plain, nil
}

// SealManifest AEAD-seals the manifest JSON under masterKey with a fresh
// nonce, returning the nonce and box for the {manifestNonce, manifestBox}
// upload envelope.
func SealManifest(masterKey [MasterKeySize]byte, plaintext []byte) (nonce [24]byte, box []byte, err error) {
	if _, err := rand.Read(nonce[:]); err != nil {
		return nonce, nil, fmt.Errorf("generate manifest nonce: %w", err)
	}
	box = secretbox.Seal(nil, plaintext, &nonce, &masterKey)
	return nonce, box, nil
}

// OpenManifest decrypts a manifest box sealed by SealManifest.
func OpenManifest(masterKey [MasterKeySize]byte, nonce [24]byte, box []byte) ([]byte, error) {
	plain, ok := secretbox.Open(nil, box, &nonce, &masterKey)
	if !ok {
		return nil, ErrUnwrapFailed
	}
	return plain, nil
}
