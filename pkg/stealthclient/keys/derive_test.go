package keys

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDeriveMasterKeyIsDeterministic(t *testing.T) {
	a := DeriveMasterKey("User@Example.com", "correct-horse")
	b := DeriveMasterKey("user@example.com", "correct-horse")
	require.Equal(t, a, b, "email case/trim must not affect derivation")
}

func TestDeriveMasterKeyDiffersByPassword(t *testing.T) {
	a := DeriveMasterKey("user@example.com", "correct-horse")
	b := DeriveMasterKey("user@example.com", "wrong-horse")
	require.NotEqual(t, a, b)
}

func TestNewFileSecretProducesDistinctValues(t *testing.T) {
	fileKey1, baseNonce1, err := NewFileSecret()
	require.NoError(t, err)
	fileKey2, baseNonce2, err := NewFileSecret()
	require.NoError(t, err)

	require.NotEqual(t, fileKey1, fileKey2)
	require.NotEqual(t, baseNonce1, baseNonce2)
}

func TestChunkNonceEncodesIndexLittleEndian(t *testing.T) {
	var base [BaseNonceSize]byte
	for i := range base {
		base[i] = byte(i + 1)
	}

	nonce := ChunkNonce(base, 1)
	require.Equal(t, base[:], nonce[:BaseNonceSize])
	require.Equal(t, []byte{1, 0, 0, 0, 0, 0, 0, 0}, nonce[BaseNonceSize:])

	nonce256 := ChunkNonce(base, 256)
	require.Equal(t, []byte{0, 1, 0, 0, 0, 0, 0, 0}, nonce256[BaseNonceSize:])
}

func TestChunkNonceDiffersPerIndex(t *testing.T) {
	var base [BaseNonceSize]byte
	n0 := ChunkNonce(base, 0)
	n1 := ChunkNonce(base, 1)
	require.NotEqual(t, n0, n1)
}
