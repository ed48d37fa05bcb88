// Package chunker splits a file into fixed-size plaintext chunks, seals
// each one, and derives its content-addressed chunk id, reproducibly
// across every client implementation.
package chunker

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"

	"github.com/photosync/backend/pkg/stealthclient/keys"
)

// ChunkSize is the fixed plaintext chunk size, per spec §4.I.
const ChunkSize = 2 * 1024 * 1024

// Chunk is one sealed, content-addressed slice of a file.
type Chunk struct {
	Index      uint64
	Plaintext  []byte
	Ciphertext []byte
	ChunkID    string
}

// Split reads r to completion, sealing each 2 MiB plaintext chunk with
// fileKey under its derived nonce and computing chunk_id =
// SHA-256(ciphertext) hex-encoded.
func Split(r io.Reader, fileKey [keys.FileKeySize]byte, baseNonce [keys.BaseNonceSize]byte) ([]Chunk, error) {
	var chunks []Chunk
	buf := make([]byte, ChunkSize)

	for index := uint64(0); ; index++ {
		n, err := io.ReadFull(r, buf)
		if n == 0 && (err == io.EOF || err == io.ErrUnexpectedEOF) {
			break
		}
		if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
			return nil, fmt.Errorf("read chunk %d: %w", index, err)
		}

		plaintext := make([]byte, n)
		copy(plaintext, buf[:n])

		nonce := keys.ChunkNonce(baseNonce, index)
		ciphertext := keys.SealChunk(fileKey, nonce, plaintext)
		sum := sha256.Sum256(ciphertext)

		chunks = append(chunks, Chunk{
			Index:      index,
			Plaintext:  plaintext,
			Ciphertext: ciphertext,
			ChunkID:    hex.EncodeToString(sum[:]),
		})

		if n < ChunkSize {
			break
		}
	}

	if len(chunks) == 0 {
		// A zero-length file still yields one empty chunk so the manifest
		// always has at least one chunk id to reference.
		nonce := keys.ChunkNonce(baseNonce, 0)
		ciphertext := keys.SealChunk(fileKey, nonce, nil)
		sum := sha256.Sum256(ciphertext)
		chunks = append(chunks, Chunk{
			Index:      0,
			Plaintext:  nil,
			Ciphertext: ciphertext,
			ChunkID:    hex.EncodeToString(sum[:]),
		})
	}

	return chunks, nil
}
