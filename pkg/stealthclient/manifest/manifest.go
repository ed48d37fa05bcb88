// Package manifest builds and seals the per-file manifest record clients
// upload alongside chunks.
package manifest

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/photosync/backend/pkg/stealthclient/keys"
)

// Manifest is the per-file record naming every chunk and wrapping the file
// key, serialized as JSON before being AEAD-sealed under master_key.
type Manifest struct {
	Version         int      `json:"v"`
	AssetID         string   `json:"assetId"`
	Filename        string   `json:"filename"`
	MediaType       string   `json:"mediaType"`
	OriginalSize    int64    `json:"originalSize"`
	CreationTime    string   `json:"creationTime,omitempty"`
	ExifCaptureTime string   `json:"exifCaptureTime,omitempty"`
	ExifMake        string   `json:"exifMake,omitempty"`
	ExifModel       string   `json:"exifModel,omitempty"`
	BaseNonce16     string   `json:"baseNonce16"`
	WrapNonce       string   `json:"wrapNonce"`
	WrappedFileKey  string   `json:"wrappedFileKey"`
	ChunkIDs        []string `json:"chunkIds"`
	ChunkSizes      []int64  `json:"chunkSizes"`
	FileHash        string   `json:"fileHash,omitempty"`
	PerceptualHash  string   `json:"perceptualHash,omitempty"`
}

// Envelope is the upload wire shape for a sealed manifest.
type Envelope struct {
	ManifestNonce string `json:"manifestNonce"`
	ManifestBox   string `json:"manifestBox"`
}

// StableID computes manifestId = SHA-256("file:" + lower(filename) + ":" +
// decimal(originalSize)), making reuploads of the same file from a
// different device land on the same manifest id.
func StableID(filename string, originalSize int64) string {
	name := strings.ToLower(filename)
	sum := sha256.Sum256([]byte("file:" + name + ":" + strconv.FormatInt(originalSize, 10)))
	return hex.EncodeToString(sum[:])
}

// Seal marshals m to JSON and AEAD-seals it under masterKey, returning the
// upload envelope.
func Seal(masterKey [keys.MasterKeySize]byte, m Manifest) (Envelope, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal manifest: %w", err)
	}

	nonce, box, err := keys.SealManifest(masterKey, data)
	if err != nil {
		return Envelope{}, fmt.Errorf("seal manifest: %w", err)
	}

	return Envelope{
		ManifestNonce: base64.StdEncoding.EncodeToString(nonce[:]),
		ManifestBox:   base64.StdEncoding.EncodeToString(box),
	}, nil
}

// Open decrypts an uploaded envelope back into a Manifest.
func Open(masterKey [keys.MasterKeySize]byte, env Envelope) (Manifest, error) {
	var m Manifest

	nonceBytes, err := base64.StdEncoding.DecodeString(env.ManifestNonce)
	if err != nil || len(nonceBytes) != 24 {
		return m, fmt.Errorf("decode manifest nonce: %w", err)
	}
	var nonce [24]byte
	copy(nonce[:], nonceBytes)

	box, err := base64.StdEncoding.DecodeString(env.ManifestBox)
	if err != nil {
		return m, fmt.Errorf("decode manifest box: %w", err)
	}

	plain, err := keys.OpenManifest(masterKey, nonce, box)
	if err != nil {
		return m, fmt.Errorf("open manifest: %w", err)
	}

	if err := json.Unmarshal(plain, &m); err != nil {
		return m, fmt.Errorf("decode manifest: %w", err)
	}
	return m, nil
}

// WrapFileKeyFields populates BaseNonce16/WrapNonce/WrappedFileKey on m from
// the raw wrap material.
func WrapFileKeyFields(m *Manifest, baseNonce [keys.BaseNonceSize]byte, wrapNonce [24]byte, wrappedFileKey []byte) {
	m.BaseNonce16 = base64.StdEncoding.EncodeToString(baseNonce[:])
	m.WrapNonce = base64.StdEncoding.EncodeToString(wrapNonce[:])
	m.WrappedFileKey = base64.StdEncoding.EncodeToString(wrappedFileKey)
}

// ToWire packs an Envelope into the single opaque string the server's
// `encryptedManifest` field expects (spec §4.F treats it as bytes): the
// 24-byte nonce followed by the sealed box, base64-encoded as one blob.
func (e Envelope) ToWire() (string, error) {
	nonce, err := base64.StdEncoding.DecodeString(e.ManifestNonce)
	if err != nil || len(nonce) != 24 {
		return "", fmt.Errorf("encode manifest nonce: %w", err)
	}
	box, err := base64.StdEncoding.DecodeString(e.ManifestBox)
	if err != nil {
		return "", fmt.Errorf("encode manifest box: %w", err)
	}
	return base64.StdEncoding.EncodeToString(append(nonce, box...)), nil
}

// EnvelopeFromWire unpacks the server's opaque `encryptedManifest` string
// back into an Envelope.
func EnvelopeFromWire(encryptedManifest string) (Envelope, error) {
	blob, err := base64.StdEncoding.DecodeString(encryptedManifest)
	if err != nil || len(blob) < 24 {
		return Envelope{}, fmt.Errorf("decode encrypted manifest: %w", err)
	}
	return Envelope{
		ManifestNonce: base64.StdEncoding.EncodeToString(blob[:24]),
		ManifestBox:   base64.StdEncoding.EncodeToString(blob[24:]),
	}, nil
}
