package manifest

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/photosync/backend/pkg/stealthclient/keys"
)

func testManifest() Manifest {
	return Manifest{
		Version:      1,
		AssetID:      "asset-1",
		Filename:     "IMG_0001.jpg",
		MediaType:    "image/jpeg",
		OriginalSize: 1024,
		ChunkIDs:     []string{"a", "b"},
		ChunkSizes:   []int64{512, 512},
	}
}

func TestSealOpenManifestRoundTrips(t *testing.T) {
	masterKey := keys.DeriveMasterKey("user@example.com", "correct-horse")
	m := testManifest()

	env, err := Seal(masterKey, m)
	require.NoError(t, err)
	require.NotEmpty(t, env.ManifestNonce)
	require.NotEmpty(t, env.ManifestBox)

	opened, err := Open(masterKey, env)
	require.NoError(t, err)
	require.Equal(t, m, opened)
}

func TestOpenManifestFailsWithWrongMasterKey(t *testing.T) {
	masterKey := keys.DeriveMasterKey("user@example.com", "correct-horse")
	otherKey := keys.DeriveMasterKey("user@example.com", "wrong-horse")
	m := testManifest()

	env, err := Seal(masterKey, m)
	require.NoError(t, err)

	_, err = Open(otherKey, env)
	require.Error(t, err)
}

func TestStableIDIgnoresFilenameCase(t *testing.T) {
	a := StableID("IMG_0001.JPG", 1024)
	b := StableID("img_0001.jpg", 1024)
	require.Equal(t, a, b)
}

func TestStableIDDiffersBySize(t *testing.T) {
	a := StableID("img_0001.jpg", 1024)
	b := StableID("img_0001.jpg", 2048)
	require.NotEqual(t, a, b)
}

func TestWireRoundTripsThroughOpaqueString(t *testing.T) {
	masterKey := keys.DeriveMasterKey("user@example.com", "correct-horse")
	m := testManifest()

	env, err := Seal(masterKey, m)
	require.NoError(t, err)

	wire, err := env.ToWire()
	require.NoError(t, err)
	require.NotEmpty(t, wire)

	roundTripped, err := EnvelopeFromWire(wire)
	require.NoError(t, err)
	require.Equal(t, env, roundTripped)

	opened, err := Open(masterKey, roundTripped)
	require.NoError(t, err)
	require.Equal(t, m, opened)
}

func TestEnvelopeFromWireRejectsShortBlob(t *testing.T) {
	_, err := EnvelopeFromWire("dG9vc2hvcnQ=")
	require.Error(t, err)
}

func TestWrapFileKeyFieldsPopulatesBase64Fields(t *testing.T) {
	masterKey := keys.DeriveMasterKey("user@example.com", "correct-horse")
	fileKey, baseNonce, err := keys.NewFileSecret()
	require.NoError(t, err)

	wrapNonce, box, err := keys.WrapFileKey(masterKey, fileKey)
	require.NoError(t, err)

	m := testManifest()
	WrapFileKeyFields(&m, baseNonce, wrapNonce, box)

	require.NotEmpty(t, m.BaseNonce16)
	require.NotEmpty(t, m.WrapNonce)
	require.NotEmpty(t, m.WrappedFileKey)
}
