package exifscan

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

// box builds a minimal ISOBMFF size+type+payload box.
func box(boxType string, payload []byte) []byte {
	size := 8 + len(payload)
	buf := make([]byte, 4, size)
	binary.BigEndian.PutUint32(buf, uint32(size))
	buf = append(buf, []byte(boxType)...)
	buf = append(buf, payload...)
	return buf
}

func appendUint32(b []byte, v uint32) []byte {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], v)
	return append(b, tmp[:]...)
}

// buildHEICFixture assembles a minimal HEIF container with one "Exif" item
// (id 1) and one JPEG-looking primary item (id 2). Each iloc item entry is
// 14 bytes (version 0, offsetSize/lengthSize 4, baseOffsetSize 0):
// item_id(2) data_ref(2) extent_count(2) offset(4) length(4).
func buildHEICFixture() (data, exifBytes, jpegBytes []byte) {
	infeEntry := []byte{2, 0, 0, 0, 0, 1, 0, 0, 'E', 'x', 'i', 'f'}
	infeBox := box("infe", infeEntry)

	iinfPayload := []byte{0, 0, 0, 0, 0, 1}
	iinfPayload = append(iinfPayload, infeBox...)
	iinfBox := box("iinf", iinfPayload)

	pitmPayload := []byte{0, 0, 0, 0, 0, 2}
	pitmBox := box("pitm", pitmPayload)

	exifBytes = append([]byte{0, 0, 0, 0}, []byte("FAKEEXIFDATA")...)
	jpegBytes = []byte{0xFF, 0xD8, 0xFF, 0xD9}

	ilocPayload := []byte{0, 0, 0, 0, 0x44, 0x00, 0, 2}
	item1 := []byte{0, 1, 0, 0, 0, 1}
	item1 = appendUint32(item1, 0) // extent offset, patched below
	item1 = appendUint32(item1, uint32(len(exifBytes)))
	item2 := []byte{0, 2, 0, 0, 0, 1}
	item2 = appendUint32(item2, 0) // extent offset, patched below
	item2 = appendUint32(item2, uint32(len(jpegBytes)))
	ilocPayload = append(ilocPayload, item1...)
	ilocPayload = append(ilocPayload, item2...)
	ilocBox := box("iloc", ilocPayload)

	metaPayload := []byte{0, 0, 0, 0}
	metaPayload = append(metaPayload, iinfBox...)
	metaPayload = append(metaPayload, pitmBox...)
	ilocOffsetInMeta := len(metaPayload) // offset of ilocBox within metaPayload
	metaPayload = append(metaPayload, ilocBox...)
	metaBox := box("meta", metaPayload)

	// ilocBox sits at (box header 8) + ilocOffsetInMeta within metaBox.
	ilocOffsetInMetaBox := 8 + ilocOffsetInMeta
	const ilocHeaderLen = 8 + 8 // box header(8) + iloc fixed header(8)
	const entryLen = 14
	// Each entry's offset field starts 6 bytes in (past id/dataref/extentcount).
	item1OffsetPos := ilocOffsetInMetaBox + ilocHeaderLen + 0*entryLen + 6
	item2OffsetPos := ilocOffsetInMetaBox + ilocHeaderLen + 1*entryLen + 6

	exifOffset := uint32(len(metaBox))
	jpegOffset := exifOffset + uint32(len(exifBytes))
	binary.BigEndian.PutUint32(metaBox[item1OffsetPos:item1OffsetPos+4], exifOffset)
	binary.BigEndian.PutUint32(metaBox[item2OffsetPos:item2OffsetPos+4], jpegOffset)

	data = append(append([]byte{}, metaBox...), exifBytes...)
	data = append(data, jpegBytes...)
	return data, exifBytes, jpegBytes
}

func TestScanHEICLocatesPrimaryJPEG(t *testing.T) {
	data, _, jpegBytes := buildHEICFixture()

	info, err := ScanHEIC(data)
	require.NoError(t, err)
	require.Equal(t, uint32(2), info.PrimaryItemID)
	require.Equal(t, jpegBytes, info.PrimaryJPEG)
}

func TestFindTopLevelBoxReturnsErrorWhenMissing(t *testing.T) {
	_, _, err := findTopLevelBox([]byte{0, 0, 0, 8, 'f', 't', 'y', 'p'}, "meta")
	require.Error(t, err)
}

func TestFindTopLevelBoxRejectsMalformedSize(t *testing.T) {
	_, _, err := findTopLevelBox([]byte{0, 0, 0, 4, 'm', 'e', 't', 'a', 'x'}, "meta")
	require.Error(t, err)
}

func TestLooksLikeJPEGRequiresSOIMarker(t *testing.T) {
	require.True(t, looksLikeJPEG([]byte{0xFF, 0xD8, 0xFF, 0xE0}))
	require.False(t, looksLikeJPEG([]byte{0x00, 0x00}))
	require.False(t, looksLikeJPEG(nil))
}

func TestScanHEICWithoutMetaBoxReturnsNoErrorAndEmptyInfo(t *testing.T) {
	info, err := ScanHEIC([]byte{0, 0, 0, 8, 'f', 't', 'y', 'p'})
	require.NoError(t, err)
	require.Nil(t, info.PrimaryJPEG)
}
