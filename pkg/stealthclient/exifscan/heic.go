package exifscan

import (
	"encoding/binary"
	"fmt"
)

// ScanHEIC extracts EXIF and locates the primary image item from
// a HEIC/HEIF container by walking its ISOBMFF box structure directly.
// No repo in the retrieval pack ships a HEIC/HEVC decoder, so this reads
// only the container metadata: the `meta` box's `iinf` (item info) and
// `iloc` (item location) boxes, following the `Exif` item type to its byte
// range and the item referenced by `pitm` (primary item) to its extent.
// The primary item's bytes are kept for dHash input only when they are
// JPEG-coded; thumbnail and auxiliary items are not searched.
type HEICInfo struct {
	EXIF          Fields
	PrimaryJPEG   []byte // primary item bytes when JPEG-coded, or nil
	PrimaryItemID uint32
}

// ScanHEIC walks data's top-level and meta boxes, returning whatever EXIF
// and representative image bytes it can locate. Absence of any field is
// not an error; HEIC files without embedded EXIF are common.
func ScanHEIC(data []byte) (HEICInfo, error) {
	var info HEICInfo

	metaStart, metaEnd, err := findTopLevelBox(data, "meta")
	if err != nil {
		return info, nil
	}
	// The meta box itself is a full box: 4-byte version/flags header before
	// its children.
	if metaEnd-metaStart < 4 {
		return info, nil
	}
	children := data[metaStart+4 : metaEnd]

	iinfStart, iinfEnd, iinfErr := findTopLevelBox(children, "iinf")
	ilocStart, ilocEnd, ilocErr := findTopLevelBox(children, "iloc")
	pitmStart, pitmEnd, pitmErr := findTopLevelBox(children, "pitm")

	var exifItemID uint32
	var exifFound bool
	if iinfErr == nil {
		exifItemID, exifFound = findItemByType(children[iinfStart:iinfEnd], "Exif")
	}

	var primaryItemID uint32
	if pitmErr == nil && pitmEnd-pitmStart >= 6 {
		// pitm: 4-byte full-box header, then a 2-byte (v0) or 4-byte (v1)
		// item id.
		version := children[pitmStart]
		if version == 0 {
			primaryItemID = uint32(binary.BigEndian.Uint16(children[pitmStart+4 : pitmStart+6]))
		} else if pitmEnd-pitmStart >= 8 {
			primaryItemID = binary.BigEndian.Uint32(children[pitmStart+4 : pitmStart+8])
		}
	}
	info.PrimaryItemID = primaryItemID

	if ilocErr == nil && exifFound {
		if extent, ok := findItemLocation(children[ilocStart:ilocEnd], exifItemID); ok {
			if extent.offset+extent.length <= uint64(len(data)) {
				exifBytes := data[extent.offset : extent.offset+extent.length]
				// The Exif item stores a 4-byte TIFF-header offset prefix
				// before the actual EXIF payload, per the HEIF spec's
				// ExifDataBlock layout.
				if len(exifBytes) > 4 {
					prefix := binary.BigEndian.Uint32(exifBytes[:4])
					if uint64(prefix)+4 <= uint64(len(exifBytes)) {
						exifBytes = exifBytes[4+prefix:]
					}
				}
				if fields, err := Scan(exifBytes); err == nil {
					info.EXIF = fields
				}
			}
		}
	}

	if ilocErr == nil && primaryItemID != 0 {
		if extent, ok := findItemLocation(children[ilocStart:ilocEnd], primaryItemID); ok {
			if extent.offset+extent.length <= uint64(len(data)) {
				candidate := data[extent.offset : extent.offset+extent.length]
				if looksLikeJPEG(candidate) {
					info.PrimaryJPEG = candidate
				}
			}
		}
	}

	return info, nil
}

func looksLikeJPEG(b []byte) bool {
	return len(b) > 2 && b[0] == 0xFF && b[1] == 0xD8
}

// findTopLevelBox scans data's sequence of size/type boxes for the first
// one matching typ, returning the payload's [start, end) offsets relative
// to data.
func findTopLevelBox(data []byte, typ string) (start, end int64, err error) {
	var offset int64
	for offset+8 <= int64(len(data)) {
		size := int64(binary.BigEndian.Uint32(data[offset : offset+4]))
		boxType := string(data[offset+4 : offset+8])

		headerLen := int64(8)
		boxSize := size
		if size == 1 {
			if offset+16 > int64(len(data)) {
				return 0, 0, fmt.Errorf("exifscan: truncated largesize box")
			}
			boxSize = int64(binary.BigEndian.Uint64(data[offset+8 : offset+16]))
			headerLen = 16
		}
		if size == 0 {
			boxSize = int64(len(data)) - offset
		}
		if boxSize < headerLen || offset+boxSize > int64(len(data)) {
			return 0, 0, fmt.Errorf("exifscan: malformed box %q", boxType)
		}

		if boxType == typ {
			return offset + headerLen, offset + boxSize, nil
		}
		offset += boxSize
	}
	return 0, 0, fmt.Errorf("exifscan: box %q not found", typ)
}

// findItemByType walks an iinf box's item info entries looking for the
// first whose item_type matches typ (e.g. "Exif"), returning its item_id.
func findItemByType(iinf []byte, typ string) (uint32, bool) {
	if len(iinf) < 6 {
		return 0, false
	}
	// iinf: 4-byte full-box header, 2-byte (v0) or 4-byte (v>=1) entry count,
	// then that many infe boxes.
	version := iinf[0]
	pos := int64(4)
	var count int64
	if version == 0 {
		count = int64(binary.BigEndian.Uint16(iinf[pos : pos+2]))
		pos += 2
	} else {
		count = int64(binary.BigEndian.Uint32(iinf[pos : pos+4]))
		pos += 4
	}

	for i := int64(0); i < count && pos+8 <= int64(len(iinf)); i++ {
		size := int64(binary.BigEndian.Uint32(iinf[pos : pos+4]))
		boxType := string(iinf[pos+4 : pos+8])
		if size < 8 || pos+size > int64(len(iinf)) {
			return 0, false
		}
		if boxType == "infe" {
			entry := iinf[pos+8 : pos+size]
			if id, itemType, ok := parseInfe(entry); ok && itemType == typ {
				return id, true
			}
		}
		pos += size
	}
	return 0, false
}

func parseInfe(entry []byte) (id uint32, itemType string, ok bool) {
	if len(entry) < 4 {
		return 0, "", false
	}
	version := entry[0]
	// version >= 2 is the common case for modern HEIF encoders.
	switch {
	case version == 2 && len(entry) >= 8:
		id = uint32(binary.BigEndian.Uint16(entry[4:6]))
		if len(entry) >= 12 {
			itemType = string(entry[8:12])
		}
		return id, itemType, true
	case version == 3 && len(entry) >= 12:
		id = binary.BigEndian.Uint32(entry[4:8])
		if len(entry) >= 16 {
			itemType = string(entry[12:16])
		}
		return id, itemType, true
	default:
		return 0, "", false
	}
}

type itemExtent struct {
	offset uint64
	length uint64
}

// findItemLocation walks an iloc box for itemID's first extent, returning
// its absolute (construction_method 0) offset and length.
func findItemLocation(iloc []byte, itemID uint32) (itemExtent, bool) {
	if len(iloc) < 8 {
		return itemExtent{}, false
	}
	version := iloc[0]
	pos := int64(4)

	offsetSize := int(iloc[pos] >> 4)
	lengthSize := int(iloc[pos] & 0x0F)
	pos++
	baseOffsetSize := int(iloc[pos] >> 4)
	var indexSize int
	if version == 1 || version == 2 {
		indexSize = int(iloc[pos] & 0x0F)
	}
	pos++

	var itemCount int64
	if version < 2 {
		itemCount = int64(binary.BigEndian.Uint16(iloc[pos : pos+2]))
		pos += 2
	} else {
		itemCount = int64(binary.BigEndian.Uint32(iloc[pos : pos+4]))
		pos += 4
	}

	readN := func(n int) uint64 {
		var v uint64
		for i := 0; i < n; i++ {
			v = v<<8 | uint64(iloc[pos])
			pos++
		}
		return v
	}

	for i := int64(0); i < itemCount; i++ {
		var curItemID uint32
		if version < 2 {
			curItemID = uint32(binary.BigEndian.Uint16(iloc[pos : pos+2]))
			pos += 2
		} else {
			curItemID = binary.BigEndian.Uint32(iloc[pos : pos+4])
			pos += 4
		}
		if version == 1 || version == 2 {
			pos += 2 // construction_method
		}
		pos += 2 // data_reference_index
		baseOffset := readN(baseOffsetSize)
		extentCount := int64(binary.BigEndian.Uint16(iloc[pos : pos+2]))
		pos += 2

		var first itemExtent
		for e := int64(0); e < extentCount; e++ {
			if indexSize > 0 {
				pos += indexSize
			}
			extOffset := readN(offsetSize)
			extLength := readN(lengthSize)
			if e == 0 {
				first = itemExtent{offset: baseOffset + extOffset, length: extLength}
			}
		}

		if curItemID == itemID {
			return first, true
		}
	}
	return itemExtent{}, false
}
