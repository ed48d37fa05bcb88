package phash

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"

	"golang.org/x/image/webp"

	"github.com/photosync/backend/pkg/stealthclient/exifscan"
)

// Decode decodes a JPEG, PNG, or WebP image for dHash input. For HEIC,
// callers must first resolve the primary item's JPEG bytes via
// exifscan.ScanHEIC and pass those here instead, since no pack dependency
// decodes HEVC.
func Decode(mediaType string, data []byte) (image.Image, error) {
	if mediaType == "image/webp" {
		img, err := webp.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("phash: decode webp: %w", err)
		}
		return img, nil
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("phash: decode image: %w", err)
	}
	return img, nil
}

// DecodeHEICPrimary extracts the primary item of a HEIC container (via
// exifscan.ScanHEIC's box walker) and decodes it when that item is
// JPEG-coded. HEVC decode is not supported: an HEVC-coded primary item
// yields an error, and no thumbnail or auxiliary image is used instead.
func DecodeHEICPrimary(data []byte) (image.Image, exifscan.Fields, error) {
	info, err := exifscan.ScanHEIC(data)
	if err != nil {
		return nil, exifscan.Fields{}, err
	}
	if info.PrimaryJPEG == nil {
		return nil, info.EXIF, fmt.Errorf("phash: no representative JPEG found in HEIC container")
	}
	img, _, err := image.Decode(bytes.NewReader(info.PrimaryJPEG))
	if err != nil {
		return nil, info.EXIF, fmt.Errorf("phash: decode HEIC primary image: %w", err)
	}
	return img, info.EXIF, nil
}
