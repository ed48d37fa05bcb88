// Package phash computes the reproducible perceptual hash (dHash) used as
// the dedup pipeline's last-resort, re-encode-tolerant image match.
package phash

import (
	"fmt"
	"image"
	"math/bits"
)

const (
	width  = 9
	height = 8
)

// Hash is a 64-bit dHash rendered as 16 lowercase hex characters.
type Hash string

// Compute downscales img to a 9x8 grid with two-step bilinear
// interpolation, converts to 8-bit luma, and packs the horizontal-gradient
// bits MSB-first into 8 bytes. The exact interpolation and rounding rule is
// fixed so every client implementation produces identical hashes for the
// same source image.
func Compute(img image.Image) Hash {
	luma := downscaleLuma(img, width, height)

	var out [8]byte
	for y := 0; y < height; y++ {
		var row byte
		for x := 0; x < width-1; x++ {
			bit := byte(0)
			if luma[y][x] < luma[y][x+1] {
				bit = 1
			}
			row = row<<1 | bit
		}
		out[y] = row
	}

	return Hash(fmt.Sprintf("%016x", bytesToUint64(out)))
}

func bytesToUint64(b [8]byte) uint64 {
	var v uint64
	for _, x := range b {
		v = v<<8 | uint64(x)
	}
	return v
}

// downscaleLuma resamples img to w*h in the two separate steps required by
// spec §4.I.8, in order: (1) bilinear-downscale R, G, and B independently
// — top = p11*(1-wx)+p21*wx; bot = p12*(1-wx)+p22*wx; v = top*(1-wy)+bot*wy,
// each rounded via floor(v+0.5) into an 8-bit channel — producing a
// quantized 9x8 RGB pixel; (2) only then compute
// y = floor((299R + 587G + 114B) / 1000) from that already-rounded pixel.
// Collapsing these into one pass (interpolating per-source-pixel luma
// instead) is a MUST-level deviation per §9: it causes silent false
// negatives in dedup across client implementations.
func downscaleLuma(img image.Image, w, h int) [][]byte {
	bounds := img.Bounds()
	srcW, srcH := bounds.Dx(), bounds.Dy()

	luma := make([][]byte, h)
	for row := range luma {
		luma[row] = make([]byte, w)
	}

	scaleX := float64(srcW) / float64(w)
	scaleY := float64(srcH) / float64(h)

	for y := 0; y < h; y++ {
		srcY := (float64(y)+0.5)*scaleY - 0.5
		y0 := clampInt(int(srcY), 0, srcH-1)
		y1 := clampInt(y0+1, 0, srcH-1)
		wy := srcY - float64(y0)
		if wy < 0 {
			wy = 0
		}

		for x := 0; x < w; x++ {
			srcX := (float64(x)+0.5)*scaleX - 0.5
			x0 := clampInt(int(srcX), 0, srcW-1)
			x1 := clampInt(x0+1, 0, srcW-1)
			wx := srcX - float64(x0)
			if wx < 0 {
				wx = 0
			}

			r11, g11, b11 := pixelRGB8(img, bounds.Min.X+x0, bounds.Min.Y+y0)
			r21, g21, b21 := pixelRGB8(img, bounds.Min.X+x1, bounds.Min.Y+y0)
			r12, g12, b12 := pixelRGB8(img, bounds.Min.X+x0, bounds.Min.Y+y1)
			r22, g22, b22 := pixelRGB8(img, bounds.Min.X+x1, bounds.Min.Y+y1)

			r8 := byte(floorPlusHalf(bilinear(r11, r21, r12, r22, wx, wy)))
			g8 := byte(floorPlusHalf(bilinear(g11, g21, g12, g22, wx, wy)))
			b8 := byte(floorPlusHalf(bilinear(b11, b21, b12, b22, wx, wy)))

			luma[y][x] = byte((299*int(r8) + 587*int(g8) + 114*int(b8)) / 1000)
		}
	}

	return luma
}

// bilinear applies top = p11*(1-wx)+p21*wx; bot = p12*(1-wx)+p22*wx;
// v = top*(1-wy)+bot*wy to a single channel's four nearest source pixels.
func bilinear(p11, p21, p12, p22, wx, wy float64) float64 {
	top := p11*(1-wx) + p21*wx
	bot := p12*(1-wx) + p22*wx
	return top*(1-wy) + bot*wy
}

// pixelRGB8 returns the 8-bit RGB components of the pixel at (x, y).
func pixelRGB8(img image.Image, x, y int) (r8, g8, b8 float64) {
	r, g, b, _ := img.At(x, y).RGBA()
	return float64(r >> 8), float64(g >> 8), float64(b >> 8)
}

func floorPlusHalf(v float64) int {
	return int(v + 0.5)
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// HammingDistance64 computes the 64-bit Hamming distance between two
// hashes, comparing their hex decode as a uint64.
func HammingDistance64(a, b Hash) (int, error) {
	av, err := parseHex64(a)
	if err != nil {
		return 0, err
	}
	bv, err := parseHex64(b)
	if err != nil {
		return 0, err
	}
	return bits.OnesCount64(av ^ bv), nil
}

func parseHex64(h Hash) (uint64, error) {
	var v uint64
	_, err := fmt.Sscanf(string(h), "%016x", &v)
	if err != nil {
		return 0, fmt.Errorf("phash: invalid hash %q: %w", h, err)
	}
	return v, nil
}

// DefaultMatchThreshold is the strict-by-default Hamming distance at or
// below which two hashes are considered a dedup match, per spec §4.I.8.
const DefaultMatchThreshold = 3

// Match reports whether a and b are within threshold Hamming distance.
func Match(a, b Hash, threshold int) (bool, error) {
	dist, err := HammingDistance64(a, b)
	if err != nil {
		return false, err
	}
	return dist <= threshold, nil
}
