package phash

import (
	"bytes"
	"image"

	goexif "github.com/rwcarlsen/goexif/exif"
)

// orientationOf reads the EXIF Orientation tag (1-8) from data, defaulting
// to 1 (no transform) when absent or unreadable.
func orientationOf(data []byte) int {
	x, err := goexif.Decode(bytes.NewReader(data))
	if err != nil {
		return 1
	}
	tag, err := x.Get(goexif.Orientation)
	if err != nil {
		return 1
	}
	v, err := tag.Int(0)
	if err != nil {
		return 1
	}
	return v
}

// ApplyOrientation normalizes img to upright/mirror-free orientation per
// the EXIF Orientation value found in the same source bytes, since the
// spec requires orientation correction before dHash downscaling so the
// hash is reproducible regardless of how a device recorded the image.
func ApplyOrientation(data []byte, img image.Image) image.Image {
	switch orientationOf(data) {
	case 2:
		return flipH(img)
	case 3:
		return rotate180(img)
	case 4:
		return flipV(img)
	case 5:
		return rotate270(flipH(img))
	case 6:
		return rotate90(img)
	case 7:
		return rotate90(flipH(img))
	case 8:
		return rotate270(img)
	default:
		return img
	}
}

func toRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok {
		return rgba
	}
	b := img.Bounds()
	out := image.NewRGBA(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			out.Set(x, y, img.At(x, y))
		}
	}
	return out
}

func flipH(img image.Image) image.Image {
	src := toRGBA(img)
	b := src.Bounds()
	out := image.NewRGBA(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			out.Set(b.Max.X-1-(x-b.Min.X)+b.Min.X, y, src.At(x, y))
		}
	}
	return out
}

func flipV(img image.Image) image.Image {
	src := toRGBA(img)
	b := src.Bounds()
	out := image.NewRGBA(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			out.Set(x, b.Max.Y-1-(y-b.Min.Y)+b.Min.Y, src.At(x, y))
		}
	}
	return out
}

func rotate180(img image.Image) image.Image {
	return flipV(flipH(img))
}

// rotate90 rotates img 90 degrees clockwise.
func rotate90(img image.Image) image.Image {
	src := toRGBA(img)
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	out := image.NewRGBA(image.Rect(0, 0, h, w))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			out.Set(h-1-y, x, src.At(b.Min.X+x, b.Min.Y+y))
		}
	}
	return out
}

// rotate270 rotates img 90 degrees counter-clockwise.
func rotate270(img image.Image) image.Image {
	src := toRGBA(img)
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	out := image.NewRGBA(image.Rect(0, 0, h, w))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			out.Set(y, w-1-x, src.At(b.Min.X+x, b.Min.Y+y))
		}
	}
	return out
}
