// Package exifscan extracts the EXIF fields the dedup pipeline's
// HEIC-priority and EXIF-key checks need: capture time, make, and model.
package exifscan

import (
	"bytes"
	"strings"
	"time"

	goexif "github.com/rwcarlsen/goexif/exif"
)

// Fields holds the trimmed, lowercased EXIF values the dedup decision
// order consumes. CaptureTime is formatted "YYYY-MM-DDTHH:MM:SS" (seconds
// precision) to match the manifest's exifCaptureTime field.
type Fields struct {
	CaptureTime string
	Make        string
	Model       string
}

// Scan extracts EXIF from a generic (JPEG/TIFF) image via
// github.com/rwcarlsen/goexif/exif. Returns a zero Fields if no EXIF is
// present; that is not an error.
func Scan(data []byte) (Fields, error) {
	x, err := goexif.Decode(bytes.NewReader(data))
	if err != nil {
		return Fields{}, nil
	}
	return fieldsFromExif(x), nil
}

func fieldsFromExif(x *goexif.Exif) Fields {
	var f Fields

	if tm, err := x.DateTime(); err == nil {
		f.CaptureTime = tm.UTC().Format("2006-01-02T15:04:05")
	}
	if tag, err := x.Get(goexif.Make); err == nil {
		if s, err := tag.StringVal(); err == nil {
			f.Make = normalize(s)
		}
	}
	if tag, err := x.Get(goexif.Model); err == nil {
		if s, err := tag.StringVal(); err == nil {
			f.Model = normalize(s)
		}
	}

	return f
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// ParseCaptureTime parses an exifCaptureTime string back to time.Time. The
// dedup checks compare the formatted strings directly and do not call it.
func ParseCaptureTime(s string) (time.Time, error) {
	return time.Parse("2006-01-02T15:04:05", s)
}
