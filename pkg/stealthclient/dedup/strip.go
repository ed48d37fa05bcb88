package dedup

import (
	"path/filepath"
	"regexp"
	"strings"
)

// variantSuffixes matches platform-specific copy/variant suffixes that
// should be stripped from a filename's stem before base-filename dedup
// checks, per spec §4.I.3. Order matters: longer, more specific patterns
// are tried before generic ones, and stripping repeats until no pattern
// matches so stacked suffixes (e.g. "img_001 (1) - copy") fully reduce.
var variantSuffixes = []*regexp.Regexp{
	regexp.MustCompile(`_\d+_\d+_[A-Za-z]+$`), // iOS thumbnail/preview: _<d>_<d>_<a>
	regexp.MustCompile(`_\d{6,}_\d{1,2}$`),    // timestamp-anchored copy: _<d>{6,}_<d>{1,2}
	regexp.MustCompile(`~\d+$`),               // Google/Drive variant: ~<n>
	regexp.MustCompile(`-edited$`),
	regexp.MustCompile(`-edit$`),
	regexp.MustCompile(`-collage$`),
	regexp.MustCompile(`-animation$`),
	regexp.MustCompile(`_burst\d+$`),
	regexp.MustCompile(` \(\d+\)$`),
	regexp.MustCompile(`\(\d+\)$`),
	regexp.MustCompile(` - copy( \(\d+\))?$`),
	regexp.MustCompile(` \(copy\)$`),
	regexp.MustCompile(`_copy\d+$`),
	regexp.MustCompile(`\.bak$`),
	regexp.MustCompile(`_backup$`),
	regexp.MustCompile(`-backup$`),
	regexp.MustCompile(`_original$`),
}

// BaseFilename normalizes filename to lowercase, strips its extension, and
// repeatedly strips any matching platform variant suffix until stable.
func BaseFilename(filename string) string {
	name := strings.ToLower(strings.TrimSpace(filename))
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)

	for {
		stripped := false
		for _, pattern := range variantSuffixes {
			if loc := pattern.FindStringIndex(stem); loc != nil {
				stem = stem[:loc[0]]
				stripped = true
			}
		}
		if !stripped {
			break
		}
	}

	return stem
}

// NormalizeFilename lowercases and trims filename for the exact-match
// check (step 2), without stripping the extension or any variant suffix.
func NormalizeFilename(filename string) string {
	return strings.ToLower(strings.TrimSpace(filename))
}
