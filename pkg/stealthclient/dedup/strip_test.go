package dedup

import "testing"

func TestBaseFilenameStripsVariantSuffixes(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"IMG_0001.JPG", "img_0001"},
		{"img_0001 (1).jpg", "img_0001"},
		{"img_0001(1).jpg", "img_0001"},
		{"img_0001-edited.jpg", "img_0001"},
		{"img_0001-edit.jpg", "img_0001"},
		{"img_0001~2.jpg", "img_0001"},
		{"img_0001_copy2.jpg", "img_0001"},
		{"img_0001 - copy.jpg", "img_0001"},
		{"img_0001 - copy (1).jpg", "img_0001"},
		{"img_0001.bak", "img_0001"},
		{"img_0001_backup.jpg", "img_0001"},
		{"img_0001-backup.jpg", "img_0001"},
		{"img_0001_original.jpg", "img_0001"},
		{"img_0001_burst5.jpg", "img_0001"},
		{"IMG_0001 (1) - copy.jpg", "img_0001"},
	}

	for _, c := range cases {
		got := BaseFilename(c.in)
		if got != c.want {
			t.Errorf("BaseFilename(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestBaseFilenameStripsStackedSuffixesToStability(t *testing.T) {
	got := BaseFilename("img_0001 (1)-edited (2).jpg")
	want := "img_0001"
	if got != want {
		t.Errorf("BaseFilename stacked = %q, want %q", got, want)
	}
}

func TestNormalizeFilenameLowercasesAndTrimsOnly(t *testing.T) {
	got := NormalizeFilename("  IMG_0001 (1).JPG  ")
	want := "img_0001 (1).jpg"
	if got != want {
		t.Errorf("NormalizeFilename = %q, want %q", got, want)
	}
}
