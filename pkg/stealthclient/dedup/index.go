// Package dedup implements the client's nine-step dedup decision order
// (spec §4.I), deciding whether a candidate file has already been uploaded
// before any chunk is ever sealed or sent.
package dedup

import (
	"sync"

	"github.com/photosync/backend/pkg/stealthclient/phash"
)

// Entry is one previously-uploaded file's dedup signature, built by
// decrypting manifests fetched during the initial index build.
type Entry struct {
	ManifestID      string
	Filename        string
	BaseFilename    string
	OriginalSize    int64
	ExifCaptureTime string // "" if absent
	ExifMake        string
	ExifModel       string
	FileHash        string // "" if not computed/stored
	PerceptualHash  string // "" for non-images
}

// Index holds every signature the dedup checks match against, built once
// from the server's existing manifests and updated after each new upload
// in the same run so later files in the batch see it immediately.
type Index struct {
	mu sync.Mutex

	manifestIDs   map[string]struct{}
	filenames     map[string]struct{}
	baseFilenames map[string][]*Entry
	fileHashes    map[string]struct{}
	heicKeys      map[string]*Entry // baseFilename|fullCaptureTimestamp
	exifFull      map[string]*Entry // captureTime|make|model
	exifModel     map[string]*Entry // captureTime|model
	exifMake      map[string]*Entry // captureTime|make
	images        []*Entry          // entries with a perceptual hash, for step 8
}

// NewIndex builds an empty Index.
func NewIndex() *Index {
	return &Index{
		manifestIDs:   make(map[string]struct{}),
		filenames:     make(map[string]struct{}),
		baseFilenames: make(map[string][]*Entry),
		fileHashes:    make(map[string]struct{}),
		heicKeys:      make(map[string]*Entry),
		exifFull:      make(map[string]*Entry),
		exifModel:     make(map[string]*Entry),
		exifMake:      make(map[string]*Entry),
	}
}

// Add registers e in every lookup the decision order consults. Safe for
// concurrent use; called both while building the initial index and after
// every successful upload.
func (idx *Index) Add(e Entry) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	idx.manifestIDs[e.ManifestID] = struct{}{}
	idx.filenames[NormalizeFilename(e.Filename)] = struct{}{}

	entry := e
	idx.baseFilenames[e.BaseFilename] = append(idx.baseFilenames[e.BaseFilename], &entry)

	if e.FileHash != "" {
		idx.fileHashes[e.FileHash] = struct{}{}
	}
	if e.PerceptualHash != "" {
		idx.images = append(idx.images, &entry)
	}
	if e.ExifCaptureTime != "" {
		idx.heicKeys[e.BaseFilename+"|"+e.ExifCaptureTime] = &entry
		if e.ExifMake != "" && e.ExifModel != "" {
			idx.exifFull[e.ExifCaptureTime+"|"+e.ExifMake+"|"+e.ExifModel] = &entry
		}
		if e.ExifModel != "" {
			idx.exifModel[e.ExifCaptureTime+"|"+e.ExifModel] = &entry
		}
		if e.ExifMake != "" {
			idx.exifMake[e.ExifCaptureTime+"|"+e.ExifMake] = &entry
		}
	}
}

func (idx *Index) hasManifestID(id string) bool {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	_, ok := idx.manifestIDs[id]
	return ok
}

func (idx *Index) hasFilename(normalized string) bool {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	_, ok := idx.filenames[normalized]
	return ok
}

// exactBaseFilenameMatch finds a stored entry sharing base whose size is
// byte-identical: a plain rename with no re-encoding.
func (idx *Index) exactBaseFilenameMatch(base string, size int64) (*Entry, bool) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	for _, e := range idx.baseFilenames[base] {
		if e.OriginalSize == size {
			return e, true
		}
	}
	return nil, false
}

func (idx *Index) heicMatch(base, fullCaptureTime string) (*Entry, bool) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	e, ok := idx.heicKeys[base+"|"+fullCaptureTime]
	return e, ok
}

func (idx *Index) exifMatch(captureTime, make, model string) (*Entry, bool) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if make != "" && model != "" {
		if e, ok := idx.exifFull[captureTime+"|"+make+"|"+model]; ok {
			return e, true
		}
	}
	if model != "" {
		if e, ok := idx.exifModel[captureTime+"|"+model]; ok {
			return e, true
		}
	}
	if make != "" {
		if e, ok := idx.exifMake[captureTime+"|"+make]; ok {
			return e, true
		}
	}
	return nil, false
}

func (idx *Index) sizeToleranceMatch(base string, size int64, tolerance float64) (*Entry, bool) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	for _, e := range idx.baseFilenames[base] {
		if withinTolerance(e.OriginalSize, size, tolerance) {
			return e, true
		}
	}
	return nil, false
}

func withinTolerance(a, b int64, tolerance float64) bool {
	if a == 0 {
		return b == 0
	}
	diff := float64(a - b)
	if diff < 0 {
		diff = -diff
	}
	return diff/float64(a) <= tolerance
}

func (idx *Index) captureDateMatch(base, captureDate string) (*Entry, bool) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	for _, e := range idx.baseFilenames[base] {
		if len(e.ExifCaptureTime) >= len(captureDate) && e.ExifCaptureTime[:len(captureDate)] == captureDate {
			return e, true
		}
	}
	return nil, false
}

func (idx *Index) perceptualMatch(hash string, threshold int) (*Entry, bool) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	for _, e := range idx.images {
		ok, err := phash.Match(phash.Hash(e.PerceptualHash), phash.Hash(hash), threshold)
		if err == nil && ok {
			return e, true
		}
	}
	return nil, false
}

func (idx *Index) hasFileHash(hash string) bool {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	_, ok := idx.fileHashes[hash]
	return ok
}
