package dedup

// SizeTolerance is the ±20% size window step 6 allows for a
// re-compression match.
const SizeTolerance = 0.20

// Candidate is the pre-upload signature of a file about to be checked
// against the index. PerceptualHash and FileHash are pre-computed by the
// caller since both require decoding/hashing the plaintext before any
// dedup decision is made.
type Candidate struct {
	ManifestID      string
	Filename        string
	OriginalSize    int64
	ExifCaptureTime string
	ExifMake        string
	ExifModel       string
	FileHash        string
	PerceptualHash  string // "" for non-image files
}

// Step identifies which of the nine dedup checks matched, for telemetry.
type Step int

const (
	StepNone Step = iota
	StepManifestID
	StepExactFilename
	StepBaseFilename
	StepHEICPriority
	StepEXIFKey
	StepSizeTolerance
	StepCaptureDate
	StepPerceptualHash
	StepFileHash
)

// Decision records the outcome of running the dedup checks against a
// candidate.
type Decision struct {
	Duplicate bool
	Step      Step
	Matched   *Entry // nil when Duplicate is false
}

// Decide runs the nine-step decision order against c, short-circuiting on
// the first hit. perceptualThreshold is the Hamming distance cutoff for
// step 8 (phash.DefaultMatchThreshold unless overridden).
func Decide(idx *Index, c Candidate, perceptualThreshold int) Decision {
	base := BaseFilename(c.Filename)

	if idx.hasManifestID(c.ManifestID) {
		return Decision{Duplicate: true, Step: StepManifestID}
	}

	if idx.hasFilename(NormalizeFilename(c.Filename)) {
		return Decision{Duplicate: true, Step: StepExactFilename}
	}

	if e, ok := idx.exactBaseFilenameMatch(base, c.OriginalSize); ok {
		return Decision{Duplicate: true, Step: StepBaseFilename, Matched: e}
	}

	if c.ExifCaptureTime != "" {
		if e, ok := idx.heicMatch(base, c.ExifCaptureTime); ok {
			return Decision{Duplicate: true, Step: StepHEICPriority, Matched: e}
		}
		if e, ok := idx.exifMatch(c.ExifCaptureTime, c.ExifMake, c.ExifModel); ok {
			return Decision{Duplicate: true, Step: StepEXIFKey, Matched: e}
		}
	}

	if e, ok := idx.sizeToleranceMatch(base, c.OriginalSize, SizeTolerance); ok {
		return Decision{Duplicate: true, Step: StepSizeTolerance, Matched: e}
	}

	if len(c.ExifCaptureTime) >= 10 {
		if e, ok := idx.captureDateMatch(base, c.ExifCaptureTime[:10]); ok {
			return Decision{Duplicate: true, Step: StepCaptureDate, Matched: e}
		}
	}

	if c.PerceptualHash != "" {
		if e, ok := idx.perceptualMatch(c.PerceptualHash, perceptualThreshold); ok {
			return Decision{Duplicate: true, Step: StepPerceptualHash, Matched: e}
		}
	}

	if c.FileHash != "" && idx.hasFileHash(c.FileHash) {
		return Decision{Duplicate: true, Step: StepFileHash}
	}

	return Decision{Duplicate: false}
}

// String renders a Step as the telemetry label the uploader reports.
func (s Step) String() string {
	switch s {
	case StepManifestID:
		return "manifest_id"
	case StepExactFilename:
		return "exact_filename"
	case StepBaseFilename:
		return "base_filename"
	case StepHEICPriority:
		return "heic_priority"
	case StepEXIFKey:
		return "exif_key"
	case StepSizeTolerance:
		return "size_tolerance"
	case StepCaptureDate:
		return "capture_date"
	case StepPerceptualHash:
		return "perceptual_hash"
	case StepFileHash:
		return "file_hash"
	default:
		return "none"
	}
}
