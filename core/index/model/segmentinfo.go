package model

// SegmentInfo is the immutable, write-once part of a segment's
// metadata (spec §3 Segment): everything except the live-docs bitset
// and delGen, which live on SegmentCommitInfo because they're the one
// thing allowed to change after the segment is written.
//
// Mirrors model.SegmentInfo referenced by the teacher's
// segmentInfoPerCommit.go (si.info.Dir, si.info.Files(),
// si.info.Codec(), si.info.DocCount()).
type SegmentInfo struct {
	Name           string
	DocCount       int
	IsCompoundFile bool
	Codec          string // codec identity, e.g. "BlockTree41"
	Version        string // creation version string (spec §3 "creation version")
	Diagnostics    map[string]string

	files []string
}

// NewSegmentInfo constructs a SegmentInfo. files lists every physical
// file name this segment wrote at flush (before any compound
// packing); SetCompoundFiles replaces it once §4.8 packs them.
func NewSegmentInfo(name string, docCount int, codec, version string, diagnostics map[string]string, files []string) *SegmentInfo {
	return &SegmentInfo{
		Name:        name,
		DocCount:    docCount,
		Codec:       codec,
		Version:     version,
		Diagnostics: diagnostics,
		files:       append([]string(nil), files...),
	}
}

// Files returns this segment's own (non-live-docs) file names.
func (si *SegmentInfo) Files() []string {
	return append([]string(nil), si.files...)
}

// SetCompoundFiles replaces the file list with the compound container's
// two files, called after core/index/compoundfile.go packs the segment
// (spec §4.8: "manifest entry then references only the compound and
// entries-table filenames").
func (si *SegmentInfo) SetCompoundFiles(cfsName, cfeName string) {
	si.IsCompoundFile = true
	si.files = []string{cfsName, cfeName}
}
