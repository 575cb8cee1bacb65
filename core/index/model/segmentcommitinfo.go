package model

import (
	"fmt"

	"github.com/golucene/golucene/core/store"
)

// SegmentCommitInfo embeds a read-only SegmentInfo and adds the
// per-commit fields that are allowed to change after the segment is
// written: the live-docs delGen and deletion count (spec §3 Segment
// invariant: "once written, only the live-docs bitset (and its
// delGen) changes; all other files are immutable").
//
// Adapted directly from the teacher's segmentInfoPerCommit.go, which
// stubbed every method with panic("not implemented yet"); this fills
// in the real logic the doc comments already described.
type SegmentCommitInfo struct {
	Info *SegmentInfo

	// DelCount is how many docs in the segment are deleted as of this
	// commit.
	DelCount int
	// DelGen is the generation number of the live-docs file (-1 if
	// there are no deletes yet); it is also the base name of the
	// "<segment>_<delGen>.del" file (spec §3 Segment, spec §6 Filenames).
	DelGen int64
	// nextWriteDelGen is normally 1+DelGen, unless a prior write attempt
	// failed, in which case it was bumped without advancing DelGen so we
	// never reuse a delGen whose write may have partially landed.
	nextWriteDelGen int64

	sizeInBytes int64 // -1 means "not yet computed"

	// BufferedDelGen is never written to/read from the Directory; it is
	// the deletes-stream generation last applied to this segment
	// in-RAM (spec §3 Segment "bufferedDelGen").
	BufferedDelGen int64
}

// NewSegmentCommitInfo constructs a SegmentCommitInfo for a freshly
// flushed (delGen == -1) or previously-read segment.
func NewSegmentCommitInfo(info *SegmentInfo, delCount int, delGen int64) *SegmentCommitInfo {
	nextWriteDelGen := delGen + 1
	return &SegmentCommitInfo{
		Info:            info,
		DelCount:        delCount,
		DelGen:          delGen,
		nextWriteDelGen: nextWriteDelGen,
		sizeInBytes:     -1,
	}
}

// AdvanceDelGen is called when a new live-docs bitset was
// successfully written, publishing the write's generation as the
// segment's current DelGen (spec §8 "Delete monotonicity":
// bufferedDelGen/delGen only move forward).
func (si *SegmentCommitInfo) AdvanceDelGen() {
	si.DelGen = si.nextWriteDelGen
	si.nextWriteDelGen = si.DelGen + 1
	si.sizeInBytes = -1
}

// AdvanceNextWriteDelGen is called when writing a new live-docs bitset
// failed, so a retry doesn't collide with the same file name.
func (si *SegmentCommitInfo) AdvanceNextWriteDelGen() {
	si.nextWriteDelGen++
}

// LiveDocsFileName returns the "<segment>_<delGen>.del" name for the
// current DelGen, or "" if there are no deletions yet.
func (si *SegmentCommitInfo) LiveDocsFileName() string {
	if si.DelGen == -1 {
		return ""
	}
	return fmt.Sprintf("%s_%s.del", si.Info.Name, base36(si.DelGen))
}

// SizeInBytes returns (and caches) the total size in bytes of every
// file this segment uses, live-docs bitset included.
func (si *SegmentCommitInfo) SizeInBytes(dir store.Directory) (int64, error) {
	if si.sizeInBytes != -1 {
		return si.sizeInBytes, nil
	}
	var sum int64
	for _, name := range si.Files() {
		n, err := dir.FileLength(name)
		if err != nil {
			return 0, err
		}
		sum += n
	}
	si.sizeInBytes = sum
	return sum, nil
}

// Files returns every file in use by this segment: the wrapped
// SegmentInfo's own files plus the live-docs file, if any.
func (si *SegmentCommitInfo) Files() []string {
	files := si.Info.Files()
	if name := si.LiveDocsFileName(); name != "" {
		files = append(files, name)
	}
	return files
}

func (si *SegmentCommitInfo) setBufferedDelGen(v int64) {
	si.BufferedDelGen = v
	si.sizeInBytes = -1
}

// SetBufferedDelGen records the deletes-stream generation last applied
// to this segment in-RAM (spec §4.6).
func (si *SegmentCommitInfo) SetBufferedDelGen(v int64) { si.setBufferedDelGen(v) }

// HasDeletions reports whether this segment has any deletions as of
// this commit.
func (si *SegmentCommitInfo) HasDeletions() bool { return si.DelGen != -1 }

// SetDelCount updates the cached deletion count, validating it stays
// within [0, docCount] the way the teacher's assert2 guarded it.
func (si *SegmentCommitInfo) SetDelCount(delCount int) error {
	if delCount < 0 || delCount > si.Info.DocCount {
		return fmt.Errorf("model: invalid delCount=%d (docCount=%d)", delCount, si.Info.DocCount)
	}
	si.DelCount = delCount
	return nil
}

func (si *SegmentCommitInfo) String() string {
	s := fmt.Sprintf("%s(docs=%d)", si.Info.Name, si.Info.DocCount)
	if si.DelGen != -1 {
		s = fmt.Sprintf("%s:delGen=%d", s, si.DelGen)
	}
	return s
}

// Clone returns an independent copy with the same generation
// counters, used when publishing a new manifest generation without
// disturbing the previous one's view (spec §5 copy-on-write).
func (si *SegmentCommitInfo) Clone() *SegmentCommitInfo {
	return &SegmentCommitInfo{
		Info:            si.Info,
		DelCount:        si.DelCount,
		DelGen:          si.DelGen,
		nextWriteDelGen: si.nextWriteDelGen,
		sizeInBytes:     si.sizeInBytes,
		BufferedDelGen:  si.BufferedDelGen,
	}
}

const base36Digits = "0123456789abcdefghijklmnopqrstuvwxyz"

// base36 encodes n as base-36, matching spec §3/§6's "<N> is base-36"
// filename convention for both segments_<N> and <segment>_<delGen>.del.
func base36(n int64) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [32]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = base36Digits[n%36]
		n /= 36
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

// Base36 exports base36 for use by segmentinfos.go and callers outside
// this file.
func Base36(n int64) string { return base36(n) }
