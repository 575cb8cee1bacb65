package model

import (
	"fmt"
	"hash/crc32"
	"sort"

	"github.com/golucene/golucene/core/codec"
	"github.com/golucene/golucene/core/store"
)

const (
	segmentsCodecName   = "golucene.SegmentInfos"
	segmentsVersionCur  = int32(1)
	segmentsGenCodecName = "golucene.SegmentsGen"
	segmentsGenVersion   = int32(-2) // spec §6: "current: -2"
)

// SegmentInfos is the manifest of spec §3/§4.7: an ordered list of
// live segments plus the commit generation, a monotonic version
// (millis timestamp), user metadata, and the field-number map version
// this commit was written against.
type SegmentInfos struct {
	Generation          int64
	Version             int64
	UserData            map[string]string
	FieldNumbersVersion int64
	Segments            []*SegmentCommitInfo
}

// NewSegmentInfos returns an empty manifest at generation 0.
func NewSegmentInfos() *SegmentInfos {
	return &SegmentInfos{UserData: map[string]string{}}
}

// FileName returns "segments_<N>" for this manifest's Generation.
func (sis *SegmentInfos) FileName() string {
	return "segments_" + base36(sis.Generation)
}

// FileNameForGen returns "segments_<N>" for an arbitrary generation,
// used by the reader-side fallback logic in core/index/writer.go.
func FileNameForGen(gen int64) string {
	return "segments_" + base36(gen)
}

// Clone returns a deep-enough copy for copy-on-write publication: the
// segment slice is copied (so appends to one generation's list never
// alias another's), but individual SegmentCommitInfo pointers are
// shared, so a change made through one of them is visible in both.
func (sis *SegmentInfos) Clone() *SegmentInfos {
	out := &SegmentInfos{
		Generation:          sis.Generation,
		Version:             sis.Version,
		FieldNumbersVersion: sis.FieldNumbersVersion,
		UserData:            make(map[string]string, len(sis.UserData)),
		Segments:            append([]*SegmentCommitInfo(nil), sis.Segments...),
	}
	for k, v := range sis.UserData {
		out.UserData[k] = v
	}
	return out
}

// Serialize writes the whole manifest to out, per spec §6's
// segments_<N> wire format: header, body, and the codec footer
// carrying the body's checksum. The caller (core/index/writer.go's
// PrepareCommit) fsyncs and keeps the output open; FinishCommit only
// closes it, since the checksum is already in the footer.
func (sis *SegmentInfos) Serialize(out store.IndexOutput) error {
	if err := codec.WriteHeader(out, segmentsCodecName, segmentsVersionCur); err != nil {
		return err
	}
	if err := writeVLong(out, sis.Version); err != nil {
		return err
	}
	if err := writeVLong(out, sis.FieldNumbersVersion); err != nil {
		return err
	}
	if err := writeVInt(out, int32(len(sis.Segments))); err != nil {
		return err
	}
	for _, sci := range sis.Segments {
		if err := writeSegmentCommitInfo(out, sci); err != nil {
			return err
		}
	}
	names := make([]string, 0, len(sis.UserData))
	for k := range sis.UserData {
		names = append(names, k)
	}
	sort.Strings(names)
	if err := writeVInt(out, int32(len(names))); err != nil {
		return err
	}
	for _, k := range names {
		if err := writeString(out, k); err != nil {
			return err
		}
		if err := writeString(out, sis.UserData[k]); err != nil {
			return err
		}
	}
	return codec.WriteFooter(out)
}

func writeSegmentCommitInfo(out store.IndexOutput, sci *SegmentCommitInfo) error {
	if err := writeString(out, sci.Info.Name); err != nil {
		return err
	}
	if err := writeVInt(out, int32(sci.Info.DocCount)); err != nil {
		return err
	}
	if err := writeBool(out, sci.Info.IsCompoundFile); err != nil {
		return err
	}
	if err := writeString(out, sci.Info.Codec); err != nil {
		return err
	}
	if err := writeString(out, sci.Info.Version); err != nil {
		return err
	}
	if err := writeVLong(out, sci.DelGen); err != nil {
		return err
	}
	if err := writeVInt(out, int32(sci.DelCount)); err != nil {
		return err
	}
	files := sci.Info.Files()
	if err := writeVInt(out, int32(len(files))); err != nil {
		return err
	}
	for _, f := range files {
		if err := writeString(out, f); err != nil {
			return err
		}
	}
	diagKeys := make([]string, 0, len(sci.Info.Diagnostics))
	for k := range sci.Info.Diagnostics {
		diagKeys = append(diagKeys, k)
	}
	sort.Strings(diagKeys)
	if err := writeVInt(out, int32(len(diagKeys))); err != nil {
		return err
	}
	for _, k := range diagKeys {
		if err := writeString(out, k); err != nil {
			return err
		}
		if err := writeString(out, sci.Info.Diagnostics[k]); err != nil {
			return err
		}
	}
	return nil
}

// ReadSegmentInfos parses a segments_<N> file previously written by
// Serialize, validating the trailing codec footer's checksum.
func ReadSegmentInfos(in store.IndexInput, generation int64) (*SegmentInfos, error) {
	if _, err := codec.CheckHeader(in, segmentsCodecName, segmentsVersionCur, segmentsVersionCur); err != nil {
		return nil, err
	}
	sis := &SegmentInfos{Generation: generation, UserData: map[string]string{}}
	var err error
	if sis.Version, err = readVLong(in); err != nil {
		return nil, err
	}
	if sis.FieldNumbersVersion, err = readVLong(in); err != nil {
		return nil, err
	}
	count, err := readVInt(in)
	if err != nil {
		return nil, err
	}
	for i := int32(0); i < count; i++ {
		sci, err := readSegmentCommitInfo(in)
		if err != nil {
			return nil, err
		}
		sis.Segments = append(sis.Segments, sci)
	}
	udCount, err := readVInt(in)
	if err != nil {
		return nil, err
	}
	for i := int32(0); i < udCount; i++ {
		k, err := readString(in)
		if err != nil {
			return nil, err
		}
		v, err := readString(in)
		if err != nil {
			return nil, err
		}
		sis.UserData[k] = v
	}
	bodyLen := in.Length() - codec.FooterLength
	if bodyLen < 0 {
		return nil, fmt.Errorf("model: segments file too short for a footer (length %d)", in.Length())
	}
	body := make([]byte, bodyLen)
	if _, err := in.ReadAt(body, 0); err != nil {
		return nil, err
	}
	if err := in.Seek(bodyLen); err != nil {
		return nil, err
	}
	if err := codec.CheckFooter(in, crc32.ChecksumIEEE(body)); err != nil {
		return nil, err
	}
	return sis, nil
}

func readSegmentCommitInfo(in store.IndexInput) (*SegmentCommitInfo, error) {
	name, err := readString(in)
	if err != nil {
		return nil, err
	}
	docCount, err := readVInt(in)
	if err != nil {
		return nil, err
	}
	isCompound, err := readBool(in)
	if err != nil {
		return nil, err
	}
	codecName, err := readString(in)
	if err != nil {
		return nil, err
	}
	version, err := readString(in)
	if err != nil {
		return nil, err
	}
	delGen, err := readVLong(in)
	if err != nil {
		return nil, err
	}
	delCount, err := readVInt(in)
	if err != nil {
		return nil, err
	}
	fcount, err := readVInt(in)
	if err != nil {
		return nil, err
	}
	files := make([]string, fcount)
	for i := range files {
		if files[i], err = readString(in); err != nil {
			return nil, err
		}
	}
	dcount, err := readVInt(in)
	if err != nil {
		return nil, err
	}
	diag := make(map[string]string, dcount)
	for i := int32(0); i < dcount; i++ {
		k, err := readString(in)
		if err != nil {
			return nil, err
		}
		v, err := readString(in)
		if err != nil {
			return nil, err
		}
		diag[k] = v
	}
	info := NewSegmentInfo(name, int(docCount), codecName, version, diag, files)
	info.IsCompoundFile = isCompound
	sci := NewSegmentCommitInfo(info, int(delCount), delGen)
	return sci, nil
}

// ---- pointer file (segments.gen), spec §4.7/§6 ----

// WriteSegmentsGen writes the "(FORMAT_CURRENT, N, N)" pointer file,
// N written twice so a reader can detect a torn write (spec §8
// "Torn-write detection").
func WriteSegmentsGen(dir store.Directory, generation int64) error {
	out, err := createOverwriting(dir, "segments.gen")
	if err != nil {
		return err
	}
	if err := writeVInt(out, segmentsGenVersion); err != nil {
		out.Close()
		return err
	}
	if err := writeVLong(out, generation); err != nil {
		out.Close()
		return err
	}
	if err := writeVLong(out, generation); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return dir.Sync([]string{"segments.gen"})
}

// ReadSegmentsGen reads the pointer file, returning the two stored
// generations (equal on a clean write; unequal signals torn write, in
// which case the caller must fall back to a directory listing per
// spec §4.7/§8).
func ReadSegmentsGen(dir store.Directory) (gen1, gen2 int64, err error) {
	in, err := dir.OpenInput("segments.gen", store.DefaultIOContext)
	if err != nil {
		return 0, 0, err
	}
	defer in.Close()
	version, err := readVInt(in)
	if err != nil {
		return 0, 0, err
	}
	if version != segmentsGenVersion {
		return 0, 0, fmt.Errorf("model: unsupported segments.gen format %d", version)
	}
	if gen1, err = readVLong(in); err != nil {
		return 0, 0, err
	}
	if gen2, err = readVLong(in); err != nil {
		return 0, 0, err
	}
	return gen1, gen2, nil
}

// createOverwriting deletes any stale file of the same name first:
// segments.gen is the one file the spec intentionally overwrites on
// every commit (§4.7 step 3), unlike the no-overwrite rule for
// segments_<N>.
func createOverwriting(dir store.Directory, name string) (store.IndexOutput, error) {
	if dir.FileExists(name) {
		if err := dir.DeleteFile(name); err != nil {
			return nil, err
		}
	}
	return dir.CreateOutput(name)
}
