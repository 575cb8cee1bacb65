package model

import (
	"testing"

	"github.com/golucene/golucene/core/store"
)

func newTestCommitInfo(name string, docCount int) *SegmentCommitInfo {
	info := NewSegmentInfo(name, docCount, "BlockTree41", "1.0", map[string]string{"source": "flush"},
		[]string{name + ".fnm", name + ".tib", name + ".tip"})
	return NewSegmentCommitInfo(info, 0, -1)
}

func TestSegmentInfosSerializeRoundTrip(t *testing.T) {
	dir := store.NewRAMDirectory()
	sis := NewSegmentInfos()
	sis.Generation = 3
	sis.Version = 1000
	sis.FieldNumbersVersion = 2
	sis.UserData["foo"] = "bar"
	sci := newTestCommitInfo("_0", 10)
	sci.DelCount = 1
	sci.DelGen = 0
	sis.Segments = append(sis.Segments, sci)

	out, err := dir.CreateOutput(sis.FileName())
	if err != nil {
		t.Fatalf("CreateOutput: %v", err)
	}
	if err := sis.Serialize(out); err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	if err := out.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	in, err := dir.OpenInput(sis.FileName(), store.DefaultIOContext)
	if err != nil {
		t.Fatalf("OpenInput: %v", err)
	}
	defer in.Close()
	read, err := ReadSegmentInfos(in, sis.Generation)
	if err != nil {
		t.Fatalf("ReadSegmentInfos: %v", err)
	}

	if read.Version != sis.Version || read.FieldNumbersVersion != sis.FieldNumbersVersion {
		t.Errorf("manifest fields mismatch: got %+v", read)
	}
	if read.UserData["foo"] != "bar" {
		t.Errorf("UserData[foo] = %q, want bar", read.UserData["foo"])
	}
	if len(read.Segments) != 1 {
		t.Fatalf("len(Segments) = %d, want 1", len(read.Segments))
	}
	rsci := read.Segments[0]
	if rsci.Info.Name != "_0" || rsci.Info.DocCount != 10 {
		t.Errorf("segment info mismatch: %+v", rsci.Info)
	}
	if rsci.DelCount != 1 || rsci.DelGen != 0 {
		t.Errorf("segment commit fields mismatch: DelCount=%d DelGen=%d", rsci.DelCount, rsci.DelGen)
	}
	if len(rsci.Info.Files()) != 3 {
		t.Errorf("Files() = %v, want 3 entries", rsci.Info.Files())
	}
	if rsci.Info.Diagnostics["source"] != "flush" {
		t.Errorf("Diagnostics[source] = %q, want flush", rsci.Info.Diagnostics["source"])
	}
}

func TestSegmentsGenRoundTrip(t *testing.T) {
	dir := store.NewRAMDirectory()
	if err := WriteSegmentsGen(dir, 42); err != nil {
		t.Fatalf("WriteSegmentsGen: %v", err)
	}
	g1, g2, err := ReadSegmentsGen(dir)
	if err != nil {
		t.Fatalf("ReadSegmentsGen: %v", err)
	}
	if g1 != 42 || g2 != 42 {
		t.Errorf("ReadSegmentsGen = (%d,%d), want (42,42)", g1, g2)
	}
}

func TestSegmentsGenOverwritesPriorValue(t *testing.T) {
	dir := store.NewRAMDirectory()
	if err := WriteSegmentsGen(dir, 1); err != nil {
		t.Fatalf("first WriteSegmentsGen: %v", err)
	}
	if err := WriteSegmentsGen(dir, 2); err != nil {
		t.Fatalf("second WriteSegmentsGen: %v", err)
	}
	g1, g2, err := ReadSegmentsGen(dir)
	if err != nil {
		t.Fatalf("ReadSegmentsGen: %v", err)
	}
	if g1 != 2 || g2 != 2 {
		t.Errorf("ReadSegmentsGen after overwrite = (%d,%d), want (2,2)", g1, g2)
	}
}

func TestFileNameForGenAndBase36(t *testing.T) {
	if got := FileNameForGen(35); got != "segments_z" {
		t.Errorf("FileNameForGen(35) = %q, want segments_z", got)
	}
	if got := Base36(0); got != "0" {
		t.Errorf("Base36(0) = %q, want 0", got)
	}
	if got := Base36(36); got != "10" {
		t.Errorf("Base36(36) = %q, want 10", got)
	}
}

func TestSegmentInfosCloneIsIndependent(t *testing.T) {
	sis := NewSegmentInfos()
	sis.Segments = append(sis.Segments, newTestCommitInfo("_0", 5))
	clone := sis.Clone()
	clone.Segments = append(clone.Segments, newTestCommitInfo("_1", 5))

	if len(sis.Segments) != 1 {
		t.Errorf("appending to a clone's Segments slice mutated the original: len=%d", len(sis.Segments))
	}
}

func TestSegmentCommitInfoLiveDocsFileNameAndDelGen(t *testing.T) {
	sci := newTestCommitInfo("_0", 10)
	if sci.LiveDocsFileName() != "" {
		t.Errorf("fresh segment should have no live-docs file, got %q", sci.LiveDocsFileName())
	}
	if sci.HasDeletions() {
		t.Error("fresh segment should report no deletions")
	}

	sci.AdvanceDelGen()
	if sci.DelGen != 0 {
		t.Errorf("DelGen after first AdvanceDelGen = %d, want 0", sci.DelGen)
	}
	want := "_0_0.del"
	if sci.LiveDocsFileName() != want {
		t.Errorf("LiveDocsFileName() = %q, want %q", sci.LiveDocsFileName(), want)
	}
	if !sci.HasDeletions() {
		t.Error("segment with DelGen set should report HasDeletions")
	}

	sci.AdvanceDelGen()
	if sci.DelGen != 1 {
		t.Errorf("DelGen after second AdvanceDelGen = %d, want 1", sci.DelGen)
	}
}

func TestSegmentCommitInfoSetDelCountBounds(t *testing.T) {
	sci := newTestCommitInfo("_0", 5)
	if err := sci.SetDelCount(3); err != nil {
		t.Fatalf("SetDelCount(3): %v", err)
	}
	if err := sci.SetDelCount(6); err == nil {
		t.Error("SetDelCount should reject a count greater than DocCount")
	}
	if err := sci.SetDelCount(-1); err == nil {
		t.Error("SetDelCount should reject a negative count")
	}
}
