package index

import (
	"testing"

	"github.com/golucene/golucene/core/index/model"
	"github.com/golucene/golucene/core/store"
)

// buildTestSegment flushes a small three-document segment (docs 0/1/2
// with TestFlushRoundTrip's bodies: "the quick red fox", "a lazy dog
// sleeps", "a red dog barks") and opens its FieldsProducer, for buffered-deletes tests to apply
// against.
func buildTestSegment(t *testing.T) (*model.SegmentCommitInfo, FieldsProducer) {
	t.Helper()
	dir := store.NewRAMDirectory()
	dw := NewDocumentsWriterPerThread(model.NewFieldNumbers(), 0)
	bodies := []string{"the quick red fox", "a lazy dog sleeps", "a red dog barks"}
	for _, body := range bodies {
		dw.StartDocument()
		for i, tok := range splitWords(body) {
			dw.AddTerm("body", model.DocsAndFreqsAndPositions, []byte(tok), int32(i), nil)
		}
		dw.FinishDocument()
	}
	flushed, err := Flush(dw, dir, "_0")
	if err != nil {
		t.Fatalf("Flush: %v", err)
	}
	fis, err := model.ReadFieldInfos(dir, model.FieldInfosFileName("_0"))
	if err != nil {
		t.Fatalf("ReadFieldInfos: %v", err)
	}
	format := NewPerFieldPostingsFormat(perFieldChooser)
	readState := &SegmentReadState{Directory: dir, SegmentInfo: flushed.Commit.Info, FieldInfos: fis, Context: store.DefaultIOContext}
	producer, err := format.FieldsProducer(readState)
	if err != nil {
		t.Fatalf("FieldsProducer: %v", err)
	}
	return flushed.Commit, producer
}

func TestBufferedDeletesApplyTermDelete(t *testing.T) {
	commit, producer := buildTestSegment(t)
	defer producer.Close()

	stream := NewBufferedDeletesStream()
	stream.Push([]DeleteTerm{{Field: "body", Term: []byte("red")}}, nil)

	seg := &Segment{Commit: commit, Fields: producer, OwnPacketGen: -1}
	if err := stream.Apply([]*Segment{seg}); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	if seg.LiveDocs == nil {
		t.Fatal("Apply should have allocated LiveDocs after striking matching docs")
	}
	if seg.LiveDocs.IsLive(0) || seg.LiveDocs.IsLive(2) {
		t.Error("docs 0 and 2 contain 'red' and should be deleted")
	}
	if !seg.LiveDocs.IsLive(1) {
		t.Error("doc 1 does not contain 'red' and should stay live")
	}
	if commit.DelCount != 2 {
		t.Errorf("DelCount = %d, want 2", commit.DelCount)
	}
	if commit.BufferedDelGen != 1 {
		t.Errorf("BufferedDelGen = %d, want 1", commit.BufferedDelGen)
	}
}

func TestBufferedDeletesApplyQueryDelete(t *testing.T) {
	commit, producer := buildTestSegment(t)
	defer producer.Close()

	stream := NewBufferedDeletesStream()
	stream.Push(nil, []Query{&TermQuery{Field: "body", Term: []byte("dog")}})

	seg := &Segment{Commit: commit, Fields: producer, OwnPacketGen: -1}
	if err := stream.Apply([]*Segment{seg}); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if seg.LiveDocs == nil {
		t.Fatal("expected a live-docs bitset after a matching query delete")
	}
	if seg.LiveDocs.IsLive(1) || seg.LiveDocs.IsLive(2) {
		t.Error("docs 1 and 2 contain 'dog' and should be deleted")
	}
	if !seg.LiveDocs.IsLive(0) {
		t.Error("doc 0 does not contain 'dog' and should stay live")
	}
}

func TestBufferedDeletesOwnPacketSkipsTermDeletes(t *testing.T) {
	commit, producer := buildTestSegment(t)
	defer producer.Close()

	stream := NewBufferedDeletesStream()
	gen := stream.Push([]DeleteTerm{{Field: "body", Term: []byte("red")}}, nil)

	// This segment's own producing packet already applied "red"
	// directly at index time (the indexing thread struck docs 0/2 in
	// its own RAM segment before flush); Apply must not reapply its
	// term-deletes against this segment, only any query-deletes it
	// carries.
	seg := &Segment{Commit: commit, Fields: producer, OwnPacketGen: gen}
	if err := stream.Apply([]*Segment{seg}); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if seg.LiveDocs != nil {
		t.Errorf("own-packet term-deletes must not be reapplied, got LiveDocs=%v", seg.LiveDocs)
	}
}

func TestBufferedDeletesPruning(t *testing.T) {
	commit, producer := buildTestSegment(t)
	defer producer.Close()

	stream := NewBufferedDeletesStream()
	stream.Push([]DeleteTerm{{Field: "body", Term: []byte("red")}}, nil)
	stream.Push([]DeleteTerm{{Field: "body", Term: []byte("dog")}}, nil)

	seg := &Segment{Commit: commit, Fields: producer, OwnPacketGen: -1}
	if err := stream.Apply([]*Segment{seg}); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	// Every currently known segment now has BufferedDelGen == 2, so the
	// first packet (gen 1, strictly below that floor) is prunable; the
	// second (gen 2, at the floor) is kept since prune's condition is
	// Gen >= minBufferedDelGen.
	remaining := stream.snapshot()
	if len(remaining) != 1 || remaining[0].Gen != 2 {
		t.Errorf("snapshot() after Apply = %v, want exactly packet gen 2", remaining)
	}
	if seg.LiveDocs.DeletedCount() != 3 {
		t.Errorf("DeletedCount() = %d, want 3 (red:0,2 + dog:1,2, deduped)", seg.LiveDocs.DeletedCount())
	}
}

func TestBufferedDeletesCurrentGen(t *testing.T) {
	stream := NewBufferedDeletesStream()
	if stream.CurrentGen() != 0 {
		t.Errorf("CurrentGen() on an empty stream = %d, want 0", stream.CurrentGen())
	}
	g := stream.Push([]DeleteTerm{{Field: "f", Term: []byte("t")}}, nil)
	if g != 1 {
		t.Errorf("first Push returned gen %d, want 1", g)
	}
	if stream.CurrentGen() != 1 {
		t.Errorf("CurrentGen() = %d, want 1", stream.CurrentGen())
	}
}
